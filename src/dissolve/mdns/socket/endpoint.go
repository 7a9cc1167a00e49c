package socket

import (
	"net"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns"
)

// Endpoint is the origin of a received packet: the interface it arrived
// on, plus its source UDP address.
type Endpoint struct {
	InterfaceIndex int
	Address        *net.UDPAddr
}

// IsLegacy returns true if this endpoint belongs to a "one-shot" querier
// that does not implement the full mDNS specification and expects a
// conventional unicast response.
//
// See https://tools.ietf.org/html/rfc6762#section-6.7.
func (e Endpoint) IsLegacy() bool {
	return e.Address.Port != mdns.Port
}
