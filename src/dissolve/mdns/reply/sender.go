// Package reply implements the reply sender (spec §4.1 C2): the thin
// component every advertiser send path funnels through, responsible only
// for choosing a packet's destination — the mDNS multicast group, or a
// querier's own unicast address — and handing it to the socket client
// for transmission.
package reply

import (
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/socket"
)

// Sender sends packets for a single requested network, implementing
// iface.Sender against a socket.Requester (satisfied by *socket.Client).
type Sender struct {
	client             socket.Requester
	network            socket.Network
	ipv6OnIPv6OnlyOnly bool
}

// New returns a Sender that transmits on network via client. If
// ipv6OnIPv6OnlyOnly is set, multicast sends withhold the IPv6 copy of a
// packet on networks where an IPv4-joined socket is also active (spec
// §4.4 "IPv6-only fallback").
func New(client socket.Requester, network socket.Network, ipv6OnIPv6OnlyOnly bool) *Sender {
	return &Sender{
		client:             client,
		network:            network,
		ipv6OnIPv6OnlyOnly: ipv6OnIPv6OnlyOnly,
	}
}

// SendQuery transmits a probe query to the multicast group on every
// joined family.
func (s *Sender) SendQuery(packet []byte) error {
	return s.sendMulticast(packet)
}

// SendAnnouncement transmits an unsolicited announcement or exit message
// to the multicast group on every joined family.
func (s *Sender) SendAnnouncement(packet []byte) error {
	return s.sendMulticast(packet)
}

// SendReply transmits a response to an incoming query: to src if unicast
// is true, to the multicast group otherwise (spec §4.1.1 "Reply
// destination").
func (s *Sender) SendReply(packet []byte, unicast bool, src socket.Endpoint) error {
	if unicast {
		return s.client.SendUnicast(packet, src.Address, src.InterfaceIndex)
	}
	return s.sendMulticast(packet)
}

func (s *Sender) sendMulticast(packet []byte) error {
	v4Err := s.client.SendMulticastRequest(packet, socket.FamilyV4, s.network, false)
	v6Err := s.client.SendMulticastRequest(packet, socket.FamilyV6, s.network, s.ipv6OnIPv6OnlyOnly)

	if v4Err != nil {
		return v4Err
	}
	return v6Err
}
