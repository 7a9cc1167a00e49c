package socket

import (
	"net"

	"github.com/miekg/dns"
)

// Handler receives decoded packets for a single socket (spec §4.4: "at
// most one handler per socket; sockets shared by multiple listeners
// share one handler").
type Handler interface {
	// OnQueryReceived is invoked for an inbound query message.
	OnQueryReceived(m *dns.Msg, key Key, src Endpoint)

	// OnResponseReceived is invoked for an inbound response message.
	OnResponseReceived(m *dns.Msg, key Key)

	// OnFailedToParse is invoked when an inbound packet could not be
	// decoded as a DNS message at all. Malformed packets are not fatal;
	// this is purely advisory.
	OnFailedToParse(err error, key Key)
}

// Requester is the subset of Client's behavior that reply.Sender and
// advertiser/manager.Manager depend on: registering or withdrawing a
// network's interest, and sending packets on it. Depending on this
// interface rather than the concrete *Client lets both of those
// packages be exercised in tests against a fake instead of a real
// multicast socket.
//
// *Client satisfies this interface.
type Requester interface {
	// NotifyNetworkRequested registers token's interest in network; see
	// Client.NotifyNetworkRequested.
	NotifyNetworkRequested(token Token, network Network, handler Handler, creationCB func(*Socket)) error

	// NotifyNetworkUnrequested releases token's interest in whatever
	// network it previously requested; see Client.NotifyNetworkUnrequested.
	NotifyNetworkUnrequested(token Token) error

	// SendMulticastRequest sends packet on every active socket matching
	// targetNetwork and family; see Client.SendMulticastRequest.
	SendMulticastRequest(packet []byte, family Family, targetNetwork Network, ipv6OnIPv6OnlyOnly bool) error

	// SendUnicast sends packet directly to dst; see Client.SendUnicast.
	SendUnicast(packet []byte, dst *net.UDPAddr, ifIndex int) error
}
