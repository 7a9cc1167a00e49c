package socket

import "net"

// ID identifies a socket within this process.
type ID uint64

// Network is an opaque, caller-supplied grouping of network interfaces —
// a physical adapter, a VPN tunnel, or the null network ("") used when a
// listener requests no particular grouping at all.
//
// Matching against a target network (Client.SendMulticastRequest) is
// always exact equality, including for the null network: "any" is not a
// wildcard here, it is simply the zero value of Network, and only
// matches sockets that were themselves created for the null network.
type Network string

// Family is an IP address family a Socket may have joined.
type Family int

const (
	// FamilyV4 is IPv4.
	FamilyV4 Family = iota
	// FamilyV6 is IPv6.
	FamilyV6
)

// Key identifies a socket together with the network it belongs to — the
// form in which sockets are surfaced to Handler and to callers matching
// responses back to the request that produced them.
type Key struct {
	Socket  ID
	Network Network
}

// Socket is one network's view onto the process's shared per-family
// multicast conns: the interfaces it spans, and which address families
// it actually managed to join a multicast group on for those interfaces.
//
// A Socket may have joined both families (the common case for a
// dual-stack network), one, or — if every join attempt failed — neither,
// in which case Client.socketFor never hands it out.
type Socket struct {
	id       ID
	network  Network
	ifaces   []net.Interface
	joinedV4 bool
	joinedV6 bool
}

// ID returns the socket's identity.
func (s *Socket) ID() ID { return s.id }

// Network returns the network this socket was created for.
func (s *Socket) Network() Network { return s.network }

// HasJoinedV4 returns true if this socket has joined the IPv4 multicast
// group on at least one of its interfaces.
func (s *Socket) HasJoinedV4() bool { return s.joinedV4 }

// HasJoinedV6 returns true if this socket has joined the IPv6 multicast
// group on at least one of its interfaces.
func (s *Socket) HasJoinedV6() bool { return s.joinedV6 }

// Interfaces returns the interfaces this socket spans.
func (s *Socket) Interfaces() []net.Interface { return s.ifaces }

func (s *Socket) hasInterface(index int) bool {
	for _, i := range s.ifaces {
		if i.Index == index {
			return true
		}
	}
	return false
}
