package socket

import (
	"errors"
	"net"
)

// Resolver maps a requested Network to the set of interfaces it
// currently spans. A Client consults its Resolver once per network, the
// first time that network is requested by any listener.
type Resolver interface {
	Resolve(network Network) ([]net.Interface, error)
}

// ResolverFunc adapts a plain function to a Resolver.
type ResolverFunc func(Network) ([]net.Interface, error)

// Resolve calls f(network).
func (f ResolverFunc) Resolve(network Network) ([]net.Interface, error) {
	return f(network)
}

// AllMulticastInterfaces resolves every network — including the null
// network — to the full set of enabled, multicast-capable interfaces on
// the host. It is the default Resolver; a caller that models real
// interface segmentation (specific NICs, VPN adapters, per-network
// tethering) should supply its own Resolver instead.
func AllMulticastInterfaces(Network) ([]net.Interface, error) {
	candidates, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	const flags = net.FlagUp | net.FlagMulticast

	var matches []net.Interface
	for _, i := range candidates {
		if i.Flags&flags == flags {
			matches = append(matches, i)
		}
	}

	if len(matches) == 0 {
		return nil, errors.New("socket: no multicast-capable interfaces available")
	}

	return matches, nil
}
