package socket

import "fmt"

// AlreadyRequestedError is returned by Client.NotifyNetworkRequested when
// token has already registered a network.
type AlreadyRequestedError struct {
	Token Token
}

func (e *AlreadyRequestedError) Error() string {
	return fmt.Sprintf("socket: listener %d has already requested a network", e.Token)
}

// UnknownListenerError is returned by Client.NotifyNetworkUnrequested when
// token has not registered a network.
type UnknownListenerError struct {
	Token Token
}

func (e *UnknownListenerError) Error() string {
	return fmt.Sprintf("socket: listener %d is not registered", e.Token)
}

// NoInterfacesError is returned when a requested network could not be
// joined on any interface, for either address family.
type NoInterfacesError struct {
	Network Network
}

func (e *NoInterfacesError) Error() string {
	return fmt.Sprintf("socket: unable to join any multicast group for network %q", e.Network)
}
