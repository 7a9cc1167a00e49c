// Package socket implements the multinetwork socket client (spec §4.4
// C9): it maps listeners to requested networks to sockets, fans outgoing
// packets across every socket matching a send's target network and
// address family, and dispatches incoming packets to the handler
// registered for the socket they arrived on.
//
// It generalizes the teacher's mdns/transport package — a single,
// process-wide IPv4/IPv6 pair with no notion of per-network grouping —
// into the listener/network/socket fan-out the advertiser manager needs
// to run one interface advertiser per requested network.
package socket

import (
	"fmt"
	"net"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/miekg/dns"
)

// Token is the caller-supplied identity of a listener (spec §4.4 design
// note "Listener identity": listeners are keyed by an opaque handle
// rather than by pointer identity).
type Token uint64

// Options configures a Client.
type Options struct {
	logger   logging.Logger
	resolver Resolver
}

// Option configures a Client.
type Option func(*Options)

// WithLogger sets the logger used for non-fatal socket errors. It
// defaults to logging.DefaultLogger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithResolver overrides how a requested Network is mapped onto
// interfaces. It defaults to AllMulticastInterfaces.
func WithResolver(r Resolver) Option {
	return func(o *Options) {
		o.resolver = r
	}
}

type listenerState struct {
	network Network
	socket  ID
}

// Client is the multinetwork socket client. Like every other component
// in this module, its state is owned exclusively by its own goroutine
// (spec §5 "Scheduling model"); every exported method enqueues its work
// onto that goroutine and waits for completion before returning.
type Client struct {
	opts Options

	cmds   chan func()
	stopCh chan struct{}
	done   chan struct{}
	readWG sync.WaitGroup

	// v4 and v6 are typed as the familyConn interface, not the concrete
	// *v4Conn/*v6Conn, so tests can preset them to a fake before any
	// socket is opened and exercise the routing logic below without a
	// real UDP socket.
	v4 familyConn
	v6 familyConn

	nextSocketID ID
	sockets      map[Network]*Socket
	listeners    map[Token]*listenerState
	handlers     map[ID]Handler
}

// New returns a new, running Client.
func New(opts ...Option) *Client {
	o := Options{
		logger:   logging.DefaultLogger,
		resolver: ResolverFunc(AllMulticastInterfaces),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		opts:      o,
		cmds:      make(chan func(), 64),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		sockets:   map[Network]*Socket{},
		listeners: map[Token]*listenerState{},
		handlers:  map[ID]Handler{},
	}

	go c.run()

	return c
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.cmds:
			cmd()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) exec(fn func()) {
	done := make(chan struct{})

	select {
	case c.cmds <- func() {
		fn()
		close(done)
	}:
	case <-c.stopCh:
		return
	}

	select {
	case <-done:
	case <-c.stopCh:
	}
}

// post enqueues fn without waiting for it to run. It is used by the
// per-family read loops, which run on their own goroutines.
func (c *Client) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.stopCh:
	}
}

// Shutdown closes every open conn and stops the client's goroutine. No
// further method calls may be made after Shutdown returns.
func (c *Client) Shutdown() {
	close(c.stopCh)
	<-c.done

	if c.v4 != nil {
		c.v4.close()
	}
	if c.v6 != nil {
		c.v6.close()
	}

	c.readWG.Wait()
}

// NotifyNetworkRequested registers token's interest in network and joins
// its interfaces, creating the underlying socket if no other listener
// has already requested the same network. handler receives every packet
// the resulting socket subsequently receives; it is ignored if the
// socket already has a handler (spec: "at most one handler per socket").
// creationCB, if non-nil, is invoked once with the socket — which may
// already have existed, shared with another listener.
//
// It fails if token has already requested a network.
func (c *Client) NotifyNetworkRequested(
	token Token,
	network Network,
	handler Handler,
	creationCB func(*Socket),
) error {
	var err error

	c.exec(func() {
		if _, ok := c.listeners[token]; ok {
			err = &AlreadyRequestedError{Token: token}
			return
		}

		sock, joinErr := c.socketFor(network)
		if joinErr != nil {
			err = joinErr
			return
		}

		if _, ok := c.handlers[sock.id]; !ok && handler != nil {
			c.handlers[sock.id] = handler
		}

		c.listeners[token] = &listenerState{
			network: network,
			socket:  sock.id,
		}

		if creationCB != nil {
			creationCB(sock)
		}
	})

	return err
}

// NotifyNetworkUnrequested releases token's interest in whatever network
// it previously requested. If the socket that network was using is no
// longer held by any other listener, its packet handler is dropped.
//
// It fails if token has not requested a network.
func (c *Client) NotifyNetworkUnrequested(token Token) error {
	var err error

	c.exec(func() {
		st, ok := c.listeners[token]
		if !ok {
			err = &UnknownListenerError{Token: token}
			return
		}

		delete(c.listeners, token)

		if !c.socketStillHeld(st.socket) {
			delete(c.handlers, st.socket)
		}
	})

	return err
}

func (c *Client) socketStillHeld(id ID) bool {
	for _, st := range c.listeners {
		if st.socket == id {
			return true
		}
	}
	return false
}

// SendMulticastRequest sends packet, of the given address family, on
// every active socket whose network exactly equals targetNetwork and
// which has joined that family's multicast group.
//
// If ipv6OnIPv6OnlyOnly is set and family is FamilyV6, a socket is
// additionally skipped when any active socket for the same target network,
// itself included, has joined IPv4 — the "IPv6-only fallback" rule lets a
// caller prefer to let a dual-stack network answer on v4 alone, only
// sending v6 where v4 truly isn't available.
func (c *Client) SendMulticastRequest(
	packet []byte,
	family Family,
	targetNetwork Network,
	ipv6OnIPv6OnlyOnly bool,
) error {
	var firstErr error

	c.exec(func() {
		for _, sock := range c.sockets {
			if sock.network != targetNetwork {
				continue
			}

			switch family {
			case FamilyV4:
				if !sock.joinedV4 {
					continue
				}
			case FamilyV6:
				if !sock.joinedV6 {
					continue
				}
				if ipv6OnIPv6OnlyOnly && c.networkHasV4(targetNetwork) {
					continue
				}
			}

			if err := c.sendOnSocket(family, sock, packet); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})

	return firstErr
}

// SendUnicast sends packet directly to dst via the interface ifIndex,
// using whichever conn matches dst's address family. It is used for
// unicast query replies (spec §4.1.1 "Reply destination"), which target
// the querier's own address rather than any socket's network grouping.
func (c *Client) SendUnicast(packet []byte, dst *net.UDPAddr, ifIndex int) error {
	var err error

	c.exec(func() {
		family := FamilyV4
		if dst.IP.To4() == nil {
			family = FamilyV6
		}

		conn, _ := c.connFor(family)
		if conn == nil {
			err = fmt.Errorf("socket: no %s conn open", familyName(family))
			return
		}

		err = conn.writeTo(packet, ifIndex, dst)
	})

	return err
}

func (c *Client) networkHasV4(network Network) bool {
	for _, sock := range c.sockets {
		if sock.network == network && sock.joinedV4 {
			return true
		}
	}
	return false
}

func (c *Client) sendOnSocket(family Family, sock *Socket, packet []byte) error {
	conn, group := c.connFor(family)
	if conn == nil {
		return fmt.Errorf("socket: no %s conn open", familyName(family))
	}

	var lastErr error
	for _, iface := range sock.ifaces {
		if err := conn.writeTo(packet, iface.Index, group); err != nil {
			logging.Log(c.opts.logger, "socket: failed to send on %s via %s: %s", familyName(family), iface.Name, err)
			lastErr = err
		}
	}

	return lastErr
}

func (c *Client) connFor(family Family) (familyConn, *net.UDPAddr) {
	switch family {
	case FamilyV4:
		if c.v4 == nil {
			return nil, nil
		}
		return c.v4, ipv4GroupAddress
	case FamilyV6:
		if c.v6 == nil {
			return nil, nil
		}
		return c.v6, ipv6GroupAddress
	default:
		return nil, nil
	}
}

func familyName(f Family) string {
	if f == FamilyV4 {
		return "ipv4"
	}
	return "ipv6"
}

func (c *Client) socketFor(network Network) (*Socket, error) {
	if sock, ok := c.sockets[network]; ok {
		return sock, nil
	}

	ifaces, err := c.opts.resolver.Resolve(network)
	if err != nil {
		return nil, err
	}

	sock := &Socket{
		id:      c.nextSocketID,
		network: network,
		ifaces:  ifaces,
	}
	c.nextSocketID++

	if err := c.ensureV4(); err != nil {
		logging.Log(c.opts.logger, "socket: ipv4 multicast unavailable: %s", err)
	} else if c.joinInterfaces(c.v4, ifaces) {
		sock.joinedV4 = true
	}

	if err := c.ensureV6(); err != nil {
		logging.Log(c.opts.logger, "socket: ipv6 multicast unavailable: %s", err)
	} else if c.joinInterfaces(c.v6, ifaces) {
		sock.joinedV6 = true
	}

	if !sock.joinedV4 && !sock.joinedV6 {
		return nil, &NoInterfacesError{Network: network}
	}

	c.sockets[network] = sock
	return sock, nil
}

func (c *Client) joinInterfaces(conn familyConn, ifaces []net.Interface) bool {
	joined := false

	for _, iface := range ifaces {
		if err := conn.joinGroup(iface); err != nil {
			logging.Log(c.opts.logger, "socket: unable to join multicast group on %s: %s", iface.Name, err)
			continue
		}
		joined = true
	}

	return joined
}

func (c *Client) ensureV4() error {
	if c.v4 != nil {
		return nil
	}

	conn, err := newV4Conn()
	if err != nil {
		return err
	}

	c.v4 = conn
	c.readWG.Add(1)
	go c.readLoop(FamilyV4, conn)

	return nil
}

func (c *Client) ensureV6() error {
	if c.v6 != nil {
		return nil
	}

	conn, err := newV6Conn()
	if err != nil {
		return err
	}

	c.v6 = conn
	c.readWG.Add(1)
	go c.readLoop(FamilyV6, conn)

	return nil
}

func (c *Client) readLoop(family Family, conn familyConn) {
	defer c.readWG.Done()

	for {
		buf := getBuffer()

		n, ifIndex, src, err := conn.readFrom(buf)
		if err != nil {
			putBuffer(buf)
			return
		}

		data := buf[:n]
		ep := Endpoint{InterfaceIndex: ifIndex, Address: src}

		c.post(func() {
			c.dispatch(family, ep, data)
			putBuffer(data)
		})
	}
}

// dispatch decodes a received packet and routes it to the handler of
// every active socket that spans the interface it arrived on, for the
// family it arrived on (spec §4.4 "receive path").
func (c *Client) dispatch(family Family, ep Endpoint, data []byte) {
	m := &dns.Msg{}
	unpackErr := m.Unpack(data)

	for _, sock := range c.sockets {
		switch family {
		case FamilyV4:
			if !sock.joinedV4 {
				continue
			}
		case FamilyV6:
			if !sock.joinedV6 {
				continue
			}
		}

		if !sock.hasInterface(ep.InterfaceIndex) {
			continue
		}

		h := c.handlers[sock.id]
		if h == nil {
			continue
		}

		key := Key{Socket: sock.id, Network: sock.network}

		if unpackErr != nil {
			h.OnFailedToParse(unpackErr, key)
			continue
		}

		if m.Response {
			h.OnResponseReceived(m, key)
		} else {
			h.OnQueryReceived(m, key, ep)
		}
	}
}
