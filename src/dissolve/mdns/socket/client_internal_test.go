package socket

import (
	"net"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeConn is a familyConn double that records every writeTo call instead
// of touching a real UDP socket. It lets SendMulticastRequest's routing
// logic (spec §8 scenario 6: exact-network match, per-family join check,
// IPv6-only fallback) be exercised without binding to the network.
type fakeConn struct {
	mu     sync.Mutex
	writes []fakeWrite
}

type fakeWrite struct {
	data    []byte
	ifIndex int
	dst     *net.UDPAddr
}

func (c *fakeConn) joinGroup(net.Interface) error { return nil }

func (c *fakeConn) readFrom([]byte) (int, int, *net.UDPAddr, error) {
	select {}
}

func (c *fakeConn) writeTo(data []byte, ifIndex int, dst *net.UDPAddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), data...)
	c.writes = append(c.writes, fakeWrite{data: cp, ifIndex: ifIndex, dst: dst})
	return nil
}

func (c *fakeConn) close() error { return nil }

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// newTestClient returns a running Client whose v4/v6 conns and socket
// table are populated directly, bypassing socketFor/ensureV4/ensureV6 so
// no real socket is ever opened.
func newTestClient(v4, v6 familyConn, sockets map[Network]*Socket) *Client {
	if sockets == nil {
		sockets = map[Network]*Socket{}
	}

	c := &Client{
		opts:      Options{resolver: ResolverFunc(AllMulticastInterfaces)},
		cmds:      make(chan func(), 64),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		v4:        v4,
		v6:        v6,
		sockets:   sockets,
		listeners: map[Token]*listenerState{},
		handlers:  map[ID]Handler{},
	}

	go c.run()

	return c
}

var _ = Describe("Client.SendMulticastRequest", func() {
	eth0 := net.Interface{Index: 1, Name: "eth0"}

	It("sends only to sockets whose network exactly matches the target", func() {
		v4 := &fakeConn{}
		office := &Socket{network: "office", ifaces: []net.Interface{eth0}, joinedV4: true}
		warehouse := &Socket{network: "warehouse", ifaces: []net.Interface{eth0}, joinedV4: true}

		c := newTestClient(v4, nil, map[Network]*Socket{
			"office":    office,
			"warehouse": warehouse,
		})
		defer c.Shutdown()

		Expect(c.SendMulticastRequest([]byte("hello"), FamilyV4, "office", false)).To(Succeed())
		Expect(v4.writeCount()).To(Equal(1))
	})

	It("skips a socket that has not joined the requested family", func() {
		v4 := &fakeConn{}
		v6 := &fakeConn{}
		office := &Socket{network: "office", ifaces: []net.Interface{eth0}, joinedV4: true}

		c := newTestClient(v4, v6, map[Network]*Socket{"office": office})
		defer c.Shutdown()

		Expect(c.SendMulticastRequest([]byte("hello"), FamilyV6, "office", false)).To(Succeed())
		Expect(v6.writeCount()).To(Equal(0))
		Expect(v4.writeCount()).To(Equal(0))
	})

	It("skips the v6 send for a dual-stack network when ipv6OnIPv6OnlyOnly is set", func() {
		v4 := &fakeConn{}
		v6 := &fakeConn{}
		office := &Socket{network: "office", ifaces: []net.Interface{eth0}, joinedV4: true, joinedV6: true}

		c := newTestClient(v4, v6, map[Network]*Socket{"office": office})
		defer c.Shutdown()

		Expect(c.SendMulticastRequest([]byte("hello"), FamilyV6, "office", true)).To(Succeed())
		Expect(v6.writeCount()).To(Equal(0))
	})

	It("still sends v6 for a dual-stack network when ipv6OnIPv6OnlyOnly is not set", func() {
		v4 := &fakeConn{}
		v6 := &fakeConn{}
		office := &Socket{network: "office", ifaces: []net.Interface{eth0}, joinedV4: true, joinedV6: true}

		c := newTestClient(v4, v6, map[Network]*Socket{"office": office})
		defer c.Shutdown()

		Expect(c.SendMulticastRequest([]byte("hello"), FamilyV6, "office", false)).To(Succeed())
		Expect(v6.writeCount()).To(Equal(1))
	})

	It("sends v6 for an IPv6-only network regardless of ipv6OnIPv6OnlyOnly", func() {
		v6 := &fakeConn{}
		office := &Socket{network: "office", ifaces: []net.Interface{eth0}, joinedV6: true}

		c := newTestClient(nil, v6, map[Network]*Socket{"office": office})
		defer c.Shutdown()

		Expect(c.SendMulticastRequest([]byte("hello"), FamilyV6, "office", true)).To(Succeed())
		Expect(v6.writeCount()).To(Equal(1))
	})
})

var _ = Describe("Client.SendUnicast", func() {
	It("routes to the v4 conn for an IPv4 destination", func() {
		v4 := &fakeConn{}
		c := newTestClient(v4, &fakeConn{}, nil)
		defer c.Shutdown()

		dst := &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 5353}
		Expect(c.SendUnicast([]byte("hello"), dst, 1)).To(Succeed())
		Expect(v4.writeCount()).To(Equal(1))
	})

	It("routes to the v6 conn for an IPv6 destination", func() {
		v6 := &fakeConn{}
		c := newTestClient(&fakeConn{}, v6, nil)
		defer c.Shutdown()

		dst := &net.UDPAddr{IP: net.ParseIP("fe80::1"), Port: 5353}
		Expect(c.SendUnicast([]byte("hello"), dst, 1)).To(Succeed())
		Expect(v6.writeCount()).To(Equal(1))
	})

	It("fails when the needed conn was never opened", func() {
		c := newTestClient(nil, nil, nil)
		defer c.Shutdown()

		dst := &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 5353}
		Expect(c.SendUnicast([]byte("hello"), dst, 1)).To(HaveOccurred())
	})
})
