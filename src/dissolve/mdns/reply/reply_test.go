package reply_test

import (
	"net"
	"sync"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/reply"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/socket"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeRequester is a socket.Requester double that records every send
// instead of touching a real socket.Client.
type fakeRequester struct {
	mu sync.Mutex

	unicasts   []unicastCall
	multicasts []multicastCall
}

type unicastCall struct {
	packet []byte
	dst    *net.UDPAddr
	ifIdx  int
}

type multicastCall struct {
	packet             []byte
	family             socket.Family
	network            socket.Network
	ipv6OnIPv6OnlyOnly bool
}

func (f *fakeRequester) NotifyNetworkRequested(socket.Token, socket.Network, socket.Handler, func(*socket.Socket)) error {
	return nil
}

func (f *fakeRequester) NotifyNetworkUnrequested(socket.Token) error { return nil }

func (f *fakeRequester) SendMulticastRequest(packet []byte, family socket.Family, targetNetwork socket.Network, ipv6OnIPv6OnlyOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multicasts = append(f.multicasts, multicastCall{packet: packet, family: family, network: targetNetwork, ipv6OnIPv6OnlyOnly: ipv6OnIPv6OnlyOnly})
	return nil
}

func (f *fakeRequester) SendUnicast(packet []byte, dst *net.UDPAddr, ifIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unicasts = append(f.unicasts, unicastCall{packet: packet, dst: dst, ifIdx: ifIndex})
	return nil
}

func (f *fakeRequester) multicastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.multicasts)
}

func (f *fakeRequester) unicastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unicasts)
}

var _ = Describe("Sender", func() {
	It("sends queries and announcements to both families on the multicast group", func() {
		client := &fakeRequester{}
		s := reply.New(client, socket.Network("office"), false)

		Expect(s.SendQuery([]byte("probe"))).To(Succeed())
		Expect(client.multicastCount()).To(Equal(2))

		Expect(s.SendAnnouncement([]byte("announce"))).To(Succeed())
		Expect(client.multicastCount()).To(Equal(4))

		Expect(client.unicastCount()).To(Equal(0))
	})

	It("routes a unicast reply straight to the querier's address", func() {
		client := &fakeRequester{}
		s := reply.New(client, socket.Network("office"), false)

		src := socket.Endpoint{InterfaceIndex: 3, Address: &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 9999}}
		Expect(s.SendReply([]byte("reply"), true, src)).To(Succeed())

		Expect(client.unicastCount()).To(Equal(1))
		Expect(client.multicastCount()).To(Equal(0))
		Expect(client.unicasts[0].dst).To(Equal(src.Address))
		Expect(client.unicasts[0].ifIdx).To(Equal(3))
	})

	It("routes a multicast reply to both families, passing through the IPv6-only fallback flag", func() {
		client := &fakeRequester{}
		s := reply.New(client, socket.Network("office"), true)

		src := socket.Endpoint{InterfaceIndex: 1, Address: &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 5353}}
		Expect(s.SendReply([]byte("reply"), false, src)).To(Succeed())

		Expect(client.unicastCount()).To(Equal(0))
		Expect(client.multicastCount()).To(Equal(2))

		var sawV4, sawV6 bool
		for _, m := range client.multicasts {
			Expect(m.network).To(Equal(socket.Network("office")))
			switch m.family {
			case socket.FamilyV4:
				sawV4 = true
				Expect(m.ipv6OnIPv6OnlyOnly).To(BeFalse())
			case socket.FamilyV6:
				sawV6 = true
				Expect(m.ipv6OnIPv6OnlyOnly).To(BeTrue())
			}
		}
		Expect(sawV4).To(BeTrue())
		Expect(sawV6).To(BeTrue())
	})
})
