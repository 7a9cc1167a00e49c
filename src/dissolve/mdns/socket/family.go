package socket

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns"
)

// familyConn is one address family's process-wide multicast UDP conn. A
// Client holds at most one of these per family, shared by every Socket
// that joins interfaces to that family's group (mirroring how a single
// multicast-enabled UDP fd can be joined to many interfaces at once).
type familyConn interface {
	joinGroup(iface net.Interface) error
	readFrom(buf []byte) (n int, ifIndex int, src *net.UDPAddr, err error)
	writeTo(data []byte, ifIndex int, dst *net.UDPAddr) error
	close() error
}

type v4Conn struct {
	pc *ipv4.PacketConn
}

func newV4Conn() (*v4Conn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{
		IP:   net.ParseIP("224.0.0.0"),
		Port: mdns.Port,
	})
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		conn.Close()
		return nil, err
	}

	return &v4Conn{pc: pc}, nil
}

func (c *v4Conn) joinGroup(iface net.Interface) error {
	return c.pc.JoinGroup(&iface, &net.UDPAddr{IP: mdns.IPv4Group})
}

func (c *v4Conn) readFrom(buf []byte) (int, int, *net.UDPAddr, error) {
	n, cm, src, err := c.pc.ReadFrom(buf)
	if err != nil {
		return 0, 0, nil, err
	}

	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}

	return n, ifIndex, src.(*net.UDPAddr), nil
}

func (c *v4Conn) writeTo(data []byte, ifIndex int, dst *net.UDPAddr) error {
	_, err := c.pc.WriteTo(data, &ipv4.ControlMessage{IfIndex: ifIndex}, dst)
	return err
}

func (c *v4Conn) close() error {
	return c.pc.Close()
}

type v6Conn struct {
	pc *ipv6.PacketConn
}

func newV6Conn() (*v6Conn, error) {
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{
		IP:   net.ParseIP("ff02::"),
		Port: mdns.Port,
	})
	if err != nil {
		return nil, err
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv6.FlagInterface, true); err != nil {
		conn.Close()
		return nil, err
	}

	return &v6Conn{pc: pc}, nil
}

func (c *v6Conn) joinGroup(iface net.Interface) error {
	return c.pc.JoinGroup(&iface, &net.UDPAddr{IP: mdns.IPv6Group})
}

func (c *v6Conn) readFrom(buf []byte) (int, int, *net.UDPAddr, error) {
	n, cm, src, err := c.pc.ReadFrom(buf)
	if err != nil {
		return 0, 0, nil, err
	}

	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}

	return n, ifIndex, src.(*net.UDPAddr), nil
}

func (c *v6Conn) writeTo(data []byte, ifIndex int, dst *net.UDPAddr) error {
	_, err := c.pc.WriteTo(data, &ipv6.ControlMessage{IfIndex: ifIndex}, dst)
	return err
}

func (c *v6Conn) close() error {
	return c.pc.Close()
}
