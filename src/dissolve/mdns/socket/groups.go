package socket

import "github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns"

var (
	ipv4GroupAddress = mdns.IPv4Address
	ipv6GroupAddress = mdns.IPv6Address
)
