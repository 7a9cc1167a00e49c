package record

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/names"
)

// Local is the domain that every record published by this repository is
// qualified under.
var Local = names.FQDN("local.")

// serviceEnumerationName is the name queried to perform "service type
// enumeration" (RFC 6763 §9), shared by every domain.
var serviceEnumerationName = names.UDN("_services._dns-sd._udp").Qualify(Local)

// escapeInstanceLabel backslash-escapes the characters that are special in
// DNS presentation format (dot, space, backslash, quotes, '@', ';' and
// parentheses) in a service instance name, so that the concatenated
// Service Instance Name has the same textual form github.com/miekg/dns
// gives a decoded name. Bytes outside printable ASCII are left as they are.
//
// See https://tools.ietf.org/html/rfc6763#section-4.3.
func escapeInstanceLabel(n string) string {
	var b strings.Builder
	b.Grow(len(n) * 2)

	for i := 0; i < len(n); i++ {
		c := n[i]
		if strings.IndexByte(". \\\"'@;()", c) != -1 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// instanceFQDN returns the fully-qualified Service Instance Name for the
// given instance name and service type, such as
// "Kitchen\ Printer._http._tcp.local.".
func instanceFQDN(instanceName string, t ServiceType) names.FQDN {
	esc := escapeInstanceLabel(instanceName)
	return names.FQDN(esc + "." + t.FQDN(Local).String())
}

// subtypeFQDN returns the name at which a subtype PTR is published, such as
// "_printer._sub._http._tcp.local.".
func subtypeFQDN(subtype string, t ServiceType) names.FQDN {
	return names.FQDN(subtype + "._sub." + t.FQDN(Local).String())
}

// reverseDNSName returns the PTR name used to resolve ip to a host name
// ("reverse DNS"), per spec §3/§6.
//
// IPv4: "a.b.c.d" -> "d.c.b.a.in-addr.arpa.".
// IPv6: 32 reversed nibbles + "ip6.arpa.".
func reverseDNSName(ip net.IP) names.FQDN {
	if v4 := ip.To4(); v4 != nil {
		return names.FQDN(fmt.Sprintf(
			"%d.%d.%d.%d.in-addr.arpa.",
			v4[3], v4[2], v4[1], v4[0],
		))
	}

	v6 := ip.To16()

	var buf bytes.Buffer
	for idx := len(v6) - 1; idx >= 0; idx-- {
		octet := int64(v6[idx])
		high := octet >> 4
		low := octet & 0xf

		buf.WriteString(strconv.FormatInt(low, 16))
		buf.WriteByte('.')
		buf.WriteString(strconv.FormatInt(high, 16))
		buf.WriteByte('.')
	}
	buf.WriteString("ip6.arpa.")

	return names.FQDN(buf.String())
}

// foldName returns the case-folded comparison key for a DNS name. All name
// matching in the repository (question dispatch, conflict detection, name
// uniqueness) is case-insensitive per RFC 6762 §18.14 / spec §4.1.4.
func foldName(n string) string {
	return strings.ToLower(strings.TrimSuffix(n, "."))
}
