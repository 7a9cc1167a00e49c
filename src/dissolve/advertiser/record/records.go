package record

import (
	"net"

	"github.com/miekg/dns"
)

// RecordInfo is the repository's internal wrapper around a single DNS
// resource record (spec §3 "RecordInfo").
type RecordInfo struct {
	// RR is the normalized record itself. ANY is not representable as an
	// RR; it only ever appears as a dns.Question within a probe.
	RR dns.RR

	// ServiceID identifies the service that owns this record. HasService
	// is false for general (host-level) records, which no service owns.
	ServiceID  ID
	HasService bool

	// IsSharedName is true for a service's type, subtype and enumeration
	// PTRs, which several responders may legitimately publish; false for
	// SRV/TXT/A/AAAA and the host's reverse-DNS PTR, which must resolve to
	// exactly this host.
	IsSharedName bool

	// IsProbing is true while the owning service is still probing for name
	// uniqueness; general records are never probing. Records of a probing
	// service are excluded from query answers, but are still checked by
	// conflict detection.
	IsProbing bool
}

// name returns the case-folded name of the wrapped record, for grouping and
// lookup.
func (ri *RecordInfo) name() string {
	return foldName(ri.RR.Header().Name)
}

// rrtype returns the wrapped record's RR type.
func (ri *RecordInfo) rrtype() uint16 {
	return ri.RR.Header().Rrtype
}

// ttlMillis returns the wrapped record's TTL in milliseconds.
func (ri *RecordInfo) ttlMillis() uint64 {
	return uint64(ri.RR.Header().Ttl) * 1000
}

func newPTR(name, target string, ttl uint64) *dns.PTR {
	return &dns.PTR{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypePTR,
			Class:  dns.ClassINET,
			Ttl:    uint32(ttl / 1000),
		},
		Ptr: target,
	}
}

func newSRV(name, target string, port uint16, ttl uint64) *dns.SRV {
	return &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeSRV,
			Class:  dns.ClassINET,
			Ttl:    uint32(ttl / 1000),
		},
		Priority: 0,
		Weight:   0,
		Port:     port,
		Target:   target,
	}
}

func newTXT(name string, attrs Attributes, ttl uint64) *dns.TXT {
	txt := attrs.txtStrings()
	if len(txt) == 0 {
		// RFC 6763 §6.1: a TXT record with no attributes still carries a
		// single zero-length string.
		txt = []string{""}
	}

	return &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
			Ttl:    uint32(ttl / 1000),
		},
		Txt: txt,
	}
}

func newA(name string, ip net.IP, ttl uint64) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    uint32(ttl / 1000),
		},
		A: ip,
	}
}

func newAAAA(name string, ip net.IP, ttl uint64) *dns.AAAA {
	return &dns.AAAA{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeAAAA,
			Class:  dns.ClassINET,
			Ttl:    uint32(ttl / 1000),
		},
		AAAA: ip,
	}
}

// newNSEC builds an NSEC record asserting that name carries exactly the
// given set of RR types (spec §4.1.2).
func newNSEC(name string, ttl uint64, types []uint16) *dns.NSEC {
	return &dns.NSEC{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeNSEC,
			Class:  dns.ClassINET,
			Ttl:    uint32(ttl / 1000),
		},
		NextDomain: name,
		TypeBitMap: types,
	}
}
