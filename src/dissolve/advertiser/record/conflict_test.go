package record_test

import (
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/record"
	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Repository.GetConflictingServices", func() {
	var r *record.Repository

	BeforeEach(func() {
		r = record.New()
	})

	It("reports a conflict against an active service's SRV record", func() {
		activeService(r, 1, "Kitchen Printer", nil)

		foreign := &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   "Kitchen\\ Printer._http._tcp.local.",
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    120,
			},
			Priority: 0,
			Weight:   0,
			Port:     9999,
			Target:   "some-other-host.local.",
		}

		ids := r.GetConflictingServices(foreign)
		Expect(ids).To(ConsistOf(record.ID(1)))
	})

	It("reports a conflict against a probing service", func() {
		_, _, err := r.AddService(1, httpServiceInfo("Kitchen Printer"), nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = r.SetServiceProbing(1)
		Expect(err).NotTo(HaveOccurred())

		foreign := &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   "Kitchen\\ Printer._http._tcp.local.",
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    120,
			},
			Target: "some-other-host.local.",
			Port:   1,
		}

		ids := r.GetConflictingServices(foreign)
		Expect(ids).To(ConsistOf(record.ID(1)))
	})

	It("does not report a conflict when the rdata is identical to our own", func() {
		activeService(r, 1, "Kitchen Printer", nil)

		echoed := &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   "Kitchen\\ Printer._http._tcp.local.",
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    120,
			},
			Priority: 0,
			Weight:   0,
			Port:     8080,
			Target:   r.HostName(),
		}

		ids := r.GetConflictingServices(echoed)
		Expect(ids).To(BeEmpty())
	})

	It("ignores a goodbye (TTL zero) record", func() {
		activeService(r, 1, "Kitchen Printer", nil)

		goodbye := &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   "Kitchen\\ Printer._http._tcp.local.",
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    0,
			},
			Target: "some-other-host.local.",
			Port:   1,
		}

		ids := r.GetConflictingServices(goodbye)
		Expect(ids).To(BeEmpty())
	})

	It("does not report a conflict for a shared (PTR) name", func() {
		activeService(r, 1, "Kitchen Printer", nil)

		foreign := &dns.PTR{
			Hdr: dns.RR_Header{
				Name:   "_http._tcp.local.",
				Rrtype: dns.TypePTR,
				Class:  dns.ClassINET,
				Ttl:    4500,
			},
			Ptr: "Some\\ Other\\ Printer._http._tcp.local.",
		}

		ids := r.GetConflictingServices(foreign)
		Expect(ids).To(BeEmpty())
	})

	It("does not report a conflict for an unrelated name", func() {
		activeService(r, 1, "Kitchen Printer", nil)

		foreign := &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   "Other\\ Printer._http._tcp.local.",
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    120,
			},
			Target: "some-other-host.local.",
			Port:   1,
		}

		ids := r.GetConflictingServices(foreign)
		Expect(ids).To(BeEmpty())
	})
})
