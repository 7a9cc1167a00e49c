package record_test

import (
	"net"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/record"
	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func httpServiceInfo(instance string) record.ServiceInfo {
	t, err := record.ParseServiceType("_http._tcp")
	Expect(err).NotTo(HaveOccurred())

	return record.ServiceInfo{
		InstanceName: instance,
		Type:         t,
		Port:         8080,
		Attributes: record.Attributes{
			{Key: "path", Value: []byte("/"), HasValue: true},
		},
	}
}

var _ = Describe("Repository", func() {
	var r *record.Repository

	BeforeEach(func() {
		r = record.New()
	})

	Describe("NewRepository", func() {
		It("generates a unique .local host name immediately", func() {
			Expect(r.HostName()).To(HaveSuffix(".local."))
		})

		It("generates a different host name for each repository", func() {
			other := record.New()
			Expect(r.HostName()).NotTo(Equal(other.HostName()))
		})
	})

	Describe("AddService", func() {
		It("registers a new service in the probing state", func() {
			_, replaced, err := r.AddService(1, httpServiceInfo("Kitchen Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(replaced).To(BeFalse())
			Expect(r.IsProbing(1)).To(BeTrue())
		})

		It("rejects a duplicate id", func() {
			_, _, err := r.AddService(1, httpServiceInfo("A"), nil)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = r.AddService(1, httpServiceInfo("B"), nil)
			Expect(err).To(MatchError(&record.DuplicateIDError{ID: 1}))
		})

		It("rejects an instance name already owned by an active service", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Kitchen Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.OnProbingSucceeded(1)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = r.AddService(2, httpServiceInfo("Kitchen Printer"), nil)
			Expect(err).To(MatchError(&record.NameConflictError{InstanceName: "Kitchen Printer"}))
		})

		It("is case-insensitive when detecting instance name collisions", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Kitchen Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.OnProbingSucceeded(1)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = r.AddService(2, httpServiceInfo("KITCHEN PRINTER"), nil)
			Expect(err).To(HaveOccurred())
		})

		It("displaces an exiting service that owned the same instance name", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Kitchen Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.OnProbingSucceeded(1)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.ExitService(1)
			Expect(err).NotTo(HaveOccurred())

			replacedID, replaced, err := r.AddService(2, httpServiceInfo("Kitchen Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(replaced).To(BeTrue())
			Expect(replacedID).To(Equal(record.ID(1)))

			Expect(r.RemoveService(1)).To(HaveOccurred())
		})

		It("rejects malformed service info", func() {
			info := httpServiceInfo("")
			_, _, err := r.AddService(1, info, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RenameService", func() {
		It("renames an active service and leaves it probing again", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.OnProbingSucceeded(1)
			Expect(err).NotTo(HaveOccurred())

			Expect(r.RenameService(1, "Printer (2)")).To(Succeed())

			_, err = r.SetServiceProbing(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.IsProbing(1)).To(BeTrue())
		})

		It("fails for an unknown id", func() {
			err := r.RenameService(99, "X")
			Expect(err).To(MatchError(&record.UnknownIDError{ID: 99}))
		})

		It("frees the old instance name for reuse", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(r.RenameService(1, "Printer (2)")).To(Succeed())

			_, _, err = r.AddService(2, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects renaming a service that is already exiting", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.ExitService(1)
			Expect(err).NotTo(HaveOccurred())

			err = r.RenameService(1, "Printer (2)")
			Expect(err).To(MatchError(&record.InvalidStateError{ID: 1, State: record.StateExiting}))
		})
	})

	Describe("ExitService", func() {
		It("returns nil, nil the second time it is called", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())

			info, err := r.ExitService(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(info).NotTo(BeNil())

			info, err = r.ExitService(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(BeNil())
		})

		It("returns only PTR records, all with TTL zero", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())

			info, err := r.ExitService(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Answer).NotTo(BeEmpty())

			for _, rr := range info.Answer {
				Expect(rr.Header().Rrtype).To(Equal(dns.TypePTR))
				Expect(rr.Header().Ttl).To(BeEquivalentTo(0))
			}
		})

		It("fails for an unknown id", func() {
			_, err := r.ExitService(99)
			Expect(err).To(MatchError(&record.UnknownIDError{ID: 99}))
		})
	})

	Describe("SetServiceProbing", func() {
		It("fails for an unknown id", func() {
			_, err := r.SetServiceProbing(99)
			Expect(err).To(MatchError(&record.UnknownIDError{ID: 99}))
		})

		It("rejects probing a service that is already exiting", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.ExitService(1)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.SetServiceProbing(1)
			Expect(err).To(MatchError(&record.InvalidStateError{ID: 1, State: record.StateExiting}))
		})
	})

	Describe("RemoveService / ClearServices", func() {
		It("purges a service immediately", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(r.RemoveService(1)).To(Succeed())
			Expect(r.RemoveService(1)).To(MatchError(&record.UnknownIDError{ID: 1}))
		})

		It("removes every registered service and returns their ids", func() {
			_, _, err := r.AddService(1, httpServiceInfo("A"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = r.AddService(2, httpServiceInfo("B"), nil)
			Expect(err).NotTo(HaveOccurred())

			ids := r.ClearServices()
			Expect(ids).To(ConsistOf(record.ID(1), record.ID(2)))
			Expect(r.RemoveService(1)).To(HaveOccurred())
			Expect(r.RemoveService(2)).To(HaveOccurred())
		})
	})

	Describe("UpdateAddresses / GetReverseDNSAddress", func() {
		It("derives the reverse-DNS name for an IPv4 address", func() {
			ip := net.ParseIP("192.168.60.30")
			Expect(r.GetReverseDNSAddress(ip)).To(Equal("30.60.168.192.in-addr.arpa."))
		})

		It("derives the reverse-DNS name for an IPv6 address", func() {
			ip := net.ParseIP("2001:db8::567:89ab")
			Expect(r.GetReverseDNSAddress(ip)).To(Equal(
				"b.a.9.8.7.6.5.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.",
			))
		})

		It("publishes an A and a reverse PTR record for an IPv4 address", func() {
			r.UpdateAddresses([]net.IP{net.ParseIP("192.168.60.30")})

			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			info, err := r.OnProbingSucceeded(1)
			Expect(err).NotTo(HaveOccurred())

			var hasA, hasPTR bool
			for _, rr := range info.Answer {
				switch rr.Header().Rrtype {
				case dns.TypeA:
					hasA = true
				case dns.TypePTR:
					if rr.Header().Name == "30.60.168.192.in-addr.arpa." {
						hasPTR = true
					}
				}
			}
			Expect(hasA).To(BeTrue())
			Expect(hasPTR).To(BeTrue())
		})
	})

	Describe("GetOffloadPacket", func() {
		It("builds a standing announcement without mutating repository state", func() {
			_, _, err := r.AddService(1, httpServiceInfo("Printer"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.OnProbingSucceeded(1)
			Expect(err).NotTo(HaveOccurred())

			before := r.IsProbing(1)

			msg, err := r.GetOffloadPacket(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Answer).NotTo(BeEmpty())
			Expect(msg.Extra).NotTo(BeEmpty())

			Expect(r.IsProbing(1)).To(Equal(before))
		})

		It("fails for an unknown id", func() {
			_, err := r.GetOffloadPacket(99)
			Expect(err).To(MatchError(&record.UnknownIDError{ID: 99}))
		})
	})
})
