package names_test

import (
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/names"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("FQDN", func() {
	It("requires a trailing dot", func() {
		_, err := names.ParseFQDN("local")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a leading dot", func() {
		_, err := names.ParseFQDN(".local.")
		Expect(err).To(HaveOccurred())
	})

	It("accepts a well-formed name", func() {
		n, err := names.ParseFQDN("local.")
		Expect(err).NotTo(HaveOccurred())
		Expect(n.String()).To(Equal("local."))
	})

	It("is already qualified, and Qualify is a no-op", func() {
		n := names.MustParseFQDN("local.")
		Expect(n.IsQualified()).To(BeTrue())
		Expect(n.Qualify(names.MustParseFQDN("example.com."))).To(Equal(n))
	})

	It("splits into labels", func() {
		n := names.MustParseFQDN("_http._tcp.local.")
		Expect(n.Labels()).To(Equal([]names.Label{"_http", "_tcp", "local"}))
	})

	It("panics when MustParseFQDN is given an invalid name", func() {
		Expect(func() { names.MustParseFQDN("local") }).To(Panic())
	})
})

var _ = Describe("Host", func() {
	It("rejects a name containing a dot", func() {
		_, err := names.ParseHost("kitchen.printer")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an empty name", func() {
		_, err := names.ParseHost("")
		Expect(err).To(HaveOccurred())
	})

	It("qualifies against a domain", func() {
		h := names.MustParseHost("kitchen-printer")
		Expect(h.Qualify(names.MustParseFQDN("local.")).String()).To(Equal("kitchen-printer.local."))
	})
})

var _ = Describe("Label", func() {
	It("rejects a label containing a dot", func() {
		l := names.Label("a.b")
		Expect(l.Validate()).To(HaveOccurred())
	})

	It("qualifies against a domain", func() {
		l := names.Label("_tcp")
		Expect(l.Qualify(names.MustParseFQDN("local.")).String()).To(Equal("_tcp.local."))
	})
})

var _ = Describe("UDN", func() {
	It("rejects a leading dot", func() {
		_, err := names.Parse(".foo")
		Expect(err).To(HaveOccurred())
	})

	It("splits a multi-label name into its labels", func() {
		n := names.UDN("_http._tcp")
		Expect(n.Labels()).To(Equal([]names.Label{"_http", "_tcp"}))
	})

	It("qualifies against a domain", func() {
		n := names.UDN("_http._tcp")
		Expect(n.Qualify(names.MustParseFQDN("local.")).String()).To(Equal("_http._tcp.local."))
	})
})
