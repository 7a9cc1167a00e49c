package record

import (
	"sort"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/wire"
	"github.com/miekg/dns"
)

// Reply is the result of answering a set of questions (spec §4.1.1
// "get_reply").
type Reply struct {
	Answer     []dns.RR
	Additional []dns.RR

	// Unicast is true if the reply must be sent unicast to the querier,
	// either because the query requested it or because the querier is a
	// legacy (one-shot) resolver.
	Unicast bool
}

// GetReply answers a set of questions carried by a single incoming query
// packet, applying known-answer suppression (if enabled) and promoting
// SRV/TXT/address records as additional data. It returns false if every
// matched answer was suppressed (or nothing matched), in which case no
// reply should be sent at all.
func (r *Repository) GetReply(questions []dns.Question, knownAnswers []dns.RR, legacy bool) (Reply, bool) {
	var answer []dns.RR
	unicast := legacy || len(questions) > 0

	for _, q := range questions {
		wantsUnicast, qq := wire.WantsUnicastResponse(q)
		if !wantsUnicast && !legacy {
			unicast = false
		}
		answer = append(answer, r.answerQuestion(qq)...)
	}

	if r.opts.knownAnswerSuppressionEnabled {
		answer = suppressKnownAnswers(answer, knownAnswers)
	}

	if len(answer) == 0 {
		return Reply{}, false
	}

	return Reply{
		Answer:     answer,
		Additional: r.buildAdditionals(answer),
		Unicast:    unicast,
	}, true
}

// answerQuestion returns every non-probing record matching q's name and
// type (TypeANY matches every type at the name).
func (r *Repository) answerQuestion(q dns.Question) []dns.RR {
	name := foldName(q.Name)

	var out []dns.RR
	for _, ri := range r.allRecords() {
		if ri.name() != name {
			continue
		}
		if q.Qtype != dns.TypeANY && ri.rrtype() != q.Qtype {
			continue
		}
		out = append(out, r.wireRR(ri))
	}

	return out
}

// buildAdditionals promotes the records named by answer's PTR/SRV targets
// (spec §12 "Additional-record promotion rules") and appends one NSEC
// record per distinct answer name (spec §4.1.2).
func (r *Repository) buildAdditionals(answer []dns.RR) []dns.RR {
	present := map[string]bool{}
	for _, rr := range answer {
		present[recordKey(rr)] = true
	}

	var additional []dns.RR
	add := func(rr dns.RR) {
		k := recordKey(rr)
		if present[k] {
			return
		}
		present[k] = true
		additional = append(additional, rr)
	}

	for _, rr := range answer {
		switch v := rr.(type) {
		case *dns.PTR:
			r.promoteInstance(foldName(v.Ptr), add)
		case *dns.SRV:
			r.promoteAddresses(foldName(v.Target), add)
		}
	}

	additional = append(additional, buildNSECs(answer)...)

	return additional
}

// promoteInstance adds the SRV and TXT records at name, and in turn the
// address records of the SRV's target.
func (r *Repository) promoteInstance(name string, add func(dns.RR)) {
	for _, ri := range r.allRecords() {
		if ri.name() != name {
			continue
		}

		switch t := ri.rrtype(); t {
		case dns.TypeSRV:
			add(r.wireRR(ri))
			if srv, ok := ri.RR.(*dns.SRV); ok {
				r.promoteAddresses(foldName(srv.Target), add)
			}
		case dns.TypeTXT:
			add(r.wireRR(ri))
		}
	}
}

// promoteAddresses adds the A/AAAA records at name.
func (r *Repository) promoteAddresses(name string, add func(dns.RR)) {
	for _, ri := range r.allRecords() {
		if ri.name() != name {
			continue
		}
		if t := ri.rrtype(); t == dns.TypeA || t == dns.TypeAAAA {
			add(r.wireRR(ri))
		}
	}
}

// buildNSECs groups answer by name and synthesizes, for each distinct
// name, an NSEC record asserting exactly the set of types present at that
// name. The cache-flush bit is set on the NSEC if any of the grouped
// records carried it.
func buildNSECs(answer []dns.RR) []dns.RR {
	type group struct {
		name   string
		types  []uint16
		ttl    uint32
		unique bool
	}

	var order []string
	groups := map[string]*group{}

	for _, rr := range answer {
		h := rr.Header()
		name := h.Name

		g, ok := groups[name]
		if !ok {
			g = &group{name: name, ttl: h.Ttl}
			groups[name] = g
			order = append(order, name)
		} else if h.Ttl < g.ttl {
			g.ttl = h.Ttl
		}

		if isUnique, _ := wire.IsUniqueRecord(rr); isUnique {
			g.unique = true
		}
		g.types = append(g.types, h.Rrtype)
	}

	var out []dns.RR
	for _, name := range order {
		g := groups[name]

		var nsec dns.RR = newNSEC(name, uint64(g.ttl)*1000, dedupTypes(g.types))
		if g.unique {
			nsec = wire.SetUniqueRecord(nsec)
		}

		out = append(out, nsec)
	}

	return out
}

// dedupTypes returns types deduplicated and sorted in ascending numeric
// order, matching the canonical ordering an NSEC type bitmap is encoded in.
func dedupTypes(types []uint16) []uint16 {
	seen := map[uint16]bool{}
	var out []uint16

	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// recordKey identifies a record by name, type, and rendered form, so that
// promotion and suppression can compare records for exact equality without
// regard to TTL or class.
func recordKey(rr dns.RR) string {
	_, plain := wire.IsUniqueRecord(rr)
	h := plain.Header()

	cp := dns.Copy(plain)
	cp.Header().Ttl = 0

	return foldName(h.Name) + "|" + cp.String()
}

// suppressKnownAnswers drops any answer record for which known already
// contains a record with the same name/type/rdata whose TTL is at least
// half the answer record's TTL (RFC 6762 §7.1 known-answer suppression).
func suppressKnownAnswers(answer []dns.RR, known []dns.RR) []dns.RR {
	var out []dns.RR

	for _, rr := range answer {
		suppressed := false

		for _, k := range known {
			if !sameRData(rr, k) {
				continue
			}

			recordTTLMillis := uint64(rr.Header().Ttl) * 1000
			knownTTLMillis := uint64(k.Header().Ttl) * 1000

			if knownTTLMillis >= recordTTLMillis/2 {
				suppressed = true
			}
			break
		}

		if !suppressed {
			out = append(out, rr)
		}
	}

	return out
}

// sameRData returns true if a and b have the same name, type, and rdata,
// ignoring TTL and class.
func sameRData(a, b dns.RR) bool {
	if a.Header().Rrtype != b.Header().Rrtype {
		return false
	}
	if foldName(a.Header().Name) != foldName(b.Header().Name) {
		return false
	}

	ac := dns.Copy(a)
	bc := dns.Copy(b)
	ac.Header().Ttl = 0
	bc.Header().Ttl = 0
	ac.Header().Class = dns.ClassINET
	bc.Header().Class = dns.ClassINET
	bc.Header().Name = ac.Header().Name

	return ac.String() == bc.String()
}
