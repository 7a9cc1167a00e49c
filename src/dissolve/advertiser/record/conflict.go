package record

import "github.com/miekg/dns"

// GetConflictingServices inspects a record observed on the wire (typically
// one authored by another responder) and returns the ids of every service
// whose unique records share its name but disagree in rdata or class (spec
// §4.1.3 "Conflict detection"). A TTL of zero (a goodbye) never conflicts,
// and neither does an incoming record that is identical to our own — a
// responder commonly receives its own announcements looped back.
//
// Probing services are included: a perceived conflict during probing must
// abort the probe just as one against an active service must trigger
// rename/re-announcement.
func (r *Repository) GetConflictingServices(rr dns.RR) []ID {
	if rr.Header().Ttl == 0 {
		return nil
	}

	name := foldName(rr.Header().Name)

	seen := map[ID]bool{}
	var ids []ID

	for _, id := range r.order {
		e := r.services[id]

		for _, ri := range e.records {
			if ri.IsSharedName {
				continue
			}
			if ri.name() != name || ri.rrtype() != rr.Header().Rrtype {
				continue
			}
			if !differsInRData(ri.RR, rr) {
				continue
			}

			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	return ids
}

// differsInRData returns true if a and b disagree in rdata or RR class.
func differsInRData(a, b dns.RR) bool {
	if a.Header().Class&^uniqueRecordBitMask != b.Header().Class&^uniqueRecordBitMask {
		return true
	}
	return !sameRData(a, b)
}

// uniqueRecordBitMask strips the cache-flush bit before comparing classes,
// since it is wire framing, not part of the record's semantic class.
const uniqueRecordBitMask = 1 << 15
