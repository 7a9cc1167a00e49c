// Package wire adapts the github.com/miekg/dns message/record codec to the
// framing rules mDNS imposes on top of plain DNS, per RFC 6762 §18.
//
// The codec itself (Msg.Pack/Msg.Unpack, the dns.RR variants) is treated as
// an external black box; this package only shapes the envelope — flags,
// question-class bits, and the RR-class "cache-flush" bit — the way the
// record repository and packet repeaters need it shaped.
package wire

import (
	"errors"

	"github.com/miekg/dns"
)

// NewQuery returns a new (empty) mDNS query message.
//
// If legacy is true, the query is being sent on behalf of a "one-shot"
// querier (RFC 6762 §6.7) that expects a conventional unicast response, in
// which case the query ID is not forced to zero.
//
// See https://tools.ietf.org/html/rfc6762#section-18.
func NewQuery(legacy bool, q ...dns.Question) *dns.Msg {
	m := &dns.Msg{
		Question: q,
	}

	// https://tools.ietf.org/html/rfc6762#section-18.1
	//
	// In multicast query messages, the Query Identifier SHOULD be set to
	// zero on transmission.
	if legacy {
		m.Id = dns.Id()
	}

	m.Opcode = dns.OpcodeQuery
	m.Authoritative = false
	m.Truncated = false
	m.RecursionDesired = false
	m.RecursionAvailable = false
	m.Zero = false
	m.AuthenticatedData = false
	m.CheckingDisabled = false
	m.Rcode = dns.RcodeSuccess

	// https://tools.ietf.org/html/rfc6762#section-18.14
	m.Compress = true

	return m
}

// NewResponse returns a new (empty) mDNS response message: flags
// response+authoritative (0x8400), no questions.
//
// See https://tools.ietf.org/html/rfc6762#section-18.
func NewResponse() *dns.Msg {
	m := &dns.Msg{}

	m.Response = true
	m.Opcode = dns.OpcodeQuery
	m.Authoritative = true
	m.Truncated = false
	m.RecursionDesired = false
	m.RecursionAvailable = false
	m.Zero = false
	m.AuthenticatedData = false
	m.CheckingDisabled = false
	m.Rcode = dns.RcodeSuccess
	m.Compress = true

	// https://tools.ietf.org/html/rfc6762#section-18.1
	//
	// In multicast responses, including unsolicited multicast responses, the
	// Query Identifier MUST be set to zero on transmission.
	m.Id = 0

	return m
}

// ValidateQuery returns an error if m is not a well-formed mDNS query.
func ValidateQuery(m *dns.Msg) error {
	if m.Response {
		return errors.New("wire: message is a response, not a query")
	}

	// https://tools.ietf.org/html/rfc6762#section-18.3
	if m.Opcode != dns.OpcodeQuery {
		return errors.New("wire: OPCODE must be zero (query) in mDNS queries")
	}

	// https://tools.ietf.org/html/rfc6762#section-18.11
	if m.Rcode != 0 {
		return errors.New("wire: RCODE must be zero in mDNS queries")
	}

	return nil
}

// unicastResponseBit is the top bit of the question class (qclass), used to
// request a unicast response.
//
// See https://tools.ietf.org/html/rfc6762#section-18.12.
const unicastResponseBit = 1 << 15

// WantsUnicastResponse returns true if q requested a unicast response. It
// also returns a copy of q with the unicast-response bit cleared, restoring
// the true question class.
func WantsUnicastResponse(q dns.Question) (bool, dns.Question) {
	u := q.Qclass & unicastResponseBit
	q.Qclass &^= unicastResponseBit
	return u != 0, q
}

// SetUnicastResponse returns a copy of q with the unicast-response bit set.
func SetUnicastResponse(q dns.Question) dns.Question {
	q.Qclass |= unicastResponseBit
	return q
}

// uniqueRecordBit is the top bit of the RR class (rrclass), used to mark a
// record as belonging to a "unique" (cache-flush) RRSet.
//
// See https://tools.ietf.org/html/rfc6762#section-10.2 and
// https://tools.ietf.org/html/rfc6762#section-18.13.
const uniqueRecordBit = 1 << 15

// IsUniqueRecord returns true if r carries the cache-flush bit. It also
// returns a copy of r with the bit cleared, restoring the true RR class.
func IsUniqueRecord(r dns.RR) (bool, dns.RR) {
	if r.Header().Class&uniqueRecordBit == 0 {
		return false, r
	}

	r = dns.Copy(r)
	r.Header().Class &^= uniqueRecordBit
	return true, r
}

// SetUniqueRecord returns a copy of r with the cache-flush bit set.
func SetUniqueRecord(r dns.RR) dns.RR {
	r = dns.Copy(r)
	r.Header().Class |= uniqueRecordBit
	return r
}

// TTLSeconds converts a millisecond TTL, as used internally by the record
// repository, to the whole-second TTL mDNS carries on the wire. Sub-second
// remainders truncate toward zero.
func TTLSeconds(ttlMillis uint64) uint32 {
	return uint32(ttlMillis / 1000)
}
