package record

import "time"

// Default timer and TTL values, per spec §3 and §6.
const (
	// HostTTL is the TTL used for records whose name is a host name, or
	// that contain a host name: A, AAAA, SRV, and reverse-PTR records.
	HostTTL = 120 * time.Second

	// OtherTTL is the TTL used for every other record: service PTRs,
	// subtype PTRs, the service-enumeration PTR, and TXT records.
	OtherTTL = 75 * time.Minute
)

// Options holds the runtime-static configuration flags recognized by the
// repository (spec §6 "Configuration").
type Options struct {
	knownAnswerSuppressionEnabled bool
	includeInetAddressInProbing  bool
	hostTTL                      time.Duration
	otherTTL                     time.Duration
}

// Option configures a Repository. It follows the functional-option shape
// of the teacher's responder.Option, without an error result.
type Option func(*Options)

// WithKnownAnswerSuppression enables or disables known-answer suppression
// (spec §4.1.1) when answering queries. It is disabled by default.
func WithKnownAnswerSuppression(enabled bool) Option {
	return func(o *Options) {
		o.knownAnswerSuppressionEnabled = enabled
	}
}

// WithInetAddressInProbing includes the host's A/AAAA records as
// authoritative data during probing, in addition to the tentative SRV
// (spec §4.1 set_service_probing). It is disabled by default.
func WithInetAddressInProbing(enabled bool) Option {
	return func(o *Options) {
		o.includeInetAddressInProbing = enabled
	}
}

// WithHostTTL overrides the default TTL used for host-bearing records.
func WithHostTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.hostTTL = ttl
	}
}

// WithOtherTTL overrides the default TTL used for non-host-bearing records.
func WithOtherTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.otherTTL = ttl
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		hostTTL:  HostTTL,
		otherTTL: OtherTTL,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
