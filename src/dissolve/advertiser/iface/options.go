package iface

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/record"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/repeater"
)

// Options holds the runtime-static configuration of an Advertiser (spec §6
// "Configuration").
type Options struct {
	logger logging.Logger

	probeCount    int
	probeInterval time.Duration

	announceCount    int
	announceInterval time.Duration

	exitDelay time.Duration

	recordOptions []record.Option
}

// Option configures an Advertiser. It follows the same functional-option
// shape as the teacher's responder.Option.
type Option func(*Options)

// WithLogger sets the logger used for non-fatal send/parse failures. It
// defaults to logging.DefaultLogger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithProbing overrides the probe count and interval (spec §4.3 C4
// defaults: 3 probes, 250ms apart).
func WithProbing(count int, interval time.Duration) Option {
	return func(o *Options) {
		o.probeCount = count
		o.probeInterval = interval
	}
}

// WithAnnouncing overrides the announcement count and initial interval
// (spec §4.3 C5 defaults: 8 announcements, starting at 1s and doubling).
func WithAnnouncing(count int, initialInterval time.Duration) Option {
	return func(o *Options) {
		o.announceCount = count
		o.announceInterval = initialInterval
	}
}

// WithExitDelay overrides the fixed delay before an exit announcement is
// sent (spec §4.2, default 100ms).
func WithExitDelay(d time.Duration) Option {
	return func(o *Options) {
		o.exitDelay = d
	}
}

// WithKnownAnswerSuppression is forwarded to the underlying record
// repository; see record.WithKnownAnswerSuppression.
func WithKnownAnswerSuppression(enabled bool) Option {
	return func(o *Options) {
		o.recordOptions = append(o.recordOptions, record.WithKnownAnswerSuppression(enabled))
	}
}

// WithInetAddressInProbing is forwarded to the underlying record
// repository; see record.WithInetAddressInProbing.
func WithInetAddressInProbing(enabled bool) Option {
	return func(o *Options) {
		o.recordOptions = append(o.recordOptions, record.WithInetAddressInProbing(enabled))
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		logger:            logging.DefaultLogger,
		probeCount:        repeater.DefaultProbeCount,
		probeInterval:     repeater.DefaultProbeInterval,
		announceCount:     repeater.DefaultAnnounceCount,
		announceInterval:  repeater.DefaultAnnounceInitialInterval,
		exitDelay:         repeater.DefaultExitDelay,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
