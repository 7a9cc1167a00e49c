package manager

import (
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/iface"
)

// Options holds the runtime-static configuration of a Manager.
type Options struct {
	logger             logging.Logger
	ipv6OnIPv6OnlyOnly bool
	advertiserOptions  []iface.Option
}

// Option configures a Manager.
type Option func(*Options)

// WithLogger sets the logger used for non-fatal manager-level errors. It
// defaults to logging.DefaultLogger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithIPv6OnIPv6OnlyOnly enables the IPv6-only fallback (spec §4.4): an
// IPv6 copy of a multicast send is withheld on any network that also has
// an IPv4-joined socket active.
func WithIPv6OnIPv6OnlyOnly(enabled bool) Option {
	return func(o *Options) {
		o.ipv6OnIPv6OnlyOnly = enabled
	}
}

// WithAdvertiserOptions passes opts through to every per-network
// iface.Advertiser the Manager creates.
func WithAdvertiserOptions(opts ...iface.Option) Option {
	return func(o *Options) {
		o.advertiserOptions = append(o.advertiserOptions, opts...)
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		logger: logging.DefaultLogger,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
