package record

import (
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/names"
)

// newHostName returns a new, unique ".local" host name for this repository
// instance, such as "kitchen-printer-3f9a07c2.local.".
//
// No library in the example pack generates a host identity (it is either
// supplied by the embedder or read via os.Hostname in every corpus example
// that needs one), so this falls back to the standard library: os.Hostname
// supplies a human-recognisable prefix, and crypto/rand supplies the
// collision-avoiding suffix the spec requires ("generated on first use").
func newHostName() names.FQDN {
	prefix := sanitizeHostLabel(hostnamePrefix())
	suffix := randomHex(4)

	label := prefix + "-" + suffix
	return names.Host(label).Qualify(Local)
}

func hostnamePrefix() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "host"
	}

	if i := strings.IndexByte(h, '.'); i != -1 {
		h = h[:i]
	}

	return h
}

// sanitizeHostLabel reduces s to a valid, lowercase DNS label.
func sanitizeHostLabel(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "host"
	}

	const maxLen = 40
	out := b.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}

	return out
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// unavailable, which would make the process unusable regardless.
		panic(fmt.Sprintf("record: failed to generate host id: %s", err))
	}

	const hex = "0123456789abcdef"
	out := make([]byte, n*2)
	for i, c := range buf {
		out[i*2] = hex[c>>4]
		out[i*2+1] = hex[c&0xf]
	}

	return string(out)
}
