package record

import (
	"fmt"
	"strings"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/names"
)

// ID is a repository-unique identifier for an advertised service.
//
// IDs are assigned by the caller (typically the interface advertiser), not
// generated by the repository.
type ID uint64

// ServiceType is the ordered sequence of DNS-SD labels that identify a
// service, such as "_http._tcp", not including the "local" domain.
//
// See https://tools.ietf.org/html/rfc6763#section-4.1.2.
type ServiceType struct {
	Labels []names.Label
}

// ParseServiceType parses a service type of the form "_foo._tcp".
func ParseServiceType(s string) (ServiceType, error) {
	parts := strings.Split(s, ".")

	t := ServiceType{
		Labels: make([]names.Label, len(parts)),
	}

	for i, p := range parts {
		t.Labels[i] = names.Label(p)
	}

	return t, t.Validate()
}

// Validate returns an error if t is not a well-formed service type: it must
// contain at least two labels and end in "_tcp" or "_udp".
func (t ServiceType) Validate() error {
	if len(t.Labels) < 2 {
		return fmt.Errorf("service type %q must contain a protocol label", t.String())
	}

	for _, l := range t.Labels {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("service type %q is invalid: %w", t.String(), err)
		}
	}

	proto := strings.ToLower(string(t.Labels[len(t.Labels)-1]))
	if proto != "_tcp" && proto != "_udp" {
		return fmt.Errorf("service type %q must end in \"_tcp\" or \"_udp\"", t.String())
	}

	return nil
}

// String returns the dotted representation of the service type, such as
// "_http._tcp".
func (t ServiceType) String() string {
	parts := make([]string, len(t.Labels))
	for i, l := range t.Labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ".")
}

// FQDN qualifies the service type under domain (typically Local).
func (t ServiceType) FQDN(domain names.FQDN) names.FQDN {
	return names.UDN(t.String()).Qualify(domain)
}

// Key returns a case-folded comparison key for the service type.
func (t ServiceType) Key() string {
	return strings.ToLower(t.String())
}

// Attribute is a single key/value pair of a DNS-SD TXT record, per
// https://tools.ietf.org/html/rfc6763#section-6.3.
//
// A key may be present without a value (a boolean attribute); HasValue
// distinguishes "key" from "key=" (empty value).
type Attribute struct {
	Key      string
	Value    []byte
	HasValue bool
}

// Attributes is the ordered set of a service's TXT attributes. Order is
// preserved from insertion, matching the order instance records are
// generated, so that the TXT record is deterministic.
type Attributes []Attribute

// Validate returns an error if any attribute key or key/value pair is
// malformed, per RFC 6763 §6.4-6.5: the key must be non-empty, printable
// ASCII excluding '=', and "key=value" must not exceed 255 bytes.
func (attrs Attributes) Validate() error {
	for _, a := range attrs {
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a Attribute) validate() error {
	if len(a.Key) == 0 {
		return fmt.Errorf("attribute key must not be empty")
	}

	for i := 0; i < len(a.Key); i++ {
		c := a.Key[i]
		if c < 0x20 || c > 0x7E || c == '=' {
			return fmt.Errorf("attribute key %q contains an invalid character", a.Key)
		}
	}

	total := len(a.Key)
	if a.HasValue {
		total += 1 + len(a.Value)
	}

	if total > 255 {
		return fmt.Errorf("attribute %q exceeds the 255-byte limit", a.Key)
	}

	return nil
}

// txtStrings renders the attributes as the string slice used to populate a
// dns.TXT record's Txt field.
func (attrs Attributes) txtStrings() []string {
	ss := make([]string, len(attrs))

	for i, a := range attrs {
		if a.HasValue {
			ss[i] = a.Key + "=" + string(a.Value)
		} else {
			ss[i] = a.Key
		}
	}

	return ss
}

// ServiceInfo describes the essential, caller-supplied attributes of an
// advertised service (spec §3 "Service").
type ServiceInfo struct {
	// InstanceName is this service's unique, case-insensitively compared
	// label, such as "Kitchen Printer".
	InstanceName string

	// Type is the service's ordered DNS-SD type/protocol labels.
	Type ServiceType

	// Port is the TCP/UDP port the service listens on.
	Port uint16

	// Attributes are the key/value pairs published in the service's TXT
	// record.
	Attributes Attributes
}

// Validate returns an error if info is not well-formed.
func (info ServiceInfo) Validate() error {
	if info.InstanceName == "" {
		return fmt.Errorf("instance name must not be empty")
	}

	if err := info.Type.Validate(); err != nil {
		return err
	}

	if info.Port == 0 {
		return fmt.Errorf("service port must not be zero")
	}

	return info.Attributes.Validate()
}

// instanceNameKey returns the case-folded comparison key used to detect
// colliding instance names (spec §3 invariants).
func instanceNameKey(n string) string {
	return strings.ToLower(n)
}
