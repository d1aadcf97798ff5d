// Package capability models what an implementation claims to support and
// decides, before any dispatch, whether a test case is in range. A mismatch
// is always a skip with a machine-readable reason, never a failure.
package capability

import (
	"fmt"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

// Descriptor declares an implementation's supported surface. It is fixed at
// registration time and never probed per test.
//
// TypeVariants narrows variant coverage per object type: a type with no
// entry accepts every declared variant, a type with an entry accepts only
// the tags listed. Implementations whose coverage is not a full cross
// product (a sha1 object store cannot mint sha256 history ids) declare the
// gaps here so the engine skips those pairings instead of attempting them.
type Descriptor struct {
	Types           []swhid.ObjectType            `json:"supported_types" yaml:"types,omitempty"`
	Variants        []swhid.Variant               `json:"-" yaml:"-"`
	VariantTags     []string                      `json:"supported_variants" yaml:"variants,omitempty"`
	TypeVariants    map[swhid.ObjectType][]string `json:"type_variants,omitempty" yaml:"type_variants,omitempty"`
	Qualifiers      []string                      `json:"supported_qualifiers" yaml:"qualifiers,omitempty"`
	APIVersion      string                        `json:"api_version" yaml:"api_version,omitempty"`
	MaxPayloadBytes int64                         `json:"max_payload_bytes" yaml:"max_payload_bytes,omitempty"`
	Unicode         bool                          `json:"supports_unicode" yaml:"unicode"`
	PercentEncoding bool                          `json:"supports_percent_encoding" yaml:"percent_encoding"`
}

// Default returns the descriptor the original harness assumed for a mature
// implementation: every type, every known qualifier, v1 hex only.
func Default() Descriptor {
	return Descriptor{
		Types:           swhid.ObjectTypes(),
		Variants:        []swhid.Variant{swhid.V1SHA1Hex},
		Qualifiers:      swhid.KnownQualifiers(),
		APIVersion:      "1.0",
		MaxPayloadBytes: 1000 << 20,
		Unicode:         true,
		PercentEncoding: true,
	}
}

// Normalize resolves VariantTags into Variants and fills VariantTags from
// Variants, whichever side is populated, and checks that any per-type
// narrowing names real types and variants.
func (d *Descriptor) Normalize() error {
	if len(d.Variants) == 0 {
		for _, tag := range d.VariantTags {
			v, err := swhid.ParseVariantTag(tag)
			if err != nil {
				return err
			}
			d.Variants = append(d.Variants, v)
		}
	}
	if len(d.VariantTags) == 0 {
		for _, v := range d.Variants {
			d.VariantTags = append(d.VariantTags, v.String())
		}
	}
	for typ, tags := range d.TypeVariants {
		if !typ.Valid() {
			return fmt.Errorf("type_variants names unknown object type %q", typ)
		}
		for _, tag := range tags {
			if _, err := swhid.ParseVariantTag(tag); err != nil {
				return err
			}
		}
	}
	return nil
}

// SupportsType reports whether the descriptor covers the object type.
func (d Descriptor) SupportsType(t swhid.ObjectType) bool {
	for _, have := range d.Types {
		if have == t {
			return true
		}
	}
	return false
}

// SupportsVariant reports whether the descriptor covers the variant.
func (d Descriptor) SupportsVariant(v swhid.Variant) bool {
	for _, have := range d.Variants {
		if have == v {
			return true
		}
	}
	return false
}

// SupportsTypeVariant reports whether the variant is usable with the type,
// honoring any per-type narrowing. Types without an entry accept every
// declared variant.
func (d Descriptor) SupportsTypeVariant(t swhid.ObjectType, v swhid.Variant) bool {
	tags, narrowed := d.TypeVariants[t]
	if !narrowed {
		return true
	}
	want := v.String()
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

// SupportsQualifier reports whether the descriptor covers the qualifier kind.
func (d Descriptor) SupportsQualifier(key string) bool {
	for _, have := range d.Qualifiers {
		if have == key {
			return true
		}
	}
	return false
}

// Requirements is what one test case demands from an implementation.
type Requirements struct {
	Type            swhid.ObjectType
	Variant         swhid.Variant
	Qualifiers      []string
	PayloadBytes    int64
	Unicode         bool
	PercentEncoding bool
}

// Skip explains a pre-dispatch skip decision.
type Skip struct {
	Reason  string
	Message string
}

// Evaluate gates a test case against a descriptor. A nil result means the
// implementation should attempt the case.
func Evaluate(d Descriptor, req Requirements) *Skip {
	if !d.SupportsType(req.Type) {
		return &Skip{
			Reason:  "unsupported_type",
			Message: fmt.Sprintf("object type %s not supported", req.Type),
		}
	}
	if !req.Variant.IsZero() && !d.SupportsVariant(req.Variant) {
		return &Skip{
			Reason:  "unsupported_variant",
			Message: fmt.Sprintf("variant %s not supported", req.Variant),
		}
	}
	if !req.Variant.IsZero() && !d.SupportsTypeVariant(req.Type, req.Variant) {
		return &Skip{
			Reason:  "unsupported_variant",
			Message: fmt.Sprintf("variant %s not supported for %s objects", req.Variant, req.Type),
		}
	}
	for _, q := range req.Qualifiers {
		if !d.SupportsQualifier(q) {
			return &Skip{
				Reason:  "unsupported_qualifier",
				Message: fmt.Sprintf("qualifier %s not supported", q),
			}
		}
	}
	if d.MaxPayloadBytes > 0 && req.PayloadBytes > d.MaxPayloadBytes {
		return &Skip{
			Reason:  "payload_too_large",
			Message: fmt.Sprintf("payload of %d bytes exceeds limit of %d", req.PayloadBytes, d.MaxPayloadBytes),
		}
	}
	if req.Unicode && !d.Unicode {
		return &Skip{Reason: "no_unicode", Message: "unicode payloads not supported"}
	}
	if req.PercentEncoding && !d.PercentEncoding {
		return &Skip{Reason: "no_percent_encoding", Message: "percent-encoded qualifiers not supported"}
	}
	return nil
}
