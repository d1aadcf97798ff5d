package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

func TestEvaluateGate(t *testing.T) {
	t.Parallel()

	desc := Descriptor{
		Types:           []swhid.ObjectType{swhid.TypeContent, swhid.TypeDirectory},
		Variants:        []swhid.Variant{swhid.V1SHA1Hex, swhid.V2SHA256Hex},
		Qualifiers:      []string{"origin", "path"},
		MaxPayloadBytes: 1 << 20,
		Unicode:         true,
		PercentEncoding: false,
	}

	cases := []struct {
		name   string
		req    Requirements
		reason string
	}{
		{
			name: "in range",
			req:  Requirements{Type: swhid.TypeContent, Variant: swhid.V1SHA1Hex, PayloadBytes: 512},
		},
		{
			name:   "type out of range",
			req:    Requirements{Type: swhid.TypeSnapshot, Variant: swhid.V1SHA1Hex},
			reason: "unsupported_type",
		},
		{
			name:   "variant out of range",
			req:    Requirements{Type: swhid.TypeContent, Variant: swhid.V2SHA256Base85},
			reason: "unsupported_variant",
		},
		{
			name:   "qualifier out of range",
			req:    Requirements{Type: swhid.TypeContent, Variant: swhid.V1SHA1Hex, Qualifiers: []string{"origin", "lines"}},
			reason: "unsupported_qualifier",
		},
		{
			name:   "payload too large",
			req:    Requirements{Type: swhid.TypeContent, Variant: swhid.V1SHA1Hex, PayloadBytes: 2 << 20},
			reason: "payload_too_large",
		},
		{
			name:   "percent encoding unsupported",
			req:    Requirements{Type: swhid.TypeContent, Variant: swhid.V1SHA1Hex, PercentEncoding: true},
			reason: "no_percent_encoding",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			skip := Evaluate(desc, tc.req)
			if tc.reason == "" {
				assert.Nil(t, skip)
				return
			}
			require.NotNil(t, skip)
			assert.Equal(t, tc.reason, skip.Reason)
			assert.NotEmpty(t, skip.Message)
		})
	}
}

func TestEvaluateHonorsTypeNarrowing(t *testing.T) {
	t.Parallel()

	desc := Descriptor{
		Types:    swhid.ObjectTypes(),
		Variants: swhid.Variants(),
		TypeVariants: map[swhid.ObjectType][]string{
			swhid.TypeRevision: {"v1-sha1-hex"},
			swhid.TypeSnapshot: {"v1-sha1-hex"},
		},
	}

	assert.Nil(t, Evaluate(desc, Requirements{Type: swhid.TypeRevision, Variant: swhid.V1SHA1Hex}))
	assert.Nil(t, Evaluate(desc, Requirements{Type: swhid.TypeContent, Variant: swhid.V2SHA256Base85}))

	skip := Evaluate(desc, Requirements{Type: swhid.TypeRevision, Variant: swhid.V2SHA256Hex})
	require.NotNil(t, skip)
	assert.Equal(t, "unsupported_variant", skip.Reason)
	assert.Contains(t, skip.Message, "rev")

	skip = Evaluate(desc, Requirements{Type: swhid.TypeSnapshot, Variant: swhid.V2SHA256Base64})
	require.NotNil(t, skip)
	assert.Equal(t, "unsupported_variant", skip.Reason)
}

func TestEvaluateZeroLimitsMeanUnlimited(t *testing.T) {
	t.Parallel()

	desc := Descriptor{
		Types:    []swhid.ObjectType{swhid.TypeContent},
		Variants: []swhid.Variant{swhid.V1SHA1Hex},
	}

	skip := Evaluate(desc, Requirements{
		Type:         swhid.TypeContent,
		Variant:      swhid.V1SHA1Hex,
		PayloadBytes: 1 << 40,
	})
	assert.Nil(t, skip)
}

func TestNormalizeResolvesTags(t *testing.T) {
	t.Parallel()

	d := Descriptor{VariantTags: []string{"v1-sha1-hex", "v2-sha256-base64"}}
	require.NoError(t, d.Normalize())
	assert.Equal(t, []swhid.Variant{swhid.V1SHA1Hex, swhid.V2SHA256Base64}, d.Variants)

	d = Descriptor{Variants: []swhid.Variant{swhid.V2SHA256Base32}}
	require.NoError(t, d.Normalize())
	assert.Equal(t, []string{"v2-sha256-base32"}, d.VariantTags)

	d = Descriptor{VariantTags: []string{"v7-crc32-hex"}}
	require.Error(t, d.Normalize())

	d = Descriptor{
		Variants:     []swhid.Variant{swhid.V1SHA1Hex},
		TypeVariants: map[swhid.ObjectType][]string{"blob": {"v1-sha1-hex"}},
	}
	require.Error(t, d.Normalize())

	d = Descriptor{
		Variants:     []swhid.Variant{swhid.V1SHA1Hex},
		TypeVariants: map[swhid.ObjectType][]string{swhid.TypeRelease: {"v9-md5-hex"}},
	}
	require.Error(t, d.Normalize())
}

func TestDefaultCoversEveryTypeV1Only(t *testing.T) {
	t.Parallel()

	d := Default()
	for _, typ := range swhid.ObjectTypes() {
		assert.True(t, d.SupportsType(typ))
	}
	assert.True(t, d.SupportsVariant(swhid.V1SHA1Hex))
	assert.False(t, d.SupportsVariant(swhid.V2SHA256Hex))
}
