package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		Version: "1.0",
		Name:    "suite",
		Implementations: []Implementation{
			{ID: "reference", Kind: "builtin", Enabled: true, Builtin: "reference"},
		},
		Payloads: Payloads{
			Content: []FilePayload{{Name: "hello", Path: "payloads/hello.txt"}},
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(validConfig()))
}

func TestValidateNilConfig(t *testing.T) {
	t.Parallel()

	err := Validate(nil)
	require.Error(t, err)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "config", verr.Field)
}

func TestValidateReportsYAMLishFieldNames(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Version = "2.0"

	err := Validate(cfg)
	require.Error(t, err)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "config.version", verr.Field)
	assert.Contains(t, verr.Error(), "tag 'eq'")
}

func TestValidateImplementationIdentifiers(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Implementations[0].ID = "Reference Impl"

	err := Validate(cfg)
	require.Error(t, err)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "tag 'ident'")
}

func TestValidateDuplicatePayloadNames(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Payloads.Negative = []NegativePayload{
		{Name: "hello", Type: "cnt", Path: "p.txt", ExpectError: "IO_ERROR"},
	}

	err := Validate(cfg)
	require.Error(t, err)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payloads.negative[0].name", verr.Field)
	assert.Contains(t, verr.Error(), "payloads.content[0]")
}

func TestCapabilitiesApplyNilKeepsBase(t *testing.T) {
	t.Parallel()

	var caps *Capabilities
	got, err := caps.Apply(capability.Default())
	require.NoError(t, err)

	assert.Equal(t, swhid.ObjectTypes(), got.Types)
	assert.Equal(t, []string{"v1-sha1-hex"}, got.VariantTags)
	assert.True(t, got.Unicode)
}

func TestCapabilitiesApplyOverlay(t *testing.T) {
	t.Parallel()

	no := false
	caps := &Capabilities{
		Types:           []string{"content", "dir"},
		Variants:        []string{"v1-sha1-hex", "v2-sha256-base64"},
		Qualifiers:      []string{"origin"},
		APIVersion:      "2.1",
		MaxPayloadMB:    100,
		Unicode:         &no,
		PercentEncoding: &no,
	}

	got, err := caps.Apply(capability.Default())
	require.NoError(t, err)

	assert.Equal(t, []swhid.ObjectType{swhid.TypeContent, swhid.TypeDirectory}, got.Types)
	assert.Equal(t, []swhid.Variant{swhid.V1SHA1Hex, swhid.V2SHA256Base64}, got.Variants)
	assert.Equal(t, []string{"v1-sha1-hex", "v2-sha256-base64"}, got.VariantTags)
	assert.Equal(t, []string{"origin"}, got.Qualifiers)
	assert.Equal(t, "2.1", got.APIVersion)
	assert.Equal(t, int64(100<<20), got.MaxPayloadBytes)
	assert.False(t, got.Unicode)
	assert.False(t, got.PercentEncoding)
}

func TestCapabilitiesApplyPartialOverlay(t *testing.T) {
	t.Parallel()

	caps := &Capabilities{MaxPayloadMB: 1}

	got, err := caps.Apply(capability.Default())
	require.NoError(t, err)

	assert.Equal(t, int64(1<<20), got.MaxPayloadBytes)
	assert.Equal(t, swhid.ObjectTypes(), got.Types, "unset fields keep the base values")
	assert.True(t, got.Unicode)
	assert.True(t, got.PercentEncoding)
}

func TestCapabilitiesApplyRejectsBadValues(t *testing.T) {
	t.Parallel()

	_, err := (&Capabilities{Types: []string{"blob"}}).Apply(capability.Default())
	require.Error(t, err)

	_, err = (&Capabilities{Variants: []string{"v9-md5-hex"}}).Apply(capability.Default())
	require.Error(t, err)
}

func TestSettingsDurations(t *testing.T) {
	t.Parallel()

	s := Settings{TimeoutS: 45, CPULimitS: 10, MemoryLimitMB: 256}

	assert.Equal(t, 45*time.Second, s.Timeout())
	assert.Equal(t, 10*time.Second, s.CPULimit())
	assert.Equal(t, int64(256<<20), s.MemoryBytes())
}
