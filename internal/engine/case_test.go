package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/internal/config"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

func TestExpandCasesContentVariants(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world\n"), 0o644))

	cfg := &config.Config{
		Payloads: config.Payloads{
			Content: []config.FilePayload{{
				Name: "hello",
				Path: "hello.txt",
				Expected: map[string]string{
					"v1-sha1-hex":   helloID,
					"v2-sha256-hex": "swh:2:cnt:a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447",
				},
			}},
		},
	}

	cases, err := ExpandCases(context.Background(), cfg, dir, t.TempDir())
	require.NoError(t, err)
	require.Len(t, cases, 2)

	byVariant := map[string]Case{}
	for _, c := range cases {
		assert.Equal(t, "hello", c.ID)
		assert.Equal(t, swhid.TypeContent, c.Type)
		byVariant[c.Variant.String()] = c
	}
	assert.Equal(t, helloID, byVariant["v1-sha1-hex"].Golden)
	assert.NotEmpty(t, byVariant["v2-sha256-hex"].Golden)
}

func TestExpandCasesDefaultsToV1(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	cfg := &config.Config{
		Payloads: config.Payloads{
			Content: []config.FilePayload{{Name: "f", Path: "f"}},
		},
	}

	cases, err := ExpandCases(context.Background(), cfg, dir, t.TempDir())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, swhid.V1SHA1Hex, cases[0].Variant)
	assert.Empty(t, cases[0].Golden)
}

func TestExpandCasesVariantListConsensusMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	cfg := &config.Config{
		Payloads: config.Payloads{
			Content: []config.FilePayload{{
				Name:     "f",
				Path:     "f",
				Variants: []string{"v1-sha1-hex", "v2-sha256-base64"},
			}},
		},
	}

	cases, err := ExpandCases(context.Background(), cfg, dir, t.TempDir())
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, swhid.V1SHA1Hex, cases[0].Variant)
	assert.Equal(t, swhid.V2SHA256Base64, cases[1].Variant)
	for _, c := range cases {
		assert.Empty(t, c.Golden)
	}
}

func TestExpandCasesGitFixture(t *testing.T) {
	t.Parallel()

	snapshot := ""
	cfg := &config.Config{
		Payloads: config.Payloads{
			Git: []config.GitPayload{{
				Name:     "sample",
				Fixture:  "sample",
				Revision: "HEAD",
				Branches: map[string]string{"feature": "", "main": ""},
				Tags:     map[string]string{"v1.0": ""},
				Snapshot: &snapshot,
			}},
		},
	}

	cases, err := ExpandCases(context.Background(), cfg, t.TempDir(), t.TempDir())
	require.NoError(t, err)

	var ids []string
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{
		"sample-revision",
		"sample-branch-feature",
		"sample-branch-main",
		"sample-tag-v1.0",
		"sample-snapshot",
	}, ids)

	assert.Equal(t, swhid.TypeRevision, cases[0].Type)
	assert.Equal(t, "HEAD", cases[0].Ref)
	assert.Equal(t, swhid.TypeRevision, cases[1].Type)
	assert.Equal(t, "feature", cases[1].Ref)
	assert.Equal(t, swhid.TypeRelease, cases[3].Type)
	assert.Equal(t, swhid.TypeSnapshot, cases[4].Type)

	// The fixture exists on disk and every sub-case shares it.
	for _, c := range cases {
		assert.Equal(t, cases[0].Payload.Path, c.Payload.Path)
	}
	_, err = os.Stat(filepath.Join(cases[0].Payload.Path, ".git"))
	require.NoError(t, err)
}

func TestExpandCasesNegative(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk"), []byte{0x00}, 0o644))

	cfg := &config.Config{
		Payloads: config.Payloads{
			Negative: []config.NegativePayload{{
				Name:        "junk",
				Type:        "dir",
				Path:        "junk",
				ExpectError: "VALIDATION_ERROR",
			}},
		},
	}

	cases, err := ExpandCases(context.Background(), cfg, dir, t.TempDir())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, swhid.TypeDirectory, cases[0].Type)
	assert.Equal(t, model.KindValidationError, cases[0].Negative)
}

func TestExpandCasesUnknownVariantTag(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	cfg := &config.Config{
		Payloads: config.Payloads{
			Content: []config.FilePayload{{
				Name:     "f",
				Path:     "f",
				Variants: []string{"v3-md5-hex"},
			}},
		},
	}

	_, err := ExpandCases(context.Background(), cfg, dir, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "f")
}

func TestExpandCasesMissingPayload(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Payloads: config.Payloads{
			Content: []config.FilePayload{{Name: "ghost", Path: "ghost.txt"}},
		},
	}

	_, err := ExpandCases(context.Background(), cfg, t.TempDir(), t.TempDir())
	require.Error(t, err)
}
