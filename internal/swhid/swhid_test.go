package swhid

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

const (
	emptyBlobSHA1 = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"
	emptyTreeSHA1 = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
)

func TestParseCanonicalRoundTrip(t *testing.T) {
	t.Parallel()

	digest := bytes.Repeat([]byte{0xAB}, 32)
	cases := []string{
		"swh:1:cnt:" + emptyBlobSHA1,
		"swh:1:dir:" + emptyTreeSHA1,
		"swh:1:rev:" + emptyBlobSHA1,
		"swh:1:rel:" + emptyBlobSHA1,
		"swh:1:snp:" + emptyBlobSHA1,
		"swh:1:cnt:" + emptyBlobSHA1 + ";origin=https://example.com/repo",
		"swh:1:cnt:" + emptyBlobSHA1 + ";origin=https://example.com/repo;lines=5-10",
		"swh:1:dir:" + emptyTreeSHA1 + ";path=src/main.c",
		"swh:2:cnt:" + EncodeHash(digest, Hex),
		"swh:2:cnt:" + EncodeHash(digest, Base64),
		"swh:2:cnt:" + EncodeHash(digest, Base85),
		"swh:2:cnt:" + EncodeHash(digest, Base32),
	}

	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			id, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, input, id.String())
			assert.True(t, id.Canonical())
			assert.Equal(t, input, id.Raw())
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":              "",
		"scheme only":        "swh",
		"missing hash":       "swh:1:cnt",
		"wrong scheme":       "doi:1:cnt:" + emptyBlobSHA1,
		"version three":      "swh:3:cnt:" + emptyBlobSHA1,
		"version word":       "swh:one:cnt:" + emptyBlobSHA1,
		"unknown type":       "swh:1:xyz:" + emptyBlobSHA1,
		"empty hash":         "swh:1:cnt:",
		"qualifier no value": "swh:1:cnt:" + emptyBlobSHA1 + ";origin",
		"empty qualifier":    "swh:1:cnt:" + emptyBlobSHA1 + ";;origin=x",
		"uppercase key":      "swh:1:cnt:" + emptyBlobSHA1 + ";Origin=x",
		"bad escape":         "swh:1:cnt:" + emptyBlobSHA1 + ";path=a%zzb",
		"truncated escape":   "swh:1:cnt:" + emptyBlobSHA1 + ";path=a%2",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(input)
			var syntaxErr *errors.SyntaxError
			require.ErrorAs(t, err, &syntaxErr, "input %q", input)
		})
	}
}

func TestParseNormalizeErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"short v1 hash":  "swh:1:cnt:" + emptyBlobSHA1[:39],
		"long v1 hash":   "swh:1:cnt:" + emptyBlobSHA1 + "0",
		"v1 sized as v2": "swh:1:cnt:" + strings.Repeat("a", 64),
		"odd v2 length":  "swh:2:cnt:" + strings.Repeat("a", 63),
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(input)
			var normErr *errors.NormalizeError
			require.ErrorAs(t, err, &normErr, "input %q", input)
			require.True(t, stderrors.Is(err, ErrUnknownVariant))
		})
	}
}

func TestParseSemanticErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"duplicate key":     "swh:1:cnt:" + emptyBlobSHA1 + ";origin=a;origin=b",
		"lines on dir":      "swh:1:dir:" + emptyTreeSHA1 + ";lines=1-2",
		"malformed lines":   "swh:1:cnt:" + emptyBlobSHA1 + ";lines=abc",
		"open-ended lines":  "swh:1:cnt:" + emptyBlobSHA1 + ";lines=5-",
		"dash-first lines":  "swh:1:cnt:" + emptyBlobSHA1 + ";lines=-5",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(input)
			var semErr *errors.SemanticError
			require.ErrorAs(t, err, &semErr, "input %q", input)
		})
	}
}

func TestParseFlagsNonCanonicalInput(t *testing.T) {
	t.Parallel()

	t.Run("uppercase hex hash", func(t *testing.T) {
		t.Parallel()

		input := "swh:1:cnt:" + strings.ToUpper(emptyBlobSHA1)
		id, err := Parse(input)
		require.NoError(t, err)
		assert.False(t, id.Canonical())
		assert.Equal(t, "swh:1:cnt:"+emptyBlobSHA1, id.String())
	})

	t.Run("lowercase percent escape", func(t *testing.T) {
		t.Parallel()

		id, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";path=a%2fb")
		require.NoError(t, err)
		assert.False(t, id.Canonical())
		assert.Equal(t, "a/b", id.Qualifiers[0].Value)
	})

	t.Run("over-escaped safe byte", func(t *testing.T) {
		t.Parallel()

		id, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";path=a%2Fb")
		require.NoError(t, err)
		assert.False(t, id.Canonical())
		assert.Equal(t, "swh:1:cnt:"+emptyBlobSHA1+";path=a/b", id.String())
	})
}

func TestPercentDecodingHappensOnce(t *testing.T) {
	t.Parallel()

	id, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";origin=100%2525")
	require.NoError(t, err)
	require.Equal(t, "100%25", id.Qualifiers[0].Value)

	// Re-serializing escapes the literal '%' again; decoding is not repeated.
	assert.Equal(t, "swh:1:cnt:"+emptyBlobSHA1+";origin=100%2525", id.String())
	assert.True(t, id.Canonical())
}

func TestEscapedSlashIsLiteral(t *testing.T) {
	t.Parallel()

	escaped, err := Parse("swh:1:dir:" + emptyTreeSHA1 + ";path=a%2Fb")
	require.NoError(t, err)
	literal, err := Parse("swh:1:dir:" + emptyTreeSHA1 + ";path=a/b")
	require.NoError(t, err)

	assert.True(t, escaped.Equal(literal))
	assert.Len(t, escaped.Qualifiers, 1, "decoded slash must not split the qualifier")
}

func TestEqualIsByteExact(t *testing.T) {
	t.Parallel()

	t.Run("unicode forms stay distinct", func(t *testing.T) {
		t.Parallel()

		nfc, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";path=caf%C3%A9")
		require.NoError(t, err)
		nfd, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";path=cafe%CC%81")
		require.NoError(t, err)
		assert.False(t, nfc.Equal(nfd))
	})

	t.Run("qualifier order is significant", func(t *testing.T) {
		t.Parallel()

		ab, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";origin=x;visit=y")
		require.NoError(t, err)
		ba, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";visit=y;origin=x")
		require.NoError(t, err)
		assert.False(t, ab.Equal(ba))
		assert.Equal(t, "swh:1:cnt:"+emptyBlobSHA1+";origin=x;visit=y", ab.String())
	})

	t.Run("encoding does not participate", func(t *testing.T) {
		t.Parallel()

		digest := bytes.Repeat([]byte{0x5C}, 32)
		hexID, err := Parse("swh:2:cnt:" + EncodeHash(digest, Hex))
		require.NoError(t, err)
		b64ID, err := Parse("swh:2:cnt:" + EncodeHash(digest, Base64))
		require.NoError(t, err)
		assert.True(t, hexID.Equal(b64ID))
	})

	t.Run("versions stay distinct", func(t *testing.T) {
		t.Parallel()

		v1, err := Parse("swh:1:cnt:" + emptyBlobSHA1)
		require.NoError(t, err)
		v2, err := Parse("swh:2:cnt:" + strings.Repeat("ab", 32))
		require.NoError(t, err)
		assert.False(t, v1.Equal(v2))
	})
}

func TestNewValidatesShape(t *testing.T) {
	t.Parallel()

	digest := bytes.Repeat([]byte{0x01}, 20)

	id, err := New(V1SHA1Hex, TypeContent, digest, Qualifier{Key: "origin", Value: "https://example.com"})
	require.NoError(t, err)
	assert.True(t, id.Canonical())
	assert.Equal(t, "swh:1:cnt:"+strings.Repeat("01", 20)+";origin=https://example.com", id.String())

	_, err = New(V1SHA1Hex, TypeContent, digest[:10])
	var normErr *errors.NormalizeError
	require.ErrorAs(t, err, &normErr)

	_, err = New(V1SHA1Hex, TypeDirectory, digest, Qualifier{Key: "lines", Value: "1-2"})
	var semErr *errors.SemanticError
	require.ErrorAs(t, err, &semErr)
}

func TestCoreStripsQualifiers(t *testing.T) {
	t.Parallel()

	id, err := Parse("swh:1:cnt:" + emptyBlobSHA1 + ";origin=x;path=y")
	require.NoError(t, err)
	assert.Equal(t, "swh:1:cnt:"+emptyBlobSHA1, id.Core())
}
