package swhid

import (
	"fmt"
	"strings"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Qualifier is one key=value pair attached to an identifier. Value holds the
// percent-DECODED bytes; decoding happens exactly once, at parse time.
type Qualifier struct {
	Key   string
	Value string
}

// KnownQualifiers lists the qualifier kinds the published grammar defines.
// The parser accepts any well-formed key; support for a kind is an
// implementation capability, not a grammar question.
func KnownQualifiers() []string {
	return []string{"origin", "visit", "anchor", "path", "lines"}
}

const upperHex = "0123456789ABCDEF"

// qualifierSafe reports bytes that stay literal in canonical serialization.
// Everything else is percent-encoded. The set deliberately includes '/' so a
// path qualifier reads naturally; an escaped %2F still decodes to the same
// byte and compares equal.
func qualifierSafe(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '.', '_', '~', '/', ':', '@':
		return true
	}
	return false
}

// escapeValue renders a decoded qualifier value in canonical form: unsafe
// bytes become uppercase %XX escapes.
func escapeValue(v string) string {
	var sb strings.Builder
	sb.Grow(len(v))
	for i := 0; i < len(v); i++ {
		b := v[i]
		if qualifierSafe(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[b>>4])
		sb.WriteByte(upperHex[b&0x0F])
	}
	return sb.String()
}

// unescapeValue percent-decodes a raw qualifier value once. A '%' not
// followed by two hex digits is a syntax error; the returned offset is
// relative to the value text.
func unescapeValue(v string) (string, int, error) {
	var sb strings.Builder
	sb.Grow(len(v))
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b != '%' {
			sb.WriteByte(b)
			continue
		}
		if i+2 >= len(v) {
			return "", i, fmt.Errorf("truncated percent escape")
		}
		hi, ok1 := hexDigit(v[i+1])
		lo, ok2 := hexDigit(v[i+2])
		if !ok1 || !ok2 {
			return "", i, fmt.Errorf("invalid percent escape %q", v[i:i+3])
		}
		sb.WriteByte(hi<<4 | lo)
		i += 2
	}
	return sb.String(), 0, nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// validQualifierKey enforces the key grammar: lowercase letter followed by
// lowercase letters, digits, or underscores.
func validQualifierKey(key string) bool {
	if len(key) == 0 {
		return false
	}
	if key[0] < 'a' || key[0] > 'z' {
		return false
	}
	for i := 1; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

// checkQualifierSemantics rejects well-formed but semantically invalid
// qualifier sequences: duplicate keys, a lines qualifier outside content, or
// a lines value that is not "N" or "N-M".
func checkQualifierSemantics(typ ObjectType, quals []Qualifier) error {
	seen := make(map[string]struct{}, len(quals))
	for _, q := range quals {
		if _, dup := seen[q.Key]; dup {
			return errors.NewSemanticError("qualifiers", fmt.Sprintf("duplicate qualifier key %q", q.Key))
		}
		seen[q.Key] = struct{}{}

		if q.Key == "lines" {
			if typ != TypeContent {
				return errors.NewSemanticError("qualifiers", fmt.Sprintf("lines qualifier is not valid for object type %s", typ))
			}
			if !validLinesValue(q.Value) {
				return errors.NewSemanticError("qualifiers", fmt.Sprintf("malformed lines value %q", q.Value))
			}
		}
	}
	return nil
}

func validLinesValue(v string) bool {
	first, rest, dashed := strings.Cut(v, "-")
	if !allDigits(first) {
		return false
	}
	if dashed && !allDigits(rest) {
		return false
	}
	return true
}

func allDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
