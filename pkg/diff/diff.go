// Package diff explains how two identifiers disagree, field by field.
package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

// Category classifies one point of disagreement.
type Category string

const (
	// CategoryValueMismatch marks fields carrying genuinely different values.
	CategoryValueMismatch Category = "value_mismatch"
	// CategoryMissingField marks fields present on only one side.
	CategoryMissingField Category = "missing_field"
	// CategoryOrdering marks qualifier lists with the same entries in a
	// different order.
	CategoryOrdering Category = "ordering"
	// CategoryNormalization marks hashes whose bytes agree while the textual
	// encoding differs.
	CategoryNormalization Category = "normalization"
)

// Entry is one field-level difference, addressed JSON-pointer style
// (/version, /type, /hash, /qualifiers/0/value).
type Entry struct {
	Path     string   `json:"path"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
	Category Category `json:"category"`
}

// Entries compares two parsed identifiers. A nil side yields a single
// missing_field entry at the root; identical identifiers yield nothing.
func Entries(expected, actual *swhid.Identifier) []Entry {
	switch {
	case expected == nil && actual == nil:
		return nil
	case expected == nil:
		return []Entry{{Path: "", Actual: actual.String(), Category: CategoryMissingField}}
	case actual == nil:
		return []Entry{{Path: "", Expected: expected.String(), Category: CategoryMissingField}}
	}

	var out []Entry
	if expected.Version != actual.Version {
		out = append(out, Entry{
			Path:     "/version",
			Expected: strconv.Itoa(expected.Version),
			Actual:   strconv.Itoa(actual.Version),
			Category: CategoryValueMismatch,
		})
	}
	if expected.Type != actual.Type {
		out = append(out, Entry{
			Path:     "/type",
			Expected: string(expected.Type),
			Actual:   string(actual.Type),
			Category: CategoryValueMismatch,
		})
	}
	out = append(out, hashEntries(expected, actual)...)
	out = append(out, qualifierEntries(expected.Qualifiers, actual.Qualifiers)...)
	return out
}

func hashEntries(expected, actual *swhid.Identifier) []Entry {
	expText := swhid.EncodeHash(expected.Hash, expected.Variant.Encoding)
	actText := swhid.EncodeHash(actual.Hash, actual.Variant.Encoding)

	if string(expected.Hash) == string(actual.Hash) {
		if expected.Variant.Encoding == actual.Variant.Encoding {
			return nil
		}
		return []Entry{{Path: "/hash", Expected: expText, Actual: actText, Category: CategoryNormalization}}
	}
	return []Entry{{Path: "/hash", Expected: expText, Actual: actText, Category: CategoryValueMismatch}}
}

func qualifierEntries(expected, actual []swhid.Qualifier) []Entry {
	if equalQualifiers(expected, actual) {
		return nil
	}
	if sameQualifierSet(expected, actual) {
		return []Entry{{
			Path:     "/qualifiers",
			Expected: joinQualifiers(expected),
			Actual:   joinQualifiers(actual),
			Category: CategoryOrdering,
		}}
	}

	var out []Entry
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		base := "/qualifiers/" + strconv.Itoa(i)
		switch {
		case i >= len(expected):
			out = append(out, Entry{Path: base, Actual: formatQualifier(actual[i]), Category: CategoryMissingField})
		case i >= len(actual):
			out = append(out, Entry{Path: base, Expected: formatQualifier(expected[i]), Category: CategoryMissingField})
		case expected[i].Key != actual[i].Key:
			out = append(out, Entry{
				Path:     base + "/key",
				Expected: expected[i].Key,
				Actual:   actual[i].Key,
				Category: CategoryValueMismatch,
			})
		case expected[i].Value != actual[i].Value:
			out = append(out, Entry{
				Path:     base + "/value",
				Expected: expected[i].Value,
				Actual:   actual[i].Value,
				Category: CategoryValueMismatch,
			})
		}
	}
	return out
}

func equalQualifiers(a, b []swhid.Qualifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameQualifierSet(a, b []swhid.Qualifier) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[swhid.Qualifier]int, len(a))
	for _, q := range a {
		seen[q]++
	}
	for _, q := range b {
		seen[q]--
		if seen[q] < 0 {
			return false
		}
	}
	return true
}

func formatQualifier(q swhid.Qualifier) string {
	return q.Key + "=" + q.Value
}

func joinQualifiers(qs []swhid.Qualifier) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = formatQualifier(q)
	}
	return strings.Join(parts, ";")
}

// Text renders a compact character-level diff of two identifier strings for
// log lines and the terminal summary. Deletions come out as [-x-], insertions
// as [+y+].
func Text(expected, actual string) string {
	if expected == actual {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(expected, actual, false))

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&b, "[-%s-]", d.Text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&b, "[+%s+]", d.Text)
		}
	}
	return b.String()
}
