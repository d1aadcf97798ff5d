// Package swhid implements the structural model, parser, and canonical
// serializer for Software Heritage persistent identifiers. The engine funnels
// every implementation's answer through this one parser so that comparisons
// are structural and byte-exact, never string fuzzy.
package swhid

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Scheme is the only identifier scheme the grammar admits.
const Scheme = "swh"

// Identifier is one parsed identifier. Hash holds decoded digest bytes;
// qualifier values hold decoded bytes; nothing is Unicode-normalized.
type Identifier struct {
	Version    int
	Type       ObjectType
	Hash       []byte
	Variant    Variant
	Qualifiers []Qualifier

	raw string
}

// New assembles an identifier programmatically. The variant must agree with
// the hash length.
func New(variant Variant, typ ObjectType, hash []byte, quals ...Qualifier) (*Identifier, error) {
	if !typ.Valid() {
		return nil, errors.NewSyntaxError(string(typ), 0, fmt.Sprintf("unknown object type %q", typ))
	}
	if len(hash) != variant.Algorithm.Size() {
		return nil, errors.NewNormalizeError("hash",
			fmt.Sprintf("%d-byte hash does not fit %s", len(hash), variant.Algorithm), nil)
	}
	if err := checkQualifierSemantics(typ, quals); err != nil {
		return nil, err
	}
	return &Identifier{
		Version:    variant.Version,
		Type:       typ,
		Hash:       append([]byte(nil), hash...),
		Variant:    variant,
		Qualifiers: append([]Qualifier(nil), quals...),
	}, nil
}

// Parse reads identifier text of the shape
//
//	"swh" ":" version ":" type ":" hash (";" key "=" value)*
//
// Grammar violations are syntax errors. Text that matches the grammar but
// breaks canonical-form rules for a field (unknown variant, undecodable hash)
// is a normalize error. Well-formed but semantically inconsistent qualifiers
// are semantic errors. Non-canonical spellings that still decode (uppercase
// hex, over-escaped qualifier values) parse fine; Canonical reports them.
func Parse(s string) (*Identifier, error) {
	if s == "" {
		return nil, errors.NewSyntaxError(s, 0, "empty identifier")
	}

	core := s
	var qualText string
	var hasQuals bool
	if i := strings.IndexByte(s, ';'); i >= 0 {
		core, qualText = s[:i], s[i+1:]
		hasQuals = true
	}

	parts := strings.SplitN(core, ":", 4)
	if len(parts) != 4 {
		return nil, errors.NewSyntaxError(s, 0, "identifier needs scheme:version:type:hash")
	}
	scheme, versionText, typeText, hashText := parts[0], parts[1], parts[2], parts[3]

	if scheme != Scheme {
		return nil, errors.NewSyntaxError(s, 0, fmt.Sprintf("unknown scheme %q", scheme))
	}

	var version int
	switch versionText {
	case "1":
		version = 1
	case "2":
		version = 2
	default:
		return nil, errors.NewSyntaxError(s, len(scheme)+1, fmt.Sprintf("unsupported scheme version %q", versionText))
	}

	typ, err := ParseObjectType(typeText)
	if err != nil {
		return nil, errors.NewSyntaxError(s, len(scheme)+len(versionText)+2, fmt.Sprintf("unknown object type %q", typeText))
	}

	if hashText == "" {
		return nil, errors.NewSyntaxError(s, len(core), "empty hash")
	}
	variant, err := DetectVariant(version, hashText)
	if err != nil {
		return nil, errors.NewNormalizeError("hash", "", err)
	}
	hash, err := DecodeHash(hashText, variant.Encoding)
	if err != nil {
		return nil, errors.NewNormalizeError("hash", fmt.Sprintf("undecodable %s hash", variant.Encoding), err)
	}
	if len(hash) != variant.Algorithm.Size() {
		return nil, errors.NewNormalizeError("hash",
			fmt.Sprintf("decoded hash is %d bytes, %s needs %d", len(hash), variant.Algorithm, variant.Algorithm.Size()), nil)
	}

	var quals []Qualifier
	if hasQuals {
		offset := len(core) + 1
		for _, segment := range strings.Split(qualText, ";") {
			if segment == "" {
				return nil, errors.NewSyntaxError(s, offset, "empty qualifier")
			}
			key, rawValue, found := strings.Cut(segment, "=")
			if !found {
				return nil, errors.NewSyntaxError(s, offset, fmt.Sprintf("qualifier %q is missing '='", segment))
			}
			if !validQualifierKey(key) {
				return nil, errors.NewSyntaxError(s, offset, fmt.Sprintf("invalid qualifier key %q", key))
			}
			value, at, err := unescapeValue(rawValue)
			if err != nil {
				return nil, errors.NewSyntaxError(s, offset+len(key)+1+at, err.Error())
			}
			quals = append(quals, Qualifier{Key: key, Value: value})
			offset += len(segment) + 1
		}
		if err := checkQualifierSemantics(typ, quals); err != nil {
			return nil, err
		}
	}

	return &Identifier{
		Version:    version,
		Type:       typ,
		Hash:       hash,
		Variant:    variant,
		Qualifiers: quals,
		raw:        s,
	}, nil
}

// String renders the canonical serialization: lowercase hex, uppercase
// percent escapes, qualifiers in their original order.
func (id *Identifier) String() string {
	var sb strings.Builder
	sb.WriteString(id.Core())
	for _, q := range id.Qualifiers {
		sb.WriteByte(';')
		sb.WriteString(q.Key)
		sb.WriteByte('=')
		sb.WriteString(escapeValue(q.Value))
	}
	return sb.String()
}

// Core renders the identifier without qualifiers.
func (id *Identifier) Core() string {
	return fmt.Sprintf("%s:%d:%s:%s", Scheme, id.Version, id.Type, EncodeHash(id.Hash, id.Variant.Encoding))
}

// Raw returns the exact input text Parse consumed, or "" for identifiers
// built with New.
func (id *Identifier) Raw() string {
	return id.raw
}

// Canonical reports whether the parsed input was already in canonical form,
// i.e. serializing the identifier reproduces it byte for byte.
func (id *Identifier) Canonical() bool {
	if id.raw == "" {
		return true
	}
	return id.String() == id.raw
}

// Equal is structural, byte-exact equality on decoded values: version, type,
// hash bytes, and the qualifier sequence in order. Hash text encoding does
// not participate; NFC and NFD qualifier spellings are distinct values.
func (id *Identifier) Equal(other *Identifier) bool {
	if id == nil || other == nil {
		return id == other
	}
	if id.Version != other.Version || id.Type != other.Type {
		return false
	}
	if !bytes.Equal(id.Hash, other.Hash) {
		return false
	}
	if len(id.Qualifiers) != len(other.Qualifiers) {
		return false
	}
	for i := range id.Qualifiers {
		if id.Qualifiers[i] != other.Qualifiers[i] {
			return false
		}
	}
	return true
}
