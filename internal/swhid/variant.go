package swhid

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"fmt"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// ObjectType is the closed set of artifact kinds an identifier can name.
type ObjectType string

const (
	TypeContent   ObjectType = "cnt"
	TypeDirectory ObjectType = "dir"
	TypeRevision  ObjectType = "rev"
	TypeRelease   ObjectType = "rel"
	TypeSnapshot  ObjectType = "snp"
)

// ObjectTypes returns every object type in stable order.
func ObjectTypes() []ObjectType {
	return []ObjectType{TypeContent, TypeDirectory, TypeRevision, TypeRelease, TypeSnapshot}
}

// ParseObjectType accepts either the three-letter code or the long name.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "cnt", "content":
		return TypeContent, nil
	case "dir", "directory":
		return TypeDirectory, nil
	case "rev", "revision":
		return TypeRevision, nil
	case "rel", "release":
		return TypeRelease, nil
	case "snp", "snapshot":
		return TypeSnapshot, nil
	default:
		return "", errors.NewSyntaxError(s, 0, fmt.Sprintf("unknown object type %q", s))
	}
}

// Valid reports whether t is one of the five object types.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeContent, TypeDirectory, TypeRevision, TypeRelease, TypeSnapshot:
		return true
	}
	return false
}

// LongName returns the spelled-out name for the type code.
func (t ObjectType) LongName() string {
	switch t {
	case TypeContent:
		return "content"
	case TypeDirectory:
		return "directory"
	case TypeRevision:
		return "revision"
	case TypeRelease:
		return "release"
	case TypeSnapshot:
		return "snapshot"
	default:
		return string(t)
	}
}

// HashAlgorithm names the digest algorithm behind an identifier version.
type HashAlgorithm string

const (
	SHA1   HashAlgorithm = "sha1"
	SHA256 HashAlgorithm = "sha256"
)

// Size returns the digest length in bytes.
func (a HashAlgorithm) Size() int {
	switch a {
	case SHA1:
		return 20
	case SHA256:
		return 32
	default:
		return 0
	}
}

// Encoding names the textual encoding of a hash field.
type Encoding string

const (
	Hex    Encoding = "hex"
	Base64 Encoding = "base64"
	Base85 Encoding = "base85"
	Base32 Encoding = "base32"
)

// Variant pins down one (version, algorithm, encoding) combination.
type Variant struct {
	Version   int
	Algorithm HashAlgorithm
	Encoding  Encoding
}

var (
	// V1SHA1Hex is the classic identifier shape: version 1, 40 hex characters.
	V1SHA1Hex = Variant{Version: 1, Algorithm: SHA1, Encoding: Hex}

	V2SHA256Hex    = Variant{Version: 2, Algorithm: SHA256, Encoding: Hex}
	V2SHA256Base64 = Variant{Version: 2, Algorithm: SHA256, Encoding: Base64}
	V2SHA256Base85 = Variant{Version: 2, Algorithm: SHA256, Encoding: Base85}
	V2SHA256Base32 = Variant{Version: 2, Algorithm: SHA256, Encoding: Base32}
)

// Variants returns the closed detection table in priority order.
func Variants() []Variant {
	return []Variant{V1SHA1Hex, V2SHA256Hex, V2SHA256Base64, V2SHA256Base85, V2SHA256Base32}
}

// IsZero reports whether v carries no variant.
func (v Variant) IsZero() bool {
	return v == Variant{}
}

// String renders the canonical variant tag, e.g. "v2-sha256-base64".
func (v Variant) String() string {
	return fmt.Sprintf("v%d-%s-%s", v.Version, v.Algorithm, v.Encoding)
}

// ParseVariantTag resolves a canonical variant tag ("v1-sha1-hex").
func ParseVariantTag(tag string) (Variant, error) {
	for _, v := range Variants() {
		if v.String() == tag {
			return v, nil
		}
	}
	return Variant{}, errors.NewValidationError("variant", fmt.Sprintf("unknown variant tag %q", tag), nil)
}

// ErrUnknownVariant marks hash text that matches no row of the detection table.
var ErrUnknownVariant = stderrors.New("unknown identifier variant")

// DetectVariant maps a declared version and raw hash text onto the detection
// table: the hash byte length implied by the version decides first, then the
// character set of the textual encoding breaks ties. Text that matches no row
// yields ErrUnknownVariant, never a guess.
func DetectVariant(version int, hash string) (Variant, error) {
	switch version {
	case 1:
		if len(hash) == 40 && isHexString(hash) {
			return V1SHA1Hex, nil
		}
	case 2:
		switch {
		case len(hash) == 64 && isHexString(hash):
			return V2SHA256Hex, nil
		case len(hash) == 44 && isBase64String(hash):
			return V2SHA256Base64, nil
		case len(hash) == 40 && isZ85String(hash):
			return V2SHA256Base85, nil
		case len(hash) == 52 && isBase32String(hash):
			return V2SHA256Base32, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: version %d with %d-character hash", ErrUnknownVariant, version, len(hash))
}

// EncodeHash renders raw digest bytes in the variant's canonical text form.
func EncodeHash(hash []byte, enc Encoding) string {
	switch enc {
	case Hex:
		return hex.EncodeToString(hash)
	case Base64:
		return base64.StdEncoding.EncodeToString(hash)
	case Base85:
		return z85Encode(hash)
	case Base32:
		return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(hash)
	default:
		return ""
	}
}

// DecodeHash reverses EncodeHash for the given encoding.
func DecodeHash(text string, enc Encoding) ([]byte, error) {
	switch enc {
	case Hex:
		return hex.DecodeString(text)
	case Base64:
		return base64.StdEncoding.Strict().DecodeString(text)
	case Base85:
		return z85Decode(text)
	case Base32:
		return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(text)
	default:
		return nil, fmt.Errorf("unsupported hash encoding %q", enc)
	}
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}

func isBase64String(s string) bool {
	pad := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
			if pad > 0 {
				return false
			}
		case c == '=':
			pad++
		default:
			return false
		}
	}
	return len(s) > 0 && pad <= 2
}

func isBase32String(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '2' && c <= '7':
		default:
			return false
		}
	}
	return len(s) > 0
}
