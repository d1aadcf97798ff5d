// Package reference is the builtin identifier implementation: native Go
// computation of every object kind over the git object model. A run that
// mounts it always has one participant whose answers are reproducible from
// this repository alone, with no external tooling.
package reference

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"

	"github.com/swhidcheck/swhidcheck/internal/adapter"
	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Version is reported in run records alongside the answers.
const Version = "1.0.0"

// New wraps the native computation as a registered implementation. The id
// comes from configuration, so one suite can mount the builtin twice under
// different capability overlays.
func New(id string, box *sandbox.Sandbox) *adapter.InProcess {
	return NewWithDescriptor(id, Capabilities(), box)
}

// NewWithDescriptor mounts the builtin under a caller-supplied descriptor,
// typically Capabilities() with a configuration overlay applied. The
// computation itself is unchanged; only the capability gate sees the
// difference.
func NewWithDescriptor(id string, caps capability.Descriptor, box *sandbox.Sandbox) *adapter.InProcess {
	info := adapter.Info{ID: id, Version: Version, Language: "go", APIVersion: "1.0"}
	return adapter.NewInProcess(info, caps, compute, box)
}

// Capabilities describes exactly what compute can deliver: every object
// type, both hash schemes in every encoding for content and directories,
// and v1 only for history objects, whose ids are sha1 by construction.
func Capabilities() capability.Descriptor {
	v1 := []string{swhid.V1SHA1Hex.String()}
	return capability.Descriptor{
		Types:       swhid.ObjectTypes(),
		Variants:    swhid.Variants(),
		VariantTags: variantTags(),
		TypeVariants: map[swhid.ObjectType][]string{
			swhid.TypeRevision: v1,
			swhid.TypeRelease:  v1,
			swhid.TypeSnapshot: v1,
		},
		Qualifiers:      swhid.KnownQualifiers(),
		APIVersion:      "1.0",
		MaxPayloadBytes: 1000 << 20,
		Unicode:         true,
		PercentEncoding: true,
	}
}

func variantTags() []string {
	all := swhid.Variants()
	tags := make([]string, 0, len(all))
	for _, v := range all {
		tags = append(tags, v.String())
	}
	return tags
}

func compute(ctx context.Context, req adapter.Request) (string, error) {
	digest, err := objectDigest(ctx, req)
	if err != nil {
		return "", err
	}
	quals, err := parseQualifiers(req.Qualifiers)
	if err != nil {
		return "", err
	}
	id, err := swhid.New(req.Variant, req.Type, digest, quals...)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func objectDigest(ctx context.Context, req adapter.Request) ([]byte, error) {
	switch req.Type {
	case swhid.TypeContent:
		return contentDigest(req.PayloadPath, req.Variant.Algorithm)
	case swhid.TypeDirectory:
		return directoryDigest(ctx, req.PayloadPath, req.Variant.Algorithm)
	}

	// History objects live in a sha1 object store; there is no algorithm
	// to choose.
	if req.Variant != swhid.V1SHA1Hex {
		return nil, errors.NewValidationError("variant",
			fmt.Sprintf("%s objects only exist as %s", req.Type, swhid.V1SHA1Hex), nil)
	}

	switch req.Type {
	case swhid.TypeRevision:
		return revisionDigest(req.PayloadPath, req.Ref)
	case swhid.TypeRelease:
		return releaseDigest(req.PayloadPath, req.Ref)
	case swhid.TypeSnapshot:
		return snapshotDigest(req.PayloadPath)
	default:
		return nil, errors.NewValidationError("type", fmt.Sprintf("unknown object type %q", req.Type), nil)
	}
}

// parseQualifiers splits raw key=value pairs. Values are raw bytes; the
// serializer percent-escapes them at render time.
func parseQualifiers(raw []string) ([]swhid.Qualifier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	quals := make([]swhid.Qualifier, 0, len(raw))
	for _, kv := range raw {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, errors.NewValidationError("qualifier", fmt.Sprintf("qualifier %q is not key=value", kv), nil)
		}
		quals = append(quals, swhid.Qualifier{Key: key, Value: value})
	}
	return quals, nil
}

func newDigest(algo swhid.HashAlgorithm) hash.Hash {
	if algo == swhid.SHA256 {
		return sha256.New()
	}
	return sha1.New()
}

// gitObjectHash hashes a complete in-memory object with its framing header,
// `<type> <len>\x00<body>`. Content hashing streams instead; see
// contentDigest.
func gitObjectHash(algo swhid.HashAlgorithm, objType string, body []byte) []byte {
	h := newDigest(algo)
	fmt.Fprintf(h, "%s %d\x00", objType, len(body))
	h.Write(body)
	return h.Sum(nil)
}
