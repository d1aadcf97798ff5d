// Package adapter bridges the engine and the systems under test. Every
// implementation, in-process or subprocess, answers the same Compute call;
// the adapter owns invocation marshalling, symbolic ref pinning, and the
// translation of raw process outcomes into taxonomy errors. Payload bytes
// pass through untouched: no transcoding, no line-ending or Unicode
// normalization, because identity-sensitive cases depend on exact bytes.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/gitfixture"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Request is one computation order: the identifier of this payload under
// this variant. Ref names a revision or release symbolically (branch, tag,
// short hash); the adapter resolves it to its full form before the
// implementation sees it, so every implementation receives identical input.
type Request struct {
	Type        swhid.ObjectType
	Variant     swhid.Variant
	PayloadPath string
	Ref         string
	Qualifiers  []string
	Limits      sandbox.Limits
}

// Response is one computation answer. Sample is populated whenever the
// implementation actually ran, so timing survives failure paths that return
// both a Response and an error.
type Response struct {
	Identifier string
	Sample     model.Sample
}

// Info identifies an implementation in reports.
type Info struct {
	ID         string `json:"id"`
	Version    string `json:"version,omitempty"`
	Language   string `json:"language,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
}

// Implementation is the uniform surface the engine dispatches against.
type Implementation interface {
	Info() Info
	Capabilities() capability.Descriptor

	// Probe checks that the implementation can be invoked at all. A failing
	// probe marks it unavailable for the whole run; unavailability is never
	// a wrong answer.
	Probe(ctx context.Context) error

	// Compute produces exactly one identifier for the request. Anything the
	// implementation does wrong comes back as a taxonomy error; a non-nil
	// error with a populated Response still carries the observed sample.
	Compute(ctx context.Context, req Request) (Response, error)
}

// resolveRef pins a symbolic ref to its full hash. Revisions resolve through
// the normal revision machinery (branches and short hashes land on commits);
// releases resolve to the tag ref target without peeling, so annotated tags
// stay tag objects. Snapshot and file requests carry no ref.
func resolveRef(req Request) (string, error) {
	switch req.Type {
	case swhid.TypeRevision:
		ref := req.Ref
		if ref == "" {
			ref = "HEAD"
		}
		resolved, err := gitfixture.ResolveRef(req.PayloadPath, ref)
		if err != nil {
			return "", errors.NewValidationError("ref", fmt.Sprintf("cannot resolve revision %q", ref), err)
		}
		return resolved, nil
	case swhid.TypeRelease:
		resolved, err := gitfixture.ResolveTag(req.PayloadPath, req.Ref)
		if err != nil {
			return "", errors.NewValidationError("ref", fmt.Sprintf("cannot resolve tag %q", req.Ref), err)
		}
		return resolved, nil
	default:
		return "", nil
	}
}

func sampleOf(out sandbox.RawOutcome) model.Sample {
	return model.Sample{Wall: out.Wall, CPU: out.CPU, MaxRSSKB: out.MaxRSSKB}
}

// declaredKind reads the "KIND: message" convention from the first line of a
// failing implementation's diagnostics.
func declaredKind(diag []byte) (model.ErrorKind, string, bool) {
	line := string(diag)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	head, rest, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	kind, ok := model.ParseKind(strings.TrimSpace(head))
	if !ok {
		return "", "", false
	}
	return kind, strings.TrimSpace(rest), true
}

// declaredError turns a kind an implementation reported about itself into
// the matching taxonomy error.
func declaredError(impl string, kind model.ErrorKind, msg string, lim sandbox.Limits) error {
	switch kind {
	case model.KindParseError:
		return errors.NewSyntaxError(msg, 0, msg)
	case model.KindNormalizeError:
		return errors.NewNormalizeError("identifier", msg, nil)
	case model.KindValidationError:
		return errors.NewValidationError("payload", msg, nil)
	case model.KindTimeout:
		return errors.NewTimeoutError(lim.WallClock)
	case model.KindResourceLimit:
		return errors.NewResourceError("declared", msg)
	case model.KindIOError:
		return errors.NewProtocolError(impl, "reported", msg, nil)
	default:
		return errors.NewComputeError(impl, msg, nil)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
