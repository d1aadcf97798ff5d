package adapter

import (
	"context"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// ComputeFunc is the in-process implementation contract: return one
// identifier string or a taxonomy error. The function must honor ctx, which
// carries the wall-clock deadline.
type ComputeFunc func(ctx context.Context, req Request) (string, error)

// InProcess runs a Go implementation on a watched worker goroutine. The same
// wall-clock ceiling applies as for subprocesses; an overrunning function is
// abandoned and a panic becomes a compute failure, never an engine crash.
type InProcess struct {
	info Info
	caps capability.Descriptor
	fn   ComputeFunc
	box  *sandbox.Sandbox
}

// NewInProcess wraps fn as an implementation.
func NewInProcess(info Info, caps capability.Descriptor, fn ComputeFunc, box *sandbox.Sandbox) *InProcess {
	return &InProcess{info: info, caps: caps, fn: fn, box: box}
}

func (p *InProcess) Info() Info {
	return p.info
}

func (p *InProcess) Capabilities() capability.Descriptor {
	return p.caps
}

// Probe always succeeds: the function is linked in.
func (p *InProcess) Probe(ctx context.Context) error {
	return nil
}

func (p *InProcess) Compute(ctx context.Context, req Request) (Response, error) {
	ref, err := resolveRef(req)
	if err != nil {
		return Response{}, err
	}
	pinned := req
	pinned.Ref = ref

	out, err := p.box.Watch(ctx, req.Limits, func(ctx context.Context) (string, error) {
		return p.fn(ctx, pinned)
	})
	if err != nil {
		return Response{}, err
	}

	resp := Response{Sample: sampleOf(out.RawOutcome)}
	switch out.State {
	case sandbox.StateSucceeded:
		if out.Err != nil {
			return resp, out.Err
		}
		id, err := singleIdentifierLine(p.info.ID, []byte(out.Value))
		if err != nil {
			return resp, err
		}
		resp.Identifier = id
		return resp, nil
	case sandbox.StateTimedOut:
		return resp, errors.NewTimeoutError(req.Limits.WallClock)
	default:
		return resp, errors.NewComputeError(p.info.ID, out.Detail, nil)
	}
}
