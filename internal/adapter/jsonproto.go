package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/logger"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// probeTimeout bounds the capabilities and info exchanges, which run before
// the suite's own limits apply.
const probeTimeout = 10 * time.Second

// JSONProto runs a subprocess implementation over the JSON line protocol:
// one process per request, the request object on stdin, one response object
// on stdout, exit code zero even for negative answers. Implementations
// report their own failures inside the response; a non-zero exit is a crash.
//
//	{"op":"compute","obj_type":"cnt","version":2,"hash":"sha256","encoding":"base64",
//	 "payload_path":"/abs/file","qualifiers":["origin=..."]}
//	{"ok":true,"swhid":"swh:2:cnt:..."}
//	{"ok":false,"error":{"code":"VALIDATION_ERROR","message":"..."}}
//
// The ops "capabilities" and "info" let Probe interrogate the implementation
// before any case dispatches.
type JSONProto struct {
	id   string
	cmd  string
	args []string
	env  map[string]string
	caps capability.Descriptor
	info Info
	box  *sandbox.Sandbox
	log  *logger.Logger
}

// JSONConfig wires one JSON-protocol implementation. Capabilities is the
// fallback descriptor when the implementation does not answer the
// capabilities op.
type JSONConfig struct {
	ID           string
	Command      string
	Args         []string
	Env          map[string]string
	Capabilities capability.Descriptor
}

// NewJSONProto builds the adapter for one JSON-protocol implementation.
func NewJSONProto(cfg JSONConfig, box *sandbox.Sandbox, log *logger.Logger) *JSONProto {
	return &JSONProto{
		id:   cfg.ID,
		cmd:  cfg.Command,
		args: cfg.Args,
		env:  cfg.Env,
		caps: cfg.Capabilities,
		info: Info{ID: cfg.ID, Language: "external", APIVersion: cfg.Capabilities.APIVersion},
		box:  box,
		log:  log,
	}
}

func (j *JSONProto) Info() Info {
	return j.info
}

func (j *JSONProto) Capabilities() capability.Descriptor {
	return j.caps
}

type wireRequest struct {
	Op          string   `json:"op"`
	ObjType     string   `json:"obj_type,omitempty"`
	Version     int      `json:"version,omitempty"`
	Hash        string   `json:"hash,omitempty"`
	Encoding    string   `json:"encoding,omitempty"`
	PayloadPath string   `json:"payload_path,omitempty"`
	Ref         string   `json:"ref,omitempty"`
	Qualifiers  []string `json:"qualifiers,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireResponse struct {
	OK           bool                   `json:"ok"`
	SWHID        string                 `json:"swhid,omitempty"`
	Error        *wireError             `json:"error,omitempty"`
	Capabilities *capability.Descriptor `json:"capabilities,omitempty"`
	Info         *Info                  `json:"info,omitempty"`
}

// Probe asks the implementation for its capabilities, replacing the
// configured fallback when it answers, and opportunistically collects
// version info. Probe runs once before dispatch; it is not safe to call
// concurrently with Compute.
func (j *JSONProto) Probe(ctx context.Context) error {
	resp, err := j.query(ctx, wireRequest{Op: "capabilities"})
	if err != nil {
		return errors.NewUnavailableError(j.id, "capabilities exchange failed", err)
	}
	if resp.Capabilities != nil {
		caps := *resp.Capabilities
		if err := caps.Normalize(); err != nil {
			return errors.NewUnavailableError(j.id, "implementation reported invalid capabilities", err)
		}
		j.caps = caps
	}

	if resp, err := j.query(ctx, wireRequest{Op: "info"}); err == nil && resp.Info != nil {
		info := *resp.Info
		if info.ID == "" {
			info.ID = j.id
		}
		j.info = info
	}
	return nil
}

func (j *JSONProto) Compute(ctx context.Context, req Request) (Response, error) {
	ref, err := resolveRef(req)
	if err != nil {
		return Response{}, err
	}

	wire := wireRequest{
		Op:          "compute",
		ObjType:     string(req.Type),
		Version:     req.Variant.Version,
		Hash:        string(req.Variant.Algorithm),
		Encoding:    string(req.Variant.Encoding),
		PayloadPath: req.PayloadPath,
		Ref:         ref,
		Qualifiers:  req.Qualifiers,
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return Response{}, err
	}

	j.log.WithFields(map[string]any{
		"implementation": j.id,
		"type":           string(req.Type),
		"variant":        req.Variant.String(),
	}).Debug("dispatching json-protocol computation")

	out, err := j.box.Run(ctx, sandbox.Command{Path: j.cmd, Args: j.args, Stdin: payload, Env: j.env}, req.Limits)
	if err != nil {
		return Response{}, err
	}

	resp := Response{Sample: sampleOf(out)}
	switch out.State {
	case sandbox.StateSucceeded:
		wr, err := decodeWireResponse(j.id, out.Stdout)
		if err != nil {
			return resp, err
		}
		if !wr.OK {
			return resp, j.answerError(wr.Error, req.Limits)
		}
		if !strings.HasPrefix(wr.SWHID, "swh:") {
			return resp, errors.NewProtocolError(j.id, "malformed_output", "response carries no identifier", nil)
		}
		resp.Identifier = wr.SWHID
		return resp, nil
	case sandbox.StateTimedOut:
		return resp, errors.NewTimeoutError(req.Limits.WallClock)
	case sandbox.StateResourceExceeded:
		return resp, errors.NewResourceError(string(out.Resource), out.Detail)
	case sandbox.StateLaunchFailed:
		return resp, errors.NewUnavailableError(j.id, out.Detail, nil)
	default:
		return resp, errors.NewComputeError(j.id, out.Detail, nil)
	}
}

// query is the probe-path round trip: spawn, one request in, one response
// out, with the implementation expected to behave.
func (j *JSONProto) query(ctx context.Context, req wireRequest) (*wireResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	out, err := j.box.Run(ctx, sandbox.Command{Path: j.cmd, Args: j.args, Stdin: payload, Env: j.env}, sandbox.Limits{WallClock: probeTimeout})
	if err != nil {
		return nil, err
	}
	if out.State != sandbox.StateSucceeded {
		return nil, errors.NewProtocolError(j.id, "probe", out.Detail, nil)
	}
	return decodeWireResponse(j.id, out.Stdout)
}

func decodeWireResponse(impl string, stdout []byte) (*wireResponse, error) {
	var wr wireResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &wr); err != nil {
		return nil, errors.NewProtocolError(impl, "malformed_response", "response is not valid JSON", err)
	}
	return &wr, nil
}

// answerError converts an in-band error report into the matching taxonomy
// error. Unknown codes count as compute failures.
func (j *JSONProto) answerError(we *wireError, lim sandbox.Limits) error {
	if we == nil {
		return errors.NewProtocolError(j.id, "malformed_response", "negative response carries no error object", nil)
	}
	if kind, ok := model.ParseKind(we.Code); ok {
		return declaredError(j.id, kind, we.Message, lim)
	}
	return errors.NewComputeError(j.id, we.Message, nil)
}
