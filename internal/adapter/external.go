package adapter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/logger"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// External runs a subprocess implementation over the flag contract:
//
//	<command> [args...] --type TYPE --scheme-version N --hash ALGO --encoding ENC \
//	    [--qualifier key=value]... [PATH [REF]]
//
// Content bytes arrive on stdin; directories, repositories, and their
// resolved refs arrive as positional arguments. On success the process
// prints exactly one identifier line and exits zero. On failure it exits
// non-zero with diagnostics on stderr, optionally leading with an error
// kind token ("VALIDATION_ERROR: empty path segment").
type External struct {
	id   string
	cmd  string
	args []string
	env  map[string]string
	caps capability.Descriptor
	box  *sandbox.Sandbox
	log  *logger.Logger
}

// ExternalConfig wires one subprocess implementation.
type ExternalConfig struct {
	ID           string
	Command      string
	Args         []string
	Env          map[string]string
	Capabilities capability.Descriptor
}

// NewExternal builds the adapter for one subprocess implementation.
func NewExternal(cfg ExternalConfig, box *sandbox.Sandbox, log *logger.Logger) *External {
	return &External{
		id:   cfg.ID,
		cmd:  cfg.Command,
		args: cfg.Args,
		env:  cfg.Env,
		caps: cfg.Capabilities,
		box:  box,
		log:  log,
	}
}

func (e *External) Info() Info {
	return Info{ID: e.id, Language: "external", APIVersion: e.caps.APIVersion}
}

func (e *External) Capabilities() capability.Descriptor {
	return e.caps
}

// Probe verifies the command can be located and executed.
func (e *External) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(e.cmd); err != nil {
		return errors.NewUnavailableError(e.id, fmt.Sprintf("command %q not runnable", e.cmd), err)
	}
	return nil
}

func (e *External) Compute(ctx context.Context, req Request) (Response, error) {
	argv, stdin, err := e.buildInvocation(req)
	if err != nil {
		return Response{}, err
	}

	e.log.WithFields(map[string]any{
		"implementation": e.id,
		"type":           string(req.Type),
		"variant":        req.Variant.String(),
	}).Debug("dispatching subprocess computation")

	out, err := e.box.Run(ctx, sandbox.Command{Path: e.cmd, Args: argv, Stdin: stdin, Env: e.env}, req.Limits)
	if err != nil {
		return Response{}, err
	}

	resp := Response{Sample: sampleOf(out)}
	switch out.State {
	case sandbox.StateSucceeded:
		id, err := singleIdentifierLine(e.id, out.Stdout)
		if err != nil {
			return resp, err
		}
		resp.Identifier = id
		return resp, nil
	case sandbox.StateTimedOut:
		return resp, errors.NewTimeoutError(req.Limits.WallClock)
	case sandbox.StateResourceExceeded:
		return resp, errors.NewResourceError(string(out.Resource), out.Detail)
	case sandbox.StateLaunchFailed:
		return resp, errors.NewUnavailableError(e.id, out.Detail, nil)
	default:
		if kind, msg, ok := declaredKind(out.Stderr); ok {
			return resp, declaredError(e.id, kind, msg, req.Limits)
		}
		return resp, errors.NewComputeError(e.id, out.Detail, nil)
	}
}

// buildInvocation marshals the request onto the flag contract. Content is
// read here and handed over as raw stdin bytes.
func (e *External) buildInvocation(req Request) ([]string, []byte, error) {
	argv := append([]string{}, e.args...)
	argv = append(argv,
		"--type", string(req.Type),
		"--scheme-version", strconv.Itoa(req.Variant.Version),
		"--hash", string(req.Variant.Algorithm),
		"--encoding", string(req.Variant.Encoding),
	)
	for _, q := range req.Qualifiers {
		argv = append(argv, "--qualifier", q)
	}

	var stdin []byte
	switch req.Type {
	case swhid.TypeContent:
		data, err := os.ReadFile(req.PayloadPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading payload %s: %w", req.PayloadPath, err)
		}
		stdin = data
	case swhid.TypeRevision, swhid.TypeRelease:
		ref, err := resolveRef(req)
		if err != nil {
			return nil, nil, err
		}
		argv = append(argv, req.PayloadPath, ref)
	default:
		argv = append(argv, req.PayloadPath)
	}
	return argv, stdin, nil
}

// singleIdentifierLine enforces the stdout contract: exactly one line, and
// it must at least look like an identifier. Anything else is a protocol
// violation, not a candidate answer.
func singleIdentifierLine(impl string, stdout []byte) (string, error) {
	text := strings.TrimSpace(string(stdout))
	if text == "" {
		return "", errors.NewProtocolError(impl, "empty_output", "implementation printed nothing", nil)
	}
	if strings.ContainsAny(text, "\r\n") {
		return "", errors.NewProtocolError(impl, "malformed_output", "expected exactly one identifier line", nil)
	}
	if !strings.HasPrefix(text, "swh:") {
		return "", errors.NewProtocolError(impl, "malformed_output", fmt.Sprintf("output %q is not an identifier", truncate(text, 80)), nil)
	}
	return text, nil
}
