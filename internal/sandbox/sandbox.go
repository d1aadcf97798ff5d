// Package sandbox runs implementation code under wall-clock, CPU, and memory
// ceilings. Process invocations get OS-level enforcement (prlimit) and a
// fresh private working directory; in-process invocations share the same
// watchdog semantics. An implementation failing, hanging, or crashing is
// never an engine fault: it comes back as a RawOutcome state.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/swhidcheck/swhidcheck/internal/logger"
)

// Limits bounds one invocation. Zero values mean "no ceiling" except
// WallClock, which every caller is expected to set.
type Limits struct {
	WallClock   time.Duration
	CPUTime     time.Duration
	MemoryBytes int64
}

// Command describes one subprocess invocation. Env entries are merged over
// the whitelisted base environment.
type Command struct {
	Path  string
	Args  []string
	Stdin []byte
	Env   map[string]string
}

// State is the sandbox-level verdict for an invocation.
type State int

const (
	StateSucceeded State = iota
	StateTimedOut
	StateResourceExceeded
	StateCrashed
	StateLaunchFailed
)

func (s State) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateTimedOut:
		return "timed_out"
	case StateResourceExceeded:
		return "resource_exceeded"
	case StateCrashed:
		return "crashed"
	case StateLaunchFailed:
		return "launch_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ResourceKind names the ceiling that an invocation tripped.
type ResourceKind string

const (
	ResourceCPU    ResourceKind = "cpu"
	ResourceMemory ResourceKind = "memory"
)

// RawOutcome is everything the sandbox observed about one invocation.
// Metrics are populated on every path where the process actually ran.
type RawOutcome struct {
	State    State
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Resource ResourceKind
	Detail   string
	Wall     time.Duration
	CPU      time.Duration
	MaxRSSKB int64
}

// FuncOutcome pairs a watched function's own return values with the sandbox
// verdict. State Succeeded means the function returned before the deadline;
// Err then carries whatever it returned.
type FuncOutcome struct {
	RawOutcome
	Value string
	Err   error
}

// Sandbox creates isolated invocation environments under root.
type Sandbox struct {
	root string
	log  *logger.Logger
}

// New returns a Sandbox placing scratch directories under root, or the
// system temp directory when root is empty.
func New(root string, log *logger.Logger) *Sandbox {
	return &Sandbox{root: root, log: log}
}

// Run executes one subprocess under the given limits. The returned error is
// non-nil only for engine-side faults (scratch directory creation, caller
// cancellation); everything the child does wrong is encoded in the outcome.
func (s *Sandbox) Run(ctx context.Context, cmd Command, lim Limits) (RawOutcome, error) {
	workdir, err := os.MkdirTemp(s.root, "swhidcheck-*")
	if err != nil {
		return RawOutcome{}, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(workdir)

	var stdout, stderr bytes.Buffer
	child := exec.Command(cmd.Path, cmd.Args...)
	child.Dir = workdir
	child.Env = CleanEnv(cmd.Env)
	child.Stdout = &stdout
	child.Stderr = &stderr
	if len(cmd.Stdin) > 0 {
		child.Stdin = bytes.NewReader(cmd.Stdin)
	}
	setSysProcAttr(child)

	start := time.Now()
	if err := child.Start(); err != nil {
		return RawOutcome{State: StateLaunchFailed, Detail: err.Error()}, nil
	}

	if err := applyLimits(child.Process.Pid, lim); err != nil {
		s.log.WithFields(map[string]any{"pid": child.Process.Pid}).
			Warn("could not apply resource limits: " + err.Error())
	}

	var timedOut atomic.Bool
	var timer *time.Timer
	if lim.WallClock > 0 {
		timer = time.AfterFunc(lim.WallClock, func() {
			timedOut.Store(true)
			kill(child)
		})
	}

	done := make(chan error, 1)
	go func() { done <- child.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		kill(child)
		<-done
		if timer != nil {
			timer.Stop()
		}
		return RawOutcome{}, ctx.Err()
	}
	if timer != nil {
		timer.Stop()
	}

	out := RawOutcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: child.ProcessState.ExitCode(),
		Wall:     time.Since(start),
	}
	out.CPU, out.MaxRSSKB = usage(child.ProcessState)

	switch {
	case timedOut.Load():
		out.State = StateTimedOut
		out.Detail = fmt.Sprintf("killed after wall-clock limit of %s", lim.WallClock)
	case exceededCPU(child.ProcessState):
		out.State = StateResourceExceeded
		out.Resource = ResourceCPU
		out.Detail = fmt.Sprintf("CPU time limit of %s exceeded", lim.CPUTime)
	case waitErr == nil:
		out.State = StateSucceeded
	case lim.MemoryBytes > 0 && out.MaxRSSKB*1024 >= lim.MemoryBytes:
		out.State = StateResourceExceeded
		out.Resource = ResourceMemory
		out.Detail = fmt.Sprintf("peak RSS %d KB reached the %d-byte ceiling", out.MaxRSSKB, lim.MemoryBytes)
	default:
		out.State = StateCrashed
		out.Detail = crashDetail(waitErr, out.Stderr)
	}
	return out, nil
}

// Watch runs fn under the wall-clock limit on its own goroutine. A function
// that overruns is abandoned, its eventual result discarded; a panic is
// recovered into StateCrashed. CPU and memory ceilings cannot be enforced
// per goroutine, so only wall time is measured here.
func (s *Sandbox) Watch(ctx context.Context, lim Limits, fn func(context.Context) (string, error)) (FuncOutcome, error) {
	inner := ctx
	var cancel context.CancelFunc
	if lim.WallClock > 0 {
		inner, cancel = context.WithTimeout(ctx, lim.WallClock)
		defer cancel()
	}

	type funcReturn struct {
		value string
		err   error
		panic any
	}
	done := make(chan funcReturn, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- funcReturn{panic: r}
			}
		}()
		value, err := fn(inner)
		done <- funcReturn{value: value, err: err}
	}()

	select {
	case ret := <-done:
		out := FuncOutcome{Value: ret.value, Err: ret.err}
		out.Wall = time.Since(start)
		if ret.panic != nil {
			out.State = StateCrashed
			out.Detail = fmt.Sprintf("panic: %v", ret.panic)
			out.Err = nil
		}
		return out, nil
	case <-inner.Done():
		if ctx.Err() != nil {
			return FuncOutcome{}, ctx.Err()
		}
		out := FuncOutcome{}
		out.State = StateTimedOut
		out.Wall = time.Since(start)
		out.Detail = fmt.Sprintf("abandoned after wall-clock limit of %s", lim.WallClock)
		return out, nil
	}
}

func crashDetail(waitErr error, stderr []byte) string {
	trimmed := bytes.TrimSpace(stderr)
	if len(trimmed) > 0 {
		const max = 512
		if len(trimmed) > max {
			trimmed = trimmed[:max]
		}
		return string(trimmed)
	}
	return waitErr.Error()
}
