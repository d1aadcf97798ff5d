package sandbox

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSandbox(t *testing.T) *Sandbox {
	t.Helper()
	return New(t.TempDir(), nil)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh")
	}
}

func TestRunCapturesOutputAndMetrics(t *testing.T) {
	t.Parallel()
	requireShell(t)

	box := testSandbox(t)
	out, err := box.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "echo swh:1:cnt:e69de29bb2d1d6434b8b29ae775ad8c2e48c5391; echo progress >&2"},
	}, Limits{WallClock: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, string(out.Stdout), "swh:1:cnt:")
	assert.Contains(t, string(out.Stderr), "progress")
	assert.Greater(t, out.Wall, time.Duration(0))
}

func TestRunPassesStdin(t *testing.T) {
	t.Parallel()
	requireShell(t)

	box := testSandbox(t)
	out, err := box.Run(context.Background(), Command{
		Path:  "/bin/sh",
		Args:  []string{"-c", "cat"},
		Stdin: []byte("payload bytes"),
	}, Limits{WallClock: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, "payload bytes", string(out.Stdout))
}

func TestRunNonZeroExitIsCrash(t *testing.T) {
	t.Parallel()
	requireShell(t)

	box := testSandbox(t)
	out, err := box.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "echo cannot read payload >&2; exit 3"},
	}, Limits{WallClock: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, StateCrashed, out.State)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, out.Detail, "cannot read payload")
}

func TestRunWallClockKill(t *testing.T) {
	t.Parallel()
	requireShell(t)

	box := testSandbox(t)
	start := time.Now()
	out, err := box.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 30"},
	}, Limits{WallClock: 200 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, out.State)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, out.Detail, "wall-clock")
}

func TestRunLaunchFailureIsDistinct(t *testing.T) {
	t.Parallel()

	box := testSandbox(t)
	out, err := box.Run(context.Background(), Command{
		Path: "/no/such/binary-anywhere",
	}, Limits{WallClock: time.Second})
	require.NoError(t, err)

	assert.Equal(t, StateLaunchFailed, out.State)
	assert.NotEmpty(t, out.Detail)
}

func TestRunCallerCancellationIsEngineFault(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	box := testSandbox(t)
	_, err := box.Run(ctx, Command{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 30"},
	}, Limits{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunCPULimit(t *testing.T) {
	t.Parallel()
	if runtime.GOOS != "linux" {
		t.Skip("CPU rlimit enforcement is Linux-only")
	}

	box := testSandbox(t)
	out, err := box.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "while :; do :; done"},
	}, Limits{WallClock: 30 * time.Second, CPUTime: time.Second})
	require.NoError(t, err)

	assert.Equal(t, StateResourceExceeded, out.State)
	assert.Equal(t, ResourceCPU, out.Resource)
}

func TestWatchReturnsFunctionValue(t *testing.T) {
	t.Parallel()

	box := testSandbox(t)
	out, err := box.Watch(context.Background(), Limits{WallClock: time.Second}, func(context.Context) (string, error) {
		return "swh:1:dir:4b825dc642cb6eb9a060e54bf8d69288fbee4904", nil
	})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, out.State)
	assert.True(t, strings.HasPrefix(out.Value, "swh:1:dir:"))
	require.NoError(t, out.Err)
}

func TestWatchPropagatesFunctionError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("unreadable payload")
	box := testSandbox(t)
	out, err := box.Watch(context.Background(), Limits{WallClock: time.Second}, func(context.Context) (string, error) {
		return "", wantErr
	})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, out.State)
	assert.ErrorIs(t, out.Err, wantErr)
}

func TestWatchAbandonsOverrun(t *testing.T) {
	t.Parallel()

	box := testSandbox(t)
	out, err := box.Watch(context.Background(), Limits{WallClock: 50 * time.Millisecond}, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return "late", nil
	})
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, out.State)
	assert.Empty(t, out.Value)
}

func TestWatchRecoversPanic(t *testing.T) {
	t.Parallel()

	box := testSandbox(t)
	out, err := box.Watch(context.Background(), Limits{WallClock: time.Second}, func(context.Context) (string, error) {
		panic("index out of range")
	})
	require.NoError(t, err)

	assert.Equal(t, StateCrashed, out.State)
	assert.Contains(t, out.Detail, "index out of range")
}

func TestCleanEnvWhitelists(t *testing.T) {
	t.Setenv("SWHIDCHECK_TEST_SECRET", "leak-me")
	t.Setenv("LANG", "C.UTF-8")

	env := CleanEnv(map[string]string{"IMPL_HOME": "/opt/impl", "LANG": "C"})

	joined := strings.Join(env, "\n")
	assert.NotContains(t, joined, "SWHIDCHECK_TEST_SECRET")
	assert.Contains(t, joined, "IMPL_HOME=/opt/impl")
	assert.Contains(t, joined, "LANG=C")
	assert.NotContains(t, joined, "LANG=C.UTF-8", "extras override inherited values")
}
