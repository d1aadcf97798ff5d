package adapter

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/gitfixture"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

const emptyBlobSWHID = "swh:1:cnt:e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh scripts")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "impl.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestExternal(t *testing.T, script string, env map[string]string) *External {
	t.Helper()
	cfg := ExternalConfig{
		ID:           "fake",
		Command:      script,
		Env:          env,
		Capabilities: capability.Default(),
	}
	return NewExternal(cfg, sandbox.New(t.TempDir(), nil), nil)
}

func contentRequest(t *testing.T, data string) Request {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return Request{
		Type:        swhid.TypeContent,
		Variant:     swhid.V1SHA1Hex,
		PayloadPath: path,
		Limits:      sandbox.Limits{WallClock: 10 * time.Second},
	}
}

func TestExternalComputePassesContentOnStdin(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ext := newTestExternal(t, writeScript(t, `echo "swh:1:cnt:$(cat)"`), nil)
	resp, err := ext.Compute(context.Background(), contentRequest(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"))
	require.NoError(t, err)

	assert.Equal(t, emptyBlobSWHID, resp.Identifier)
	assert.Greater(t, resp.Sample.Wall, time.Duration(0))
}

func TestExternalArgvContract(t *testing.T) {
	t.Parallel()
	requireShell(t)

	argsFile := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, `printf '%s\n' "$@" > "$ARGS_OUT"
echo swh:2:dir:473a0f4c3be8a93681a267e3b1e9a7dcda1185436fe141f7749120a303721813`)
	ext := newTestExternal(t, script, map[string]string{"ARGS_OUT": argsFile})

	dir := t.TempDir()
	_, err := ext.Compute(context.Background(), Request{
		Type:        swhid.TypeDirectory,
		Variant:     swhid.V2SHA256Hex,
		PayloadPath: dir,
		Qualifiers:  []string{"origin=https://example.org"},
		Limits:      sandbox.Limits{WallClock: 10 * time.Second},
	})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--type", "dir",
		"--scheme-version", "2",
		"--hash", "sha256",
		"--encoding", "hex",
		"--qualifier", "origin=https://example.org",
		dir,
	}, strings.Split(strings.TrimSpace(string(recorded)), "\n"))
}

func TestExternalResolvesRevisionRef(t *testing.T) {
	t.Parallel()
	requireShell(t)

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	// The implementation sees the branch name already pinned to a full hash.
	script := writeScript(t, `for a in "$@"; do last="$a"; done
echo "swh:1:rev:$last"`)
	ext := newTestExternal(t, script, nil)

	resp, err := ext.Compute(context.Background(), Request{
		Type:        swhid.TypeRevision,
		Variant:     swhid.V1SHA1Hex,
		PayloadPath: fx.Path,
		Ref:         "main",
		Limits:      sandbox.Limits{WallClock: 10 * time.Second},
	})
	require.NoError(t, err)
	assert.Equal(t, "swh:1:rev:"+fx.Head, resp.Identifier)
}

func TestExternalResolvesReleaseTagWithoutPeeling(t *testing.T) {
	t.Parallel()
	requireShell(t)

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	script := writeScript(t, `for a in "$@"; do last="$a"; done
echo "swh:1:rel:$last"`)
	ext := newTestExternal(t, script, nil)

	resp, err := ext.Compute(context.Background(), Request{
		Type:        swhid.TypeRelease,
		Variant:     swhid.V1SHA1Hex,
		PayloadPath: fx.Path,
		Ref:         "v1.0",
		Limits:      sandbox.Limits{WallClock: 10 * time.Second},
	})
	require.NoError(t, err)
	assert.Equal(t, "swh:1:rel:"+fx.Tags["v1.0"].ObjectID, resp.Identifier)
}

func TestExternalUnknownRefIsValidationError(t *testing.T) {
	t.Parallel()
	requireShell(t)

	fx, err := gitfixture.Build(t.TempDir())
	require.NoError(t, err)

	ext := newTestExternal(t, writeScript(t, `echo unreachable`), nil)
	_, err = ext.Compute(context.Background(), Request{
		Type:        swhid.TypeRevision,
		Variant:     swhid.V1SHA1Hex,
		PayloadPath: fx.Path,
		Ref:         "no-such-branch",
		Limits:      sandbox.Limits{WallClock: 10 * time.Second},
	})
	require.Error(t, err)

	var verr *errors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExternalDeclaredKind(t *testing.T) {
	t.Parallel()
	requireShell(t)

	script := writeScript(t, `echo "VALIDATION_ERROR: empty path segment" >&2
exit 1`)
	ext := newTestExternal(t, script, nil)

	resp, err := ext.Compute(context.Background(), contentRequest(t, "x"))
	require.Error(t, err)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "empty path segment")
	assert.Greater(t, resp.Sample.Wall, time.Duration(0), "failed runs still carry timing")
}

func TestExternalCrashWithoutKindIsComputeError(t *testing.T) {
	t.Parallel()
	requireShell(t)

	script := writeScript(t, `echo "traceback: boom" >&2
exit 2`)
	ext := newTestExternal(t, script, nil)

	_, err := ext.Compute(context.Background(), contentRequest(t, "x"))
	require.Error(t, err)

	var cerr *errors.ComputeError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Message, "boom")
}

func TestExternalProtocolViolations(t *testing.T) {
	t.Parallel()
	requireShell(t)

	tests := []struct {
		name   string
		script string
	}{
		{name: "empty output", script: `exit 0`},
		{name: "not an identifier", script: `echo hello world`},
		{name: "multiple lines", script: `echo ` + emptyBlobSWHID + `
echo ` + emptyBlobSWHID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ext := newTestExternal(t, writeScript(t, tt.script), nil)
			_, err := ext.Compute(context.Background(), contentRequest(t, "x"))
			require.Error(t, err)

			var perr *errors.ProtocolError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestExternalTimeout(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ext := newTestExternal(t, writeScript(t, `sleep 30`), nil)
	req := contentRequest(t, "x")
	req.Limits = sandbox.Limits{WallClock: 200 * time.Millisecond}

	_, err := ext.Compute(context.Background(), req)
	require.Error(t, err)

	var terr *errors.TimeoutError
	assert.ErrorAs(t, err, &terr)
}

func TestExternalLaunchFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	cfg := ExternalConfig{ID: "ghost", Command: filepath.Join(t.TempDir(), "missing"), Capabilities: capability.Default()}
	ext := NewExternal(cfg, sandbox.New(t.TempDir(), nil), nil)

	_, err := ext.Compute(context.Background(), contentRequest(t, "x"))
	require.Error(t, err)

	var uerr *errors.UnavailableError
	assert.ErrorAs(t, err, &uerr)
}

func TestExternalMissingPayload(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ext := newTestExternal(t, writeScript(t, `echo unreachable`), nil)
	_, err := ext.Compute(context.Background(), Request{
		Type:        swhid.TypeContent,
		Variant:     swhid.V1SHA1Hex,
		PayloadPath: filepath.Join(t.TempDir(), "absent.bin"),
		Limits:      sandbox.Limits{WallClock: 10 * time.Second},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestExternalProbe(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ext := newTestExternal(t, writeScript(t, `exit 0`), nil)
	require.NoError(t, ext.Probe(context.Background()))

	ghost := NewExternal(ExternalConfig{ID: "ghost", Command: filepath.Join(t.TempDir(), "missing")}, sandbox.New(t.TempDir(), nil), nil)
	err := ghost.Probe(context.Background())
	require.Error(t, err)

	var uerr *errors.UnavailableError
	assert.ErrorAs(t, err, &uerr)
}
