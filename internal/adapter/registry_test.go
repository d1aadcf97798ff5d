package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

type fakeImpl struct {
	id       string
	probeErr error
	caps     capability.Descriptor
	fn       func(ctx context.Context, req Request) (Response, error)
}

func (f *fakeImpl) Info() Info { return Info{ID: f.id} }

func (f *fakeImpl) Capabilities() capability.Descriptor { return f.caps }

func (f *fakeImpl) Probe(ctx context.Context) error { return f.probeErr }

func (f *fakeImpl) Compute(ctx context.Context, req Request) (Response, error) {
	if f.fn != nil {
		return f.fn(ctx, req)
	}
	return Response{}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(&fakeImpl{id: "pyimpl"}))

	impl, err := reg.Get("pyimpl")
	require.NoError(t, err)
	assert.Equal(t, "pyimpl", impl.Info().ID)

	_, err = reg.Get("missing")
	require.Error(t, err)

	var rerr *errors.RegistryError
	assert.ErrorAs(t, err, &rerr)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(&fakeImpl{id: "pyimpl"}))

	err := reg.Register(&fakeImpl{id: "pyimpl"})
	require.Error(t, err)

	var rerr *errors.RegistryError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "pyimpl", rerr.Implementation)
}

func TestRegistryRejectsNilAndAnonymous(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	require.Error(t, reg.Register(nil))
	require.Error(t, reg.Register(&fakeImpl{}))
}

func TestRegistryListIsSorted(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	for _, id := range []string{"zig", "alpha", "mid"} {
		require.NoError(t, reg.Register(&fakeImpl{id: id}))
	}

	var ids []string
	for _, impl := range reg.List() {
		ids = append(ids, impl.Info().ID)
	}
	assert.Equal(t, []string{"alpha", "mid", "zig"}, ids)
}

func TestRegistryProbeFiltersUnavailable(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(&fakeImpl{id: "healthy"}))
	require.NoError(t, reg.Register(&fakeImpl{
		id:       "broken",
		probeErr: errors.NewUnavailableError("broken", "binary missing", nil),
	}))

	available := reg.Probe(context.Background())
	assert.Equal(t, []string{"healthy"}, available)
}
