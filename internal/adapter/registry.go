package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/swhidcheck/swhidcheck/internal/logger"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Registry holds the implementations of one run, keyed by id. Registration
// is explicit; nothing is discovered implicitly.
type Registry struct {
	mu    sync.RWMutex
	impls map[string]Implementation
	log   *logger.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{impls: make(map[string]Implementation), log: log}
}

// Register adds an implementation. Duplicate ids are rejected.
func (r *Registry) Register(impl Implementation) error {
	if impl == nil {
		return errors.NewRegistryError("", errors.NewValidationError("implementation", "implementation is nil", nil))
	}
	id := impl.Info().ID
	if id == "" {
		return errors.NewRegistryError("", errors.NewValidationError("id", "implementation id is empty", nil))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.impls[id]; exists {
		return errors.NewRegistryError(id, errors.NewValidationError("id", "already registered", nil))
	}
	r.impls[id] = impl
	return nil
}

// Get retrieves an implementation by id.
func (r *Registry) Get(id string) (Implementation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, ok := r.impls[id]
	if !ok {
		return nil, errors.NewRegistryError(id, errors.NewValidationError("id", "not registered", nil))
	}
	return impl, nil
}

// List returns every implementation in id order.
func (r *Registry) List() []Implementation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.impls))
	for id := range r.impls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Implementation, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.impls[id])
	}
	return out
}

// Probe checks every implementation and returns the ids that answered,
// in id order. Failing implementations are logged and left out; an
// unavailable implementation is never an engine fault.
func (r *Registry) Probe(ctx context.Context) []string {
	available := make([]string, 0, len(r.impls))
	for _, impl := range r.List() {
		id := impl.Info().ID
		if err := impl.Probe(ctx); err != nil {
			r.log.WithFields(map[string]any{"implementation": id}).
				Warn("implementation unavailable: " + err.Error())
			continue
		}
		available = append(available, id)
	}
	return available
}
