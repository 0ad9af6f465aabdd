// Package override holds the process-wide flag value overrides used by
// spec §4.C5's override layer: host code (typically a debug menu or a
// test harness) can pin a flag to a literal string value ahead of
// freeze and experiment evaluation.
package override

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alextanhongpin/rox/storage"
)

// Repository is a concurrency-safe flag-name -> raw string value map,
// persisted through a storage.Entry so overrides survive a restart.
type Repository struct {
	entry storage.Entry

	mu     sync.RWMutex
	values map[string]string
}

// New returns a Repository backed by entry. Call Load once during setup
// to hydrate it from whatever was last persisted.
func New(entry storage.Entry) *Repository {
	return &Repository{entry: entry, values: make(map[string]string)}
}

// Load replaces the in-memory map with whatever the backing entry holds.
// A missing entry is not an error; it just leaves the map empty.
func (r *Repository) Load(ctx context.Context) error {
	raw, ok, err := r.entry.Read(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	values := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return err
	}

	r.mu.Lock()
	r.values = values
	r.mu.Unlock()
	return nil
}

func (r *Repository) persist(ctx context.Context) error {
	if r.entry == nil {
		return nil
	}
	r.mu.RLock()
	raw, err := json.Marshal(r.values)
	r.mu.RUnlock()
	if err != nil {
		return err
	}
	return r.entry.Write(ctx, string(raw))
}

// Get returns the override for name, if any.
func (r *Repository) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether name currently has an override set.
func (r *Repository) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set pins name to value and persists the updated map.
func (r *Repository) Set(ctx context.Context, name, value string) error {
	r.mu.Lock()
	r.values[name] = value
	r.mu.Unlock()
	return r.persist(ctx)
}

// Clear removes the override for name, if any, and persists the result.
func (r *Repository) Clear(ctx context.Context, name string) error {
	r.mu.Lock()
	delete(r.values, name)
	r.mu.Unlock()
	return r.persist(ctx)
}

// ClearAll removes every override and persists the empty map.
func (r *Repository) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	r.values = make(map[string]string)
	r.mu.Unlock()
	return r.persist(ctx)
}

// Names returns every flag name with an active override.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.values))
	for name := range r.values {
		out = append(out, name)
	}
	return out
}
