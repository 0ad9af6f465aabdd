// Package filekv is the default storage backend (spec §6): it writes
// one JSON file per entry under a configured directory, keyed by a
// sanitized version of the entry name.
package filekv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alextanhongpin/rox/storage"
)

// Store writes entries as JSON files under Dir, one file per entry
// name, matching "Default backend writes JSON files under a configured
// directory, one per entry" (spec §6).
type Store struct {
	Dir string

	mu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// New returns a Store rooted at dir. dir is created lazily on first
// write.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) Entry(name string) storage.Entry {
	return &entry{store: s, name: name}
}

type fileRecord struct {
	Value string `json:"value"`
}

type entry struct {
	store *Store
	name  string
}

var _ storage.Entry = (*entry)(nil)

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (e *entry) path() string {
	return filepath.Join(e.store.Dir, sanitize(e.name)+".json")
}

func (e *entry) Read(ctx context.Context) (string, bool, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	raw, err := os.ReadFile(e.path())
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", false, fmt.Errorf("filekv: corrupt entry %q: %w", e.name, err)
	}
	return rec.Value, true, nil
}

func (e *entry) Write(ctx context.Context, value string) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	if err := os.MkdirAll(e.store.Dir, 0o755); err != nil {
		return err
	}

	raw, err := json.Marshal(fileRecord{Value: value})
	if err != nil {
		return err
	}

	tmp := e.path() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, e.path())
}

func (e *entry) Delete(ctx context.Context) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	err := os.Remove(e.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
