// Package rediskv is an optional storage.Store backend for hosts that
// want the persisted configuration and overrides shared across
// processes instead of pinned to local disk.
package rediskv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/alextanhongpin/rox/storage"
)

// Store keys every entry under Prefix+name in the given redis client.
type Store struct {
	Client *redis.Client
	Prefix string
}

var _ storage.Store = (*Store)(nil)

// New returns a Store backed by client. Keys are namespaced under
// prefix (e.g. "rox:") to avoid colliding with unrelated keys in a
// shared database.
func New(client *redis.Client, prefix string) *Store {
	return &Store{Client: client, Prefix: prefix}
}

func (s *Store) Entry(name string) storage.Entry {
	return &entry{client: s.Client, key: s.Prefix + name}
}

type entry struct {
	client *redis.Client
	key    string
}

var _ storage.Entry = (*entry)(nil)

func (e *entry) Read(ctx context.Context) (string, bool, error) {
	v, err := e.client.Get(ctx, e.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (e *entry) Write(ctx context.Context, value string) error {
	return e.client.Set(ctx, e.key, value, 0).Err()
}

func (e *entry) Delete(ctx context.Context) error {
	return e.client.Del(ctx, e.key).Err()
}
