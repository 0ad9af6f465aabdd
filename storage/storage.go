// Package storage defines the persistence collaborator interface (spec
// §6): an opaque string-keyed entry store the core uses to durably hold
// the last accepted configuration payload and the overrides map; the
// analytics queue is kept in memory only. The core never assumes a
// particular backend; filekv and rediskv are the two default
// implementations.
package storage

import "context"

// Entry is one named, independently read/written/deleted string blob.
type Entry interface {
	// Read returns the stored string, or ok=false if nothing has been
	// written yet.
	Read(ctx context.Context) (value string, ok bool, err error)
	Write(ctx context.Context, value string) error
	Delete(ctx context.Context) error
}

// Store opens named entries. Backends give best-effort durability: a
// crash between Write and the next Read may lose the most recent write,
// but never corrupts an earlier one.
type Store interface {
	Entry(name string) Entry
}

// Well-known entry names. The core uses the config and overrides
// entries; EntryAnalyticsSpill is reserved and no package writes it.
const (
	EntryConfigPrefix   = "rox.config."
	EntryOverrides      = "rox.overrides"
	EntryAnalyticsSpill = "rox.analytics.spillover"
)

// ConfigEntryName returns the storage key for the last accepted
// configuration payload for the given API key (spec §4.C7: "persist the
// raw payload to local storage keyed by API key").
func ConfigEntryName(apiKey string) string {
	return EntryConfigPrefix + apiKey
}
