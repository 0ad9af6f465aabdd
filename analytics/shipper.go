package analytics

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Shipper delivers a batch of events to an external sink. Ship must be
// safe to call from the queue's single consumer goroutine; it need not
// be safe for concurrent use by multiple goroutines.
type Shipper interface {
	Ship(ctx context.Context, events []Event) error
}

// ShipperFunc adapts a plain function to a Shipper.
type ShipperFunc func(ctx context.Context, events []Event) error

func (f ShipperFunc) Ship(ctx context.Context, events []Event) error { return f(ctx, events) }

// stdoutShipper writes one JSON line per event to w, the default sink
// for development and for hosts that have not configured a real one
// (spec §6 Options.AnalyticsShipper is optional).
type stdoutShipper struct {
	w  io.Writer
	mu sync.Mutex
}

// NewStdoutShipper ships by writing newline-delimited JSON to os.Stdout.
func NewStdoutShipper() Shipper { return NewWriterShipper(os.Stdout) }

// NewWriterShipper ships by writing newline-delimited JSON to w.
func NewWriterShipper(w io.Writer) Shipper { return &stdoutShipper{w: w} }

func (s *stdoutShipper) Ship(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// MemoryShipper accumulates every shipped event, for tests and for
// hosts embedding the engine in a process that queries its own
// impression history directly rather than through a wire sink.
type MemoryShipper struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryShipper returns a Shipper that records events in memory.
func NewMemoryShipper() *MemoryShipper { return &MemoryShipper{} }

func (s *MemoryShipper) Ship(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of every event shipped so far.
func (s *MemoryShipper) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
