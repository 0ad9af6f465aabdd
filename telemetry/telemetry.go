// Package telemetry is the ambient logging/metrics/tracing stack:
// fetch, impression, and evaluation events (spec §4.C7, §4.C12, §4.C2)
// all flow through one MultiHandler that fans each event out to a
// structured-logging sink, a metrics sink, and an optional tracing
// sink, instead of each subsystem hand-rolling its own fmt.Printf or
// ad hoc counter bookkeeping.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/event"
)

var (
	ErrNilHandler = errors.New("telemetry: handler cannot be nil")
	errNilEvent   = errors.New("telemetry: event cannot be nil")
)

// handler is the narrow surface every MultiHandler slot must satisfy;
// it is exactly event.Handler, named locally so doc comments below can
// talk about "the Log slot" without repeating the import.
type handler interface {
	Event(ctx context.Context, e *event.Event) context.Context
}

// MultiHandler fans one event out to up to three independent sinks. Any
// slot left nil is skipped.
type MultiHandler struct {
	Log    handler
	Metric handler
	Trace  handler
}

var _ event.Handler = (*MultiHandler)(nil)

// Event forwards ev to Log, then Metric, then Trace, so a human reading
// logs sees a decision (e.g. a fetch's resulting status, an
// evaluation's chosen variant) before its numeric side effects land.
func (h *MultiHandler) Event(ctx context.Context, ev *event.Event) context.Context {
	if ev == nil {
		return ctx
	}
	if h.Log != nil {
		ctx = h.Log.Event(ctx, ev)
	}
	if h.Metric != nil {
		ctx = h.Metric.Event(ctx, ev)
	}
	if h.Trace != nil {
		ctx = h.Trace.Event(ctx, ev)
	}
	return ctx
}

// Close closes every slot that implements io.Closer, continuing past
// the first error so one failing sink doesn't block closing the rest
// (the rox client's Shutdown, spec §4.C10, must still make progress).
func (h *MultiHandler) Close() error {
	var firstErr error
	closeSlot := func(name string, v handler) {
		c, ok := v.(io.Closer)
		if !ok || c == nil {
			return
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telemetry: closing %s handler: %w", name, err)
		}
	}
	closeSlot("log", h.Log)
	closeSlot("metric", h.Metric)
	closeSlot("trace", h.Trace)
	return firstErr
}
