package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/event"
	"golang.org/x/exp/slog"
)

// SlogHandler renders Log-kind events through a *slog.Logger, attaching
// the active span's trace/span IDs when one is present in ctx so logs
// and traces correlate without every call site wiring that itself.
type SlogHandler struct {
	logger         *slog.Logger
	onHandlerError func(error)
}

// NewSlogHandler wraps logger. A nil onHandlerError falls back to
// log.Printf.
func NewSlogHandler(logger *slog.Logger, onHandlerError func(error)) (*SlogHandler, error) {
	if logger == nil {
		return nil, errors.New("telemetry: logger cannot be nil")
	}
	if onHandlerError == nil {
		onHandlerError = func(err error) { log.Printf("telemetry: slog handler: %v", err) }
	}
	return &SlogHandler{logger: logger, onHandlerError: onHandlerError}, nil
}

func (h *SlogHandler) Event(ctx context.Context, ev *event.Event) context.Context {
	if ev == nil {
		h.onHandlerError(errNilEvent)
		return ctx
	}
	if ev.Kind != event.LogKind {
		return ctx
	}

	var attrs []slog.Attr
	if ev.Source.Space != "" {
		attrs = append(attrs, slog.String("in", ev.Source.Space))
	}
	if ev.Source.Name != "" {
		attrs = append(attrs, slog.String("name", ev.Source.Name))
	}

	var isError bool
	var msg string
	if m := ev.Find("msg"); m.HasValue() {
		msg = m.String()
	}

	for _, l := range ev.Labels {
		if !l.HasValue() || l.Name == "" || l.Name == "msg" {
			continue
		}
		if l.Name == "error" {
			isError = true
		}
		if attr := toAttr(l); attr.Key != "" {
			attrs = append(attrs, attr)
		}
	}

	level := slog.LevelInfo
	if isError {
		level = slog.LevelError
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		sc := span.SpanContext()
		if sc.HasTraceID() {
			attrs = append(attrs, slog.String("traceId", sc.TraceID().String()))
		}
		if sc.HasSpanID() {
			attrs = append(attrs, slog.String("spanId", sc.SpanID().String()))
		}
		if isError {
			span.SetStatus(codes.Error, msg)
		}
	}

	h.record(ctx, ev.At, level, msg, attrs...)
	return ctx
}

func (h *SlogHandler) record(ctx context.Context, at time.Time, level slog.Level, msg string, attrs ...slog.Attr) {
	if !h.logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(7, pcs[:])
	r := slog.NewRecord(at, level, msg, pcs[0])
	r.AddAttrs(attrs...)
	if ctx == nil {
		ctx = context.Background()
	}
	_ = h.logger.Handler().Handle(ctx, r)
}

func toAttr(l event.Label) slog.Attr {
	if !l.HasValue() || l.Name == "" {
		return slog.Attr{}
	}
	switch {
	case l.IsString():
		return slog.String(l.Name, l.String())
	case l.IsBytes():
		return slog.String(l.Name, string(l.Bytes()))
	case l.IsInt64():
		return slog.Int64(l.Name, l.Int64())
	case l.IsUint64():
		return slog.Uint64(l.Name, l.Uint64())
	case l.IsFloat64():
		return slog.Float64(l.Name, l.Float64())
	case l.IsBool():
		return slog.Bool(l.Name, l.Bool())
	default:
		switch v := l.Interface().(type) {
		case string:
			return slog.String(l.Name, v)
		case fmt.Stringer:
			return slog.String(l.Name, v.String())
		default:
			return slog.Any(l.Name, v)
		}
	}
}
