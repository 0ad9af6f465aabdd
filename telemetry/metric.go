// This file adapts golang.org/x/exp/event@v0.0.0-20230817173708-d852ddb80c63/otel,
// whose supported OTel package is no longer current, into the rox
// telemetry stack's Metric slot.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/exp/event"
)

var (
	ErrNoMetricKey           = errors.New("telemetry: no metric key for metric event")
	ErrNoMetricValue         = errors.New("telemetry: no metric value for metric event")
	ErrNilMeter              = errors.New("telemetry: meter cannot be nil")
	ErrUnsupportedMetricType = errors.New("telemetry: unsupported metric type")
)

// MetricHandler renders Metric-kind events — fetch counts, impression
// counts, evaluation latencies — into OpenTelemetry instruments, one
// per distinct event.Metric, created lazily on first use.
type MetricHandler struct {
	meter metric.Meter

	mu          sync.RWMutex
	recordFuncs map[event.Metric]recordFunc

	onHandlerError func(error)
}

// recordFunc closes over the otel instrument for one event.Metric so
// Event doesn't need a type switch on every call.
type recordFunc func(context.Context, event.Label, []event.Label) error

var _ event.Handler = (*MetricHandler)(nil)

// NewMetricHandler wraps m. A nil onHandlerError falls back to
// log.Printf.
func NewMetricHandler(m metric.Meter, onHandlerError func(error)) (*MetricHandler, error) {
	if m == nil {
		return nil, ErrNilMeter
	}
	if onHandlerError == nil {
		onHandlerError = func(err error) { log.Printf("telemetry: metric handler: %v", err) }
	}
	return &MetricHandler{
		meter:          m,
		recordFuncs:    make(map[event.Metric]recordFunc),
		onHandlerError: onHandlerError,
	}, nil
}

func (m *MetricHandler) Event(ctx context.Context, e *event.Event) context.Context {
	if e == nil {
		m.onHandlerError(errNilEvent)
		return ctx
	}
	if e.Kind != event.MetricKind {
		return ctx
	}

	mi, ok := event.MetricKey.Find(e)
	if !ok {
		m.onHandlerError(ErrNoMetricKey)
		return ctx
	}
	em, ok := mi.(event.Metric)
	if !ok {
		m.onHandlerError(fmt.Errorf("telemetry: metric key is not an event.Metric: %T", mi))
		return ctx
	}
	lval := e.Find(event.MetricVal)
	if !lval.HasValue() {
		m.onHandlerError(ErrNoMetricValue)
		return ctx
	}

	rf, err := m.getRecordFunc(em)
	if err != nil {
		m.onHandlerError(fmt.Errorf("telemetry: record func for %s: %w", em.Name(), err))
		return ctx
	}
	if err := rf(ctx, lval, e.Labels); err != nil {
		m.onHandlerError(fmt.Errorf("telemetry: recording %s: %w", em.Name(), err))
	}
	return ctx
}

func (m *MetricHandler) getRecordFunc(em event.Metric) (recordFunc, error) {
	m.mu.RLock()
	if f, ok := m.recordFuncs[em]; ok {
		m.mu.RUnlock()
		return f, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.recordFuncs[em]; ok {
		return f, nil
	}

	f, err := m.newRecordFunc(em)
	if err != nil {
		return nil, err
	}
	m.recordFuncs[em] = f
	return f, nil
}

func (m *MetricHandler) newRecordFunc(em event.Metric) (recordFunc, error) {
	if em == nil {
		return nil, errors.New("telemetry: metric cannot be nil")
	}

	opts := em.Options()
	name := em.Name()
	if name == "" {
		return nil, errors.New("telemetry: metric name cannot be empty")
	}
	if opts.Namespace != "" {
		name = opts.Namespace + "_" + name
	}

	switch metricType := em.(type) {
	case *event.Counter:
		c, err := m.meter.Int64Counter(name,
			metric.WithDescription(opts.Description),
			metric.WithUnit(string(opts.Unit)))
		if err != nil {
			return nil, fmt.Errorf("telemetry: create counter %s: %w", name, err)
		}
		return func(ctx context.Context, l event.Label, attrs []event.Label) error {
			value := l.Int64()
			if value < 0 {
				return fmt.Errorf("telemetry: counter value cannot be negative: %d", value)
			}
			c.Add(ctx, value, metric.WithAttributes(labelsToAttributes(attrs)...))
			return nil
		}, nil

	case *event.FloatGauge:
		g, err := m.meter.Float64UpDownCounter(name,
			metric.WithDescription(opts.Description),
			metric.WithUnit(string(opts.Unit)))
		if err != nil {
			return nil, fmt.Errorf("telemetry: create gauge %s: %w", name, err)
		}
		return func(ctx context.Context, l event.Label, attrs []event.Label) error {
			g.Add(ctx, l.Float64(), metric.WithAttributes(labelsToAttributes(attrs)...))
			return nil
		}, nil

	case *event.DurationDistribution:
		h, err := m.meter.Int64Histogram(name,
			metric.WithDescription(opts.Description),
			metric.WithUnit(string(opts.Unit)))
		if err != nil {
			return nil, fmt.Errorf("telemetry: create histogram %s: %w", name, err)
		}
		return func(ctx context.Context, l event.Label, attrs []event.Label) error {
			duration := l.Duration()
			if duration < 0 {
				return fmt.Errorf("telemetry: duration cannot be negative: %v", duration)
			}
			h.Record(ctx, duration.Nanoseconds(), metric.WithAttributes(labelsToAttributes(attrs)...))
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMetricType, metricType)
	}
}

// Close clears cached instrument-recording closures; safe to call more
// than once.
func (m *MetricHandler) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordFuncs = make(map[event.Metric]recordFunc)
	return nil
}

func labelsToAttributes(ls []event.Label) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, l := range ls {
		if l.Name == string(event.MetricKey) || l.Name == string(event.MetricVal) {
			continue
		}
		if l.Name == "" || !l.HasValue() {
			continue
		}
		if attr, err := labelToAttribute(l); err == nil {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

func labelToAttribute(l event.Label) (attribute.KeyValue, error) {
	switch {
	case l.IsString():
		return attribute.String(l.Name, l.String()), nil
	case l.IsInt64():
		return attribute.Int64(l.Name, l.Int64()), nil
	case l.IsFloat64():
		return attribute.Float64(l.Name, l.Float64()), nil
	case l.IsBool():
		return attribute.Bool(l.Name, l.Bool()), nil
	default:
		return attribute.KeyValue{}, fmt.Errorf("telemetry: cannot convert label of type %T to an attribute", l.Interface())
	}
}
