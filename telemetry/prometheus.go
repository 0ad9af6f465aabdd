// This file adapts golang.org/x/exp/event@v0.0.0-20230817173708-d852ddb80c63/otel,
// whose supported OTel package is no longer current, into a Prometheus
// sink for the rox telemetry stack's Metric slot.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/event"
)

var (
	ErrNilRegisterer                   = errors.New("telemetry: registerer cannot be nil")
	ErrUnsupportedPrometheusMetricType = errors.New("telemetry: unsupported metric type for prometheus handler")
	ErrUnsupportedCollectorType        = errors.New("telemetry: unsupported collector type for prometheus handler")
)

// PrometheusHandler renders Metric-kind events into dynamically
// created Prometheus collectors, one per distinct metric name.
type PrometheusHandler struct {
	client prometheus.Registerer

	mu         sync.RWMutex
	collectors map[string]prometheus.Collector

	onHandlerError func(error)
}

var _ event.Handler = (*PrometheusHandler)(nil)

// NewPrometheusHandler registers collectors with client as events
// arrive. A nil onHandlerError falls back to log.Printf.
func NewPrometheusHandler(client prometheus.Registerer, onHandlerError func(error)) (*PrometheusHandler, error) {
	if client == nil {
		return nil, ErrNilRegisterer
	}
	if onHandlerError == nil {
		onHandlerError = func(err error) { log.Printf("telemetry: prometheus handler: %v", err) }
	}
	return &PrometheusHandler{
		client:         client,
		collectors:     make(map[string]prometheus.Collector),
		onHandlerError: onHandlerError,
	}, nil
}

func (m *PrometheusHandler) Event(ctx context.Context, e *event.Event) context.Context {
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

	name := em.Name()
	if name == "" {
		m.onHandlerError(errors.New("telemetry: metric name cannot be empty"))
		return ctx
	}

	opts := em.Options()
	nameWithUnit := name
	if opts.Unit == event.UnitBytes {
		nameWithUnit += "_bytes"
	}

	keys, vals := labelsToKeyVals(e.Labels)

	if err := m.ensureCollector(em, nameWithUnit, &opts, keys); err != nil {
		m.onHandlerError(fmt.Errorf("telemetry: ensure collector for %s: %w", name, err))
		return ctx
	}
	if err := m.recordMetric(name, &opts, lval, vals); err != nil {
		m.onHandlerError(fmt.Errorf("telemetry: recording %s: %w", name, err))
	}
	return ctx
}

func (m *PrometheusHandler) ensureCollector(em event.Metric, nameWithUnit string, opts *event.MetricOptions, keys []string) error {
	name := em.Name()

	m.mu.RLock()
	_, exists := m.collectors[name]
	m.mu.RUnlock()
	if exists {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collectors[name]; exists {
		return nil
	}

	var c prometheus.Collector
	switch em.(type) {
	case *event.Counter:
		c = prometheus.NewCounterVec(prometheus.CounterOpts{
			Help:      opts.Description,
			Name:      nameWithUnit,
			Namespace: opts.Namespace,
		}, keys)
	case *event.FloatGauge:
		c = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Help:      opts.Description,
			Name:      nameWithUnit,
			Namespace: opts.Namespace,
		}, keys)
	case *event.DurationDistribution:
		histogramName := nameWithUnit
		if opts.Unit == event.UnitMilliseconds {
			histogramName += "_milliseconds"
		} else {
			histogramName += "_seconds"
		}
		c = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Help:      opts.Description,
			Name:      histogramName,
			Namespace: opts.Namespace,
		}, keys)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPrometheusMetricType, name)
	}

	m.collectors[name] = c
	if err := m.client.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.collectors[name] = are.ExistingCollector
		} else {
			return fmt.Errorf("telemetry: register collector %s: %w", name, err)
		}
	}
	return nil
}

func (m *PrometheusHandler) recordMetric(name string, opts *event.MetricOptions, lval event.Label, vals []string) error {
	m.mu.RLock()
	c, ok := m.collectors[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("telemetry: collector not found for metric %s", name)
	}

	switch col := c.(type) {
	case *prometheus.CounterVec:
		value := float64(lval.Int64())
		if value < 0 {
			return fmt.Errorf("telemetry: counter value cannot be negative: %f", value)
		}
		col.WithLabelValues(vals...).Add(value)
	case *prometheus.GaugeVec:
		col.WithLabelValues(vals...).Set(lval.Float64())
	case *prometheus.HistogramVec:
		duration := lval.Duration()
		if duration < 0 {
			return fmt.Errorf("telemetry: duration cannot be negative: %v", duration)
		}
		durationValue := duration.Seconds()
		if opts.Unit == event.UnitMilliseconds {
			durationValue = float64(duration.Milliseconds())
		}
		col.WithLabelValues(vals...).Observe(durationValue)
	default:
		return fmt.Errorf("%w: %s (type: %T)", ErrUnsupportedCollectorType, name, col)
	}
	return nil
}

// Collector returns the prometheus collector registered for name, if
// any — useful in tests asserting on recorded values.
func (m *PrometheusHandler) Collector(name string) (prometheus.Collector, bool) {
	if name == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collectors[name]
	return c, ok
}

// Close unregisters every collector; safe to call more than once.
func (m *PrometheusHandler) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, collector := range m.collectors {
		if !m.client.Unregister(collector) {
			m.onHandlerError(fmt.Errorf("telemetry: unregister collector %s", name))
		}
	}
	m.collectors = make(map[string]prometheus.Collector)
	return nil
}

func labelsToKeyVals(labels []event.Label) (keys []string, vals []string) {
	for _, l := range labels {
		if l.Name == string(event.MetricKey) || l.Name == string(event.MetricVal) {
			continue
		}
		if l.Name == "" || !l.HasValue() {
			continue
		}
		keys = append(keys, l.Name)
		vals = append(vals, l.String())
	}
	return
}
