package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"golang.org/x/exp/event"
	"golang.org/x/exp/event/eventtest"

	"github.com/alextanhongpin/rox/telemetry"
)

func TestNewMetricHandlerRejectsNilMeter(t *testing.T) {
	_, err := telemetry.NewMetricHandler(nil, nil)
	assert.ErrorIs(t, err, telemetry.ErrNilMeter)
}

func TestMetricHandlerRecordsCounterWithoutError(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("rox-test")

	var reported error
	h, err := telemetry.NewMetricHandler(meter, func(e error) { reported = e })
	require.NoError(t, err)

	ctx := event.WithExporter(context.Background(), event.NewExporter(h, eventtest.ExporterOptions()))

	c := event.NewCounter("rox_fetch_total", &event.MetricOptions{
		Namespace:   "rox",
		Description: "fetch attempts",
	})
	c.Record(ctx, 1, event.String("status", "success"))

	assert.NoError(t, reported)
}

func TestMetricHandlerReportsNegativeCounterValue(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("rox-test")

	var reported error
	h, err := telemetry.NewMetricHandler(meter, func(e error) { reported = e })
	require.NoError(t, err)

	ctx := event.WithExporter(context.Background(), event.NewExporter(h, eventtest.ExporterOptions()))

	c := event.NewCounter("rox_negative", &event.MetricOptions{})
	c.Record(ctx, -1)

	require.Error(t, reported)
}

func TestMetricHandlerIgnoresNonMetricEvents(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("rox-test")
	h, err := telemetry.NewMetricHandler(meter, nil)
	require.NoError(t, err)

	ctx := context.Background()
	out := h.Event(ctx, &event.Event{Kind: event.LogKind})
	assert.Equal(t, ctx, out)
}

func TestMetricHandlerReportsNilEvent(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("rox-test")
	var reported error
	h, err := telemetry.NewMetricHandler(meter, func(e error) { reported = e })
	require.NoError(t, err)

	h.Event(context.Background(), nil)
	assert.Error(t, reported)
}

func TestMetricHandlerCloseIsIdempotent(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("rox-test")
	h, err := telemetry.NewMetricHandler(meter, nil)
	require.NoError(t, err)

	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())
}
