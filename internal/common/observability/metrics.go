package observability

import (
	"context"
	"time"

	"intake-workers/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records per-event OTel instruments exported through Prometheus.
type Observability struct {
	meterProvider *metric.MeterProvider
	eventCounter  otelmetric.Int64Counter
	eventDuration otelmetric.Float64Histogram
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	eventCounter, _ := meter.Int64Counter(
		"intake.events",
		otelmetric.WithDescription("Inbound conversation events processed"),
	)

	eventDuration, _ := meter.Float64Histogram(
		"intake.event.duration",
		otelmetric.WithDescription("Inbound event processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		eventCounter:  eventCounter,
		eventDuration: eventDuration,
	}
}

// RecordEvent counts one processed event and its duration under state and outcome.
func (o *Observability) RecordEvent(ctx context.Context, state, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("state", state),
		attribute.String("outcome", outcome),
	)
	if o.eventCounter != nil {
		o.eventCounter.Add(ctx, 1, attrs)
	}
	if o.eventDuration != nil {
		o.eventDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
