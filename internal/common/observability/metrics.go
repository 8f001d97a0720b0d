package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	eventCounter  otelmetric.Int64Counter
	tickDuration  otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	eventCounter, _ := meter.Int64Counter(
		"events.processed",
		otelmetric.WithDescription("Number of domain events processed"),
	)

	tickDuration, _ := meter.Float64Histogram(
		"timers.tick_duration",
		otelmetric.WithDescription("Scheduled tick processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		eventCounter:  eventCounter,
		tickDuration:  tickDuration,
	}
}

func (o *Observability) RecordEventProcessed(ctx context.Context, topic, status string) {
	if o != nil && o.eventCounter != nil {
		o.eventCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordTickDuration(ctx context.Context, duration time.Duration, component string) {
	if o != nil && o.tickDuration != nil {
		o.tickDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("component", component),
		))
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
