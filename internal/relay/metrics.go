package relay

import (
	"context"

	"horoscope-relay/internal/horoscope"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "horoscope-relay/relay"

func newTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

type metrics struct {
	publishedCounter metric.Int64Counter
	failedCounter    metric.Int64Counter
	attemptCounter   metric.Int64Counter
}

// newMetrics uses the global meter provider, which is a no-op until
// lib/telemetry installs an exporter. Instrument creation only fails on
// invalid names, in which case the no-op instruments are kept.
func newMetrics() metrics {
	meter := otel.Meter(instrumentationName)
	published, err := meter.Int64Counter("relay.records.published")
	if err != nil {
		otel.Handle(err)
	}
	failed, err := meter.Int64Counter("relay.records.failed")
	if err != nil {
		otel.Handle(err)
	}
	attempts, err := meter.Int64Counter("relay.attempts")
	if err != nil {
		otel.Handle(err)
	}
	return metrics{
		publishedCounter: published,
		failedCounter:    failed,
		attemptCounter:   attempts,
	}
}

func (m metrics) published(ctx context.Context, sign horoscope.Sign) {
	if m.publishedCounter != nil {
		m.publishedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("sign", sign.Canonical())))
	}
}

func (m metrics) failed(ctx context.Context, sign horoscope.Sign) {
	if m.failedCounter != nil {
		m.failedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("sign", sign.Canonical())))
	}
}

func (m metrics) attempt(ctx context.Context, succeeded bool) {
	if m.attemptCounter != nil {
		m.attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("succeeded", succeeded)))
	}
}
