package telemetry

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentPerfStats samples heap, live objects and goroutines every
// interval until ctx is done. It must be called after Setup so the gauges
// belong to the installed meter provider.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) error {
	meter := otel.Meter("runtime")
	heap, err := meter.Int64Gauge("runtime.heap_alloc", metric.WithUnit("By"))
	if err != nil {
		return err
	}
	objects, err := meter.Int64Gauge("runtime.live_objects")
	if err != nil {
		return err
	}
	goroutines, err := meter.Int64Gauge("runtime.goroutines")
	if err != nil {
		return err
	}

	go func() {
		var stats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&stats)
				heap.Record(ctx, int64(stats.HeapAlloc))
				objects.Record(ctx, int64(stats.Mallocs)-int64(stats.Frees))
				goroutines.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
