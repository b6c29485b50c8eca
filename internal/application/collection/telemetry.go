package collection

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jyl/universe/internal/application/collection"

// telemetry holds the instruments shared by every list manager.
type telemetry struct {
	tracer          trace.Tracer
	operations      metric.Int64Counter
	duration        metric.Float64Histogram
	reconciliations metric.Int64Counter
	divergedRows    metric.Int64Counter
}

func newTelemetry() *telemetry {
	meter := otel.Meter(instrumentationName)
	t := &telemetry{tracer: otel.Tracer(instrumentationName)}

	// Instrument constructors only fail on invalid names; the returned
	// instrument is a usable no-op in that case.
	t.operations, _ = meter.Int64Counter("universe.sync.operations",
		metric.WithDescription("Row store operations dispatched by list managers"),
		metric.WithUnit("{operation}"))
	t.duration, _ = meter.Float64Histogram("universe.sync.duration",
		metric.WithDescription("Duration of row store operations"),
		metric.WithUnit("s"))
	t.reconciliations, _ = meter.Int64Counter("universe.sync.reconciliations",
		metric.WithDescription("Re-fetches triggered by failed writes"),
		metric.WithUnit("{reconciliation}"))
	t.divergedRows, _ = meter.Int64Counter("universe.sync.diverged_rows",
		metric.WithDescription("Rows that differed between the local list and the store at reconciliation"),
		metric.WithUnit("{row}"))

	return t
}

func (t *telemetry) recordOperation(ctx context.Context, list string, kind opKind, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("list", list),
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	)
	t.operations.Add(ctx, 1, attrs)
	t.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (t *telemetry) recordReconciliation(ctx context.Context, list string, diff Divergence) {
	attrs := metric.WithAttributes(attribute.String("list", list))
	t.reconciliations.Add(ctx, 1, attrs)
	if n := diff.Size(); n > 0 {
		t.divergedRows.Add(ctx, int64(n), attrs)
	}
}
