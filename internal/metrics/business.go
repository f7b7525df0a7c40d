package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// durationBuckets are the histogram boundaries in seconds for operation
// latencies. Appends and replays are single-transaction SQL calls and sagas
// are in-process, so the buckets lean toward the low millisecond range with
// a tail for slow databases.
var durationBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// BusinessMetrics records operation outcomes for the transactional core.
// The store and orchestrator decorators feed it; the saga compensation
// counter tracks how often the unwind path actually runs.
type BusinessMetrics interface {
	// RecordOperation records a business operation with its status.
	// Domain examples: "eventstore", "saga", "orders"
	// Operation examples: "append", "replay", "create-order"
	// Status examples: "success", "error"
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records the duration of a business operation with its status.
	// Duration is recorded in seconds as a histogram for percentile calculations.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordCompensation records how many steps a failed saga compensated.
	RecordCompensation(ctx context.Context, saga string, steps int64)
}

// businessMetrics implements BusinessMetrics using OpenTelemetry metrics.
type businessMetrics struct {
	operationCounter    metric.Int64Counter
	durationHisto       metric.Float64Histogram
	compensationCounter metric.Int64Counter
}

// NewBusinessMetrics creates a BusinessMetrics implementation on the given
// meter provider. The namespace prefixes all metric names (e.g. "posflow").
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of business operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of business operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	compensationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_saga_compensated_steps_total", namespace),
		metric.WithDescription("Total number of saga steps compensated after a failure"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compensation counter: %w", err)
	}

	return &businessMetrics{
		operationCounter:    operationCounter,
		durationHisto:       durationHisto,
		compensationCounter: compensationCounter,
	}, nil
}

// RecordOperation increments the operation counter with domain, operation, and status labels.
func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordDuration records the operation duration in seconds with domain, operation, and status labels.
func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordCompensation adds the compensated step count with a saga label.
func (b *businessMetrics) RecordCompensation(ctx context.Context, saga string, steps int64) {
	if steps <= 0 {
		return
	}
	b.compensationCounter.Add(ctx, steps,
		metric.WithAttributes(
			attribute.String("saga", saga),
		),
	)
}

// NoOpBusinessMetrics is a no-op implementation of BusinessMetrics for when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

// RecordOperation does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	// No-op
}

// RecordDuration does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	// No-op
}

// RecordCompensation does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordCompensation(ctx context.Context, saga string, steps int64) {
	// No-op
}
