package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// cycleMetrics holds the counters/histogram keeping the RED shape the
// teacher's own tracing code favours: one counter per terminal outcome,
// one duration histogram, one gauge-style up/down counter for cycles
// currently in flight.
type cycleMetrics struct {
	started    metric.Int64Counter
	done       metric.Int64Counter
	failed     metric.Int64Counter
	cancelled  metric.Int64Counter
	duration   metric.Float64Histogram
	inFlight   metric.Int64UpDownCounter
	approvals  metric.Int64Counter
	rollbacks  metric.Int64Counter
}

func newCycleMetrics(meter metric.Meter) (*cycleMetrics, error) {
	m := &cycleMetrics{}
	var err error

	if m.started, err = meter.Int64Counter("sentinel.cycle.started",
		metric.WithDescription("cycles started"), metric.WithUnit("{cycle}")); err != nil {
		return nil, err
	}
	if m.done, err = meter.Int64Counter("sentinel.cycle.done",
		metric.WithDescription("cycles that reached DONE"), metric.WithUnit("{cycle}")); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("sentinel.cycle.failed",
		metric.WithDescription("cycles that reached FAILED"), metric.WithUnit("{cycle}")); err != nil {
		return nil, err
	}
	if m.cancelled, err = meter.Int64Counter("sentinel.cycle.cancelled",
		metric.WithDescription("cycles that reached CANCELLED"), metric.WithUnit("{cycle}")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("sentinel.cycle.duration",
		metric.WithDescription("cycle wall-clock duration"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300)); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter("sentinel.cycle.in_flight",
		metric.WithDescription("cycles currently running"), metric.WithUnit("{cycle}")); err != nil {
		return nil, err
	}
	if m.approvals, err = meter.Int64Counter("sentinel.approval.requested",
		metric.WithDescription("approval requests raised by the Gate"), metric.WithUnit("{approval}")); err != nil {
		return nil, err
	}
	if m.rollbacks, err = meter.Int64Counter("sentinel.cycle.rolled_back",
		metric.WithDescription("VFS restores performed after a failed verification"), metric.WithUnit("{rollback}")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordStarted increments the started counter and the in-flight gauge.
func (p *Provider) RecordStarted(ctx context.Context) {
	p.metrics.started.Add(ctx, 1)
	p.metrics.inFlight.Add(ctx, 1)
}

// RecordTerminal records the terminal outcome of one cycle: which counter
// fires, the duration histogram observation, and the in-flight decrement.
func (p *Provider) RecordTerminal(ctx context.Context, outcome string, durationSeconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	switch outcome {
	case "done":
		p.metrics.done.Add(ctx, 1)
	case "failed":
		p.metrics.failed.Add(ctx, 1)
	case "cancelled":
		p.metrics.cancelled.Add(ctx, 1)
	}
	p.metrics.duration.Record(ctx, durationSeconds, attrs)
	p.metrics.inFlight.Add(ctx, -1)
}

// RecordApprovalRequested increments the approval-request counter, tagged
// by module so HITL load can be broken down per approval gate.
func (p *Provider) RecordApprovalRequested(ctx context.Context, moduleID string) {
	p.metrics.approvals.Add(ctx, 1, metric.WithAttributes(attribute.String("module", moduleID)))
}

// RecordRollback increments the rollback counter, tagged by reason.
func (p *Provider) RecordRollback(ctx context.Context, reason string) {
	p.metrics.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
