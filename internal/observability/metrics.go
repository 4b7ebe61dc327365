package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	metricOracleCalls    = "prunefang.oracle.calls.total"
	metricOracleDuration = "prunefang.oracle.duration.seconds"
	metricCommits        = "prunefang.commits.total"
	metricConflicts      = "prunefang.conflicts.total"
	metricStaleDrops     = "prunefang.tasks.stale.total"
	metricTasks          = "prunefang.tasks.total"
	metricTreeWeight     = "prunefang.tree.weight.bytes"

	attrKind    = "kind"
	attrVerdict = "verdict"

	verdictInteresting = "interesting"
	verdictBoring      = "boring"
)

// oracleBucketBoundaries covers 1ms to 300s: oracles range from trivial
// text greps to full compiler invocations.
var oracleBucketBoundaries = []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// EngineMetrics holds the OTel instruments for the reduction engine.
type EngineMetrics struct {
	oracleCalls    metric.Int64Counter
	oracleDuration metric.Float64Histogram
	commits        metric.Int64Counter
	conflicts      metric.Int64Counter
	staleDrops     metric.Int64Counter
	tasks          metric.Int64Counter
	treeWeight     metric.Int64Gauge
}

// NewEngineMetrics creates the engine instruments from the given meter.
func NewEngineMetrics(mt metric.Meter) (*EngineMetrics, error) {
	b := newMetricBuilder(mt)

	em := &EngineMetrics{
		oracleCalls:    b.counter(metricOracleCalls, "Total number of interestingness oracle invocations", "{call}"),
		oracleDuration: b.histogram(metricOracleDuration, "Oracle invocation duration in seconds", "s", oracleBucketBoundaries...),
		commits:        b.counter(metricCommits, "Total number of committed tree replacements", "{commit}"),
		conflicts:      b.counter(metricConflicts, "Total number of lost replacement races", "{conflict}"),
		staleDrops:     b.counter(metricStaleDrops, "Total number of tasks dropped due to stale node ids", "{task}"),
		tasks:          b.counter(metricTasks, "Total number of dispatched tasks by kind", "{task}"),
		treeWeight:     b.gauge(metricTreeWeight, "Rendered byte size of the current best tree", "By"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return em, nil
}

// NewNoopEngineMetrics creates engine instruments that record nothing.
// Used when no meter is configured; keeps the engine free of nil checks.
func NewNoopEngineMetrics() *EngineMetrics {
	em, err := NewEngineMetrics(noop.NewMeterProvider().Meter("prunefang"))
	if err != nil {
		// Noop instrument creation cannot fail.
		panic("observability: noop engine metrics: " + err.Error())
	}

	return em
}

// RecordOracleCall records a completed oracle invocation with its verdict.
func (em *EngineMetrics) RecordOracleCall(ctx context.Context, interesting bool, duration time.Duration) {
	verdict := verdictBoring
	if interesting {
		verdict = verdictInteresting
	}

	attrs := metric.WithAttributes(attribute.String(attrVerdict, verdict))

	em.oracleCalls.Add(ctx, 1, attrs)
	em.oracleDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCommit records a successful tree replacement and the new weight.
func (em *EngineMetrics) RecordCommit(ctx context.Context, weight int) {
	em.commits.Add(ctx, 1)
	em.treeWeight.Record(ctx, int64(weight))
}

// RecordConflict records a lost replacement race.
func (em *EngineMetrics) RecordConflict(ctx context.Context) {
	em.conflicts.Add(ctx, 1)
}

// RecordStaleDrop records a task dropped because its target id no longer
// resolves in the current snapshot.
func (em *EngineMetrics) RecordStaleDrop(ctx context.Context) {
	em.staleDrops.Add(ctx, 1)
}

// RecordTask records a dispatched task by kind.
func (em *EngineMetrics) RecordTask(ctx context.Context, kind string) {
	em.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}
