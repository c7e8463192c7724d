package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds operational metrics using OTEL semantic conventions
type Metrics struct {
	syncRuns        metric.Int64Counter
	syncRunDuration metric.Float64Histogram
	graphNodes      metric.Int64Gauge
	walEntries      metric.Int64Counter
}

// NewMetrics creates daemon metrics following OTEL semantic conventions
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("kartta.daemon")

	syncRuns, err := meter.Int64Counter(
		"kartta.daemon.sync_runs",
		metric.WithDescription("Number of full sync runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	syncRunDuration, err := meter.Float64Histogram(
		"kartta.daemon.sync_run.duration",
		metric.WithDescription("Duration of full sync runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	graphNodes, err := meter.Int64Gauge(
		"kartta.graph.nodes",
		metric.WithDescription("Number of nodes in the asset graph"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, err
	}

	walEntries, err := meter.Int64Counter(
		"kartta.wal.entries",
		metric.WithDescription("Number of WAL entries written"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncRuns:        syncRuns,
		syncRunDuration: syncRunDuration,
		graphNodes:      graphNodes,
		walEntries:      walEntries,
	}, nil
}

// RecordSyncRun records a full sync run with status
func (m *Metrics) RecordSyncRun(ctx context.Context, status string) {
	m.syncRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSyncRunDuration records sync run duration
func (m *Metrics) RecordSyncRunDuration(ctx context.Context, durationSeconds float64, status string) {
	m.syncRunDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordGraphNodes records the node count for one label
func (m *Metrics) RecordGraphNodes(ctx context.Context, count int64, label string) {
	m.graphNodes.Record(ctx, count,
		metric.WithAttributes(attribute.String("node.label", label)),
	)
}

// RecordWALEntry records one WAL entry write
func (m *Metrics) RecordWALEntry(ctx context.Context, entryType string) {
	m.walEntries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("entry.type", entryType)),
	)
}
