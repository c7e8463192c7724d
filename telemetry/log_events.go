package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordNodesLoadedEvent emits a structured span event for a load phase
func RecordNodesLoadedEvent(
	span trace.Span,
	label string,
	projectID string,
	count int,
	updateTag int64,
) {
	if span == nil {
		return
	}

	span.AddEvent("graph.nodes.loaded", trace.WithAttributes(
		attribute.String("event.type", "graph.nodes.loaded"),
		attribute.String("node.label", label),
		attribute.String("project.id", projectID),
		attribute.Int("node.count", count),
		attribute.Int64("update.tag", updateTag),
	))
}

// RecordStaleRemovedEvent emits a structured span event for a cleanup phase
func RecordStaleRemovedEvent(
	span trace.Span,
	label string,
	projectID string,
	removed []string,
	updateTag int64,
) {
	if span == nil {
		return
	}

	span.AddEvent("graph.nodes.stale_removed", trace.WithAttributes(
		attribute.String("event.type", "graph.nodes.stale_removed"),
		attribute.String("node.label", label),
		attribute.String("project.id", projectID),
		attribute.Int("node.count", len(removed)),
		attribute.StringSlice("node.ids", removed),
		attribute.Int64("update.tag", updateTag),
	))
}

// RecordProjectSkippedEvent emits a structured span event when a project
// sync is skipped due to an API error
func RecordProjectSkippedEvent(
	span trace.Span,
	projectID string,
	asset string,
	reason string,
) {
	if span == nil {
		return
	}

	span.AddEvent("sync.project.skipped", trace.WithAttributes(
		attribute.String("event.type", "sync.project.skipped"),
		attribute.String("project.id", projectID),
		attribute.String("asset.type", asset),
		attribute.String("reason", reason),
	))
}
