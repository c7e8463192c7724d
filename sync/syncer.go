package sync

import (
	"context"
	"errors"
	"time"

	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/graph"
	"github.com/yairfalse/kartta/intel/gcp"
	"github.com/yairfalse/kartta/policy"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
	"github.com/yairfalse/kartta/wal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	assetFunctions = "cloud_functions"
	assetBuckets   = "storage_buckets"
)

// Syncer runs get, transform, load and cleanup for each configured
// project under a single update tag per run
type Syncer struct {
	client   *gcp.Client
	store    *graph.Store
	wal      *wal.WAL
	policies *policy.Engine
	assets   config.Assets
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// New creates a syncer. The WAL and policy engine are optional.
func New(client *gcp.Client, store *graph.Store, auditLog *wal.WAL, policies *policy.Engine, assets config.Assets) *Syncer {
	return &Syncer{
		client:   client,
		store:    store,
		wal:      auditLog,
		policies: policies,
		assets:   assets,
		logger:   telemetry.NewLogger("syncer"),
		tracer:   otel.Tracer("syncer"),
	}
}

// Store exposes the graph store for callers that report on sync results
func (s *Syncer) Store() *graph.Store {
	return s.store
}

// SyncAll syncs every project under one update tag and records the run.
// Projects are synced independently; a failing project does not stop the
// others. Returns the update tag used.
func (s *Syncer) SyncAll(ctx context.Context, projects []string) (int64, error) {
	updateTag := time.Now().UnixMilli()

	run := graph.Run{
		UpdateTag: updateTag,
		StartedAt: time.Now(),
		Projects:  projects,
	}

	var errs []error
	for _, projectID := range projects {
		if err := s.SyncProject(ctx, projectID, updateTag); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.store.RecordRun(run); err != nil {
		errs = append(errs, err)
	}

	return updateTag, errors.Join(errs...)
}

// SyncProject syncs all enabled assets of one project under the update tag
func (s *Syncer) SyncProject(ctx context.Context, projectID string, updateTag int64) error {
	ctx, span := s.tracer.Start(ctx, "syncer.sync_project",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int64("update.tag", updateTag)))
	defer span.End()

	start := time.Now()
	s.logger.LogSyncStart(ctx, projectID, updateTag)

	// The project node is merged first so RESOURCE edges have a target
	projectNode := types.Project{ID: projectID}.Node()
	if _, err := s.store.MergeNodes(ctx, graph.ProjectSchema(), []types.Node{projectNode}, updateTag); err != nil {
		s.logger.LogGraphError(ctx, "merge_project", err)
		return err
	}

	loaded, removed := 0, 0

	if s.assets.Functions {
		l, r, err := s.syncFunctions(ctx, projectID, updateTag)
		if err != nil {
			return err
		}
		loaded += l
		removed += r
	}

	if s.assets.Buckets {
		l, r, err := s.syncBuckets(ctx, projectID, updateTag)
		if err != nil {
			return err
		}
		loaded += l
		removed += r
	}

	duration := time.Since(start)
	recordHistogram(ctx, telemetry.SyncDuration, duration.Seconds(),
		attribute.String("project.id", projectID))
	s.logger.LogSyncComplete(ctx, projectID, loaded, removed, float64(duration.Milliseconds()))

	return nil
}

// syncFunctions gets, transforms, loads and cleans up cloud functions
func (s *Syncer) syncFunctions(ctx context.Context, projectID string, updateTag int64) (loaded, removed int, err error) {
	ctx, span := s.tracer.Start(ctx, "syncer.sync_functions",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	raw, err := s.client.ListFunctions(ctx, projectID)
	if err != nil {
		if !s.handleListError(ctx, span, projectID, assetFunctions, err) {
			return 0, 0, err
		}
		// A skipped listing behaves like an empty one: nodes not seen
		// under the new tag still age out
		removed, err = s.cleanup(ctx, span, graph.CloudFunctionSchema(), projectID, updateTag)
		return 0, removed, err
	}

	s.appendWAL(wal.EntryFetched, projectID, assetFunctions, map[string]int{"count": len(raw)})
	recordCounter(ctx, telemetry.AssetsFetched, int64(len(raw)),
		attribute.String("asset.type", assetFunctions))

	functions, skipped := gcp.TransformFunctions(projectID, raw)
	for _, name := range skipped {
		s.logger.WithContext(ctx).Warn().
			Str("function_name", name).
			Msg("could not parse region from function name")
	}

	if len(functions) > 0 {
		nodes := make([]types.Node, 0, len(functions))
		for _, fn := range functions {
			nodes = append(nodes, fn.Node())
		}

		loaded, err = s.store.MergeNodes(ctx, graph.CloudFunctionSchema(), nodes, updateTag)
		if err != nil {
			s.appendWALError(wal.EntryFailed, projectID, assetFunctions, err)
			return 0, 0, err
		}

		s.appendWAL(wal.EntryLoaded, projectID, assetFunctions, map[string]int{"count": loaded})
		recordCounter(ctx, telemetry.NodesLoaded, int64(loaded),
			attribute.String("node.label", string(types.LabelCloudFunction)))
		telemetry.RecordNodesLoadedEvent(span, string(types.LabelCloudFunction), projectID, loaded, updateTag)
	}

	removed, err = s.cleanup(ctx, span, graph.CloudFunctionSchema(), projectID, updateTag)
	if err != nil {
		return 0, 0, err
	}

	return loaded, removed, nil
}

// syncBuckets gets, transforms, loads and cleans up storage buckets.
// Labels are loaded before their buckets so LABELED edges find targets.
func (s *Syncer) syncBuckets(ctx context.Context, projectID string, updateTag int64) (loaded, removed int, err error) {
	ctx, span := s.tracer.Start(ctx, "syncer.sync_buckets",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	raw, err := s.client.ListBuckets(ctx, projectID)
	if err != nil {
		if !s.handleListError(ctx, span, projectID, assetBuckets, err) {
			return 0, 0, err
		}
		// A skipped listing behaves like an empty one: cleanup still runs
		for _, schema := range []graph.NodeSchema{graph.BucketSchema(), graph.BucketLabelSchema()} {
			r, cerr := s.cleanup(ctx, span, schema, projectID, updateTag)
			if cerr != nil {
				return 0, removed, cerr
			}
			removed += r
		}
		return 0, removed, nil
	}

	s.appendWAL(wal.EntryFetched, projectID, assetBuckets, map[string]int{"count": len(raw)})
	recordCounter(ctx, telemetry.AssetsFetched, int64(len(raw)),
		attribute.String("asset.type", assetBuckets))

	buckets := gcp.TransformBuckets(projectID, raw)

	if len(buckets) > 0 {
		var labelNodes []types.Node
		bucketNodes := make([]types.Node, 0, len(buckets))
		for _, bucket := range buckets {
			for _, label := range bucket.Labels {
				labelNodes = append(labelNodes, label.Node())
			}
			bucketNodes = append(bucketNodes, bucket.Node())
		}

		labelsLoaded, err := s.store.MergeNodes(ctx, graph.BucketLabelSchema(), labelNodes, updateTag)
		if err != nil {
			s.appendWALError(wal.EntryFailed, projectID, assetBuckets, err)
			return 0, 0, err
		}

		bucketsLoaded, err := s.store.MergeNodes(ctx, graph.BucketSchema(), bucketNodes, updateTag)
		if err != nil {
			s.appendWALError(wal.EntryFailed, projectID, assetBuckets, err)
			return 0, 0, err
		}

		loaded = labelsLoaded + bucketsLoaded
		s.appendWAL(wal.EntryLoaded, projectID, assetBuckets, map[string]int{"count": loaded})
		recordCounter(ctx, telemetry.NodesLoaded, int64(loaded),
			attribute.String("node.label", string(types.LabelBucket)))
		telemetry.RecordNodesLoadedEvent(span, string(types.LabelBucket), projectID, loaded, updateTag)
	}

	for _, schema := range []graph.NodeSchema{graph.BucketSchema(), graph.BucketLabelSchema()} {
		r, err := s.cleanup(ctx, span, schema, projectID, updateTag)
		if err != nil {
			return 0, 0, err
		}
		removed += r
	}

	return loaded, removed, nil
}

// cleanup deletes stale nodes of one schema, honoring protection policies
func (s *Syncer) cleanup(ctx context.Context, span trace.Span, schema graph.NodeSchema, projectID string, updateTag int64) (int, error) {
	removed, err := s.store.CleanupStale(ctx, schema, projectID, updateTag, s.protect)
	if err != nil {
		s.logger.LogGraphError(ctx, "cleanup_stale", err)
		return 0, err
	}

	if len(removed) > 0 {
		s.appendWAL(wal.EntryCleaned, projectID, string(schema.Label), map[string]any{"removed": removed})
		recordCounter(ctx, telemetry.StaleRemoved, int64(len(removed)),
			attribute.String("node.label", string(schema.Label)))
		telemetry.RecordStaleRemovedEvent(span, string(schema.Label), projectID, removed, updateTag)
	}

	s.logger.LogCleanup(ctx, string(schema.Label), projectID, len(removed))
	return len(removed), nil
}

// protect asks the policy engine whether a stale node must be kept.
// Evaluation errors fail open: the node is deleted.
func (s *Syncer) protect(ctx context.Context, node types.Node) (bool, string) {
	if s.policies == nil || s.policies.Count() == 0 {
		return false, ""
	}

	result, err := s.policies.Evaluate(ctx, policy.Input{
		Node:      node,
		ProjectID: node.ProjectID,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.WithContext(ctx).Error().
			Err(err).
			Str("node_id", node.ID).
			Msg("protection policy evaluation failed")
		return false, ""
	}

	return result.Denied(), result.Reason
}

// handleListError decides whether a listing error is a skip or a failure
func (s *Syncer) handleListError(ctx context.Context, span trace.Span, projectID, asset string, err error) bool {
	switch {
	case gcp.IsAPINotEnabled(err):
		s.logger.WithContext(ctx).Info().
			Str("project_id", projectID).
			Str("asset", asset).
			Msg("API not enabled for project, skipping")
	case gcp.IsPermissionDenied(err):
		s.logger.LogProjectSkipped(ctx, projectID, asset, "permission denied")
	case gcp.IsNotFound(err):
		s.logger.WithContext(ctx).Info().
			Str("project_id", projectID).
			Str("asset", asset).
			Msg("listing returned not found, treating as empty")
	default:
		s.appendWALError(wal.EntryFailed, projectID, asset, err)
		return false
	}

	s.appendWAL(wal.EntrySkipped, projectID, asset, map[string]string{"reason": err.Error()})
	recordCounter(ctx, telemetry.ProjectsSkipped, 1,
		attribute.String("asset.type", asset))
	telemetry.RecordProjectSkippedEvent(span, projectID, asset, err.Error())
	return true
}

func (s *Syncer) appendWAL(entryType wal.EntryType, projectID, asset string, data any) {
	if s.wal == nil {
		return
	}
	if err := s.wal.Append(entryType, projectID, asset, data); err != nil {
		s.logger.Error().Err(err).Msg("failed to append WAL entry")
	}
}

func (s *Syncer) appendWALError(entryType wal.EntryType, projectID, asset string, cause error) {
	if s.wal == nil {
		return
	}
	if err := s.wal.AppendError(entryType, projectID, asset, nil, cause); err != nil {
		s.logger.Error().Err(err).Msg("failed to append WAL entry")
	}
}

// Metric instruments are nil until InitOTEL runs; guard every use

func recordCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

func recordHistogram(ctx context.Context, histogram metric.Float64Histogram, value float64, attrs ...attribute.KeyValue) {
	if histogram == nil {
		return
	}
	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}
