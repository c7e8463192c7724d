package graph

import (
	"context"
	"testing"

	"github.com/yairfalse/kartta/types"
)

func TestCleanupStale_RemovesUnseenNodes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mergeProject(t, store, "p1", 100)

	f1 := testFunction("p1", "us-central1", "f1")
	f2 := testFunction("p1", "us-east1", "f2")
	nodes := []types.Node{f1.Node(), f2.Node()}
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), nodes, 100); err != nil {
		t.Fatalf("First merge failed: %v", err)
	}

	// Second run only sees f1
	mergeProject(t, store, "p1", 200)
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), []types.Node{f1.Node()}, 200); err != nil {
		t.Fatalf("Second merge failed: %v", err)
	}

	removed, err := store.CleanupStale(ctx, CloudFunctionSchema(), "p1", 200, nil)
	if err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != f2.ID {
		t.Errorf("Removed = %v, want [%s]", removed, f2.ID)
	}

	if _, err := store.GetNode(types.LabelCloudFunction, f2.ID); err == nil {
		t.Error("Expected stale node to be deleted")
	}
	if _, err := store.GetNode(types.LabelCloudFunction, f1.ID); err != nil {
		t.Errorf("Fresh node should survive cleanup: %v", err)
	}
}

func TestCleanupStale_RunsWithEmptyListing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mergeProject(t, store, "p1", 100)
	fn := testFunction("p1", "us-central1", "f1")
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), []types.Node{fn.Node()}, 100); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// Next run fetched nothing; cleanup still deletes everything stale
	removed, err := store.CleanupStale(ctx, CloudFunctionSchema(), "p1", 200, nil)
	if err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}
	if len(removed) != 1 {
		t.Errorf("Removed %d nodes, want 1", len(removed))
	}
	if got := store.CountNodes(types.LabelCloudFunction); got != 0 {
		t.Errorf("CountNodes = %d, want 0", got)
	}
}

func TestCleanupStale_ScopedToProject(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mergeProject(t, store, "p1", 100)
	mergeProject(t, store, "p2", 100)

	fnP1 := testFunction("p1", "us-central1", "f1")
	fnP2 := testFunction("p2", "us-central1", "f1")
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), []types.Node{fnP1.Node(), fnP2.Node()}, 100); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// Cleaning p1 at a later tag must not touch p2's nodes
	removed, err := store.CleanupStale(ctx, CloudFunctionSchema(), "p1", 200, nil)
	if err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != fnP1.ID {
		t.Errorf("Removed = %v, want [%s]", removed, fnP1.ID)
	}
	if _, err := store.GetNode(types.LabelCloudFunction, fnP2.ID); err != nil {
		t.Errorf("Other project's node should survive: %v", err)
	}
}

func TestCleanupStale_DetachesEdges(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mergeProject(t, store, "p1", 100)
	fn := testFunction("p1", "us-central1", "f1")
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), []types.Node{fn.Node()}, 100); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if _, err := store.CleanupStale(ctx, CloudFunctionSchema(), "p1", 200, nil); err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}

	edges, err := store.EdgesFrom(fn.ID)
	if err != nil {
		t.Fatalf("EdgesFrom failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("Got %d edges after cleanup, want 0", len(edges))
	}
}

func TestCleanupStale_ProtectedNodesSurvive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mergeProject(t, store, "p1", 100)
	fn := testFunction("p1", "us-central1", "f1")
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), []types.Node{fn.Node()}, 100); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	protect := func(_ context.Context, node types.Node) (bool, string) {
		return node.ID == fn.ID, "pinned for investigation"
	}

	removed, err := store.CleanupStale(ctx, CloudFunctionSchema(), "p1", 200, protect)
	if err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("Removed = %v, want none (node is protected)", removed)
	}
	if _, err := store.GetNode(types.LabelCloudFunction, fn.ID); err != nil {
		t.Errorf("Protected node should still exist: %v", err)
	}
}

func TestCompact_DropsOldRemovalRecords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mergeProject(t, store, "p1", 100)
	fn := testFunction("p1", "us-central1", "f1")
	if _, err := store.MergeNodes(ctx, CloudFunctionSchema(), []types.Node{fn.Node()}, 100); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if _, err := store.CleanupStale(ctx, CloudFunctionSchema(), "p1", 200, nil); err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}

	deleted, err := store.Compact(300)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Compact deleted %d records, want 1", deleted)
	}

	// Removal no longer visible in the change feed
	changes, err := store.ChangesBetween(100, 300)
	if err != nil {
		t.Fatalf("ChangesBetween failed: %v", err)
	}
	for _, change := range changes.Changes {
		if change.Type == ChangeRemoved {
			t.Errorf("Unexpected removed change after compaction: %+v", change)
		}
	}
}
