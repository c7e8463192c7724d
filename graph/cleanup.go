package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yairfalse/kartta/types"
	"go.etcd.io/bbolt"
)

// ProtectFunc is consulted before a stale node is deleted. Returning true
// keeps the node; the reason is recorded for the change feed.
type ProtectFunc func(ctx context.Context, node types.Node) (bool, string)

// RemovedNode records a cleanup deletion for the change feed
type RemovedNode struct {
	ID        string      `json:"id"`
	Label     types.Label `json:"label"`
	ProjectID string      `json:"project_id"`
	UpdateTag int64       `json:"update_tag"`
	RemovedAt time.Time   `json:"removed_at"`
}

// CleanupStale deletes nodes of the schema's label, scoped to one project,
// whose lastupdated predates the current update tag. Edges touching a
// deleted node are detached with it. Protected nodes survive. Returns the
// ids of deleted nodes.
func (s *Store) CleanupStale(ctx context.Context, schema NodeSchema, projectID string, updateTag int64, protect ProtectFunc) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := s.staleCandidates(schema.Label, projectID, updateTag)
	if len(candidates) == 0 {
		return nil, nil
	}

	var removed []string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		nodeBucket := tx.Bucket(bucketNodes)
		edgeBucket := tx.Bucket(bucketEdges)
		removalBucket := tx.Bucket(bucketRemovals)

		for _, state := range candidates {
			key := []byte(state.Key)
			raw := nodeBucket.Get(key)
			if raw == nil {
				continue
			}
			var node types.Node
			if err := json.Unmarshal(raw, &node); err != nil {
				return fmt.Errorf("corrupt node record %s: %w", key, err)
			}

			if protect != nil {
				if keep, _ := protect(ctx, node); keep {
					continue
				}
			}

			if err := nodeBucket.Delete(key); err != nil {
				return err
			}
			if err := detachEdges(edgeBucket, node.ID); err != nil {
				return err
			}

			record := RemovedNode{
				ID:        node.ID,
				Label:     node.Label,
				ProjectID: node.ProjectID,
				UpdateTag: updateTag,
				RemovedAt: time.Now(),
			}
			value, err := json.Marshal(&record)
			if err != nil {
				return err
			}
			if err := removalBucket.Put(removalKey(updateTag, node.Label, node.ID), value); err != nil {
				return err
			}

			removed = append(removed, node.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range removed {
		s.index.Delete(&NodeState{Key: nodeKey(schema.Label, id)})
	}

	return removed, nil
}

// staleCandidates collects index states older than the update tag
func (s *Store) staleCandidates(label types.Label, projectID string, updateTag int64) []*NodeState {
	var candidates []*NodeState
	prefix := string(label) + "/"

	s.index.AscendGreaterOrEqual(&NodeState{Key: prefix}, func(state *NodeState) bool {
		if state.Label != label {
			return false
		}
		if state.ProjectID == projectID && state.LastUpdated < updateTag {
			candidates = append(candidates, state)
		}
		return true
	})

	return candidates
}

// detachEdges deletes every edge touching the node
func detachEdges(edgeBucket *bbolt.Bucket, nodeID string) error {
	var toDelete [][]byte

	c := edgeBucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var edge types.Edge
		if err := json.Unmarshal(v, &edge); err != nil {
			continue
		}
		if edge.SourceID == nodeID || edge.TargetID == nodeID {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
	}

	for _, key := range toDelete {
		if err := edgeBucket.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Compact removes removal records older than the cutoff tag
func (s *Store) Compact(beforeTag int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRemovals)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if parseRemovalTag(k) < beforeTag {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
