package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/yairfalse/kartta/types"
	"go.etcd.io/bbolt"
)

// MergeNodes upserts nodes of one schema under a single update tag.
//
// Existing nodes keep their firstseen; lastupdated is stamped with the
// update tag. A merge that would move a node's lastupdated backwards is
// skipped, so lastupdated is monotonically non-decreasing per node.
// The schema's sub-resource relationship is created for every node whose
// scoping target exists; other relationships are match-only and created
// when the matcher finds an existing target. Returns the number of nodes
// actually written.
func (s *Store) MergeNodes(ctx context.Context, schema NodeSchema, nodes []types.Node, updateTag int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	merged := make([]*types.Node, 0, len(nodes))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		nodeBucket := tx.Bucket(bucketNodes)
		edgeBucket := tx.Bucket(bucketEdges)

		for i := range nodes {
			node := nodes[i]
			node.Label = schema.Label
			node.ExtraLabels = schema.ExtraLabels

			key := []byte(nodeKey(node.Label, node.ID))
			if existing := nodeBucket.Get(key); existing != nil {
				var prev types.Node
				if err := json.Unmarshal(existing, &prev); err != nil {
					return fmt.Errorf("corrupt node record %s: %w", key, err)
				}
				if prev.LastUpdated > updateTag {
					continue // stale tag, keep the newer record
				}
				node.FirstSeen = prev.FirstSeen
			} else {
				node.FirstSeen = updateTag
			}
			node.LastUpdated = updateTag

			value, err := json.Marshal(&node)
			if err != nil {
				return err
			}
			if err := nodeBucket.Put(key, value); err != nil {
				return err
			}

			if err := s.attachRels(tx, nodeBucket, edgeBucket, schema, &node, updateTag); err != nil {
				return err
			}

			merged = append(merged, &node)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, node := range merged {
		s.index.ReplaceOrInsert(stateOf(node))
	}

	return len(merged), nil
}

// attachRels creates the sub-resource edge and any declared extra edges
func (s *Store) attachRels(tx *bbolt.Tx, nodeBucket, edgeBucket *bbolt.Bucket, schema NodeSchema, node *types.Node, updateTag int64) error {
	if schema.SubResource != nil {
		if err := s.attachRel(tx, nodeBucket, edgeBucket, *schema.SubResource, node, updateTag); err != nil {
			return err
		}
	}
	for _, rel := range schema.OtherRels {
		if err := s.attachRel(tx, nodeBucket, edgeBucket, rel, node, updateTag); err != nil {
			return err
		}
	}
	return nil
}

// attachRel creates one relationship for each matched target. Targets
// that do not exist yet are silently skipped, matching the semantics of
// a MATCH-based relationship loader.
func (s *Store) attachRel(tx *bbolt.Tx, nodeBucket, edgeBucket *bbolt.Bucket, rel RelSpec, node *types.Node, updateTag int64) error {
	for _, match := range matchValues(node, rel) {
		targetID, found := s.resolveTarget(nodeBucket, rel, match)
		if !found {
			continue
		}
		edge := types.Edge{
			Type:        rel.Type,
			SourceID:    node.ID,
			TargetID:    targetID,
			LastUpdated: updateTag,
		}
		value, err := json.Marshal(&edge)
		if err != nil {
			return err
		}
		if err := edgeBucket.Put(edgeKey(edge.Type, edge.SourceID, edge.TargetID), value); err != nil {
			return err
		}
	}
	return nil
}

// matchValues extracts the match value(s) from the source property
func matchValues(node *types.Node, rel RelSpec) []string {
	if node.Props == nil {
		return nil
	}
	raw, ok := node.Props[rel.SourceProp]
	if !ok {
		return nil
	}

	if rel.OneToMany {
		return toStringSlice(raw)
	}
	if str, ok := raw.(string); ok && str != "" {
		return []string{str}
	}
	return nil
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// resolveTarget finds the target node id for a match value
func (s *Store) resolveTarget(nodeBucket *bbolt.Bucket, rel RelSpec, match string) (string, bool) {
	if rel.TargetProp == "id" {
		if nodeBucket.Get([]byte(nodeKey(rel.TargetLabel, match))) != nil {
			return match, true
		}
		return "", false
	}

	// Property matcher: scan nodes of the target label
	prefix := []byte(string(rel.TargetLabel) + "/")
	c := nodeBucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var target types.Node
		if err := json.Unmarshal(v, &target); err != nil {
			continue
		}
		if target.StringProp(rel.TargetProp) == match {
			return target.ID, true
		}
	}
	return "", false
}
