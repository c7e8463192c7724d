package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yairfalse/kartta/types"
	"go.etcd.io/bbolt"
)

// GetNode returns a node by label and id
func (s *Store) GetNode(label types.Label, id string) (*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var node *types.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketNodes).Get([]byte(nodeKey(label, id)))
		if raw == nil {
			return nil
		}
		node = &types.Node{}
		return json.Unmarshal(raw, node)
	})
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("node %s/%s not found", label, id)
	}
	return node, nil
}

// NodesByLabel returns all nodes with the given primary label
func (s *Store) NodesByLabel(label types.Label) ([]types.Node, error) {
	return s.FindNodes(types.NodeFilter{Label: label})
}

// NodesByProject returns nodes of one label scoped to a project
func (s *Store) NodesByProject(label types.Label, projectID string) ([]types.Node, error) {
	return s.FindNodes(types.NodeFilter{Label: label, ProjectID: projectID})
}

// FindNodes returns all nodes matching the filter
func (s *Store) FindNodes(filter types.NodeFilter) ([]types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	if filter.Label != "" && isPrimaryLabel(filter.Label) {
		prefix := string(filter.Label) + "/"
		s.index.AscendGreaterOrEqual(&NodeState{Key: prefix}, func(state *NodeState) bool {
			if state.Label != filter.Label {
				return false
			}
			keys = append(keys, state.Key)
			return true
		})
	} else {
		// Extra labels like GCPResource are not part of the index key;
		// scan everything and let Matches filter
		s.index.Ascend(func(state *NodeState) bool {
			keys = append(keys, state.Key)
			return true
		})
	}

	var results []types.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNodes)
		for _, key := range keys {
			raw := bucket.Get([]byte(key))
			if raw == nil {
				continue
			}
			var node types.Node
			if err := json.Unmarshal(raw, &node); err != nil {
				return fmt.Errorf("corrupt node record %s: %w", key, err)
			}
			if node.Matches(filter) {
				results = append(results, node)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindNodeByProp returns the first node of a label whose property equals value
func (s *Store) FindNodeByProp(label types.Label, prop, value string) (*types.Node, error) {
	nodes, err := s.NodesByLabel(label)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].StringProp(prop) == value {
			return &nodes[i], nil
		}
	}
	return nil, fmt.Errorf("no %s node with %s=%s", label, prop, value)
}

// CountNodes returns the number of nodes with the given label
func (s *Store) CountNodes(label types.Label) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	prefix := string(label) + "/"
	s.index.AscendGreaterOrEqual(&NodeState{Key: prefix}, func(state *NodeState) bool {
		if state.Label != label {
			return false
		}
		count++
		return true
	})
	return count
}

// EdgesFrom returns all edges whose source is the node
func (s *Store) EdgesFrom(nodeID string) ([]types.Edge, error) {
	return s.scanEdges(func(e *types.Edge) bool { return e.SourceID == nodeID })
}

// EdgesTo returns all edges whose target is the node
func (s *Store) EdgesTo(nodeID string) ([]types.Edge, error) {
	return s.scanEdges(func(e *types.Edge) bool { return e.TargetID == nodeID })
}

// EdgesByType returns all edges of one relationship type
func (s *Store) EdgesByType(rel types.RelType) ([]types.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []types.Edge
	prefix := []byte(string(rel) + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEdges).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var edge types.Edge
			if err := json.Unmarshal(v, &edge); err != nil {
				return fmt.Errorf("corrupt edge record %s: %w", k, err)
			}
			results = append(results, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) scanEdges(match func(*types.Edge) bool) ([]types.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []types.Edge
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEdges).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var edge types.Edge
			if err := json.Unmarshal(v, &edge); err != nil {
				return fmt.Errorf("corrupt edge record %s: %w", k, err)
			}
			if match(&edge) {
				results = append(results, edge)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
