package graph

import (
	"encoding/json"
	"fmt"

	"github.com/yairfalse/kartta/types"
	"go.etcd.io/bbolt"
)

// ChangeType classifies what happened to a node between two sync runs
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// Change describes one node-level difference between two update tags
type Change struct {
	Type      ChangeType  `json:"type"`
	NodeID    string      `json:"node_id"`
	Label     types.Label `json:"label"`
	ProjectID string      `json:"project_id"`
}

// ChangeSet holds all changes between two update tags
type ChangeSet struct {
	SinceTag int64    `json:"since_tag"`
	UntilTag int64    `json:"until_tag"`
	Changes  []Change `json:"changes"`
}

// Summary counts changes by type
func (cs *ChangeSet) Summary() map[ChangeType]int {
	summary := make(map[ChangeType]int)
	for _, change := range cs.Changes {
		summary[change.Type]++
	}
	return summary
}

// ChangesBetween computes the node-level diff between two update tags.
// A node first seen after sinceTag is created; a node refreshed in the
// window but seen before is updated; cleanup removals recorded in the
// window are removed.
func (s *Store) ChangesBetween(sinceTag, untilTag int64) (*ChangeSet, error) {
	if untilTag < sinceTag {
		return nil, fmt.Errorf("until tag %d predates since tag %d", untilTag, sinceTag)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	set := &ChangeSet{SinceTag: sinceTag, UntilTag: untilTag}

	s.index.Ascend(func(state *NodeState) bool {
		if state.LastUpdated <= sinceTag || state.LastUpdated > untilTag {
			return true
		}
		changeType := ChangeUpdated
		if state.FirstSeen > sinceTag {
			changeType = ChangeCreated
		}
		set.Changes = append(set.Changes, Change{
			Type:      changeType,
			NodeID:    state.ID,
			Label:     state.Label,
			ProjectID: state.ProjectID,
		})
		return true
	})

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRemovals).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			tag := parseRemovalTag(k)
			if tag <= sinceTag || tag > untilTag {
				continue
			}
			var record RemovedNode
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("corrupt removal record %s: %w", k, err)
			}
			set.Changes = append(set.Changes, Change{
				Type:      ChangeRemoved,
				NodeID:    record.ID,
				Label:     record.Label,
				ProjectID: record.ProjectID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return set, nil
}
