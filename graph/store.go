package graph

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/yairfalse/kartta/types"
	"go.etcd.io/bbolt"
)

// Bucket names in bbolt
var (
	bucketNodes    = []byte("nodes")
	bucketEdges    = []byte("edges")
	bucketRemovals = []byte("removals")
	bucketMeta     = []byte("meta")
)

// Store is a bbolt-backed property graph with an in-memory index.
// Nodes are keyed by label and id, edges by type and endpoint ids.
type Store struct {
	mu sync.RWMutex

	// In-memory index for fast label and project scans
	index *btree.BTreeG[*NodeState]

	// On-disk storage
	db *bbolt.DB

	// Path to storage directory
	dir string
}

// NodeState tracks a node's freshness in the index
type NodeState struct {
	Key         string
	ID          string
	Label       types.Label
	ProjectID   string
	FirstSeen   int64
	LastUpdated int64
}

// Run records one sync pass and the update tag it stamped
type Run struct {
	UpdateTag int64     `json:"update_tag"`
	StartedAt time.Time `json:"started_at"`
	Projects  []string  `json:"projects"`
}

// Open creates or opens a graph store in the specified directory
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "kartta.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketNodes, bucketEdges, bucketRemovals, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		index: btree.NewG[*NodeState](32, func(a, b *NodeState) bool {
			return a.Key < b.Key
		}),
		db:  db,
		dir: dir,
	}

	if err := store.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists a sync run record for the change feed
func (s *Store) RecordRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		value, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return meta.Put(runKey(run.UpdateTag), value)
	})
}

// RecentRuns returns up to n most recent sync runs, newest first
func (s *Store) RecentRuns(n int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMeta).Cursor()
		for k, v := c.Last(); k != nil && len(runs) < n; k, v = c.Prev() {
			if !strings.HasPrefix(string(k), "run:") {
				continue
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// rebuildIndex scans the nodes bucket and repopulates the btree
func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketNodes).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("corrupt node record %s: %w", k, err)
			}
			s.index.ReplaceOrInsert(stateOf(&node))
		}
		return nil
	})
}

func stateOf(node *types.Node) *NodeState {
	return &NodeState{
		Key:         nodeKey(node.Label, node.ID),
		ID:          node.ID,
		Label:       node.Label,
		ProjectID:   node.ProjectID,
		FirstSeen:   node.FirstSeen,
		LastUpdated: node.LastUpdated,
	}
}

// Key helpers

func nodeKey(label types.Label, id string) string {
	return string(label) + "/" + id
}

func edgeKey(rel types.RelType, sourceID, targetID string) []byte {
	return []byte(string(rel) + "|" + sourceID + "|" + targetID)
}

func removalKey(updateTag int64, label types.Label, id string) []byte {
	return []byte(fmt.Sprintf("%016d/%s/%s", updateTag, label, id))
}

func runKey(updateTag int64) []byte {
	return []byte("run:" + fmt.Sprintf("%016d", updateTag))
}

func parseRemovalTag(key []byte) int64 {
	parts := strings.SplitN(string(key), "/", 2)
	tag, _ := strconv.ParseInt(parts[0], 10, 64)
	return tag
}
