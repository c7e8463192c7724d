package types

// Label identifies a node type in the asset graph
type Label string

const (
	LabelProject        Label = "GCPProject"
	LabelCloudFunction  Label = "GCPCloudFunction"
	LabelServiceAccount Label = "GCPServiceAccount"
	LabelBucket         Label = "GCPBucket"
	LabelBucketLabel    Label = "GCPBucketLabel"

	// LabelResource is an extra label applied to resource-tier nodes
	LabelResource Label = "GCPResource"
)

// RelType identifies an edge type in the asset graph
type RelType string

const (
	// RelResource scopes a resource to its owning project, directed
	// outward from the resource
	RelResource RelType = "RESOURCE"
	RelRunsAs   RelType = "RUNS_AS"
	RelLabeled  RelType = "LABELED"
)

// Node is a graph vertex representing a single cloud asset
type Node struct {
	ID          string         `json:"id"`
	Label       Label          `json:"label"`
	ExtraLabels []Label        `json:"extra_labels,omitempty"`
	ProjectID   string         `json:"project_id,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	FirstSeen   int64          `json:"firstseen"`
	LastUpdated int64          `json:"lastupdated"`
}

// Edge is a directed, typed connection between two nodes
type Edge struct {
	Type        RelType `json:"type"`
	SourceID    string  `json:"source_id"`
	TargetID    string  `json:"target_id"`
	LastUpdated int64   `json:"lastupdated"`
}

// NodeFilter for querying nodes
type NodeFilter struct {
	Label     Label    `json:"label,omitempty"`
	ProjectID string   `json:"project_id,omitempty"`
	IDs       []string `json:"ids,omitempty"`
}

// HasLabel reports whether the node carries the label, primary or extra
func (n *Node) HasLabel(label Label) bool {
	if n.Label == label {
		return true
	}
	for _, l := range n.ExtraLabels {
		if l == label {
			return true
		}
	}
	return false
}

// StringProp returns a string property, empty when absent or non-string
func (n *Node) StringProp(key string) string {
	if n.Props == nil {
		return ""
	}
	s, _ := n.Props[key].(string)
	return s
}

// Matches checks if node matches filter criteria
func (n *Node) Matches(filter NodeFilter) bool {
	if filter.Label != "" && !n.HasLabel(filter.Label) {
		return false
	}
	if filter.ProjectID != "" && n.ProjectID != filter.ProjectID {
		return false
	}
	return n.matchesIDs(filter)
}

func (n *Node) matchesIDs(filter NodeFilter) bool {
	if len(filter.IDs) == 0 {
		return true
	}
	for _, id := range filter.IDs {
		if n.ID == id {
			return true
		}
	}
	return false
}
