package validate

import (
	"context"
	"regexp"
	"strings"

	"github.com/yairfalse/kartta/graph"
	"github.com/yairfalse/kartta/types"
)

// Checker verifies graph conformance after a sync
type Checker struct {
	store *graph.Store
	rules []Rule
}

// Rule defines one conformance check against a node
type Rule struct {
	Name        string
	Description string
	Label       types.Label // which nodes the rule applies to
	Check       CheckFunc
	Severity    string // "low", "medium", "high"
}

// CheckFunc reports whether the node violates the rule
type CheckFunc func(store *graph.Store, node *types.Node) bool

// Violation represents one failed conformance check
type Violation struct {
	NodeID      string `json:"node_id"`
	Label       string `json:"label"`
	Rule        string `json:"rule"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

var functionNamePattern = regexp.MustCompile(`^projects/[^/]+/locations/[^/]+/functions/[^/]+$`)

// NewChecker creates a checker with default rules
func NewChecker(store *graph.Store) *Checker {
	return &Checker{
		store: store,
		rules: []Rule{
			{
				Name:        "malformed_function_id",
				Description: "Function id does not match projects/*/locations/*/functions/*",
				Label:       types.LabelCloudFunction,
				Check:       checkMalformedFunctionID,
				Severity:    "high",
			},
			{
				Name:        "missing_required_props",
				Description: "Required properties are missing or empty",
				Label:       types.LabelCloudFunction,
				Check:       checkMissingRequiredProps,
				Severity:    "high",
			},
			{
				Name:        "missing_project_edge",
				Description: "No RESOURCE edge to the owning project",
				Label:       types.LabelCloudFunction,
				Check:       checkMissingProjectEdge,
				Severity:    "high",
			},
			{
				Name:        "region_name_mismatch",
				Description: "Region property disagrees with the locations segment of the id",
				Label:       types.LabelCloudFunction,
				Check:       checkRegionNameMismatch,
				Severity:    "medium",
			},
			{
				Name:        "orphan_bucket_label",
				Description: "Bucket label with no LABELED edge from any bucket",
				Label:       types.LabelBucketLabel,
				Check:       checkOrphanBucketLabel,
				Severity:    "low",
			},
			{
				Name:        "stale_update_tag",
				Description: "Node missing or zero lastupdated stamp",
				Label:       "",
				Check:       checkStaleUpdateTag,
				Severity:    "medium",
			},
		},
	}
}

// CheckAll runs every rule against every node it applies to
func (c *Checker) CheckAll(ctx context.Context) ([]Violation, error) {
	nodes, err := c.store.FindNodes(types.NodeFilter{})
	if err != nil {
		return nil, err
	}
	return c.check(ctx, nodes)
}

// CheckProject runs every rule against one project's nodes
func (c *Checker) CheckProject(ctx context.Context, projectID string) ([]Violation, error) {
	nodes, err := c.store.FindNodes(types.NodeFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return c.check(ctx, nodes)
}

func (c *Checker) check(ctx context.Context, nodes []types.Node) ([]Violation, error) {
	var violations []Violation
	for i := range nodes {
		if err := ctx.Err(); err != nil {
			return violations, err
		}
		node := &nodes[i]
		for _, rule := range c.rules {
			if rule.Label != "" && node.Label != rule.Label {
				continue
			}
			if rule.Check(c.store, node) {
				violations = append(violations, Violation{
					NodeID:      node.ID,
					Label:       string(node.Label),
					Rule:        rule.Name,
					Description: rule.Description,
					Severity:    rule.Severity,
				})
			}
		}
	}
	return violations, nil
}

// Rule implementations

func checkMalformedFunctionID(_ *graph.Store, node *types.Node) bool {
	return !functionNamePattern.MatchString(node.ID)
}

func checkMissingRequiredProps(_ *graph.Store, node *types.Node) bool {
	for _, prop := range []string{"name", "project_id", "region"} {
		if node.StringProp(prop) == "" {
			return true
		}
	}
	return false
}

// checkMissingProjectEdge verifies exactly one RESOURCE edge exists and
// points at the project named by the node's project_id property
func checkMissingProjectEdge(store *graph.Store, node *types.Node) bool {
	edges, err := store.EdgesFrom(node.ID)
	if err != nil {
		return true
	}

	projectEdges := 0
	for _, edge := range edges {
		if edge.Type != types.RelResource {
			continue
		}
		projectEdges++
		if edge.TargetID != node.StringProp("project_id") {
			return true
		}
	}
	return projectEdges != 1
}

func checkRegionNameMismatch(_ *graph.Store, node *types.Node) bool {
	if !functionNamePattern.MatchString(node.ID) {
		return false // covered by malformed_function_id
	}
	region := node.StringProp("region")
	return region == "" || !strings.Contains(node.ID, "/locations/"+region+"/")
}

func checkOrphanBucketLabel(store *graph.Store, node *types.Node) bool {
	edges, err := store.EdgesTo(node.ID)
	if err != nil {
		return true
	}
	for _, edge := range edges {
		if edge.Type == types.RelLabeled {
			return false
		}
	}
	return true
}

func checkStaleUpdateTag(_ *graph.Store, node *types.Node) bool {
	return node.LastUpdated <= 0
}
