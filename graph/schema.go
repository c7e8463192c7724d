package graph

import "github.com/yairfalse/kartta/types"

// RelSpec declares a relationship the loader creates for each merged node.
// SourceProp names the node property holding the match value (a string, or
// a []string when OneToMany). TargetProp names the property matched on the
// target node; the special value "id" matches the target's node id.
type RelSpec struct {
	Type        types.RelType
	TargetLabel types.Label
	SourceProp  string
	TargetProp  string
	OneToMany   bool
}

// NodeSchema declares how nodes of one label are loaded and cleaned up.
// SubResource is the ownership edge to the scoping node; stale cleanup is
// scoped by ScopeProp so one project's sync never deletes another's nodes.
type NodeSchema struct {
	Label       types.Label
	ExtraLabels []types.Label
	ScopeProp   string
	SubResource *RelSpec
	OtherRels   []RelSpec
}

// isPrimaryLabel reports whether nodes are stored under this label's key
// prefix. Extra labels only appear inside the node record.
func isPrimaryLabel(label types.Label) bool {
	switch label {
	case types.LabelProject, types.LabelCloudFunction, types.LabelServiceAccount,
		types.LabelBucket, types.LabelBucketLabel:
		return true
	}
	return false
}

// ProjectSchema describes GCPProject nodes. Projects are the scope root
// and carry no sub-resource relationship.
func ProjectSchema() NodeSchema {
	return NodeSchema{
		Label:     types.LabelProject,
		ScopeProp: "project_id",
	}
}

// CloudFunctionSchema describes GCPCloudFunction nodes: a RESOURCE edge to
// the owning project and a match-only RUNS_AS edge to the service account.
func CloudFunctionSchema() NodeSchema {
	return NodeSchema{
		Label:     types.LabelCloudFunction,
		ScopeProp: "project_id",
		SubResource: &RelSpec{
			Type:        types.RelResource,
			TargetLabel: types.LabelProject,
			SourceProp:  "project_id",
			TargetProp:  "id",
		},
		OtherRels: []RelSpec{
			{
				Type:        types.RelRunsAs,
				TargetLabel: types.LabelServiceAccount,
				SourceProp:  "service_account_email",
				TargetProp:  "email",
			},
		},
	}
}

// ServiceAccountSchema describes GCPServiceAccount nodes
func ServiceAccountSchema() NodeSchema {
	return NodeSchema{
		Label:     types.LabelServiceAccount,
		ScopeProp: "project_id",
		SubResource: &RelSpec{
			Type:        types.RelResource,
			TargetLabel: types.LabelProject,
			SourceProp:  "project_id",
			TargetProp:  "id",
		},
	}
}

// BucketSchema describes GCPBucket nodes with LABELED edges to their labels
func BucketSchema() NodeSchema {
	return NodeSchema{
		Label:       types.LabelBucket,
		ExtraLabels: []types.Label{types.LabelResource},
		ScopeProp:   "project_id",
		SubResource: &RelSpec{
			Type:        types.RelResource,
			TargetLabel: types.LabelProject,
			SourceProp:  "project_id",
			TargetProp:  "id",
		},
		OtherRels: []RelSpec{
			{
				Type:        types.RelLabeled,
				TargetLabel: types.LabelBucketLabel,
				SourceProp:  "label_ids",
				TargetProp:  "id",
				OneToMany:   true,
			},
		},
	}
}

// BucketLabelSchema describes GCPBucketLabel nodes
func BucketLabelSchema() NodeSchema {
	return NodeSchema{
		Label:     types.LabelBucketLabel,
		ScopeProp: "project_id",
		SubResource: &RelSpec{
			Type:        types.RelResource,
			TargetLabel: types.LabelProject,
			SourceProp:  "project_id",
			TargetProp:  "id",
		},
	}
}
