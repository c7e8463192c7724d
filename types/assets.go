package types

// CloudFunction is a transformed GCP Cloud Function ready for loading.
// ID format: projects/{PROJECT_ID}/locations/{REGION}/functions/{NAME}
type CloudFunction struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	DisplayName          string `json:"display_name,omitempty"`
	Description          string `json:"description,omitempty"`
	Runtime              string `json:"runtime"`
	EntryPoint           string `json:"entry_point"`
	Status               string `json:"status"`
	CreateTime           string `json:"create_time"`
	UpdateTime           string `json:"update_time"`
	ServiceAccountEmail  string `json:"service_account_email,omitempty"`
	HTTPSTriggerURL      string `json:"https_trigger_url,omitempty"`
	EventTriggerType     string `json:"event_trigger_type,omitempty"`
	EventTriggerResource string `json:"event_trigger_resource,omitempty"`
	ProjectID            string `json:"project_id"`
	Region               string `json:"region"`
}

// Node converts the function to its graph representation
func (f CloudFunction) Node() Node {
	return Node{
		ID:        f.ID,
		Label:     LabelCloudFunction,
		ProjectID: f.ProjectID,
		Props: map[string]any{
			"name":                   f.Name,
			"display_name":           f.DisplayName,
			"description":            f.Description,
			"runtime":                f.Runtime,
			"entry_point":            f.EntryPoint,
			"status":                 f.Status,
			"create_time":            f.CreateTime,
			"update_time":            f.UpdateTime,
			"service_account_email":  f.ServiceAccountEmail,
			"https_trigger_url":      f.HTTPSTriggerURL,
			"event_trigger_type":     f.EventTriggerType,
			"event_trigger_resource": f.EventTriggerResource,
			"project_id":             f.ProjectID,
			"region":                 f.Region,
		},
	}
}

// Project is the owning GCP project for resource scoping
type Project struct {
	ID string `json:"id"`
}

// Node converts the project to its graph representation
func (p Project) Node() Node {
	return Node{
		ID:        p.ID,
		Label:     LabelProject,
		ProjectID: p.ID,
		Props: map[string]any{
			"project_id": p.ID,
		},
	}
}

// ServiceAccount is a GCP service account, matched by email for RUNS_AS edges
type ServiceAccount struct {
	Email     string `json:"email"`
	ProjectID string `json:"project_id"`
}

// Node converts the service account to its graph representation
func (sa ServiceAccount) Node() Node {
	return Node{
		ID:        sa.Email,
		Label:     LabelServiceAccount,
		ProjectID: sa.ProjectID,
		Props: map[string]any{
			"email":      sa.Email,
			"project_id": sa.ProjectID,
		},
	}
}

// Bucket is a transformed GCP Storage Bucket ready for loading
type Bucket struct {
	ID                        string        `json:"id"`
	Kind                      string        `json:"kind,omitempty"`
	Location                  string        `json:"location,omitempty"`
	LocationType              string        `json:"location_type,omitempty"`
	MetaGeneration            string        `json:"meta_generation,omitempty"`
	StorageClass              string        `json:"storage_class,omitempty"`
	TimeCreated               string        `json:"time_created,omitempty"`
	Updated                   string        `json:"updated,omitempty"`
	SelfLink                  string        `json:"self_link,omitempty"`
	Etag                      string        `json:"etag,omitempty"`
	OwnerEntity               string        `json:"owner_entity,omitempty"`
	OwnerEntityID             string        `json:"owner_entity_id,omitempty"`
	VersioningEnabled         bool          `json:"versioning_enabled"`
	RetentionPeriod           string        `json:"retention_period,omitempty"`
	DefaultEventBasedHold     bool          `json:"default_event_based_hold"`
	DefaultKMSKeyName         string        `json:"default_kms_key_name,omitempty"`
	LogBucket                 string        `json:"log_bucket,omitempty"`
	RequesterPays             bool          `json:"requester_pays"`
	IAMConfigBucketPolicyOnly bool          `json:"iam_config_bucket_policy_only"`
	ProjectID                 string        `json:"project_id"`
	Labels                    []BucketLabel `json:"labels,omitempty"`
	LabelIDs                  []string      `json:"label_ids,omitempty"`
}

// Node converts the bucket to its graph representation
func (b Bucket) Node() Node {
	return Node{
		ID:          b.ID,
		Label:       LabelBucket,
		ExtraLabels: []Label{LabelResource},
		ProjectID:   b.ProjectID,
		Props: map[string]any{
			"kind":                          b.Kind,
			"location":                      b.Location,
			"location_type":                 b.LocationType,
			"meta_generation":               b.MetaGeneration,
			"storage_class":                 b.StorageClass,
			"time_created":                  b.TimeCreated,
			"updated":                       b.Updated,
			"self_link":                     b.SelfLink,
			"etag":                          b.Etag,
			"owner_entity":                  b.OwnerEntity,
			"owner_entity_id":               b.OwnerEntityID,
			"versioning_enabled":            b.VersioningEnabled,
			"retention_period":              b.RetentionPeriod,
			"default_event_based_hold":      b.DefaultEventBasedHold,
			"default_kms_key_name":          b.DefaultKMSKeyName,
			"log_bucket":                    b.LogBucket,
			"requester_pays":                b.RequesterPays,
			"iam_config_bucket_policy_only": b.IAMConfigBucketPolicyOnly,
			"project_id":                    b.ProjectID,
			"label_ids":                     b.LabelIDs,
		},
	}
}

// BucketLabel is a single key/value label on a storage bucket.
// ID format: {BUCKET_ID}_{KEY}
type BucketLabel struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	BucketID  string `json:"bucket_id"`
	ProjectID string `json:"project_id"`
}

// Node converts the label to its graph representation
func (l BucketLabel) Node() Node {
	return Node{
		ID:        l.ID,
		Label:     LabelBucketLabel,
		ProjectID: l.ProjectID,
		Props: map[string]any{
			"key":        l.Key,
			"value":      l.Value,
			"bucket_id":  l.BucketID,
			"project_id": l.ProjectID,
		},
	}
}
