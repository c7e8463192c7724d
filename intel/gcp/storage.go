package gcp

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/yairfalse/kartta/types"
)

// BucketResource is the raw Cloud Storage JSON API bucket representation
type BucketResource struct {
	ID                    string            `json:"id"`
	Kind                  string            `json:"kind,omitempty"`
	Location              string            `json:"location,omitempty"`
	LocationType          string            `json:"locationType,omitempty"`
	Metageneration        string            `json:"metageneration,omitempty"`
	ProjectNumber         string            `json:"projectNumber,omitempty"`
	SelfLink              string            `json:"selfLink,omitempty"`
	StorageClass          string            `json:"storageClass,omitempty"`
	TimeCreated           string            `json:"timeCreated,omitempty"`
	Updated               string            `json:"updated,omitempty"`
	Etag                  string            `json:"etag,omitempty"`
	DefaultEventBasedHold bool              `json:"defaultEventBasedHold,omitempty"`
	Labels                map[string]string `json:"labels,omitempty"`

	Owner *struct {
		Entity   string `json:"entity"`
		EntityID string `json:"entityId"`
	} `json:"owner,omitempty"`
	Versioning *struct {
		Enabled bool `json:"enabled"`
	} `json:"versioning,omitempty"`
	RetentionPolicy *struct {
		RetentionPeriod string `json:"retentionPeriod"`
	} `json:"retentionPolicy,omitempty"`
	Encryption *struct {
		DefaultKMSKeyName string `json:"defaultKmsKeyName"`
	} `json:"encryption,omitempty"`
	Logging *struct {
		LogBucket string `json:"logBucket"`
	} `json:"logging,omitempty"`
	Billing *struct {
		RequesterPays bool `json:"requesterPays"`
	} `json:"billing,omitempty"`
	IAMConfiguration *struct {
		BucketPolicyOnly struct {
			Enabled bool `json:"enabled"`
		} `json:"bucketPolicyOnly"`
	} `json:"iamConfiguration,omitempty"`
}

type listBucketsResponse struct {
	Items         []BucketResource `json:"items"`
	NextPageToken string           `json:"nextPageToken"`
}

// ListBuckets fetches raw storage buckets for a project, following pagination
func (c *Client) ListBuckets(ctx context.Context, projectID string) ([]BucketResource, error) {
	var collected []BucketResource

	base := fmt.Sprintf("%s/storage/v1/b?project=%s", c.storageEndpoint, url.QueryEscape(projectID))
	pageToken := ""

	for {
		listURL := base
		if pageToken != "" {
			listURL = base + "&pageToken=" + url.QueryEscape(pageToken)
		}

		var page listBucketsResponse
		if err := c.getJSON(ctx, listURL, &page); err != nil {
			return nil, fmt.Errorf("failed to list buckets for project %s: %w", projectID, err)
		}

		collected = append(collected, page.Items...)

		if page.NextPageToken == "" {
			return collected, nil
		}
		pageToken = page.NextPageToken
	}
}

// TransformBuckets flattens raw buckets and explodes their labels into
// separate assets linked back by label id
func TransformBuckets(projectID string, raw []BucketResource) []types.Bucket {
	var buckets []types.Bucket

	for _, b := range raw {
		bucket := types.Bucket{
			ID:                    b.ID,
			Kind:                  b.Kind,
			Location:              b.Location,
			LocationType:          b.LocationType,
			MetaGeneration:        b.Metageneration,
			SelfLink:              b.SelfLink,
			StorageClass:          b.StorageClass,
			TimeCreated:           b.TimeCreated,
			Updated:               b.Updated,
			Etag:                  b.Etag,
			DefaultEventBasedHold: b.DefaultEventBasedHold,
			ProjectID:             projectID,
		}

		if b.Owner != nil {
			bucket.OwnerEntity = b.Owner.Entity
			bucket.OwnerEntityID = b.Owner.EntityID
		}
		if b.Versioning != nil {
			bucket.VersioningEnabled = b.Versioning.Enabled
		}
		if b.RetentionPolicy != nil {
			bucket.RetentionPeriod = b.RetentionPolicy.RetentionPeriod
		}
		if b.Encryption != nil {
			bucket.DefaultKMSKeyName = b.Encryption.DefaultKMSKeyName
		}
		if b.Logging != nil {
			bucket.LogBucket = b.Logging.LogBucket
		}
		if b.Billing != nil {
			bucket.RequesterPays = b.Billing.RequesterPays
		}
		if b.IAMConfiguration != nil {
			bucket.IAMConfigBucketPolicyOnly = b.IAMConfiguration.BucketPolicyOnly.Enabled
		}

		bucket.Labels, bucket.LabelIDs = transformLabels(projectID, b)

		buckets = append(buckets, bucket)
	}

	return buckets
}

// transformLabels builds label assets with deterministic ordering
func transformLabels(projectID string, b BucketResource) ([]types.BucketLabel, []string) {
	if len(b.Labels) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(b.Labels))
	for key := range b.Labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	labels := make([]types.BucketLabel, 0, len(keys))
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		label := types.BucketLabel{
			ID:        b.ID + "_" + key,
			Key:       key,
			Value:     b.Labels[key],
			BucketID:  b.ID,
			ProjectID: projectID,
		}
		labels = append(labels, label)
		ids = append(ids, label.ID)
	}
	return labels, ids
}
