package gcp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBucketsBody = `{
  "items": [
    {
      "id": "bucket-1",
      "kind": "storage#bucket",
      "location": "US",
      "locationType": "multi-region",
      "metageneration": "3",
      "storageClass": "STANDARD",
      "timeCreated": "2023-06-01T00:00:00Z",
      "updated": "2024-01-01T00:00:00Z",
      "selfLink": "https://www.googleapis.com/storage/v1/b/bucket-1",
      "etag": "CAE=",
      "owner": {"entity": "project-owners-123", "entityId": "123"},
      "versioning": {"enabled": true},
      "retentionPolicy": {"retentionPeriod": "86400"},
      "encryption": {"defaultKmsKeyName": "projects/p/locations/us/keyRings/r/cryptoKeys/k"},
      "logging": {"logBucket": "log-bucket"},
      "billing": {"requesterPays": true},
      "iamConfiguration": {"bucketPolicyOnly": {"enabled": true}},
      "labels": {"team": "data", "env": "prod"}
    }
  ]
}`

func TestListBuckets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b", r.URL.Path)
		assert.Equal(t, "test-project", r.URL.Query().Get("project"))
		fmt.Fprint(w, listBucketsBody)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(),
		WithHTTPClient(server.Client()),
		WithStorageEndpoint(server.URL))
	require.NoError(t, err)

	raw, err := client.ListBuckets(context.Background(), "test-project")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "bucket-1", raw[0].ID)
	require.NotNil(t, raw[0].Versioning)
	assert.True(t, raw[0].Versioning.Enabled)
}

func TestTransformBuckets(t *testing.T) {
	raw := []BucketResource{{
		ID:             "bucket-1",
		Kind:           "storage#bucket",
		Location:       "US",
		LocationType:   "multi-region",
		Metageneration: "3",
		StorageClass:   "STANDARD",
		TimeCreated:    "2023-06-01T00:00:00Z",
		Updated:        "2024-01-01T00:00:00Z",
		Labels:         map[string]string{"team": "data", "env": "prod"},
	}}
	raw[0].Versioning = &struct {
		Enabled bool `json:"enabled"`
	}{Enabled: true}
	raw[0].RetentionPolicy = &struct {
		RetentionPeriod string `json:"retentionPeriod"`
	}{RetentionPeriod: "86400"}
	raw[0].Billing = &struct {
		RequesterPays bool `json:"requesterPays"`
	}{RequesterPays: true}

	buckets := TransformBuckets("test-project", raw)
	require.Len(t, buckets, 1)

	bucket := buckets[0]
	assert.Equal(t, "bucket-1", bucket.ID)
	assert.Equal(t, "test-project", bucket.ProjectID)
	assert.Equal(t, "US", bucket.Location)
	assert.True(t, bucket.VersioningEnabled)
	assert.Equal(t, "86400", bucket.RetentionPeriod)
	assert.True(t, bucket.RequesterPays)

	// Labels are exploded deterministically, sorted by key
	require.Len(t, bucket.Labels, 2)
	assert.Equal(t, []string{"bucket-1_env", "bucket-1_team"}, bucket.LabelIDs)
	assert.Equal(t, "env", bucket.Labels[0].Key)
	assert.Equal(t, "prod", bucket.Labels[0].Value)
	assert.Equal(t, "bucket-1", bucket.Labels[0].BucketID)
	assert.Equal(t, "team", bucket.Labels[1].Key)
	assert.Equal(t, "data", bucket.Labels[1].Value)
}

func TestTransformBuckets_NoLabels(t *testing.T) {
	buckets := TransformBuckets("p", []BucketResource{{ID: "plain"}})
	require.Len(t, buckets, 1)
	assert.Empty(t, buckets[0].Labels)
	assert.Empty(t, buckets[0].LabelIDs)
}
