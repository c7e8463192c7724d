package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/google"
)

const (
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	defaultFunctionsEndpoint = "https://cloudfunctions.googleapis.com"
	defaultStorageEndpoint   = "https://storage.googleapis.com"
)

// Client calls the GCP REST APIs used for ingestion. Authentication uses
// Application Default Credentials unless an HTTP client is injected.
type Client struct {
	hc                *http.Client
	functionsEndpoint string
	storageEndpoint   string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient injects a pre-authenticated HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithFunctionsEndpoint overrides the Cloud Functions API endpoint
func WithFunctionsEndpoint(endpoint string) Option {
	return func(c *Client) { c.functionsEndpoint = endpoint }
}

// WithStorageEndpoint overrides the Cloud Storage API endpoint
func WithStorageEndpoint(endpoint string) Option {
	return func(c *Client) { c.storageEndpoint = endpoint }
}

// NewClient creates a GCP API client using Application Default Credentials
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		functionsEndpoint: defaultFunctionsEndpoint,
		storageEndpoint:   defaultStorageEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.hc == nil {
		hc, err := google.DefaultClient(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to load GCP default credentials: %w", err)
		}
		c.hc = hc
	}

	return c, nil
}

// getJSON performs an authenticated GET and decodes the response body
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
