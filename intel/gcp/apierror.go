package gcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a structured error response from a GCP API
type APIError struct {
	StatusCode int
	Status     string
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gcp api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
}

// errorEnvelope matches the standard GCP error response body
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// parseAPIError builds an APIError from a non-200 response
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		apiErr.Message = resp.Status
		return apiErr
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Status = envelope.Error.Status
	apiErr.Message = envelope.Error.Message
	if len(envelope.Error.Errors) > 0 {
		apiErr.Reason = envelope.Error.Errors[0].Reason
	}
	return apiErr
}

// IsAPINotEnabled reports whether the error means the API is not enabled
// for the project; the sync skips the project in that case
func IsAPINotEnabled(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Reason == "accessNotConfigured" ||
		strings.Contains(apiErr.Message, "API has not been used")
}

// IsNotFound reports whether the listing target does not exist. Storage
// returns 404 for projects without any bucket resource; that is an empty
// listing, not a failure.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound
}

// IsPermissionDenied reports whether the caller lacks permission to list
// the asset; the sync skips the project in that case
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Reason == "forbidden" ||
		apiErr.Status == "PERMISSION_DENIED" ||
		strings.Contains(apiErr.Message, "Permission denied")
}
