package gcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yairfalse/kartta/types"
)

// FunctionResource is the raw Cloud Functions API representation
type FunctionResource struct {
	Name                string            `json:"name"`
	DisplayName         string            `json:"displayName,omitempty"`
	Description         string            `json:"description,omitempty"`
	State               string            `json:"state"`
	Runtime             string            `json:"runtime"`
	EntryPoint          string            `json:"entryPoint"`
	CreateTime          string            `json:"createTime"`
	UpdateTime          string            `json:"updateTime"`
	ServiceAccountEmail string            `json:"serviceAccountEmail,omitempty"`
	HTTPSTrigger        *HTTPSTrigger     `json:"httpsTrigger,omitempty"`
	EventTrigger        *EventTrigger     `json:"eventTrigger,omitempty"`
	Labels              map[string]string `json:"labels,omitempty"`
}

// HTTPSTrigger describes an HTTPS-invoked function
type HTTPSTrigger struct {
	URL string `json:"url"`
}

// EventTrigger describes an event-invoked function
type EventTrigger struct {
	EventType string `json:"eventType"`
	Resource  string `json:"resource"`
}

type listFunctionsResponse struct {
	Functions     []FunctionResource `json:"functions"`
	NextPageToken string             `json:"nextPageToken"`
}

// ListFunctions fetches raw Cloud Functions for a project across all
// available locations, following pagination
func (c *Client) ListFunctions(ctx context.Context, projectID string) ([]FunctionResource, error) {
	var collected []FunctionResource

	base := fmt.Sprintf("%s/v2/projects/%s/locations/-/functions", c.functionsEndpoint, projectID)
	pageToken := ""

	for {
		listURL := base
		if pageToken != "" {
			listURL = base + "?pageToken=" + url.QueryEscape(pageToken)
		}

		var page listFunctionsResponse
		if err := c.getJSON(ctx, listURL, &page); err != nil {
			return nil, fmt.Errorf("failed to list functions for project %s: %w", projectID, err)
		}

		collected = append(collected, page.Functions...)

		if page.NextPageToken == "" {
			return collected, nil
		}
		pageToken = page.NextPageToken
	}
}

// TransformFunctions converts raw API functions into graph assets. The
// region is parsed from the function name; functions whose name does not
// carry a location segment are dropped and reported in skipped.
func TransformFunctions(projectID string, raw []FunctionResource) (functions []types.CloudFunction, skipped []string) {
	for _, f := range raw {
		region, ok := regionFromName(f.Name)
		if !ok {
			skipped = append(skipped, f.Name)
			continue
		}

		fn := types.CloudFunction{
			ID:                  f.Name,
			Name:                f.Name,
			DisplayName:         f.DisplayName,
			Description:         f.Description,
			Runtime:             f.Runtime,
			EntryPoint:          f.EntryPoint,
			Status:              f.State,
			CreateTime:          f.CreateTime,
			UpdateTime:          f.UpdateTime,
			ServiceAccountEmail: f.ServiceAccountEmail,
			ProjectID:           projectID,
			Region:              region,
		}
		if f.HTTPSTrigger != nil {
			fn.HTTPSTriggerURL = f.HTTPSTrigger.URL
		}
		if f.EventTrigger != nil {
			fn.EventTriggerType = f.EventTrigger.EventType
			fn.EventTriggerResource = f.EventTrigger.Resource
		}

		functions = append(functions, fn)
	}
	return functions, skipped
}

// regionFromName parses the location segment of
// projects/{PROJECT_ID}/locations/{REGION}/functions/{NAME}
func regionFromName(name string) (string, bool) {
	parts := strings.Split(name, "/")
	if len(parts) < 6 || parts[0] != "projects" || parts[2] != "locations" || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}
