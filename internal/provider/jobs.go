package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/swellwatch/internal/monitor"
)

// StartJob creates a monitor job and returns the server-assigned id.
func (c *Client) StartJob(ctx context.Context, req monitor.StartRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/api/monitors", "application/json", nil, b)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", apiError("start monitor", status, body)
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("start monitor: decode response: %w", err)
	}
	if res.ID == "" {
		return "", errors.New("start monitor: response missing job id")
	}
	return res.ID, nil
}

// StopJob requests cancellation. The job confirms through a later roster,
// not through this call.
func (c *Client) StopJob(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/monitors/%s/stop", url.PathEscape(id))
	status, body, err := c.do(ctx, http.MethodPost, path, "", nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return apiError("stop monitor", status, body)
	}
	return nil
}

// UpdateJob patches the job's criteria. The provider reports whether the
// change forced a restart of the search.
func (c *Client) UpdateJob(ctx context.Context, id string, patch monitor.CriteriaPatch) (bool, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return false, err
	}
	path := "/api/monitors/" + url.PathEscape(id)
	status, body, err := c.do(ctx, http.MethodPut, path, "application/json", nil, b)
	if err != nil {
		return false, err
	}
	if status >= 400 {
		return false, apiError("update monitor", status, body)
	}
	var res struct {
		Restarted bool `json:"restarted"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return false, fmt.Errorf("update monitor: decode response: %w", err)
	}
	return res.Restarted, nil
}

// Roster fetches every job belonging to the current user.
func (c *Client) Roster(ctx context.Context) ([]monitor.MonitorJob, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/monitors", "", nil, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, apiError("fetch roster", status, body)
	}
	var jobs []monitor.MonitorJob
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("fetch roster: decode response: %w", err)
	}
	return jobs, nil
}
