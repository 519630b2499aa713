package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ScanResult is the provider's availability cache. CacheUpdatedAt seeds the
// rescan cooldown so the limit holds across process restarts.
type ScanResult struct {
	Slots          []SlotDescriptor `json:"slots"`
	CacheUpdatedAt time.Time        `json:"cacheUpdatedAt"`
}

// Availability reads the cached slot list without triggering a scan.
func (c *Client) Availability(ctx context.Context) (ScanResult, error) {
	return c.scanRequest(ctx, http.MethodGet, "/api/availability", "fetch availability")
}

// Rescan asks the provider to refresh its availability cache. Expensive;
// callers are expected to honor the cooldown gate.
func (c *Client) Rescan(ctx context.Context) (ScanResult, error) {
	return c.scanRequest(ctx, http.MethodPost, "/api/scan", "rescan")
}

func (c *Client) scanRequest(ctx context.Context, method, path, action string) (ScanResult, error) {
	status, body, err := c.do(ctx, method, path, "", nil, nil)
	if err != nil {
		return ScanResult{}, err
	}
	if status >= 400 {
		return ScanResult{}, apiError(action, status, body)
	}
	var res ScanResult
	if err := json.Unmarshal(body, &res); err != nil {
		return ScanResult{}, fmt.Errorf("%s: decode response: %w", action, err)
	}
	return res, nil
}
