// Package provider is the HTTP client for the booking provider's job,
// booking and availability APIs. It requires an API key and auth token
// captured from an authenticated staff session.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Credentials struct {
	APIKey    string
	AuthToken string
}

type Client struct {
	hc      baseHTTP
	baseURL string
	wsURL   string
	creds   Credentials
}

// baseHTTP keeps the client swappable in tests.
type baseHTTP interface {
	Do(req *http.Request) (*http.Response, error)
}

func New(baseURL, wsURL string, creds Credentials) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		wsURL:   strings.TrimRight(wsURL, "/"),
		creds:   creds,
	}
}

// Ping verifies the stored session is still accepted by the provider.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/api/session", "", nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return apiError("ping", status, body)
	}
	return nil
}

// ChannelURL is the websocket endpoint streaming one job's events.
func (c *Client) ChannelURL(jobID string) string {
	return fmt.Sprintf("%s/api/monitors/%s/events", c.wsURL, url.PathEscape(jobID))
}

// AuthHeader carries the same credentials the REST calls use, for the
// websocket handshake.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.creds.AuthToken)
	h.Set("X-Api-Key", c.creds.APIKey)
	return h
}

func (c *Client) do(ctx context.Context, method, path, contentType string, query map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AuthToken)
	req.Header.Set("X-Api-Key", c.creds.APIKey)
	req.Header.Set("Cache-Control", "no-cache")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

// apiError surfaces the provider's message field when present.
func apiError(action string, status int, body []byte) error {
	var r struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &r)
	if r.Message != "" {
		return fmt.Errorf("%s failed: %s (status=%d)", action, r.Message, status)
	}
	return fmt.Errorf("%s failed (status=%d)", action, status)
}
