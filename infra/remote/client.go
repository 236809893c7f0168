// Package remote talks to the shared tracking store exposed by another
// deployment of the service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/porttrack/auth"
	"github.com/kilianp07/porttrack/core/model"
)

const trackerPath = "/api/ship-tracker"

// Config configures the remote store.
type Config struct {
	Enabled        bool   `json:"enabled"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// PushPerMinute bounds how often the local store is pushed.
	PushPerMinute int `json:"push_per_minute"`
	// Auth enables OAuth2 client credentials on every request.
	Auth auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.PushPerMinute <= 0 {
		c.PushPerMinute = 6
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Enabled && c.BaseURL == "" {
		return fmt.Errorf("remote base_url is required when enabled")
	}
	return c.Auth.Validate()
}

// Timeout returns the per request timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// Client pushes and pulls whole documents.
type Client struct {
	base  string
	http  *http.Client
	creds *auth.ClientCred
}

// NewClient returns a Client for cfg. A nil httpClient uses one with the
// configured timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.SetDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	c := &Client{base: strings.TrimRight(cfg.BaseURL, "/"), http: httpClient}
	if cfg.Auth.Enabled() {
		c.creds = auth.NewClientCred(cfg.Auth)
	}
	return c
}

// do sends the request built by build, refreshing the token once when the
// remote answers 401.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		if c.creds != nil {
			if err := c.creds.SetAuthHeader(req); err != nil {
				return nil, err
			}
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized || c.creds == nil || attempt > 0 {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if _, err := c.creds.ForceRefresh(ctx); err != nil {
			return nil, err
		}
	}
}

type pushBody struct {
	model.Document
	Merge bool `json:"merge"`
}

// Push sends doc to the remote store asking it to merge.
func (c *Client) Push(ctx context.Context, doc model.Document) error {
	b, err := json.Marshal(pushBody{Document: doc, Merge: true})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+trackerPath, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push: remote returned %s", resp.Status)
	}
	return nil
}

// Pull fetches the remote document.
func (c *Client) Pull(ctx context.Context) (model.Document, error) {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+trackerPath, nil)
	})
	if err != nil {
		return model.Document{}, fmt.Errorf("pull: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.Document{}, fmt.Errorf("pull: remote returned %s", resp.Status)
	}
	var doc model.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return model.Document{}, fmt.Errorf("pull: decode: %w", err)
	}
	return doc, nil
}
