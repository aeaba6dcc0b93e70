// Package platform is the adapter for the upstream call-platform HTTP API.
//
// Rules:
// - No HTTP calls to the platform outside this adapter.
// - Payloads are returned as raw objects; decoding their shape is the
//   extractor's job, not the client's.
// - The base URL is resolved once from config; there is no runtime probing
//   of URL variants.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// API lists calls and fetches per-call details.
type API interface {
	ListCalls(ctx context.Context) ([]map[string]any, error)
	GetCall(ctx context.Context, runID string) (map[string]any, error)
	GetSession(ctx context.Context, sessionID string) (map[string]any, error)
}

type Config struct {
	BaseURL string
	APIKey  string

	// RequestTimeout bounds one attempt; MaxElapsed bounds all retries of
	// one logical call.
	RequestTimeout time.Duration
	MaxElapsed     time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 20 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (c *Client) ListCalls(ctx context.Context) ([]map[string]any, error) {
	var decoded any
	if err := c.getJSON(ctx, "/runs", &decoded); err != nil {
		return nil, err
	}
	return callObjects(decoded), nil
}

func (c *Client) GetCall(ctx context.Context, runID string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/runs/"+runID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/sessions/"+sessionID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs a GET with exponential backoff. Network errors and 5xx
// responses retry; any other non-2xx status is permanent.
func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.cfg.MaxElapsed

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("platform: %s returned %d", path, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("platform: %s returned %d", path, resp.StatusCode))
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(fmt.Errorf("platform: decode %s: %w", path, err))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// callObjects accepts the two list encodings the platform has shipped:
// a bare array, or an object wrapping the array under runs/data/calls.
func callObjects(decoded any) []map[string]any {
	items, ok := decoded.([]any)
	if !ok {
		if wrapper, ok := decoded.(map[string]any); ok {
			for _, key := range []string{"runs", "data", "calls"} {
				if arr, ok := wrapper[key].([]any); ok {
					items = arr
					break
				}
			}
		}
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
