// Package client provides a typed Go SDK for the adcmdr bundle API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// NonceHeader carries the per-action token on mutating requests.
const NonceHeader = "X-Action-Nonce"

// Client is the top-level adcmdr API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	Bundles *BundleService
	Stats   *StatsService
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a client for the given base URL (e.g. "http://localhost:3030").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	c.Bundles = &BundleService{c: c}
	c.Stats = &StatsService{c: c}
	return c
}

// Health returns the liveness check response.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ready returns the readiness check response. A server that is not ready
// answers 503, which is returned as an *APIError.
func (c *Client) Ready(ctx context.Context) (*ReadyResponse, error) {
	var resp ReadyResponse
	if err := c.get(ctx, "/api/v1/ready", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Nonce fetches a token for one admin action.
func (c *Client) Nonce(ctx context.Context, action string) (string, error) {
	var resp nonceResponse
	if err := c.get(ctx, "/api/v1/nonce", url.Values{"action": {action}}, &resp); err != nil {
		return "", fmt.Errorf("nonce for %s: %w", action, err)
	}
	return resp.Nonce, nil
}

// newRequest builds an authenticated request.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// send executes req and decodes the JSON response into result.
func (c *Client) send(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// do executes a JSON request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, bodyReader, contentType)
	if err != nil {
		return err
	}
	return c.send(req, result)
}

// get is a convenience wrapper for GET requests with query parameters.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// action runs a nonce-protected admin action with a JSON body and decodes
// the data of a successful answer into data.
func (c *Client) action(ctx context.Context, method, path, action string, body, data any) (*actionResponse, error) {
	nonce, err := c.Nonce(ctx, action)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader = http.NoBody
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, bodyReader, contentType)
	if err != nil {
		return nil, err
	}
	req.Header.Set(NonceHeader, nonce)

	return c.sendAction(req, data)
}

// sendAction executes an admin action request.
func (c *Client) sendAction(req *http.Request, data any) (*actionResponse, error) {
	var resp actionResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}

	if data != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, data); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", resp.Action, err)
		}
	}
	return &resp, nil
}
