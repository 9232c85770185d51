package tradelocker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to one TradeLocker backend-api host. Construct one per
// connection after resolving the host (jwt claim first, environment fallback).
type Client struct {
	host       string
	httpClient *http.Client
	limiter    *rate.Limiter
	devKey     string
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tradelocker API error (%d): %s", e.Status, e.Body)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError. Probing and token rotation branch on it.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Auth carries the per-request credentials. AccNum is sent as the bare
// `accNum` header the trade endpoints require; leave it empty for auth routes.
type Auth struct {
	AccessToken string
	AccNum      string
}

func NewClient(httpClient *http.Client, host string, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 25 * time.Second}
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

func (c *Client) Host() string {
	return c.host
}

// WithDeveloperKey sets the optional developer-api-key header some
// white-label deployments require on trade routes.
func (c *Client) WithDeveloperKey(key string) *Client {
	c.devKey = strings.TrimSpace(key)
	return c
}

// Get performs an authorized GET. Non-2xx responses come back as *APIError so
// callers can branch on status without losing the body.
func (c *Client) Get(ctx context.Context, path string, auth Auth) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, auth)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, auth Auth) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+normalizePath(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v := strings.TrimSpace(auth.AccessToken); v != "" {
		req.Header.Set("Authorization", "Bearer "+v)
	}
	if v := strings.TrimSpace(auth.AccNum); v != "" {
		req.Header.Set("accNum", v)
	}
	if c.devKey != "" {
		req.Header.Set("developer-api-key", c.devKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	// TradeLocker reports some failures as HTTP 200 with {s:"error", errmsg}.
	if msg, soft := softError(respBody); soft {
		return nil, &APIError{Status: resp.StatusCode, Body: msg}
	}
	return respBody, nil
}

func softError(body []byte) (string, bool) {
	var probe struct {
		S      string `json:"s"`
		ErrMsg string `json:"errmsg"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", false
	}
	if strings.EqualFold(probe.S, "error") {
		if probe.ErrMsg != "" {
			return probe.ErrMsg, true
		}
		return "provider reported error", true
	}
	return "", false
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// ResolveBaseURL picks the backend-api host for a connection: the unverified
// `host` claim from the access token wins, otherwise the environment default.
func ResolveBaseURL(demoURL, liveURL, environment, jwtHost string) string {
	if h := strings.TrimSpace(jwtHost); h != "" {
		return "https://" + h + "/backend-api"
	}
	if strings.EqualFold(strings.TrimSpace(environment), "live") {
		return strings.TrimRight(liveURL, "/")
	}
	return strings.TrimRight(demoURL, "/")
}
