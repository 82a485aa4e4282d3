// Package httpapi is the JSON-over-HTTP plumbing shared by provider
// adapters: rate limiting, status classification and call metrics.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ragbench/internal/domain"
	"ragbench/internal/metrics"
)

// Options are shared by every provider client.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = unlimited
	Metrics           *metrics.Metrics
}

// NewLimiter returns a limiter for rps requests per second; rps <= 0 means
// no limit.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps)))
}

// NewHTTPClient returns an http.Client with the configured timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Client posts JSON to one provider.
type Client struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
}

func New(provider, baseURL, apiKey string, opts Options) *Client {
	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     NewHTTPClient(opts.Timeout),
		limiter:  NewLimiter(opts.RequestsPerSecond),
		metrics:  opts.Metrics,
	}
}

func (c *Client) Provider() string {
	return c.provider
}

// PostJSON sends body to baseURL+path and decodes a 2xx response into out.
// Failures are *domain.ProviderError, except context cancellation, which
// is returned as is.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := c.post(ctx, op, path, body, out)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordProviderCall(c.provider, op, status, time.Since(start).Seconds())
	return err
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.Transient(c.provider, op, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Transient(c.provider, op, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProviderError{
			Reason:     domain.ClassifyStatus(resp.StatusCode),
			Provider:   c.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API returned: %s", Preview(respBody)),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.Protocol(c.provider, op, resp.StatusCode,
			fmt.Errorf("failed to parse response (body: %s): %w", Preview(respBody), err))
	}
	return nil
}

// Preview truncates a response body for error messages.
func Preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
