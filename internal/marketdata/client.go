// Package marketdata looks up market capitalization and spot prices.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signal-trader/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
	DefaultCacheTTL    = 10 * time.Minute
)

// ErrUnknownTicker is returned when a provider has no data for a ticker.
var ErrUnknownTicker = errors.New("unknown ticker")

// httpClient is the retrying GET helper shared by the providers.
type httpClient struct {
	service     string
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	header      http.Header
	metrics     *observability.Metrics
}

func newHTTPClient(service, baseURL string) httpClient {
	return httpClient{
		service:     service,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		header:      http.Header{},
	}
}

// Option configures a market data client.
type Option func(*httpClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *httpClient) {
		c.client = client
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIKey sets a provider API key header.
func WithAPIKey(header, key string) Option {
	return func(c *httpClient) {
		if key != "" {
			c.header.Set(header, key)
		}
	}
}

// WithMetrics records request latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *httpClient) {
		c.metrics = m
	}
}

// getJSON performs a GET with retries and exponential backoff.
// 404 and 400 are returned immediately; 429, 5xx and transport errors retry.
func (c *httpClient) getJSON(ctx context.Context, path string, result interface{}) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordExternalCall(c.service, strings.SplitN(path, "?", 2)[0], time.Since(start).Seconds())
	}()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range c.header {
			req.Header[k] = v
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
			return fmt.Errorf("%w: status %d: %s", ErrUnknownTicker, resp.StatusCode, string(body))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
