// Package geo resolves street addresses to coordinates through a
// Baidu-compatible geocoding API.
package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wspush/internal/adapter/metrics"
	"github.com/pscheid92/wspush/internal/platform/retry"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const (
	requestTimeout = 5 * time.Second
	lookupTimeout  = 15 * time.Second
	maxBodySize    = 1 << 20
)

var (
	ErrEmptyAddress = errors.New("address is empty")
	ErrUnavailable  = errors.New("geocoding service unavailable")
)

// StatusError is returned when the upstream answers with an HTTP error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoder returned HTTP %d: %s", e.StatusCode, e.Body)
}

type Location struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Result mirrors the upstream payload. Status 0 means the address resolved.
type Result struct {
	Status int `json:"status"`
	Result struct {
		Location      Location `json:"location"`
		Precise       int      `json:"precise"`
		Confidence    int      `json:"confidence"`
		Comprehension int      `json:"comprehension"`
		Level         string   `json:"level"`
	} `json:"result"`
	Message string `json:"msg,omitempty"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

// WithClock drives retry backoff from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.retry.Clock = clock }
}

func WithMetrics(m *metrics.GeocoderMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreakerThreshold trips the circuit after n consecutive failed lookups.
func WithBreakerThreshold(n uint32) Option {
	return func(c *Client) { c.tripAfter = n }
}

type Client struct {
	baseURL   string
	key       string
	http      *http.Client
	retry     retry.Policy
	tripAfter uint32
	metrics   *metrics.GeocoderMetrics

	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
}

func NewClient(baseURL, key string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: requestTimeout},
		retry: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			MaxBackoff:       2 * time.Second,
			RateLimitBackoff: 2 * time.Second,
		},
		tripAfter: 5,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.tripAfter
		},
		IsSuccessful: upstreamHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if c.metrics != nil {
				c.metrics.BreakerState.Set(float64(to))
			}
		},
	})
	return c
}

// Lookup resolves address. Concurrent lookups of the same address share one
// upstream request, which runs detached from any single caller's context and
// is bounded by lookupTimeout. A caller whose ctx ends stops waiting without
// affecting the others.
func (c *Client) Lookup(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	ch := c.group.DoChan(address, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		return c.breaker.Execute(func() (any, error) {
			return retry.Do(callCtx, c.retry, classify, func(ctx context.Context) (*Result, error) {
				return c.fetch(ctx, address)
			})
		})
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.observe("abandoned")
		return nil, fmt.Errorf("geocoding lookup abandoned: %w", ctx.Err())
	}

	if res.Shared && c.metrics != nil {
		c.metrics.SharedCalls.Inc()
	}

	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.observe("rejected")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		c.observe("error")
		slog.ErrorContext(ctx, "Geocoding lookup failed", "address", address, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	c.observe("success")
	return v.(*Result), nil
}

func (c *Client) fetch(ctx context.Context, address string) (*Result, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("output", "json")
	query.Set("ak", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocoding/v3/?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocoding request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return decodeResult(body)
}

// decodeResult accepts the payload either as a JSON object or as a JSON
// string that itself holds the object.
func decodeResult(body []byte) (*Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &retry.PermanentError{Err: errors.New("empty geocoding response")}
	}

	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, &retry.PermanentError{Err: fmt.Errorf("failed to decode geocoding response: %w", err)}
		}
		body = []byte(inner)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &retry.PermanentError{Err: fmt.Errorf("failed to decode geocoding response: %w", err)}
	}
	return &result, nil
}

// upstreamHealthy reports whether err leaves the breaker's failure count
// alone: cancellations and 4xx answers other than 429 say nothing about the
// upstream being down.
func upstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode < http.StatusInternalServerError && status.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func classify(err error) retry.Action {
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return retry.Stop
	}
	var status *StatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case status.StatusCode >= http.StatusInternalServerError:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	return retry.Retry
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.Lookups.WithLabelValues(outcome).Inc()
	}
}
