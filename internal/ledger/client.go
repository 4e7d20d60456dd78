// Package ledger is the client of the external accounting API. Every call goes
// through a request rate limiter, retries transient failures with exponential
// backoff and is guarded by a circuit breaker.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/logging"
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
var ErrCircuitOpen = errors.New("ledger circuit breaker is open")

// APIError is a non-retryable or exhausted HTTP error response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger API returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Recorder receives per-request telemetry.
type Recorder interface {
	RecordLedgerRequest(endpoint string, statusCode int, duration time.Duration)
}

type Client struct {
	baseURL    string
	token      string
	tenantID   string
	maxRetries int

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     logging.Logger
	recorder   Recorder

	backoff    time.Duration
	maxBackoff time.Duration
}

func NewClient(cfg config.LedgerConfig, logger logging.Logger, recorder Recorder) *Client {
	logger = logger.WithField(logging.FieldComponent, "ledger")

	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		tenantID:   cfg.TenantID,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(perSecond, 1),
		logger:     logger,
		recorder:   recorder,
		backoff:    500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the API is up; only count outages.
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.retryable()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				logging.F("from", from.String()),
				logging.F(logging.FieldStatus, to.String()))
		},
	})
	return c
}

// getJSON fetches path and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, modifiedSince time.Time, out interface{}) error {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, endpoint, path, query, modifiedSince)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", endpoint, ErrCircuitOpen)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, endpoint, path string, query url.Values, modifiedSince time.Time) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffFor(attempt, lastErr)
			c.logger.Warn("Retrying ledger request",
				logging.F(logging.FieldOperation, endpoint),
				logging.F(logging.FieldAttempt, attempt),
				logging.F(logging.FieldDuration, wait.Milliseconds()),
				logging.F("error", lastErr.Error()))
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.do(ctx, endpoint, path, query, modifiedSince)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

type retryAfterError struct {
	*APIError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func (c *Client) do(ctx context.Context, endpoint, path string, query url.Values, modifiedSince time.Time) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.tenantID != "" {
		req.Header.Set("Xero-Tenant-Id", c.tenantID)
	}
	if !modifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", modifiedSince.UTC().Format(http.TimeFormat))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.record(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
		if after, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return nil, &retryAfterError{APIError: apiErr, after: after}
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) record(endpoint string, status int, d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordLedgerRequest(endpoint, status, d)
	}
}

// backoffFor doubles the base delay per attempt with jitter, capped at
// maxBackoff. A Retry-After header from the failed response takes precedence.
func (c *Client) backoffFor(attempt int, lastErr error) time.Duration {
	var ra *retryAfterError
	if errors.As(lastErr, &ra) {
		if ra.after > c.maxBackoff {
			return c.maxBackoff
		}
		return ra.after
	}

	d := c.backoff << (attempt - 1)
	if d <= 0 || d > c.maxBackoff {
		d = c.maxBackoff
	}
	if half := int64(d / 2); half > 0 {
		d = time.Duration(half + rand.Int63n(half))
	}
	return d
}

func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
