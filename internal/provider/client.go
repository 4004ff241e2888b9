// Package provider is the HTTP boundary shared by every embedding and generation
// collaborator. It owns rate limiting, retries with bounded backoff, the circuit
// breaker and the mapping of HTTP outcomes onto ProviderError codes.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/pkg/version"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 60 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 64 << 20

	// maxErrorBodyBytes caps how much of an error body is kept for messages.
	maxErrorBodyBytes = 1 << 10
)

// Config configures a Client.
type Config struct {
	// Name identifies the endpoint in logs and errors (e.g. "openai-embeddings").
	Name string

	// BaseURL is prepended to every request path.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds a single attempt. Retries get a fresh timeout.
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero or negative disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter bucket size.
	Burst int

	// Retry is the backoff policy. ShouldRetry defaults to IsRetryable.
	Retry lenserrors.RetryConfig

	// CircuitFailures is the number of consecutive failures that open the circuit.
	// Zero disables the breaker.
	CircuitFailures int

	// CircuitReset is how long the circuit stays open.
	CircuitReset time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client sends JSON requests to one provider endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *lenserrors.CircuitBreaker
}

// NewClient creates a Client. Missing settings fall back to defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = lenserrors.IsRetryable
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2.0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: limiter,
	}
	if cfg.CircuitFailures > 0 {
		opts := []lenserrors.CircuitBreakerOption{
			lenserrors.WithMaxFailures(cfg.CircuitFailures),
			lenserrors.WithFailureFilter(lenserrors.IsRetryable),
		}
		if cfg.CircuitReset > 0 {
			opts = append(opts, lenserrors.WithResetTimeout(cfg.CircuitReset))
		}
		c.breaker = lenserrors.NewCircuitBreaker(cfg.Name, opts...)
	}
	return c
}

// Name returns the endpoint name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// PostJSON sends body as JSON to path and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return lenserrors.InternalError("failed to encode request", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

// GetJSON fetches path and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	attempt := 0
	err := lenserrors.Retry(ctx, c.cfg.Retry, func() error {
		attempt++
		if c.breaker == nil {
			return c.attempt(ctx, method, path, payload, out, attempt)
		}
		err := c.breaker.Execute(func() error {
			return c.attempt(ctx, method, path, payload, out, attempt)
		})
		if errors.Is(err, lenserrors.ErrCircuitOpen) {
			e := lenserrors.ProviderError(lenserrors.ErrCodeProviderUnavailable,
				fmt.Sprintf("%s is failing repeatedly, not sending more requests for now", c.cfg.Name), err)
			e.Retryable = false
			return e
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout,
				fmt.Sprintf("%s request ran out of time", c.cfg.Name), ctx.Err())
		}
		// The caller gave up; retrying on its behalf makes no sense.
		e := lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout,
			fmt.Sprintf("%s request cancelled", c.cfg.Name), ctx.Err())
		e.Retryable = false
		return e
	}
	return err
}

// attempt performs one rate-limited HTTP round trip.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any, n int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e := lenserrors.ProviderError(lenserrors.ErrCodeProviderRateLimited,
			fmt.Sprintf("%s request budget exhausted before deadline", c.cfg.Name), err)
		e.Retryable = false
		return e
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return lenserrors.InternalError("failed to build request", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	slog.Debug("provider_request",
		slog.String("provider", c.cfg.Name),
		slog.String("path", path),
		slog.Int("attempt", n),
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return c.statusError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			fmt.Sprintf("%s returned an unreadable response", c.cfg.Name), err)
	}
	return nil
}

// transportError classifies failures that happened before a response arrived.
func (c *Client) transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout,
			fmt.Sprintf("%s did not respond within %s", c.cfg.Name, c.cfg.Timeout), err)
	}
	return lenserrors.ProviderError(lenserrors.ErrCodeProviderUnavailable,
		fmt.Sprintf("cannot reach %s", c.cfg.Name), err).
		WithSuggestion("Check the provider base URL and your network connection")
}

// statusError maps an HTTP status onto a ProviderError.
func (c *Client) statusError(status int, body []byte) error {
	cause := fmt.Errorf("status %d: %s", status, errorMessage(body))

	var e *lenserrors.LensError
	switch {
	case status == http.StatusTooManyRequests:
		e = lenserrors.ProviderError(lenserrors.ErrCodeProviderRateLimited,
			fmt.Sprintf("%s rate limit exceeded", c.cfg.Name), cause)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e = lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout,
			fmt.Sprintf("%s timed out", c.cfg.Name), cause)
	case status >= 500:
		e = lenserrors.ProviderError(lenserrors.ErrCodeProviderUnavailable,
			fmt.Sprintf("%s is unavailable", c.cfg.Name), cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = lenserrors.ProviderError(lenserrors.ErrCodeProviderRejected,
			fmt.Sprintf("%s rejected the credentials", c.cfg.Name), cause).
			WithSuggestion("Check that OPENAI_API_KEY is set and valid")
	default:
		e = lenserrors.ProviderError(lenserrors.ErrCodeProviderRejected,
			fmt.Sprintf("%s rejected the request", c.cfg.Name), cause)
	}
	return e.WithDetail("provider", c.cfg.Name).WithDetail("status", fmt.Sprint(status))
}

// errorMessage extracts {"error":{"message":...}} or {"error":"..."} bodies.
func errorMessage(body []byte) string {
	var structured struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(structured.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if json.Unmarshal(structured.Error, &plain) == nil && plain != "" {
			return plain
		}
	}
	return strings.TrimSpace(string(body))
}
