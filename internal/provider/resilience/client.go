package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted
	// on network failures.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is the number of attempts allowed beyond the first.
	// Default: 2
	MaxRetries uint64

	// RateLimitWait is the fixed pause after an HTTP 429 before retrying.
	// Default: 5 minutes
	RateLimitWait time.Duration

	// NetworkErrorWait is the fixed pause after a transport failure before retrying.
	// Default: 5 seconds
	NetworkErrorWait time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Transport overrides the underlying round tripper. It is wrapped for gzip.
	Transport http.RoundTripper

	// Registry, when set, receives the client on construction and the outcome
	// of every call.
	Registry *Registry

	Logger zerolog.Logger
}

// Defaults for ClientConfig.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRetries       = 2
	DefaultRateLimitWait    = 5 * time.Minute
	DefaultNetworkErrorWait = 5 * time.Second
)

// DefaultClientConfig returns the defaults for an upstream limited to one
// request per minute per key.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:             name,
		Timeout:          DefaultTimeout,
		MaxRetries:       DefaultMaxRetries,
		RateLimitWait:    DefaultRateLimitWait,
		NetworkErrorWait: DefaultNetworkErrorWait,
		CircuitBreaker:   &cbConfig,
		Logger:           zerolog.Nop(),
	}
}

// Client performs sequential GETs with bounded fixed-delay retries on HTTP 429
// and on transport failures, behind a circuit breaker.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
	logger         zerolog.Logger
}

// NewClient creates a new resilient HTTP client. Zero durations fall back to the
// defaults; a zero MaxRetries is honoured as "no retries".
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimitWait == 0 {
		cfg.RateLimitWait = DefaultRateLimitWait
	}
	if cfg.NetworkErrorWait == 0 {
		cfg.NetworkErrorWait = DefaultNetworkErrorWait
	}

	logger := cfg.Logger.With().Str("provider", cfg.Name).Logger()

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	cb := NewCircuitBreaker[*http.Response](cbConfig, logger) //nolint:bodyclose // type param, not response

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: gzhttp.Transport(transport),
		},
		circuitBreaker: cb,
		config:         cfg,
		logger:         logger,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name this client was configured with.
func (c *Client) Name() string {
	return c.config.Name
}

// Config returns the effective configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

// Do executes an HTTP request with retry and circuit breaker protection.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
//
// A 429 is retried after RateLimitWait; when retries run out the final 429
// response is returned with a nil error so the caller can inspect it. A
// transport error is retried after NetworkErrorWait; when retries run out the
// error wraps ErrMaxRetriesExceeded. Every other response, including 5xx, is
// returned as is on the first attempt.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.do(ctx, req)
	if c.config.Registry != nil {
		outcome := err
		if outcome == nil && resp.StatusCode >= http.StatusBadRequest {
			outcome = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		c.config.Registry.Record(c.config.Name, outcome)
	}
	return resp, err
}

// do runs the whole retry sequence as a single breaker call, so a fetch that
// exhausts its attempts counts once and the next fetch keeps its own budget.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
		r, err := c.retry(ctx, req)
		// 5xx only counts against the breaker; the response still reaches the caller.
		if err == nil && r.StatusCode >= http.StatusInternalServerError {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, err
	})

	var serverErr *ServerError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitOpen
	case errors.As(err, &serverErr):
		return resp, nil
	}
	return resp, err
}

func (c *Client) retry(ctx context.Context, req *http.Request) (*http.Response, error) {
	delay := &fixedDelay{}
	policy := backoff.WithContext(backoff.WithMaxRetries(delay, c.config.MaxRetries), ctx)

	var (
		lastResp *http.Response
		lastErr  error
		attempt  int
	)

	operation := func() error {
		attempt++
		if lastResp != nil {
			// A retried 429 body is never read.
			lastResp.Body.Close()
			lastResp = nil
		}

		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			lastErr = err
			delay.next = c.config.NetworkErrorWait
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("wait", delay.next).
				Msg("request failed, retrying")
			return err
		}

		lastResp = resp
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = errRateLimited
			delay.next = c.config.RateLimitWait
			c.logger.Warn().
				Int("attempt", attempt).
				Dur("wait", delay.next).
				Msg("rate limit hit (429), retrying")
			return errRateLimited
		}
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err == nil {
		return lastResp, nil
	}

	if errors.Is(lastErr, errRateLimited) && lastResp != nil && ctx.Err() == nil {
		return lastResp, nil
	}
	if lastResp != nil {
		lastResp.Body.Close()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
}

var errRateLimited = errors.New("rate limited")

// fixedDelay is a backoff.BackOff whose next delay is chosen by the operation
// according to the kind of failure it just saw.
type fixedDelay struct {
	next time.Duration
}

func (d *fixedDelay) NextBackOff() time.Duration { return d.next }

func (d *fixedDelay) Reset() {}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
