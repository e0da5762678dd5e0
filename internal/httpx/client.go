// Package httpx is the external HTTP collaborator used for third-party
// lookups. Transient network failures are retried with exponential backoff;
// permanent failures propagate immediately as typed upstream errors.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/brianlane/bizblasts-insights/internal/config"
	appErrors "github.com/brianlane/bizblasts-insights/internal/errors"
	"github.com/brianlane/bizblasts-insights/internal/logging"
)

// errRedirectLimit marks a request that followed too many redirects.
var errRedirectLimit = errors.New("redirect limit reached")

// Client wraps net/http with the engine's retry and classification policy.
type Client struct {
	http   *http.Client
	cfg    config.UpstreamConfig
	logger logging.Logger
	jitter func() float64
}

// NewClient builds a client from the upstream configuration.
func NewClient(cfg config.UpstreamConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return errRedirectLimit
			}
			return nil
		},
	}

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: logger.WithComponent("httpx"),
		jitter: rand.Float64,
	}
}

// GetJSON issues a GET and decodes the JSON response body into out. The
// request is retried per the backoff policy for transient failures only.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &appErrors.UpstreamError{
			Kind: appErrors.UpstreamRequest,
			URL:  url,
			Err:  fmt.Errorf("decoding response: %w", err),
		}
	}
	return nil
}

// get runs the retry loop and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	delay := c.cfg.InitialBackoff
	var lastErr *appErrors.UpstreamError

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &appErrors.UpstreamError{
				Kind: appErrors.UpstreamTimeout, URL: url, Attempts: attempt - 1, Err: err,
			}
		}

		body, upstreamErr := c.attempt(ctx, url)
		if upstreamErr == nil {
			return body, nil
		}
		upstreamErr.Attempts = attempt
		lastErr = upstreamErr

		if !c.retryable(upstreamErr) || attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.WarnContext(ctx, "upstream request failed, retrying",
			"url", url,
			"attempt", attempt,
			"kind", string(upstreamErr.Kind),
			"backoff_ms", delay.Milliseconds(),
		)

		select {
		case <-time.After(c.withJitter(delay)):
		case <-ctx.Done():
			return nil, &appErrors.UpstreamError{
				Kind: appErrors.UpstreamTimeout, URL: url, Attempts: attempt, Err: ctx.Err(),
			}
		}

		delay *= 2
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}
	}

	return nil, lastErr
}

// attempt issues one request and classifies any failure.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, *appErrors.UpstreamError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &appErrors.UpstreamError{Kind: appErrors.UpstreamRequest, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &appErrors.UpstreamError{
			Kind:       appErrors.UpstreamRequest,
			URL:        url,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &appErrors.UpstreamError{Kind: appErrors.UpstreamRequest, URL: url, Err: err}
	}
	return body, nil
}

// classify maps a transport error to an upstream error kind.
func (c *Client) classify(url string, err error) *appErrors.UpstreamError {
	if errors.Is(err, errRedirectLimit) {
		return &appErrors.UpstreamError{Kind: appErrors.UpstreamRedirectLimit, URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &appErrors.UpstreamError{Kind: appErrors.UpstreamTimeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &appErrors.UpstreamError{Kind: appErrors.UpstreamTimeout, URL: url, Err: err}
	}
	return &appErrors.UpstreamError{Kind: appErrors.UpstreamRequest, URL: url, Err: err}
}

// retryable reports whether a failure is transient. Timeouts and server-side
// failures retry; everything else is permanent.
func (c *Client) retryable(err *appErrors.UpstreamError) bool {
	switch err.Kind {
	case appErrors.UpstreamTimeout:
		return true
	case appErrors.UpstreamRedirectLimit:
		return false
	default:
		if err.StatusCode == 0 {
			// Pure transport failure (connection refused, reset): transient
			return true
		}
		return err.StatusCode >= 500 || err.StatusCode == http.StatusTooManyRequests
	}
}

// withJitter spreads retries out by up to 10% of the delay.
func (c *Client) withJitter(delay time.Duration) time.Duration {
	jitter := time.Duration(c.jitter() * 0.1 * float64(delay))
	return delay + jitter
}
