package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// Retry reasons reported through the OnRetry hook.
const (
	RetryReasonRateLimited = "rate_limited"
	RetryReasonServerError = "server_error"
	RetryReasonNetwork     = "network"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout bounds each individual request attempt.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxAttempts is the total number of attempts per request, including the
	// first one.
	MaxAttempts int

	// RetryDelay is the base backoff delay. The delay doubles with every
	// failed attempt.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// OnRetry, if set, is called before every retry with the reason for it.
	OnRetry func(reason string)
}

// HTTPClient wraps http.Client with rate limiting and retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client applies rate limiting before each request attempt and
// automatically retries on 429 (Too Many Requests), 5xx server errors, and
// network failures, including per-attempt timeouts.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	// Apply defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 6
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ArticleRecommendationCrawler/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request with rate limiting and retries.
// It waits for the rate limiter before each request attempt, sets the
// User-Agent header, retries on 429 (honoring Retry-After as seconds or an
// HTTP date) and on 5xx and network errors with exponential backoff.
// When all attempts are used up the returned error wraps
// domain.ErrRateLimited or domain.ErrServiceUnavailable so callers can tell
// the two apart.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	// Set default headers
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// The parent context ending is final; a per-attempt timeout is not.
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt+1 < c.config.MaxAttempts {
				c.noteRetry(RetryReasonNetwork)
				if err := c.waitForRetry(req.Context(), c.backoffDelay(attempt)); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		// Check if we should retry based on status code
		if c.shouldRetry(resp.StatusCode) {
			rateLimited := resp.StatusCode == http.StatusTooManyRequests
			retryDelay := c.backoffDelay(attempt)
			if rateLimited {
				retryDelay = c.retryAfterDelay(resp, retryDelay)
			}

			// Close the response body to free resources before retry
			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			if attempt+1 < c.config.MaxAttempts {
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				if rateLimited {
					c.noteRetry(RetryReasonRateLimited)
				} else {
					c.noteRetry(RetryReasonServerError)
				}
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}

			// All attempts used up
			if rateLimited {
				return nil, fmt.Errorf("gave up after %d attempts, last status 429: %w",
					c.config.MaxAttempts, domain.ErrRateLimited)
			}
			return nil, fmt.Errorf("gave up after %d attempts, last status %d: %w",
				c.config.MaxAttempts, resp.StatusCode, domain.ErrServiceUnavailable)
		}

		// Success or non-retryable error
		return resp, nil
	}

	// Should not reach here, but handle edge case
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no response received: %w", domain.ErrServiceUnavailable)
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	// Retry on 429 Too Many Requests
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	// Retry on 5xx server errors
	return statusCode >= 500 && statusCode < 600
}

// backoffDelay returns the exponential backoff delay for the given attempt
// number: RetryDelay, 2*RetryDelay, 4*RetryDelay, and so on.
func (c *HTTPClient) backoffDelay(attempt int) time.Duration {
	return c.config.RetryDelay << uint(attempt)
}

// retryAfterDelay determines how long to wait after a 429 response.
// It respects the Retry-After header, parsed as seconds or as an HTTP date,
// and falls back to the supplied backoff delay otherwise.
func (c *HTTPClient) retryAfterDelay(resp *http.Response, fallback time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return fallback
	}

	// Try to parse as seconds
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return fallback
	}

	// Try to parse as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return fallback
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// noteRetry reports a retry through the configured hook.
func (c *HTTPClient) noteRetry(reason string) {
	if c.config.OnRetry != nil {
		c.config.OnRetry(reason)
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
