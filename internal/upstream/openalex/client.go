package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/upstream"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultSort orders results by citation count, most cited first, so the
	// highest-impact works land before any per-domain cap cuts a task short.
	DefaultSort = "cited_by_count:desc"

	// MaxPerPage is the page size ceiling imposed by the OpenAlex API.
	MaxPerPage = 200

	// maxResponseBytes bounds how much of a response body is read. Works
	// pages run to a few megabytes with abstracts included.
	maxResponseBytes = 50 << 20
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Sort is the sort order requested from the works endpoint.
	// Defaults to cited_by_count:desc.
	Sort string

	// PerPage is the page size requested from the works endpoint.
	// Defaults to 200, which is also the OpenAlex maximum.
	PerPage int

	// Timeout bounds each individual request attempt.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 1 req/sec, shared across all fetch workers.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 1.
	BurstSize int

	// MaxAttempts is the total number of attempts per request.
	// Defaults to 6.
	MaxAttempts int

	// RetryDelay is the base backoff delay between attempts.
	// Defaults to 1 second.
	RetryDelay time.Duration

	// OnRetry, if set, is called before every retry with the reason for it.
	OnRetry func(reason string)
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Sort == "" {
		c.Sort = DefaultSort
	}
	if c.PerPage <= 0 || c.PerPage > MaxPerPage {
		c.PerPage = MaxPerPage
	}
}

// WorksQuery describes one page request against the works endpoint.
type WorksQuery struct {
	// Search is the free-text search term.
	Search string

	// Years bounds publication dates to the inclusive year range.
	Years domain.YearRange

	// Cursor is the opaque pagination cursor carried over from the previous
	// page's response. Empty selects the first page.
	Cursor string
}

// Page is one fetched page of works together with its continuation cursor.
type Page struct {
	// Works are the raw items of this page.
	Works []Work

	// NextCursor continues the sequence; empty means the sequence is
	// exhausted.
	NextCursor string

	// Count is the total number of matching works reported by the API.
	Count int
}

// Client fetches cursor-paginated pages of works from OpenAlex.
// It is safe for concurrent use; all requests share one rate limiter.
type Client struct {
	config     Config
	httpClient *upstream.HTTPClient
}

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		Timeout:     cfg.Timeout,
		RateLimit:   cfg.RateLimit,
		BurstSize:   cfg.BurstSize,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
		UserAgent:   cfg.UserAgent,
		OnRetry:     cfg.OnRetry,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ListWorks fetches a single page of works matching the query. An empty
// q.Cursor selects the first page; the caller continues the sequence by
// passing back the returned page's NextCursor until it comes back empty.
//
// Rate limiting, retries on 429 and transient failures, and the per-attempt
// timeout are handled by the underlying HTTP client. A response body that
// does not decode as the expected structure yields an empty page rather
// than an error, so one bad payload cannot take down a whole task.
func (c *Client) ListWorks(ctx context.Context, q WorksQuery) (*Page, error) {
	listURL, err := c.buildWorksURL(q)
	if err != nil {
		return nil, fmt.Errorf("building works URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			"OpenAlex",
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	var listResp ListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&listResp); err != nil {
		return &Page{}, nil
	}

	return &Page{
		Works:      listResp.Results,
		NextCursor: listResp.Meta.NextCursor,
		Count:      listResp.Meta.Count,
	}, nil
}

// buildWorksURL constructs the works API URL with query parameters.
func (c *Client) buildWorksURL(q WorksQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"

	query := url.Values{}

	if q.Search != "" {
		query.Set("search", q.Search)
	}

	// Publication-date filter spanning the inclusive year range
	if q.Years.From > 0 && q.Years.To > 0 {
		query.Set("filter", fmt.Sprintf(
			"from_publication_date:%d-01-01,to_publication_date:%d-12-31",
			q.Years.From, q.Years.To,
		))
	}

	query.Set("per_page", strconv.Itoa(c.config.PerPage))

	cursor := q.Cursor
	if cursor == "" {
		cursor = domain.CursorStart
	}
	query.Set("cursor", cursor)

	query.Set("sort", c.config.Sort)

	// Add mailto for polite pool
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}
