// Package pexels provides the HTTP client for the Pexels photo search API
// with quota observation, error classification and metrics.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/image-finder/pkg/logging"
	"github.com/Sternrassler/image-finder/pkg/quota"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Pexels client operations.
var (
	pexelsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pexels_requests_total",
		Help: "Total Pexels requests by HTTP status",
	}, []string{"status"})

	pexelsRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pexels_request_duration_seconds",
		Help:    "Pexels search request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	pexelsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pexels_errors_total",
		Help: "Total Pexels errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the Pexels API root.
	DefaultBaseURL = "https://api.pexels.com"

	// SearchPath is the photo search endpoint.
	SearchPath = "/v1/search"

	// DefaultPerPage is the page size the finder requests.
	DefaultPerPage = 12

	// MaxPerPage is the largest page size Pexels accepts.
	MaxPerPage = 80
)

// Client is the Pexels search client.
type Client struct {
	httpClient *http.Client
	quota      *quota.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent verbatim in the Authorization header.
	// An empty key is not rejected here; Pexels answers 401.
	APIKey string

	// BaseURL is the API root (scheme and host, no trailing path).
	BaseURL string

	// PerPage is the page size requested on every search (1..80).
	PerPage int

	// Timeout bounds a single request. Zero leaves the transport default.
	Timeout time.Duration

	// UserAgent header, optional.
	UserAgent string

	// Redis, when set, stores the quota reported on each response.
	Redis *redis.Client
}

// DefaultConfig returns the configuration used by the finder.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		BaseURL:   DefaultBaseURL,
		PerPage:   DefaultPerPage,
		Timeout:   30 * time.Second,
		UserAgent: "image-finder/0.1.0",
	}
}

// New creates a new Pexels client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	if cfg.PerPage < 1 || cfg.PerPage > MaxPerPage {
		return nil, fmt.Errorf("per_page must be between 1 and %d (got %d)", MaxPerPage, cfg.PerPage)
	}

	logger := logging.NewLogger("pexels-client")

	if cfg.APIKey == "" {
		logger.Warn().Msg("No API key configured, searches will be rejected")
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}

	if cfg.Redis != nil {
		c.quota = quota.NewTracker(cfg.Redis, logging.NewLogger("quota-tracker"))
	}

	return c, nil
}

// Search fetches one page of photos matching query.
// HTTP, transport and decoding failures are returned as *APIError.
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.config.PerPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+SearchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.decodeError(resp.StatusCode, "malformed search response", err)
	}
	if result.Photos == nil {
		return nil, c.decodeError(resp.StatusCode, "unexpected search response", ErrMissingPhotos)
	}

	c.logger.Debug().
		Str("query", query).
		Int("page", page).
		Int("photos", len(result.Photos)).
		Int("total_results", result.TotalResults).
		Msg("Search page decoded")

	return &result, nil
}

// Do sends req with the credential and common headers attached.
// Non-2xx responses are closed and returned as *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	startTime := time.Now()
	defer func() {
		pexelsRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("query", req.URL.Query().Get("query")).
		Str("page", req.URL.Query().Get("page")).
		Msg("Executing Pexels request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pexelsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		pexelsRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Str("error_class", string(ErrorClassNetwork)).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	pexelsRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if c.quota != nil {
		if err := c.quota.Record(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record quota from headers")
		}
	}

	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		pexelsErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Pexels request error")

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	return resp, nil
}

// Quota returns the last recorded quota, or nil when no Redis is configured.
func (c *Client) Quota(ctx context.Context) (*quota.State, error) {
	if c.quota == nil {
		return nil, nil
	}
	return c.quota.State(ctx)
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) decodeError(statusCode int, msg string, err error) error {
	pexelsErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	c.logger.Warn().Err(err).Int("status", statusCode).Msg("Failed to decode search response")
	return &APIError{
		StatusCode: statusCode,
		ErrorClass: ErrorClassDecode,
		Message:    msg,
		Err:        err,
	}
}
