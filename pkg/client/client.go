// Package client provides the core Formsite HTTP client with bearer
// authentication, outcome classification, and error handling.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Formsite API operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formsite_requests_total",
		Help: "Total Formsite API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "formsite_request_duration_seconds",
		Help:    "Formsite API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formsite_errors_total",
		Help: "Total Formsite API errors by kind",
	}, []string{"kind"})
)

// Client is the Formsite API client. It performs single HTTP attempts;
// retry policy lives with the callers (the fetch controller retries
// rate-limit and connection failures, the downloader re-enqueues tasks).
type Client struct {
	httpClient *http.Client
	config     Config
	baseURL    string
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Token is the Formsite API bearer token (REQUIRED).
	Token string

	// Server is the Formsite server name, e.g. "fs1" for fs1.formsite.com.
	Server string

	// Directory is the Formsite user directory.
	Directory string

	// BaseURL overrides the URL derived from Server and Directory.
	// Intended for tests and proxies.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout applies per HTTP call.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token, server, directory string) Config {
	return Config{
		Token:     token,
		Server:    server,
		Directory: directory,
		UserAgent: "formsite-export/1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new Formsite API client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Server == "" || cfg.Directory == "" {
			return nil, fmt.Errorf("server and directory are required")
		}
		baseURL = fmt.Sprintf("https://%s.formsite.com/api/v2/%s", cfg.Server, cfg.Directory)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "formsite-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:  cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs a single HTTP request with authorization headers set.
// Network-level failures are returned as *APIError with KindNetwork;
// HTTP status handling is left to CheckStatus.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("Authorization", "bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Formsite request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		apiErrorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			Kind:    KindNetwork,
			Message: "connection failure",
			Err:     err,
		}
	}

	apiRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return resp, nil
}

// Get performs a GET request against an API path relative to the base URL.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// CheckStatus classifies a non-200 HTTP response into a typed *APIError.
// Returns nil for 200 OK. The response body is consumed on error.
func (c *Client) CheckStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	kind := ClassifyStatus(resp.StatusCode)
	apiErrorsTotal.WithLabelValues(string(kind)).Inc()

	// Error payloads are small JSON documents; keep a snippet for context.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()

	message := strings.TrimSpace(string(snippet))
	if message == "" {
		message = resp.Status
	}

	c.logger.Warn().
		Int("status_code", resp.StatusCode).
		Str("kind", string(kind)).
		Msg("Formsite API error response")

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Message:    message,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
