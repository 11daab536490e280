// Package client provides the core harvest HTTP client with rate limiting,
// response caching, retry, and error classification.
//
// The client performs exactly one logical request per call: admission
// through the per-credential rate limiter, the network round trip, and
// classification of the outcome. Retry policy wraps the round trip with
// bounded exponential backoff; fatal classes (auth, malformed request) are
// surfaced immediately and never retried.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bluemountains/harvest/pkg/cache"
	"github.com/bluemountains/harvest/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for harvest client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_requests_total",
		Help: "Total source requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_request_duration_seconds",
		Help:    "Source request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_errors_total",
		Help: "Total source errors by class",
	}, []string{"class"})
)

// DefaultTimeout bounds a single request round trip.
const DefaultTimeout = 30 * time.Second

// Config holds the client configuration.
type Config struct {
	// BaseURL is the source API root (e.g., "https://api.zotero.org").
	BaseURL string

	// SourceID identifies the library/site for cache keys and logging.
	SourceID string

	// APIKey is the credential for this source. Optional for public access.
	APIKey string

	// KeyHeader, when set, sends APIKey in the named request header
	// (bibliographic API style).
	KeyHeader string

	// KeyQueryParam, when set, sends APIKey in the named query parameter
	// (collection API style). When both placements are configured, reads
	// use the query parameter and writes use the header.
	KeyQueryParam string

	// UserAgent identifies the tool to the source.
	UserAgent string

	// Limiter admits requests against the per-credential budget. Required.
	// Fetches sharing one credential must share one limiter.
	Limiter *ratelimit.Limiter

	// Cache is the optional Redis response cache for GET pages.
	Cache *cache.Manager

	// Timeout bounds a single request round trip.
	Timeout time.Duration

	// Retry is the backoff policy for retryable failures.
	Retry RetryConfig

	// Classify maps outcomes to error classes. Defaults to DefaultClassifier.
	Classify Classifier
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, sourceID string, limiter *ratelimit.Limiter) Config {
	return Config{
		BaseURL:   baseURL,
		SourceID:  sourceID,
		UserAgent: "bluemountains-harvest/" + Version,
		Limiter:   limiter,
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
		Classify:  DefaultClassifier,
	}
}

// Client is the harvest HTTP client for one source.
type Client struct {
	httpClient *http.Client
	config     Config
	classify   Classifier
	logger     zerolog.Logger
}

// Response is a fully-read source response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New creates a new source client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	classify := cfg.Classify
	if classify == nil {
		classify = DefaultClassifier
	}

	logger := log.With().
		Str("component", "harvest-client").
		Str("source", cfg.SourceID).
		Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:   cfg,
		classify: classify,
		logger:   logger,
	}, nil
}

// Get performs a GET request against endpoint with the given query
// parameters, going through cache, rate limiting, and retry.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, "")
}

// Post performs a POST request with the given body. The body is retained so
// retryable failures can resend it.
func (c *Client) Post(ctx context.Context, endpoint string, query url.Values, body []byte, contentType string) (*Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, query, body, contentType)
}

// do performs one classified request with retry.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body []byte, contentType string) (*Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Check cache for GET requests.
	var cachedEntry *cache.Entry
	cacheKey := cache.Key{
		Source:      c.config.SourceID,
		Endpoint:    endpoint,
		QueryParams: query,
	}
	if method == http.MethodGet && c.config.Cache != nil {
		entry, err := c.config.Cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		cachedEntry = entry
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing source request")

	var resp *Response

	retryErr := retryWithBackoff(ctx, c.config.Retry, func() error {
		// Admission: one shared budget per credential, cancellable.
		if err := c.config.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		req, err := c.buildRequest(ctx, method, endpoint, query, body, contentType)
		if err != nil {
			return &APIError{
				ErrorClass: ErrorClassClient,
				Message:    fmt.Sprintf("build request: %v", err),
			}
		}

		if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
		}

		httpResp, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			errClass := c.classify(0, reqErr)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			return &APIError{
				ErrorClass: errClass,
				Message:    "request failed",
				Err:        reqErr,
			}
		}
		defer httpResp.Body.Close()

		// Sources signal overload pauses in response headers; the pause
		// applies to every fetch sharing this credential.
		c.config.Limiter.UpdateFromHeaders(httpResp.Header)

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "read response body",
				Err:        err,
			}
		}

		if httpResp.StatusCode >= 400 {
			errClass := c.classify(httpResp.StatusCode, nil)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", httpResp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", httpResp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Source request error")

			apiErr := &APIError{
				StatusCode: httpResp.StatusCode,
				ErrorClass: errClass,
				Message:    httpResp.Status,
				RetryAfter: retryAfterHint(httpResp.Header),
			}
			if !errClass.Retryable() {
				apiErr.Remediation = remediationFor(errClass, httpResp.StatusCode)
			}
			return apiErr
		}

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", httpResp.StatusCode)).Inc()
		resp = &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header.Clone(),
			Body:       respBody,
		}
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	// 304 Not Modified: the cached body is still current.
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if err := c.config.Cache.Refresh(ctx, cacheKey, time.Now().Add(cache.DefaultTTL)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache TTL")
		}

		return &Response{
			StatusCode: http.StatusOK,
			Header:     resp.Header,
			Body:       cachedEntry.Data,
		}, nil
	}

	// Cache successful GET pages.
	if method == http.MethodGet && c.config.Cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.NewEntry(resp.StatusCode, resp.Header, resp.Body)
		if err := c.config.Cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// buildRequest assembles a fresh request for one attempt.
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, query url.Values, body []byte, contentType string) (*http.Request, error) {
	u := c.config.BaseURL + endpoint
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}

	// Credential placement differs per source: header for the
	// bibliographic API, "key" query parameter for the collection API.
	// A source configuring both splits by method: query parameter on
	// reads, header on writes.
	inQuery := c.config.KeyQueryParam != ""
	inHeader := c.config.KeyHeader != ""
	if inQuery && inHeader {
		inQuery = method == http.MethodGet
		inHeader = !inQuery
	}

	if c.config.APIKey != "" && inQuery {
		q.Set(c.config.KeyQueryParam, c.config.APIKey)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}

	if c.config.APIKey != "" && inHeader {
		req.Header.Set(c.config.KeyHeader, c.config.APIKey)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// retryAfterHint extracts the server's wait hint from Retry-After or
// Backoff headers. Zotero sends both on 429.
func retryAfterHint(headers http.Header) time.Duration {
	for _, name := range []string{"Retry-After", "Backoff"} {
		if v := headers.Get(name); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}

// IsFatal reports whether err is a non-retryable source failure (as opposed
// to exhausted retries or cancellation).
func IsFatal(err error) bool {
	if errors.Is(err, ErrRetryExhausted) || errors.Is(err, ErrCancelled) {
		return false
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.ErrorClass.Retryable()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
