// Package zotero implements the bibliographic-library source: offset-based
// item pagination, cheap total-count probes, and child attachment listing.
package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bluemountains/harvest/pkg/cache"
	"github.com/bluemountains/harvest/pkg/client"
	"github.com/bluemountains/harvest/pkg/pagination"
	"github.com/bluemountains/harvest/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.zotero.org"

	// MaxPageSize is the documented per-request item limit. The API
	// rejects larger limits and recommends 100 as optimal.
	MaxPageSize = 100

	// KeyHeader carries the API key.
	KeyHeader = "Zotero-API-Key"

	// TotalResultsHeader reports the library's total item count on any
	// items response, making a one-item probe a cheap count check.
	TotalResultsHeader = "Total-Results"
)

// Config holds the source configuration.
type Config struct {
	// BaseURL overrides the API root (for testing). Defaults to DefaultBaseURL.
	BaseURL string

	// GroupID is the group library identifier (public, appears in URLs).
	GroupID string

	// APIKey is the library credential. A read-only key suffices for
	// extraction and cannot damage the library if leaked.
	APIKey string

	// Limiter is the shared per-credential admission gate. Required.
	Limiter *ratelimit.Limiter

	// Cache is the optional response cache.
	Cache *cache.Manager

	// Retry overrides the backoff policy.
	Retry client.RetryConfig
}

// Client is a bibliographic-library source client.
type Client struct {
	http    *client.Client
	groupID string
}

// New creates a source client for one group library.
func New(cfg Config) (*Client, error) {
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	ccfg := client.DefaultConfig(baseURL, cfg.GroupID, cfg.Limiter)
	ccfg.APIKey = cfg.APIKey
	ccfg.KeyHeader = KeyHeader
	ccfg.Cache = cfg.Cache
	if cfg.Retry.MaxAttempts > 0 {
		ccfg.Retry = cfg.Retry
	}

	httpClient, err := client.New(ccfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    httpClient,
		groupID: cfg.GroupID,
	}, nil
}

// ItemsEndpoint is the paginated endpoint for the library's items.
func (c *Client) ItemsEndpoint() string {
	return "/groups/" + c.groupID + "/items"
}

// FetchPage implements pagination.PageFetcher with offset-style cursors.
func (c *Client) FetchPage(ctx context.Context, endpoint string, cursor, pageSize int) ([]pagination.Item, error) {
	if pageSize > MaxPageSize {
		return nil, fmt.Errorf("page size %d exceeds source maximum %d", pageSize, MaxPageSize)
	}

	query := url.Values{
		"start":  []string{strconv.Itoa(cursor)},
		"limit":  []string{strconv.Itoa(pageSize)},
		"format": []string{"json"},
	}

	resp, err := c.http.Get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	var items []pagination.Item
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("parse items page: %w", err)
	}

	return items, nil
}

// Items fetches every item in the library.
func (c *Client) Items(ctx context.Context, cfg pagination.Config) (*pagination.Result, error) {
	fetcher := pagination.NewFetcher(c, pagination.Source{
		Endpoint: c.ItemsEndpoint(),
		PageSize: MaxPageSize,
		Style:    pagination.StyleOffset,
	}, cfg)

	return fetcher.FetchAll(ctx)
}

// NumItems probes the library's total item count without paging through it.
func (c *Client) NumItems(ctx context.Context) (int, error) {
	query := url.Values{
		"limit":  []string{"1"},
		"format": []string{"json"},
	}

	resp, err := c.http.Get(ctx, c.ItemsEndpoint(), query)
	if err != nil {
		return 0, err
	}

	totalStr := resp.Header.Get(TotalResultsHeader)
	if totalStr == "" {
		return 0, fmt.Errorf("response missing %s header", TotalResultsHeader)
	}

	total, err := strconv.Atoi(totalStr)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", TotalResultsHeader, err)
	}

	return total, nil
}

// Children fetches the child items (attachments, notes) of one item.
func (c *Client) Children(ctx context.Context, itemKey string, cfg pagination.Config) (*pagination.Result, error) {
	fetcher := pagination.NewFetcher(c, pagination.Source{
		Endpoint: c.ItemsEndpoint() + "/" + itemKey + "/children",
		PageSize: MaxPageSize,
		Style:    pagination.StyleOffset,
	}, cfg)

	return fetcher.FetchAll(ctx)
}
