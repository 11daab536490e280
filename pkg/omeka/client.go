// Package omeka implements the digital-collection source: page-number item
// pagination and item publishing.
package omeka

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
	// MaxPageSize is the documented per_page ceiling.
	MaxPageSize = 50

	// KeyHeader carries the API key on write requests. Reads send the key
	// as a query parameter.
	KeyHeader = "X-Omeka-Key"

	// ItemsEndpoint is the items resource under the site's API root.
	ItemsEndpoint = "/items"
)

// ElementText is one value of a metadata element. HTML marks the text as
// markup rather than plain text.
type ElementText struct {
	Text string `json:"text"`
	HTML bool   `json:"html"`
}

// Elements maps a metadata element name to its values. The schema is owned
// by the collection site and passed through unmodified.
type Elements map[string][]ElementText

// Config holds the source configuration.
type Config struct {
	// BaseURL is the site's API root (e.g., "https://example.org/api").
	BaseURL string

	// SiteID identifies the site for cache keys and provenance.
	SiteID string

	// APIKey is the site credential. Publishing requires it.
	APIKey string

	// Limiter is the shared per-credential admission gate. Required.
	Limiter *ratelimit.Limiter

	// Cache is the optional response cache.
	Cache *cache.Manager

	// Retry overrides the backoff policy.
	Retry client.RetryConfig
}

// Client is a digital-collection source client.
type Client struct {
	http   *client.Client
	siteID string
}

// New creates a source client for one collection site.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	ccfg := client.DefaultConfig(cfg.BaseURL, cfg.SiteID, cfg.Limiter)
	ccfg.APIKey = cfg.APIKey
	ccfg.KeyHeader = KeyHeader
	ccfg.KeyQueryParam = "key"
	ccfg.Cache = cfg.Cache
	if cfg.Retry.MaxAttempts > 0 {
		ccfg.Retry = cfg.Retry
	}

	httpClient, err := client.New(ccfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:   httpClient,
		siteID: cfg.SiteID,
	}, nil
}

// FetchPage implements pagination.PageFetcher with page-number cursors.
func (c *Client) FetchPage(ctx context.Context, endpoint string, cursor, pageSize int) ([]pagination.Item, error) {
	if pageSize > MaxPageSize {
		return nil, fmt.Errorf("page size %d exceeds source maximum %d", pageSize, MaxPageSize)
	}

	query := url.Values{
		"page":     []string{strconv.Itoa(cursor)},
		"per_page": []string{strconv.Itoa(pageSize)},
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

// Items fetches every item on the site.
func (c *Client) Items(ctx context.Context, cfg pagination.Config) (*pagination.Result, error) {
	fetcher := pagination.NewFetcher(c, pagination.Source{
		Endpoint: ItemsEndpoint,
		PageSize: MaxPageSize,
		Style:    pagination.StylePage,
	}, cfg)

	return fetcher.FetchAll(ctx)
}

// AddItem publishes a new item whose metadata is the given element mapping.
// Returns the created item as the site reports it.
func (c *Client) AddItem(ctx context.Context, elements Elements) (pagination.Item, error) {
	body, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("marshal item elements: %w", err)
	}

	resp, err := c.http.Post(ctx, ItemsEndpoint, nil, body, "application/json")
	if err != nil {
		return nil, err
	}

	var created pagination.Item
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("parse created item: %w", err)
	}

	return created, nil
}
