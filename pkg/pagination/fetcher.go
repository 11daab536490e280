package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Item is one record from a source, schema owned by the source and passed
// through unmodified.
type Item map[string]any

// Style selects how the cursor advances between pages.
type Style string

const (
	// StyleOffset advances the cursor by page size (start=0, 100, 200, ...).
	StyleOffset Style = "offset"

	// StylePage increments a page number (page=1, 2, 3, ...).
	StylePage Style = "page"
)

// Source describes one paginated endpoint.
type Source struct {
	// Endpoint is the request path driven through the page fetcher.
	Endpoint string

	// PageSize is the number of items requested per page. Sources cap it
	// (100 for the bibliographic API, 50 for the collection API).
	PageSize int

	// Style is the pagination style of the source.
	Style Style
}

// PageFetcher fetches a single page. Implementations own retry and rate
// limiting; the fetcher never reinterprets their errors.
type PageFetcher interface {
	FetchPage(ctx context.Context, endpoint string, cursor, pageSize int) ([]Item, error)
}

// Progress reports running fetch totals after each successful page.
// Cursor is the next cursor to be requested; persisting it gives callers a
// resume checkpoint.
type Progress struct {
	Pages  int
	Items  int
	Cursor int
}

// Config holds fetcher configuration.
type Config struct {
	// MaxPages caps total page requests. 0 means unbounded: termination
	// normally comes from the source's empty page.
	MaxPages int

	// MaxItems caps accumulated items. 0 means unbounded.
	MaxItems int

	// StartCursor resumes a fetch from a persisted cursor. Zero starts
	// from the beginning (offset 0 or page 1 depending on style).
	StartCursor int

	// Observer, when set, receives progress after every successful page.
	Observer func(Progress)
}

// DefaultConfig returns an unbounded fetch starting at the beginning.
func DefaultConfig() Config {
	return Config{}
}

// ErrLimitExceeded is returned when a configured page or item cap is hit
// before the source signals exhaustion.
var ErrLimitExceeded = errors.New("fetch limit exceeded before source exhaustion")

// Result is a completed fetch: every item the source held at fetch start,
// each exactly once, in page order.
type Result struct {
	Items []Item
	Pages int
}

// FetchError is a terminal fetch failure with partial progress attached.
// Whether the partial items are usable is the caller's decision; this layer
// defines no partial-commit semantics.
type FetchError struct {
	Pages int
	Items []Item
	Err   error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch aborted after %d pages (%d items accumulated): %v",
		e.Pages, len(e.Items), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher drives one source to exhaustion.
type Fetcher struct {
	fetcher PageFetcher
	source  Source
	config  Config
}

// NewFetcher creates a fetcher for one source.
func NewFetcher(fetcher PageFetcher, source Source, config Config) *Fetcher {
	return &Fetcher{
		fetcher: fetcher,
		source:  source,
		config:  config,
	}
}

// FetchAll requests pages sequentially until the source returns an empty
// page. Page N+1 is never requested before page N completes: the cursor
// depends on the prior response.
func (f *Fetcher) FetchAll(ctx context.Context) (*Result, error) {
	if f.source.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", f.source.PageSize)
	}
	if f.source.Style != StyleOffset && f.source.Style != StylePage {
		return nil, fmt.Errorf("unknown pagination style %q", f.source.Style)
	}

	start := time.Now()

	cursor := f.config.StartCursor
	if f.source.Style == StylePage && cursor < 1 {
		cursor = 1
	}

	var items []Item
	pages := 0

	for {
		if f.config.MaxPages > 0 && pages >= f.config.MaxPages {
			return nil, &FetchError{
				Pages: pages,
				Items: items,
				Err:   fmt.Errorf("%w: %d pages", ErrLimitExceeded, pages),
			}
		}

		batch, err := f.fetcher.FetchPage(ctx, f.source.Endpoint, cursor, f.source.PageSize)
		if err != nil {
			log.Warn().
				Err(err).
				Str("endpoint", f.source.Endpoint).
				Int("pages", pages).
				Int("items", len(items)).
				Msg("Fetch aborted")
			return nil, &FetchError{
				Pages: pages,
				Items: items,
				Err:   err,
			}
		}

		pages++

		// An empty page is the sole termination signal. A short non-empty
		// page is not: the final partial page is followed by one more
		// request that comes back empty.
		if len(batch) == 0 {
			break
		}

		items = append(items, batch...)

		switch f.source.Style {
		case StyleOffset:
			cursor += f.source.PageSize
		case StylePage:
			cursor++
		}

		log.Info().
			Str("endpoint", f.source.Endpoint).
			Int("pages", pages).
			Int("items", len(items)).
			Msg("Fetch progress")

		if f.config.Observer != nil {
			f.config.Observer(Progress{
				Pages:  pages,
				Items:  len(items),
				Cursor: cursor,
			})
		}

		if f.config.MaxItems > 0 && len(items) >= f.config.MaxItems {
			return nil, &FetchError{
				Pages: pages,
				Items: items,
				Err:   fmt.Errorf("%w: %d items", ErrLimitExceeded, len(items)),
			}
		}
	}

	log.Info().
		Str("endpoint", f.source.Endpoint).
		Int("pages", pages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return &Result{
		Items: items,
		Pages: pages,
	}, nil
}
