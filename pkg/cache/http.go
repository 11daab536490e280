package cache

import (
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTTL bounds how long a cached page is served without
	// revalidation. Bibliographic libraries change slowly; five minutes
	// keeps repeated extraction runs cheap without hiding edits for long.
	DefaultTTL = 5 * time.Minute

	// VersionHeader carries the library version a response was generated at.
	VersionHeader = "Last-Modified-Version"

	// ConditionalHeader asks the source to answer 304 when the library
	// has not changed since the given version.
	ConditionalHeader = "If-Modified-Since-Version"
)

// NewEntry builds a cache entry from a response body and headers.
func NewEntry(statusCode int, headers http.Header, body []byte) *Entry {
	now := time.Now()

	entry := &Entry{
		Data:       body,
		StatusCode: statusCode,
		CachedAt:   now,
		Expires:    now.Add(DefaultTTL),
	}

	if v := headers.Get(VersionHeader); v != "" {
		if version, err := strconv.Atoi(v); err == nil {
			entry.Version = version
		}
	}

	return entry
}

// ShouldMakeConditionalRequest reports whether the entry carries a library
// version usable for revalidation.
func ShouldMakeConditionalRequest(entry *Entry) bool {
	return entry != nil && entry.Version > 0
}

// AddConditionalHeaders adds If-Modified-Since-Version to the request when
// the cache entry supports revalidation.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	if entry.Version > 0 {
		req.Header.Set(ConditionalHeader, strconv.Itoa(entry.Version))
	}
}
