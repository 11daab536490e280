// Package testutil provides testing utilities for the harvest clients.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a scripted mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSource is a configurable paginated-API server for testing. Its
// default handler understands both pagination styles: start/limit offsets
// and page/per_page numbering.
type MockSource struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	items    []map[string]any
	failures map[int]MockResponse
	version  int

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockSource creates a new mock source server.
func NewMockSource() *MockSource {
	mock := &MockSource{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failures: make(map[int]MockResponse),
		version:  1,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		count := mock.RequestCount
		mock.LastRequestHeader = r.Header.Clone()

		if r.Header.Get("If-Modified-Since-Version") != "" {
			mock.ConditionalCount++
		}

		failure, failNow := mock.failures[count]
		mock.mu.Unlock()

		if failNow {
			writeResponse(w, failure)
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.paginatedHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSource) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSource) Close() {
	m.server.Close()
}

// Reset clears tracking counters and scripted failures.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.failures = make(map[int]MockResponse)
}

// SetItems fills the source with n generated items.
func (m *MockSource) SetItems(n int) {
	m.SetItemList(GenerateItems(n))
}

// SetItemList fills the source with explicit items.
func (m *MockSource) SetItemList(items []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// FailRequest scripts the nth request (1-based, counted across all paths)
// to return the given response instead of a page.
func (m *MockSource) FailRequest(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = resp
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSource) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockSource) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSource) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests received.
func (m *MockSource) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// paginatedHandler slices the configured items according to the request's
// pagination parameters. Requests past the end get an empty array, which is
// how both real sources signal exhaustion.
func (m *MockSource) paginatedHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	items := m.items
	version := m.version
	m.mu.RUnlock()

	q := r.URL.Query()

	var offset, size int
	if q.Get("start") != "" || q.Get("limit") != "" {
		offset, _ = strconv.Atoi(q.Get("start"))
		size, _ = strconv.Atoi(q.Get("limit"))
	} else {
		page, _ := strconv.Atoi(q.Get("page"))
		if page < 1 {
			page = 1
		}
		size, _ = strconv.Atoi(q.Get("per_page"))
		offset = (page - 1) * size
	}
	if size <= 0 {
		size = 25
	}

	end := offset + size
	if offset > len(items) {
		offset = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	batch := items[offset:end]
	if batch == nil {
		batch = []map[string]any{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Total-Results", strconv.Itoa(len(items)))
	w.Header().Set("Last-Modified-Version", strconv.Itoa(version))
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(batch)
}

// writeResponse emits a scripted response.
func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// GenerateItems builds n source-shaped items with keys, titles, and tags.
// Every third item is left untagged so tag statistics have something to count.
func GenerateItems(n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		data := map[string]any{
			"title":    fmt.Sprintf("Record %04d", i),
			"itemType": "newspaperArticle",
		}
		if i%3 != 0 {
			data["tags"] = []any{
				map[string]any{"tag": fmt.Sprintf("Subject %d", i%5)},
			}
		}
		items = append(items, map[string]any{
			"key":  fmt.Sprintf("ITEM%04d", i),
			"data": data,
		})
	}
	return items
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewAuthErrorResponse creates a 403 Forbidden response.
func NewAuthErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "Invalid API key"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
