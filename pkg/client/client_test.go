package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bluemountains/harvest/internal/testutil"
	"github.com/bluemountains/harvest/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// fastRetry keeps test retries instant.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(baseURL, "test-source", ratelimit.New(1000, zerolog.Nop()))
	cfg.Retry = fastRetry()
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Limiter: ratelimit.New(1, zerolog.Nop())}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := New(Config{BaseURL: "http://example.org"}); err == nil {
		t.Error("expected error for missing limiter")
	}
}

func TestGetSuccess(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()
	mock.SetResponse("/ping", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"status":"ok"}`,
	})

	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.APIKey = "secret"
		cfg.KeyHeader = "Zotero-API-Key"
	})

	resp, err := c.Get(context.Background(), "/ping", nil)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"status":"ok"}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if got := mock.LastRequestHeader.Get("Zotero-API-Key"); got != "secret" {
		t.Errorf("key header = %q, want secret", got)
	}
	if ua := mock.LastRequestHeader.Get("User-Agent"); !strings.Contains(ua, "harvest") {
		t.Errorf("User-Agent = %q, want tool identity", ua)
	}
}

func TestKeyQueryParamPlacement(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()

	var gotKey string
	mock.SetHandler("/items", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	})

	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.APIKey = "sitekey"
		cfg.KeyQueryParam = "key"
	})

	if _, err := c.Get(context.Background(), "/items", url.Values{"page": []string{"1"}}); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if gotKey != "sitekey" {
		t.Errorf("key query param = %q, want sitekey", gotKey)
	}
}

func TestKeyPlacementSplitsByMethod(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()

	type seen struct {
		query  string
		header string
	}
	var byMethod = map[string]seen{}
	mock.SetHandler("/items", func(w http.ResponseWriter, r *http.Request) {
		byMethod[r.Method] = seen{
			query:  r.URL.Query().Get("key"),
			header: r.Header.Get("X-Site-Key"),
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	})

	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.APIKey = "sitekey"
		cfg.KeyQueryParam = "key"
		cfg.KeyHeader = "X-Site-Key"
	})

	if _, err := c.Get(context.Background(), "/items", nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, err := c.Post(context.Background(), "/items", nil, []byte(`{}`), "application/json"); err != nil {
		t.Fatalf("Post() error: %v", err)
	}

	read := byMethod[http.MethodGet]
	if read.query != "sitekey" || read.header != "" {
		t.Errorf("read placement = query %q header %q, want query only", read.query, read.header)
	}
	write := byMethod[http.MethodPost]
	if write.header != "sitekey" || write.query != "" {
		t.Errorf("write placement = query %q header %q, want header only", write.query, write.header)
	}
}

func TestFatalErrorSingleAttempt(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewAuthErrorResponse())

	c := newTestClient(t, mock.URL(), nil)

	_, err := c.Get(context.Background(), "/items", nil)
	if err == nil {
		t.Fatal("expected error for 403")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.ErrorClass != ErrorClassAuth {
		t.Errorf("ErrorClass = %q, want auth", apiErr.ErrorClass)
	}
	if apiErr.Remediation == "" {
		t.Error("fatal error must carry remediation text")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (fatal errors are not retried)", mock.GetRequestCount())
	}
}

func TestRateLimitExhaustsRetries(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewRateLimitResponse())

	c := newTestClient(t, mock.URL(), nil)

	_, err := c.Get(context.Background(), "/items", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.GetRequestCount())
	}
}

func TestServerErrorRecovery(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()
	mock.SetItems(1)
	mock.FailRequest(1, testutil.NewServerErrorResponse())
	mock.FailRequest(2, testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL(), nil)

	resp, err := c.Get(context.Background(), "/items", url.Values{
		"start": []string{"0"},
		"limit": []string{"100"},
	})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200 after recovery", resp.StatusCode)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("requests = %d, want 3 (two failures then success)", mock.GetRequestCount())
	}
}

func TestCustomClassifier(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()
	mock.SetResponse("/search", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"not indexed yet"}`,
	})

	// Deployment policy: 404 from a lagging search index is retryable.
	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.Classify = func(status int, err error) ErrorClass {
			if status == http.StatusNotFound {
				return ErrorClassServer
			}
			return DefaultClassifier(status, err)
		}
	})

	_, err := c.Get(context.Background(), "/search", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted under custom policy, got %v", err)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.GetRequestCount())
	}
}

func TestIsFatal(t *testing.T) {
	fatal := &APIError{ErrorClass: ErrorClassAuth}
	if !IsFatal(fatal) {
		t.Error("auth error should be fatal")
	}

	exhausted := errors.Join(ErrRetryExhausted, &APIError{ErrorClass: ErrorClassRateLimit})
	if IsFatal(exhausted) {
		t.Error("exhaustion should not be fatal")
	}

	if IsFatal(ErrCancelled) {
		t.Error("cancellation should not be fatal")
	}
}

func TestRetryAfterHintCaptured(t *testing.T) {
	mock := testutil.NewMockSource()
	defer mock.Close()
	mock.SetResponse("/items", testutil.MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"rate limit exceeded"}`,
		Headers:    map[string]string{"Backoff": "7"},
	})

	// One attempt: the server-directed pause would otherwise stall retries
	// for the full seven seconds.
	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.Retry.MaxAttempts = 1
	})

	_, err := c.Get(context.Background(), "/items", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", apiErr.RetryAfter)
	}
}
