package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	headers := http.Header{}
	headers.Set(VersionHeader, "1234")

	body := []byte(`[{"key": "ABCD1234"}]`)
	entry := NewEntry(http.StatusOK, headers, body)

	if string(entry.Data) != string(body) {
		t.Error("body not preserved")
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", entry.StatusCode)
	}
	if entry.Version != 1234 {
		t.Errorf("Version = %d, want 1234", entry.Version)
	}

	ttl := entry.TTL()
	if ttl < DefaultTTL-time.Second || ttl > DefaultTTL {
		t.Errorf("TTL = %v, want about %v", ttl, DefaultTTL)
	}
}

func TestNewEntryVersionHandling(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    int
	}{
		{"no header", "", 0},
		{"valid version", "77", 77},
		{"unparseable version", "latest", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.version != "" {
				headers.Set(VersionHeader, tt.version)
			}
			entry := NewEntry(http.StatusOK, headers, nil)
			if entry.Version != tt.want {
				t.Errorf("Version = %d, want %d", entry.Version, tt.want)
			}
		})
	}
}

func TestShouldMakeConditionalRequest(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"nil entry", nil, false},
		{"no version", &Entry{}, false},
		{"with version", &Entry{Version: 12}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldMakeConditionalRequest(tt.entry); got != tt.want {
				t.Errorf("ShouldMakeConditionalRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items", nil)

	AddConditionalHeaders(req, &Entry{Version: 1234})
	if got := req.Header.Get(ConditionalHeader); got != "1234" {
		t.Errorf("%s = %q, want 1234", ConditionalHeader, got)
	}
}

func TestAddConditionalHeadersNoVersion(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items", nil)

	AddConditionalHeaders(req, &Entry{})
	if got := req.Header.Get(ConditionalHeader); got != "" {
		t.Errorf("unexpected conditional header %q", got)
	}

	AddConditionalHeaders(nil, &Entry{Version: 5})
	AddConditionalHeaders(req, nil)
}
