package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		err      error
		expected ErrorClass
	}{
		{
			name:     "429 is rate limit",
			status:   429,
			expected: ErrorClassRateLimit,
		},
		{
			name:     "500 is server",
			status:   500,
			expected: ErrorClassServer,
		},
		{
			name:     "503 is server",
			status:   503,
			expected: ErrorClassServer,
		},
		{
			name:     "401 is auth",
			status:   401,
			expected: ErrorClassAuth,
		},
		{
			name:     "403 is auth",
			status:   403,
			expected: ErrorClassAuth,
		},
		{
			name:     "404 is client",
			status:   404,
			expected: ErrorClassClient,
		},
		{
			name:     "400 is client",
			status:   400,
			expected: ErrorClassClient,
		},
		{
			name:     "transport error is network",
			status:   0,
			err:      errors.New("connection refused"),
			expected: ErrorClassNetwork,
		},
		{
			name:     "200 is unclassified",
			status:   200,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultClassifier(tt.status, tt.err)
			if got != tt.expected {
				t.Errorf("DefaultClassifier(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.expected)
			}
		})
	}
}

func TestErrorClassRetryable(t *testing.T) {
	tests := []struct {
		class     ErrorClass
		retryable bool
	}{
		{ErrorClassRateLimit, true},
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{ErrorClassAuth, false},
		{ErrorClassClient, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := tt.class.Retryable(); got != tt.retryable {
				t.Errorf("%q.Retryable() = %v, want %v", tt.class, got, tt.retryable)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		StatusCode:  403,
		ErrorClass:  ErrorClassAuth,
		Message:     "403 Forbidden",
		Remediation: "regenerate the key",
	}

	msg := err.Error()
	if !strings.Contains(msg, "403") {
		t.Errorf("Error() = %q, want status code included", msg)
	}
	if !strings.Contains(msg, "regenerate the key") {
		t.Errorf("Error() = %q, want remediation included", msg)
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := errors.New("underlying")
	err := &APIError{
		ErrorClass: ErrorClassNetwork,
		Message:    "request failed",
		Err:        inner,
	}

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	wrapped := fmt.Errorf("page 3: %w", err)
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("expected errors.As to find APIError through wrapping")
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", apiErr.ErrorClass)
	}
}

func TestRemediationFor(t *testing.T) {
	if got := remediationFor(ErrorClassAuth, 403); !strings.Contains(got, "key") {
		t.Errorf("auth remediation = %q, want API key guidance", got)
	}
	if got := remediationFor(ErrorClassClient, 404); !strings.Contains(got, "ID") {
		t.Errorf("404 remediation = %q, want identifier guidance", got)
	}
	if got := remediationFor(ErrorClassServer, 500); got != "" {
		t.Errorf("server remediation = %q, want empty", got)
	}
}
