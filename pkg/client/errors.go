package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is returned when the context is cancelled during a request
	// or a backoff wait.
	ErrCancelled = errors.New("request cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassRateLimit represents HTTP 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transient network errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassAuth represents 401/403 credential errors.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents the remaining 4xx errors (malformed
	// request, not found).
	ErrorClassClient ErrorClass = "client"
)

// Retryable reports whether errors of this class may be retried with backoff.
// Auth and client errors are surfaced immediately: re-sending a request the
// server has already rejected only burns the rate budget.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorClassRateLimit, ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// Classifier maps an HTTP status (or transport error) to an ErrorClass.
// status is 0 when the request failed before a response arrived.
//
// The mapping is a policy, not a fact: some deployments want 404 retried
// against eventually-consistent search indexes. Swap the classifier on the
// client Config for that.
type Classifier func(status int, err error) ErrorClass

// DefaultClassifier is the classification used unless overridden.
// 429 is rate_limit, 5xx is server, transport errors are network; 401/403
// are auth and every other 4xx (404 included) is client.
func DefaultClassifier(status int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status == 401 || status == 403:
		return ErrorClassAuth
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// APIError represents a classified failure from an external source.
type APIError struct {
	StatusCode  int
	ErrorClass  ErrorClass
	Message     string
	RetryAfter  time.Duration // server wait hint from Retry-After/Backoff, if any
	Remediation string        // operator hint for non-retryable failures
	Err         error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Remediation != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Remediation)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// remediationFor returns operator guidance for fatal error classes.
func remediationFor(class ErrorClass, status int) string {
	switch {
	case class == ErrorClassAuth:
		return "check the API key and its library permissions, or regenerate the key"
	case status == 404:
		return "verify the library/site ID and endpoint path"
	case class == ErrorClassClient:
		return "inspect the request parameters; the server rejected them"
	default:
		return ""
	}
}
