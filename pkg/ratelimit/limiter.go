// Package ratelimit implements per-credential request admission.
//
// Both harvest sources throttle by API key: Zotero-style libraries allow
// 5 requests per second unauthenticated and 10 per key, and signal overload
// with Backoff / Retry-After headers. All fetches sharing a credential must
// go through a single Limiter so their combined rate stays inside the
// budget; the Limiter is an explicit object handed to each client, never a
// process-wide singleton.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Documented request-per-second ceilings per credential.
const (
	// RequestsPerSecondAnonymous applies to keyless access.
	RequestsPerSecondAnonymous = 5

	// RequestsPerSecondAuthenticated applies per API key.
	RequestsPerSecondAuthenticated = 10
)

// Prometheus metrics for request admission.
var (
	admissionWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for rate limit admission",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	serverPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_rate_limit_server_pauses_total",
		Help: "Total number of server-directed backoff pauses honored",
	})
)

// Limiter is a token-bucket admission gate for one credential.
// Safe for concurrent use by any number of fetches.
type Limiter struct {
	mu          sync.Mutex
	rate        float64 // tokens per second
	burst       float64
	tokens      float64
	last        time.Time
	pausedUntil time.Time

	logger zerolog.Logger
	now    func() time.Time
}

// New creates a limiter admitting requestsPerSecond requests.
func New(requestsPerSecond int, logger zerolog.Logger) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = RequestsPerSecondAnonymous
	}
	return &Limiter{
		rate:   float64(requestsPerSecond),
		burst:  float64(requestsPerSecond),
		tokens: float64(requestsPerSecond),
		logger: logger,
		now:    time.Now,
	}
}

// ForCredential creates a limiter with the documented ceiling for the
// credential type.
func ForCredential(authenticated bool, logger zerolog.Logger) *Limiter {
	if authenticated {
		return New(RequestsPerSecondAuthenticated, logger)
	}
	return New(RequestsPerSecondAnonymous, logger)
}

// Wait blocks until a request may be sent or ctx is done.
// Returns ctx.Err() on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.now()
	for {
		delay := l.reserve()
		if delay <= 0 {
			admissionWaitSeconds.Observe(l.now().Sub(start).Seconds())
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// reserve refills the bucket and either consumes a token (returning 0) or
// returns how long the caller should wait before trying again.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Server-directed pause dominates the bucket.
	if now.Before(l.pausedUntil) {
		return l.pausedUntil.Sub(now)
	}

	if l.last.IsZero() {
		l.last = now
	}
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	if l.tokens >= 1 {
		l.tokens--
		return 0
	}

	return time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
}

// Pause suspends admission for d. Used when the server asks for backoff;
// all fetches sharing this credential observe the pause.
func (l *Limiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(d)
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
		serverPausesTotal.Inc()
		l.logger.Warn().
			Dur("pause", d).
			Msg("Server requested backoff - pausing request admission")
	}
}

// UpdateFromHeaders applies Backoff / Retry-After pause hints from a
// response. Missing headers are not an error.
func (l *Limiter) UpdateFromHeaders(headers http.Header) {
	for _, name := range []string{"Backoff", "Retry-After"} {
		if v := headers.Get(name); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				l.Pause(time.Duration(secs) * time.Second)
			}
		}
	}
}
