package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hbomb79/Siphon/pkg/logger"
)

var log = logger.Get("RateLimit")

// UnknownClient is the shared bucket used for every request whose
// origin cannot be identified.
const UnknownClient = "unknown"

type (
	// Admission is the outcome of a single rate limit check.
	Admission struct {
		Allowed           bool
		Remaining         int
		RetryAfterSeconds int
		ResetTime         time.Time
	}

	bucketKey struct {
		client   string
		endpoint string
	}

	// Limiter is an in-memory sliding window limiter keyed by
	// (client, endpoint). State is lost when the process exits.
	Limiter struct {
		mu      sync.Mutex
		now     func() time.Time
		windows map[bucketKey][]time.Time
	}
)

// New constructs a Limiter that uses the wall clock.
func New() *Limiter { return NewWithClock(time.Now) }

// NewWithClock constructs a Limiter which reads the time from the provided
// function, allowing tests to move time forward deterministically.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{now: now, windows: make(map[bucketKey][]time.Time)}
}

// Check records an attempt by client against endpoint. Requests older than
// the trailing window are discarded first; if maxRequests remain, the attempt
// is denied and not recorded.
func (limiter *Limiter) Check(client, endpoint string, maxRequests, windowMinutes int) Admission {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	window := time.Duration(windowMinutes) * time.Minute
	key := bucketKey{client, endpoint}
	timestamps := prune(limiter.windows[key], now.Add(-window))

	if len(timestamps) >= maxRequests {
		limiter.windows[key] = timestamps
		log.Emit(logger.WARNING, "Rate limit exceeded for client %s on endpoint %s\n", client, endpoint)
		return Admission{
			Allowed:           false,
			Remaining:         0,
			RetryAfterSeconds: windowMinutes * 60,
			ResetTime:         now.Add(window),
		}
	}

	limiter.windows[key] = append(timestamps, now)
	return Admission{
		Allowed:   true,
		Remaining: maxRequests - len(timestamps) - 1,
		ResetTime: now.Add(window),
	}
}

// Sweep drops every bucket whose newest entry is older than maxWindow, so
// clients that went quiet do not stay in memory forever.
func (limiter *Limiter) Sweep(maxWindow time.Duration) int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	cutoff := limiter.now().Add(-maxWindow)
	removed := 0
	for key, timestamps := range limiter.windows {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(cutoff) {
			delete(limiter.windows, key)
			removed++
		}
	}

	return removed
}

// prune returns the suffix of timestamps newer than cutoff. Timestamps are
// appended in order so the slice is already sorted.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}

	return timestamps[i:]
}

// ClientID resolves the identity used to bucket a request: the first entry of
// X-Forwarded-For, else the peer host, else UnknownClient.
func ClientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return UnknownClient
}
