package security

import (
	"log/slog"
	"sync"
	"time"
)

// RateLimiterConfig holds sliding-window throttle settings.
type RateLimiterConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// RateLimiter is a per-identifier sliding-window throttle. Each identifier
// keeps the timestamps of its admitted requests inside the trailing window;
// stale entries are pruned before every decision, so a window never exceeds
// MaxRequests after admission. Rejected requests are not recorded.
type RateLimiter struct {
	config RateLimiterConfig
	logger *slog.Logger

	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		config:  config,
		logger:  logger,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit decides whether a request from identifier may proceed. When it is
// rejected, retryAfter hints how long until the oldest retained timestamp
// leaves the window. Disabled mode always admits without bookkeeping.
func (rl *RateLimiter) Admit(identifier string) (bool, time.Duration) {
	if !rl.config.Enabled {
		return true, 0
	}

	now := rl.now()
	cutoff := now.Add(-rl.config.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := pruneWindow(rl.windows[identifier], cutoff)

	if len(window) >= rl.config.MaxRequests {
		rl.windows[identifier] = window
		retryAfter := window[0].Add(rl.config.Window).Sub(now)
		return false, retryAfter
	}

	rl.windows[identifier] = append(window, now)
	return true, 0
}

// Sweep drops identifiers whose windows are empty after pruning, bounding
// memory across long uptimes with many transient clients. Runs off the
// request path. Returns the number of identifiers removed.
func (rl *RateLimiter) Sweep() int {
	if !rl.config.Enabled {
		return 0
	}

	cutoff := rl.now().Add(-rl.config.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for identifier, window := range rl.windows {
		window = pruneWindow(window, cutoff)
		if len(window) == 0 {
			delete(rl.windows, identifier)
			removed++
			continue
		}
		rl.windows[identifier] = window
	}
	return removed
}

// pruneWindow drops timestamps at or before cutoff. Entries are appended in
// time order, so the retained suffix stays ordered.
func pruneWindow(window []time.Time, cutoff time.Time) []time.Time {
	keep := 0
	for keep < len(window) && !window[keep].After(cutoff) {
		keep++
	}
	if keep == 0 {
		return window
	}
	return append(window[:0:0], window[keep:]...)
}
