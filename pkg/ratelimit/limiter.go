package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for request throttling.
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit admits another request, then records it
	Wait()
	// Reset resets the limiter state
	Reset()
}

// SlidingWindow implements a sliding window rate limiter. One instance is
// shared by every in-flight fetch so the process respects a single upstream
// rate budget; all state updates are mutex-guarded.
type SlidingWindow struct {
	window      time.Duration
	maxRequests int
	smoothingAt float64
	requests    []time.Time
	mu          sync.Mutex

	// Injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewSlidingWindow creates a new sliding window rate limiter. Above the
// smoothing threshold (fraction of maxRequests in the window) each admitted
// request is followed by a window/maxRequests pacing delay to avoid bursty
// request clusters near the limit.
func NewSlidingWindow(maxRequests int, window time.Duration, smoothingThreshold float64) *SlidingWindow {
	return &SlidingWindow{
		window:      window,
		maxRequests: maxRequests,
		smoothingAt: smoothingThreshold,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Allow checks if a request can proceed and records it if so.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is admitted, computing the wait time from the
// oldest timestamp still inside the window and re-checking after waking.
func (sw *SlidingWindow) Wait() {
	for {
		sw.mu.Lock()
		now := sw.now()
		sw.cleanOldRequests(now)

		if len(sw.requests) < sw.maxRequests {
			sw.requests = append(sw.requests, now)
			utilization := float64(len(sw.requests)) / float64(sw.maxRequests)
			sw.mu.Unlock()

			if utilization > sw.smoothingAt {
				sw.sleep(sw.window / time.Duration(sw.maxRequests))
			}
			return
		}

		var timeToWait time.Duration
		if len(sw.requests) > 0 {
			oldest := sw.requests[0]
			timeToWait = sw.window - now.Sub(oldest)
		}
		sw.mu.Unlock()

		if timeToWait <= 0 {
			// Small sleep to prevent busy waiting
			timeToWait = 100 * time.Millisecond
		}
		sw.sleep(timeToWait)
	}
}

// Reset clears all recorded requests.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// InWindow returns the number of requests currently inside the window.
func (sw *SlidingWindow) InWindow() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.now())
	return len(sw.requests)
}

// cleanOldRequests removes requests outside the sliding window.
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.window)

	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
