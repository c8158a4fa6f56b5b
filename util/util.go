// Package util provides helpers for long running computations.
package util

import "time"

// SkipThrottler reports whether an event should be handled, skipping events that come within a duration of the last handled one.
// It is used to log the progress of loops without flooding the output.
type SkipThrottler struct {
	d    time.Duration
	last time.Time
	now  func() time.Time
}

// NewSkipThrottler returns a throttler that handles at most one event per d.
func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, last: time.Date(0, 0, 0, 0, 0, 0, 0, time.UTC), now: time.Now}
	return tt
}

// Ok reports whether the current event should be handled.
func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}

// Progress returns a progress function that calls f when the throttler allows, and always for the final step.
func (tt *SkipThrottler) Progress(f func(step, total int)) func(step, total int) {
	return func(step, total int) {
		if tt.Ok() || step == total {
			f(step, total)
		}
	}
}
