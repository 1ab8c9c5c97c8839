// Package clock abstracts the time source used by timers and envelopes.
//
// Every suspension point in a device (the reconciliation tick, the two
// lifecycle timers per order, the notification expiry) goes through a
// Clock, so tests drive them deterministically with testutil.FakeClock.
package clock

import "time"

// Clock provides the current time and schedules callbacks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed.
	// Fake implementations may call f synchronously.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or was already stopped.
	Stop() bool
}

// Wall is the real-time Clock backed by package time.
type Wall struct{}

// Now returns time.Now().
func (Wall) Now() time.Time { return time.Now() }

// After wraps time.After.
func (Wall) After(d time.Duration) <-chan time.Time { return time.After(d) }

// AfterFunc wraps time.AfterFunc.
func (Wall) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
