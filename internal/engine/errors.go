package engine

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("engine not started")

	// ErrStopped is returned by operations called after Stop.
	ErrStopped = errors.New("engine stopped")
)
