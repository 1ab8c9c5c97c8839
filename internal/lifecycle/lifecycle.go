// Package lifecycle owns the order state machine
//
//	pending -> preparing -> ready -> served
//
// and the per-order timers that drive the two automatic steps.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/roach88/comande/internal/model"
)

// Delays are measured from an order's creation time.
type Delays struct {
	Preparing time.Duration
	Ready     time.Duration
}

// DefaultDelays returns the reference delays: preparing after 2s, ready
// after 10s.
func DefaultDelays() Delays {
	return Delays{
		Preparing: 2 * time.Second,
		Ready:     10 * time.Second,
	}
}

// Validate checks that both delays are positive and ordered.
func (d Delays) Validate() error {
	if d.Preparing <= 0 {
		return fmt.Errorf("preparing delay must be positive, got %s", d.Preparing)
	}
	if d.Ready <= d.Preparing {
		return fmt.Errorf("ready delay %s must exceed preparing delay %s", d.Ready, d.Preparing)
	}
	return nil
}

// Advance moves o to status to, stamping provenance. Only the single next
// step is allowed; served is terminal.
func Advance(o *model.Order, to model.Status, by string, at time.Time) error {
	next, ok := o.Status.Next()
	if !ok || next != to {
		return model.NewTransitionError(o.ID, o.Status, to)
	}
	o.Status = to
	o.StatusUpdatedBy = by
	o.StatusUpdatedAt = at
	return nil
}

// Message is the user-facing text for an order entering its current
// status.
func Message(o model.Order) string {
	switch o.Status {
	case model.StatusPending:
		return fmt.Sprintf("Ordine #%d inviato per %s", o.ID, o.Table)
	case model.StatusPreparing:
		return fmt.Sprintf("Ordine #%d in preparazione", o.ID)
	case model.StatusReady:
		return fmt.Sprintf("Ordine #%d pronto!", o.ID)
	case model.StatusServed:
		return fmt.Sprintf("Ordine #%d servito", o.ID)
	default:
		return fmt.Sprintf("Ordine #%d: %s", o.ID, o.Status)
	}
}

// ObservedMessage is the text for orders absorbed from another device.
func ObservedMessage(n int) string {
	return fmt.Sprintf("%d nuovi ordini da altro dispositivo", n)
}
