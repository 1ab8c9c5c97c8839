// Package reconcile merges a foreign sync envelope into a device's local
// state.
//
// The merge is a pure function of (local state, envelope). Orders are an
// additive union keyed by id: an id absent locally is appended, and no
// local order is ever dropped. The counter takes the maximum of both
// sides. Menu lists are replaced wholesale by the envelope's lists, since
// the newest envelope wins for scalar state.
//
// Two refinements keep the union monotone for ids both sides know:
//
//   - An incoming order from the same creating device replaces the local
//     copy only when its status is further along the lifecycle.
//   - An incoming order whose id matches a local order from a different
//     creating device is a collision. The local order is kept and the
//     collision is reported.
package reconcile

import (
	"slices"

	"github.com/roach88/comande/internal/model"
)

// SkipReason says why an envelope is not merged.
type SkipReason string

const (
	// Proceed is the zero reason: the envelope should be merged.
	Proceed SkipReason = ""

	// SkipAbsent means the shared store holds no usable envelope.
	SkipAbsent SkipReason = "absent"

	// SkipSelf means the envelope was published by this device.
	SkipSelf SkipReason = "self"

	// SkipStale means the envelope is not newer than the watermark.
	SkipStale SkipReason = "stale"
)

// Check applies the three guards that precede every merge.
func Check(env model.Envelope, ok bool, deviceID string, watermark int64) SkipReason {
	switch {
	case !ok:
		return SkipAbsent
	case env.DeviceID == deviceID:
		return SkipSelf
	case env.Timestamp <= watermark:
		return SkipStale
	default:
		return Proceed
	}
}

// StatusChange records an order whose status was advanced by a merge.
type StatusChange struct {
	OrderID int
	From    model.Status
	To      model.Status
	By      string
}

// Collision records an incoming order that reuses a local id.
type Collision struct {
	OrderID        int
	LocalDevice    string
	IncomingDevice string
}

// Outcome is the result of merging one envelope.
type Outcome struct {
	// State is the merged local state.
	State model.State

	// NewOrders are the incoming orders whose ids were absent locally, in
	// envelope order.
	NewOrders []model.Order

	// Advanced are the known orders whose status moved forward.
	Advanced []StatusChange

	// Collisions are incoming orders rejected because their id belongs to
	// a local order from another device.
	Collisions []Collision

	// CounterRaised is true if the envelope's counter was higher.
	CounterRaised bool

	// MenuChanged is true if either menu list differs from the local one.
	MenuChanged bool

	// Watermark is the envelope timestamp; it becomes the new watermark.
	Watermark int64

	// Republish is true if the merged state holds information the
	// envelope lacks, so other devices would not converge on it without
	// a new publication.
	Republish bool
}

// Changed reports whether the merge altered the local state.
func (o Outcome) Changed() bool {
	return len(o.NewOrders) > 0 || len(o.Advanced) > 0 || o.CounterRaised || o.MenuChanged
}

// Merge folds env into local. Neither argument is modified.
func Merge(local model.State, env model.Envelope) Outcome {
	st := local.Clone()
	out := Outcome{Watermark: env.Timestamp}

	for _, in := range env.Orders {
		idx := st.Find(in.ID)
		if idx < 0 {
			c := in.Clone()
			st.Orders = append(st.Orders, c)
			out.NewOrders = append(out.NewOrders, c.Clone())
			continue
		}

		have := st.Orders[idx]
		if have.DeviceID != in.DeviceID {
			out.Collisions = append(out.Collisions, Collision{
				OrderID:        in.ID,
				LocalDevice:    have.DeviceID,
				IncomingDevice: in.DeviceID,
			})
			continue
		}
		if in.Status.Rank() > have.Status.Rank() {
			st.Orders[idx] = in.Clone()
			out.Advanced = append(out.Advanced, StatusChange{
				OrderID: in.ID,
				From:    have.Status,
				To:      in.Status,
				By:      in.StatusUpdatedBy,
			})
		}
	}

	if env.Counter > st.Counter {
		st.Counter = env.Counter
		out.CounterRaised = true
	}
	for _, o := range st.Orders {
		if o.ID >= st.Counter {
			st.Counter = o.ID + 1
		}
	}

	if !slices.Equal(st.Dishes, env.Dishes) || !slices.Equal(st.Drinks, env.Drinks) {
		out.MenuChanged = true
	}
	st.Dishes = slices.Clone(env.Dishes)
	st.Drinks = slices.Clone(env.Drinks)
	if st.Dishes == nil {
		st.Dishes = []string{}
	}
	if st.Drinks == nil {
		st.Drinks = []string{}
	}

	out.State = st
	out.Republish = ahead(st, env)
	return out
}

// ahead reports whether st carries an order, a status or a counter value
// that env does not.
func ahead(st model.State, env model.Envelope) bool {
	if st.Counter > env.Counter {
		return true
	}
	theirs := make(map[int]model.Order, len(env.Orders))
	for _, o := range env.Orders {
		theirs[o.ID] = o
	}
	for _, o := range st.Orders {
		t, ok := theirs[o.ID]
		if !ok {
			return true
		}
		if t.DeviceID == o.DeviceID && o.Status.Rank() > t.Status.Rank() {
			return true
		}
	}
	return false
}
