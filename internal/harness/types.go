package harness

import (
	"time"

	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/testutil"
)

// Trace entries the harness adds next to engine events.
const (
	// EventPush is an external push delivered by a device.
	EventPush engine.EventType = "push"
	// EventError is a step that failed with its expected error code.
	EventError engine.EventType = "error"
)

// TraceEvent is one entry of the scenario trace.
type TraceEvent struct {
	Seq      int              `json:"seq"`
	Step     int              `json:"step"`
	Device   string           `json:"device"`
	Type     engine.EventType `json:"type"`
	OrderID  int              `json:"order,omitempty"`
	OrderIDs []int            `json:"orders,omitempty"`
	Status   model.Status     `json:"status,omitempty"`
	Source   string           `json:"source,omitempty"`
	Message  string           `json:"message,omitempty"`

	// AtMS is milliseconds since the fake clock's start.
	AtMS int64 `json:"at_ms"`
}

func traceFromEvent(step int, device string, ev engine.Event) TraceEvent {
	return TraceEvent{
		Step:     step,
		Device:   device,
		Type:     ev.Type,
		OrderID:  ev.OrderID,
		OrderIDs: ev.OrderIDs,
		Status:   ev.Status,
		Source:   ev.Device,
		Message:  ev.Message,
		AtMS:     sinceEpoch(ev.At),
	}
}

func sinceEpoch(t time.Time) int64 {
	return t.Sub(testutil.Epoch).Milliseconds()
}

// DeviceState is the final state of one device.
type DeviceState struct {
	Orders        []model.Order `json:"orders"`
	Counter       int           `json:"counter"`
	Dishes        []string      `json:"dishes"`
	Drinks        []string      `json:"drinks"`
	Notifications []string      `json:"notifications"`
	PendingTimers int           `json:"pending_timers"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace contains every engine event, push and expected error in
	// step order, grouped by device in declaration order within a step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Devices holds the final state of each device by name.
	Devices map[string]DeviceState `json:"devices,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Devices: make(map[string]DeviceState),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// add appends ev with the next sequence number.
func (r *Result) add(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
