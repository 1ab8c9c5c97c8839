package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/model"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertOrderStatus,
		Device:   "kitchen",
		Expected: "order #1 served",
		Actual:   "order #1 ready",
		Trace: []TraceEvent{
			{Seq: 1, Step: 1, Device: "tablet", Type: engine.EventOrderCreated, OrderID: 1, Status: model.StatusPending},
			{Seq: 2, Step: 2, Device: "kitchen", Type: engine.EventOrdersObserved, OrderIDs: []int{1}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: order_status on kitchen")
	assert.Contains(t, msg, "Expected: order #1 served")
	assert.Contains(t, msg, "Actual: order #1 ready")
	assert.Contains(t, msg, "[1] step 1 tablet order-created #1 pending")
	assert.Contains(t, msg, "[2] step 2 kitchen orders-observed")
}

func TestAssertionError_WithoutDeviceOrTrace(t *testing.T) {
	err := &AssertionError{Type: AssertConverged, Expected: "a", Actual: "b"}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: converged\n")
	assert.NotContains(t, msg, "Full trace")
}

func TestCountEvents(t *testing.T) {
	trace := []TraceEvent{
		{Device: "a", Type: engine.EventWarning},
		{Device: "b", Type: engine.EventWarning},
		{Device: "a", Type: engine.EventCleared},
	}
	assert.Equal(t, 2, countEvents(trace, "", engine.EventWarning))
	assert.Equal(t, 1, countEvents(trace, "a", engine.EventWarning))
	assert.Equal(t, 0, countEvents(trace, "b", engine.EventCleared))
}

func TestFingerprint_IgnoresArrivalOrder(t *testing.T) {
	o1 := model.Order{ID: 1, Status: model.StatusReady, DeviceID: "a"}
	o2 := model.Order{ID: 2, Status: model.StatusPending, DeviceID: "b"}

	x := model.State{Orders: []model.Order{o1, o2}, Counter: 3, Dishes: []string{"Pizza"}, Drinks: []string{}}
	y := model.State{Orders: []model.Order{o2, o1}, Counter: 3, Dishes: []string{"Pizza"}, Drinks: []string{}}
	assert.Equal(t, fingerprint(x), fingerprint(y))

	y.Orders[0].Status = model.StatusReady
	assert.NotEqual(t, fingerprint(x), fingerprint(y))
}
