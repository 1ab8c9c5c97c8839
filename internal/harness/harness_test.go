package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/model"
)

func runFixture(t *testing.T, name string) *Result {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".yaml")
		t.Run(name, func(t *testing.T) {
			result := runFixture(t, name)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_CollisionKeepsBothLocalOrders(t *testing.T) {
	result := runFixture(t, "concurrent_submissions_collide")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	tablet := result.Devices["tablet"]
	bar := result.Devices["bar"]
	require.Len(t, tablet.Orders, 2)
	require.Len(t, bar.Orders, 2)

	assert.Equal(t, "tablet", tablet.Orders[0].DeviceID)
	assert.Equal(t, "Tavolo 1", tablet.Orders[0].Table)
	assert.Equal(t, "bar", bar.Orders[0].DeviceID)
	assert.Equal(t, "Tavolo 2", bar.Orders[0].Table)
}

func TestRun_PollingTraceIsOrderedByStep(t *testing.T) {
	result := runFixture(t, "orders_converge_with_polling")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	for i, ev := range result.Trace {
		assert.Equal(t, i+1, ev.Seq)
		if i > 0 {
			assert.GreaterOrEqual(t, ev.Step, result.Trace[i-1].Step)
		}
	}

	for _, name := range []string{"tablet", "kitchen", "bar"} {
		st := result.Devices[name]
		require.Len(t, st.Orders, 2, name)
		for _, o := range st.Orders {
			assert.Equal(t, model.StatusReady, o.Status, name)
		}
		assert.Equal(t, 3, st.Counter, name)
	}
}

func TestRun_ClearAllKeepsCounter(t *testing.T) {
	result := runFixture(t, "clear_all_is_local")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, 3, result.Devices["kitchen"].Counter)
	assert.Equal(t, 1, countEvents(result.Trace, "tablet", engine.EventCleared))
}

func TestRun_FailingAssertionIsReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectation
description: "The order is pending, not served"
devices: [tablet]
steps:
  - action: submit
    device: tablet
    table: "Tavolo 1"
    dishes: ["Pizza Margherita"]
assertions:
  - type: order_status
    device: tablet
    order: 1
    status: served
  - type: order_status
    device: tablet
    order: 7
    status: pending
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Expected: order #1 served")
	assert.Contains(t, result.Errors[0], "Actual: order #1 pending")
	assert.Contains(t, result.Errors[1], "order not found")
}

func TestRun_UnexpectedStepErrorIsReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: empty_order
description: "An order without items is rejected"
devices: [tablet]
steps:
  - action: submit
    device: tablet
    table: "Tavolo 1"
assertions:
  - type: order_count
    device: tablet
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] submit")
	assert.Contains(t, result.Errors[0], "VALIDATION")
}

func TestRun_ExpectedErrorThatDoesNotHappen(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: not_failing
description: "A valid submission does not fail"
devices: [tablet]
steps:
  - action: submit
    device: tablet
    table: "Tavolo 1"
    drinks: ["Birra"]
    expect_error: VALIDATION
assertions:
  - type: order_count
    device: tablet
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error VALIDATION, got success")
}

func TestRun_InvalidConfig(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_config
description: "Unknown config fields are rejected"
devices: [tablet]
config: |
  poll_every: "1s"
steps:
  - action: sync
assertions:
  - type: converged
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_config")
}

func TestRun_PushDisabledRecordsNoPush(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: push_off
description: "With push disabled no push reaches the trace"
devices: [tablet]
config: |
  push: enabled: false
steps:
  - action: submit
    device: tablet
    table: "Tavolo 1"
    dishes: ["Pizza Margherita"]
  - action: advance
    duration: 10s
assertions:
  - type: order_status
    device: tablet
    order: 1
    status: ready
  - type: event_count
    event: push
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DefaultRulePushesEveryTransition(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: push_all
description: "The default rule pushes every local transition"
devices: [tablet]
steps:
  - action: submit
    device: tablet
    table: "Tavolo 1"
    dishes: ["Pizza Margherita"]
  - action: advance
    duration: 10s
assertions:
  - type: event_count
    event: push
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var pushes []string
	for _, ev := range result.Trace {
		if ev.Type == EventPush {
			pushes = append(pushes, ev.Message)
		}
	}
	assert.Equal(t, []string{"Ordine #1 in preparazione", "Ordine #1 pronto!"}, pushes)
}
