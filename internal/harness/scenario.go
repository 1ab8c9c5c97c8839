package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/model"
)

// Scenario defines a multi-device conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Devices lists the device names. Each name is also the device id.
	Devices []string `yaml:"devices"`

	// Config is optional CUE source applied to every device.
	Config string `yaml:"config,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation on the shared world.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Device is the target device. Optional for sync, advance and the
	// storage actions.
	Device string `yaml:"device,omitempty"`

	// Table, Dishes and Drinks are used by submit.
	Table  string   `yaml:"table,omitempty"`
	Dishes []string `yaml:"dishes,omitempty"`
	Drinks []string `yaml:"drinks,omitempty"`

	// Order is the order id for serve.
	Order int `yaml:"order,omitempty"`

	// Name is the menu item for the menu actions.
	Name string `yaml:"name,omitempty"`

	// Duration is a Go duration string for advance.
	Duration string `yaml:"duration,omitempty"`

	// Poll makes advance sync every device after each poll interval.
	Poll bool `yaml:"poll,omitempty"`

	// Reads makes fail_storage break reads as well as writes.
	Reads bool `yaml:"reads,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step action constants.
const (
	ActionSubmit         = "submit"
	ActionServe          = "serve"
	ActionClear          = "clear"
	ActionSync           = "sync"
	ActionAdvance        = "advance"
	ActionAddDish        = "add_dish"
	ActionAddDrink       = "add_drink"
	ActionRemoveDish     = "remove_dish"
	ActionRemoveDrink    = "remove_drink"
	ActionFailStorage    = "fail_storage"
	ActionRestoreStorage = "restore_storage"
	ActionRestart        = "restart"
)

// Assertion validates the trace or the final state of one device.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Device selects the device. event_count counts across every device
	// when it is empty.
	Device string `yaml:"device,omitempty"`

	// Order and Status are used by order_status.
	Order  int    `yaml:"order,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Count is used by order_count, counter, pending_timers and
	// event_count.
	Count int `yaml:"count"`

	// IDs is used by order_ids.
	IDs []int `yaml:"ids,omitempty"`

	// Dishes and Drinks are used by menu. A nil list is not checked.
	Dishes []string `yaml:"dishes,omitempty"`
	Drinks []string `yaml:"drinks,omitempty"`

	// Event is the event type for event_count.
	Event string `yaml:"event,omitempty"`

	// Contains is the substring for notification_contains.
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertOrderStatus          = "order_status"
	AssertOrderCount           = "order_count"
	AssertOrderIDs             = "order_ids"
	AssertCounter              = "counter"
	AssertMenu                 = "menu"
	AssertPendingTimers        = "pending_timers"
	AssertNotificationContains = "notification_contains"
	AssertEventCount           = "event_count"
	AssertConverged            = "converged"
)

// deviceActions must name a device.
var deviceActions = []string{
	ActionSubmit, ActionServe, ActionClear,
	ActionAddDish, ActionAddDrink, ActionRemoveDish, ActionRemoveDrink,
	ActionRestart,
}

var globalActions = []string{
	ActionSync, ActionAdvance, ActionFailStorage, ActionRestoreStorage,
}

var eventTypes = []engine.EventType{
	engine.EventOrderCreated, engine.EventStatusChanged,
	engine.EventOrdersObserved, engine.EventStatusObserved,
	engine.EventMenuChanged, engine.EventMenuReplaced,
	engine.EventCleared, engine.EventCollision, engine.EventWarning,
	EventPush, EventError,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Devices) == 0 {
		return fmt.Errorf("devices list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Devices))
	for i, d := range s.Devices {
		if d == "" {
			return fmt.Errorf("devices[%d]: name is required", i)
		}
		if seen[d] {
			return fmt.Errorf("devices[%d]: duplicate device %q", i, d)
		}
		seen[d] = true
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], seen); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], seen); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step, devices map[string]bool) error {
	switch {
	case st.Action == "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case slices.Contains(deviceActions, st.Action):
		if st.Device == "" {
			return fmt.Errorf("steps[%d]: device is required for %s", index, st.Action)
		}
	case slices.Contains(globalActions, st.Action):
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}

	if st.Device != "" && !devices[st.Device] {
		return fmt.Errorf("steps[%d]: unknown device %q", index, st.Device)
	}

	switch st.Action {
	case ActionServe:
		if st.Order <= 0 {
			return fmt.Errorf("steps[%d]: order is required for serve", index)
		}
	case ActionAdvance:
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return fmt.Errorf("steps[%d]: invalid duration %q: %w", index, st.Duration, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: duration must be positive", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, devices map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Device != "" && !devices[a.Device] {
		return fmt.Errorf("assertions[%d]: unknown device %q", index, a.Device)
	}

	needsDevice := func() error {
		if a.Device == "" {
			return fmt.Errorf("assertions[%d]: device is required for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertOrderStatus:
		if err := needsDevice(); err != nil {
			return err
		}
		if a.Order <= 0 {
			return fmt.Errorf("assertions[%d]: order is required for order_status", index)
		}
		if !model.Status(a.Status).Valid() {
			return fmt.Errorf("assertions[%d]: invalid status %q", index, a.Status)
		}
	case AssertOrderCount, AssertCounter, AssertPendingTimers:
		if err := needsDevice(); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertOrderIDs, AssertMenu:
		if err := needsDevice(); err != nil {
			return err
		}
	case AssertNotificationContains:
		if err := needsDevice(); err != nil {
			return err
		}
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for notification_contains", index)
		}
	case AssertEventCount:
		if !slices.Contains(eventTypes, engine.EventType(a.Event)) {
			return fmt.Errorf("assertions[%d]: unknown event %q", index, a.Event)
		}
	case AssertConverged:
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
