package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Device   string       // Device the assertion looked at, if any
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Device != "" {
		fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Device)
	} else {
		fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	}
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s %s", ev.Seq, ev.Step, ev.Device, ev.Type)
			if ev.OrderID != 0 {
				fmt.Fprintf(&buf, " #%d", ev.OrderID)
			}
			if ev.Status != "" {
				fmt.Fprintf(&buf, " %s", ev.Status)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// check evaluates one assertion against the current state and trace.
func (h *Harness) check(a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     a.Type,
			Device:   a.Device,
			Expected: expected,
			Actual:   actual,
			Trace:    h.result.Trace,
		}
	}

	var d *device
	if a.Device != "" {
		d = h.byName[a.Device]
	}

	switch a.Type {
	case AssertOrderStatus:
		o, ok := d.engine.Order(a.Order)
		if !ok {
			return fail(fmt.Sprintf("order #%d %s", a.Order, a.Status), "order not found")
		}
		if o.Status != model.Status(a.Status) {
			return fail(fmt.Sprintf("order #%d %s", a.Order, a.Status), fmt.Sprintf("order #%d %s", a.Order, o.Status))
		}

	case AssertOrderCount:
		if n := len(d.engine.Orders()); n != a.Count {
			return fail(fmt.Sprintf("%d orders", a.Count), fmt.Sprintf("%d orders", n))
		}

	case AssertOrderIDs:
		ids := d.engine.State().IDs()
		want := a.IDs
		if want == nil {
			want = []int{}
		}
		if !slices.Equal(ids, want) {
			return fail(fmt.Sprintf("ids %v", want), fmt.Sprintf("ids %v", ids))
		}

	case AssertCounter:
		if c := d.engine.State().Counter; c != a.Count {
			return fail(fmt.Sprintf("counter %d", a.Count), fmt.Sprintf("counter %d", c))
		}

	case AssertMenu:
		dishes, drinks := d.engine.Menu()
		if a.Dishes != nil && !slices.Equal(dishes, model.NormalizeAll(a.Dishes)) {
			return fail(fmt.Sprintf("dishes %q", a.Dishes), fmt.Sprintf("dishes %q", dishes))
		}
		if a.Drinks != nil && !slices.Equal(drinks, model.NormalizeAll(a.Drinks)) {
			return fail(fmt.Sprintf("drinks %q", a.Drinks), fmt.Sprintf("drinks %q", drinks))
		}

	case AssertPendingTimers:
		if n := d.engine.PendingTimers(); n != a.Count {
			return fail(fmt.Sprintf("%d pending timers", a.Count), fmt.Sprintf("%d pending timers", n))
		}

	case AssertNotificationContains:
		var msgs []string
		for _, n := range d.engine.Notifications() {
			if strings.Contains(n.Message, a.Contains) {
				return nil
			}
			msgs = append(msgs, n.Message)
		}
		return fail(fmt.Sprintf("a notification containing %q", a.Contains), fmt.Sprintf("%q", msgs))

	case AssertEventCount:
		n := countEvents(h.result.Trace, a.Device, engine.EventType(a.Event))
		if n != a.Count {
			return fail(fmt.Sprintf("%d %s events", a.Count, a.Event), fmt.Sprintf("%d %s events", n, a.Event))
		}

	case AssertConverged:
		return h.checkConverged(fail)

	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func countEvents(trace []TraceEvent, device string, typ engine.EventType) int {
	n := 0
	for _, ev := range trace {
		if ev.Type == typ && (device == "" || ev.Device == device) {
			n++
		}
	}
	return n
}

// checkConverged compares every device against the first one. Orders are
// compared by id, status and creating device, regardless of arrival order.
func (h *Harness) checkConverged(fail func(expected, actual string) error) error {
	if len(h.devices) < 2 {
		return nil
	}
	ref := h.devices[0]
	want := fingerprint(ref.engine.State())
	for _, d := range h.devices[1:] {
		if got := fingerprint(d.engine.State()); got != want {
			return fail(fmt.Sprintf("%s: %s", ref.name, want), fmt.Sprintf("%s: %s", d.name, got))
		}
	}
	return nil
}

func fingerprint(st model.State) string {
	var b strings.Builder
	orders := slices.Clone(st.Orders)
	slices.SortFunc(orders, func(x, y model.Order) int { return x.ID - y.ID })

	fmt.Fprintf(&b, "counter=%d orders=[", st.Counter)
	for i, o := range orders {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d:%s@%s", o.ID, o.Status, o.DeviceID)
	}
	fmt.Fprintf(&b, "] dishes=%q drinks=%q", st.Dishes, st.Drinks)
	return b.String()
}
