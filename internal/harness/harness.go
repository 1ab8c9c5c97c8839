package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/comande/internal/clock"
	"github.com/roach88/comande/internal/config"
	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/gateway"
	"github.com/roach88/comande/internal/identity"
	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/notify"
	"github.com/roach88/comande/internal/store"
	"github.com/roach88/comande/internal/testutil"
)

// errUnavailable is returned by stores broken with fail_storage.
var errUnavailable = errors.New("storage unavailable")

// Harness is the scenario execution environment: one fake clock, one
// shared store and one engine per device.
type Harness struct {
	cfg     *config.Config
	rule    *notify.PushRule
	clock   *testutil.FakeClock
	shared  *store.Memory
	devices []*device
	byName  map[string]*device
	logger  *slog.Logger
	result  *Result
	step    int
}

type device struct {
	name   string
	engine *engine.Engine
	local  *store.Memory
	pushes *pushRecorder
}

// Run executes a scenario and returns the result.
//
// Each scenario starts from empty stores at testutil.Epoch. A step that
// fails without expect_error, or an assertion that does not hold, marks the
// result as failed; the returned error is reserved for scenarios that
// cannot be set up at all.
//
// Execution flow:
//  1. Resolve the scenario config against the schema
//  2. Start one engine per device
//  3. Execute steps, collecting each device's events after every step
//  4. Check assertions and snapshot the final state
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := config.LoadBytes([]byte(scenario.Config), scenario.Name+".cue")
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	h := &Harness{
		cfg:    cfg,
		clock:  testutil.NewFakeClock(),
		shared: store.NewMemory(),
		byName: make(map[string]*device, len(scenario.Devices)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		result: NewResult(),
	}
	if cfg.PushEnabled {
		h.rule, err = notify.CompileRule(cfg.PushRule)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	ctx := context.Background()
	defer h.stopAll()

	for _, name := range scenario.Devices {
		d, err := h.startDevice(ctx, name, store.NewMemory())
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		h.devices = append(h.devices, d)
		h.byName[name] = d
	}

	for i, st := range scenario.Steps {
		h.step = i + 1
		err := h.execute(ctx, st)
		h.collect()
		h.checkStep(h.step, st, err)
	}

	for i, a := range scenario.Assertions {
		if err := h.check(a); err != nil {
			h.result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	for _, d := range h.devices {
		h.result.Devices[d.name] = snapshot(d)
	}
	return h.result, nil
}

func (h *Harness) startDevice(ctx context.Context, name string, local *store.Memory) (*device, error) {
	id, err := identity.NewProvider(local, testutil.NewFixedGenerator(name), identity.WithLogger(h.logger)).DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}

	gw := gateway.New(local, h.shared, id, h.clock,
		gateway.WithDefaultMenu(h.cfg.Dishes, h.cfg.Drinks),
		gateway.WithLogger(h.logger),
	)

	pushes := &pushRecorder{clock: h.clock}
	opts := []notify.Option{
		notify.WithCapacity(h.cfg.NotificationCapacity),
		notify.WithTTL(h.cfg.NotificationExpiry),
		notify.WithTitle(h.cfg.PushTitle),
		notify.WithLogger(h.logger),
	}
	if h.cfg.PushEnabled {
		opts = append(opts, notify.WithPusher(pushes), notify.WithRule(h.rule))
	}

	e := engine.New(gw, h.clock,
		engine.WithPollInterval(h.cfg.PollInterval),
		engine.WithDelays(h.cfg.Delays),
		engine.WithNotifier(notify.New(h.clock, opts...)),
		engine.WithLogger(h.logger),
	)
	if err := e.Start(ctx); err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}
	return &device{name: name, engine: e, local: local, pushes: pushes}, nil
}

func (h *Harness) stopAll() {
	for _, d := range h.devices {
		d.engine.Stop()
	}
}

// execute runs one step.
func (h *Harness) execute(ctx context.Context, st Step) error {
	d := h.byName[st.Device]

	switch st.Action {
	case ActionSubmit:
		_, err := d.engine.SubmitOrder(ctx, st.Table, st.Dishes, st.Drinks)
		return err
	case ActionServe:
		_, err := d.engine.MarkServed(ctx, st.Order)
		return err
	case ActionClear:
		return d.engine.ClearAll(ctx)
	case ActionAddDish:
		return d.engine.AddDish(ctx, st.Name)
	case ActionAddDrink:
		return d.engine.AddDrink(ctx, st.Name)
	case ActionRemoveDish:
		return d.engine.RemoveDish(ctx, st.Name)
	case ActionRemoveDrink:
		return d.engine.RemoveDrink(ctx, st.Name)
	case ActionSync:
		if d != nil {
			_, err := d.engine.Sync(ctx)
			return err
		}
		return h.syncAll(ctx)
	case ActionAdvance:
		dur, err := time.ParseDuration(st.Duration)
		if err != nil {
			return err
		}
		return h.advance(ctx, dur, st.Poll)
	case ActionFailStorage:
		kv := h.storeFor(d)
		kv.FailWrites(errUnavailable)
		if st.Reads {
			kv.FailReads(errUnavailable)
		}
		return nil
	case ActionRestoreStorage:
		kv := h.storeFor(d)
		kv.FailWrites(nil)
		kv.FailReads(nil)
		return nil
	case ActionRestart:
		return h.restart(ctx, d)
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
}

// storeFor returns the local store of d, or the shared store for nil.
func (h *Harness) storeFor(d *device) *store.Memory {
	if d == nil {
		return h.shared
	}
	return d.local
}

// syncAll runs one tick on every device in declaration order.
func (h *Harness) syncAll(ctx context.Context) error {
	var errs []error
	for _, d := range h.devices {
		if _, err := d.engine.Sync(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// advance moves the clock by dur. With poll, every device syncs after
// each whole poll interval, as Run would.
func (h *Harness) advance(ctx context.Context, dur time.Duration, poll bool) error {
	if !poll {
		h.clock.Advance(dur)
		return nil
	}

	var errs []error
	interval := h.cfg.PollInterval
	for remaining := dur; remaining > 0; {
		if remaining < interval {
			h.clock.Advance(remaining)
			break
		}
		h.clock.Advance(interval)
		remaining -= interval
		if err := h.syncAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// restart stops d and starts a fresh engine on the same local store.
// Whatever the old engine still had queued is traced first.
func (h *Harness) restart(ctx context.Context, d *device) error {
	h.collectDevice(d)
	d.engine.Stop()

	fresh, err := h.startDevice(ctx, d.name, d.local)
	if err != nil {
		return err
	}
	d.engine = fresh.engine
	d.pushes = fresh.pushes
	return nil
}

// collect moves every queued event and push into the trace, device by
// device in declaration order.
func (h *Harness) collect() {
	for _, d := range h.devices {
		h.collectDevice(d)
	}
}

func (h *Harness) collectDevice(d *device) {
	for _, ev := range d.engine.Events() {
		h.result.add(traceFromEvent(h.step, d.name, ev))
	}
	for _, p := range d.pushes.drain() {
		h.result.add(TraceEvent{
			Step:    h.step,
			Device:  d.name,
			Type:    EventPush,
			Message: p.push.Body,
			AtMS:    sinceEpoch(p.at),
		})
	}
}

// checkStep records a failed step, or the expected error in the trace.
func (h *Harness) checkStep(n int, st Step, err error) {
	switch {
	case err == nil && st.ExpectError == "":
		return
	case err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got success", n-1, st.Action, st.ExpectError))
	case st.ExpectError == "":
		h.result.AddError(fmt.Sprintf("steps[%d] %s: %v", n-1, st.Action, err))
	default:
		code := errorCode(err)
		if code != st.ExpectError {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s (%v)", n-1, st.Action, st.ExpectError, code, err))
			return
		}
		h.result.add(TraceEvent{
			Step:    n,
			Device:  st.Device,
			Type:    EventError,
			Message: code,
			AtMS:    sinceEpoch(h.clock.Now()),
		})
	}
}

// errorCode returns the model error code carried by err, or its text.
func errorCode(err error) string {
	var e *model.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return err.Error()
}

func snapshot(d *device) DeviceState {
	st := d.engine.State()
	entries := d.engine.Notifications()
	msgs := make([]string, len(entries))
	for i, n := range entries {
		msgs[i] = n.Message
	}
	return DeviceState{
		Orders:        st.Orders,
		Counter:       st.Counter,
		Dishes:        st.Dishes,
		Drinks:        st.Drinks,
		Notifications: msgs,
		PendingTimers: d.engine.PendingTimers(),
	}
}

type recordedPush struct {
	push notify.Push
	at   time.Time
}

// pushRecorder is a granted push channel that keeps what it is shown.
type pushRecorder struct {
	clock clock.Clock

	mu     sync.Mutex
	pushes []recordedPush
}

var _ notify.Pusher = (*pushRecorder)(nil)

func (r *pushRecorder) Permission() notify.Permission {
	return notify.PermissionGranted
}

func (r *pushRecorder) RequestPermission(context.Context) (notify.Permission, error) {
	return notify.PermissionGranted, nil
}

func (r *pushRecorder) Show(_ context.Context, p notify.Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, recordedPush{push: p, at: r.clock.Now()})
	return nil
}

func (r *pushRecorder) drain() []recordedPush {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pushes
	r.pushes = nil
	return out
}
