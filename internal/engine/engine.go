package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/comande/internal/clock"
	"github.com/roach88/comande/internal/gateway"
	"github.com/roach88/comande/internal/lifecycle"
	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/notify"
)

// DefaultPollInterval is how often Run checks the shared envelope.
const DefaultPollInterval = 2 * time.Second

// Engine is one device's runtime.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - all state mutations are serialised by one mutex (single writer)
//   - Run must be called from at most one goroutine
type Engine struct {
	gw       *gateway.Gateway
	deviceID string
	clock    clock.Clock
	timers   *lifecycle.Controller
	notifier *notify.Dispatcher
	logger   *slog.Logger
	poll     time.Duration
	delays   lifecycle.Delays
	queue    *eventQueue

	mu        sync.Mutex
	ctx       context.Context // for timer-driven saves
	state     model.State
	watermark int64
	started   bool
	stopped   bool
	done      chan struct{}
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithPollInterval sets the sync period.
//
// Default: 2s (DefaultPollInterval)
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.poll = d
		}
	}
}

// WithDelays sets the automatic lifecycle delays.
//
// Default: lifecycle.DefaultDelays()
func WithDelays(d lifecycle.Delays) EngineOption {
	return func(e *Engine) {
		e.delays = d
	}
}

// WithNotifier sets the notification dispatcher.
//
// Default: a dispatcher with no push channel.
func WithNotifier(n *notify.Dispatcher) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine for the device gw belongs to. Call Start before
// anything else.
func New(gw *gateway.Gateway, clk clock.Clock, opts ...EngineOption) *Engine {
	e := &Engine{
		gw:       gw,
		deviceID: gw.DeviceID(),
		clock:    clk,
		logger:   slog.Default(),
		poll:     DefaultPollInterval,
		delays:   lifecycle.DefaultDelays(),
		queue:    newEventQueue(),
		ctx:      context.Background(),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.notifier == nil {
		e.notifier = notify.New(clk, notify.WithLogger(e.logger))
	}
	e.timers = lifecycle.NewController(clk, e.delays, e.onTimer)
	return e
}

// Start loads the persisted state and watermark and re-arms the timers of
// this device's unfinished orders. A second call is a no-op.
//
// A storage failure here is fatal: the engine cannot run without its
// state.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return nil
	}

	st, err := e.gw.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	wm, err := e.gw.LoadWatermark(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	e.state = st
	e.watermark = wm
	e.ctx = context.WithoutCancel(ctx)
	e.started = true

	resumed := 0
	for _, o := range st.Orders {
		if o.DeviceID == e.deviceID && o.Status.Rank() < model.StatusReady.Rank() {
			e.timers.Schedule(o)
			resumed++
		}
	}

	e.logger.Info("engine starting",
		"device_id", e.deviceID,
		"orders", len(st.Orders),
		"counter", st.Counter,
		"watermark", wm,
		"resumed_orders", resumed,
	)
	return nil
}

// Run polls the shared envelope every poll interval until ctx is
// cancelled or Stop is called. Sync failures are logged and the loop
// continues.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	e.logger.Info("sync loop starting", "poll_interval", e.poll)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.done:
			e.logger.Info("engine stopping: stopped")
			return nil

		case <-e.clock.After(e.poll):
			if _, err := e.Sync(ctx); err != nil {
				e.logger.Warn("sync failed",
					"device_id", e.deviceID,
					"error", err,
				)
			}
		}
	}
}

// Stop cancels every timer, closes the event feed and makes Run return.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.timers.CancelAll()
	close(e.done)
	e.queue.Close()
	e.logger.Info("engine stopped", "device_id", e.deviceID)
}

// usable requires e.mu.
func (e *Engine) usable() error {
	switch {
	case e.stopped:
		return ErrStopped
	case !e.started:
		return ErrNotStarted
	default:
		return nil
	}
}

// DeviceID returns the id of this device.
func (e *Engine) DeviceID() string {
	return e.deviceID
}

// State returns a copy of the current state.
func (e *Engine) State() model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Orders returns a copy of the order set in stored order.
func (e *Engine) Orders() []model.Order {
	return e.State().Orders
}

// Order returns a copy of one order.
func (e *Engine) Order(id int) (model.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.state.Find(id)
	if idx < 0 {
		return model.Order{}, false
	}
	return e.state.Orders[idx].Clone(), true
}

// Menu returns copies of both menu lists.
func (e *Engine) Menu() (dishes, drinks []string) {
	st := e.State()
	return st.Dishes, st.Drinks
}

// Watermark returns the timestamp of the last merged envelope.
func (e *Engine) Watermark() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watermark
}

// Notifications returns the live notification log, newest first.
func (e *Engine) Notifications() []notify.Entry {
	return e.notifier.Entries()
}

// PendingTimers returns the number of armed lifecycle timers.
func (e *Engine) PendingTimers() int {
	return e.timers.Pending()
}

// Events removes and returns every event emitted since the last call.
func (e *Engine) Events() []Event {
	return e.queue.Drain()
}

// Wait returns a channel that signals when events may be available. The
// channel is closed by Stop.
func (e *Engine) Wait() <-chan struct{} {
	return e.queue.Wait()
}

// emit requires e.mu.
func (e *Engine) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = e.clock.Now()
	}
	e.queue.Enqueue(ev)
}

// save persists and publishes the full state. On failure the in-memory
// state is kept and a warning is emitted. Requires e.mu.
func (e *Engine) save(ctx context.Context) error {
	if _, err := e.gw.SaveState(ctx, e.state); err != nil {
		e.warn(err)
		return err
	}
	return nil
}

// warn surfaces a recoverable failure. Requires e.mu.
func (e *Engine) warn(err error) {
	msg := model.Message(err)
	if model.IsStorageError(err) {
		msg = storageWarning
		e.logger.Warn("storage unavailable, continuing locally",
			"device_id", e.deviceID,
			"error", err,
			"event", "storage_warning",
		)
	}
	e.emit(Event{Type: EventWarning, Message: msg})
	e.notifier.Notify(msg, notify.SeverityWarning)
}
