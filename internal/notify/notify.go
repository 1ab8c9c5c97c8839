// Package notify is the notification dispatcher: a small in-memory log of
// recent messages for display, plus a best-effort hand-off to an external
// push channel.
//
// Nothing here fails the caller. A missing push channel, a denied
// permission or a rule that errors is logged and dropped.
package notify

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/comande/internal/clock"
)

// Severity classifies a log entry.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Defaults for a Dispatcher.
const (
	DefaultCapacity = 5
	DefaultTTL      = 5 * time.Second
)

// Entry is one message in the log.
type Entry struct {
	ID       uint64    `json:"id"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Dispatcher keeps at most Capacity entries, newest first, each removed
// after TTL.
type Dispatcher struct {
	clock    clock.Clock
	capacity int
	ttl      time.Duration
	pusher   Pusher
	rule     *PushRule
	title    string
	logger   *slog.Logger

	mu      sync.Mutex
	entries []Entry
	expiry  map[uint64]clock.Timer
	nextID  uint64
	asked   bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCapacity sets the log size. Default: 5.
func WithCapacity(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithTTL sets how long an entry stays in the log. Default: 5s.
func WithTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithPusher sets the external push channel. Default: none.
func WithPusher(p Pusher) Option {
	return func(d *Dispatcher) {
		d.pusher = p
	}
}

// WithRule sets the rule selecting which notices are pushed. Default:
// every announced notice.
func WithRule(r *PushRule) Option {
	return func(d *Dispatcher) {
		d.rule = r
	}
}

// WithTitle sets the push notification title. Default: "Comande Restaurant".
func WithTitle(title string) Option {
	return func(d *Dispatcher) {
		if title != "" {
			d.title = title
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher.
func New(clk clock.Clock, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:    clk,
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		title:    DefaultTitle,
		logger:   slog.Default(),
		expiry:   make(map[uint64]clock.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify adds message to the log, evicting the oldest entry when full.
func (d *Dispatcher) Notify(message string, severity Severity) Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	e := Entry{ID: d.nextID, Message: message, Severity: severity, At: d.clock.Now()}
	d.entries = slices.Insert(d.entries, 0, e)

	for len(d.entries) > d.capacity {
		old := d.entries[len(d.entries)-1]
		d.entries = d.entries[:len(d.entries)-1]
		d.stopExpiry(old.ID)
	}

	id := e.ID
	d.expiry[id] = d.clock.AfterFunc(d.ttl, func() {
		d.expire(id)
	})
	return e
}

func (d *Dispatcher) expire(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.expiry, id)
	d.entries = slices.DeleteFunc(d.entries, func(e Entry) bool {
		return e.ID == id
	})
}

// stopExpiry requires d.mu.
func (d *Dispatcher) stopExpiry(id uint64) {
	if t, ok := d.expiry[id]; ok {
		t.Stop()
		delete(d.expiry, id)
	}
}

// Entries returns the live log, newest first.
func (d *Dispatcher) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.entries)
}

// Clear empties the log and cancels its expiry timers.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.expiry {
		d.stopExpiry(id)
	}
	d.entries = nil
}

// Announce logs a notice and pushes it externally if the rule selects it.
func (d *Dispatcher) Announce(ctx context.Context, n Notice) {
	d.Notify(n.Message, n.severity())

	if d.rule != nil {
		ok, err := d.rule.Allow(n)
		if err != nil {
			d.logger.Warn("push rule failed",
				"rule", d.rule.String(),
				"error", err,
				"event", "push_rule_error",
			)
			return
		}
		if !ok {
			return
		}
	}
	d.PushExternally(ctx, n.Message)
}

// PushExternally hands message to the push channel. Failures are logged
// and dropped.
func (d *Dispatcher) PushExternally(ctx context.Context, message string) {
	if err := d.TryPush(ctx, message); err != nil {
		d.logger.Debug("push skipped",
			"error", err,
			"event", "push_unavailable",
		)
	}
}
