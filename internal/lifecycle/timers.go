package lifecycle

import (
	"sync"
	"time"

	"github.com/roach88/comande/internal/clock"
	"github.com/roach88/comande/internal/model"
)

// FireFunc receives an automatic transition when its timer expires. It
// runs on the clock's timer goroutine.
type FireFunc func(orderID int, to model.Status)

// Controller keeps the automatic transition timers, keyed by order id so
// they can be cancelled when orders are cleared.
type Controller struct {
	clock  clock.Clock
	delays Delays
	fire   FireFunc

	mu     sync.Mutex
	timers map[int]map[model.Status]clock.Timer
}

// NewController creates a Controller that calls fire for every expired
// timer.
func NewController(clk clock.Clock, delays Delays, fire FireFunc) *Controller {
	return &Controller{
		clock:  clk,
		delays: delays,
		fire:   fire,
		timers: make(map[int]map[model.Status]clock.Timer),
	}
}

// Delays returns the configured delays.
func (c *Controller) Delays() Delays {
	return c.delays
}

// Schedule arms the automatic steps o has not reached yet. Deadlines are
// absolute from o.CreatedAt, so an order resumed after a restart fires at
// its original time, or immediately if that time has passed. Scheduling an
// order that already has timers is a no-op.
func (c *Controller) Schedule(o model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.timers[o.ID]; ok {
		return
	}

	elapsed := c.clock.Now().Sub(o.CreatedAt)
	steps := []struct {
		to    model.Status
		delay time.Duration
	}{
		{model.StatusPreparing, c.delays.Preparing},
		{model.StatusReady, c.delays.Ready},
	}

	armed := make(map[model.Status]clock.Timer)
	for _, s := range steps {
		if o.Status.Rank() >= s.to.Rank() {
			continue
		}
		remaining := max(s.delay-elapsed, 0)
		id, to := o.ID, s.to
		armed[to] = c.clock.AfterFunc(remaining, func() {
			c.expire(id, to)
		})
	}
	if len(armed) > 0 {
		c.timers[o.ID] = armed
	}
}

func (c *Controller) expire(id int, to model.Status) {
	c.mu.Lock()
	set, ok := c.timers[id]
	if ok {
		_, ok = set[to]
		delete(set, to)
		if len(set) == 0 {
			delete(c.timers, id)
		}
	}
	c.mu.Unlock()

	if ok {
		c.fire(id, to)
	}
}

// Cancel stops every pending timer of one order.
func (c *Controller) Cancel(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers[id] {
		t.Stop()
	}
	delete(c.timers, id)
}

// CancelAll stops every pending timer.
func (c *Controller) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, set := range c.timers {
		for _, t := range set {
			t.Stop()
		}
		delete(c.timers, id)
	}
}

// Pending returns the number of armed timers.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, set := range c.timers {
		n += len(set)
	}
	return n
}
