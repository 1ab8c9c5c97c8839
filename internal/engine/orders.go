package engine

import (
	"context"

	"github.com/roach88/comande/internal/lifecycle"
	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/notify"
)

// SubmitOrder creates a pending order, saves and publishes it, and arms its
// two automatic transitions.
//
// Names are normalised first. An order with neither dishes nor drinks, or
// without a table, is rejected with a validation error and nothing
// changes. If only the save fails the order exists locally and the storage
// error is returned alongside it.
func (e *Engine) SubmitOrder(ctx context.Context, table string, dishes, drinks []string) (model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return model.Order{}, err
	}

	table = model.Normalize(table)
	dishes = model.NormalizeAll(dishes)
	drinks = model.NormalizeAll(drinks)
	if err := model.ValidateSubmission(dishes, drinks); err != nil {
		e.warn(err)
		return model.Order{}, err
	}

	o := model.Order{
		ID:        e.state.Counter,
		Table:     table,
		Dishes:    dishes,
		Drinks:    drinks,
		CreatedAt: e.clock.Now(),
		Status:    model.StatusPending,
		DeviceID:  e.deviceID,
	}
	e.state.Orders = append(e.state.Orders, o)
	e.state.Counter++

	e.logger.Info("order submitted",
		"order_id", o.ID,
		"table", o.Table,
		"dishes", len(o.Dishes),
		"drinks", len(o.Drinks),
	)

	err := e.save(ctx)
	e.timers.Schedule(o)

	msg := lifecycle.Message(o)
	e.emit(Event{Type: EventOrderCreated, OrderID: o.ID, Status: o.Status, Device: e.deviceID, Message: msg, At: o.CreatedAt})
	e.notifier.Notify(msg, notify.SeveritySuccess)

	return o.Clone(), err
}

// MarkServed moves a ready order to served. Any device holding the order
// may serve it.
func (e *Engine) MarkServed(ctx context.Context, id int) (model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return model.Order{}, err
	}

	idx := e.state.Find(id)
	if idx < 0 {
		err := model.NewNotFoundError(id)
		e.warn(err)
		return model.Order{}, err
	}
	o := &e.state.Orders[idx]
	if err := lifecycle.Advance(o, model.StatusServed, e.deviceID, e.clock.Now()); err != nil {
		e.warn(err)
		return model.Order{}, err
	}
	e.timers.Cancel(id)

	served := o.Clone()
	err := e.save(ctx)
	e.transitioned(ctx, served)
	return served, err
}

// onTimer runs on the clock's timer goroutine. A timer for an order that
// is gone or already past the target status does nothing. If the ready
// timer finds the order still pending, the order passes through preparing
// first so no step is skipped.
func (e *Engine) onTimer(id int, to model.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.usable() != nil {
		return
	}
	idx := e.state.Find(id)
	if idx < 0 {
		e.logger.Debug("timer for unknown order", "order_id", id, "status", to)
		return
	}

	o := &e.state.Orders[idx]
	var changed []model.Order
	for o.Status.Rank() < to.Rank() {
		next, _ := o.Status.Next()
		if err := lifecycle.Advance(o, next, e.deviceID, e.clock.Now()); err != nil {
			e.logger.Error("automatic transition failed",
				"order_id", id,
				"error", err,
			)
			return
		}
		changed = append(changed, o.Clone())
	}
	if len(changed) == 0 {
		return
	}

	_ = e.save(e.ctx)
	for _, c := range changed {
		e.transitioned(e.ctx, c)
	}
}

// transitioned reports a local status change. Requires e.mu.
func (e *Engine) transitioned(ctx context.Context, o model.Order) {
	msg := lifecycle.Message(o)
	e.logger.Info("order status changed",
		"order_id", o.ID,
		"status", o.Status,
		"by", o.StatusUpdatedBy,
	)
	e.emit(Event{Type: EventStatusChanged, OrderID: o.ID, Status: o.Status, Device: o.StatusUpdatedBy, Message: msg, At: o.StatusUpdatedAt})
	e.notifier.Announce(ctx, notify.Notice{
		Kind:    string(EventStatusChanged),
		OrderID: o.ID,
		Table:   o.Table,
		Status:  o.Status,
		Device:  o.StatusUpdatedBy,
		Message: msg,
	})
}

// ClearAll removes every order, cancels their timers and empties the
// notification log. The reset is local: it is saved but not published, so
// other devices keep their orders, and orders cleared here can come back
// with a later envelope from another device. The counter is kept so ids
// are never reused.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}

	n := len(e.state.Orders)
	e.timers.CancelAll()
	e.state.Orders = []model.Order{}
	e.notifier.Clear()

	e.logger.Info("orders cleared", "removed", n)
	err := e.gw.SaveLocal(ctx, e.state, e.watermark)

	e.emit(Event{Type: EventCleared, Device: e.deviceID, Message: clearedMessage})
	e.notifier.Notify(clearedMessage, notify.SeveritySuccess)

	if err != nil {
		e.warn(err)
		return err
	}
	return nil
}
