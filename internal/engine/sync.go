package engine

import (
	"context"
	"fmt"

	"github.com/roach88/comande/internal/lifecycle"
	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/notify"
	"github.com/roach88/comande/internal/reconcile"
)

// SyncResult summarises one sync tick.
type SyncResult struct {
	// Skipped is non-empty if the envelope was not merged.
	Skipped reconcile.SkipReason `json:"skipped,omitempty"`

	// NewOrders are the ids absorbed from the envelope.
	NewOrders []int `json:"newOrders,omitempty"`

	// Advanced are the ids whose status moved forward.
	Advanced []int `json:"advanced,omitempty"`

	// Collisions are the incoming ids rejected because they were taken.
	Collisions []int `json:"collisions,omitempty"`

	// MenuReplaced is true if the menu lists changed.
	MenuReplaced bool `json:"menuReplaced,omitempty"`

	// Republished is true if the merged state was published again.
	Republished bool `json:"republished,omitempty"`
}

// Merged reports whether the tick merged an envelope.
func (r SyncResult) Merged() bool {
	return r.Skipped == reconcile.Proceed
}

// Sync runs one reconciliation tick: read the shared envelope, skip it if
// it is absent, self-published or not newer than the watermark, otherwise
// merge it, save the result with the new watermark and publish again if
// the merged state is ahead of the envelope.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return SyncResult{}, err
	}

	env, ok, err := e.gw.LoadEnvelope(ctx)
	if err != nil {
		e.warn(err)
		return SyncResult{}, err
	}
	if reason := reconcile.Check(env, ok, e.deviceID, e.watermark); reason != reconcile.Proceed {
		return SyncResult{Skipped: reason}, nil
	}

	out := reconcile.Merge(e.state, env)
	e.state = out.State
	e.watermark = out.Watermark

	res := SyncResult{MenuReplaced: out.MenuChanged}

	if n := len(out.NewOrders); n > 0 {
		ids := make([]int, n)
		for i, o := range out.NewOrders {
			ids[i] = o.ID
		}
		res.NewOrders = ids
		msg := lifecycle.ObservedMessage(n)
		e.emit(Event{Type: EventOrdersObserved, OrderIDs: ids, Device: env.DeviceID, Message: msg})
		e.notifier.Notify(msg, notify.SeveritySuccess)
	}

	for _, adv := range out.Advanced {
		res.Advanced = append(res.Advanced, adv.OrderID)
		if adv.To.Rank() >= model.StatusReady.Rank() {
			e.timers.Cancel(adv.OrderID)
		}
		o := e.state.Orders[e.state.Find(adv.OrderID)]
		e.emit(Event{Type: EventStatusObserved, OrderID: adv.OrderID, Status: adv.To, Device: adv.By, Message: lifecycle.Message(o)})
	}

	for _, c := range out.Collisions {
		res.Collisions = append(res.Collisions, c.OrderID)
		e.logger.Warn("order id collision, keeping local order",
			"order_id", c.OrderID,
			"local_device", c.LocalDevice,
			"incoming_device", c.IncomingDevice,
			"event", "order_collision",
		)
		e.emit(Event{Type: EventCollision, OrderID: c.OrderID, Device: c.IncomingDevice, Message: collisionMessage(c.OrderID)})
	}

	if out.MenuChanged {
		e.emit(Event{Type: EventMenuReplaced, Device: env.DeviceID})
	}

	e.logger.Info("envelope merged",
		"from", env.DeviceID,
		"timestamp", env.Timestamp,
		"new_orders", len(out.NewOrders),
		"advanced", len(out.Advanced),
		"collisions", len(out.Collisions),
		"menu_replaced", out.MenuChanged,
		"republish", out.Republish,
	)

	if err := e.gw.SaveLocal(ctx, e.state, e.watermark); err != nil {
		e.warn(err)
		return res, err
	}
	if out.Republish {
		if err := e.gw.PublishEnvelope(ctx, e.gw.Stamp(e.state)); err != nil {
			e.warn(err)
			return res, err
		}
		res.Republished = true
	}
	return res, nil
}

const (
	storageWarning = "Archiviazione non disponibile: modifiche solo locali"
	clearedMessage = "Tutti gli ordini e le notifiche sono stati cancellati"
)

func collisionMessage(id int) string {
	return fmt.Sprintf("Ordine #%d già presente su questo dispositivo", id)
}
