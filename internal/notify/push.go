package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/comande/internal/model"
)

// DefaultTitle is the title of every push notification.
const DefaultTitle = "Comande Restaurant"

// Tag groups order notifications so the receiving system replaces the
// previous one instead of stacking them.
const Tag = "order-update"

// Permission is the push channel's grant state.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Action is an interactive button on a push notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Push is the payload handed to a Pusher.
type Push struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Tag                string   `json:"tag"`
	RequireInteraction bool     `json:"requireInteraction"`
	Actions            []Action `json:"actions"`
}

// Pusher is an external notification channel.
type Pusher interface {
	// Permission reports the current grant state. Any value other than
	// the three known ones is treated as denied.
	Permission() Permission

	// RequestPermission asks the user once and returns the outcome.
	RequestPermission(ctx context.Context) (Permission, error)

	// Show displays p.
	Show(ctx context.Context, p Push) error
}

// TryPush is PushExternally with the failure reported. A permission in
// the default state is requested once; when granted, a confirmation entry
// is added to the log.
func (d *Dispatcher) TryPush(ctx context.Context, message string) error {
	if d.pusher == nil {
		return model.NewNotificationError("push channel unavailable", nil)
	}

	perm := d.pusher.Permission()
	if perm == PermissionDefault {
		d.mu.Lock()
		ask := !d.asked
		d.asked = true
		d.mu.Unlock()
		if !ask {
			return model.NewNotificationError("permission not granted", nil)
		}

		var err error
		perm, err = d.pusher.RequestPermission(ctx)
		if err != nil {
			return model.NewNotificationError("permission request failed", err)
		}
		if perm == PermissionGranted {
			d.Notify("Notifiche push attivate!", SeveritySuccess)
		}
	}
	if perm != PermissionGranted {
		return model.NewNotificationError(fmt.Sprintf("permission %q", perm), nil)
	}

	p := Push{
		Title:              d.title,
		Body:               message,
		Tag:                Tag,
		RequireInteraction: true,
		Actions:            []Action{{Action: "view", Title: "Visualizza"}},
	}
	if err := d.pusher.Show(ctx, p); err != nil {
		return model.NewNotificationError("show failed", err)
	}
	return nil
}

// WriterPusher writes each push as one JSON line to W. It is always
// granted; the CLI uses it to surface pushes on stderr.
type WriterPusher struct {
	mu sync.Mutex
	W  io.Writer
}

// Permission implements Pusher.
func (p *WriterPusher) Permission() Permission {
	if p.W == nil {
		return PermissionDenied
	}
	return PermissionGranted
}

// RequestPermission implements Pusher.
func (p *WriterPusher) RequestPermission(context.Context) (Permission, error) {
	return p.Permission(), nil
}

// Show implements Pusher.
func (p *WriterPusher) Show(_ context.Context, push Push) error {
	if p.W == nil {
		return errors.New("no writer")
	}
	data, err := json.Marshal(push)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.W.Write(append(data, '\n'))
	return err
}
