// Package gateway is the typed persistence layer of a device.
//
// It maps model.State onto the device's local store and the sync envelope
// onto the shared store:
//
//	local:  orders, orderIdCounter, dishes, drinks, sync-watermark
//	shared: sync-data
//
// Every SaveState is also a publication: the same snapshot is written to
// the shared store stamped with the device id and a timestamp. Stored
// payloads that fail to decode are logged and treated as absent; storage
// failures are returned as model.Error with code STORAGE_UNAVAILABLE.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/comande/internal/clock"
	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/store"
)

// Store keys.
const (
	KeyOrders    = "orders"
	KeyCounter   = "orderIdCounter"
	KeyDishes    = "dishes"
	KeyDrinks    = "drinks"
	KeyWatermark = "sync-watermark"
	KeyEnvelope  = "sync-data"
)

// Gateway reads and writes one device's state.
type Gateway struct {
	local    store.KV
	shared   store.KV
	deviceID string
	clock    clock.Clock
	logger   *slog.Logger

	defaultDishes []string
	defaultDrinks []string

	mu    sync.Mutex
	floor int64 // highest envelope timestamp seen or issued
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDefaultMenu sets the menu lists used on cold start.
// Default: model.DefaultDishes and model.DefaultDrinks.
func WithDefaultMenu(dishes, drinks []string) Option {
	return func(g *Gateway) {
		g.defaultDishes = model.NormalizeAll(dishes)
		g.defaultDrinks = model.NormalizeAll(drinks)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a Gateway. local and shared may be the same store.
func New(local, shared store.KV, deviceID string, clk clock.Clock, opts ...Option) *Gateway {
	g := &Gateway{
		local:         local,
		shared:        shared,
		deviceID:      deviceID,
		clock:         clk,
		logger:        slog.Default(),
		defaultDishes: model.DefaultDishes,
		defaultDrinks: model.DefaultDrinks,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DeviceID returns the id this gateway stamps envelopes with.
func (g *Gateway) DeviceID() string {
	return g.deviceID
}

// LoadState reads the local state. Missing keys fall back to the cold
// start seed: no orders, counter 1, default menus. The counter is never
// below the highest stored id plus one.
func (g *Gateway) LoadState(ctx context.Context) (model.State, error) {
	st := model.State{Counter: 1}

	if err := g.loadJSON(ctx, g.local, KeyOrders, &st.Orders); err != nil {
		return model.State{}, err
	}
	if err := g.loadJSON(ctx, g.local, KeyCounter, &st.Counter); err != nil {
		return model.State{}, err
	}

	var dishes, drinks []string
	found, err := g.loadJSONFound(ctx, g.local, KeyDishes, &dishes)
	if err != nil {
		return model.State{}, err
	}
	if found {
		st.Dishes = dishes
	} else {
		st.Dishes = g.defaultDishes
	}
	found, err = g.loadJSONFound(ctx, g.local, KeyDrinks, &drinks)
	if err != nil {
		return model.State{}, err
	}
	if found {
		st.Drinks = drinks
	} else {
		st.Drinks = g.defaultDrinks
	}

	if st.Counter < 1 {
		st.Counter = 1
	}
	for _, o := range st.Orders {
		if o.ID >= st.Counter {
			st.Counter = o.ID + 1
		}
	}

	return st.Clone(), nil
}

// SaveState persists st locally in one atomic write and then publishes it
// as the shared envelope. It returns the published envelope.
//
// If the local write fails nothing was changed. If only the publication
// fails the local state is saved and the error says so.
func (g *Gateway) SaveState(ctx context.Context, st model.State) (model.Envelope, error) {
	entries, err := encodeState(st)
	if err != nil {
		return model.Envelope{}, err
	}
	if err := g.local.PutAll(ctx, entries); err != nil {
		return model.Envelope{}, fmt.Errorf("save state: %w", model.NewStorageError("write", "state", err))
	}

	env := g.Stamp(st)
	if err := g.PublishEnvelope(ctx, env); err != nil {
		return model.Envelope{}, err
	}
	return env, nil
}

// SaveLocal persists st and the sync watermark atomically without
// publishing.
func (g *Gateway) SaveLocal(ctx context.Context, st model.State, watermark int64) error {
	entries, err := encodeState(st)
	if err != nil {
		return err
	}
	entries = append(entries, store.Entry{Key: KeyWatermark, Value: fmt.Appendf(nil, "%d", watermark)})
	if err := g.local.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("save local: %w", model.NewStorageError("write", "state", err))
	}
	return nil
}

// LoadWatermark returns the last merged envelope timestamp, 0 if none.
func (g *Gateway) LoadWatermark(ctx context.Context) (int64, error) {
	var wm int64
	if err := g.loadJSON(ctx, g.local, KeyWatermark, &wm); err != nil {
		return 0, err
	}
	g.observe(wm)
	return wm, nil
}

// LoadEnvelope reads the shared envelope. ok is false if there is none or
// if the stored payload is malformed (logged as a warning).
func (g *Gateway) LoadEnvelope(ctx context.Context) (env model.Envelope, ok bool, err error) {
	data, found, err := g.shared.Get(ctx, KeyEnvelope)
	if err != nil {
		return model.Envelope{}, false, fmt.Errorf("load envelope: %w", model.NewStorageError("read", KeyEnvelope, err))
	}
	if !found {
		return model.Envelope{}, false, nil
	}

	env, err = decodeEnvelope(data)
	if err != nil {
		g.logger.Warn("ignoring malformed envelope",
			"key", KeyEnvelope,
			"error", err,
			"event", "malformed_envelope",
		)
		return model.Envelope{}, false, nil
	}

	g.observe(env.Timestamp)
	return env, true, nil
}

// PublishEnvelope overwrites the shared envelope with env.
func (g *Gateway) PublishEnvelope(ctx context.Context, env model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("publish envelope: %w", model.NewStorageError("encode", KeyEnvelope, err))
	}
	if err := g.shared.Put(ctx, KeyEnvelope, data); err != nil {
		return fmt.Errorf("publish envelope: %w", model.NewStorageError("write", KeyEnvelope, err))
	}
	g.observe(env.Timestamp)
	g.logger.Debug("envelope published",
		"device_id", env.DeviceID,
		"timestamp", env.Timestamp,
		"orders", len(env.Orders),
	)
	return nil
}

// Stamp wraps st in an envelope from this device. The timestamp is the
// current wall-clock millisecond, raised above every timestamp this
// gateway has seen so two writes in the same millisecond stay ordered.
func (g *Gateway) Stamp(st model.State) model.Envelope {
	g.mu.Lock()
	ts := g.clock.Now().UnixMilli()
	if ts <= g.floor {
		ts = g.floor + 1
	}
	g.floor = ts
	g.mu.Unlock()
	return st.Envelope(g.deviceID, ts)
}

func (g *Gateway) observe(ts int64) {
	g.mu.Lock()
	if ts > g.floor {
		g.floor = ts
	}
	g.mu.Unlock()
}

// loadJSON decodes key into v, leaving v untouched if the key is absent
// or malformed.
func (g *Gateway) loadJSON(ctx context.Context, kv store.KV, key string, v any) error {
	_, err := g.loadJSONFound(ctx, kv, key, v)
	return err
}

func (g *Gateway) loadJSONFound(ctx context.Context, kv store.KV, key string, v any) (bool, error) {
	data, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load state: %w", model.NewStorageError("read", key, err))
	}
	if !ok {
		return false, nil
	}
	if err := decodeInto(data, v); err != nil {
		g.logger.Warn("ignoring malformed state payload",
			"key", key,
			"error", err,
			"event", "malformed_state",
		)
		return false, nil
	}
	return true, nil
}
