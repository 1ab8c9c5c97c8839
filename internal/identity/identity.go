// Package identity issues and persists the per-installation device id.
//
// The id is a self-asserted label: it lets a device recognise envelopes it
// published itself and tags orders with their origin. It is never used for
// access control.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/store"
)

// Key is the store key holding the device id.
const Key = "device-id"

// Generator produces fresh device ids.
// Implemented by UUIDv7Generator (production) and testutil.FixedGenerator (tests).
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates "device-<uuidv7>" ids.
//
// UUIDv7 embeds a millisecond timestamp followed by random bits, which
// makes a collision between two installations negligible.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new id.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return "device-" + uuid.Must(uuid.NewV7()).String()
}

// Provider returns the stable device id of one installation.
type Provider struct {
	kv     store.KV
	gen    Generator
	logger *slog.Logger

	mu sync.Mutex
	id string
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider creates a Provider backed by the device's local store.
// A nil gen defaults to UUIDv7Generator.
func NewProvider(kv store.KV, gen Generator, opts ...Option) *Provider {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	p := &Provider{kv: kv, gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DeviceID returns the persisted id, generating and storing one on the
// first call for this installation. Subsequent calls return the same
// value without touching the store.
//
// A storage failure is returned as a model.Error with code
// STORAGE_UNAVAILABLE; callers treat it as fatal since nothing else can
// run without an identity.
func (p *Provider) DeviceID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}

	stored, ok, err := p.kv.Get(ctx, Key)
	if err != nil {
		return "", fmt.Errorf("device id: %w", model.NewStorageError("read", Key, err))
	}
	if ok && len(stored) > 0 {
		p.id = string(stored)
		return p.id, nil
	}

	id := p.gen.Generate()
	if err := p.kv.Put(ctx, Key, []byte(id)); err != nil {
		return "", fmt.Errorf("device id: %w", model.NewStorageError("write", Key, err))
	}
	p.logger.Info("device id generated", "device_id", id)

	p.id = id
	return id, nil
}
