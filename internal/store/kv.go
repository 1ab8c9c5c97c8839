package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Entry is one key/value pair for PutAll.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the key-value contract shared by all store implementations.
type KV interface {
	// Get returns the value for key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put writes a single key.
	Put(ctx context.Context, key string, value []byte) error

	// PutAll writes every entry atomically.
	PutAll(ctx context.Context, entries []Entry) error

	// Close releases the store.
	Close() error
}
