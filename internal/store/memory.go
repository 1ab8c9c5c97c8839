package store

import (
	"context"
	"sync"
)

// Memory is an in-process KV. Values are copied on the way in and out.
//
// Several devices in one process (the scenario harness, tests) can share
// one Memory as their shared medium.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	closed   bool
	writeErr error
	readErr  error
}

var _ KV = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

// FailWrites makes every subsequent write return err without changing
// any data. Pass nil to restore normal behaviour. Used to simulate a full
// or unavailable medium.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailReads makes every subsequent Get return err.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

// Put stores a copy of value under key.
func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	return m.PutAll(ctx, []Entry{{Key: key, Value: value}})
}

// PutAll stores every entry or, on failure, none of them.
func (m *Memory) PutAll(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	for _, e := range entries {
		m.data[e.Key] = cloneBytes(e.Value)
	}
	return nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close marks the store closed. Further operations return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
