package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// kvContract exercises the behaviour every KV implementation must share.
func kvContract(t *testing.T, kv KV) {
	t.Helper()
	ctx := t.Context()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := kv.Put(ctx, "orders", []byte(`[]`)); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := kv.Put(ctx, "orders", []byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("Put() overwrite failed: %v", err)
	}
	v, ok, err := kv.Get(ctx, "orders")
	if err != nil || !ok {
		t.Fatalf("Get(orders) = ok=%v err=%v", ok, err)
	}
	if string(v) != `[{"id":1}]` {
		t.Errorf("Get(orders) = %s, want overwrite", v)
	}

	err = kv.PutAll(ctx, []Entry{
		{Key: "orderIdCounter", Value: []byte("2")},
		{Key: "dishes", Value: []byte(`["Pizza Margherita"]`)},
	})
	if err != nil {
		t.Fatalf("PutAll() failed: %v", err)
	}
	if v, _, _ := kv.Get(ctx, "orderIdCounter"); string(v) != "2" {
		t.Errorf("counter = %s, want 2", v)
	}
}
