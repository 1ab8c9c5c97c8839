package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_KVContract(t *testing.T) {
	kvContract(t, NewMemory())
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", in))
	in[0] = 'x'

	out, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_FailWritesLeavesDataUntouched(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "orders", []byte("old")))

	quota := errors.New("quota exceeded")
	m.FailWrites(quota)

	err := m.PutAll(ctx, []Entry{{Key: "orders", Value: []byte("new")}, {Key: "x", Value: []byte("1")}})
	assert.ErrorIs(t, err, quota)

	v, _, _ := m.Get(ctx, "orders")
	assert.Equal(t, "old", string(v))
	assert.Equal(t, 1, m.Keys())

	m.FailWrites(nil)
	assert.NoError(t, m.Put(ctx, "orders", []byte("new")))
}

func TestMemory_FailReads(t *testing.T) {
	m := NewMemory()
	m.FailReads(errors.New("unavailable"))
	_, _, err := m.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	_, _, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Put(context.Background(), "k", nil), ErrClosed)
}
