package identity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/store"
	"github.com/roach88/comande/internal/testutil"
)

func TestUUIDv7Generator_Format(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	require.True(t, strings.HasPrefix(id, "device-"))

	u, err := uuid.Parse(strings.TrimPrefix(id, "device-"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := UUIDv7Generator{}.Generate()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestProvider_GeneratesOnceAndPersists(t *testing.T) {
	kv := store.NewMemory()
	gen := testutil.NewFixedGenerator("device-a", "device-b")
	ctx := context.Background()

	p := NewProvider(kv, gen)
	first, err := p.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "device-a", first)

	second, err := p.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, ok, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "device-a", string(stored))
}

func TestProvider_LogsToGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p := NewProvider(store.NewMemory(), testutil.NewFixedGenerator("device-a"), WithLogger(logger))
	_, err := p.DeviceID(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "device id generated")
	assert.Contains(t, buf.String(), "device_id=device-a")

	buf.Reset()
	_, err = p.DeviceID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "cached id is not logged again")
}

func TestProvider_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	kv1, err := store.Open(path)
	require.NoError(t, err)
	id1, err := NewProvider(kv1, nil).DeviceID(ctx)
	require.NoError(t, err)
	require.NoError(t, kv1.Close())

	kv2, err := store.Open(path)
	require.NoError(t, err)
	defer kv2.Close()
	id2, err := NewProvider(kv2, testutil.NewFixedGenerator("device-other")).DeviceID(ctx)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestProvider_StorageFailureIsReported(t *testing.T) {
	kv := store.NewMemory()
	kv.FailWrites(errors.New("read-only medium"))

	_, err := NewProvider(kv, testutil.NewFixedGenerator("device-a")).DeviceID(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsStorageError(err))

	kv2 := store.NewMemory()
	kv2.FailReads(errors.New("unavailable"))
	_, err = NewProvider(kv2, nil).DeviceID(context.Background())
	assert.True(t, model.IsStorageError(err))
}
