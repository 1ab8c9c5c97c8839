package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/comande/internal/store"
)

// openTestStore connects to the database named by COMANDE_TEST_POSTGRES_DSN
// and skips the test when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("COMANDE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("COMANDE_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM comande_kv WHERE key LIKE 'pgstore-test-%'`)
		s.Close()
	})
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "pgstore-test-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutAll(ctx, []store.Entry{
		{Key: "pgstore-test-a", Value: []byte("1")},
		{Key: "pgstore-test-b", Value: []byte("2")},
	}))
	require.NoError(t, s.Put(ctx, "pgstore-test-a", []byte("3")))

	v, ok, err := s.Get(ctx, "pgstore-test-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(v))
}

func TestOpen_BadDSN(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, "postgres://nobody@127.0.0.1:1/none")
	assert.Error(t, err)
}

func TestClose_Nil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
