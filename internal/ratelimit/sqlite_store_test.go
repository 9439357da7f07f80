package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_GetSet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v1", time.Minute))
	require.NoError(t, store.Set(ctx, "k", "v2", time.Minute))

	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	now = now.Add(time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should be expired")
}

func TestSQLiteStore_UpdateAndSweep(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		err := store.Update(ctx, "k", func(current string, exists bool) (string, time.Duration, error) {
			return current + "x", time.Minute, nil
		})
		require.NoError(t, err)
	}
	v, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "xx", v)

	require.NoError(t, store.Set(ctx, "short", "v", time.Second))
	now = now.Add(2 * time.Second)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	g := NewGovernor(store, Config{Limit: 5}, testLogger())
	_, err = g.Admit(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	g = NewGovernor(reopened, Config{Limit: 5}, testLogger())
	d, err := g.Admit(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Count)
	require.NoError(t, reopened.Ping(ctx))
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", time.Second))
	require.NoError(t, store.Set(ctx, "b", "1", time.Hour))
	now = now.Add(2 * time.Second)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}
