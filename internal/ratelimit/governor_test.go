package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// plainStore hides any Updater implementation of the wrapped store.
type plainStore struct {
	Store
}

// recordingStore captures the TTL of the last write.
type recordingStore struct {
	*MemoryStore
	lastTTL time.Duration
}

func (s *recordingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.lastTTL = ttl
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, s.err
}

// conflictStore fails the first n updates with ErrConflict.
type conflictStore struct {
	*MemoryStore
	conflicts int
	calls     int
}

func (s *conflictStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	s.calls++
	if s.calls <= s.conflicts {
		return ErrConflict
	}
	return s.MemoryStore.Update(ctx, key, fn)
}

func newTestGovernor(store Store, cfg Config, now *time.Time) *Governor {
	g := NewGovernor(store, cfg, testLogger())
	g.now = func() time.Time { return *now }
	return g
}

func TestGovernor_RejectsOverLimit(t *testing.T) {
	stores := map[string]Store{
		"atomic": NewMemoryStore(),
		"plain":  plainStore{NewMemoryStore()},
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			g := newTestGovernor(store, Config{Limit: 100, Window: 60 * time.Second}, &now)
			ctx := context.Background()

			for i := 1; i <= 100; i++ {
				d, err := g.Admit(ctx, "1.2.3.4")
				require.NoError(t, err)
				require.True(t, d.Allowed, "request %d should be allowed", i)
				assert.Equal(t, i, d.Count)
			}

			now = now.Add(10 * time.Second)
			d, err := g.Admit(ctx, "1.2.3.4")
			require.NoError(t, err)
			assert.False(t, d.Allowed, "101st request should be rejected")
			assert.Equal(t, 101, d.Count)
			assert.Equal(t, 0, d.Remaining)
			assert.Equal(t, 50, d.RetryAfterSeconds())

			// Other clients have their own budget.
			d, err = g.Admit(ctx, "5.6.7.8")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		})
	}
}

func TestGovernor_FreshWindowAfterReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newTestGovernor(NewMemoryStore(), Config{Limit: 100, Window: 60 * time.Second}, &now)
	ctx := context.Background()

	for i := 0; i < 101; i++ {
		_, err := g.Admit(ctx, "client")
		require.NoError(t, err)
	}

	now = now.Add(61 * time.Second)
	d, err := g.Admit(ctx, "client")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, 99, d.Remaining)
	assert.Equal(t, now.Add(60*time.Second).UnixMilli(), d.ResetAt.UnixMilli())
}

func TestGovernor_ResetBoundaryIsInclusive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newTestGovernor(NewMemoryStore(), Config{Limit: 1, Window: 60 * time.Second}, &now)
	ctx := context.Background()

	_, err := g.Admit(ctx, "c")
	require.NoError(t, err)

	// now == reset-at still belongs to the old window.
	now = now.Add(60 * time.Second)
	d, err := g.Admit(ctx, "c")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Count)
}

func TestGovernor_TTLFloor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &recordingStore{MemoryStore: NewMemoryStore()}
	g := newTestGovernor(plainStore{store}, Config{Limit: 10, Window: 10 * time.Second, MinTTL: 60 * time.Second}, &now)

	_, err := g.Admit(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, store.lastTTL)

	g2 := newTestGovernor(plainStore{store}, Config{Limit: 10, Window: 5 * time.Minute, MinTTL: 60 * time.Second}, &now)
	_, err = g2.Admit(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, store.lastTTL)
}

func TestGovernor_CorruptRecordStartsFreshWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "rate:c", "{not json", time.Minute))

	g := newTestGovernor(store, Config{}, &now)
	d, err := g.Admit(context.Background(), "c")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestGovernor_PersistsRecordFormat(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore()
	g := newTestGovernor(store, Config{KeyPrefix: "rl:"}, &now)

	_, err := g.Admit(context.Background(), "c")
	require.NoError(t, err)

	raw, ok, err := store.Get(context.Background(), "rl:c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"count":1,"reset":1700000060000}`, raw)
}

func TestGovernor_StoreError(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	boom := errors.New("boom")
	g := newTestGovernor(plainStore{&failingStore{MemoryStore: NewMemoryStore(), err: boom}}, Config{}, &now)

	_, err := g.Admit(context.Background(), "c")
	assert.ErrorIs(t, err, boom)
}

func TestGovernor_RetriesConflicts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	store := &conflictStore{MemoryStore: NewMemoryStore(), conflicts: 2}
	g := newTestGovernor(store, Config{MaxConflictRetries: 3}, &now)
	d, err := g.Admit(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, 3, store.calls)

	always := &conflictStore{MemoryStore: NewMemoryStore(), conflicts: 100}
	g = newTestGovernor(always, Config{MaxConflictRetries: 2}, &now)
	_, err = g.Admit(context.Background(), "c")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 3, always.calls)
}

func TestDecision_RetryAfterRoundsUp(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_500)
	g := newTestGovernor(NewMemoryStore(), Config{Limit: 1, Window: 60 * time.Second}, &now)
	ctx := context.Background()

	_, _ = g.Admit(ctx, "c")
	now = now.Add(30*time.Second + 200*time.Millisecond)
	d, err := g.Admit(ctx, "c")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30, d.RetryAfterSeconds())
}
