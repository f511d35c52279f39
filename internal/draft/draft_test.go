package draft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(t *testing.T) (*Cache, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	return New(store, DefaultTTL, WithClock(clock.now)), store, clock
}

func TestCache_LoadWithinTTL(t *testing.T) {
	ctx := context.Background()
	cache, _, clock := newTestCache(t)

	require.NoError(t, cache.Save(ctx, "e1", "v1", map[string]any{"name": "Alice"}))
	clock.t = clock.t.Add(90 * time.Minute)

	answers, ok, err := cache.Load(ctx, "e1", "v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", answers["name"])
}

func TestCache_ExpiredDraftIsDiscardedUnread(t *testing.T) {
	ctx := context.Background()
	cache, store, clock := newTestCache(t)

	require.NoError(t, cache.Save(ctx, "e1", "v1", map[string]any{"name": "Alice"}))
	clock.t = clock.t.Add(3 * time.Hour)

	answers, ok, err := cache.Load(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, answers)

	key, _ := Key("e1", "v1")
	_, stored, _ := store.Get(ctx, key)
	assert.False(t, stored, "expired draft must be cleared")
}

func TestCache_ExactlyAtTTLIsKept(t *testing.T) {
	ctx := context.Background()
	cache, _, clock := newTestCache(t)

	require.NoError(t, cache.Save(ctx, "e1", "v1", map[string]any{"a": "b"}))
	clock.t = clock.t.Add(DefaultTTL)

	_, ok, err := cache.Load(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_Discard(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newTestCache(t)

	require.NoError(t, cache.Save(ctx, "e1", "v1", map[string]any{"a": "b"}))
	require.NoError(t, cache.Discard(ctx, "e1", "v1"))
	require.NoError(t, cache.Discard(ctx, "e1", "v1"))

	_, ok, err := cache.Load(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_VisitorsAreIsolated(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newTestCache(t)

	require.NoError(t, cache.Save(ctx, "e1", "v1", map[string]any{"a": "1"}))

	_, ok, err := cache.Load(ctx, "e1", "v2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	_, err := Key(" ", "v1")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = Key("e1", " ")
	assert.ErrorIs(t, err, ErrMissingKey)

	k, err := Key("e1", "v1")
	require.NoError(t, err)
	assert.Equal(t, "event:e1:visitor:v1", k)
}

func TestCache_RejectsAnonymousVisitor(t *testing.T) {
	ctx := context.Background()
	cache, store, _ := newTestCache(t)

	assert.ErrorIs(t, cache.Save(ctx, "e1", "", map[string]any{"a": "b"}), ErrMissingKey)
	_, _, err := cache.Load(ctx, "e1", "")
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.ErrorIs(t, cache.Discard(ctx, "e1", ""), ErrMissingKey)
	assert.Empty(t, store.entries)
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(NewMemoryStore(), 0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
