package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/draft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	written := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, "event:e1", draft.Entry{
		Answers:   map[string]any{"name": "Alice", "topics": []any{"go", "sql"}},
		WrittenAt: written,
	}))

	entry, ok, err := store.Get(ctx, "event:e1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.Answers["name"])
	assert.Equal(t, []any{"go", "sql"}, entry.Answers["topics"])
	assert.True(t, written.Equal(entry.WrittenAt))

	require.NoError(t, store.Set(ctx, "event:e1", draft.Entry{
		Answers:   map[string]any{"name": "Bob"},
		WrittenAt: written.Add(time.Minute),
	}))
	entry, _, err = store.Get(ctx, "event:e1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", entry.Answers["name"])

	require.NoError(t, store.Clear(ctx, "event:e1"))
	_, ok, err = store.Get(ctx, "event:e1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheOverSQLiteExpiresDrafts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cache := draft.New(openTestStore(t), draft.DefaultTTL, draft.WithClock(func() time.Time { return now }))

	require.NoError(t, cache.Save(ctx, "e1", "v1", map[string]any{"company": "Acme"}))

	now = now.Add(3 * time.Hour)
	answers, ok, err := cache.Load(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, answers)
}
