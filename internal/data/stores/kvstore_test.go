package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/data/db"
)

func newTestKVStore(t *testing.T) *KVStore {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewKVStore(database)
}

func TestKVStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "queue:item:1", `{"id":"1"}`))

	got, err := store.Get(ctx, "queue:item:1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, got)
}

func TestKVStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	_, err := store.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestKVStore_SetOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "key", "first"))
	require.NoError(t, store.Set(ctx, "key", "second"))

	got, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestKVStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "key", "value"))
	require.NoError(t, store.Remove(ctx, "key"))

	_, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, localstore.ErrNotFound)

	// Removing again is not an error.
	assert.NoError(t, store.Remove(ctx, "key"))
}

func TestKVStore_MultiGet(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))

	got, err := store.MultiGet(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestKVStore_MultiGetEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	got, err := store.MultiGet(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKVStore_MultiRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Set(ctx, "c", "3"))

	require.NoError(t, store.MultiRemove(ctx, []string{"a", "b"}))

	keys, err := store.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)
}

func TestKVStore_GetAllKeys_Sorted(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "c", "3"))

	keys, err := store.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestKVStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	database, err := db.Open(dir)
	require.NoError(t, err)
	store := NewKVStore(database)
	require.NoError(t, store.Set(ctx, "queue:item:1", "persisted"))
	require.NoError(t, database.Close())

	database, err = db.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	got, err := NewKVStore(database).Get(ctx, "queue:item:1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}
