package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestScoped_SetAndGet(t *testing.T) {
	ctx := context.Background()
	scoped := NewScoped[record](NewMemory(), "queue")

	require.NoError(t, scoped.Set(ctx, "item-1", record{Name: "pump", Count: 2}))

	got, err := scoped.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "pump", got.Name)
	assert.Equal(t, 2, got.Count)
}

func TestScoped_GetNotFound(t *testing.T) {
	ctx := context.Background()
	scoped := NewScoped[record](NewMemory(), "queue")

	_, err := scoped.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScoped_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	queueNS := NewScoped[record](store, "queue")
	lockNS := NewScoped[record](store, "lock")

	require.NoError(t, queueNS.Set(ctx, "shared-key", record{Name: "from-queue"}))
	require.NoError(t, lockNS.Set(ctx, "shared-key", record{Name: "from-lock"}))

	q, err := queueNS.Get(ctx, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "from-queue", q.Name)

	l, err := lockNS.Get(ctx, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "from-lock", l.Name)
}

func TestScoped_GetAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	scoped := NewScoped[record](store, "queue")

	require.NoError(t, scoped.Set(ctx, "a", record{Count: 1}))
	require.NoError(t, scoped.Set(ctx, "b", record{Count: 2}))

	// A key from another namespace must not leak in.
	require.NoError(t, store.Set(ctx, "lock:c", `{"count":3}`))

	all, corrupt, err := scoped.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, corrupt)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, all["a"].Count)
	assert.Equal(t, 2, all["b"].Count)
}

func TestScoped_GetAll_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	scoped := NewScoped[record](store, "queue")

	require.NoError(t, scoped.Set(ctx, "good", record{Count: 1}))
	require.NoError(t, store.Set(ctx, "queue:bad", "{not json"))

	all, corrupt, err := scoped.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, corrupt, "bad")
}

func TestScoped_RemoveAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	scoped := NewScoped[record](store, "notify")

	require.NoError(t, scoped.Set(ctx, "a", record{}))
	require.NoError(t, scoped.Set(ctx, "b", record{}))
	require.NoError(t, store.Set(ctx, "queue:keep", "{}"))

	require.NoError(t, scoped.RemoveAll(ctx))

	keys, err := scoped.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = store.Get(ctx, "queue:keep")
	assert.NoError(t, err)
}
