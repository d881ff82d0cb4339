package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/core/remote"
)

// fakeRemote records calls and fails according to failAll.
type fakeRemote struct {
	mu      sync.Mutex
	failAll bool
	calls   []string // "<op> <collection>/<id>"
}

var _ remote.Store = (*fakeRemote)(nil)

func (f *fakeRemote) record(op, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s %s/%s", op, collection, id))
	if f.failAll {
		return &remote.TransientError{Err: errors.New("connection reset")}
	}
	return nil
}

func (f *fakeRemote) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) Get(_ context.Context, collection, id string) (remote.Document, error) {
	return remote.Document{}, remote.ErrNotFound
}

func (f *fakeRemote) Query(_ context.Context, _ string, _ ...remote.Filter) ([]remote.Document, error) {
	return nil, nil
}

func (f *fakeRemote) Update(_ context.Context, collection, id string, _ json.RawMessage) error {
	return f.record("update", collection, id)
}

func (f *fakeRemote) Delete(_ context.Context, collection, id string) error {
	return f.record("delete", collection, id)
}

func (f *fakeRemote) Subscribe(_ context.Context, _, _ string, _ remote.UpdateHandler) (func(), error) {
	return func() {}, nil
}

func newTestQueue(t *testing.T, rem remote.Store, signal connectivity.Signal) (*Queue, localstore.Store) {
	t.Helper()
	store := localstore.NewMemory()
	q := New(store, rem, signal, Options{RetryBackoff: time.Millisecond})
	t.Cleanup(q.Close)
	return q, store
}

func TestQueue_EnqueueCountsItems(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, &fakeRemote{}, connectivity.NewManual(false))

	for i := range 3 {
		_, err := q.Enqueue(ctx, OpUpdate, "work_items", fmt.Sprintf("wi-%d", i), json.RawMessage(`{}`), P1)
		require.NoError(t, err)
	}

	assert.Len(t, q.Items(ctx), 3)
	status := q.Status(ctx)
	assert.Equal(t, 3, status.PendingCount)
	assert.Equal(t, 3, status.PriorityCounts[P1])
	assert.Zero(t, status.FailedCount)
}

func TestQueue_EnqueueInvalidPriority(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, &fakeRemote{}, connectivity.NewManual(false))

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, Priority(7))
	assert.Error(t, err)
}

func TestQueue_EnqueuePersistsBeforeReturn(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t, &fakeRemote{}, connectivity.NewManual(false))

	id, err := q.Enqueue(ctx, OpCreate, "work_items", "wi-1", json.RawMessage(`{"state":"open"}`), P0)
	require.NoError(t, err)

	raw, err := store.Get(ctx, "queue:"+id)
	require.NoError(t, err)

	var persisted Item
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, StatusPending, persisted.Status)
	assert.Equal(t, "wi-1", persisted.EntityID)
}

func TestQueue_SyncQueueDrainsAll(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", json.RawMessage(`{}`), P1)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, OpDelete, "work_items", "wi-2", nil, P1)
	require.NoError(t, err)

	require.NoError(t, q.SyncQueue(ctx, ModeFull))

	status := q.Status(ctx)
	assert.Zero(t, status.PendingCount)
	assert.False(t, status.LastSyncTime.IsZero())
	assert.Equal(t, []string{"update work_items/wi-1", "delete work_items/wi-2"}, rem.recorded())
}

func TestQueue_PriorityOrdering(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	// Enqueued as P2, P0, P3, P0: drain order must be both P0s (FIFO),
	// then P2, then P3.
	for _, tc := range []struct {
		id string
		p  Priority
	}{
		{"a", P2}, {"b", P0}, {"c", P3}, {"d", P0},
	} {
		_, err := q.Enqueue(ctx, OpUpdate, "work_items", tc.id, nil, tc.p)
		require.NoError(t, err)
	}

	require.NoError(t, q.SyncQueue(ctx, ModeFull))

	assert.Equal(t, []string{
		"update work_items/b",
		"update work_items/d",
		"update work_items/a",
		"update work_items/c",
	}, rem.recorded())
}

func TestQueue_RetryCountIncrementsPerDrain(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{failAll: true}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P1)
	require.NoError(t, err)

	require.NoError(t, q.SyncQueue(ctx, ModeFull))
	items := q.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.Equal(t, StatusPending, items[0].Status)
	assert.NotEmpty(t, items[0].LastError)

	require.NoError(t, q.SyncQueue(ctx, ModeFull))
	require.NoError(t, q.SyncQueue(ctx, ModeFull))

	// Default max retries is 3: the item is now parked as failed.
	items = q.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].RetryCount)
	assert.Equal(t, StatusFailed, items[0].Status)

	status := q.Status(ctx)
	assert.Zero(t, status.PendingCount)
	assert.Equal(t, 1, status.FailedCount)

	// Failed items are excluded from further automatic drains.
	before := len(rem.recorded())
	require.NoError(t, q.SyncQueue(ctx, ModeFull))
	assert.Len(t, rem.recorded(), before)
}

func TestQueue_RetryFailedItems(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{failAll: true}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P1)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, q.SyncQueue(ctx, ModeFull))
	}
	require.Equal(t, 1, q.Status(ctx).FailedCount)

	// Remote recovers; retry resets the budget and drains clean.
	rem.mu.Lock()
	rem.failAll = false
	rem.mu.Unlock()

	require.NoError(t, q.RetryFailedItems(ctx))

	status := q.Status(ctx)
	assert.Zero(t, status.FailedCount)
	assert.Zero(t, status.PendingCount)
}

func TestQueue_ClearFailedItems(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{failAll: true}
	q, store := newTestQueue(t, rem, connectivity.NewManual(true))

	id, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P1)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, q.SyncQueue(ctx, ModeFull))
	}
	require.Equal(t, 1, q.Status(ctx).FailedCount)

	require.NoError(t, q.ClearFailedItems(ctx))

	assert.Empty(t, q.Items(ctx))
	assert.Zero(t, q.Status(ctx).FailedCount)

	_, err = store.Get(ctx, "queue:"+id)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestQueue_OfflineDefersDrain(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(false))

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P0)
	require.NoError(t, err)

	require.NoError(t, q.SyncQueue(ctx, ModeFull))

	assert.Empty(t, rem.recorded())
	assert.Equal(t, 1, q.Status(ctx).PendingCount)
}

func TestQueue_OnlineTransitionTriggersDrain(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{}
	signal := connectivity.NewManual(false)
	q, _ := newTestQueue(t, rem, signal)

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P0)
	require.NoError(t, err)

	signal.SetOnline(true)

	require.Eventually(t, func() bool {
		return q.Status(ctx).PendingCount == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"update work_items/wi-1"}, rem.recorded())
}

func TestQueue_IncrementalSkipsOldItems(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return clock }

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "old", nil, P1)
	require.NoError(t, err)

	// A full drain would sync "old", but make it fail once so it stays
	// pending with a timestamp before lastSync.
	rem.mu.Lock()
	rem.failAll = true
	rem.mu.Unlock()
	clock = clock.Add(time.Minute)
	require.NoError(t, q.SyncQueue(ctx, ModeFull))
	rem.mu.Lock()
	rem.failAll = false
	rem.calls = nil
	rem.mu.Unlock()

	clock = clock.Add(time.Minute)
	_, err = q.Enqueue(ctx, OpUpdate, "work_items", "new", nil, P1)
	require.NoError(t, err)

	require.NoError(t, q.SyncQueue(ctx, ModeIncremental))

	assert.Equal(t, []string{"update work_items/new"}, rem.recorded())
	assert.Equal(t, 1, q.Status(ctx).PendingCount) // "old" untouched
}

func TestQueue_RehydratesAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemory()
	rem := &fakeRemote{}

	q1 := New(store, rem, connectivity.NewManual(false), Options{})
	_, err := q1.Enqueue(ctx, OpUpdate, "work_items", "wi-1", json.RawMessage(`{"a":1}`), P2)
	require.NoError(t, err)
	q1.Close()

	q2 := New(store, rem, connectivity.NewManual(false), Options{})
	defer q2.Close()

	items := q2.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, "wi-1", items[0].EntityID)
	assert.Equal(t, P2, items[0].Priority)
}

func TestQueue_RehydrationDropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemory()
	require.NoError(t, store.Set(ctx, "queue:bad", "{corrupt"))

	q := New(store, &fakeRemote{}, connectivity.NewManual(false), Options{})
	defer q.Close()

	assert.Empty(t, q.Items(ctx))
}

func TestQueue_StatusBroadcastOncePerDrain(t *testing.T) {
	ctx := context.Background()
	rem := &fakeRemote{}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	for i := range 5 {
		_, err := q.Enqueue(ctx, OpUpdate, "work_items", fmt.Sprintf("wi-%d", i), nil, P1)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	var broadcasts []SyncStatus
	unsub := q.Subscribe(func(s SyncStatus) {
		mu.Lock()
		broadcasts = append(broadcasts, s)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, q.SyncQueue(ctx, ModeFull))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, broadcasts, 1)
	assert.Zero(t, broadcasts[0].PendingCount)
}

func TestQueue_DrainHookFires(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, &fakeRemote{}, connectivity.NewManual(true))

	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P0)
	require.NoError(t, err)

	var result DrainResult
	unsub := q.OnDrainComplete(func(r DrainResult) { result = r })
	defer unsub()

	require.NoError(t, q.SyncQueue(ctx, ModeFull))

	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Synced)
	assert.Zero(t, result.Failed)
}

func TestQueue_CancelledDrainLeavesItemsPending(t *testing.T) {
	rem := &fakeRemote{failAll: true}
	q, _ := newTestQueue(t, rem, connectivity.NewManual(true))

	ctx := context.Background()
	_, err := q.Enqueue(ctx, OpUpdate, "work_items", "wi-1", nil, P1)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, q.SyncQueue(cancelled, ModeFull))

	items := q.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, StatusPending, items[0].Status)
	assert.Zero(t, items[0].RetryCount)
}
