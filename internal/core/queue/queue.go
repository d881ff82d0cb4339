package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/core/logging"
	"github.com/fieldops/fieldsync/internal/core/remote"
)

const (
	itemNamespace = "queue"
	metaNamespace = "queue-meta"
	lastSyncKey   = "last_sync"
)

// Options configure queue behavior. Zero values take defaults.
type Options struct {
	// MaxRetries bounds attempts per item before it is parked as failed.
	MaxRetries int
	// RetryBackoff is the pause after a failed item attempt before the
	// drain moves to the next item.
	RetryBackoff time.Duration
	// RemoteTimeout bounds each remote call during a drain.
	RemoteTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = 10 * time.Second
	}
}

// Queue is the offline mutation queue. All exported methods are safe
// for concurrent use; drains are single-flight.
type Queue struct {
	local  *localstore.Scoped[Item]
	meta   *localstore.Scoped[time.Time]
	remote remote.Store
	signal connectivity.Signal
	opts   Options
	log    zerolog.Logger

	now   func() time.Time
	newID func() string

	initOnce sync.Once

	mu          sync.Mutex
	items       map[string]*Item
	nextSeq     int64
	syncing     bool
	lastSync    time.Time
	subscribers map[int]func(SyncStatus)
	drainHooks  map[int]func(DrainResult)
	nextSubID   int

	unsubscribeSignal func()
}

// New constructs a queue over the given collaborators. The queue
// registers a connectivity listener that triggers one full drain on
// each offline-to-online transition; Close releases it.
func New(store localstore.Store, remoteStore remote.Store, signal connectivity.Signal, opts Options) *Queue {
	opts.applyDefaults()

	q := &Queue{
		local:       localstore.NewScoped[Item](store, itemNamespace),
		meta:        localstore.NewScoped[time.Time](store, metaNamespace),
		remote:      remoteStore,
		signal:      signal,
		opts:        opts,
		log:         logging.Component("queue"),
		now:         time.Now,
		newID:       uuid.NewString,
		items:       make(map[string]*Item),
		subscribers: make(map[int]func(SyncStatus)),
		drainHooks:  make(map[int]func(DrainResult)),
	}

	if signal != nil {
		q.unsubscribeSignal = signal.AddListener(func(state connectivity.State) {
			if !state.Connected {
				return
			}
			go func() {
				if err := q.SyncQueue(context.Background(), ModeFull); err != nil {
					q.log.Error().Err(err).Msg("connectivity-triggered drain failed")
				}
			}()
		})
	}

	return q
}

// Close releases the connectivity listener.
func (q *Queue) Close() {
	if q.unsubscribeSignal != nil {
		q.unsubscribeSignal()
	}
}

// init rehydrates the persisted item set on first use. Corrupt entries
// are logged and dropped rather than crashing the queue; a failed
// storage read leaves the queue empty.
func (q *Queue) init(ctx context.Context) {
	q.initOnce.Do(func() {
		persisted, corrupt, err := q.local.GetAll(ctx)
		if err != nil {
			q.log.Error().Err(err).Msg("queue rehydration failed, starting empty")
			return
		}
		for key, decodeErr := range corrupt {
			q.log.Error().Err(decodeErr).Str("key", key).Msg("dropping corrupt queue item")
		}

		q.mu.Lock()
		defer q.mu.Unlock()
		for id, item := range persisted {
			it := item
			// A process death mid-drain leaves items marked syncing.
			if it.Status == StatusSyncing {
				it.Status = StatusPending
			}
			q.items[id] = &it
			if it.Seq >= q.nextSeq {
				q.nextSeq = it.Seq + 1
			}
		}

		if last, err := q.meta.Get(ctx, lastSyncKey); err == nil {
			q.lastSync = last
		}

		q.log.Debug().Int("items", len(q.items)).Msg("queue rehydrated")
	})
}

// Enqueue durably records a mutation and returns its id. It never
// touches the network; the only failure mode is local storage, which
// is surfaced to the caller because the mutation would otherwise be
// lost.
func (q *Queue) Enqueue(ctx context.Context, op OpType, entityType, entityID string, payload json.RawMessage, priority Priority) (string, error) {
	if !priority.Valid() {
		return "", fmt.Errorf("enqueue: invalid priority %d", priority)
	}
	q.init(ctx)

	q.mu.Lock()
	item := Item{
		ID:         q.newID(),
		Op:         op,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		Priority:   priority,
		Timestamp:  q.now(),
		Seq:        q.nextSeq,
		Status:     StatusPending,
	}
	q.nextSeq++
	q.mu.Unlock()

	if err := q.local.Set(ctx, item.ID, item); err != nil {
		return "", fmt.Errorf("enqueue persist: %w", err)
	}

	q.mu.Lock()
	q.items[item.ID] = &item
	status := q.statusLocked()
	q.mu.Unlock()

	q.log.Debug().
		Str("id", item.ID).
		Str("entity_type", entityType).
		Str("priority", priority.String()).
		Msg("mutation enqueued")

	q.broadcast(status)
	return item.ID, nil
}

// SyncQueue drains eligible pending items against the remote store.
// If a drain is already in flight the call is a no-op; if offline it
// defers. Items are attempted sequentially in (priority, timestamp)
// order so that mutations against the same document apply in
// submission order. Per-item failures are recorded on the item, never
// returned; callers observe them via SyncStatus.
func (q *Queue) SyncQueue(ctx context.Context, mode Mode) error {
	q.init(ctx)

	if q.signal != nil {
		state, err := q.signal.Fetch(ctx)
		if err != nil || !state.Connected {
			q.log.Debug().Msg("drain deferred: offline")
			return nil
		}
	}

	q.mu.Lock()
	if q.syncing {
		q.mu.Unlock()
		return nil
	}
	q.syncing = true
	candidates := q.candidatesLocked(mode)
	q.mu.Unlock()

	drainID := q.newID()
	ctx = logging.WithDrainID(ctx, drainID)
	log := q.log.With().Str("drain_id", drainID).Logger()
	log.Info().Int("candidates", len(candidates)).Str("mode", string(mode)).Msg("drain started")

	result := DrainResult{Attempted: len(candidates)}

	for i, id := range candidates {
		if ctx.Err() != nil {
			result.Attempted = i
			break
		}
		if q.drainOne(ctx, log, id) {
			result.Synced++
		} else {
			result.Failed++
			// Pause before the next attempt; a cancelled context ends
			// the drain between items, never mid-item.
			select {
			case <-ctx.Done():
			case <-time.After(q.opts.RetryBackoff):
			}
		}
	}

	completed := q.now()
	result.Completed = completed

	q.mu.Lock()
	q.syncing = false
	q.lastSync = completed
	status := q.statusLocked()
	hooks := make([]func(DrainResult), 0, len(q.drainHooks))
	for _, fn := range q.drainHooks {
		hooks = append(hooks, fn)
	}
	q.mu.Unlock()

	if err := q.meta.Set(ctx, lastSyncKey, completed); err != nil {
		log.Error().Err(err).Msg("persisting last sync time failed")
	}

	log.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Msg("drain complete")

	// One broadcast per drain, not per item.
	q.broadcast(status)
	for _, fn := range hooks {
		fn(result)
	}
	return nil
}

// candidatesLocked selects and orders the ids eligible for a drain.
func (q *Queue) candidatesLocked(mode Mode) []string {
	eligible := make([]*Item, 0, len(q.items))
	for _, item := range q.items {
		if item.Status != StatusPending {
			continue
		}
		if mode == ModeIncremental && !item.Timestamp.After(q.lastSync) {
			continue
		}
		eligible = append(eligible, item)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})

	ids := make([]string, len(eligible))
	for i, item := range eligible {
		ids[i] = item.ID
	}
	return ids
}

// drainOne attempts a single item and updates its bookkeeping.
// Returns true on success.
func (q *Queue) drainOne(ctx context.Context, log zerolog.Logger, id string) bool {
	q.mu.Lock()
	item, ok := q.items[id]
	if !ok || item.Status != StatusPending {
		q.mu.Unlock()
		return false
	}
	item.Status = StatusSyncing
	snapshot := *item
	q.mu.Unlock()

	err := q.apply(logging.WithEntityID(ctx, snapshot.EntityID), snapshot)
	if err == nil {
		q.mu.Lock()
		delete(q.items, id)
		q.mu.Unlock()
		if rmErr := q.local.Remove(ctx, id); rmErr != nil {
			log.Error().Err(rmErr).Str("id", id).Msg("removing synced item from storage failed")
		}
		return true
	}

	if !remote.IsRetryable(err) {
		// Cancellation is not a failure; put the item back untouched.
		q.mu.Lock()
		item.Status = StatusPending
		q.mu.Unlock()
		return false
	}

	q.mu.Lock()
	item.RetryCount++
	item.LastError = err.Error()
	if item.RetryCount >= q.opts.MaxRetries {
		item.Status = StatusFailed
		log.Warn().
			Str("id", id).
			Str("entity_type", item.EntityType).
			Int("retries", item.RetryCount).
			Err(err).
			Msg("item parked as failed")
	} else {
		item.Status = StatusPending
	}
	snapshot = *item
	q.mu.Unlock()

	if perErr := q.local.Set(ctx, id, snapshot); perErr != nil {
		log.Error().Err(perErr).Str("id", id).Msg("persisting item retry state failed")
	}
	return false
}

// apply performs the remote call for one item with a bounded timeout.
func (q *Queue) apply(ctx context.Context, item Item) error {
	callCtx, cancel := context.WithTimeout(ctx, q.opts.RemoteTimeout)
	defer cancel()

	switch item.Op {
	case OpCreate, OpUpdate:
		return q.remote.Update(callCtx, item.EntityType, item.EntityID, item.Payload)
	case OpDelete:
		return q.remote.Delete(callCtx, item.EntityType, item.EntityID)
	default:
		return fmt.Errorf("unknown operation %q", item.Op)
	}
}

// RetryFailedItems resets every failed item to pending with a fresh
// retry budget, then triggers a full drain.
func (q *Queue) RetryFailedItems(ctx context.Context) error {
	q.init(ctx)

	q.mu.Lock()
	var reset []Item
	for _, item := range q.items {
		if item.Status != StatusFailed {
			continue
		}
		item.Status = StatusPending
		item.RetryCount = 0
		item.LastError = ""
		reset = append(reset, *item)
	}
	status := q.statusLocked()
	q.mu.Unlock()

	for _, item := range reset {
		if err := q.local.Set(ctx, item.ID, item); err != nil {
			return fmt.Errorf("retry failed items: %w", err)
		}
	}

	if len(reset) > 0 {
		q.log.Info().Int("count", len(reset)).Msg("failed items reset for retry")
		q.broadcast(status)
	}

	return q.SyncQueue(ctx, ModeFull)
}

// ClearFailedItems permanently discards all failed items without
// attempting them again. This is an explicit data-loss acknowledgment
// reserved for the operator surface.
func (q *Queue) ClearFailedItems(ctx context.Context) error {
	q.init(ctx)

	q.mu.Lock()
	var ids []string
	for id, item := range q.items {
		if item.Status == StatusFailed {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(q.items, id)
	}
	status := q.statusLocked()
	q.mu.Unlock()

	for _, id := range ids {
		if err := q.local.Remove(ctx, id); err != nil {
			return fmt.Errorf("clear failed items: %w", err)
		}
	}

	if len(ids) > 0 {
		q.log.Warn().Int("count", len(ids)).Msg("failed items discarded")
		q.broadcast(status)
	}
	return nil
}

// Status returns the current aggregate.
func (q *Queue) Status(ctx context.Context) SyncStatus {
	q.init(ctx)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// Items returns a copy of all queued items in drain order.
func (q *Queue) Items(ctx context.Context) []Item {
	q.init(ctx)

	q.mu.Lock()
	out := make([]Item, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, *item)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
	return out
}

// Subscribe registers a status callback invoked after queue mutations
// and once per completed drain. Returns an unsubscribe function.
func (q *Queue) Subscribe(fn func(SyncStatus)) func() {
	q.mu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.subscribers[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.subscribers, id)
		q.mu.Unlock()
	}
}

// OnDrainComplete registers a hook invoked once per completed drain.
func (q *Queue) OnDrainComplete(fn func(DrainResult)) func() {
	q.mu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.drainHooks[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.drainHooks, id)
		q.mu.Unlock()
	}
}

func (q *Queue) statusLocked() SyncStatus {
	status := SyncStatus{
		IsSyncing:    q.syncing,
		LastSyncTime: q.lastSync,
	}
	for _, item := range q.items {
		switch item.Status {
		case StatusFailed:
			status.FailedCount++
		default:
			status.PendingCount++
			status.PriorityCounts[item.Priority]++
		}
	}
	return status
}

func (q *Queue) broadcast(status SyncStatus) {
	q.mu.Lock()
	fns := make([]func(SyncStatus), 0, len(q.subscribers))
	for _, fn := range q.subscribers {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}
