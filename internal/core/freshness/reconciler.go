// Package freshness answers "what is the best data I have right now"
// for an entity, by comparing remote and local copies by timestamp
// rather than blindly preferring either source. It also owns the live
// document subscriptions and the notification fan-out.
package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/core/logging"
	"github.com/fieldops/fieldsync/internal/core/remote"
)

// SentinelOfflineSkip is returned by SubscribeToDocument when the
// device is offline at call time. No subscription exists behind it;
// passing it to UnsubscribeFromDocument is a no-op.
const SentinelOfflineSkip = "offline_skip"

const (
	cacheNamespace  = "cache"
	notifyNamespace = "notify"

	defaultRetention = 100
)

// Source identifies where a reconciled value came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// baseline is the persisted local copy of an entity. It is replaced
// wholesale on every reconciliation, never merged field by field.
type baseline struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Source    Source          `json:"source"`
}

// Request carries one reconciliation question. RemoteData is nil when
// the caller had no remote copy (offline or fetch failure); PreferSource
// breaks exact timestamp ties.
type Request[T any] struct {
	RemoteData      *T
	RemoteTimestamp time.Time
	LocalKey        string
	PreferSource    Source
}

// Result is the reconciled answer. Empty is true when neither source
// had data; the zero Data must not be used in that case.
type Result[T any] struct {
	Data      T
	Source    Source
	Timestamp time.Time
	IsFresh   bool
	Empty     bool
}

// Options configure the reconciler. Zero values take defaults.
type Options struct {
	// NotificationRetention bounds the kept notification history;
	// oldest entries are dropped beyond it.
	NotificationRetention int
}

// Reconciler merges remote and local state and fans out change
// notifications. Safe for concurrent use.
type Reconciler struct {
	cache  *localstore.Scoped[baseline]
	notes  *localstore.Scoped[Notification]
	remote remote.Store
	signal connectivity.Signal
	log    zerolog.Logger

	retention int
	now       func() time.Time
	newID     func() string

	notesOnce sync.Once

	mu            sync.Mutex
	keyLocks      map[string]*sync.Mutex
	subs          map[string]func()
	noteSubs      map[int]func(Notification)
	docHooks      map[int]func(DocumentUpdate)
	nextSubID     int
	notifications []Notification
}

// DocumentUpdate describes one change delivered on a live document
// subscription.
type DocumentUpdate struct {
	Collection string
	ID         string
	Timestamp  time.Time
}

// New constructs a reconciler over the given collaborators.
func New(store localstore.Store, remoteStore remote.Store, signal connectivity.Signal, opts Options) *Reconciler {
	if opts.NotificationRetention <= 0 {
		opts.NotificationRetention = defaultRetention
	}
	return &Reconciler{
		cache:     localstore.NewScoped[baseline](store, cacheNamespace),
		notes:     localstore.NewScoped[Notification](store, notifyNamespace),
		remote:    remoteStore,
		signal:    signal,
		log:       logging.Component("freshness"),
		retention: opts.NotificationRetention,
		now:       time.Now,
		newID:     uuid.NewString,
		keyLocks:  make(map[string]*sync.Mutex),
		subs:      make(map[string]func()),
		noteSubs:  make(map[int]func(Notification)),
		docHooks:  make(map[int]func(DocumentUpdate)),
	}
}

// Close cancels every live document subscription.
func (r *Reconciler) Close() {
	r.mu.Lock()
	cancels := make([]func(), 0, len(r.subs))
	for _, cancel := range r.subs {
		cancels = append(cancels, cancel)
	}
	r.subs = make(map[string]func())
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// keyLock returns the mutex serializing all writes and reconciliations
// for one local key.
func (r *Reconciler) keyLock(localKey string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.keyLocks[localKey]
	if !ok {
		lock = &sync.Mutex{}
		r.keyLocks[localKey] = lock
	}
	return lock
}

// GetFreshest reconciles a remote copy (if any) against the local
// baseline for req.LocalKey. A winning remote copy is written back as
// the new local baseline. When only the local copy exists it is
// returned with IsFresh false so the caller can surface a staleness
// hint. Neither source having data is not an error; the result is
// marked Empty.
func GetFreshest[T any](ctx context.Context, r *Reconciler, req Request[T]) (Result[T], error) {
	if req.LocalKey == "" {
		return Result[T]{}, errors.New("freshness: local key required")
	}

	lock := r.keyLock(req.LocalKey)
	lock.Lock()
	defer lock.Unlock()

	local, err := r.cache.Get(ctx, req.LocalKey)
	hasLocal := err == nil
	if err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return Result[T]{}, fmt.Errorf("freshness: read local baseline: %w", err)
	}

	if req.RemoteData == nil && !hasLocal {
		return Result[T]{Empty: true}, nil
	}

	remoteWins := false
	if req.RemoteData != nil {
		switch {
		case !hasLocal:
			remoteWins = true
		case req.RemoteTimestamp.After(local.Timestamp):
			remoteWins = true
		case req.RemoteTimestamp.Equal(local.Timestamp):
			remoteWins = req.PreferSource != SourceLocal
		}
	}

	if remoteWins {
		raw, err := json.Marshal(req.RemoteData)
		if err != nil {
			return Result[T]{}, fmt.Errorf("freshness: encode remote copy: %w", err)
		}
		entry := baseline{Data: raw, Timestamp: req.RemoteTimestamp, Source: SourceRemote}
		if err := r.cache.Set(ctx, req.LocalKey, entry); err != nil {
			return Result[T]{}, fmt.Errorf("freshness: write baseline: %w", err)
		}
		return Result[T]{
			Data:      *req.RemoteData,
			Source:    SourceRemote,
			Timestamp: req.RemoteTimestamp,
			IsFresh:   true,
		}, nil
	}

	var data T
	if err := json.Unmarshal(local.Data, &data); err != nil {
		return Result[T]{}, fmt.Errorf("freshness: decode local baseline %q: %w", req.LocalKey, err)
	}
	return Result[T]{
		Data:      data,
		Source:    SourceLocal,
		Timestamp: local.Timestamp,
		IsFresh:   false,
	}, nil
}

// SubscribeToDocument opens a live change subscription for one
// document. Incoming changes are written to the local baseline under
// localKey, forwarded to onUpdate, and raised as a notification. At
// most one subscription exists per (collection, id); subscribing again
// replaces the prior one. When offline the call performs no
// subscription and returns SentinelOfflineSkip.
func (r *Reconciler) SubscribeToDocument(ctx context.Context, collection, id, localKey string, onUpdate remote.UpdateHandler) (string, error) {
	if r.signal != nil {
		state, err := r.signal.Fetch(ctx)
		if err != nil || !state.Connected {
			r.log.Debug().Str("collection", collection).Str("id", id).Msg("subscribe skipped: offline")
			return SentinelOfflineSkip, nil
		}
	}

	key := collection + "/" + id

	// The feed outlives ctx; only the stored cancel func closes it.
	// Handler writes must keep landing after ctx ends, so they run on
	// a detached context.
	updateCtx := context.WithoutCancel(ctx)

	handler := func(data json.RawMessage, timestamp time.Time) {
		lock := r.keyLock(localKey)
		lock.Lock()
		entry := baseline{Data: data, Timestamp: timestamp, Source: SourceRemote}
		if err := r.cache.Set(updateCtx, localKey, entry); err != nil {
			r.log.Error().Err(err).Str("key", localKey).Msg("writing subscribed update failed")
		}
		if onUpdate != nil {
			onUpdate(data, timestamp)
		}
		lock.Unlock()

		r.mu.Lock()
		hooks := make([]func(DocumentUpdate), 0, len(r.docHooks))
		for _, fn := range r.docHooks {
			hooks = append(hooks, fn)
		}
		r.mu.Unlock()
		for _, fn := range hooks {
			fn(DocumentUpdate{Collection: collection, ID: id, Timestamp: timestamp})
		}

		r.PublishNotification(updateCtx, collection, id, "document updated remotely")
	}

	cancel, err := r.remote.Subscribe(ctx, collection, id, handler)
	if err != nil {
		return "", fmt.Errorf("freshness: subscribe %s: %w", key, err)
	}

	r.mu.Lock()
	prior := r.subs[key]
	r.subs[key] = cancel
	r.mu.Unlock()

	if prior != nil {
		prior()
	}

	r.log.Debug().Str("key", key).Msg("document subscription opened")
	return key, nil
}

// OnDocumentUpdate registers a hook invoked for every change delivered
// on any live document subscription. Returns an unsubscribe function.
func (r *Reconciler) OnDocumentUpdate(fn func(DocumentUpdate)) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.docHooks[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.docHooks, id)
		r.mu.Unlock()
	}
}

// UnsubscribeFromDocument closes the subscription behind key.
// Idempotent; unknown and sentinel keys are ignored.
func (r *Reconciler) UnsubscribeFromDocument(key string) {
	if key == "" || key == SentinelOfflineSkip {
		return
	}

	r.mu.Lock()
	cancel := r.subs[key]
	delete(r.subs, key)
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
