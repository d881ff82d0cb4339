// Package lockcache fronts the remote edit-lock authorization check
// with a TTL-bound cache so list screens do not pay a network round
// trip per rendered row.
package lockcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/core/logging"
	"github.com/fieldops/fieldsync/internal/core/remote"
)

const lockNamespace = "lock"

// Entry is one cached authorization snapshot. An entry older than the
// TTL is treated as absent, never served.
type Entry struct {
	EntityID        string    `json:"entityId"`
	IsLocked        bool      `json:"isLocked"`
	EverApproved    bool      `json:"everApproved"`
	AccessRequested bool      `json:"accessRequested"`
	Status          string    `json:"status"`
	CachedAt        time.Time `json:"cachedAt"`
}

// lockRecord is the remote document shape for one entity's lock state.
type lockRecord struct {
	Status          string `json:"status"`
	EverApproved    bool   `json:"everApproved"`
	AccessRequested bool   `json:"accessRequested"`
}

// Options configure the cache. Zero values take defaults.
type Options struct {
	// TTL bounds how long a cached entry may be served.
	TTL time.Duration
	// Collection is the remote collection holding lock records.
	Collection string
}

func (o *Options) applyDefaults() {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Collection == "" {
		o.Collection = "work_item_locks"
	}
}

// Cache is the TTL lock cache. Safe for concurrent use; expiry is
// evaluated lazily on read, there is no background sweep.
type Cache struct {
	local  *localstore.Scoped[Entry]
	remote remote.Store
	opts   Options
	log    zerolog.Logger

	now func() time.Time

	initOnce sync.Once

	mu      sync.Mutex
	entries map[string]Entry
}

// New constructs a cache over the given collaborators.
func New(store localstore.Store, remoteStore remote.Store, opts Options) *Cache {
	opts.applyDefaults()
	return &Cache{
		local:   localstore.NewScoped[Entry](store, lockNamespace),
		remote:  remoteStore,
		opts:    opts,
		log:     logging.Component("lockcache"),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

func (c *Cache) init(ctx context.Context) {
	c.initOnce.Do(func() {
		persisted, corrupt, err := c.local.GetAll(ctx)
		if err != nil {
			c.log.Error().Err(err).Msg("lock cache rehydration failed, starting empty")
			return
		}
		for key, decodeErr := range corrupt {
			c.log.Error().Err(decodeErr).Str("key", key).Msg("dropping corrupt lock entry")
		}

		c.mu.Lock()
		for id, entry := range persisted {
			c.entries[id] = entry
		}
		c.mu.Unlock()
	})
}

// Get returns the cached entry for id if it is still within the TTL.
// Expired entries are treated as absent; they are left in place for
// the next CheckLockState to overwrite.
func (c *Cache) Get(ctx context.Context, id string) (Entry, bool) {
	c.init(ctx)

	c.mu.Lock()
	entry, ok := c.entries[id]
	c.mu.Unlock()

	if !ok || c.now().Sub(entry.CachedAt) >= c.opts.TTL {
		return Entry{}, false
	}
	return entry, true
}

// CheckLockState performs the remote authorization check for id and
// caches the result with a fresh CachedAt. An entity is locked unless
// it has ever been approved; approval permanently unlocks it
// regardless of current status. Cancellation before the remote call
// resolves means no cache write and no value.
func (c *Cache) CheckLockState(ctx context.Context, id string) (Entry, error) {
	c.init(ctx)

	doc, err := c.remote.Get(ctx, c.opts.Collection, id)
	if err != nil {
		return Entry{}, fmt.Errorf("check lock state %q: %w", id, err)
	}
	if ctx.Err() != nil {
		return Entry{}, ctx.Err()
	}

	var record lockRecord
	if err := json.Unmarshal(doc.Data, &record); err != nil {
		return Entry{}, fmt.Errorf("check lock state %q: decode record: %w", id, err)
	}

	everApproved := record.EverApproved || record.Status == "approved"
	entry := Entry{
		EntityID:        id,
		IsLocked:        !everApproved,
		EverApproved:    everApproved,
		AccessRequested: record.AccessRequested,
		Status:          record.Status,
		CachedAt:        c.now(),
	}

	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()

	if err := c.local.Set(ctx, id, entry); err != nil {
		c.log.Error().Err(err).Str("id", id).Msg("persisting lock entry failed")
	}
	return entry, nil
}

// Prefetch checks ids concurrently to warm the cache for a list
// screen. Per-id failures are logged and swallowed; one bad id must
// not fail the batch.
func (c *Cache) Prefetch(ctx context.Context, ids []string) {
	c.init(ctx)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.CheckLockState(ctx, id); err != nil {
				c.log.Warn().Err(err).Str("id", id).Msg("lock prefetch failed")
			}
		}()
	}
	wg.Wait()
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	c.init(ctx)

	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()

	if err := c.local.Remove(ctx, id); err != nil {
		return fmt.Errorf("invalidate lock entry %q: %w", id, err)
	}
	return nil
}

// ClearAll drops every entry. Idempotent.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.init(ctx)

	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	if err := c.local.RemoveAll(ctx); err != nil {
		return fmt.Errorf("clear lock cache: %w", err)
	}
	return nil
}
