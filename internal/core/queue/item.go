// Package queue implements the durable, priority-ordered offline
// mutation queue. Mutations are persisted before Enqueue returns and
// drained against the remote store in priority order when online.
package queue

import (
	"encoding/json"
	"time"
)

// OpType identifies the kind of mutation an item carries.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Priority orders drain processing. P0 drains first.
type Priority int

const (
	P0 Priority = iota // must-sync-first, e.g. safety-critical state changes
	P1
	P2
	P3 // best-effort, e.g. analytics-adjacent writes
)

// String returns the display form, e.g. "P0".
func (p Priority) String() string {
	switch p {
	case P0:
		return "P0"
	case P1:
		return "P1"
	case P2:
		return "P2"
	case P3:
		return "P3"
	}
	return "P?"
}

// Valid reports whether p is one of the four defined tiers.
func (p Priority) Valid() bool {
	return p >= P0 && p <= P3
}

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// Item is one pending or failed mutation.
type Item struct {
	ID         string          `json:"id"`
	Op         OpType          `json:"op"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   Priority        `json:"priority"`
	Timestamp  time.Time       `json:"timestamp"`
	Seq        int64           `json:"seq"` // monotonic tie-break for equal timestamps
	RetryCount int             `json:"retryCount"`
	LastError  string          `json:"lastError,omitempty"`
	Status     Status          `json:"status"`
}

// SyncStatus is the derived aggregate over the current item set. It is
// recomputed after every queue mutation, never persisted.
type SyncStatus struct {
	PendingCount   int       `json:"pendingCount"`
	FailedCount    int       `json:"failedCount"`
	PriorityCounts [4]int    `json:"priorityCounts"` // pending items per tier
	IsSyncing      bool      `json:"isSyncing"`
	LastSyncTime   time.Time `json:"lastSyncTime"`
}

// DrainResult summarizes one completed drain cycle.
type DrainResult struct {
	Attempted int       `json:"attempted"`
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	Completed time.Time `json:"completed"`
}

// Mode selects the candidate set for a drain.
type Mode string

const (
	// ModeFull drains every pending item.
	ModeFull Mode = "full"
	// ModeIncremental drains only items enqueued after the last
	// successful drain completion.
	ModeIncremental Mode = "incremental"
)
