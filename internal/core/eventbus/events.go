// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within fieldsync.
package eventbus

import (
	"time"

	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/freshness"
	"github.com/fieldops/fieldsync/internal/core/queue"
)

// Events defines all event types and their payload structs.
var Events = map[string]any{
	// Keep list sorted A-Z
	"connectivity.changed":   ConnectivityChangedPayload{},
	"document.updated":       DocumentUpdatedPayload{},
	"notification.published": NotificationPublishedPayload{},
	"queue.status-changed":   QueueStatusChangedPayload{},
	"sync.completed":         SyncCompletedPayload{},
}

// Level grades a published notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// ConnectivityChangedPayload is emitted on every connectivity transition.
type ConnectivityChangedPayload struct {
	State connectivity.State
}

// QueueStatusChangedPayload is emitted when the queue's aggregate
// status changes.
type QueueStatusChangedPayload struct {
	Status queue.SyncStatus
}

// SyncCompletedPayload is emitted once per completed drain.
type SyncCompletedPayload struct {
	Result queue.DrainResult
}

// DocumentUpdatedPayload is emitted when a subscribed document changes
// remotely.
type DocumentUpdatedPayload struct {
	Collection string
	ID         string
	Timestamp  time.Time
}

// NotificationPublishedPayload carries a user-facing notification.
type NotificationPublishedPayload struct {
	Level        Level
	Message      string
	Notification *freshness.Notification
}
