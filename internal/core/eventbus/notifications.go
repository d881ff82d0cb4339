package eventbus

import "fmt"

// NotificationRouter maps domain events to user-facing notifications.
type NotificationRouter struct {
	bus *EventBus
}

// NewNotificationRouter constructs a router for event-to-notification mappings.
func NewNotificationRouter(bus *EventBus) *NotificationRouter {
	return &NotificationRouter{bus: bus}
}

// Register subscribes all supported event mappings.
func (r *NotificationRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeSyncCompleted(func(p SyncCompletedPayload) {
		if p.Result.Failed > 0 {
			r.notifyf(LevelWarning, "sync completed: %d synced, %d failed", p.Result.Synced, p.Result.Failed)
			return
		}
		if p.Result.Synced > 0 {
			r.notifyf(LevelInfo, "sync completed: %d mutations synced", p.Result.Synced)
		}
	})

	r.bus.SubscribeDocumentUpdated(func(p DocumentUpdatedPayload) {
		r.notifyf(LevelInfo, "%s/%s updated remotely", p.Collection, p.ID)
	})

	r.bus.SubscribeConnectivityChanged(func(p ConnectivityChangedPayload) {
		if !p.State.Connected {
			r.notifyf(LevelWarning, "connection lost, mutations will queue locally")
		}
	})

	r.bus.SubscribeQueueStatusChanged(func(p QueueStatusChangedPayload) {
		if p.Status.FailedCount > 0 {
			r.notifyf(LevelWarning, "%d mutations failed to sync", p.Status.FailedCount)
		}
	})
}

func (r *NotificationRouter) notifyf(level Level, format string, args ...any) {
	r.bus.PublishNotificationPublished(NotificationPublishedPayload{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}
