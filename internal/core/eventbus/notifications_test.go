package eventbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/eventbus"
	"github.com/fieldops/fieldsync/internal/core/eventbus/testbus"
	"github.com/fieldops/fieldsync/internal/core/queue"
)

func latestNotificationPayload(tb *testbus.Bus, t *testing.T) eventbus.NotificationPublishedPayload {
	t.Helper()
	tb.AssertPublished(t, eventbus.EventNotificationPublished)

	var payload eventbus.NotificationPublishedPayload
	for _, e := range tb.Events() {
		if e.Event != eventbus.EventNotificationPublished {
			continue
		}
		p, ok := e.Payload.(eventbus.NotificationPublishedPayload)
		require.True(t, ok)
		payload = p
	}

	return payload
}

func TestNotificationRouter_SyncCompletedWithFailures(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishSyncCompleted(eventbus.SyncCompletedPayload{
		Result: queue.DrainResult{Attempted: 5, Synced: 3, Failed: 2},
	})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, eventbus.LevelWarning, p.Level)
	assert.Contains(t, p.Message, "2 failed")
}

func TestNotificationRouter_SyncCompletedClean(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishSyncCompleted(eventbus.SyncCompletedPayload{
		Result: queue.DrainResult{Attempted: 3, Synced: 3},
	})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, eventbus.LevelInfo, p.Level)
	assert.Contains(t, p.Message, "3 mutations synced")
}

func TestNotificationRouter_EmptySyncDoesNotPublish(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishSyncCompleted(eventbus.SyncCompletedPayload{Result: queue.DrainResult{}})
	tb.AssertNotPublished(t, eventbus.EventNotificationPublished, 100*time.Millisecond)
}

func TestNotificationRouter_DocumentUpdated(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishDocumentUpdated(eventbus.DocumentUpdatedPayload{
		Collection: "work_items",
		ID:         "wi-42",
		Timestamp:  time.Now(),
	})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, eventbus.LevelInfo, p.Level)
	assert.Contains(t, p.Message, "work_items/wi-42")
}

func TestNotificationRouter_ConnectionLost(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishConnectivityChanged(eventbus.ConnectivityChangedPayload{
		State: connectivity.State{Connected: false},
	})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, eventbus.LevelWarning, p.Level)
	assert.Contains(t, p.Message, "connection lost")
}

func TestNotificationRouter_ConnectionRestoredDoesNotPublish(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishConnectivityChanged(eventbus.ConnectivityChangedPayload{
		State: connectivity.State{Connected: true, Type: "probe"},
	})
	tb.AssertNotPublished(t, eventbus.EventNotificationPublished, 100*time.Millisecond)
}

func TestNotificationRouter_QueueFailures(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishQueueStatusChanged(eventbus.QueueStatusChangedPayload{
		Status: queue.SyncStatus{PendingCount: 1, FailedCount: 4},
	})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, eventbus.LevelWarning, p.Level)
	assert.Contains(t, p.Message, "4 mutations failed")
}

func TestNotificationRouter_HealthyQueueDoesNotPublish(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishQueueStatusChanged(eventbus.QueueStatusChangedPayload{
		Status: queue.SyncStatus{PendingCount: 2},
	})
	tb.AssertNotPublished(t, eventbus.EventNotificationPublished, 100*time.Millisecond)
}
