package eventbus_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/eventbus"
	"github.com/fieldops/fieldsync/internal/core/eventbus/testbus"
	"github.com/fieldops/fieldsync/internal/core/queue"
)

func TestRegisterDebugLogger(t *testing.T) {
	tb := testbus.New(t)

	// Register with a nop logger; verifies no panic.
	eventbus.RegisterDebugLogger(tb.EventBus, zerolog.Nop())

	// Publish a few events to exercise all subscriber paths.
	tb.PublishConnectivityChanged(eventbus.ConnectivityChangedPayload{
		State: connectivity.State{Connected: true},
	})
	tb.PublishQueueStatusChanged(eventbus.QueueStatusChangedPayload{
		Status: queue.SyncStatus{PendingCount: 1},
	})
	tb.PublishSyncCompleted(eventbus.SyncCompletedPayload{})

	// Wait for last event to confirm all dispatched without panic.
	tb.AssertPublished(t, eventbus.EventSyncCompleted)
}
