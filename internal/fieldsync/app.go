// Package fieldsync wires the core components into one application.
package fieldsync

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldsync/internal/core/config"
	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/eventbus"
	"github.com/fieldops/fieldsync/internal/core/freshness"
	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/core/lockcache"
	"github.com/fieldops/fieldsync/internal/core/logging"
	"github.com/fieldops/fieldsync/internal/core/queue"
	"github.com/fieldops/fieldsync/internal/core/remote"
	"github.com/fieldops/fieldsync/internal/data/db"
	"github.com/fieldops/fieldsync/internal/data/stores"
	"github.com/fieldops/fieldsync/internal/remote/httpstore"
)

// App is the central entry point for all fieldsync operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Queue      *queue.Queue
	Reconciler *freshness.Reconciler
	Locks      *lockcache.Cache
	Monitor    *connectivity.Monitor
	Signal     connectivity.Signal
	Bus        *eventbus.EventBus
	Remote     remote.Store
	Local      localstore.Store
	Config     *config.Config
	DB         *db.DB
}

// NewApp constructs an App from explicit collaborators. The remote
// store and connectivity signal are injectable so tests and the
// --offline flag can substitute them.
func NewApp(cfg *config.Config, database *db.DB, remoteStore remote.Store, signal connectivity.Signal) *App {
	local := stores.NewKVStore(database)
	bus := eventbus.New(64)
	eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))

	app := &App{
		Queue: queue.New(local, remoteStore, signal, queue.Options{
			MaxRetries:    cfg.Queue.MaxRetries,
			RetryBackoff:  cfg.Queue.RetryBackoff(),
			RemoteTimeout: cfg.Queue.RemoteTimeout(),
		}),
		Reconciler: freshness.New(local, remoteStore, signal, freshness.Options{
			NotificationRetention: cfg.Notifications.Retention,
		}),
		Locks: lockcache.New(local, remoteStore, lockcache.Options{
			TTL:        cfg.LockCache.TTL(),
			Collection: cfg.LockCache.Collection,
		}),
		Signal: signal,
		Bus:    bus,
		Remote: remoteStore,
		Local:  local,
		Config: cfg,
		DB:     database,
	}

	app.registerBridges(signal)
	return app
}

// NewDefaultApp builds an App against the configured HTTP remote, with
// a health-probe connectivity monitor.
func NewDefaultApp(cfg *config.Config, database *db.DB) *App {
	client := httpstore.New(httpstore.Options{
		BaseURL: cfg.Remote.BaseURL,
		Token:   cfg.Remote.Token,
		Timeout: cfg.Remote.Timeout(),
	})
	monitor := connectivity.NewMonitor(client.Health, cfg.Connectivity.ProbeInterval())

	app := NewApp(cfg, database, client, monitor)
	app.Monitor = monitor
	return app
}

// registerBridges connects the bus-free core components to the event
// bus. Core packages own their callback lists and never import the
// bus; this is the one place the two meet.
func (a *App) registerBridges(signal connectivity.Signal) {
	if signal != nil {
		signal.AddListener(func(state connectivity.State) {
			a.Bus.PublishConnectivityChanged(eventbus.ConnectivityChangedPayload{State: state})
		})
	}

	a.Queue.Subscribe(func(status queue.SyncStatus) {
		a.Bus.PublishQueueStatusChanged(eventbus.QueueStatusChangedPayload{Status: status})
	})

	a.Queue.OnDrainComplete(func(result queue.DrainResult) {
		a.Bus.PublishSyncCompleted(eventbus.SyncCompletedPayload{Result: result})
		if result.Synced > 0 || result.Failed > 0 {
			a.Reconciler.PublishNotification(context.Background(), "sync", "",
				fmt.Sprintf("background sync completed: %d synced, %d failed", result.Synced, result.Failed))
		}
	})

	a.Reconciler.OnDocumentUpdate(func(u freshness.DocumentUpdate) {
		a.Bus.PublishDocumentUpdated(eventbus.DocumentUpdatedPayload{
			Collection: u.Collection,
			ID:         u.ID,
			Timestamp:  u.Timestamp,
		})
	})

	a.Reconciler.SubscribeToNotifications(func(n freshness.Notification) {
		note := n
		a.Bus.PublishNotificationPublished(eventbus.NotificationPublishedPayload{
			Level:        eventbus.LevelInfo,
			Message:      n.Message,
			Notification: &note,
		})
	})

	eventbus.NewNotificationRouter(a.Bus).Register()
}

// Start runs the event bus dispatch loop and, when present, the
// connectivity monitor. Both stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go a.Bus.Start(ctx)
	if a.Monitor != nil {
		go a.Monitor.Start(ctx)
	}
}

// Close releases component resources. The database is closed by the
// caller that opened it.
func (a *App) Close() {
	a.Queue.Close()
	a.Reconciler.Close()
}
