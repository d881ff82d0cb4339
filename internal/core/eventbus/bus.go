package eventbus

import (
	"context"
	"sync"
)

// Event names one event type on the bus.
type Event string

const (
	EventConnectivityChanged   Event = "connectivity.changed"
	EventDocumentUpdated       Event = "document.updated"
	EventNotificationPublished Event = "notification.published"
	EventQueueStatusChanged    Event = "queue.status-changed"
	EventSyncCompleted         Event = "sync.completed"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches typed events to subscribers from a single
// goroutine started by Start. Publishing never blocks; events are
// dropped when the buffer is full.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu                    sync.RWMutex
	connectivityChanged   []func(ConnectivityChangedPayload)
	documentUpdated       []func(DocumentUpdatedPayload)
	notificationPublished []func(NotificationPublishedPayload)
	queueStatusChanged    []func(QueueStatusChangedPayload)
	syncCompleted         []func(SyncCompletedPayload)
}

// New creates a bus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{ch: make(chan envelope, buffer)}
}

// Start runs the dispatch loop until ctx is cancelled. Subscriber
// panics are recovered and reported via OnPanic hooks.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	switch env.event {
	case EventConnectivityChanged:
		p := env.payload.(ConnectivityChangedPayload)
		for _, fn := range bus.connectivityChangedSubs() {
			bus.call(env, func() { fn(p) })
		}
	case EventDocumentUpdated:
		p := env.payload.(DocumentUpdatedPayload)
		for _, fn := range bus.documentUpdatedSubs() {
			bus.call(env, func() { fn(p) })
		}
	case EventNotificationPublished:
		p := env.payload.(NotificationPublishedPayload)
		for _, fn := range bus.notificationPublishedSubs() {
			bus.call(env, func() { fn(p) })
		}
	case EventQueueStatusChanged:
		p := env.payload.(QueueStatusChangedPayload)
		for _, fn := range bus.queueStatusChangedSubs() {
			bus.call(env, func() { fn(p) })
		}
	case EventSyncCompleted:
		p := env.payload.(SyncCompletedPayload)
		for _, fn := range bus.syncCompletedSubs() {
			bus.call(env, func() { fn(p) })
		}
	}
}

func (bus *EventBus) call(env envelope, fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			bus.runOnPanic(env.event, env.payload, recovered)
		}
	}()
	fn()
}

// PublishConnectivityChanged publishes a connectivity.changed event.
func (bus *EventBus) PublishConnectivityChanged(p ConnectivityChangedPayload) {
	bus.send(EventConnectivityChanged, p)
}

// SubscribeConnectivityChanged registers a connectivity.changed subscriber.
func (bus *EventBus) SubscribeConnectivityChanged(fn func(ConnectivityChangedPayload)) {
	bus.mu.Lock()
	bus.connectivityChanged = append(bus.connectivityChanged, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventConnectivityChanged)
}

func (bus *EventBus) connectivityChangedSubs() []func(ConnectivityChangedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	out := make([]func(ConnectivityChangedPayload), len(bus.connectivityChanged))
	copy(out, bus.connectivityChanged)
	return out
}

// PublishDocumentUpdated publishes a document.updated event.
func (bus *EventBus) PublishDocumentUpdated(p DocumentUpdatedPayload) {
	bus.send(EventDocumentUpdated, p)
}

// SubscribeDocumentUpdated registers a document.updated subscriber.
func (bus *EventBus) SubscribeDocumentUpdated(fn func(DocumentUpdatedPayload)) {
	bus.mu.Lock()
	bus.documentUpdated = append(bus.documentUpdated, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventDocumentUpdated)
}

func (bus *EventBus) documentUpdatedSubs() []func(DocumentUpdatedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	out := make([]func(DocumentUpdatedPayload), len(bus.documentUpdated))
	copy(out, bus.documentUpdated)
	return out
}

// PublishNotificationPublished publishes a notification.published event.
func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

// SubscribeNotificationPublished registers a notification.published subscriber.
func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	bus.mu.Lock()
	bus.notificationPublished = append(bus.notificationPublished, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventNotificationPublished)
}

func (bus *EventBus) notificationPublishedSubs() []func(NotificationPublishedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	out := make([]func(NotificationPublishedPayload), len(bus.notificationPublished))
	copy(out, bus.notificationPublished)
	return out
}

// PublishQueueStatusChanged publishes a queue.status-changed event.
func (bus *EventBus) PublishQueueStatusChanged(p QueueStatusChangedPayload) {
	bus.send(EventQueueStatusChanged, p)
}

// SubscribeQueueStatusChanged registers a queue.status-changed subscriber.
func (bus *EventBus) SubscribeQueueStatusChanged(fn func(QueueStatusChangedPayload)) {
	bus.mu.Lock()
	bus.queueStatusChanged = append(bus.queueStatusChanged, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventQueueStatusChanged)
}

func (bus *EventBus) queueStatusChangedSubs() []func(QueueStatusChangedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	out := make([]func(QueueStatusChangedPayload), len(bus.queueStatusChanged))
	copy(out, bus.queueStatusChanged)
	return out
}

// PublishSyncCompleted publishes a sync.completed event.
func (bus *EventBus) PublishSyncCompleted(p SyncCompletedPayload) {
	bus.send(EventSyncCompleted, p)
}

// SubscribeSyncCompleted registers a sync.completed subscriber.
func (bus *EventBus) SubscribeSyncCompleted(fn func(SyncCompletedPayload)) {
	bus.mu.Lock()
	bus.syncCompleted = append(bus.syncCompleted, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventSyncCompleted)
}

func (bus *EventBus) syncCompletedSubs() []func(SyncCompletedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	out := make([]func(SyncCompletedPayload), len(bus.syncCompleted))
	copy(out, bus.syncCompleted)
	return out
}
