package freshness

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Notification records that something changed while the caller was not
// looking. Entries are never deleted automatically; the retention
// policy drops the oldest beyond the configured bound.
type Notification struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entityId"`
	EntityType string    `json:"entityType"`
	Read       bool      `json:"read"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
}

// initNotes rehydrates the persisted notification history on first
// use. Corrupt entries are dropped with a log line.
func (r *Reconciler) initNotes(ctx context.Context) {
	r.notesOnce.Do(func() {
		persisted, corrupt, err := r.notes.GetAll(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("notification rehydration failed, starting empty")
			return
		}
		for key, decodeErr := range corrupt {
			r.log.Error().Err(decodeErr).Str("key", key).Msg("dropping corrupt notification")
		}

		list := make([]Notification, 0, len(persisted))
		for _, n := range persisted {
			list = append(list, n)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})

		r.mu.Lock()
		r.notifications = list
		r.mu.Unlock()
	})
}

// PublishNotification appends a notification, enforces retention, and
// fans it out to subscribers. Storage failures are logged, not
// returned; a missed persist must not break the live fan-out.
func (r *Reconciler) PublishNotification(ctx context.Context, entityType, entityID, message string) Notification {
	r.initNotes(ctx)

	note := Notification{
		ID:         r.newID(),
		EntityID:   entityID,
		EntityType: entityType,
		Timestamp:  r.now(),
		Message:    message,
	}

	r.mu.Lock()
	r.notifications = append(r.notifications, note)
	var dropped []string
	for len(r.notifications) > r.retention {
		dropped = append(dropped, r.notifications[0].ID)
		r.notifications = r.notifications[1:]
	}
	fns := make([]func(Notification), 0, len(r.noteSubs))
	for _, fn := range r.noteSubs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	if err := r.notes.Set(ctx, note.ID, note); err != nil {
		r.log.Error().Err(err).Str("id", note.ID).Msg("persisting notification failed")
	}
	for _, id := range dropped {
		if err := r.notes.Remove(ctx, id); err != nil {
			r.log.Error().Err(err).Str("id", id).Msg("dropping retained notification failed")
		}
	}

	for _, fn := range fns {
		fn(note)
	}
	return note
}

// SubscribeToNotifications registers a fan-out callback, separate from
// per-document subscriptions. Returns an unsubscribe function.
func (r *Reconciler) SubscribeToNotifications(fn func(Notification)) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.noteSubs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.noteSubs, id)
		r.mu.Unlock()
	}
}

// MarkNotificationRead marks one notification as consumed.
func (r *Reconciler) MarkNotificationRead(ctx context.Context, id string) error {
	r.initNotes(ctx)

	r.mu.Lock()
	var updated *Notification
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Read = true
			n := r.notifications[i]
			updated = &n
			break
		}
	}
	r.mu.Unlock()

	if updated == nil {
		return fmt.Errorf("notification %q not found", id)
	}
	if err := r.notes.Set(ctx, id, *updated); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// Notifications returns the current history, oldest first.
func (r *Reconciler) Notifications(ctx context.Context) []Notification {
	r.initNotes(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}
