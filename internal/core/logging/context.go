package logging

import "context"

type contextKey string

const (
	entityIDKey contextKey = "entity_id"
	drainIDKey  contextKey = "drain_id"
)

// WithEntityID adds an entity ID to the context.
func WithEntityID(ctx context.Context, entityID string) context.Context {
	return context.WithValue(ctx, entityIDKey, entityID)
}

// WithDrainID adds a drain cycle ID to the context.
func WithDrainID(ctx context.Context, drainID string) context.Context {
	return context.WithValue(ctx, drainIDKey, drainID)
}

// GetEntityID retrieves the entity ID from the context.
// Returns empty string if not present.
func GetEntityID(ctx context.Context) string {
	if id, ok := ctx.Value(entityIDKey).(string); ok {
		return id
	}
	return ""
}

// GetDrainID retrieves the drain cycle ID from the context.
// Returns empty string if not present.
func GetDrainID(ctx context.Context) string {
	if id, ok := ctx.Value(drainIDKey).(string); ok {
		return id
	}
	return ""
}
