package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts entity_id and drain_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if entityID := GetEntityID(ctx); entityID != "" {
		e.Str("entity_id", entityID)
	}

	if drainID := GetDrainID(ctx); drainID != "" {
		e.Str("drain_id", drainID)
	}
}
