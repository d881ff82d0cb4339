// Package remote defines the contract with the authoritative document
// store. fieldsync only ever talks to it through this interface; the
// concrete client lives in internal/remote/httpstore.
package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Document is one remote record: an opaque payload plus the server's
// authoritative write timestamp.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Filter is a field-equality constraint for Query.
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// UpdateHandler receives live document changes from a subscription.
// It is invoked on the subscription's delivery goroutine.
type UpdateHandler func(data json.RawMessage, serverTimestamp time.Time)

// Store is the authoritative document storage collaborator.
type Store interface {
	// Get performs a point read. Returns an error wrapping ErrNotFound
	// when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns all documents in a collection matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Update creates or replaces a document (last-writer-wins by id).
	Update(ctx context.Context, collection, id string, data json.RawMessage) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe opens a live change feed for one document. The returned
	// cancel function closes the feed; it is safe to call more than once.
	Subscribe(ctx context.Context, collection, id string, onUpdate UpdateHandler) (cancel func(), err error)
}
