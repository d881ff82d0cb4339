// Package connectivity tracks whether the remote store is reachable and
// fans out transitions to interested components.
package connectivity

import "context"

// State is a point-in-time connectivity snapshot.
type State struct {
	Connected bool   `json:"connected"`
	Type      string `json:"type"` // e.g. "probe", "manual"
}

// Listener receives connectivity change events.
type Listener func(State)

// Signal is the network-reachability collaborator. Fetch answers "are we
// online right now"; AddListener registers for transitions and returns
// an unsubscribe function.
type Signal interface {
	Fetch(ctx context.Context) (State, error)
	AddListener(fn Listener) (unsubscribe func())
}
