// Package localstore defines the durable key-value storage contract that
// every fieldsync component persists its working set into. Keys are
// namespaced strings, values are serialized strings; each component owns
// its namespace exclusively.
package localstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("localstore: key not found")

// StorageError wraps a failure of the underlying storage engine. It is
// non-retryable: callers must surface it rather than re-attempt.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("localstore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("localstore %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is the interface for a durable string key-value store.
// Get on a missing key returns an error wrapping ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	MultiGet(ctx context.Context, keys []string) (map[string]string, error)
	MultiRemove(ctx context.Context, keys []string) error
	GetAllKeys(ctx context.Context) ([]string, error)
}
