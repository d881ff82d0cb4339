package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Scoped provides type-safe access to a Store for a specific type T,
// prefixing all keys with "namespace:". Values are stored as JSON.
type Scoped[T any] struct {
	store  Store
	prefix string
}

// NewScoped returns a Scoped[T] bound to the given namespace.
func NewScoped[T any](store Store, namespace string) *Scoped[T] {
	return &Scoped[T]{
		store:  store,
		prefix: namespace + ":",
	}
}

// Get retrieves and deserializes a value by key.
func (s *Scoped[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	raw, err := s.store.Get(ctx, s.prefix+key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("scoped get %q unmarshal: %w", key, err)
	}
	return v, nil
}

// Set serializes and stores a value.
func (s *Scoped[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("scoped set %q marshal: %w", key, err)
	}
	return s.store.Set(ctx, s.prefix+key, string(data))
}

// Remove deletes a key.
func (s *Scoped[T]) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, s.prefix+key)
}

// Keys returns all keys in this namespace, with the prefix stripped.
func (s *Scoped[T]) Keys(ctx context.Context) ([]string, error) {
	all, err := s.store.GetAllKeys(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	return keys, nil
}

// GetAll loads every value in this namespace keyed by unprefixed key.
// Entries that fail to decode are returned in the corrupt map rather
// than aborting the whole load.
func (s *Scoped[T]) GetAll(ctx context.Context) (map[string]T, map[string]error, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, nil, err
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}

	raw, err := s.store.MultiGet(ctx, prefixed)
	if err != nil {
		return nil, nil, err
	}

	out := make(map[string]T, len(raw))
	var corrupt map[string]error
	for k, val := range raw {
		short := strings.TrimPrefix(k, s.prefix)
		var v T
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			if corrupt == nil {
				corrupt = make(map[string]error)
			}
			corrupt[short] = err
			continue
		}
		out[short] = v
	}
	return out, corrupt, nil
}

// RemoveAll deletes every key in this namespace.
func (s *Scoped[T]) RemoveAll(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	return s.store.MultiRemove(ctx, prefixed)
}
