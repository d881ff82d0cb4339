// Package stores contains SQLite-backed implementations of the core
// storage interfaces.
package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/fieldsync/internal/core/localstore"
	"github.com/fieldops/fieldsync/internal/data/db"
)

// KVStore implements localstore.Store using SQLite.
type KVStore struct {
	db *db.DB
}

var _ localstore.Store = (*KVStore)(nil)

// NewKVStore creates a new SQLite-backed local store.
func NewKVStore(database *db.DB) *KVStore {
	return &KVStore{db: database}
}

// Get retrieves a value by key.
// Returns an error wrapping localstore.ErrNotFound if the key does not exist.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("kv get %q: %w", key, localstore.ErrNotFound)
	}
	if err != nil {
		return "", &localstore.StorageError{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

// Set stores a value, overwriting any existing entry.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	now := time.Now().UnixNano()
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO kv_store (key, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now,
	)
	if err != nil {
		return &localstore.StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Remove deletes a key. Removing a missing key is not an error.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.Conn().ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return &localstore.StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// MultiGet returns the values for every key that exists. Missing keys
// are simply absent from the result.
func (s *KVStore) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(keys)-1) + "?"
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT key, value FROM kv_store WHERE key IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, &localstore.StorageError{Op: "multi-get", Err: err}
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, &localstore.StorageError{Op: "multi-get", Err: err}
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, &localstore.StorageError{Op: "multi-get", Err: err}
	}
	return out, nil
}

// MultiRemove deletes every listed key in one transaction.
func (s *KVStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(keys)-1) + "?"
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM kv_store WHERE key IN (`+placeholders+`)`, args...)
		return err
	})
	if err != nil {
		return &localstore.StorageError{Op: "multi-remove", Err: err}
	}
	return nil
}

// GetAllKeys returns every key in sorted order.
func (s *KVStore) GetAllKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT key FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, &localstore.StorageError{Op: "list-keys", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &localstore.StorageError{Op: "list-keys", Err: err}
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, &localstore.StorageError{Op: "list-keys", Err: err}
	}
	return keys, nil
}
