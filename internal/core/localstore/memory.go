package localstore

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldsync/pkg/kv"
)

// Memory is a Store backed by an in-process map. It does not survive
// restarts; it exists for tests and for running the CLI against an
// ephemeral workspace.
type Memory struct {
	data *kv.Store[string, string]
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: kv.New[string, string]()}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	val, ok := m.data.Get(key)
	if !ok {
		return "", fmt.Errorf("memory get %q: %w", key, ErrNotFound)
	}
	return val, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.data.Set(key, value)
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

func (m *Memory) MultiGet(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if val, ok := m.data.Get(k); ok {
			out[k] = val
		}
	}
	return out, nil
}

func (m *Memory) MultiRemove(_ context.Context, keys []string) error {
	for _, k := range keys {
		m.data.Delete(k)
	}
	return nil
}

func (m *Memory) GetAllKeys(_ context.Context) ([]string, error) {
	return m.data.Keys(), nil
}
