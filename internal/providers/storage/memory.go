package storage

import (
	"context"
	"maps"
	"sync"
)

// Memory is an in-process key/value store
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value for key
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// SetMany writes all entries under one lock
func (m *Memory) SetMany(ctx context.Context, entries map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.data, entries)
	return nil
}

// Delete removes keys
func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Snapshot returns a copy of the stored entries
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data)
}
