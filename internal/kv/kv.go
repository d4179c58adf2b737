// Package kv defines the key-value storage port the session core persists
// through, plus an in-memory implementation.
package kv

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Storage is a synchronous string key-value store, the shape of the
// browser's local storage.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Batch writes several keys in one call. Storages that can apply the writes
// atomically implement it; SetMany falls back to sequential Set otherwise.
type Batch interface {
	SetMany(values map[string]string, remove []string) error
}

// SetMany applies values and removals through b when s implements Batch.
func SetMany(s Storage, values map[string]string, remove []string) error {
	if b, ok := s.(Batch); ok {
		return b.SetMany(values, remove)
	}
	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			return err
		}
	}
	for _, k := range remove {
		if err := s.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// Memory is a map-backed Storage, safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) SetMany(values map[string]string, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	for _, k := range remove {
		delete(m.data, k)
	}
	return nil
}
