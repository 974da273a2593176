// Package localstore keeps the small amount of session-local state the
// front-end needs between restarts: the draft sale and the session identity.
package localstore

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when no value is stored under the given key.
var ErrNotFound = errors.New("key not found")

// ErrEmptyKey is returned when trying to store a value under an empty key.
var ErrEmptyKey = errors.New("empty key")

// Store is the key-value interface the rest of the module persists through.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Memory provides an in-memory implementation of Store.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory instantiates a new Memory store with an empty map.
func NewMemory() *Memory {
	return &Memory{
		m: map[string][]byte{},
	}
}

// Get returns a copy of the value stored under key.
// Returns ErrNotFound if nothing is stored there.
func (l *Memory) Get(key string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Returns ErrEmptyKey if key is empty.
func (l *Memory) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (l *Memory) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, key)
	return nil
}

func (l *Memory) Close() error { return nil }
