package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidKey is returned for empty or unsafe storage keys.
var ErrInvalidKey = errors.New("storage: invalid key")

// Memory is an in-process storage adapter.
type Memory struct {
	mu       sync.RWMutex
	payloads map[string][]byte
}

// NewMemory returns an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{payloads: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, name string) ([]byte, bool, error) {
	if name == "" {
		return nil, false, ErrInvalidKey
	}
	m.mu.RLock()
	payload, ok := m.payloads[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

func (m *Memory) Set(_ context.Context, name string, payload []byte) error {
	if name == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	m.payloads[name] = append([]byte(nil), payload...)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored payloads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payloads)
}
