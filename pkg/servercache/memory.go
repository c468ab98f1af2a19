// Package servercache provides an in-memory stand-in for the server-state
// cache consumed by derivation helpers. It is meant for tests, examples and
// tools; production code plugs its real cache in through the same port.
package servercache

import (
	"encoding/json"
	"fmt"
	"sync"

	clientstate "github.com/goliatone/go-clientstate"
)

// Memory is a query-keyed cache satisfying clientstate.ServerCache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]clientstate.QueryResult
}

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]clientstate.QueryResult{}}
}

var _ clientstate.ServerCache = (*Memory)(nil)

// Subscribe returns the current entry for key. Unknown keys report loading,
// the state a real cache is in before its first fetch resolves.
func (m *Memory) Subscribe(key clientstate.QueryKey) clientstate.QueryResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[canonicalKey(key)]
	if !ok {
		return clientstate.QueryResult{IsLoading: true}
	}
	return entry
}

// Set stores data for key and clears loading and error state.
func (m *Memory) Set(key clientstate.QueryKey, data any) {
	m.put(key, clientstate.QueryResult{Data: data})
}

// SetLoading marks key as fetching, keeping any previous data visible.
func (m *Memory) SetLoading(key clientstate.QueryKey) {
	m.update(key, func(entry *clientstate.QueryResult) {
		entry.IsLoading = true
	})
}

// SetError records a failed fetch for key, keeping any previous data.
func (m *Memory) SetError(key clientstate.QueryKey, err error) {
	m.update(key, func(entry *clientstate.QueryResult) {
		entry.IsLoading = false
		entry.Err = err
	})
}

// Invalidate drops the entry for key.
func (m *Memory) Invalidate(key clientstate.QueryKey) {
	m.mu.Lock()
	delete(m.entries, canonicalKey(key))
	m.mu.Unlock()
}

func (m *Memory) put(key clientstate.QueryKey, entry clientstate.QueryResult) {
	m.mu.Lock()
	m.entries[canonicalKey(key)] = entry
	m.mu.Unlock()
}

func (m *Memory) update(key clientstate.QueryKey, fn func(*clientstate.QueryResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := canonicalKey(key)
	entry := m.entries[id]
	fn(&entry)
	m.entries[id] = entry
}

// canonicalKey renders key as JSON so structurally equal keys (including
// maps with differently ordered insertions) share an entry.
func canonicalKey(key clientstate.QueryKey) string {
	raw, err := json.Marshal([]any(key))
	if err != nil {
		return fmt.Sprintf("%#v", []any(key))
	}
	return string(raw)
}
