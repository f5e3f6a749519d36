// Package statemap provides a plain, non-authenticated Hash256 -> []byte
// map. It gives tools that need a cheap view of ledger state a sorted
// key-value store without paying for the SHAMap engine's copy-on-write
// snapshots, path compression, or lazy hash recomputation.
package statemap

import (
	"bytes"
	"sort"
	"sync"
)

// Map is a simple ordered key-value store keyed by a 32-byte hash. The zero
// value is ready to use. A Map is safe for concurrent use.
type Map struct {
	mu    sync.RWMutex
	items map[[32]byte][]byte
}

// New returns an empty Map.
func New() *Map {
	return &Map{items: make(map[[32]byte][]byte)}
}

// SetItem adds or replaces the item at key, storing a copy of data. It
// returns true if the key was newly added, false if an existing entry was
// replaced.
func (m *Map) SetItem(key [32]byte, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[[32]byte][]byte)
	}
	_, existed := m.items[key]
	stored := make([]byte, len(data))
	copy(stored, data)
	m.items[key] = stored
	return !existed
}

// RemoveItem deletes the item at key, returning true if it existed.
func (m *Map) RemoveItem(key [32]byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.items[key]
	delete(m.items, key)
	return existed
}

// GetItem returns the data stored at key and whether it was found.
func (m *Map) GetItem(key [32]byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.items[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Contains reports whether key is present.
func (m *Map) Contains(key [32]byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

// Size returns the number of items in the map.
func (m *Map) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Empty reports whether the map has no items.
func (m *Map) Empty() bool {
	return m.Size() == 0
}

// Clear removes every item from the map.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[[32]byte][]byte)
}

// VisitItems calls visit once per item in ascending key order. visit must
// not call back into the Map.
func (m *Map) VisitItems(visit func(key [32]byte, data []byte)) {
	m.mu.RLock()
	keys := make([][32]byte, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	defer m.mu.RUnlock()

	for _, k := range keys {
		visit(k, m.items[k])
	}
}
