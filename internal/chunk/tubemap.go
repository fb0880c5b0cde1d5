// Package chunk implements half of C4 (the chunk side of the chunk
// router): Chunk/BaseChunk hold tree nodes resident in memory, and
// ColdStore materializes cold-range chunks on demand, evicting them when a
// Clipper's refcount drops to zero. Grounded on the teacher's
// internal/memorystore.Level: a concurrent map of children guarded by an
// RWMutex with a double-checked-locking insert, generalized from "child
// Level per path segment" to "Tube per tree coordinate."
package chunk

import (
	"sync"

	"github.com/entwine-go/entwine/internal/cell"
)

// TubeMap is a concurrent map from a tree-node key to its Tube, read-mostly
// after warm-up: lookups of an already-created Tube only ever take the read
// lock.
type TubeMap struct {
	mu    sync.RWMutex
	tubes map[string]*cell.Tube
}

// NewTubeMap returns an empty TubeMap.
func NewTubeMap() *TubeMap {
	return &TubeMap{tubes: make(map[string]*cell.Tube)}
}

// GetOrCreate returns the Tube for key, creating it if this is the first
// ever lookup for that key. Mirrors Level.findLevelOrCreate: an optimistic
// read-locked lookup, and only on a miss a write-locked, double-checked
// insert.
func (m *TubeMap) GetOrCreate(key string) *cell.Tube {
	m.mu.RLock()
	if t, ok := m.tubes[key]; ok {
		m.mu.RUnlock()
		return t
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tubes[key]; ok {
		return t
	}
	t := cell.NewTube()
	m.tubes[key] = t
	return t
}

// Get returns the Tube for key without creating it, or nil if absent.
func (m *TubeMap) Get(key string) *cell.Tube {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tubes[key]
}

// Keys returns a snapshot of every key currently present, used for
// serialization walks.
func (m *TubeMap) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.tubes))
	for k := range m.tubes {
		keys = append(keys, k)
	}
	return keys
}

// Len reports the number of distinct tree coordinates touched so far.
func (m *TubeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tubes)
}
