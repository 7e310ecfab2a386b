package persist

import (
	"bytes"
	"context"
	"sync"

	"github.com/starford/ansuz/internal/cache"
)

// Memory is a process-local Persistent. Stored slices are copied.
type Memory struct {
	mu      sync.Mutex
	global  map[string][]byte
	perNote map[string]map[string][]byte
}

var _ cache.Persistent = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		global:  make(map[string][]byte),
		perNote: make(map[string]map[string][]byte),
	}
}

func (m *Memory) GetGlobal(_ context.Context, hash string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.global[hash]
	return bytes.Clone(d), ok, nil
}

func (m *Memory) PutGlobal(_ context.Context, hash string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global[hash] = bytes.Clone(data)
	return nil
}

func (m *Memory) RemoveGlobal(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.global, hash)
	return nil
}

func (m *Memory) GetPerNote(_ context.Context, noteID, hash string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.perNote[noteID][hash]
	return bytes.Clone(d), ok, nil
}

func (m *Memory) PutPerNote(_ context.Context, noteID, hash string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.perNote[noteID]
	if !ok {
		entries = make(map[string][]byte)
		m.perNote[noteID] = entries
	}
	entries[hash] = bytes.Clone(data)
	return nil
}

func (m *Memory) RemovePerNote(_ context.Context, noteID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.perNote[noteID], hash)
	return nil
}

func (m *Memory) ClearNote(_ context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.perNote, noteID)
	return nil
}
