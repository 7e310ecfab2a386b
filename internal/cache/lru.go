package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/ansuz/internal/value"
)

// GlobalCache maps cache keys to results shared across notes.
type GlobalCache struct {
	lru *lru.Cache[string, *Result]
}

// NewGlobalCache returns a cache holding at most size entries.
func NewGlobalCache(size int) (*GlobalCache, error) {
	c, err := lru.New[string, *Result](size)
	if err != nil {
		return nil, fmt.Errorf("cache: global: %w", err)
	}
	return &GlobalCache{lru: c}, nil
}

// Get returns a copy of the entry for key.
func (g *GlobalCache) Get(key string) (*Result, bool) {
	r, ok := g.lru.Get(key)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Put stores a copy of r under key.
func (g *GlobalCache) Put(key string, r *Result) { g.lru.Add(key, r.Clone()) }

// Remove drops key.
func (g *GlobalCache) Remove(key string) { g.lru.Remove(key) }

// Len returns the number of entries.
func (g *GlobalCache) Len() int { return g.lru.Len() }

// EvictTo removes least recently used entries until at most size remain.
func (g *GlobalCache) EvictTo(size int) int {
	removed := 0
	for g.lru.Len() > max(size, 0) {
		if _, _, ok := g.lru.RemoveOldest(); !ok {
			break
		}
		removed++
	}
	return removed
}

// PerNoteCache keeps a bounded LRU of results for each of a bounded number
// of notes. Lookups under one note never see another note's entries.
type PerNoteCache struct {
	mu    sync.Mutex
	size  int
	notes *lru.Cache[string, *lru.Cache[string, *Result]]
}

// NewPerNoteCache returns a cache for at most notes notes with at most size
// entries each.
func NewPerNoteCache(notes, size int) (*PerNoteCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache: per-note: size must be positive")
	}
	outer, err := lru.New[string, *lru.Cache[string, *Result]](notes)
	if err != nil {
		return nil, fmt.Errorf("cache: per-note: %w", err)
	}
	return &PerNoteCache{size: size, notes: outer}, nil
}

// Get returns a copy of the entry for key under noteID.
func (p *PerNoteCache) Get(noteID, key string) (*Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inner, ok := p.notes.Get(noteID)
	if !ok {
		return nil, false
	}
	r, ok := inner.Get(key)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Put stores a copy of r under noteID and key.
func (p *PerNoteCache) Put(noteID, key string, r *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inner, ok := p.notes.Get(noteID)
	if !ok {
		// size is checked in the constructor.
		inner, _ = lru.New[string, *Result](p.size)
		p.notes.Add(noteID, inner)
	}
	inner.Add(key, r.Clone())
}

// Remove drops one entry.
func (p *PerNoteCache) Remove(noteID, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inner, ok := p.notes.Peek(noteID); ok {
		inner.Remove(key)
	}
}

// RemoveKey drops key under every note.
func (p *PerNoteCache) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.notes.Keys() {
		if inner, ok := p.notes.Peek(id); ok {
			inner.Remove(key)
		}
	}
}

// ClearNote drops every entry of noteID and reports whether any existed.
func (p *PerNoteCache) ClearNote(noteID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notes.Remove(noteID)
}

// Notes returns the number of notes with entries.
func (p *PerNoteCache) Notes() int { return p.notes.Len() }

// Len returns the number of entries under noteID.
func (p *PerNoteCache) Len(noteID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inner, ok := p.notes.Peek(noteID); ok {
		return inner.Len()
	}
	return 0
}

// OnceStore keeps once[...] values per note for the lifetime of the
// manager. It implements eval.OnceStore.
type OnceStore struct {
	mu     sync.Mutex
	values map[string]map[string]value.Value
}

// NewOnceStore returns an empty store.
func NewOnceStore() *OnceStore {
	return &OnceStore{values: make(map[string]map[string]value.Value)}
}

// Get returns the stored value for key under noteID.
func (o *OnceStore) Get(noteID, key string) (value.Value, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.values[noteID][key]
	if !ok {
		return nil, false
	}
	return value.Clone(v), true
}

// Put stores v for key under noteID.
func (o *OnceStore) Put(noteID, key string, v value.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.values[noteID]
	if !ok {
		m = make(map[string]value.Value)
		o.values[noteID] = m
	}
	m[key] = value.Clone(v)
}

// Forget drops the values of noteID. It is used when a note is deleted.
func (o *OnceStore) Forget(noteID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.values, noteID)
}
