// Package models defines the note records directives are evaluated against.
package models

import (
	"sort"
	"strings"
	"time"
)

// Note is a single note record as seen by the directive engine.
type Note struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ViewedAt  time.Time `json:"viewed_at"`
	ParentID  string    `json:"parent_id,omitempty"`
}

// FirstLine returns the content up to (not including) the first newline.
// It doubles as the note's display name.
func (n *Note) FirstLine() string {
	if i := strings.IndexByte(n.Content, '\n'); i >= 0 {
		return n.Content[:i]
	}
	return n.Content
}

// Rest returns everything after the first newline, or "" for one-line notes.
func (n *Note) Rest() string {
	if i := strings.IndexByte(n.Content, '\n'); i >= 0 {
		return n.Content[i+1:]
	}
	return ""
}

// Clone returns a copy of n.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// MutationKind identifies which note field a directive changed.
type MutationKind string

// Mutation kinds.
const (
	MutationPath    MutationKind = "path"
	MutationContent MutationKind = "content"
	MutationAppend  MutationKind = "append"
)

// NoteMutation records a change a directive made through NoteOperations.
type NoteMutation struct {
	NoteID  string       `json:"note_id"`
	Updated *Note        `json:"updated"`
	Kind    MutationKind `json:"kind"`
}

// Collection is a snapshot of every note known to the host.
// It is not modified after construction.
type Collection struct {
	byID     map[string]*Note
	ids      []string
	children map[string][]string
}

// NewCollection indexes notes by id. Later duplicates replace earlier ones.
func NewCollection(notes ...*Note) *Collection {
	c := &Collection{
		byID:     make(map[string]*Note, len(notes)),
		children: make(map[string][]string),
	}
	for _, n := range notes {
		if n == nil || n.ID == "" {
			continue
		}
		c.byID[n.ID] = n
	}
	c.ids = make([]string, 0, len(c.byID))
	for id, n := range c.byID {
		c.ids = append(c.ids, id)
		if n.ParentID != "" {
			c.children[n.ParentID] = append(c.children[n.ParentID], id)
		}
	}
	sort.Strings(c.ids)
	for _, kids := range c.children {
		sort.Strings(kids)
	}
	return c
}

// Get returns the note with the given id, or nil.
func (c *Collection) Get(id string) *Note {
	if c == nil {
		return nil
	}
	return c.byID[id]
}

// Has reports whether a note with the given id exists.
func (c *Collection) Has(id string) bool {
	return c.Get(id) != nil
}

// Len returns the number of notes.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// IDs returns all note ids in ascending order.
func (c *Collection) IDs() []string {
	if c == nil {
		return nil
	}
	return c.ids
}

// All returns all notes ordered by id.
func (c *Collection) All() []*Note {
	if c == nil {
		return nil
	}
	out := make([]*Note, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.byID[id]
	}
	return out
}

// Parent returns the parent of the note with the given id, or nil when the
// note is a root or its parent is missing from the collection.
func (c *Collection) Parent(id string) *Note {
	n := c.Get(id)
	if n == nil || n.ParentID == "" {
		return nil
	}
	return c.Get(n.ParentID)
}

// Children returns the direct children of id ordered by id.
func (c *Collection) Children(id string) []*Note {
	if c == nil {
		return nil
	}
	kids := c.children[id]
	out := make([]*Note, len(kids))
	for i, k := range kids {
		out[i] = c.byID[k]
	}
	return out
}

// With returns a new collection where n replaces the note with the same id.
func (c *Collection) With(n *Note) *Collection {
	notes := make([]*Note, 0, c.Len()+1)
	for _, existing := range c.All() {
		if existing.ID != n.ID {
			notes = append(notes, existing)
		}
	}
	notes = append(notes, n)
	return NewCollection(notes...)
}
