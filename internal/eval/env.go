// Package eval evaluates directive expressions against a note collection.
package eval

import (
	"context"
	"time"

	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/value"
)

// NoteOperations is the host capability directives mutate notes through.
// GetNoteByID returns apperr.ErrNotFound for unknown ids.
type NoteOperations interface {
	GetNoteByID(ctx context.Context, id string) (*models.Note, error)
	UpdatePath(ctx context.Context, id, path string) (*models.Note, error)
	UpdateContent(ctx context.Context, id, content string) (*models.Note, error)
	AppendToNote(ctx context.Context, id, text string) (*models.Note, error)
}

// OnceStore keeps the values of once[...] bodies per note.
type OnceStore interface {
	Get(noteID, key string) (value.Value, bool)
	Put(noteID, key string, v value.Value)
}

// Refresh is a refresh[...] block met during evaluation.
type Refresh struct {
	Triggers []*value.Schedule
	Body     ast.Expr
}

// Runtime is the state shared by every scope of one evaluation.
type Runtime struct {
	// Note is the note hosting the directive; it may be nil.
	Note      *models.Note
	Notes     *models.Collection
	Ops       NoteOperations
	Once      OnceStore
	Collector *deps.Collector
	Registry  *Registry
	// Mutations lists every change made through Ops, in order.
	Mutations []models.NoteMutation
	// ViewStack holds the ids of notes whose views are being rendered.
	ViewStack []string
	Refreshes []Refresh
	Clock     func() time.Time

	temporal int
	depth    int
}

func (rt *Runtime) now() time.Time {
	if rt.Clock != nil {
		return rt.Clock()
	}
	return time.Now()
}

func (rt *Runtime) noteID() string {
	if rt.Note == nil {
		return ""
	}
	return rt.Note.ID
}

// Env is one lexical scope. Closures keep a reference to the Env they were
// created in; lookups walk the parent chain.
type Env struct {
	vars   map[string]value.Value
	parent *Env
	rt     *Runtime
}

// NewEnv returns a root scope over rt. A nil Registry defaults to
// DefaultRegistry and a nil Notes to an empty collection.
func NewEnv(rt *Runtime) *Env {
	if rt.Registry == nil {
		rt.Registry = DefaultRegistry()
	}
	if rt.Notes == nil {
		rt.Notes = models.NewCollection()
	}
	if rt.Collector == nil {
		rt.Collector = deps.NewCollector()
	}
	return &Env{vars: map[string]value.Value{}, rt: rt}
}

// Child returns a new scope whose parent is e.
func (e *Env) Child() *Env {
	return &Env{vars: map[string]value.Value{}, parent: e, rt: e.rt}
}

// Runtime returns the shared evaluation state.
func (e *Env) Runtime() *Runtime { return e.rt }

// Lookup finds name in e or its ancestors.
func (e *Env) Lookup(name string) (value.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define binds name in e.
func (e *Env) Define(name string, v value.Value) { e.vars[name] = v }

func (e *Env) root() *Env {
	s := e
	for s.parent != nil {
		s = s.parent
	}
	return s
}
