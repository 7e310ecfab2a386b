package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/eval"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/value"
)

// RenderedDirective is one directive of a rendered note.
type RenderedDirective struct {
	Instance
	Display   string       `json:"display"`
	Kind      value.Kind   `json:"kind,omitempty"`
	Error     *apperr.Wire `json:"error,omitempty"`
	FromCache bool         `json:"from_cache"`
	Views     []*Rendered  `json:"views,omitempty"`
}

// Rendered is a note with its directives evaluated.
type Rendered struct {
	NoteID string `json:"note_id"`
	// Text is the note content with each directive replaced by its display.
	Text       string              `json:"text"`
	Directives []RenderedDirective `json:"directives"`
}

// RenderNote evaluates every directive of noteID.
func (e *Engine) RenderNote(ctx context.Context, noteID string) (*Rendered, error) {
	notes, err := e.host.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: snapshot: %w", err)
	}
	note := notes.Get(noteID)
	if note == nil {
		return nil, fmt.Errorf("engine: note %q: %w", noteID, apperr.ErrNotFound)
	}
	r := &run{notes: notes, collector: deps.NewCollector(), viewStack: []string{noteID}}
	return e.renderNote(ctx, r, note), nil
}

func (e *Engine) renderNote(ctx context.Context, r *run, note *models.Note) *Rendered {
	content := note.Content
	instances := e.instances.Assign(note.ID, Extract(content))
	out := &Rendered{NoteID: note.ID, Directives: make([]RenderedDirective, 0, len(instances))}

	var text strings.Builder
	pos := 0
	for _, inst := range instances {
		res := e.execute(ctx, r, inst.Source, note.ID)
		rd := RenderedDirective{Instance: inst, Display: res.Display(), FromCache: res.FromCache, Views: res.Views}
		if res.Err != nil {
			w := res.Err.Encode()
			rd.Error = &w
		} else {
			rd.Kind = res.Value.Kind()
		}
		out.Directives = append(out.Directives, rd)

		text.WriteString(content[pos:inst.Start])
		text.WriteString(rd.Display)
		pos = inst.End
	}
	text.WriteString(content[pos:])
	out.Text = text.String()
	return out
}

// renderViews renders the notes of a view inside the current run so their
// dependencies flow into the viewing directive.
func (e *Engine) renderViews(ctx context.Context, r *run, view *value.View) ([]*Rendered, error) {
	out := make([]*Rendered, 0, len(view.Notes))
	for _, n := range view.Notes {
		if slices.Contains(r.viewStack, n.ID) {
			return nil, apperr.New(apperr.KindCircularDependency, -1, "view of note %q includes itself", n.ID)
		}
		current := r.notes.Get(n.ID)
		if current == nil {
			continue
		}
		inner := &run{
			notes:     r.notes,
			collector: r.collector,
			viewStack: append(slices.Clone(r.viewStack), n.ID),
		}
		out = append(out, e.renderNote(ctx, inner, current))
	}
	return out, nil
}

// PressButton runs the action of the button produced by a directive
// instance of noteID.
func (e *Engine) PressButton(ctx context.Context, noteID, instanceID string) (*Outcome, error) {
	notes, err := e.host.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: snapshot: %w", err)
	}
	note := notes.Get(noteID)
	if note == nil {
		return nil, fmt.Errorf("engine: note %q: %w", noteID, apperr.ErrNotFound)
	}
	inst, ok := e.instances.Lookup(noteID, instanceID)
	if !ok {
		e.instances.Assign(noteID, Extract(note.Content))
		if inst, ok = e.instances.Lookup(noteID, instanceID); !ok {
			return nil, fmt.Errorf("engine: directive %q: %w", instanceID, apperr.ErrNotFound)
		}
	}

	res, err := e.Execute(ctx, Request{Source: inst.Source, NoteID: noteID, Notes: notes})
	if err != nil || res.Err != nil {
		return res, err
	}
	btn, ok := res.Value.(*value.Button)
	if !ok {
		return &Outcome{Key: res.Key, Err: apperr.New(apperr.KindType, -1, "directive produced %s, not a button", res.Value.Kind())}, nil
	}

	rt := &eval.Runtime{
		Note:      note,
		Notes:     notes,
		Ops:       e.host,
		Once:      e.cache.Once(),
		Collector: deps.NewCollector(),
		Registry:  e.registry,
		Clock:     e.clock,
	}
	var args []value.Value
	if len(btn.Action.Params) > 0 {
		args = []value.Value{value.NewNote(note)}
	}
	v, err := e.invoke(ctx, btn.Action, args, rt)
	out := &Outcome{Key: res.Key, Mutations: rt.Mutations}
	if err != nil {
		out.Err = apperr.Classify(err)
	} else {
		out.Value = v
	}
	if len(rt.Mutations) > 0 {
		e.routeMutations(ctx, rt.Mutations)
	}
	return out, nil
}

func (e *Engine) invoke(ctx context.Context, l *value.Lambda, args []value.Value, rt *eval.Runtime) (v value.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = apperr.New(apperr.KindType, -1, "internal error: %v", p)
		}
	}()
	return eval.Invoke(ctx, l, args, eval.NewEnv(rt))
}
