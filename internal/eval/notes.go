package eval

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/hashing"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/value"
)

func (ev *evaluator) property(target value.Value, name string, offset int) (value.Value, error) {
	if n, ok := target.(*value.Note); ok {
		return ev.noteProperty(n.Record, name, offset)
	}
	if props, ok := properties[target.Kind()]; ok {
		if fn, ok := props[name]; ok {
			return fn(target), nil
		}
	}
	return nil, apperr.New(apperr.KindFieldAccess, offset, "%s has no property %q", target.Kind(), name)
}

var properties = map[value.Kind]map[string]func(value.Value) value.Value{
	value.KindString: {
		"length": func(v value.Value) value.Value { return value.Number(len([]rune(string(v.(value.String))))) },
		"upper":  func(v value.Value) value.Value { return value.String(strings.ToUpper(string(v.(value.String)))) },
		"lower":  func(v value.Value) value.Value { return value.String(strings.ToLower(string(v.(value.String)))) },
		"trim":   func(v value.Value) value.Value { return value.String(strings.TrimSpace(string(v.(value.String)))) },
	},
	value.KindList: {
		"length": func(v value.Value) value.Value { return value.Number(len(v.(value.List))) },
		"count":  func(v value.Value) value.Value { return value.Number(len(v.(value.List))) },
		"first":  func(v value.Value) value.Value { return listAt(v.(value.List), 0) },
		"last":   func(v value.Value) value.Value { return listAt(v.(value.List), len(v.(value.List))-1) },
	},
	value.KindDate: {
		"year":    func(v value.Value) value.Value { return value.Number(v.(value.Date).Year) },
		"month":   func(v value.Value) value.Value { return value.Number(v.(value.Date).Month) },
		"day":     func(v value.Value) value.Value { return value.Number(v.(value.Date).Day) },
		"weekday": func(v value.Value) value.Value { return value.String(v.(value.Date).Time().Weekday().String()) },
	},
	value.KindTime: {
		"hour":   func(v value.Value) value.Value { return value.Number(v.(value.Time).Hour) },
		"minute": func(v value.Value) value.Value { return value.Number(v.(value.Time).Minute) },
	},
	value.KindDateTime: {
		"date": func(v value.Value) value.Value { return value.DateOf(v.(value.DateTime).T) },
		"time": func(v value.Value) value.Value { return value.TimeOf(v.(value.DateTime).T) },
	},
	value.KindButton: {
		"label": func(v value.Value) value.Value { return value.String(v.(*value.Button).Label) },
	},
	value.KindPattern: {
		"source": func(v value.Value) value.Value { return value.String(v.(*value.Pattern).Source) },
	},
	value.KindView: {
		"notes": func(v value.Value) value.Value { return notesList(v.(*value.View).Notes) },
	},
}

func listAt(l value.List, i int) value.Value {
	if i < 0 || i >= len(l) {
		return value.Undefined{}
	}
	return l[i]
}

func notesList(notes []*models.Note) value.List {
	out := make(value.List, len(notes))
	for i, n := range notes {
		out[i] = value.NewNote(n)
	}
	return out
}

func timestamp(t time.Time) value.Value {
	if t.IsZero() {
		return value.Undefined{}
	}
	return value.DateTimeOf(t)
}

func (ev *evaluator) noteProperty(n *models.Note, name string, offset int) (value.Value, error) {
	c := ev.rt.Collector
	switch name {
	case hashing.FieldID:
		return value.String(n.ID), nil
	case hashing.FieldPath:
		c.RecordMetadataAccess(name)
		return value.String(n.Path), nil
	case hashing.FieldName:
		c.RecordFirstLineAccess(n.ID)
		return value.String(n.FirstLine()), nil
	case hashing.FieldBody:
		c.RecordNonFirstLineAccess(n.ID)
		return value.String(n.Rest()), nil
	case hashing.FieldContent:
		c.RecordFirstLineAccess(n.ID)
		c.RecordNonFirstLineAccess(n.ID)
		return value.String(n.Content), nil
	case hashing.FieldCreated:
		c.RecordMetadataAccess(name)
		return timestamp(n.CreatedAt), nil
	case hashing.FieldModified:
		c.RecordMetadataAccess(name)
		return timestamp(n.UpdatedAt), nil
	case hashing.FieldViewed:
		c.RecordMetadataAccess(name)
		return timestamp(n.ViewedAt), nil
	case "up":
		return ev.climb(n, deps.Up(1)), nil
	case "root":
		return ev.climb(n, deps.Root()), nil
	case "children":
		c.RecordFindUsage(false, "")
		return notesList(ev.rt.Notes.Children(n.ID)), nil
	}
	return nil, apperr.New(apperr.KindFieldAccess, offset, "note has no property %q", name)
}

// climb navigates the hierarchy and records the resolved ancestor.
func (ev *evaluator) climb(n *models.Note, path deps.HierarchyPath) value.Value {
	var r deps.Resolver
	ev.rt.Collector.RecordHierarchyDependency(r.ResolvePattern(deps.HierarchyAccessPattern{Path: path}, n, ev.rt.Notes))
	anc := r.Ancestor(path, n, ev.rt.Notes)
	if anc == nil {
		return value.Undefined{}
	}
	return value.NewNote(anc)
}

// noteMethod handles methods specific to notes. handled is false when the
// name should fall through to the builtin registry.
func (ev *evaluator) noteMethod(n *models.Note, name string, args []value.Value, offset int) (v value.Value, handled bool, err error) {
	switch name {
	case "up":
		if len(args) != 1 {
			return nil, true, apperr.New(apperr.KindArgument, offset, "up expects 1 argument, got %d", len(args))
		}
		num, ok := args[0].(value.Number)
		if !ok || num < 0 || float64(num) != math.Trunc(float64(num)) {
			return nil, true, apperr.New(apperr.KindArgument, offset, "up expects a non-negative whole number")
		}
		if num == 0 {
			return value.NewNote(n), true, nil
		}
		return ev.climb(n, deps.Up(int(num))), true, nil
	case "append":
		if len(args) != 1 {
			return nil, true, apperr.New(apperr.KindArgument, offset, "append expects 1 argument, got %d", len(args))
		}
		updated, err := ev.appendText(n.ID, args[0].String(), offset)
		if err != nil {
			return nil, true, err
		}
		return value.NewNote(updated), true, nil
	}
	return nil, false, nil
}

func (ev *evaluator) appendText(id, text string, offset int) (*models.Note, error) {
	return ev.mutate(models.MutationAppend, id, offset, func(ops NoteOperations) (*models.Note, error) {
		return ops.AppendToNote(ev.ctx, id, text)
	})
}

func (ev *evaluator) setNoteField(n *models.Note, field string, v value.Value, offset int) error {
	s, ok := v.(value.String)
	if !ok {
		return apperr.New(apperr.KindType, offset, "%s must be a string, got %s", field, v.Kind())
	}
	var content string
	switch field {
	case hashing.FieldPath:
		_, err := ev.mutate(models.MutationPath, n.ID, offset, func(ops NoteOperations) (*models.Note, error) {
			return ops.UpdatePath(ev.ctx, n.ID, string(s))
		})
		return err
	case hashing.FieldContent:
		content = string(s)
	case hashing.FieldName:
		content = string(s)
		if strings.Contains(n.Content, "\n") {
			content += "\n" + n.Rest()
		}
	case hashing.FieldBody:
		content = n.FirstLine() + "\n" + string(s)
	default:
		return apperr.New(apperr.KindFieldAccess, offset, "note property %q cannot be assigned", field)
	}
	_, err := ev.mutate(models.MutationContent, n.ID, offset, func(ops NoteOperations) (*models.Note, error) {
		return ops.UpdateContent(ev.ctx, n.ID, content)
	})
	return err
}

// lookupNote finds a note in the snapshot, falling back to the host.
func (ev *evaluator) lookupNote(ctx context.Context, id string) (*models.Note, error) {
	if n := ev.rt.Notes.Get(id); n != nil {
		return n, nil
	}
	if ev.rt.Ops == nil {
		return nil, apperr.ErrNotFound
	}
	return ev.rt.Ops.GetNoteByID(ctx, id)
}
