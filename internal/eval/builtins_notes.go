package eval

import (
	"errors"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/hashing"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/value"
)

var noteBuiltins = []Builtin{
	{Name: "find", Fn: find},
	{Name: "note", Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		id, err := c.String(0)
		if err != nil {
			return nil, err
		}
		n, err := c.ev.lookupNote(c.Context(), id)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && n == nil) {
			c.Runtime().Collector.RecordFindUsage(false, "")
			return value.Undefined{}, nil
		}
		if err != nil {
			return nil, err
		}
		return value.NewNote(n), nil
	}},
	{Name: "view", Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, -1); err != nil {
			return nil, err
		}
		var notes []*models.Note
		for i, a := range c.Args {
			switch t := a.(type) {
			case *value.Note:
				notes = append(notes, t.Record)
			case value.List:
				for _, e := range t {
					n, ok := e.(*value.Note)
					if !ok {
						return nil, c.Errorf(apperr.KindType, "view: list items must be notes, got %s", e.Kind())
					}
					notes = append(notes, n.Record)
				}
			case *value.View:
				notes = append(notes, t.Notes...)
			case value.Undefined:
			default:
				return nil, c.typeError(i, "a note or list of notes")
			}
		}
		return &value.View{Notes: notes}, nil
	}},
	{Name: "append", Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 2); err != nil {
			return nil, err
		}
		target := c.Runtime().Note
		text := c.Args[len(c.Args)-1].String()
		if len(c.Args) == 2 {
			n, ok := c.Args[0].(*value.Note)
			if !ok {
				return nil, c.typeError(0, "a note")
			}
			target = n.Record
		}
		if target == nil {
			return nil, c.Errorf(apperr.KindValidation, "append: no note to append to")
		}
		updated, err := c.ev.appendText(target.ID, text, c.Offset)
		if err != nil {
			return nil, err
		}
		return value.NewNote(updated), nil
	}},
}

// find returns notes matching path: and name:. A string path matches the
// path itself and everything beneath it; a string name matches the first
// line ignoring case. Patterns must match the whole field.
func find(c *Call) (value.Value, error) {
	if err := c.Arity(0, 1); err != nil {
		return nil, err
	}
	if err := c.Only("path", "name"); err != nil {
		return nil, err
	}
	pathArg, hasPath := c.Named["path"]
	if len(c.Args) == 1 {
		if hasPath {
			return nil, c.Errorf(apperr.KindArgument, "find: path given twice")
		}
		pathArg, hasPath = c.Args[0], true
	}
	nameArg, hasName := c.Named["name"]

	pathMatch, err := matcher(c, "path", pathArg, hasPath, false)
	if err != nil {
		return nil, err
	}
	nameMatch, err := matcher(c, "name", nameArg, hasName, true)
	if err != nil {
		return nil, err
	}

	scope := ""
	if s, ok := pathArg.(value.String); ok {
		scope = string(s)
	}
	col := c.Runtime().Collector
	col.RecordFindUsage(hasName, scope)
	if hasPath {
		col.RecordMetadataAccess(hashing.FieldPath)
	}

	var found []*models.Note
	for _, n := range c.Runtime().Notes.All() {
		if pathMatch(n.Path) && nameMatch(n.FirstLine()) {
			found = append(found, n)
		}
	}
	// A found note displays as its name.
	for _, n := range found {
		col.RecordFirstLineAccess(n.ID)
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return notesList(found), nil
}

func matcher(c *Call, arg string, v value.Value, given, fold bool) (func(string) bool, error) {
	if !given {
		return func(string) bool { return true }, nil
	}
	switch t := v.(type) {
	case *value.Pattern:
		return t.Match, nil
	case value.String:
		want := string(t)
		if fold {
			return func(s string) bool { return strings.EqualFold(s, want) }, nil
		}
		return func(s string) bool { return hashing.InScope(s, []string{want}) }, nil
	}
	return nil, c.Errorf(apperr.KindType, "find: %s must be a string or pattern, got %s", arg, v.Kind())
}

var uiBuiltins = []Builtin{
	{Name: "button", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		label, err := c.String(0)
		if err != nil {
			return nil, err
		}
		action, err := c.Lambda(1)
		if err != nil {
			return nil, err
		}
		return &value.Button{Label: label, Action: action}, nil
	}},
}
