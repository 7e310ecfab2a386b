package eval

import (
	"context"
	"sort"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

// Func implements a builtin.
type Func func(c *Call) (value.Value, error)

// Builtin is a named function callable from directives.
//
// Static builtins compute their result from their arguments alone.
// Temporal builtins return the current date or time when called without
// arguments, which is only allowed inside once[...] or refresh[...].
type Builtin struct {
	Name     string
	Static   bool
	Temporal bool
	Fn       Func
}

// Registry maps names to builtins.
type Registry struct {
	byName map[string]Builtin
}

// NewRegistry returns a registry holding builtins.
func NewRegistry(builtins ...Builtin) *Registry {
	r := &Registry{byName: make(map[string]Builtin, len(builtins))}
	for _, b := range builtins {
		r.Register(b)
	}
	return r
}

// DefaultRegistry returns a registry with every standard builtin.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, group := range [][]Builtin{mathBuiltins, logicBuiltins, textBuiltins, listBuiltins, timeBuiltins, noteBuiltins, uiBuiltins} {
		for _, b := range group {
			r.Register(b)
		}
	}
	return r
}

// Register adds or replaces a builtin.
func (r *Registry) Register(b Builtin) { r.byName[b.Name] = b }

// Lookup returns the builtin called name.
func (r *Registry) Lookup(name string) (Builtin, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// IsStatic reports whether name is a static builtin.
func (r *Registry) IsStatic(name string) bool {
	b, ok := r.byName[name]
	return ok && b.Static
}

// Names returns all builtin names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call is the invocation of a builtin.
type Call struct {
	Name   string
	Offset int
	Args   []value.Value
	Named  map[string]value.Value

	ev  *evaluator
	env *Env
}

// Context returns the evaluation context.
func (c *Call) Context() context.Context { return c.ev.ctx }

// Runtime returns the shared evaluation state.
func (c *Call) Runtime() *Runtime { return c.ev.rt }

// Errorf builds an error of kind located at the call.
func (c *Call) Errorf(kind apperr.Kind, format string, args ...any) error {
	return apperr.New(kind, c.Offset, format, args...)
}

// Arity checks the positional argument count; max < 0 means unbounded.
func (c *Call) Arity(min, max int) error {
	n := len(c.Args)
	switch {
	case n < min && min == max:
		return c.Errorf(apperr.KindArgument, "%s expects %d arguments, got %d", c.Name, min, n)
	case n < min:
		return c.Errorf(apperr.KindArgument, "%s expects at least %d arguments, got %d", c.Name, min, n)
	case max >= 0 && n > max:
		return c.Errorf(apperr.KindArgument, "%s expects at most %d arguments, got %d", c.Name, max, n)
	}
	return nil
}

// Only rejects named arguments other than names.
func (c *Call) Only(names ...string) error {
	for k := range c.Named {
		found := false
		for _, n := range names {
			if n == k {
				found = true
				break
			}
		}
		if !found {
			return c.Errorf(apperr.KindArgument, "%s has no argument %q", c.Name, k)
		}
	}
	return nil
}

func (c *Call) typeError(i int, want string) error {
	return c.Errorf(apperr.KindType, "%s: argument %d must be %s, got %s", c.Name, i+1, want, c.Args[i].Kind())
}

// Number returns positional argument i as a number.
func (c *Call) Number(i int) (float64, error) {
	n, ok := c.Args[i].(value.Number)
	if !ok {
		return 0, c.typeError(i, "a number")
	}
	return float64(n), nil
}

// String returns positional argument i as a string.
func (c *Call) String(i int) (string, error) {
	s, ok := c.Args[i].(value.String)
	if !ok {
		return "", c.typeError(i, "a string")
	}
	return string(s), nil
}

// List returns positional argument i as a list. A view counts as the list
// of its notes.
func (c *Call) List(i int) (value.List, error) {
	switch t := c.Args[i].(type) {
	case value.List:
		return t, nil
	case *value.View:
		return notesList(t.Notes), nil
	}
	return nil, c.typeError(i, "a list")
}

// Lambda returns positional argument i as a lambda.
func (c *Call) Lambda(i int) (*value.Lambda, error) {
	l, ok := c.Args[i].(*value.Lambda)
	if !ok {
		return nil, c.typeError(i, "a lambda")
	}
	return l, nil
}

// Invoke calls l with args in the caller's scope.
func (c *Call) Invoke(l *value.Lambda, args ...value.Value) (value.Value, error) {
	return c.ev.invoke(l, args, c.env, c.Offset)
}
