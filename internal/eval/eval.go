package eval

import (
	"context"
	"errors"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/value"
)

// maxDepth bounds lambda nesting so runaway recursion fails cleanly.
const maxDepth = 200

// Evaluate evaluates e in env. Every failure is an *apperr.Error.
func Evaluate(ctx context.Context, e ast.Expr, env *Env) (value.Value, error) {
	ev := &evaluator{ctx: ctx, rt: env.rt}
	v, err := ev.eval(e, env)
	if err != nil {
		return nil, classify(err, e.Pos())
	}
	return v, nil
}

// Invoke calls l with args. It is used for button actions, which run
// outside of the directive that produced them.
func Invoke(ctx context.Context, l *value.Lambda, args []value.Value, env *Env) (value.Value, error) {
	ev := &evaluator{ctx: ctx, rt: env.rt}
	v, err := ev.invoke(l, args, env, -1)
	if err != nil {
		return nil, classify(err, -1)
	}
	return v, nil
}

// classify converts err to an *apperr.Error, filling in offset when the
// error does not carry one.
func classify(err error, offset int) *apperr.Error {
	ae := apperr.Classify(err)
	if ae.Offset < 0 && offset >= 0 {
		c := *ae
		c.Offset = offset
		return &c
	}
	return ae
}

type evaluator struct {
	ctx context.Context
	rt  *Runtime
}

func (ev *evaluator) eval(e ast.Expr, env *Env) (value.Value, error) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return value.Number(n.Value), nil

	case *ast.StringLiteral:
		return value.String(n.Value), nil

	case *ast.CurrentNoteRef:
		if ev.rt.Note == nil {
			return nil, apperr.New(apperr.KindValidation, n.Offset, "no current note")
		}
		return value.NewNote(ev.rt.Note), nil

	case *ast.VariableRef:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return nil, apperr.New(apperr.KindUnknownIdentifier, n.Offset, "unknown identifier %q", n.Name)
		}
		return v, nil

	case *ast.CallExpr:
		return ev.call(n, env)

	case *ast.PropertyAccess:
		target, err := ev.eval(n.Target, env)
		if err != nil {
			return nil, err
		}
		return ev.property(target, n.Name, n.Offset)

	case *ast.MethodCall:
		return ev.method(n, env)

	case *ast.Assignment:
		return ev.assign(n, env)

	case *ast.StatementList:
		var last value.Value = value.Undefined{}
		for _, s := range n.Statements {
			v, err := ev.eval(s, env)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	case *ast.LambdaExpr:
		return value.NewLambda(n.Params, n.Body, env, ev.rt.noteID()), nil

	case *ast.LambdaInvocation:
		fn, err := ev.eval(n.Lambda, env)
		if err != nil {
			return nil, err
		}
		l, ok := fn.(*value.Lambda)
		if !ok {
			return nil, apperr.New(apperr.KindType, n.Offset, "cannot invoke %s", fn.Kind())
		}
		args, err := ev.evalAll(n.Args, env)
		if err != nil {
			return nil, err
		}
		return ev.invoke(l, args, env, n.Offset)

	case *ast.OnceExpr:
		return ev.once(n, env)

	case *ast.RefreshExpr:
		return ev.refresh(n, env)

	case *ast.PatternExpr:
		p, err := value.NewPattern(n)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, n.Offset, "invalid pattern: %v", err)
		}
		return p, nil
	}
	return nil, apperr.New(apperr.KindSyntax, e.Pos(), "unsupported expression %T", e)
}

func (ev *evaluator) evalAll(es []ast.Expr, env *Env) ([]value.Value, error) {
	out := make([]value.Value, 0, len(es))
	for _, e := range es {
		v, err := ev.eval(e, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ev *evaluator) call(n *ast.CallExpr, env *Env) (value.Value, error) {
	if v, ok := env.Lookup(n.Name); ok {
		if l, ok := v.(*value.Lambda); ok {
			if len(n.Named) > 0 {
				return nil, apperr.New(apperr.KindArgument, n.Offset, "lambda %s takes positional arguments only", n.Name)
			}
			args, err := ev.evalAll(n.Args, env)
			if err != nil {
				return nil, err
			}
			return ev.invoke(l, args, env, n.Offset)
		}
		if len(n.Args) == 0 && len(n.Named) == 0 {
			return v, nil
		}
		return nil, apperr.New(apperr.KindType, n.Offset, "%s is a %s, not a function", n.Name, v.Kind())
	}

	b, ok := ev.rt.Registry.Lookup(n.Name)
	if !ok {
		return nil, apperr.New(apperr.KindUnknownIdentifier, n.Offset, "unknown identifier %q", n.Name)
	}
	if b.Temporal && len(n.Args) == 0 && len(n.Named) == 0 && ev.rt.temporal == 0 {
		return nil, apperr.New(apperr.KindValidation, n.Offset,
			"%s returns the current %s; wrap it in once[...] or refresh[...]", n.Name, n.Name)
	}

	args, err := ev.evalAll(n.Args, env)
	if err != nil {
		return nil, err
	}
	named := make(map[string]value.Value, len(n.Named))
	for _, na := range n.Named {
		v, err := ev.eval(na.Value, env)
		if err != nil {
			return nil, err
		}
		named[na.Name] = v
	}
	return ev.apply(b, args, named, env, n.Offset)
}

func (ev *evaluator) apply(b Builtin, args []value.Value, named map[string]value.Value, env *Env, offset int) (value.Value, error) {
	c := &Call{Name: b.Name, Offset: offset, Args: args, Named: named, ev: ev, env: env}
	v, err := b.Fn(c)
	if err != nil {
		return nil, classify(err, offset)
	}
	if v == nil {
		return value.Undefined{}, nil
	}
	return v, nil
}

func (ev *evaluator) invoke(l *value.Lambda, args []value.Value, env *Env, offset int) (value.Value, error) {
	if len(args) != len(l.Params) {
		return nil, apperr.New(apperr.KindArgument, offset, "lambda expects %d arguments, got %d", len(l.Params), len(args))
	}
	if ev.rt.depth >= maxDepth {
		return nil, apperr.New(apperr.KindCircularDependency, offset, "lambda recursion deeper than %d", maxDepth)
	}
	ev.rt.depth++
	defer func() { ev.rt.depth-- }()

	parent, ok := l.Scope.(*Env)
	if !ok || parent == nil {
		parent = env.root()
	}
	scope := parent.Child()
	for i, p := range l.Params {
		scope.Define(p, args[i])
	}
	if l.Origin != "" && l.Origin != ev.rt.noteID() && l.Profile != nil {
		ev.rt.Collector.AddReferencedDependencies(l.Profile.Record(l.Origin))
	}
	return ev.eval(l.Body, scope)
}

func (ev *evaluator) once(n *ast.OnceExpr, env *Env) (value.Value, error) {
	key := ast.CacheKey(n.Body)
	noteID := ev.rt.noteID()
	if ev.rt.Once != nil {
		if v, ok := ev.rt.Once.Get(noteID, key); ok {
			return value.Clone(v), nil
		}
	}
	ev.rt.temporal++
	v, err := ev.eval(n.Body, env)
	ev.rt.temporal--
	if err != nil {
		return nil, err
	}
	if ev.rt.Once != nil {
		ev.rt.Once.Put(noteID, key, value.Clone(v))
	}
	return v, nil
}

func (ev *evaluator) refresh(n *ast.RefreshExpr, env *Env) (value.Value, error) {
	ev.rt.temporal++
	defer func() { ev.rt.temporal-- }()

	r := Refresh{Body: n.Body}
	for _, t := range n.Triggers {
		v, err := ev.eval(t, env)
		if err != nil {
			return nil, err
		}
		s, ok := v.(*value.Schedule)
		if !ok {
			return nil, apperr.New(apperr.KindType, t.Pos(), "refresh trigger must be a schedule, got %s", v.Kind())
		}
		r.Triggers = append(r.Triggers, s)
	}
	v, err := ev.eval(n.Body, env)
	if err != nil {
		return nil, err
	}
	ev.rt.Refreshes = append(ev.rt.Refreshes, r)
	return v, nil
}

func (ev *evaluator) method(n *ast.MethodCall, env *Env) (value.Value, error) {
	target, err := ev.eval(n.Target, env)
	if err != nil {
		return nil, err
	}
	args, err := ev.evalAll(n.Args, env)
	if err != nil {
		return nil, err
	}
	named := make(map[string]value.Value, len(n.Named))
	for _, na := range n.Named {
		v, err := ev.eval(na.Value, env)
		if err != nil {
			return nil, err
		}
		named[na.Name] = v
	}

	if note, ok := target.(*value.Note); ok {
		if v, handled, err := ev.noteMethod(note.Record, n.Name, args, n.Offset); handled {
			return v, err
		}
	}
	b, ok := ev.rt.Registry.Lookup(n.Name)
	if !ok {
		return nil, apperr.New(apperr.KindFieldAccess, n.Offset, "%s has no method %q", target.Kind(), n.Name)
	}
	return ev.apply(b, append([]value.Value{target}, args...), named, env, n.Offset)
}

func (ev *evaluator) assign(n *ast.Assignment, env *Env) (value.Value, error) {
	v, err := ev.eval(n.Value, env)
	if err != nil {
		return nil, err
	}
	switch t := n.Target.(type) {
	case *ast.VariableRef:
		env.Define(t.Name, v)
		return v, nil
	case *ast.PropertyAccess:
		target, err := ev.eval(t.Target, env)
		if err != nil {
			return nil, err
		}
		note, ok := target.(*value.Note)
		if !ok {
			return nil, apperr.New(apperr.KindFieldAccess, t.Offset, "cannot assign %q on %s", t.Name, target.Kind())
		}
		if err := ev.setNoteField(note.Record, t.Name, v, t.Offset); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, apperr.New(apperr.KindSyntax, n.Offset, "invalid assignment target")
}

// mutate runs op through NoteOperations and records the change.
func (ev *evaluator) mutate(kind models.MutationKind, noteID string, offset int, op func(NoteOperations) (*models.Note, error)) (*models.Note, error) {
	if ev.rt.Ops == nil {
		return nil, apperr.New(apperr.KindValidation, offset, "notes cannot be modified here")
	}
	updated, err := op(ev.rt.Ops)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.KindValidation, offset, "note %q does not exist", noteID)
		}
		return nil, classify(err, offset)
	}
	ev.rt.Mutations = append(ev.rt.Mutations, models.NoteMutation{NoteID: noteID, Updated: updated.Clone(), Kind: kind})
	ev.rt.Notes = ev.rt.Notes.With(updated)
	if ev.rt.Note != nil && ev.rt.Note.ID == updated.ID {
		ev.rt.Note = updated
	}
	ev.rt.Collector.RecordMutation()
	return updated, nil
}
