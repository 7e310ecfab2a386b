package deps

import (
	"math"

	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/hashing"
)

// Analyzer derives dependency profiles from expression trees.
// IsStatic reports builtins whose result depends only on their arguments;
// it is consulted for Profile.Constant only and may be nil.
type Analyzer struct {
	IsStatic func(name string) bool
}

// Analyze is Analyzer{}.Analyze.
func Analyze(e ast.Expr) *Profile {
	return Analyzer{}.Analyze(e)
}

// Analyze walks e and predicts what its result depends on. It never fails;
// shapes it does not recognise contribute nothing.
func (a Analyzer) Analyze(e ast.Expr) *Profile {
	w := &walker{a: a, p: &Profile{}, static: true}
	w.value(e)
	w.p.Constant = w.static && w.p.Flags == (Flags{}) &&
		len(w.p.FirstLine) == 0 && len(w.p.Remainder) == 0 && len(w.p.Hierarchy) == 0
	return w.p
}

type targetKind int

const (
	targetOther targetKind = iota
	targetSelf
	targetHierarchy
	targetNote
)

// target is what a sub-expression's receiver chain resolves to.
type target struct {
	kind   targetKind
	path   HierarchyPath
	noteID string
}

type walker struct {
	a      Analyzer
	p      *Profile
	static bool
}

// value analyzes e in a position where its result is consumed, so a
// hierarchy chain ending there depends on the ancestor itself.
func (w *walker) value(e ast.Expr) {
	w.use(w.expr(e))
}

func (w *walker) use(t target) {
	if t.kind == targetHierarchy {
		w.addPattern(HierarchyAccessPattern{Path: t.path})
	}
}

func (w *walker) addPattern(p HierarchyAccessPattern) {
	for _, existing := range w.p.Hierarchy {
		if existing == p {
			return
		}
	}
	w.p.Hierarchy = append(w.p.Hierarchy, p)
}

func (w *walker) expr(e ast.Expr) target {
	switch n := e.(type) {
	case *ast.CurrentNoteRef:
		w.p.UsesSelfAccess = true
		return target{kind: targetSelf}

	case *ast.CallExpr:
		return w.call(n)

	case *ast.PropertyAccess:
		return w.property(w.expr(n.Target), n.Name)

	case *ast.MethodCall:
		return w.method(n)

	case *ast.Assignment:
		w.p.IsMutating = true
		if pa, ok := n.Target.(*ast.PropertyAccess); ok {
			w.use(w.expr(pa.Target))
		}
		w.value(n.Value)

	case *ast.StatementList:
		for _, s := range n.Statements {
			w.value(s)
		}

	case *ast.LambdaExpr:
		w.value(n.Body)

	case *ast.LambdaInvocation:
		w.value(n.Lambda)
		for _, arg := range n.Args {
			w.value(arg)
		}

	case *ast.OnceExpr:
		w.p.UsesSelfAccess = true
		w.value(n.Body)

	case *ast.RefreshExpr:
		w.p.UsesSelfAccess = true
		for _, t := range n.Triggers {
			w.value(t)
		}
		w.value(n.Body)
	}
	return target{}
}

func (w *walker) call(n *ast.CallExpr) target {
	if w.a.IsStatic == nil || !w.a.IsStatic(n.Name) {
		w.static = false
	}
	for _, arg := range n.Args {
		w.value(arg)
	}
	for _, na := range n.Named {
		w.value(na.Value)
	}

	switch n.Name {
	case "find":
		w.p.DependsOnNoteExistence = true
		if namedArg(n, "path") != nil || len(n.Args) == 1 {
			w.p.DependsOnPath = true
		}
		if namedArg(n, "name") != nil {
			w.p.DependsOnAllNames = true
			scope := ""
			if s, ok := namedArg(n, "path").(*ast.StringLiteral); ok {
				scope = s.Value
			}
			w.p.NameScopes = addSorted(w.p.NameScopes, scope)
		}
	case "note":
		if len(n.Args) == 1 {
			if s, ok := n.Args[0].(*ast.StringLiteral); ok {
				return target{kind: targetNote, noteID: s.Value}
			}
		}
	case "append":
		w.p.IsMutating = true
		if len(n.Args) == 1 {
			w.p.UsesSelfAccess = true
		}
	}
	return target{}
}

func namedArg(n *ast.CallExpr, name string) ast.Expr {
	for _, na := range n.Named {
		if na.Name == name {
			return na.Value
		}
	}
	return nil
}

func (w *walker) property(t target, name string) target {
	switch name {
	case "up":
		return climb(t, 1)
	case "root":
		if t.kind == targetSelf || t.kind == targetHierarchy {
			return target{kind: targetHierarchy, path: Root()}
		}
		return target{}
	case "children":
		w.p.DependsOnNoteExistence = true
		w.use(t)
		return target{}
	case hashing.FieldPath:
		w.p.DependsOnPath = true
	case hashing.FieldModified:
		w.p.DependsOnModified = true
	case hashing.FieldCreated:
		w.p.DependsOnCreated = true
	case hashing.FieldViewed:
		w.p.DependsOnViewed = true
	case hashing.FieldName, hashing.FieldContent, hashing.FieldBody:
	default:
		w.use(t)
		return target{}
	}

	switch t.kind {
	case targetHierarchy:
		w.addPattern(HierarchyAccessPattern{Path: t.path, Field: name})
	case targetSelf:
		w.contentAccess(SelfID, name)
	case targetNote:
		w.contentAccess(t.noteID, name)
	}
	return target{}
}

func (w *walker) contentAccess(id, field string) {
	switch field {
	case hashing.FieldName:
		w.p.FirstLine = addSorted(w.p.FirstLine, id)
	case hashing.FieldBody:
		w.p.Remainder = addSorted(w.p.Remainder, id)
	case hashing.FieldContent:
		w.p.FirstLine = addSorted(w.p.FirstLine, id)
		w.p.Remainder = addSorted(w.p.Remainder, id)
	}
}

func (w *walker) method(n *ast.MethodCall) target {
	t := w.expr(n.Target)
	for _, arg := range n.Args {
		w.value(arg)
	}
	for _, na := range n.Named {
		w.value(na.Value)
	}
	switch n.Name {
	case "up":
		if len(n.Args) == 1 {
			if lit, ok := n.Args[0].(*ast.NumberLiteral); ok && lit.Value >= 0 && lit.Value == math.Trunc(lit.Value) {
				return climb(t, int(lit.Value))
			}
		}
	case "append":
		w.p.IsMutating = true
	}
	w.use(t)
	return target{}
}

// climb extends a self or Up(n) chain by levels.
func climb(t target, levels int) target {
	switch {
	case levels == 0 && (t.kind == targetSelf || t.kind == targetHierarchy):
		return t
	case t.kind == targetSelf:
		return target{kind: targetHierarchy, path: Up(levels)}
	case t.kind == targetHierarchy && t.path.Kind == PathUp:
		return target{kind: targetHierarchy, path: Up(t.path.N + levels)}
	}
	return target{}
}
