// Package ast defines the directive expression tree.
//
// Nodes are immutable once parsed. Every node records the byte offset of its
// first token in the directive source for error reporting; offsets never
// take part in normalization or cache keys.
package ast

// Expr is implemented by every expression node.
type Expr interface {
	Pos() int
	exprNode()
}

// NumberLiteral is a numeric constant.
type NumberLiteral struct {
	Offset int
	Value  float64
}

// StringLiteral is a quoted string constant.
type StringLiteral struct {
	Offset int
	Value  string
}

// NamedArg is a `name: value` argument.
type NamedArg struct {
	Name  string
	Value Expr
}

// CallExpr calls a builtin (or a lambda bound to a variable) by name.
type CallExpr struct {
	Offset int
	Name   string
	Args   []Expr
	Named  []NamedArg
}

// CurrentNoteRef is the leading `.`: the note containing the directive.
type CurrentNoteRef struct {
	Offset int
}

// VariableRef reads a variable bound by an assignment or lambda parameter.
type VariableRef struct {
	Offset int
	Name   string
}

// PropertyAccess is `target.name`.
type PropertyAccess struct {
	Offset int
	Target Expr
	Name   string
}

// MethodCall is `target.name(args...)`.
type MethodCall struct {
	Offset int
	Target Expr
	Name   string
	Args   []Expr
	Named  []NamedArg
}

// Assignment is `target = value`. Target is a VariableRef or a
// PropertyAccess on a note.
type Assignment struct {
	Offset int
	Target Expr
	Value  Expr
}

// StatementList evaluates statements in order and yields the last.
type StatementList struct {
	Offset     int
	Statements []Expr
}

// LambdaExpr is a closure literal.
type LambdaExpr struct {
	Offset int
	Params []string
	Body   Expr
}

// LambdaInvocation applies a lambda-valued expression to arguments.
type LambdaInvocation struct {
	Offset int
	Lambda Expr
	Args   []Expr
}

// OnceExpr evaluates Body once per cache lifetime and replays the result.
type OnceExpr struct {
	Offset int
	Body   Expr
}

// RefreshExpr evaluates Body on every call; the scheduler re-runs it when
// one of its triggers fires. Triggers is empty for `refresh[...]`.
type RefreshExpr struct {
	Offset   int
	Triggers []Expr
	Body     Expr
}

// Unbounded is the Max of a quantifier with no upper limit.
const Unbounded = -1

// PatternElement is one quantified unit of a pattern: either a literal
// string or a union of character classes.
type PatternElement struct {
	Literal string
	Classes []string
	Min     int
	Max     int
}

// IsLiteral reports whether the element matches a fixed string.
func (e PatternElement) IsLiteral() bool { return len(e.Classes) == 0 }

// PatternExpr is `pattern(...)`.
type PatternExpr struct {
	Offset   int
	Elements []PatternElement
}

func (e *NumberLiteral) Pos() int    { return e.Offset }
func (e *StringLiteral) Pos() int    { return e.Offset }
func (e *CallExpr) Pos() int         { return e.Offset }
func (e *CurrentNoteRef) Pos() int   { return e.Offset }
func (e *VariableRef) Pos() int      { return e.Offset }
func (e *PropertyAccess) Pos() int   { return e.Offset }
func (e *MethodCall) Pos() int       { return e.Offset }
func (e *Assignment) Pos() int       { return e.Offset }
func (e *StatementList) Pos() int    { return e.Offset }
func (e *LambdaExpr) Pos() int       { return e.Offset }
func (e *LambdaInvocation) Pos() int { return e.Offset }
func (e *OnceExpr) Pos() int         { return e.Offset }
func (e *RefreshExpr) Pos() int      { return e.Offset }
func (e *PatternExpr) Pos() int      { return e.Offset }

func (*NumberLiteral) exprNode()    {}
func (*StringLiteral) exprNode()    {}
func (*CallExpr) exprNode()         {}
func (*CurrentNoteRef) exprNode()   {}
func (*VariableRef) exprNode()      {}
func (*PropertyAccess) exprNode()   {}
func (*MethodCall) exprNode()       {}
func (*Assignment) exprNode()       {}
func (*StatementList) exprNode()    {}
func (*LambdaExpr) exprNode()       {}
func (*LambdaInvocation) exprNode() {}
func (*OnceExpr) exprNode()         {}
func (*RefreshExpr) exprNode()      {}
func (*PatternExpr) exprNode()      {}

// Directive is one bracketed expression found in note text.
type Directive struct {
	Expr   Expr
	Source string
	Start  int
}

// ImplicitParam is the parameter name of `[...]` lambdas.
const ImplicitParam = "i"
