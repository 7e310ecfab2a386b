// Package parser builds directive expression trees from tokens.
package parser

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/lexer"
)

// Error is a parse failure at a byte offset.
type Error struct {
	Message string
	Offset  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Offset, e.Message)
}

// ErrorKind classifies parse failures as syntax errors.
func (e *Error) ErrorKind() apperr.Kind { return apperr.KindSyntax }

// ErrorOffset returns the offset of the failure.
func (e *Error) ErrorOffset() int { return e.Offset }

// Parse lexes and parses a bracketed directive such as `[add(1, 2)]`.
func Parse(source string) (*ast.Directive, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return ParseDirective(toks, source)
}

// ParseDirective parses a token stream that must hold exactly one
// bracketed directive.
func ParseDirective(tokens []lexer.Token, source string) (*ast.Directive, error) {
	p := newParser(tokens)
	open, err := p.expect(lexer.LBRACKET, "directive must start with '['")
	if err != nil {
		return nil, err
	}
	body, err := p.statements(lexer.RBRACKET)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACKET, "expected ']' to close directive"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.EOF, "unexpected input after directive"); err != nil {
		return nil, err
	}
	return &ast.Directive{Expr: body, Source: source, Start: open.Offset}, nil
}

// ParseExpr parses an unbracketed statement list. Names in bound parse as
// variable references; it is used to rebuild serialized lambda bodies.
func ParseExpr(source string, bound ...string) (ast.Expr, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	p := newParser(toks)
	for _, name := range bound {
		p.bind(name)
	}
	e, err := p.statements(lexer.EOF)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.EOF, "unexpected input"); err != nil {
		return nil, err
	}
	return e, nil
}

type parser struct {
	toks   []lexer.Token
	pos    int
	scopes []map[string]bool
}

func newParser(toks []lexer.Token) *parser {
	return &parser{toks: toks, scopes: []map[string]bool{{}}}
}

func (p *parser) peek() lexer.Token { return p.peekN(0) }

func (p *parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(k lexer.Kind) bool { return p.peek().Kind == k }

func (p *parser) expect(k lexer.Kind, msg string) (lexer.Token, error) {
	t := p.peek()
	if t.Kind != k {
		return t, p.errorf(t, "%s, found %s", msg, t)
	}
	return p.next(), nil
}

func (p *parser) errorf(t lexer.Token, format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...), Offset: t.Offset}
}

func (p *parser) pushScope(names ...string) {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	p.scopes = append(p.scopes, s)
}

func (p *parser) popScope() { p.scopes = p.scopes[:len(p.scopes)-1] }

func (p *parser) bind(name string) { p.scopes[len(p.scopes)-1][name] = true }

func (p *parser) bound(name string) bool {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if p.scopes[i][name] {
			return true
		}
	}
	return false
}

// statements parses `expr (; expr)*` up to (not including) the end token.
func (p *parser) statements(end lexer.Kind) (ast.Expr, error) {
	start := p.peek()
	if p.at(end) {
		return nil, p.errorf(start, "empty expression")
	}
	var stmts []ast.Expr
	for {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, e)
		if !p.at(lexer.SEMI) {
			break
		}
		p.next()
		if p.at(end) {
			break
		}
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return &ast.StatementList{Offset: start.Offset, Statements: stmts}, nil
}

// expr parses a juxtaposition chain optionally followed by `= value`.
func (p *parser) expr() (ast.Expr, error) {
	lhs, err := p.chain()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.ASSIGN) {
		return lhs, nil
	}
	eq := p.next()
	target, err := p.assignTarget(lhs, eq)
	if err != nil {
		return nil, err
	}
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if v, ok := target.(*ast.VariableRef); ok {
		p.bind(v.Name)
	}
	return &ast.Assignment{Offset: lhs.Pos(), Target: target, Value: value}, nil
}

func (p *parser) assignTarget(lhs ast.Expr, eq lexer.Token) (ast.Expr, error) {
	switch t := lhs.(type) {
	case *ast.VariableRef, *ast.PropertyAccess:
		return t, nil
	case *ast.CallExpr:
		if len(t.Args) == 0 && len(t.Named) == 0 {
			return &ast.VariableRef{Offset: t.Offset, Name: t.Name}, nil
		}
	}
	return nil, p.errorf(eq, "invalid assignment target")
}

// startsTerm reports whether t can begin the argument of a juxtaposed call.
func startsTerm(t lexer.Token) bool {
	switch t.Kind {
	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.DOT:
		return true
	}
	return false
}

// chain parses right-to-left juxtaposition: `a b c` is `a(b(c()))`.
func (p *parser) chain() (ast.Expr, error) {
	e, bare, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if bare != nil && startsTerm(p.peek()) {
		arg, err := p.chain()
		if err != nil {
			return nil, err
		}
		bare.Args = []ast.Expr{arg}
	}
	return e, nil
}

// postfix parses a primary followed by `.name`, `.name(...)` and lambda
// invocations. bare is non-nil when the result is an unparenthesised
// identifier call that may take a juxtaposed argument.
func (p *parser) postfix() (ast.Expr, *ast.CallExpr, error) {
	e, bare, invocable, err := p.primary()
	if err != nil {
		return nil, nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.Kind == lexer.DOT && !t.SpaceBefore && p.peekN(1).Kind == lexer.IDENT && !p.peekN(1).SpaceBefore:
			p.next()
			e, err = p.member(e, p.next())
			if err != nil {
				return nil, nil, err
			}
			bare, invocable = nil, false
		case t.Kind == lexer.LPAREN && invocable:
			args, named, err := p.args()
			if err != nil {
				return nil, nil, err
			}
			if len(named) > 0 {
				return nil, nil, p.errorf(t, "lambda invocation takes positional arguments only")
			}
			e = &ast.LambdaInvocation{Offset: e.Pos(), Lambda: e, Args: args}
			bare, invocable = nil, false
		default:
			return e, bare, nil
		}
	}
}

func (p *parser) member(target ast.Expr, name lexer.Token) (ast.Expr, error) {
	if p.at(lexer.LPAREN) && !p.peek().SpaceBefore {
		args, named, err := p.args()
		if err != nil {
			return nil, err
		}
		return &ast.MethodCall{Offset: target.Pos(), Target: target, Name: name.Lexeme, Args: args, Named: named}, nil
	}
	return &ast.PropertyAccess{Offset: target.Pos(), Target: target, Name: name.Lexeme}, nil
}

func (p *parser) primary() (e ast.Expr, bare *ast.CallExpr, invocable bool, err error) {
	t := p.peek()
	switch t.Kind {
	case lexer.NUMBER:
		p.next()
		return &ast.NumberLiteral{Offset: t.Offset, Value: t.Literal.(float64)}, nil, false, nil

	case lexer.STRING:
		p.next()
		return &ast.StringLiteral{Offset: t.Offset, Value: t.Literal.(string)}, nil, false, nil

	case lexer.DOT:
		p.next()
		self := &ast.CurrentNoteRef{Offset: t.Offset}
		if n := p.peek(); n.Kind == lexer.IDENT && !n.SpaceBefore {
			p.next()
			m, err := p.member(self, n)
			return m, nil, false, err
		}
		return self, nil, false, nil

	case lexer.LBRACKET:
		l, err := p.bracketLambda([]string{ast.ImplicitParam})
		return l, nil, true, err

	case lexer.LPAREN:
		if params, ok := p.lambdaParams(); ok {
			l, err := p.bracketLambda(params)
			return l, nil, true, err
		}
		p.next()
		inner, err := p.expr()
		if err != nil {
			return nil, nil, false, err
		}
		if _, err := p.expect(lexer.RPAREN, "expected ')'"); err != nil {
			return nil, nil, false, err
		}
		return inner, nil, true, nil

	case lexer.IDENT:
		return p.identifier()
	}
	return nil, nil, false, p.errorf(t, "unexpected %s", t)
}

func (p *parser) identifier() (ast.Expr, *ast.CallExpr, bool, error) {
	t := p.next()
	name := t.Lexeme
	nextTok := p.peek()

	switch {
	case name == "once" && nextTok.Kind == lexer.LBRACKET:
		body, err := p.bracketBody()
		if err != nil {
			return nil, nil, false, err
		}
		return &ast.OnceExpr{Offset: t.Offset, Body: body}, nil, false, nil

	case name == "refresh" && (nextTok.Kind == lexer.LBRACKET || nextTok.Kind == lexer.LPAREN):
		r, err := p.refresh(t)
		return r, nil, false, err

	case name == "pattern" && nextTok.Kind == lexer.LPAREN:
		pe, err := p.pattern(t)
		return pe, nil, false, err

	case name == "later" && !p.bound(name):
		l, err := p.later(t)
		return l, nil, true, err
	}

	switch nextTok.Kind {
	case lexer.LPAREN:
		args, named, err := p.args()
		if err != nil {
			return nil, nil, false, err
		}
		return &ast.CallExpr{Offset: t.Offset, Name: name, Args: args, Named: named}, nil, false, nil
	case lexer.LBRACKET:
		l, err := p.bracketLambda([]string{ast.ImplicitParam})
		if err != nil {
			return nil, nil, false, err
		}
		return &ast.CallExpr{Offset: t.Offset, Name: name, Args: []ast.Expr{l}}, nil, false, nil
	}

	if p.bound(name) {
		return &ast.VariableRef{Offset: t.Offset, Name: name}, nil, true, nil
	}
	call := &ast.CallExpr{Offset: t.Offset, Name: name}
	return call, call, false, nil
}

// later desugars `later expr` and `later[expr]` to an implicit lambda.
func (p *parser) later(t lexer.Token) (ast.Expr, error) {
	if p.at(lexer.LBRACKET) {
		return p.bracketLambda([]string{ast.ImplicitParam})
	}
	if !startsTerm(p.peek()) && !p.at(lexer.LPAREN) {
		return nil, p.errorf(p.peek(), "later needs an expression")
	}
	p.pushScope(ast.ImplicitParam)
	defer p.popScope()
	body, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ast.LambdaExpr{Offset: t.Offset, Params: []string{ast.ImplicitParam}, Body: body}, nil
}

func (p *parser) refresh(t lexer.Token) (ast.Expr, error) {
	var triggers []ast.Expr
	if p.at(lexer.LPAREN) {
		args, named, err := p.args()
		if err != nil {
			return nil, err
		}
		if len(named) > 0 {
			return nil, p.errorf(t, "refresh triggers are positional")
		}
		triggers = args
	}
	if !p.at(lexer.LBRACKET) {
		return nil, p.errorf(p.peek(), "expected '[' after refresh")
	}
	body, err := p.bracketBody()
	if err != nil {
		return nil, err
	}
	return &ast.RefreshExpr{Offset: t.Offset, Triggers: triggers, Body: body}, nil
}

// lambdaParams recognises `(a, b)[` without consuming anything unless it
// matches.
func (p *parser) lambdaParams() ([]string, bool) {
	i := 1
	var params []string
	if p.peekN(i).Kind == lexer.RPAREN {
		if p.peekN(i+1).Kind == lexer.LBRACKET {
			p.pos += i + 1
			return []string{}, true
		}
		return nil, false
	}
	for {
		if p.peekN(i).Kind != lexer.IDENT {
			return nil, false
		}
		params = append(params, p.peekN(i).Lexeme)
		i++
		switch p.peekN(i).Kind {
		case lexer.COMMA:
			i++
		case lexer.RPAREN:
			if p.peekN(i+1).Kind != lexer.LBRACKET {
				return nil, false
			}
			p.pos += i + 1
			return params, true
		default:
			return nil, false
		}
	}
}

func (p *parser) bracketLambda(params []string) (ast.Expr, error) {
	open := p.peek()
	p.pushScope(params...)
	defer p.popScope()
	body, err := p.bracketBody()
	if err != nil {
		return nil, err
	}
	return &ast.LambdaExpr{Offset: open.Offset, Params: params, Body: body}, nil
}

func (p *parser) bracketBody() (ast.Expr, error) {
	if _, err := p.expect(lexer.LBRACKET, "expected '['"); err != nil {
		return nil, err
	}
	body, err := p.statements(lexer.RBRACKET)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACKET, "expected ']'"); err != nil {
		return nil, err
	}
	return body, nil
}

// args parses `(a, b, name: c)`.
func (p *parser) args() ([]ast.Expr, []ast.NamedArg, error) {
	if _, err := p.expect(lexer.LPAREN, "expected '('"); err != nil {
		return nil, nil, err
	}
	var args []ast.Expr
	var named []ast.NamedArg
	seen := map[string]bool{}
	for !p.at(lexer.RPAREN) {
		if p.at(lexer.IDENT) && p.peekN(1).Kind == lexer.COLON {
			nameTok := p.next()
			p.next()
			if seen[nameTok.Lexeme] {
				return nil, nil, p.errorf(nameTok, "duplicate argument %q", nameTok.Lexeme)
			}
			seen[nameTok.Lexeme] = true
			v, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			named = append(named, ast.NamedArg{Name: nameTok.Lexeme, Value: v})
		} else {
			if len(named) > 0 {
				return nil, nil, p.errorf(p.peek(), "positional argument after named argument")
			}
			v, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, v)
		}
		if !p.at(lexer.COMMA) {
			break
		}
		p.next()
	}
	if _, err := p.expect(lexer.RPAREN, "expected ')'"); err != nil {
		return nil, nil, err
	}
	return args, named, nil
}
