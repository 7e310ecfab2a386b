package parser

import (
	"math"

	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/lexer"
)

// pattern parses the body of `pattern(...)`:
//
//	element    = (STRING | class ("|" class)*) quantifier?
//	quantifier = "*" (NUMBER | "any" | "(" NUMBER ".." (NUMBER | "any") ")")
//
// Elements are separated by whitespace or commas.
func (p *parser) pattern(t lexer.Token) (ast.Expr, error) {
	if _, err := p.expect(lexer.LPAREN, "expected '(' after pattern"); err != nil {
		return nil, err
	}
	var elements []ast.PatternElement
	for !p.at(lexer.RPAREN) {
		el, err := p.patternElement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
		if p.at(lexer.COMMA) {
			p.next()
		}
	}
	if len(elements) == 0 {
		return nil, p.errorf(t, "empty pattern")
	}
	p.next()
	return &ast.PatternExpr{Offset: t.Offset, Elements: elements}, nil
}

func (p *parser) patternElement() (ast.PatternElement, error) {
	el := ast.PatternElement{Min: 1, Max: 1}
	t := p.next()
	switch t.Kind {
	case lexer.STRING:
		el.Literal = t.Literal.(string)
		if el.Literal == "" {
			return el, p.errorf(t, "empty pattern literal")
		}
	case lexer.IDENT:
		for {
			if !ast.IsPatternClass(t.Lexeme) {
				return el, p.errorf(t, "unknown pattern class %q", t.Lexeme)
			}
			el.Classes = append(el.Classes, t.Lexeme)
			if !p.at(lexer.PIPE) {
				break
			}
			p.next()
			t = p.next()
			if t.Kind != lexer.IDENT {
				return el, p.errorf(t, "expected pattern class after '|', found %s", t)
			}
		}
	default:
		return el, p.errorf(t, "unexpected %s in pattern", t)
	}

	if !p.at(lexer.STAR) {
		return el, nil
	}
	p.next()
	q := p.next()
	switch {
	case q.Kind == lexer.NUMBER:
		n, err := p.count(q)
		if err != nil {
			return el, err
		}
		el.Min, el.Max = n, n
	case q.Kind == lexer.IDENT && q.Lexeme == "any":
		el.Min, el.Max = 0, ast.Unbounded
	case q.Kind == lexer.LPAREN:
		lo, err := p.expect(lexer.NUMBER, "expected minimum count")
		if err != nil {
			return el, err
		}
		if el.Min, err = p.count(lo); err != nil {
			return el, err
		}
		if _, err := p.expect(lexer.DOTDOT, "expected '..'"); err != nil {
			return el, err
		}
		hi := p.next()
		switch {
		case hi.Kind == lexer.NUMBER:
			if el.Max, err = p.count(hi); err != nil {
				return el, err
			}
			if el.Max < el.Min {
				return el, p.errorf(hi, "maximum %d is below minimum %d", el.Max, el.Min)
			}
		case hi.Kind == lexer.IDENT && hi.Lexeme == "any":
			el.Max = ast.Unbounded
		default:
			return el, p.errorf(hi, "expected maximum count or 'any', found %s", hi)
		}
		if _, err := p.expect(lexer.RPAREN, "expected ')'"); err != nil {
			return el, err
		}
	default:
		return el, p.errorf(q, "expected quantifier after '*', found %s", q)
	}
	if el.Max == 0 {
		return el, p.errorf(q, "quantifier must allow at least one repetition")
	}
	return el, nil
}

// maxRepeat matches the repetition limit of the regexp package.
const maxRepeat = 1000

func (p *parser) count(t lexer.Token) (int, error) {
	f := t.Literal.(float64)
	if f != math.Trunc(f) || f < 0 || f > maxRepeat {
		return 0, p.errorf(t, "invalid repetition count %s", t.Lexeme)
	}
	return int(f), nil
}
