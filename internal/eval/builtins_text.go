package eval

import (
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

var textBuiltins = []Builtin{
	{Name: "concat", Static: true, Fn: func(c *Call) (value.Value, error) {
		var sb strings.Builder
		for _, a := range c.Args {
			sb.WriteString(a.String())
		}
		return value.String(sb.String()), nil
	}},
	{Name: "upper", Static: true, Fn: stringOp(strings.ToUpper)},
	{Name: "lower", Static: true, Fn: stringOp(strings.ToLower)},
	{Name: "trim", Static: true, Fn: stringOp(strings.TrimSpace)},
	{Name: "length", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		switch t := c.Args[0].(type) {
		case value.String:
			return value.Number(len([]rune(string(t)))), nil
		case value.List:
			return value.Number(len(t)), nil
		case *value.View:
			return value.Number(len(t.Notes)), nil
		}
		return nil, c.typeError(0, "a string or list")
	}},
	{Name: "contains", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		switch t := c.Args[0].(type) {
		case value.String:
			sub, err := c.String(1)
			if err != nil {
				return nil, err
			}
			return value.Boolean(strings.Contains(string(t), sub)), nil
		case value.List:
			for _, e := range t {
				if e.Equal(c.Args[1]) {
					return value.Boolean(true), nil
				}
			}
			return value.Boolean(false), nil
		}
		return nil, c.typeError(0, "a string or list")
	}},
	{Name: "split", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		s, err := c.String(0)
		if err != nil {
			return nil, err
		}
		sep, err := c.String(1)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make(value.List, len(parts))
		for i, p := range parts {
			out[i] = value.String(p)
		}
		return out, nil
	}},
	{Name: "join", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 2); err != nil {
			return nil, err
		}
		l, err := c.List(0)
		if err != nil {
			return nil, err
		}
		sep := ", "
		if len(c.Args) == 2 {
			if sep, err = c.String(1); err != nil {
				return nil, err
			}
		}
		parts := make([]string, len(l))
		for i, e := range l {
			parts[i] = e.String()
		}
		return value.String(strings.Join(parts, sep)), nil
	}},
	{Name: "replace", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(3, 3); err != nil {
			return nil, err
		}
		var s [3]string
		for i := range s {
			v, err := c.String(i)
			if err != nil {
				return nil, err
			}
			s[i] = v
		}
		return value.String(strings.ReplaceAll(s[0], s[1], s[2])), nil
	}},
	{Name: "match", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		p, s := c.Args[0], c.Args[1]
		if _, ok := p.(*value.Pattern); !ok {
			p, s = s, p
		}
		pat, ok := p.(*value.Pattern)
		if !ok {
			return nil, c.Errorf(apperr.KindType, "match needs a pattern and a string")
		}
		str, ok := s.(value.String)
		if !ok {
			return nil, c.Errorf(apperr.KindType, "match needs a pattern and a string, got %s", s.Kind())
		}
		return value.Boolean(pat.Match(string(str))), nil
	}},
}

func stringOp(op func(string) string) Func {
	return func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		s, err := c.String(0)
		if err != nil {
			return nil, err
		}
		return value.String(op(s)), nil
	}
}
