package eval

import (
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

var logicBuiltins = []Builtin{
	{Name: "true", Static: true, Fn: constant(value.Boolean(true))},
	{Name: "false", Static: true, Fn: constant(value.Boolean(false))},
	{Name: "not", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		return value.Boolean(!value.Truthy(c.Args[0])), nil
	}},
	{Name: "and", Static: true, Fn: func(c *Call) (value.Value, error) {
		for _, a := range c.Args {
			if !value.Truthy(a) {
				return value.Boolean(false), nil
			}
		}
		return value.Boolean(true), nil
	}},
	{Name: "or", Static: true, Fn: func(c *Call) (value.Value, error) {
		for _, a := range c.Args {
			if value.Truthy(a) {
				return value.Boolean(true), nil
			}
		}
		return value.Boolean(false), nil
	}},
	{Name: "if", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 3); err != nil {
			return nil, err
		}
		if value.Truthy(c.Args[0]) {
			return c.Args[1], nil
		}
		if len(c.Args) == 3 {
			return c.Args[2], nil
		}
		return value.Undefined{}, nil
	}},
	{Name: "eq", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		return value.Boolean(c.Args[0].Equal(c.Args[1])), nil
	}},
	{Name: "ne", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		return value.Boolean(!c.Args[0].Equal(c.Args[1])), nil
	}},
	{Name: "lt", Static: true, Fn: ordered(func(cmp int) bool { return cmp < 0 })},
	{Name: "gt", Static: true, Fn: ordered(func(cmp int) bool { return cmp > 0 })},
	{Name: "lte", Static: true, Fn: ordered(func(cmp int) bool { return cmp <= 0 })},
	{Name: "gte", Static: true, Fn: ordered(func(cmp int) bool { return cmp >= 0 })},
}

func constant(v value.Value) Func {
	return func(c *Call) (value.Value, error) {
		if err := c.Arity(0, 0); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func ordered(test func(int) bool) Func {
	return func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		n, err := compare(c, c.Args[0], c.Args[1])
		if err != nil {
			return nil, err
		}
		return value.Boolean(test(n)), nil
	}
}

// compare orders two values of the same comparable kind.
func compare(c *Call, a, b value.Value) (int, error) {
	if a.Kind() != b.Kind() {
		return 0, c.Errorf(apperr.KindType, "%s: cannot compare %s with %s", c.Name, a.Kind(), b.Kind())
	}
	switch x := a.(type) {
	case value.Number:
		y := b.(value.Number)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case value.String:
		return strings.Compare(string(x), string(b.(value.String))), nil
	case value.Date:
		return x.Time().Compare(b.(value.Date).Time()), nil
	case value.Time:
		y := b.(value.Time)
		return (x.Hour*60 + x.Minute) - (y.Hour*60 + y.Minute), nil
	case value.DateTime:
		return x.T.Compare(b.(value.DateTime).T), nil
	case value.Boolean:
		y := b.(value.Boolean)
		switch {
		case x == y:
			return 0, nil
		case !bool(x):
			return -1, nil
		}
		return 1, nil
	}
	return 0, c.Errorf(apperr.KindType, "%s: %s values are not ordered", c.Name, a.Kind())
}
