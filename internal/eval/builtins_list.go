package eval

import (
	"sort"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

var listBuiltins = []Builtin{
	{Name: "list", Static: true, Fn: func(c *Call) (value.Value, error) {
		out := make(value.List, len(c.Args))
		copy(out, c.Args)
		return out, nil
	}},
	{Name: "first", Static: true, Fn: listOp(func(l value.List) value.Value { return listAt(l, 0) })},
	{Name: "last", Static: true, Fn: listOp(func(l value.List) value.Value { return listAt(l, len(l)-1) })},
	{Name: "count", Static: true, Fn: listOp(func(l value.List) value.Value { return value.Number(len(l)) })},
	{Name: "reverse", Static: true, Fn: listOp(func(l value.List) value.Value {
		out := make(value.List, len(l))
		for i, e := range l {
			out[len(l)-1-i] = e
		}
		return out
	})},
	{Name: "sum", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		l, err := c.List(0)
		if err != nil {
			return nil, err
		}
		inner := &Call{Name: c.Name, Offset: c.Offset, Args: l, ev: c.ev, env: c.env}
		return fold(0, func(a, b float64) float64 { return a + b })(inner)
	}},
	{Name: "map", Static: true, Fn: func(c *Call) (value.Value, error) {
		l, fn, err := listAndLambda(c)
		if err != nil {
			return nil, err
		}
		out := make(value.List, len(l))
		for i, e := range l {
			v, err := c.Invoke(fn, e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}},
	{Name: "filter", Static: true, Fn: func(c *Call) (value.Value, error) {
		l, fn, err := listAndLambda(c)
		if err != nil {
			return nil, err
		}
		var out value.List
		for _, e := range l {
			v, err := c.Invoke(fn, e)
			if err != nil {
				return nil, err
			}
			if value.Truthy(v) {
				out = append(out, e)
			}
		}
		if out == nil {
			out = value.List{}
		}
		return out, nil
	}},
	{Name: "sort", Static: true, Fn: sortList},
}

func listOp(op func(value.List) value.Value) Func {
	return func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		l, err := c.List(0)
		if err != nil {
			return nil, err
		}
		return op(l), nil
	}
}

func listAndLambda(c *Call) (value.List, *value.Lambda, error) {
	if err := c.Arity(2, 2); err != nil {
		return nil, nil, err
	}
	l, err := c.List(0)
	if err != nil {
		return nil, nil, err
	}
	fn, err := c.Lambda(1)
	if err != nil {
		return nil, nil, err
	}
	return l, fn, nil
}

// sortList sorts by the values themselves or by the by: key lambda. Notes
// without a key sort by name.
func sortList(c *Call) (value.Value, error) {
	if err := c.Arity(1, 1); err != nil {
		return nil, err
	}
	if err := c.Only("by", "desc"); err != nil {
		return nil, err
	}
	l, err := c.List(0)
	if err != nil {
		return nil, err
	}
	keys := make([]value.Value, len(l))
	by, hasBy := c.Named["by"].(*value.Lambda)
	if _, given := c.Named["by"]; given && !hasBy {
		return nil, c.Errorf(apperr.KindType, "sort: by must be a lambda")
	}
	for i, e := range l {
		switch {
		case hasBy:
			k, err := c.Invoke(by, e)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		default:
			if n, ok := e.(*value.Note); ok {
				keys[i] = value.String(n.Record.FirstLine())
			} else {
				keys[i] = e
			}
		}
	}

	idx := make([]int, len(l))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		n, err := compare(c, keys[idx[a]], keys[idx[b]])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return n < 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	out := make(value.List, len(l))
	for i, j := range idx {
		out[i] = l[j]
	}
	if desc, ok := c.Named["desc"]; ok && value.Truthy(desc) {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
