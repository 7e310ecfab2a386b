package eval

import (
	"math"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

var mathBuiltins = []Builtin{
	{Name: "add", Static: true, Fn: fold(0, func(a, b float64) float64 { return a + b })},
	{Name: "multiply", Static: true, Fn: fold(1, func(a, b float64) float64 { return a * b })},
	{Name: "subtract", Static: true, Fn: binary(func(c *Call, a, b float64) (value.Value, error) {
		return value.Number(a - b), nil
	})},
	{Name: "divide", Static: true, Fn: binary(func(c *Call, a, b float64) (value.Value, error) {
		if b == 0 {
			return nil, c.Errorf(apperr.KindArithmetic, "division by zero")
		}
		return value.Number(a / b), nil
	})},
	{Name: "modulo", Static: true, Fn: binary(func(c *Call, a, b float64) (value.Value, error) {
		if b == 0 {
			return nil, c.Errorf(apperr.KindArithmetic, "modulo by zero")
		}
		return value.Number(math.Mod(a, b)), nil
	})},
	{Name: "round", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 2); err != nil {
			return nil, err
		}
		n, err := c.Number(0)
		if err != nil {
			return nil, err
		}
		places := 0.0
		if len(c.Args) == 2 {
			if places, err = c.Number(1); err != nil {
				return nil, err
			}
		}
		scale := math.Pow(10, places)
		return value.Number(math.Round(n*scale) / scale), nil
	}},
}

func fold(identity float64, op func(a, b float64) float64) Func {
	return func(c *Call) (value.Value, error) {
		if err := c.Arity(1, -1); err != nil {
			return nil, err
		}
		acc := identity
		for i := range c.Args {
			n, err := c.Number(i)
			if err != nil {
				return nil, err
			}
			acc = op(acc, n)
		}
		return value.Number(acc), nil
	}
}

func binary(op func(c *Call, a, b float64) (value.Value, error)) Func {
	return func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		a, err := c.Number(0)
		if err != nil {
			return nil, err
		}
		b, err := c.Number(1)
		if err != nil {
			return nil, err
		}
		return op(c, a, b)
	}
}
