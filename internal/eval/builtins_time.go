package eval

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

var timeBuiltins = []Builtin{
	{Name: "date", Temporal: true, Fn: func(c *Call) (value.Value, error) {
		switch len(c.Args) {
		case 0:
			return value.DateOf(c.Runtime().now()), nil
		case 1:
			switch t := c.Args[0].(type) {
			case value.DateTime:
				return value.DateOf(t.T), nil
			case value.Date:
				return t, nil
			}
			s, err := c.String(0)
			if err != nil {
				return nil, err
			}
			d, err := time.Parse(value.DateLayout, s)
			if err != nil {
				return nil, c.Errorf(apperr.KindValidation, "date: %q is not YYYY-MM-DD", s)
			}
			return value.DateOf(d), nil
		case 3:
			var parts [3]int
			for i := range parts {
				n, err := wholeNumber(c, i)
				if err != nil {
					return nil, err
				}
				parts[i] = n
			}
			return value.DateOf(time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)), nil
		}
		return nil, c.Errorf(apperr.KindArgument, "date expects 0, 1 or 3 arguments, got %d", len(c.Args))
	}},
	{Name: "time", Temporal: true, Fn: func(c *Call) (value.Value, error) {
		switch len(c.Args) {
		case 0:
			return value.TimeOf(c.Runtime().now()), nil
		case 1:
			if dt, ok := c.Args[0].(value.DateTime); ok {
				return value.TimeOf(dt.T), nil
			}
			s, err := c.String(0)
			if err != nil {
				return nil, err
			}
			return parseClock(c, s)
		case 2:
			h, err := wholeNumber(c, 0)
			if err != nil {
				return nil, err
			}
			m, err := wholeNumber(c, 1)
			if err != nil {
				return nil, err
			}
			if h > 23 || m > 59 {
				return nil, c.Errorf(apperr.KindValidation, "time: %d:%d is out of range", h, m)
			}
			return value.Time{Hour: h, Minute: m}, nil
		}
		return nil, c.Errorf(apperr.KindArgument, "time expects 0, 1 or 2 arguments, got %d", len(c.Args))
	}},
	{Name: "datetime", Temporal: true, Fn: func(c *Call) (value.Value, error) {
		switch len(c.Args) {
		case 0:
			return value.DateTimeOf(c.Runtime().now()), nil
		case 1:
			s, err := c.String(0)
			if err != nil {
				return nil, err
			}
			t, err := time.ParseInLocation(value.DateTimeLayout, s, time.Local)
			if err != nil {
				return nil, c.Errorf(apperr.KindValidation, "datetime: %q is not YYYY-MM-DD HH:MM", s)
			}
			return value.DateTimeOf(t), nil
		case 2:
			d, ok := c.Args[0].(value.Date)
			if !ok {
				return nil, c.typeError(0, "a date")
			}
			t, ok := c.Args[1].(value.Time)
			if !ok {
				return nil, c.typeError(1, "a time")
			}
			return value.DateTimeOf(time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, time.Local)), nil
		}
		return nil, c.Errorf(apperr.KindArgument, "datetime expects 0, 1 or 2 arguments, got %d", len(c.Args))
	}},
	{Name: "add_days", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		n, err := integer(c, 1)
		if err != nil {
			return nil, err
		}
		switch t := c.Args[0].(type) {
		case value.Date:
			return value.DateOf(t.Time().AddDate(0, 0, n)), nil
		case value.DateTime:
			return value.DateTime{T: t.T.AddDate(0, 0, n)}, nil
		}
		return nil, c.typeError(0, "a date or datetime")
	}},
	{Name: "format", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(2, 2); err != nil {
			return nil, err
		}
		if n, ok := c.Args[0].(value.Number); ok {
			places, err := wholeNumber(c, 1)
			if err != nil {
				return nil, err
			}
			return value.String(strconv.FormatFloat(float64(n), 'f', places, 64)), nil
		}
		layout, err := c.String(1)
		if err != nil {
			return nil, err
		}
		var t time.Time
		switch v := c.Args[0].(type) {
		case value.Date:
			t = v.Time()
		case value.Time:
			t = time.Date(2000, 1, 1, v.Hour, v.Minute, 0, 0, time.UTC)
		case value.DateTime:
			t = v.T
		default:
			return nil, c.typeError(0, "a number, date, time or datetime")
		}
		return value.String(t.Format(layoutReplacer.Replace(layout))), nil
	}},
	{Name: "every", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		var d time.Duration
		switch t := c.Args[0].(type) {
		case value.Number:
			d = time.Duration(float64(t) * float64(time.Minute))
		case value.String:
			var err error
			if d, err = time.ParseDuration(string(t)); err != nil {
				return nil, c.Errorf(apperr.KindValidation, "every: %q is not a duration", string(t))
			}
		default:
			return nil, c.typeError(0, "minutes or a duration")
		}
		if d < time.Minute {
			return nil, c.Errorf(apperr.KindValidation, "every: interval must be at least one minute")
		}
		return &value.Schedule{Type: value.ScheduleEvery, Interval: d}, nil
	}},
	{Name: "daily", Static: true, Fn: func(c *Call) (value.Value, error) {
		var at value.Time
		switch len(c.Args) {
		case 1:
			s, err := c.String(0)
			if err != nil {
				return nil, err
			}
			v, err := parseClock(c, s)
			if err != nil {
				return nil, err
			}
			at = v.(value.Time)
		case 2:
			h, err := wholeNumber(c, 0)
			if err != nil {
				return nil, err
			}
			m, err := wholeNumber(c, 1)
			if err != nil {
				return nil, err
			}
			if h > 23 || m > 59 {
				return nil, c.Errorf(apperr.KindValidation, "daily: %d:%d is out of range", h, m)
			}
			at = value.Time{Hour: h, Minute: m}
		default:
			return nil, c.Errorf(apperr.KindArgument, "daily expects a time or hour and minute")
		}
		return &value.Schedule{Type: value.ScheduleDaily, Hour: at.Hour, Minute: at.Minute}, nil
	}},
	{Name: "at", Static: true, Fn: func(c *Call) (value.Value, error) {
		if err := c.Arity(1, 1); err != nil {
			return nil, err
		}
		switch t := c.Args[0].(type) {
		case value.DateTime:
			return &value.Schedule{Type: value.ScheduleAt, At: t.T}, nil
		case value.Date:
			return &value.Schedule{Type: value.ScheduleAt, At: time.Date(t.Year, t.Month, t.Day, 0, 0, 0, 0, time.Local)}, nil
		case value.String:
			at, err := time.ParseInLocation(value.DateTimeLayout, string(t), time.Local)
			if err != nil {
				return nil, c.Errorf(apperr.KindValidation, "at: %q is not YYYY-MM-DD HH:MM", string(t))
			}
			return &value.Schedule{Type: value.ScheduleAt, At: at}, nil
		}
		return nil, c.typeError(0, "a datetime")
	}},
}

var layoutReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

func parseClock(c *Call, s string) (value.Value, error) {
	t, err := time.Parse(value.TimeLayout, s)
	if err != nil {
		return nil, c.Errorf(apperr.KindValidation, "%s: %q is not HH:MM", c.Name, s)
	}
	return value.TimeOf(t), nil
}

func wholeNumber(c *Call, i int) (int, error) {
	n, err := integer(c, i)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, c.Errorf(apperr.KindArgument, "%s: argument %d must not be negative", c.Name, i+1)
	}
	return n, nil
}

func integer(c *Call, i int) (int, error) {
	n, err := c.Number(i)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, c.Errorf(apperr.KindArgument, "%s: argument %d must be a whole number", c.Name, i+1)
	}
	return int(n), nil
}
