// Package refresh re-evaluates refresh[...] directives when their time
// triggers fire.
package refresh

import (
	"time"

	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/value"
)

// Trigger yields the occurrences of a time condition.
type Trigger interface {
	// Next returns the first occurrence strictly after t, if any.
	Next(t time.Time) (time.Time, bool)
	Recurring() bool
}

// Every fires at multiples of Interval since the zero time.
type Every struct {
	Interval time.Duration
}

func (e Every) Next(t time.Time) (time.Time, bool) {
	if e.Interval <= 0 {
		return time.Time{}, false
	}
	return t.Truncate(e.Interval).Add(e.Interval), true
}

func (Every) Recurring() bool { return true }

// Daily fires once a day at Hour:Minute in the location of the time passed
// to Next.
type Daily struct {
	Hour, Minute int
}

func (d Daily) Next(t time.Time) (time.Time, bool) {
	n := time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, 0, 0, t.Location())
	if !n.After(t) {
		n = n.AddDate(0, 0, 1)
	}
	return n, true
}

func (Daily) Recurring() bool { return true }

// At fires once.
type At struct {
	T time.Time
}

func (a At) Next(t time.Time) (time.Time, bool) {
	if a.T.After(t) {
		return a.T, true
	}
	return time.Time{}, false
}

func (At) Recurring() bool { return false }

// FromSchedule converts a schedule value to a Trigger.
func FromSchedule(s *value.Schedule) Trigger {
	switch s.Type {
	case value.ScheduleEvery:
		return Every{Interval: s.Interval}
	case value.ScheduleDaily:
		return Daily{Hour: s.Hour, Minute: s.Minute}
	default:
		return At{T: s.At}
	}
}

// DefaultTriggers picks triggers for a refresh body without explicit ones:
// dates roll over at midnight, times every minute. A body without temporal
// calls gets no trigger.
func DefaultTriggers(body ast.Expr) []Trigger {
	var date, clock bool
	ast.Walk(body, func(e ast.Expr) {
		c, ok := e.(*ast.CallExpr)
		if !ok {
			return
		}
		switch c.Name {
		case "date":
			date = true
		case "time", "datetime":
			clock = true
		}
	})
	switch {
	case clock:
		return []Trigger{Every{Interval: time.Minute}}
	case date:
		return []Trigger{Daily{}}
	}
	return nil
}
