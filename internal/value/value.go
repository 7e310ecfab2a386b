// Package value defines the runtime values directives produce.
//
// Values are immutable once constructed. Every variant has a display
// projection (String), structural equality (Equal) and a {type, value} wire
// form (see Encode).
package value

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/models"
)

// Kind names a value variant. It doubles as the wire type tag.
type Kind string

const (
	KindNumber    Kind = "number"
	KindString    Kind = "string"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindTime      Kind = "time"
	KindDateTime  Kind = "datetime"
	KindPattern   Kind = "pattern"
	KindNote      Kind = "note"
	KindList      Kind = "list"
	KindLambda    Kind = "lambda"
	KindUndefined Kind = "undefined"
	KindButton    Kind = "button"
	KindSchedule  Kind = "schedule"
	KindView      Kind = "view"
)

// Value is implemented by every runtime value.
type Value interface {
	Kind() Kind
	String() string
	Equal(Value) bool
}

// Display layouts.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DateTimeLayout = "2006-01-02 15:04"
)

type Number float64

func (Number) Kind() Kind { return KindNumber }
func (n Number) String() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }
func (n Number) Equal(v Value) bool {
	o, ok := v.(Number)
	return ok && o == n
}

type String string

func (String) Kind() Kind { return KindString }
func (s String) String() string { return string(s) }
func (s String) Equal(v Value) bool {
	o, ok := v.(String)
	return ok && o == s
}

type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Boolean) Equal(v Value) bool {
	o, ok := v.(Boolean)
	return ok && o == b
}

// Date is a calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

func (Date) Kind() Kind { return KindDate }
func (d Date) String() string { return d.Time().Format(DateLayout) }
func (d Date) Equal(v Value) bool {
	o, ok := v.(Date)
	return ok && o == d
}

// Time is a time of day with minute precision.
type Time struct {
	Hour   int
	Minute int
}

// TimeOf returns the time of day of t.
func TimeOf(t time.Time) Time { return Time{Hour: t.Hour(), Minute: t.Minute()} }

func (Time) Kind() Kind { return KindTime }
func (t Time) String() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format(TimeLayout)
}
func (t Time) Equal(v Value) bool {
	o, ok := v.(Time)
	return ok && o == t
}

// DateTime is an instant with minute precision.
type DateTime struct {
	T time.Time
}

// DateTimeOf truncates t to the minute.
func DateTimeOf(t time.Time) DateTime { return DateTime{T: t.Truncate(time.Minute)} }

func (DateTime) Kind() Kind { return KindDateTime }
func (d DateTime) String() string { return d.T.Format(DateTimeLayout) }
func (d DateTime) Equal(v Value) bool {
	o, ok := v.(DateTime)
	return ok && o.T.Equal(d.T)
}

// Pattern is a compiled pattern(...) expression. Source is its directive
// syntax, from which it can be rebuilt.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

// NewPattern compiles a pattern expression.
func NewPattern(p *ast.PatternExpr) (*Pattern, error) {
	re, err := regexp.Compile(p.Regexp())
	if err != nil {
		return nil, err
	}
	return &Pattern{Source: ast.Format(p), re: re}, nil
}

// Match reports whether s matches the whole pattern.
func (p *Pattern) Match(s string) bool { return p.re.MatchString(s) }

// Regexp returns the backing regular expression source.
func (p *Pattern) Regexp() string { return p.re.String() }

func (*Pattern) Kind() Kind { return KindPattern }
func (p *Pattern) String() string { return p.Source }
func (p *Pattern) Equal(v Value) bool {
	o, ok := v.(*Pattern)
	return ok && o.Source == p.Source
}

// Note wraps a note record.
type Note struct {
	Record *models.Note
}

// NewNote wraps n.
func NewNote(n *models.Note) *Note { return &Note{Record: n} }

func (*Note) Kind() Kind { return KindNote }
func (n *Note) String() string { return n.Record.FirstLine() }
func (n *Note) Equal(v Value) bool {
	o, ok := v.(*Note)
	if !ok {
		return false
	}
	a, b := n.Record, o.Record
	return a.ID == b.ID && a.Path == b.Path && a.Content == b.Content && a.ParentID == b.ParentID &&
		a.CreatedAt.Equal(b.CreatedAt) && a.UpdatedAt.Equal(b.UpdatedAt) && a.ViewedAt.Equal(b.ViewedAt)
}

type List []Value

func (List) Kind() Kind { return KindList }
func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
func (l List) Equal(v Value) bool {
	o, ok := v.(List)
	if !ok || len(o) != len(l) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Scope is the environment a lambda closes over.
type Scope interface {
	Lookup(name string) (Value, bool)
}

// Lambda is a closure. Scope is nil for lambdas rebuilt from the wire
// form. Profile is the static dependency profile of the body and Origin
// the note whose directive defined it.
type Lambda struct {
	Params  []string
	Body    ast.Expr
	Scope   Scope
	Profile *deps.Profile
	Origin  string
}

// NewLambda builds a lambda and analyzes its body.
func NewLambda(params []string, body ast.Expr, scope Scope, origin string) *Lambda {
	return &Lambda{Params: params, Body: body, Scope: scope, Profile: deps.Analyze(body), Origin: origin}
}

// Expr returns the lambda as an expression.
func (l *Lambda) Expr() *ast.LambdaExpr { return &ast.LambdaExpr{Params: l.Params, Body: l.Body} }

func (*Lambda) Kind() Kind { return KindLambda }
func (l *Lambda) String() string { return ast.Format(l.Expr()) }
func (l *Lambda) Equal(v Value) bool {
	o, ok := v.(*Lambda)
	return ok && ast.Normalize(o.Expr()) == ast.Normalize(l.Expr())
}

type Undefined struct{}

func (Undefined) Kind() Kind { return KindUndefined }
func (Undefined) String() string { return "" }
func (Undefined) Equal(v Value) bool {
	_, ok := v.(Undefined)
	return ok
}

// Button is a clickable action rendered in place of the directive.
type Button struct {
	Label  string
	Action *Lambda
}

func (*Button) Kind() Kind { return KindButton }
func (b *Button) String() string { return b.Label }
func (b *Button) Equal(v Value) bool {
	o, ok := v.(*Button)
	return ok && o.Label == b.Label && o.Action.Equal(b.Action)
}

// ScheduleKind is the recurrence of a Schedule.
type ScheduleKind string

const (
	ScheduleEvery ScheduleKind = "every"
	ScheduleDaily ScheduleKind = "daily"
	ScheduleAt    ScheduleKind = "at"
)

// Schedule is a refresh trigger: every Interval, daily at Hour:Minute, or
// once At.
type Schedule struct {
	Type     ScheduleKind
	Interval time.Duration
	Hour     int
	Minute   int
	At       time.Time
}

func (*Schedule) Kind() Kind { return KindSchedule }
func (s *Schedule) String() string {
	switch s.Type {
	case ScheduleEvery:
		return "every " + s.Interval.String()
	case ScheduleDaily:
		return "daily " + Time{Hour: s.Hour, Minute: s.Minute}.String()
	default:
		return "at " + s.At.Format(DateTimeLayout)
	}
}
func (s *Schedule) Equal(v Value) bool {
	o, ok := v.(*Schedule)
	return ok && o.Type == s.Type && o.Interval == s.Interval && o.Hour == s.Hour &&
		o.Minute == s.Minute && o.At.Equal(s.At)
}

// View embeds the rendered content of other notes.
type View struct {
	Notes []*models.Note
}

func (*View) Kind() Kind { return KindView }
func (v *View) String() string {
	names := make([]string, len(v.Notes))
	for i, n := range v.Notes {
		names[i] = n.FirstLine()
	}
	return strings.Join(names, ", ")
}
func (v *View) Equal(o Value) bool {
	w, ok := o.(*View)
	if !ok || len(w.Notes) != len(v.Notes) {
		return false
	}
	for i := range v.Notes {
		if !NewNote(v.Notes[i]).Equal(NewNote(w.Notes[i])) {
			return false
		}
	}
	return true
}

// Truthy reports whether v counts as true in conditions.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case Boolean:
		return bool(t)
	case Number:
		return t != 0
	case String:
		return t != ""
	case List:
		return len(t) > 0
	case Undefined, nil:
		return false
	}
	return true
}

// Clone returns a copy of v that shares nothing mutable with it.
func Clone(v Value) Value {
	switch t := v.(type) {
	case List:
		out := make(List, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case *Note:
		return NewNote(t.Record.Clone())
	case *View:
		notes := make([]*models.Note, len(t.Notes))
		for i, n := range t.Notes {
			notes[i] = n.Clone()
		}
		return &View{Notes: notes}
	case *Schedule:
		c := *t
		return &c
	}
	return v
}
