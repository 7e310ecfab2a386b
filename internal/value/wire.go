package value

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// Wire is the {type, value} serialized form of a Value.
type Wire struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type lambdaWire struct {
	Params []string `json:"params"`
	Body   string   `json:"body"`
	Bound  []string `json:"bound,omitempty"`
	Origin string   `json:"origin,omitempty"`
}

type buttonWire struct {
	Label  string     `json:"label"`
	Action lambdaWire `json:"action"`
}

type scheduleWire struct {
	Type     ScheduleKind `json:"type"`
	Interval string       `json:"interval,omitempty"`
	Hour     int          `json:"hour,omitempty"`
	Minute   int          `json:"minute,omitempty"`
	At       *time.Time   `json:"at,omitempty"`
}

// Encode converts v to its wire form. Lambdas keep their parameters and
// printed body; the captured scope is not persisted.
func Encode(v Value) (Wire, error) {
	var payload any
	switch t := v.(type) {
	case Number:
		payload = float64(t)
	case String:
		payload = string(t)
	case Boolean:
		payload = bool(t)
	case Date:
		payload = t.String()
	case Time:
		payload = t.String()
	case DateTime:
		payload = t.T.Format(time.RFC3339)
	case *Pattern:
		payload = t.Source
	case *Note:
		payload = t.Record
	case List:
		items := make([]Wire, len(t))
		for i, e := range t {
			w, err := Encode(e)
			if err != nil {
				return Wire{}, err
			}
			items[i] = w
		}
		payload = items
	case *Lambda:
		payload = encodeLambda(t)
	case Undefined:
		return Wire{Type: KindUndefined}, nil
	case *Button:
		payload = buttonWire{Label: t.Label, Action: encodeLambda(t.Action)}
	case *Schedule:
		sw := scheduleWire{Type: t.Type, Hour: t.Hour, Minute: t.Minute}
		if t.Interval != 0 {
			sw.Interval = t.Interval.String()
		}
		if !t.At.IsZero() {
			at := t.At
			sw.At = &at
		}
		payload = sw
	case *View:
		payload = t.Notes
	default:
		return Wire{}, fmt.Errorf("value: encode: unsupported value %T", v)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Wire{}, fmt.Errorf("value: encode %s: %w", v.Kind(), err)
	}
	return Wire{Type: v.Kind(), Value: raw}, nil
}

func encodeLambda(l *Lambda) lambdaWire {
	return lambdaWire{
		Params: l.Params,
		Body:   ast.Format(l.Body),
		Bound:  freeVariables(l.Body, l.Params),
		Origin: l.Origin,
	}
}

// freeVariables lists variable references in body that are not params, so
// the printed body parses back to the same tree.
func freeVariables(body ast.Expr, params []string) []string {
	skip := make(map[string]bool, len(params))
	for _, p := range params {
		skip[p] = true
	}
	seen := map[string]bool{}
	var out []string
	ast.Walk(body, func(e ast.Expr) {
		if v, ok := e.(*ast.VariableRef); ok && !skip[v.Name] && !seen[v.Name] {
			seen[v.Name] = true
			out = append(out, v.Name)
		}
	})
	return out
}

// Decode rebuilds a Value from its wire form.
func Decode(w Wire) (Value, error) {
	switch w.Type {
	case KindNumber:
		var f float64
		if err := unmarshal(w, &f); err != nil {
			return nil, err
		}
		return Number(f), nil
	case KindString:
		var s string
		if err := unmarshal(w, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case KindBoolean:
		var b bool
		if err := unmarshal(w, &b); err != nil {
			return nil, err
		}
		return Boolean(b), nil
	case KindDate:
		t, err := decodeTime(w, DateLayout)
		if err != nil {
			return nil, err
		}
		return DateOf(t), nil
	case KindTime:
		t, err := decodeTime(w, TimeLayout)
		if err != nil {
			return nil, err
		}
		return TimeOf(t), nil
	case KindDateTime:
		t, err := decodeTime(w, time.RFC3339)
		if err != nil {
			return nil, err
		}
		return DateTime{T: t}, nil
	case KindPattern:
		var src string
		if err := unmarshal(w, &src); err != nil {
			return nil, err
		}
		return ParsePattern(src)
	case KindNote:
		var n models.Note
		if err := unmarshal(w, &n); err != nil {
			return nil, err
		}
		return NewNote(&n), nil
	case KindList:
		var items []Wire
		if err := unmarshal(w, &items); err != nil {
			return nil, err
		}
		out := make(List, len(items))
		for i, item := range items {
			v, err := Decode(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindLambda:
		var lw lambdaWire
		if err := unmarshal(w, &lw); err != nil {
			return nil, err
		}
		return decodeLambda(lw)
	case KindUndefined:
		return Undefined{}, nil
	case KindButton:
		var bw buttonWire
		if err := unmarshal(w, &bw); err != nil {
			return nil, err
		}
		action, err := decodeLambda(bw.Action)
		if err != nil {
			return nil, err
		}
		return &Button{Label: bw.Label, Action: action}, nil
	case KindSchedule:
		var sw scheduleWire
		if err := unmarshal(w, &sw); err != nil {
			return nil, err
		}
		s := &Schedule{Type: sw.Type, Hour: sw.Hour, Minute: sw.Minute}
		if sw.Interval != "" {
			d, err := time.ParseDuration(sw.Interval)
			if err != nil {
				return nil, fmt.Errorf("value: decode schedule: %w", err)
			}
			s.Interval = d
		}
		if sw.At != nil {
			s.At = *sw.At
		}
		return s, nil
	case KindView:
		var notes []*models.Note
		if err := unmarshal(w, &notes); err != nil {
			return nil, err
		}
		return &View{Notes: notes}, nil
	}
	return nil, fmt.Errorf("value: decode: unknown type %q", w.Type)
}

func unmarshal(w Wire, dst any) error {
	if err := json.Unmarshal(w.Value, dst); err != nil {
		return fmt.Errorf("value: decode %s: %w", w.Type, err)
	}
	return nil
}

func decodeTime(w Wire, layout string) (time.Time, error) {
	var s string
	if err := unmarshal(w, &s); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("value: decode %s: %w", w.Type, err)
	}
	return t, nil
}

func decodeLambda(lw lambdaWire) (*Lambda, error) {
	bound := append(append([]string(nil), lw.Params...), lw.Bound...)
	body, err := parser.ParseExpr(lw.Body, bound...)
	if err != nil {
		return nil, fmt.Errorf("value: decode lambda: %w", err)
	}
	return &Lambda{Params: lw.Params, Body: body, Profile: deps.Analyze(body), Origin: lw.Origin}, nil
}

// ParsePattern rebuilds a pattern from its directive syntax.
func ParsePattern(src string) (*Pattern, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("value: decode pattern: %w", err)
	}
	pe, ok := e.(*ast.PatternExpr)
	if !ok {
		return nil, fmt.Errorf("value: decode pattern: %q is not a pattern", src)
	}
	return NewPattern(pe)
}

// Marshal encodes v as JSON wire form.
func Marshal(v Value) ([]byte, error) {
	w, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal decodes JSON wire form.
func Unmarshal(data []byte) (Value, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("value: unmarshal: %w", err)
	}
	return Decode(w)
}
