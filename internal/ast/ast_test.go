package ast

import (
	"regexp"
	"testing"
)

func call(name string, args ...Expr) *CallExpr { return &CallExpr{Name: name, Args: args} }

func TestNormalize_IgnoresOffsets(t *testing.T) {
	a := &CallExpr{Offset: 1, Name: "add", Args: []Expr{&NumberLiteral{Offset: 5, Value: 1}, &NumberLiteral{Offset: 8, Value: 2}}}
	b := call("add", &NumberLiteral{Value: 1}, &NumberLiteral{Value: 2})
	if Normalize(a) != Normalize(b) {
		t.Fatalf("offsets leaked into normalization: %q vs %q", Normalize(a), Normalize(b))
	}
	if CacheKey(a) != CacheKey(b) {
		t.Fatal("cache keys differ")
	}
}

func TestNormalize_NamedArgOrder(t *testing.T) {
	a := &CallExpr{Name: "find", Named: []NamedArg{
		{Name: "path", Value: &StringLiteral{Value: "x"}},
		{Name: "name", Value: &StringLiteral{Value: "y"}},
	}}
	b := &CallExpr{Name: "find", Named: []NamedArg{
		{Name: "name", Value: &StringLiteral{Value: "y"}},
		{Name: "path", Value: &StringLiteral{Value: "x"}},
	}}
	if CacheKey(a) != CacheKey(b) {
		t.Fatalf("named argument order changed key: %q vs %q", Normalize(a), Normalize(b))
	}
	if a.Named[0].Name != "path" {
		t.Fatal("normalization reordered the source tree")
	}
}

func TestNormalize_DistinguishesStructure(t *testing.T) {
	cases := [][2]Expr{
		{&NumberLiteral{Value: 1}, &StringLiteral{Value: "1"}},
		{call("a", call("b")), call("a", &VariableRef{Name: "b"})},
		{&LambdaExpr{Params: []string{"i"}, Body: call("x")}, &LambdaExpr{Params: []string{"j"}, Body: call("x")}},
		{&StringLiteral{Value: `a","b`}, &StringLiteral{Value: `a",`}},
	}
	for _, c := range cases {
		if Normalize(c[0]) == Normalize(c[1]) {
			t.Errorf("%q collides with %q", Normalize(c[0]), Normalize(c[1]))
		}
	}
}

func TestPatternRegexp(t *testing.T) {
	date := &PatternExpr{Elements: []PatternElement{
		{Classes: []string{"digit"}, Min: 4, Max: 4},
		{Literal: "-", Min: 1, Max: 1},
		{Classes: []string{"digit"}, Min: 2, Max: 2},
		{Literal: "-", Min: 1, Max: 1},
		{Classes: []string{"digit"}, Min: 2, Max: 2},
	}}
	re := regexp.MustCompile(date.Regexp())
	for s, want := range map[string]bool{
		"2026-01-15":  true,
		"26-01-15":    false,
		"2026-01-15x": false,
		"x2026-01-15": false,
	} {
		if got := re.MatchString(s); got != want {
			t.Errorf("MatchString(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestPatternRegexp_QuantifiedLiteralAndUnion(t *testing.T) {
	p := &PatternExpr{Elements: []PatternElement{
		{Literal: "ab", Min: 1, Max: Unbounded},
		{Classes: []string{"letter", "digit"}, Min: 0, Max: Unbounded},
		{Literal: ".", Min: 1, Max: 1},
	}}
	re := regexp.MustCompile(p.Regexp())
	if !re.MatchString("ababé9.") {
		t.Errorf("expected match, regexp %s", p.Regexp())
	}
	if re.MatchString("aab.") {
		t.Errorf("unexpected match, regexp %s", p.Regexp())
	}
	if re.MatchString("abx") {
		t.Errorf("literal dot must not act as wildcard")
	}
}

func TestFormatPattern(t *testing.T) {
	got := FormatPattern([]PatternElement{
		{Classes: []string{"digit"}, Min: 4, Max: 4},
		{Literal: "-", Min: 1, Max: 1},
		{Classes: []string{"letter", "space"}, Min: 0, Max: Unbounded},
		{Classes: []string{"any"}, Min: 1, Max: 3},
		{Classes: []string{"punct"}, Min: 2, Max: Unbounded},
	})
	want := `digit*4 "-" letter|space*any any*(1..3) punct*(2..any)`
	if got != want {
		t.Errorf("FormatPattern = %q, want %q", got, want)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		expr Expr
		want string
	}{
		{call("add", &NumberLiteral{Value: 1}, &NumberLiteral{Value: 2.5}), "add(1, 2.5)"},
		{&PropertyAccess{Target: &CurrentNoteRef{}, Name: "path"}, ".path"},
		{&PropertyAccess{Target: &PropertyAccess{Target: &CurrentNoteRef{}, Name: "up"}, Name: "path"}, ".up.path"},
		{&MethodCall{Target: &CurrentNoteRef{}, Name: "up", Args: []Expr{&NumberLiteral{Value: 4}}}, ".up(4)"},
		{&LambdaExpr{Params: []string{"i"}, Body: call("upper", &VariableRef{Name: "i"})}, "[upper(i)]"},
		{&LambdaExpr{Params: []string{"a", "b"}, Body: &VariableRef{Name: "a"}}, "(a, b)[a]"},
		{&OnceExpr{Body: call("date")}, "once[date()]"},
		{&Assignment{Target: &PropertyAccess{Target: &CurrentNoteRef{}, Name: "path"}, Value: &StringLiteral{Value: "a\"b"}}, `.path = "a\"b"`},
		{&PropertyAccess{Target: &NumberLiteral{Value: 3}, Name: "x"}, "(3).x"},
	}
	for _, c := range cases {
		if got := Format(c.expr); got != c.want {
			t.Errorf("Format = %q, want %q", got, c.want)
		}
	}
}
