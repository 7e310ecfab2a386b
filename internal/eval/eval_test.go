package eval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/value"
)

type memOps struct {
	notes map[string]*models.Note
}

func newMemOps(notes ...*models.Note) *memOps {
	m := &memOps{notes: map[string]*models.Note{}}
	for _, n := range notes {
		m.notes[n.ID] = n.Clone()
	}
	return m
}

func (m *memOps) GetNoteByID(_ context.Context, id string) (*models.Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return n.Clone(), nil
}

func (m *memOps) update(id string, fn func(*models.Note)) (*models.Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	fn(n)
	return n.Clone(), nil
}

func (m *memOps) UpdatePath(_ context.Context, id, path string) (*models.Note, error) {
	return m.update(id, func(n *models.Note) { n.Path = path })
}

func (m *memOps) UpdateContent(_ context.Context, id, content string) (*models.Note, error) {
	return m.update(id, func(n *models.Note) { n.Content = content })
}

func (m *memOps) AppendToNote(_ context.Context, id, text string) (*models.Note, error) {
	return m.update(id, func(n *models.Note) { n.Content += text })
}

type memOnce map[string]value.Value

func (m memOnce) Get(noteID, key string) (value.Value, bool) {
	v, ok := m[noteID+"/"+key]
	return v, ok
}

func (m memOnce) Put(noteID, key string, v value.Value) { m[noteID+"/"+key] = v }

func fixture() []*models.Note {
	return []*models.Note{
		{ID: "root", Path: "projects", Content: "Projects"},
		{ID: "mid", Path: "projects/ansuz", Content: "Ansuz\nnotes", ParentID: "root"},
		{ID: "leaf", Path: "projects/ansuz/todo", Content: "Todo\n- item", ParentID: "mid"},
		{ID: "in", Path: "inbox", Content: "Inbox"},
		{ID: "in2", Path: "inbox2", Content: "Other inbox"},
	}
}

func newRuntime(noteID string, notes ...*models.Note) *Runtime {
	coll := models.NewCollection(notes...)
	return &Runtime{
		Note:  coll.Get(noteID),
		Notes: coll,
		Ops:   newMemOps(notes...),
		Once:  memOnce{},
		Clock: func() time.Time { return time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC) },
	}
}

func run(t *testing.T, rt *Runtime, src string) (value.Value, error) {
	t.Helper()
	d, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return Evaluate(context.Background(), d.Expr, NewEnv(rt))
}

func mustRun(t *testing.T, rt *Runtime, src string) value.Value {
	t.Helper()
	v, err := run(t, rt, src)
	if err != nil {
		t.Fatalf("Evaluate(%s): %v", src, err)
	}
	return v
}

func wantKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error %v (%T) is not classified", err, err)
	}
	if ae.Kind != kind {
		t.Fatalf("error kind = %s, want %s (%v)", ae.Kind, kind, err)
	}
	return ae
}

func TestEvaluate_Values(t *testing.T) {
	cases := []struct {
		src  string
		want value.Value
	}{
		{"[add(1, 2)]", value.Number(3)},
		{"[subtract(10, 4)]", value.Number(6)},
		{"[modulo(7, 3)]", value.Number(1)},
		{`[concat("a", 1, true)]`, value.String("a1true")},
		{`[upper trim "  x "]`, value.String("X")},
		{`["héllo".length]`, value.Number(5)},
		{"[if(gt(2, 1), \"yes\", \"no\")]", value.String("yes")},
		{"[x = 10; f = [add(i, x)]; f(5)]", value.Number(15)},
		{"[(a, b)[multiply(a, b)](6, 7)]", value.Number(42)},
		{"[map(list(1, 2, 3), [multiply(i, 2)])]", value.List{value.Number(2), value.Number(4), value.Number(6)}},
		{"[filter(list(1, 2, 3, 4), [eq(modulo(i, 2), 0)])]", value.List{value.Number(2), value.Number(4)}},
		{`[sort(list("b", "c", "a"))]`, value.List{value.String("a"), value.String("b"), value.String("c")}},
		{`[split("a,b", ",").first]`, value.String("a")},
		{`[list(1, 2).map([add(i, 1)])]`, value.List{value.Number(2), value.Number(3)}},
		{`[add_days(date("2026-01-31"), 1)]`, value.Date{Year: 2026, Month: time.February, Day: 1}},
		{`[format(date("2026-01-05"), "DD/MM/YYYY")]`, value.String("05/01/2026")},
		{`[match(pattern(digit*4 "-" digit*2 "-" digit*2), "2026-01-15")]`, value.Boolean(true)},
		{`[match(pattern(digit*4 "-" digit*2 "-" digit*2), "26-01-15")]`, value.Boolean(false)},
		{"[.name]", value.String("Todo")},
		{"[.body]", value.String("- item")},
		{"[.up.path]", value.String("projects/ansuz")},
		{"[.up.up.name]", value.String("Projects")},
		{"[.root.path]", value.String("projects")},
		{"[.up(4)]", value.Undefined{}},
		{"[.up(0).id]", value.String("leaf")},
	}
	for _, c := range cases {
		got := mustRun(t, newRuntime("leaf", fixture()...), c.src)
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("Evaluate(%s) mismatch (-want +got):\n%s", c.src, diff)
		}
	}
}

func TestEvaluate_FindByPath(t *testing.T) {
	got := mustRun(t, newRuntime("leaf", fixture()...), `[find(path: "inbox")]`)
	l, ok := got.(value.List)
	if !ok || len(l) != 1 {
		t.Fatalf("find = %#v, want one note", got)
	}
	if id := l[0].(*value.Note).Record.ID; id != "in" {
		t.Errorf("found %q, want in", id)
	}

	sub := mustRun(t, newRuntime("leaf", fixture()...), `[find(path: "projects").count]`)
	if sub != value.Number(3) {
		t.Errorf("subtree count = %v, want 3", sub)
	}
}

func TestEvaluate_FindByName(t *testing.T) {
	rt := newRuntime("leaf", fixture()...)
	got := mustRun(t, rt, `[find(name: "inbox")]`)
	if l := got.(value.List); len(l) != 1 || l[0].(*value.Note).Record.ID != "in" {
		t.Fatalf("find(name) = %v", got)
	}
	pat := mustRun(t, rt, `[find(name: pattern(letter*any " inbox")).count]`)
	if pat != value.Number(1) {
		t.Errorf("find(name: pattern) = %v", pat)
	}
}

func TestEvaluate_Once(t *testing.T) {
	notes := fixture()
	rt := newRuntime("leaf", notes...)
	first := mustRun(t, rt, "[once[datetime]]")

	rt2 := newRuntime("leaf", notes...)
	rt2.Once = rt.Once
	rt2.Clock = func() time.Time { return time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC) }
	second := mustRun(t, rt2, "[once[datetime]]")
	if !first.Equal(second) {
		t.Fatalf("once returned %v then %v", first, second)
	}

	rt3 := newRuntime("mid", notes...)
	rt3.Once = rt.Once
	rt3.Clock = rt2.Clock
	if other := mustRun(t, rt3, "[once[datetime]]"); other.Equal(first) {
		t.Error("once values leaked across notes")
	}
}

func TestEvaluate_BareTemporalIsValidationError(t *testing.T) {
	for _, src := range []string{"[date]", "[time()]", "[add_days(date, 1)]"} {
		_, err := run(t, newRuntime("leaf", fixture()...), src)
		wantKind(t, err, apperr.KindValidation)
	}
	if v := mustRun(t, newRuntime("leaf", fixture()...), "[refresh[time]]"); v != (value.Time{Hour: 10, Minute: 30}) {
		t.Errorf("refresh[time] = %v", v)
	}
	if v := mustRun(t, newRuntime("leaf", fixture()...), `[date("2026-03-01")]`); v.String() != "2026-03-01" {
		t.Errorf("date with argument = %v", v)
	}
}

func TestEvaluate_RefreshTriggers(t *testing.T) {
	rt := newRuntime("leaf", fixture()...)
	mustRun(t, rt, `[refresh(every(5), daily("09:00"))[time]]`)
	if len(rt.Refreshes) != 1 || len(rt.Refreshes[0].Triggers) != 2 {
		t.Fatalf("refreshes = %+v", rt.Refreshes)
	}
	if rt.Refreshes[0].Triggers[0].Interval != 5*time.Minute {
		t.Errorf("interval = %v", rt.Refreshes[0].Triggers[0].Interval)
	}
	_, err := run(t, newRuntime("leaf", fixture()...), `[refresh(1)[time]]`)
	wantKind(t, err, apperr.KindType)
}

func TestEvaluate_Errors(t *testing.T) {
	cases := []struct {
		src    string
		kind   apperr.Kind
		offset int
	}{
		{"[nope(1)]", apperr.KindUnknownIdentifier, 1},
		{"[divide(1, 0)]", apperr.KindArithmetic, 1},
		{"[modulo(1, 0)]", apperr.KindArithmetic, 1},
		{`[add(1, "x")]`, apperr.KindType, 1},
		{`["abc".path]`, apperr.KindFieldAccess, 1},
		{"[(a)[a](1, 2)]", apperr.KindArgument, -2},
		{`[f = [f(i)]; f(1)]`, apperr.KindCircularDependency, -2},
		{`[list(1).explode()]`, apperr.KindFieldAccess, 1},
	}
	for _, c := range cases {
		_, err := run(t, newRuntime("leaf", fixture()...), c.src)
		ae := wantKind(t, err, c.kind)
		if c.offset != -2 && ae.Offset != c.offset {
			t.Errorf("%s: offset = %d, want %d", c.src, ae.Offset, c.offset)
		}
	}

	_, err := run(t, newRuntime("leaf", fixture()...), `["abc".path]`)
	if !strings.Contains(err.Error(), "string") {
		t.Errorf("field access error should name the type: %v", err)
	}
}

func TestEvaluate_Assignment(t *testing.T) {
	rt := newRuntime("leaf", fixture()...)
	got := mustRun(t, rt, `[.path = "archive/todo"; .path]`)
	if got != value.String("archive/todo") {
		t.Errorf("path after assignment = %v", got)
	}
	if len(rt.Mutations) != 1 {
		t.Fatalf("mutations = %+v", rt.Mutations)
	}
	m := rt.Mutations[0]
	if m.NoteID != "leaf" || m.Kind != models.MutationPath || m.Updated.Path != "archive/todo" {
		t.Errorf("mutation = %+v", m)
	}

	rt = newRuntime("leaf", fixture()...)
	mustRun(t, rt, `[.name = "Done"; append("!")]`)
	if got := rt.Note.Content; got != "Done\n- item!" {
		t.Errorf("content = %q", got)
	}
	if len(rt.Mutations) != 2 || rt.Mutations[1].Kind != models.MutationAppend {
		t.Errorf("mutations = %+v", rt.Mutations)
	}

	rt.Ops = nil
	_, err := run(t, rt, `[.path = "x"]`)
	wantKind(t, err, apperr.KindValidation)
}

func TestEvaluate_RecordsRuntimeDependencies(t *testing.T) {
	rt := newRuntime("leaf", fixture()...)
	rt.Collector = deps.NewCollector()
	rt.Collector.StartDirective("k", nil)
	mustRun(t, rt, `[note("in").name; .up.content]`)
	rec := rt.Collector.FinishDirective()

	if diff := cmp.Diff([]string{"in", "mid"}, rec.FirstLine); diff != "" {
		t.Errorf("first-line ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mid"}, rec.Remainder); diff != "" {
		t.Errorf("remainder ids (-want +got):\n%s", diff)
	}
	if len(rec.Hierarchy) != 1 || rec.Hierarchy[0].ResolvedNoteID != "mid" || rec.Hierarchy[0].FromNoteID != "leaf" {
		t.Errorf("hierarchy = %+v", rec.Hierarchy)
	}
}

func TestEvaluate_FindRecordsDependencies(t *testing.T) {
	rt := newRuntime("leaf", fixture()...)
	rt.Collector = deps.NewCollector()
	rt.Collector.StartDirective("k", nil)
	mustRun(t, rt, `[find(path: "inbox")]`)
	rec := rt.Collector.FinishDirective()

	if !rec.DependsOnPath || !rec.DependsOnNoteExistence {
		t.Errorf("flags = %+v", rec.Flags)
	}
	if diff := cmp.Diff([]string{"in"}, rec.FirstLine); diff != "" {
		t.Errorf("first-line ids (-want +got):\n%s", diff)
	}
}

func TestEvaluate_ButtonAction(t *testing.T) {
	rt := newRuntime("leaf", fixture()...)
	v := mustRun(t, rt, `[button("Archive", later .path = "archive")]`)
	b, ok := v.(*value.Button)
	if !ok || b.Label != "Archive" {
		t.Fatalf("button = %#v", v)
	}
	if len(rt.Mutations) != 0 {
		t.Fatal("button action ran during evaluation")
	}
	if _, err := Invoke(context.Background(), b.Action, []value.Value{value.NewNote(rt.Note)}, NewEnv(rt)); err != nil {
		t.Fatal(err)
	}
	if len(rt.Mutations) != 1 || rt.Mutations[0].Updated.Path != "archive" {
		t.Errorf("mutations = %+v", rt.Mutations)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"add", "find", "date", "button", "every", "match", "view"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("builtin %q missing", name)
		}
	}
	if !r.IsStatic("add") || r.IsStatic("find") || r.IsStatic("date") {
		t.Error("static flags wrong")
	}
	if b, _ := r.Lookup("date"); !b.Temporal {
		t.Error("date should be temporal")
	}
	names := r.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatal("Names not sorted")
		}
	}
}
