package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/eval"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/refresh"
	"github.com/starford/ansuz/internal/session"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/value"
)

type memHost struct {
	mu    sync.Mutex
	notes map[string]*models.Note
}

func newMemHost(notes ...*models.Note) *memHost {
	h := &memHost{notes: map[string]*models.Note{}}
	for _, n := range notes {
		h.notes[n.ID] = n
	}
	return h
}

func (h *memHost) Snapshot(context.Context) (*models.Collection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	notes := make([]*models.Note, 0, len(h.notes))
	for _, n := range h.notes {
		notes = append(notes, n.Clone())
	}
	return models.NewCollection(notes...), nil
}

func (h *memHost) GetNoteByID(_ context.Context, id string) (*models.Note, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return n.Clone(), nil
}

func (h *memHost) set(id string, fn func(*models.Note)) (*models.Note, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	fn(n)
	return n.Clone(), nil
}

func (h *memHost) UpdatePath(_ context.Context, id, path string) (*models.Note, error) {
	return h.set(id, func(n *models.Note) { n.Path = path })
}

func (h *memHost) UpdateContent(_ context.Context, id, content string) (*models.Note, error) {
	return h.set(id, func(n *models.Note) { n.Content = content })
}

func (h *memHost) AppendToNote(_ context.Context, id, text string) (*models.Note, error) {
	return h.set(id, func(n *models.Note) { n.Content += text })
}

type fixture struct {
	host     *memHost
	cache    *cache.Manager
	sessions *session.Manager
	sched    *refresh.Scheduler
	engine   *Engine
}

func newFixture(t *testing.T, reg *eval.Registry, notes ...*models.Note) *fixture {
	t.Helper()
	f := &fixture{host: newMemHost(notes...)}
	var err error
	f.cache, err = cache.NewManager(cache.Options{L2: testutil.TestL2(t), Logger: testutil.Logger()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.cache.Close() })
	f.sessions = session.NewManager(f.cache.InvalidateForNotes, time.Hour, testutil.Logger())
	t.Cleanup(f.sessions.Close)
	f.engine, err = New(f.host, Options{
		Cache:    f.cache,
		Sessions: f.sessions,
		Registry: reg,
		Logger:   testutil.Logger(),
		Clock:    func() time.Time { return time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}
	f.sched = refresh.NewScheduler(time.Hour, f.engine.InvalidateRefresh, testutil.Logger())
	f.engine.scheduler = f.sched
	return f
}

func (f *fixture) exec(t *testing.T, src, noteID string) *Outcome {
	t.Helper()
	out, err := f.engine.Execute(context.Background(), Request{Source: src, NoteID: noteID})
	if err != nil {
		t.Fatalf("Execute(%s): %v", src, err)
	}
	return out
}

func TestExecute_CachesValues(t *testing.T) {
	f := newFixture(t, nil)
	first := f.exec(t, "[add(1, 2)]", "")
	if first.Err != nil || first.Value != value.Number(3) || first.FromCache {
		t.Fatalf("first = %+v", first)
	}
	second := f.exec(t, "[add( 1,2 )]", "")
	if !second.FromCache || second.Value != value.Number(3) || second.Key != first.Key {
		t.Errorf("second = %+v", second)
	}
}

func TestExecute_SyntaxErrorsAreCached(t *testing.T) {
	f := newFixture(t, nil)
	first := f.exec(t, "[add(1,]", "")
	if first.Err == nil || first.Err.Kind != apperr.KindSyntax {
		t.Fatalf("first = %+v", first)
	}
	second := f.exec(t, "[add(1,]", "")
	if !second.FromCache || second.Err.Kind != apperr.KindSyntax {
		t.Errorf("second = %+v", second)
	}
}

func TestExecute_SelfAccessIsPerNote(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "a", Content: "Alpha"},
		&models.Note{ID: "b", Content: "Beta"},
	)
	if got := f.exec(t, "[.name]", "a").Value; got != value.String("Alpha") {
		t.Errorf("a = %v", got)
	}
	if got := f.exec(t, "[.name]", "b"); got.FromCache || got.Value != value.String("Beta") {
		t.Errorf("b = %+v", got)
	}
}

func TestExecute_Staleness(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "a", Content: "Host"},
		&models.Note{ID: "b", Content: "Target\nbody"},
	)
	src := `[note("b").name]`
	f.exec(t, src, "a")

	f.host.UpdateContent(context.Background(), "b", "Target\nnew body")
	if got := f.exec(t, src, "a"); !got.FromCache {
		t.Error("body edit invalidated a name-only directive")
	}
	f.host.UpdateContent(context.Background(), "b", "Renamed\nnew body")
	got := f.exec(t, src, "a")
	if got.FromCache || got.Value != value.String("Renamed") {
		t.Errorf("after rename = %+v", got)
	}
}

func TestExecute_GlobalFindStaleness(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "a", Path: "inbox", Content: "Alpha\nbody"},
		&models.Note{ID: "b", Path: "inbox/later", Content: "Beta"},
	)
	ctx := context.Background()
	tests := []struct {
		name   string
		src    string
		change func()
		want   string
	}{
		{"path", `[find(path: "inbox")]`, func() { f.host.UpdatePath(ctx, "a", "archive") }, "Beta"},
		{"rename", `[find("inbox")]`, func() { f.host.UpdateContent(ctx, "b", "Gamma") }, "Alpha, Gamma"},
		{"name", `[find(name: "alpha")]`, func() { f.host.UpdateContent(ctx, "a", "ALPHA\nbody") }, "ALPHA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.host.UpdatePath(ctx, "a", "inbox")
			f.host.UpdateContent(ctx, "a", "Alpha\nbody")
			f.host.UpdateContent(ctx, "b", "Beta")
			f.exec(t, tt.src, "")
			if !f.exec(t, tt.src, "").FromCache {
				t.Fatal("find result not cached")
			}

			tt.change()
			f.engine.NotesChanged(ctx, false, "a", "b")
			got := f.exec(t, tt.src, "")
			if got.Display() != tt.want {
				t.Errorf("display = %q, want %q", got.Display(), tt.want)
			}
		})
	}
}

func TestExecute_ErrorCaching(t *testing.T) {
	calls := 0
	reg := eval.DefaultRegistry()
	reg.Register(eval.Builtin{Name: "flaky", Fn: func(c *eval.Call) (value.Value, error) {
		calls++
		return nil, apperr.New(apperr.KindNetwork, -1, "connection refused")
	}})
	reg.Register(eval.Builtin{Name: "boom", Fn: func(c *eval.Call) (value.Value, error) {
		panic("boom")
	}})
	f := newFixture(t, reg)

	for i := 0; i < 2; i++ {
		out := f.exec(t, "[flaky]", "")
		if out.Err == nil || out.Err.Kind != apperr.KindNetwork || out.FromCache {
			t.Fatalf("flaky = %+v", out)
		}
	}
	if calls != 2 {
		t.Errorf("non-deterministic error served from cache; calls = %d", calls)
	}

	f.exec(t, "[divide(1, 0)]", "")
	if out := f.exec(t, "[divide(1, 0)]", ""); !out.FromCache || out.Err.Kind != apperr.KindArithmetic {
		t.Errorf("deterministic error = %+v", out)
	}

	if out := f.exec(t, "[boom]", ""); out.Err == nil || !strings.Contains(out.Err.Message, "boom") {
		t.Errorf("panic not converted: %+v", out)
	}
}

func TestExecute_MutationsInvalidateThroughSessions(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "a", Path: "inbox", Content: "Task"},
		&models.Note{ID: "origin", Content: "Origin"},
	)
	ctx := context.Background()
	nameA := cache.Address{Key: "probe", NoteID: "a", SelfAccess: true}
	if err := f.cache.Put(nameA, &cache.Result{Value: value.String("old")}); err != nil {
		t.Fatal(err)
	}

	f.sessions.Start(ctx, "a", "a")
	out := f.exec(t, `[note("a").path = "done"]`, "origin")
	if len(out.Mutations) != 1 || out.Mutations[0].Updated.Path != "done" {
		t.Fatalf("mutations = %+v", out.Mutations)
	}
	if n, _ := f.host.GetNoteByID(ctx, "a"); n.Path != "done" {
		t.Errorf("host path = %q", n.Path)
	}
	if _, ok := f.cache.Get(nameA); !ok {
		t.Error("entry of the edited note dropped during its session")
	}
	f.sessions.End(ctx)
	if _, ok := f.cache.Get(nameA); ok {
		t.Error("entry survived the end of the session")
	}
}

func TestExecute_RegistersRefresh(t *testing.T) {
	f := newFixture(t, nil, &models.Note{ID: "a", Content: "A"})
	out := f.exec(t, "[refresh[time]]", "a")
	if out.Value != (value.Time{Hour: 10, Minute: 30}) {
		t.Fatalf("value = %v", out.Value)
	}
	if f.sched.Len() != 1 {
		t.Fatalf("registrations = %d", f.sched.Len())
	}
	if !f.exec(t, "[refresh[time]]", "a").FromCache {
		t.Error("refresh directive not cached between triggers")
	}
	f.sched.Tick(time.Now().Add(2 * time.Minute))
	if f.exec(t, "[refresh[time]]", "a").FromCache {
		t.Error("fired trigger did not invalidate the entry")
	}
}

func TestRenderNote_Views(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "dash", Path: "dash", Content: "Dash\n[view(find(path: \"proj\"))]"},
		&models.Note{ID: "p1", Path: "proj/one", Content: "One\nname: [.name]"},
		&models.Note{ID: "loop", Path: "loop", Content: "Loop [view(note(\"loop\"))]"},
	)
	ctx := context.Background()
	r, err := f.engine.RenderNote(ctx, "dash")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Directives) != 1 {
		t.Fatalf("directives = %+v", r.Directives)
	}
	d := r.Directives[0]
	if d.Error != nil || d.Kind != value.KindView || len(d.Views) != 1 {
		t.Fatalf("view directive = %+v", d)
	}
	if got := d.Views[0].Text; got != "One\nname: One" {
		t.Errorf("nested text = %q", got)
	}

	loop, err := f.engine.RenderNote(ctx, "loop")
	if err != nil {
		t.Fatal(err)
	}
	if e := loop.Directives[0].Error; e == nil || e.Type != apperr.KindCircularDependency.String() {
		t.Errorf("loop directive = %+v", loop.Directives[0])
	}
	if _, err := f.engine.RenderNote(ctx, "missing"); err == nil {
		t.Error("rendering a missing note succeeded")
	}
}

func TestRenderNote_ViewDependencies(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "dash", Path: "dash", Content: "[view(note(\"p1\"))]"},
		&models.Note{ID: "p1", Path: "proj/one", Content: "[note(\"p2\").name]"},
		&models.Note{ID: "p2", Path: "proj/two", Content: "Two"},
	)
	ctx := context.Background()
	src := `[view(note("p1"))]`
	f.exec(t, src, "dash")
	if !f.exec(t, src, "dash").FromCache {
		t.Fatal("view directive not cached")
	}
	f.host.UpdateContent(ctx, "p2", "Deux")
	if f.exec(t, src, "dash").FromCache {
		t.Error("view did not inherit the nested directive's dependency")
	}
}

func TestPressButton(t *testing.T) {
	f := newFixture(t, nil,
		&models.Note{ID: "a", Path: "inbox/a", Content: "Task\n[button(\"Archive\", later .path = \"archive/a\")]"},
	)
	ctx := context.Background()
	r, err := f.engine.RenderNote(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	d := r.Directives[0]
	if d.Kind != value.KindButton || d.Display != "Archive" {
		t.Fatalf("button directive = %+v", d)
	}
	if n, _ := f.host.GetNoteByID(ctx, "a"); n.Path != "inbox/a" {
		t.Fatal("rendering ran the button action")
	}

	out, err := f.engine.PressButton(ctx, "a", d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Err != nil || len(out.Mutations) != 1 {
		t.Fatalf("press = %+v", out)
	}
	if n, _ := f.host.GetNoteByID(ctx, "a"); n.Path != "archive/a" {
		t.Errorf("path after press = %q", n.Path)
	}
	if _, err := f.engine.PressButton(ctx, "a", "nope"); err == nil {
		t.Error("unknown instance accepted")
	}
}

func TestNotesChanged(t *testing.T) {
	f := newFixture(t, nil, &models.Note{ID: "a", Content: "A\n[.name]"})
	ctx := context.Background()
	r, err := f.engine.RenderNote(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	id := r.Directives[0].ID
	if !f.exec(t, "[.name]", "a").FromCache {
		t.Fatal("self-access directive not cached")
	}

	f.engine.NotesChanged(ctx, false, "a")
	if f.exec(t, "[.name]", "a").FromCache {
		t.Error("entry survived a change notification")
	}
	if _, ok := f.engine.Instances().Lookup("a", id); !ok {
		t.Error("edit dropped directive instances")
	}

	f.engine.NotesChanged(ctx, true, "a")
	if _, ok := f.engine.Instances().Lookup("a", id); ok {
		t.Error("deleted note kept its directive instances")
	}
}
