package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/staleness"
	"github.com/starford/ansuz/internal/value"
)

type mapL2 struct {
	mu      sync.Mutex
	global  map[string][]byte
	perNote map[string]map[string][]byte
}

func newMapL2() *mapL2 {
	return &mapL2{global: map[string][]byte{}, perNote: map[string]map[string][]byte{}}
}

func (m *mapL2) GetGlobal(_ context.Context, hash string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.global[hash]
	return d, ok, nil
}

func (m *mapL2) PutGlobal(_ context.Context, hash string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global[hash] = data
	return nil
}

func (m *mapL2) RemoveGlobal(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.global, hash)
	return nil
}

func (m *mapL2) GetPerNote(_ context.Context, noteID, hash string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.perNote[noteID][hash]
	return d, ok, nil
}

func (m *mapL2) PutPerNote(_ context.Context, noteID, hash string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.perNote[noteID] == nil {
		m.perNote[noteID] = map[string][]byte{}
	}
	m.perNote[noteID][hash] = data
	return nil
}

func (m *mapL2) RemovePerNote(_ context.Context, noteID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.perNote[noteID], hash)
	return nil
}

func (m *mapL2) ClearNote(_ context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.perNote, noteID)
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func newManager(t *testing.T, o Options) *Manager {
	t.Helper()
	o.Logger = quietLogger()
	m, err := NewManager(o)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func valueResult(v value.Value) *Result {
	return &Result{Value: v, CachedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func TestResult_Validate(t *testing.T) {
	if err := (&Result{}).Validate(); err == nil {
		t.Error("empty result accepted")
	}
	both := &Result{Value: value.Number(1), Err: apperr.New(apperr.KindType, 0, "x")}
	if err := both.Validate(); err == nil {
		t.Error("result with value and error accepted")
	}
	if err := valueResult(value.Number(1)).Validate(); err != nil {
		t.Error(err)
	}
}

func TestEntry_RoundTrip(t *testing.T) {
	notes := models.NewCollection(&models.Note{ID: "a", Path: "inbox", Content: "A\nbody"})
	rec := &deps.Record{Flags: deps.Flags{DependsOnPath: true}, FirstLine: []string{"a"}}
	fp := staleness.Checker{}.ComputeHashes(notes, rec)

	for _, r := range []*Result{
		{Value: value.List{value.String("x"), value.NewNote(notes.Get("a"))}, Fingerprint: fp},
		{Err: apperr.New(apperr.KindArithmetic, 3, "division by zero"), Fingerprint: fp},
	} {
		r.CachedAt = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
		data, err := EncodeEntry(r)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeEntry(data)
		if err != nil {
			t.Fatal(err)
		}
		if r.Value != nil && !r.Value.Equal(got.Value) {
			t.Errorf("value = %v, want %v", got.Value, r.Value)
		}
		if diff := cmp.Diff(r.Err, got.Err); diff != "" {
			t.Errorf("error mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(r.Fingerprint, got.Fingerprint); diff != "" {
			t.Errorf("fingerprint mismatch (-want +got):\n%s", diff)
		}
		if !got.CachedAt.Equal(r.CachedAt) {
			t.Errorf("cached at = %v", got.CachedAt)
		}
	}
}

func TestGlobalCache_CapacityAndLRU(t *testing.T) {
	g, err := NewGlobalCache(2)
	if err != nil {
		t.Fatal(err)
	}
	g.Put("a", valueResult(value.Number(1)))
	g.Put("b", valueResult(value.Number(2)))
	g.Get("a")
	g.Put("c", valueResult(value.Number(3)))

	if g.Len() != 2 {
		t.Fatalf("len = %d, want 2", g.Len())
	}
	if _, ok := g.Get("b"); ok {
		t.Error("least recently used entry survived")
	}
	if _, ok := g.Get("a"); !ok {
		t.Error("recently used entry evicted")
	}
}

func TestGlobalCache_ReturnsCopies(t *testing.T) {
	g, _ := NewGlobalCache(4)
	g.Put("k", valueResult(value.List{value.Number(1)}))
	r, _ := g.Get("k")
	r.Value.(value.List)[0] = value.Number(99)
	again, _ := g.Get("k")
	if !again.Value.Equal(value.List{value.Number(1)}) {
		t.Errorf("stored entry mutated through a copy: %v", again.Value)
	}
}

func TestPerNoteCache_IsolationAndCapacity(t *testing.T) {
	p, err := NewPerNoteCache(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	p.Put("A", "k", valueResult(value.String("from A")))
	if _, ok := p.Get("B", "k"); ok {
		t.Fatal("note B saw note A's entry")
	}

	p.Put("A", "k2", valueResult(value.Number(2)))
	p.Put("A", "k3", valueResult(value.Number(3)))
	if p.Len("A") != 2 {
		t.Errorf("entries under A = %d, want 2", p.Len("A"))
	}
	if _, ok := p.Get("A", "k"); ok {
		t.Error("oldest entry under A survived")
	}

	p.Put("B", "k", valueResult(value.Number(1)))
	p.Put("C", "k", valueResult(value.Number(1)))
	if p.Notes() != 2 {
		t.Errorf("notes = %d, want 2", p.Notes())
	}
	if _, ok := p.Get("A", "k2"); ok {
		t.Error("least recently used note survived")
	}
}

func TestManager_Routing(t *testing.T) {
	m := newManager(t, Options{})
	shared := Address{Key: "k", NoteID: "A"}
	self := Address{Key: "k", NoteID: "A", SelfAccess: true}

	if err := m.Put(self, valueResult(value.String("self"))); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(shared); ok {
		t.Error("per-note entry visible globally")
	}
	if _, ok := m.Get(Address{Key: "k", NoteID: "B", SelfAccess: true}); ok {
		t.Error("per-note entry visible under another note")
	}
	m.Put(shared, valueResult(value.String("shared")))
	if r, ok := m.Get(Address{Key: "k", NoteID: "B"}); !ok || r.Value != value.String("shared") {
		t.Errorf("global entry = %v, %v", r, ok)
	}
	if err := m.Put(shared, &Result{}); err == nil {
		t.Error("invalid result stored")
	}
}

func TestManager_GetIfValid(t *testing.T) {
	m := newManager(t, Options{})
	notes := []*models.Note{{ID: "a", Content: "A"}}
	coll := models.NewCollection(notes...)
	rec := &deps.Record{FirstLine: []string{"a"}}
	fp := m.Checker().ComputeHashes(coll, rec)

	det := Address{Key: "det"}
	m.Put(det, &Result{Err: apperr.New(apperr.KindType, 1, "bad"), Fingerprint: fp})
	r, ok := m.GetIfValid(det, coll)
	if !ok || r.Err.Kind != apperr.KindType || r.Err.Message != "bad" {
		t.Errorf("deterministic error = %+v, %v", r, ok)
	}
	renamed := models.NewCollection(&models.Note{ID: "a", Content: "B"})
	if _, ok := m.GetIfValid(det, renamed); ok {
		t.Error("stale deterministic error returned")
	}

	nondet := Address{Key: "nondet"}
	m.Put(nondet, &Result{Err: apperr.New(apperr.KindNetwork, -1, "offline"), Fingerprint: fp})
	if _, ok := m.GetIfValid(nondet, coll); ok {
		t.Error("non-deterministic error returned")
	}
}

func TestManager_L2(t *testing.T) {
	l2 := newMapL2()
	m := newManager(t, Options{L2: l2})
	a := Address{Key: "k", NoteID: "A", SelfAccess: true}
	if err := m.PutWithL2(a, valueResult(value.Number(7))); err != nil {
		t.Fatal(err)
	}
	m.Flush()
	if _, ok, _ := l2.GetPerNote(context.Background(), "A", "k"); !ok {
		t.Fatal("background write missing")
	}

	fresh := newManager(t, Options{L2: l2})
	r, ok, err := fresh.GetWithL2Fallback(context.Background(), a)
	if err != nil || !ok || r.Value != value.Number(7) {
		t.Fatalf("l2 fallback = %v, %v, %v", r, ok, err)
	}
	if _, ok := fresh.Get(a); !ok {
		t.Error("l2 hit not copied into the first tier")
	}

	l2.PutGlobal(context.Background(), "broken", []byte("{"))
	if _, ok, err := fresh.GetWithL2Fallback(context.Background(), Address{Key: "broken"}); ok || err != nil {
		t.Errorf("unreadable entry = %v, %v", ok, err)
	}
	if _, ok, _ := l2.GetGlobal(context.Background(), "broken"); ok {
		t.Error("unreadable entry not removed")
	}
}

func TestManager_Invalidate(t *testing.T) {
	l2 := newMapL2()
	m := newManager(t, Options{L2: l2})
	selfA := Address{Key: "k", NoteID: "A", SelfAccess: true}
	selfB := Address{Key: "k", NoteID: "B", SelfAccess: true}
	global := Address{Key: "g"}
	m.PutWithL2(selfA, valueResult(value.Number(1)))
	m.PutWithL2(selfB, valueResult(value.Number(2)))
	m.PutWithL2(global, valueResult(value.Number(3)))

	m.InvalidateForNotes(context.Background(), "A")
	if _, ok, _ := m.GetWithL2Fallback(context.Background(), selfA); ok {
		t.Error("entry of A survived invalidation")
	}
	if _, ok := m.Get(selfB); !ok {
		t.Error("entry of B invalidated")
	}
	if _, ok := m.Get(global); !ok {
		t.Error("global entry invalidated by note invalidation")
	}

	m.InvalidateKey(context.Background(), "k", "B")
	if _, ok, _ := m.GetWithL2Fallback(context.Background(), selfB); ok {
		t.Error("entry of B survived key invalidation")
	}
	m.InvalidateKey(context.Background(), "g", "")
	if _, ok, _ := m.GetWithL2Fallback(context.Background(), global); ok {
		t.Error("global entry survived key invalidation")
	}
}

func TestManager_ConcurrentWritesAndInvalidation(t *testing.T) {
	l2 := newMapL2()
	m := newManager(t, Options{L2: l2})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				a := Address{Key: fmt.Sprintf("k%d-%d", i, j), NoteID: "n", SelfAccess: true}
				if err := m.PutWithL2(a, valueResult(value.Number(j))); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.InvalidateForNotes(ctx, "n")
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				a := Address{Key: fmt.Sprintf("k%d-%d", i, j), NoteID: "n", SelfAccess: true}
				if _, _, err := m.GetWithL2Fallback(ctx, a); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	m.InvalidateForNotes(ctx, "n")
	if n := m.PerNote().Len("n"); n != 0 {
		t.Errorf("per-note entries after final invalidation = %d", n)
	}
	if _, ok, _ := l2.GetPerNote(ctx, "n", "k0-0"); ok {
		t.Error("persistent entry survived final invalidation")
	}
}

func TestManager_EvictForMemoryPressure(t *testing.T) {
	m := newManager(t, Options{GlobalSize: 100})
	for i := 0; i < 10; i++ {
		m.Put(Address{Key: fmt.Sprint(i)}, valueResult(value.Number(i)))
	}
	m.Get(Address{Key: "0"})

	if removed := m.EvictForMemoryPressure(0.5); removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}
	if m.Global().Len() != 5 {
		t.Errorf("len = %d, want 5", m.Global().Len())
	}
	if _, ok := m.Get(Address{Key: "0"}); !ok {
		t.Error("recently used entry evicted")
	}
	if _, ok := m.Get(Address{Key: "1"}); ok {
		t.Error("least recently used entry survived")
	}
}

func TestOnceStore(t *testing.T) {
	o := NewOnceStore()
	o.Put("A", "k", value.String("x"))
	if v, ok := o.Get("A", "k"); !ok || v != value.String("x") {
		t.Errorf("get = %v, %v", v, ok)
	}
	if _, ok := o.Get("B", "k"); ok {
		t.Error("once value leaked to another note")
	}
	o.Forget("A")
	if _, ok := o.Get("A", "k"); ok {
		t.Error("forgotten value still present")
	}
}
