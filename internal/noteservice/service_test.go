package noteservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/testutil"
)

func newService(t *testing.T) (string, *Service) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	svc := NewService(store, testutil.Logger())
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	return dir, svc
}

func TestService_CreateAndMutate(t *testing.T) {
	dir, svc := newService(t)
	ctx := context.Background()

	root, err := svc.CreateNote(ctx, NewNote{ID: "root", Path: "projects", Content: "Projects"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, NewNote{ID: "root"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate id: err = %v", err)
	}
	if _, err := svc.CreateNote(ctx, NewNote{ParentID: "ghost"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown parent: err = %v", err)
	}
	if _, err := svc.CreateNote(ctx, NewNote{ID: "../escape"}); err == nil {
		t.Error("path-like id accepted")
	}

	child, err := svc.CreateNote(ctx, NewNote{Path: "projects/x", Content: "X", ParentID: root.ID})
	if err != nil {
		t.Fatal(err)
	}
	if child.ID == "" {
		t.Fatal("no id assigned")
	}
	if _, err := os.Stat(filepath.Join(dir, child.ID+".md")); err != nil {
		t.Errorf("note file missing: %v", err)
	}

	moved, err := svc.UpdatePath(ctx, child.ID, "archive/x")
	if err != nil {
		t.Fatal(err)
	}
	if moved.Path != "archive/x" || !moved.UpdatedAt.After(child.UpdatedAt) {
		t.Errorf("moved = %+v", moved)
	}
	if _, err := svc.AppendToNote(ctx, child.ID, "\n- done"); err != nil {
		t.Fatal(err)
	}
	viewed, err := svc.MarkViewed(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if viewed.ViewedAt.IsZero() {
		t.Error("viewed timestamp not set")
	}
	got, _ := svc.GetNoteByID(ctx, child.ID)
	if got.Content != "X\n- done" || !got.UpdatedAt.Before(got.ViewedAt) {
		t.Errorf("note = %+v", got)
	}
	if _, err := svc.UpdateContent(ctx, "ghost", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update unknown note: err = %v", err)
	}

	snap, _ := svc.Snapshot(ctx)
	if snap.Len() != 2 || snap.Parent(child.ID) == nil {
		t.Errorf("snapshot = %v", snap.IDs())
	}

	if err := svc.DeleteNote(ctx, child.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetNoteByID(ctx, child.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted note still present: %v", err)
	}
}

func TestService_SyncRestoresState(t *testing.T) {
	dir, svc := newService(t)
	ctx := context.Background()
	if _, err := svc.CreateNote(ctx, NewNote{ID: "a", Path: "inbox", Content: "A\nbody"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, NewNote{ID: "b", Content: "B"}); err != nil {
		t.Fatal(err)
	}
	want, _ := svc.GetNoteByID(ctx, "a")

	fresh := NewService(svc.store, testutil.Logger())
	changes, err := fresh.Sync()
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Errorf("changes = %+v", changes)
	}
	got, err := fresh.GetNoteByID(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reloaded note (-want +got):\n%s", diff)
	}

	if again, _ := fresh.Sync(); len(again) != 0 {
		t.Errorf("second sync reported %+v", again)
	}

	_ = os.Remove(filepath.Join(dir, "b.md"))
	_ = os.WriteFile(filepath.Join(dir, "c.md"), []byte("C without frontmatter"), 0o644)
	changes, _ = fresh.Sync()
	kinds := map[string]string{}
	for _, c := range changes {
		kinds[c.NoteID] = c.Kind
	}
	if diff := cmp.Diff(map[string]string{"b": Deleted, "c": Created}, kinds); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestService_ReloadIgnoresOwnWrites(t *testing.T) {
	dir, svc := newService(t)
	ctx := context.Background()
	if _, err := svc.CreateNote(ctx, NewNote{ID: "a", Content: "A"}); err != nil {
		t.Fatal(err)
	}
	if c, err := svc.Reload("a"); err != nil || c != nil {
		t.Errorf("Reload after own write = %+v, %v", c, err)
	}

	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("Edited elsewhere"), 0o644)
	c, err := svc.Reload("a")
	if err != nil || c == nil || c.Kind != Updated {
		t.Fatalf("Reload after foreign edit = %+v, %v", c, err)
	}
	if n, _ := svc.GetNoteByID(ctx, "a"); n.Content != "Edited elsewhere" {
		t.Errorf("content = %q", n.Content)
	}

	_ = os.Remove(filepath.Join(dir, "a.md"))
	if c, _ := svc.Reload("a"); c == nil || c.Kind != Deleted {
		t.Errorf("Reload after removal = %+v", c)
	}
}

func TestService_ListNotes(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, NewNote{ID: "2", Path: "b", Content: "Two\nbody"})
	_, _ = svc.CreateNote(ctx, NewNote{ID: "1", Path: "a", Content: "One"})

	var names []string
	for _, it := range svc.ListNotes(ctx) {
		names = append(names, it.Name)
	}
	if diff := cmp.Diff([]string{"One", "Two"}, names); diff != "" {
		t.Errorf("ListNotes (-want +got):\n%s", diff)
	}
}
