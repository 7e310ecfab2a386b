package deps

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/starford/ansuz/internal/models"
)

func TestCollector_PropagatesToParent(t *testing.T) {
	c := NewCollector()
	c.StartDirective("outer", &Record{Flags: Flags{DependsOnPath: true}})
	c.RecordFirstLineAccess("a")

	c.StartDirective("inner", nil)
	c.RecordNonFirstLineAccess("b")
	c.RecordFindUsage(true, "inbox")
	inner := c.FinishDirective()

	if diff := cmp.Diff(&Record{
		Flags:      Flags{DependsOnNoteExistence: true, DependsOnAllNames: true},
		Remainder:  []string{"b"},
		NameScopes: []string{"inbox"},
	}, inner, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("inner record (-want +got):\n%s", diff)
	}

	outer := c.FinishDirective()
	want := &Record{
		Flags:      Flags{DependsOnPath: true, DependsOnNoteExistence: true, DependsOnAllNames: true},
		FirstLine:  []string{"a"},
		Remainder:  []string{"b"},
		NameScopes: []string{"inbox"},
	}
	if diff := cmp.Diff(want, outer, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("outer record (-want +got):\n%s", diff)
	}
	if c.Depth() != 0 || c.FinishDirective() != nil {
		t.Error("collector should be empty")
	}
}

func TestCollector_MergesReferencedRecords(t *testing.T) {
	c := NewCollector()
	c.StartDirective("k", nil)
	dep := HierarchyDependency{Path: Up(1), FromNoteID: "x", ResolvedNoteID: "p"}
	c.AddReferencedDependencies(&Record{FirstLine: []string{"z", "a"}, Hierarchy: []HierarchyDependency{dep}})
	c.AddNestedViewDependencies(&Record{Flags: Flags{DependsOnViewed: true}, Hierarchy: []HierarchyDependency{dep}})
	r := c.FinishDirective()
	if !r.DependsOnViewed || len(r.Hierarchy) != 1 {
		t.Fatalf("unexpected record %+v", r)
	}
	if diff := cmp.Diff([]string{"a", "z"}, r.FirstLine); diff != "" {
		t.Errorf("first line ids not sorted: %s", diff)
	}
}

func TestCollector_BaseIsCopied(t *testing.T) {
	base := &Record{FirstLine: []string{"a"}}
	c := NewCollector()
	c.StartDirective("k", base)
	c.RecordFirstLineAccess("b")
	c.FinishDirective()
	if len(base.FirstLine) != 1 {
		t.Fatal("collector mutated the base record")
	}
}

func TestCollector_NoFrameIsNoop(t *testing.T) {
	c := NewCollector()
	c.RecordFirstLineAccess("a")
	c.RecordMetadataAccess("path")
	c.RecordHierarchyDependency(HierarchyDependency{})
	if c.Depth() != 0 {
		t.Fatal("recording opened a frame")
	}
}

func TestCollector_Active(t *testing.T) {
	c := NewCollector()
	c.StartDirective("a", nil)
	c.StartDirective("b", nil)
	if !c.Active("a") || c.Active("c") {
		t.Fatal("Active reports wrong frames")
	}
}

func hierarchy() *models.Collection {
	return models.NewCollection(
		&models.Note{ID: "root", Path: "r"},
		&models.Note{ID: "mid", Path: "r/m", ParentID: "root"},
		&models.Note{ID: "leaf", Path: "r/m/l", ParentID: "mid"},
	)
}

func TestResolver_ResolvePattern(t *testing.T) {
	notes := hierarchy()
	leaf := notes.Get("leaf")
	var r Resolver

	up := r.ResolvePattern(HierarchyAccessPattern{Path: Up(1), Field: "path"}, leaf, notes)
	if up.ResolvedNoteID != "mid" || up.FromNoteID != "leaf" || up.FieldHash == "" {
		t.Errorf("Up(1) = %+v", up)
	}
	if got := r.ResolvePattern(HierarchyAccessPattern{Path: Up(2)}, leaf, notes); got.ResolvedNoteID != "root" {
		t.Errorf("Up(2) = %+v", got)
	}
	if got := r.ResolvePattern(HierarchyAccessPattern{Path: Root()}, leaf, notes); got.ResolvedNoteID != "root" {
		t.Errorf("Root = %+v", got)
	}
	if got := r.ResolvePattern(HierarchyAccessPattern{Path: Root()}, notes.Get("root"), notes); got.ResolvedNoteID != "root" {
		t.Errorf("Root of root = %+v", got)
	}

	shallow := r.ResolvePattern(HierarchyAccessPattern{Path: Up(4), Field: "path"}, leaf, notes)
	if shallow.ResolvedNoteID != "" || shallow.FieldHash != "" {
		t.Errorf("Up(4) should not resolve: %+v", shallow)
	}
}

func TestResolver_ParentCycle(t *testing.T) {
	notes := models.NewCollection(
		&models.Note{ID: "a", ParentID: "b"},
		&models.Note{ID: "b", ParentID: "a"},
	)
	if got := (Resolver{}).Ancestor(Root(), notes.Get("a"), notes); got != nil {
		t.Errorf("root of a parent cycle = %v, want nil", got.ID)
	}
}
