package models

import "testing"

func TestNote_FirstLineAndRest(t *testing.T) {
	n := &Note{Content: "Title\nline two\nline three"}
	if n.FirstLine() != "Title" {
		t.Errorf("first line = %q", n.FirstLine())
	}
	if n.Rest() != "line two\nline three" {
		t.Errorf("rest = %q", n.Rest())
	}

	single := &Note{Content: "only"}
	if single.FirstLine() != "only" || single.Rest() != "" {
		t.Errorf("single line split = %q / %q", single.FirstLine(), single.Rest())
	}
}

func TestCollection_ParentsAndChildren(t *testing.T) {
	c := NewCollection(
		&Note{ID: "root"},
		&Note{ID: "b", ParentID: "root"},
		&Note{ID: "a", ParentID: "root"},
		&Note{ID: "orphan", ParentID: "missing"},
	)
	if c.Len() != 4 {
		t.Fatalf("len = %d", c.Len())
	}
	if p := c.Parent("a"); p == nil || p.ID != "root" {
		t.Errorf("parent of a = %v", p)
	}
	if c.Parent("orphan") != nil {
		t.Error("orphan should have no resolvable parent")
	}
	kids := c.Children("root")
	if len(kids) != 2 || kids[0].ID != "a" || kids[1].ID != "b" {
		t.Errorf("children = %v", kids)
	}
}

func TestCollection_With(t *testing.T) {
	c := NewCollection(&Note{ID: "a", Content: "old"})
	c2 := c.With(&Note{ID: "a", Content: "new"})
	if c.Get("a").Content != "old" {
		t.Error("original collection changed")
	}
	if c2.Get("a").Content != "new" {
		t.Error("replacement not applied")
	}
}
