package notefile

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/ansuz/internal/models"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	want := &models.Note{
		ID:        "n1",
		Path:      "projects/ansuz",
		ParentID:  "root",
		Content:   "Ansuz\n---\nbody with a rule\n",
		CreatedAt: ts,
		UpdatedAt: ts.Add(time.Hour),
		ViewedAt:  ts.Add(2 * time.Hour),
	}
	data, err := Encode(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode("n1", data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want *models.Note
	}{
		{"no frontmatter", "Title\nbody", &models.Note{ID: "x", Content: "Title\nbody"}},
		{"unterminated", "---\npath: a\nTitle", &models.Note{ID: "x", Content: "---\npath: a\nTitle"}},
		{"empty block", "---\n---\nTitle", &models.Note{ID: "x", Content: "Title"}},
		{"path only", "---\npath: inbox\n---\nTitle", &models.Note{ID: "x", Path: "inbox", Content: "Title"}},
		{"empty body", "---\npath: inbox\n---", &models.Note{ID: "x", Path: "inbox"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode("x", []byte(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_InvalidYAML(t *testing.T) {
	if _, err := Decode("x", []byte("---\npath: [unclosed\n---\nTitle")); err == nil {
		t.Error("invalid frontmatter accepted")
	}
}

func TestIDOf(t *testing.T) {
	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"abc.md", "abc", true},
		{"sub/abc.md", "", false},
		{"abc.txt", "", false},
		{".ansuz-tmp-1.md", "", false},
		{".md", "", false},
	}
	for _, tt := range tests {
		id, ok := IDOf(tt.name)
		if id != tt.id || ok != tt.ok {
			t.Errorf("IDOf(%q) = %q, %v; want %q, %v", tt.name, id, ok, tt.id, tt.ok)
		}
	}
	if FileName("abc") != "abc.md" {
		t.Errorf("FileName = %q", FileName("abc"))
	}
}
