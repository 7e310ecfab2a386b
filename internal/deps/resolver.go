package deps

import (
	"github.com/starford/ansuz/internal/hashing"
	"github.com/starford/ansuz/internal/models"
)

// Resolver turns hierarchy access patterns into concrete ancestors.
type Resolver struct{}

// Ancestor walks path from note through the collection's parent links.
// It returns nil when the hierarchy is too shallow. Root of a root note is
// the note itself.
func (Resolver) Ancestor(path HierarchyPath, note *models.Note, notes *models.Collection) *models.Note {
	if note == nil {
		return nil
	}
	cur := note
	limit := notes.Len() + 1
	switch path.Kind {
	case PathRoot:
		for i := 0; i < limit; i++ {
			parent := notes.Parent(cur.ID)
			if parent == nil {
				return cur
			}
			cur = parent
		}
		return nil
	default:
		for i := 0; i < path.N; i++ {
			if i >= limit {
				return nil
			}
			cur = notes.Parent(cur.ID)
			if cur == nil {
				return nil
			}
		}
		return cur
	}
}

// ResolvePattern resolves p relative to note. A shallow hierarchy yields a
// dependency with an empty ResolvedNoteID, never an error.
func (r Resolver) ResolvePattern(p HierarchyAccessPattern, note *models.Note, notes *models.Collection) HierarchyDependency {
	dep := HierarchyDependency{Path: p.Path, Field: p.Field}
	if note != nil {
		dep.FromNoteID = note.ID
	}
	if anc := r.Ancestor(p.Path, note, notes); anc != nil {
		dep.ResolvedNoteID = anc.ID
		dep.FieldHash = hashing.FieldHash(anc, p.Field)
	}
	return dep
}

// ResolveAll resolves every pattern of a profile.
func (r Resolver) ResolveAll(patterns []HierarchyAccessPattern, note *models.Note, notes *models.Collection) []HierarchyDependency {
	out := make([]HierarchyDependency, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, r.ResolvePattern(p, note, notes))
	}
	return out
}
