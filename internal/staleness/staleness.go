// Package staleness decides whether a cached directive result still matches
// the notes it was computed from.
package staleness

import (
	"slices"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/hashing"
	"github.com/starford/ansuz/internal/models"
)

// Policy selects how name searches are tracked.
type Policy string

// Name dependency policies.
const (
	// PolicyAll makes find(name:) results stale when any note's name changes.
	PolicyAll Policy = "all"
	// PolicyPathScoped limits that to notes under the find(path:) scope.
	PolicyPathScoped Policy = "path_scoped"
)

// Fingerprint is what a cached result remembers about the notes it read.
type Fingerprint struct {
	Deps     *deps.Record                     `json:"dependencies,omitempty"`
	Metadata hashing.MetadataHashes           `json:"metadata_hashes"`
	Content  map[string]hashing.ContentHashes `json:"note_content_hashes,omitempty"`
	// Missing lists dependent notes that did not exist when the result
	// was computed.
	Missing []string `json:"missing,omitempty"`
	Names   string   `json:"names_hash,omitempty"`
}

// Checker computes and compares fingerprints. The zero value uses PolicyAll.
type Checker struct {
	Policy Policy
}

// ComputeHashes fingerprints notes for rec, computing only what rec asks
// for. A nil or empty record yields an empty fingerprint that is never stale.
func (c Checker) ComputeHashes(notes *models.Collection, rec *deps.Record) Fingerprint {
	fp := Fingerprint{Deps: rec.Clone()}
	if rec == nil {
		return fp
	}
	var mh hashing.MetadataHasher
	if rec.DependsOnPath {
		fp.Metadata.Path = mh.PathHash(notes)
	}
	if rec.DependsOnModified {
		fp.Metadata.Modified = mh.ModifiedHash(notes)
	}
	if rec.DependsOnCreated {
		fp.Metadata.Created = mh.CreatedHash(notes)
	}
	if rec.DependsOnViewed {
		fp.Metadata.Viewed = mh.ViewedHash(notes)
	}
	if rec.DependsOnNoteExistence || rec.DependsOnAllNames {
		fp.Metadata.Existence = mh.ExistenceHash(notes)
	}
	if rec.DependsOnAllNames {
		fp.Names = hashing.NamesHash(notes, c.scopes(rec))
	}

	for _, id := range rec.NoteIDs() {
		n := notes.Get(id)
		if n == nil {
			fp.Missing = append(fp.Missing, id)
			continue
		}
		if fp.Content == nil {
			fp.Content = make(map[string]hashing.ContentHashes)
		}
		fp.Content[id] = contentHashes(n, rec, id)
	}
	return fp
}

func contentHashes(n *models.Note, rec *deps.Record, id string) hashing.ContentHashes {
	var ch hashing.ContentHasher
	var h hashing.ContentHashes
	if slices.Contains(rec.FirstLine, id) {
		h.FirstLine = ch.FirstLineHash(n)
	}
	if slices.Contains(rec.Remainder, id) {
		h.Remainder = ch.RemainderHash(n)
	}
	return h
}

// IsStale reports whether any hash fp requested differs from notes.
func (c Checker) IsStale(fp Fingerprint, notes *models.Collection) bool {
	rec := fp.Deps
	if rec == nil {
		return false
	}
	var mh hashing.MetadataHasher
	m := fp.Metadata
	switch {
	case m.Path != "" && m.Path != mh.PathHash(notes):
		return true
	case m.Modified != "" && m.Modified != mh.ModifiedHash(notes):
		return true
	case m.Created != "" && m.Created != mh.CreatedHash(notes):
		return true
	case m.Viewed != "" && m.Viewed != mh.ViewedHash(notes):
		return true
	case m.Existence != "" && m.Existence != mh.ExistenceHash(notes):
		return true
	case fp.Names != "" && fp.Names != hashing.NamesHash(notes, c.scopes(rec)):
		return true
	}

	for _, id := range fp.Missing {
		if notes.Has(id) {
			return true
		}
	}
	for id, want := range fp.Content {
		n := notes.Get(id)
		if n == nil {
			return true
		}
		if contentHashes(n, rec, id) != want {
			return true
		}
	}

	var r deps.Resolver
	for _, h := range rec.Hierarchy {
		from := notes.Get(h.FromNoteID)
		if from == nil {
			return true
		}
		got := r.ResolvePattern(deps.HierarchyAccessPattern{Path: h.Path, Field: h.Field}, from, notes)
		if got.ResolvedNoteID != h.ResolvedNoteID || got.FieldHash != h.FieldHash {
			return true
		}
	}
	return false
}

// ShouldReExecute reports whether a cached result must be recomputed.
// Non-deterministic errors are always retried.
func (c Checker) ShouldReExecute(fp Fingerprint, err *apperr.Error, notes *models.Collection) bool {
	if err != nil && !err.Kind.Deterministic() {
		return true
	}
	return c.IsStale(fp, notes)
}

func (c Checker) scopes(rec *deps.Record) []string {
	if c.Policy != PolicyPathScoped {
		return nil
	}
	for _, s := range rec.NameScopes {
		if s == "" {
			return nil
		}
	}
	return rec.NameScopes
}
