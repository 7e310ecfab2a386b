// Package hashing computes the content and metadata digests used to detect
// stale cache entries without keeping snapshots of the notes themselves.
package hashing

import (
	"strings"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// Metadata fields a directive can depend on.
const (
	FieldPath     = "path"
	FieldModified = "modified"
	FieldCreated  = "created"
	FieldViewed   = "viewed"
	FieldName     = "name"
	FieldContent  = "content"
	FieldBody     = "body"
	FieldID       = "id"
)

// MetadataHashes holds the collection-wide hashes. An empty string means the
// hash was not requested.
type MetadataHashes struct {
	Path      string `json:"path,omitempty"`
	Modified  string `json:"modified,omitempty"`
	Created   string `json:"created,omitempty"`
	Viewed    string `json:"viewed,omitempty"`
	Existence string `json:"existence,omitempty"`
}

// IsZero reports whether no hash is set.
func (m MetadataHashes) IsZero() bool { return m == MetadataHashes{} }

// ContentHashes holds the per-note content hashes. An empty string means
// the hash was not requested.
type ContentHashes struct {
	FirstLine string `json:"first_line,omitempty"`
	Remainder string `json:"remainder,omitempty"`
}

// MetadataHasher hashes note metadata across the whole collection.
type MetadataHasher struct{}

// PathHash hashes id→path pairs.
func (MetadataHasher) PathHash(notes *models.Collection) string {
	return pairHash(notes, func(n *models.Note) string { return n.Path })
}

// ModifiedHash hashes id→updated-at pairs.
func (MetadataHasher) ModifiedHash(notes *models.Collection) string {
	return pairHash(notes, func(n *models.Note) string { return stamp(n.UpdatedAt) })
}

// CreatedHash hashes id→created-at pairs.
func (MetadataHasher) CreatedHash(notes *models.Collection) string {
	return pairHash(notes, func(n *models.Note) string { return stamp(n.CreatedAt) })
}

// ViewedHash hashes id→viewed-at pairs.
func (MetadataHasher) ViewedHash(notes *models.Collection) string {
	return pairHash(notes, func(n *models.Note) string { return stamp(n.ViewedAt) })
}

// ExistenceHash depends only on the set of ids present.
func (MetadataHasher) ExistenceHash(notes *models.Collection) string {
	return checksum.SumSet(notes.IDs())
}

func pairHash(notes *models.Collection, field func(*models.Note) string) string {
	pairs := make(map[string]string, notes.Len())
	for _, n := range notes.All() {
		pairs[n.ID] = field(n)
	}
	return checksum.SumPairs(pairs)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ContentHasher hashes the two halves of a note's content separately so a
// directive reading only the name survives edits to the body.
type ContentHasher struct{}

// FirstLineHash hashes the first content line.
func (ContentHasher) FirstLineHash(n *models.Note) string {
	return checksum.SumString(n.FirstLine())
}

// RemainderHash hashes everything after the first line.
func (ContentHasher) RemainderHash(n *models.Note) string {
	return checksum.SumString(n.Rest())
}

// NamesHash hashes the first lines of every note, or only of notes at or
// under one of scopes when scopes is non-empty.
func NamesHash(notes *models.Collection, scopes []string) string {
	pairs := make(map[string]string)
	for _, n := range notes.All() {
		if len(scopes) > 0 && !InScope(n.Path, scopes) {
			continue
		}
		pairs[n.ID] = n.FirstLine()
	}
	return checksum.SumPairs(pairs)
}

// InScope reports whether path equals or lies beneath one of scopes.
func InScope(path string, scopes []string) bool {
	for _, s := range scopes {
		if s == "" || path == s || strings.HasPrefix(path, s+"/") {
			return true
		}
	}
	return false
}

// FieldHash hashes a single field of n, used for hierarchy dependencies.
// An empty field hashes the note's identity.
func FieldHash(n *models.Note, field string) string {
	var v string
	switch field {
	case FieldPath:
		v = n.Path
	case FieldModified:
		v = stamp(n.UpdatedAt)
	case FieldCreated:
		v = stamp(n.CreatedAt)
	case FieldViewed:
		v = stamp(n.ViewedAt)
	case FieldName:
		v = n.FirstLine()
	case FieldBody:
		v = n.Rest()
	case FieldContent:
		v = n.Content
	default:
		v = n.ID
	}
	return checksum.SumString(field + "\x00" + v)
}
