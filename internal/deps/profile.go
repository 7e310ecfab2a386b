// Package deps predicts and collects what a directive result depends on.
//
// Analyze inspects a parsed directive and produces a Profile without
// running it. During evaluation a Collector accumulates the accesses
// actually made, including those of nested views and shared lambdas, into
// a Record that is stored next to the cached result.
package deps

import (
	"sort"
	"strconv"
)

// SelfID stands for the note hosting the directive in a Profile's note
// sets. Profile.Record substitutes the real id.
const SelfID = "."

// PathKind is the shape of a hierarchy navigation.
type PathKind string

const (
	PathUp   PathKind = "up"
	PathRoot PathKind = "root"
)

// HierarchyPath is Up(n) or Root.
type HierarchyPath struct {
	Kind PathKind `json:"kind"`
	N    int      `json:"n,omitempty"`
}

// Up returns the path n levels above a note.
func Up(n int) HierarchyPath { return HierarchyPath{Kind: PathUp, N: n} }

// Root returns the path to the topmost ancestor.
func Root() HierarchyPath { return HierarchyPath{Kind: PathRoot} }

func (p HierarchyPath) String() string {
	switch {
	case p.Kind == PathRoot:
		return "root"
	case p.N == 1:
		return "up"
	default:
		return "up(" + strconv.Itoa(p.N) + ")"
	}
}

// HierarchyAccessPattern is an abstract ancestor access such as `.up.path`.
// Field is empty when the ancestor itself is used.
type HierarchyAccessPattern struct {
	Path  HierarchyPath `json:"path"`
	Field string        `json:"field,omitempty"`
}

// Flags are the boolean dependencies of a directive.
type Flags struct {
	UsesSelfAccess         bool `json:"uses_self_access,omitempty"`
	DependsOnPath          bool `json:"depends_on_path,omitempty"`
	DependsOnModified      bool `json:"depends_on_modified,omitempty"`
	DependsOnCreated       bool `json:"depends_on_created,omitempty"`
	DependsOnViewed        bool `json:"depends_on_viewed,omitempty"`
	DependsOnNoteExistence bool `json:"depends_on_note_existence,omitempty"`
	DependsOnAllNames      bool `json:"depends_on_all_names,omitempty"`
	IsMutating             bool `json:"is_mutating,omitempty"`
}

func (f *Flags) merge(o Flags) {
	f.UsesSelfAccess = f.UsesSelfAccess || o.UsesSelfAccess
	f.DependsOnPath = f.DependsOnPath || o.DependsOnPath
	f.DependsOnModified = f.DependsOnModified || o.DependsOnModified
	f.DependsOnCreated = f.DependsOnCreated || o.DependsOnCreated
	f.DependsOnViewed = f.DependsOnViewed || o.DependsOnViewed
	f.DependsOnNoteExistence = f.DependsOnNoteExistence || o.DependsOnNoteExistence
	f.DependsOnAllNames = f.DependsOnAllNames || o.DependsOnAllNames
	f.IsMutating = f.IsMutating || o.IsMutating
}

// Profile is the static dependency prediction for an expression. It is a
// pure function of syntax.
type Profile struct {
	Flags
	FirstLine []string                 `json:"first_line,omitempty"`
	Remainder []string                 `json:"remainder,omitempty"`
	Hierarchy []HierarchyAccessPattern `json:"hierarchy,omitempty"`
	// NameScopes are the literal paths of find(path:, name:) calls; an
	// empty string means a name search over every note.
	NameScopes []string `json:"name_scopes,omitempty"`
	// Constant is set when the result cannot depend on any note state.
	Constant bool `json:"constant,omitempty"`
}

// CanShareGlobally reports whether results may be cached across notes.
func (p *Profile) CanShareGlobally() bool { return !p.UsesSelfAccess }

// Record converts the profile to a dependency record for the note selfID.
func (p *Profile) Record(selfID string) *Record {
	r := &Record{Flags: p.Flags}
	r.FirstLine = substitute(p.FirstLine, selfID)
	r.Remainder = substitute(p.Remainder, selfID)
	r.NameScopes = append([]string(nil), p.NameScopes...)
	return r
}

func substitute(ids []string, selfID string) []string {
	var out []string
	for _, id := range ids {
		if id == SelfID {
			if selfID == "" {
				continue
			}
			id = selfID
		}
		out = addSorted(out, id)
	}
	return out
}

// addSorted inserts s into the sorted set ids.
func addSorted(ids []string, s string) []string {
	i := sort.SearchStrings(ids, s)
	if i < len(ids) && ids[i] == s {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = s
	return ids
}

func unionSorted(a, b []string) []string {
	for _, s := range b {
		a = addSorted(a, s)
	}
	return a
}
