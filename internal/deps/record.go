package deps

// HierarchyDependency is a resolved hierarchy access: which note FromNoteID
// reached through Path, and the hash of the field read there.
// ResolvedNoteID is empty when the hierarchy is shallower than Path.
type HierarchyDependency struct {
	Path           HierarchyPath `json:"path"`
	FromNoteID     string        `json:"from_note_id"`
	ResolvedNoteID string        `json:"resolved_note_id,omitempty"`
	Field          string        `json:"field,omitempty"`
	FieldHash      string        `json:"field_hash,omitempty"`
}

// Record is the dependency set of one evaluated directive, including
// everything reached transitively. It is persisted with the cached result.
type Record struct {
	Flags
	FirstLine  []string              `json:"first_line,omitempty"`
	Remainder  []string              `json:"remainder,omitempty"`
	Hierarchy  []HierarchyDependency `json:"hierarchy,omitempty"`
	NameScopes []string              `json:"name_scopes,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{Flags: r.Flags}
	c.FirstLine = append([]string(nil), r.FirstLine...)
	c.Remainder = append([]string(nil), r.Remainder...)
	c.Hierarchy = append([]HierarchyDependency(nil), r.Hierarchy...)
	c.NameScopes = append([]string(nil), r.NameScopes...)
	return c
}

// Merge unions o into r. Hierarchy dependencies are concatenated with exact
// duplicates dropped.
func (r *Record) Merge(o *Record) {
	if o == nil {
		return
	}
	r.Flags.merge(o.Flags)
	r.FirstLine = unionSorted(r.FirstLine, o.FirstLine)
	r.Remainder = unionSorted(r.Remainder, o.Remainder)
	r.NameScopes = unionSorted(r.NameScopes, o.NameScopes)
	for _, h := range o.Hierarchy {
		r.AddHierarchy(h)
	}
}

// AddHierarchy appends h unless an identical dependency is present.
func (r *Record) AddHierarchy(h HierarchyDependency) {
	for _, existing := range r.Hierarchy {
		if existing == h {
			return
		}
	}
	r.Hierarchy = append(r.Hierarchy, h)
}

// NoteIDs returns every note id the record depends on by content.
func (r *Record) NoteIDs() []string {
	return unionSorted(append([]string(nil), r.FirstLine...), r.Remainder)
}

// Empty reports whether the record requests nothing at all.
func (r *Record) Empty() bool {
	return r == nil || (r.Flags == Flags{} && len(r.FirstLine) == 0 && len(r.Remainder) == 0 && len(r.Hierarchy) == 0)
}
