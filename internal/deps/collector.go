package deps

import "github.com/starford/ansuz/internal/hashing"

// Collector accumulates dependencies of nested directive executions. Each
// StartDirective pushes a frame; FinishDirective pops it and merges it into
// the frame below, so a parent inherits everything its children touched.
//
// A Collector belongs to one evaluation and is not safe for concurrent use.
// Recording with no open frame is a no-op.
type Collector struct {
	frames []*frame
}

type frame struct {
	key    string
	record *Record
}

// NewCollector returns an empty collector.
func NewCollector() *Collector { return &Collector{} }

// Depth returns the number of open frames.
func (c *Collector) Depth() int { return len(c.frames) }

// StartDirective opens a frame for the directive key seeded with base.
func (c *Collector) StartDirective(key string, base *Record) {
	r := base.Clone()
	if r == nil {
		r = &Record{}
	}
	c.frames = append(c.frames, &frame{key: key, record: r})
}

// Active reports whether a frame for key is open, which indicates a
// directive re-entering itself.
func (c *Collector) Active(key string) bool {
	for _, f := range c.frames {
		if f.key == key {
			return true
		}
	}
	return false
}

// FinishDirective closes the top frame, merges it into its parent and
// returns its record. It returns nil when no frame is open.
func (c *Collector) FinishDirective() *Record {
	if len(c.frames) == 0 {
		return nil
	}
	top := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	if parent := c.top(); parent != nil {
		parent.Merge(top.record)
	}
	return top.record
}

func (c *Collector) top() *Record {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1].record
}

// RecordFirstLineAccess notes that the first line of noteID was read.
func (c *Collector) RecordFirstLineAccess(noteID string) {
	if r := c.top(); r != nil {
		r.FirstLine = addSorted(r.FirstLine, noteID)
	}
}

// RecordNonFirstLineAccess notes that the remainder of noteID was read.
func (c *Collector) RecordNonFirstLineAccess(noteID string) {
	if r := c.top(); r != nil {
		r.Remainder = addSorted(r.Remainder, noteID)
	}
}

// RecordFindUsage notes a note search. byName searches also depend on the
// names of the notes in scope ("" for all notes).
func (c *Collector) RecordFindUsage(byName bool, scope string) {
	r := c.top()
	if r == nil {
		return
	}
	r.DependsOnNoteExistence = true
	if byName {
		r.DependsOnAllNames = true
		r.NameScopes = addSorted(r.NameScopes, scope)
	}
}

// RecordMetadataAccess sets the flag for a metadata field.
func (c *Collector) RecordMetadataAccess(field string) {
	r := c.top()
	if r == nil {
		return
	}
	switch field {
	case hashing.FieldPath:
		r.DependsOnPath = true
	case hashing.FieldModified:
		r.DependsOnModified = true
	case hashing.FieldCreated:
		r.DependsOnCreated = true
	case hashing.FieldViewed:
		r.DependsOnViewed = true
	}
}

// RecordMutation marks the current directive as mutating.
func (c *Collector) RecordMutation() {
	if r := c.top(); r != nil {
		r.IsMutating = true
	}
}

// RecordHierarchyDependency adds a resolved ancestor access.
func (c *Collector) RecordHierarchyDependency(h HierarchyDependency) {
	if r := c.top(); r != nil {
		r.AddHierarchy(h)
	}
}

// AddReferencedDependencies merges the record of a referenced computation,
// such as a lambda defined by another directive.
func (c *Collector) AddReferencedDependencies(rec *Record) {
	if r := c.top(); r != nil {
		r.Merge(rec)
	}
}

// AddNestedViewDependencies merges the record of a directive rendered
// inside a view whose result came from the cache.
func (c *Collector) AddNestedViewDependencies(rec *Record) {
	if r := c.top(); r != nil {
		r.Merge(rec)
	}
}
