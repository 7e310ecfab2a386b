package engine

import (
	"sync"

	"github.com/google/uuid"
)

// Instance is a directive with an identity that survives edits elsewhere
// in its note.
type Instance struct {
	ID string `json:"id"`
	Located
}

// Instances keeps the directive instances of each note.
type Instances struct {
	mu     sync.Mutex
	byNote map[string][]Instance
	newID  func() string
}

// NewInstances returns an empty registry issuing random ids.
func NewInstances() *Instances {
	return &Instances{byNote: make(map[string][]Instance), newID: uuid.NewString}
}

// Assign matches located against the previous instances of noteID and
// returns them with ids. An old instance is reused when it has the same
// position and text, else the same line and text, else the same text when
// that text occurs exactly once on both sides. Unmatched directives get a
// fresh id.
func (in *Instances) Assign(noteID string, located []Located) []Instance {
	in.mu.Lock()
	defer in.mu.Unlock()

	prev := in.byNote[noteID]
	used := make([]bool, len(prev))
	out := make([]Instance, len(located))
	for i, l := range located {
		out[i].Located = l
	}

	match := func(pred func(p, l Located) bool) {
		for i := range out {
			if out[i].ID != "" {
				continue
			}
			for j, p := range prev {
				if !used[j] && pred(p.Located, out[i].Located) {
					used[j] = true
					out[i].ID = p.ID
					break
				}
			}
		}
	}
	match(func(p, l Located) bool { return p.Start == l.Start && p.Source == l.Source })
	match(func(p, l Located) bool { return p.Line == l.Line && p.Source == l.Source })

	oldCount := counts(prev)
	newCount := counts(out)
	match(func(p, l Located) bool {
		return p.Source == l.Source && oldCount[l.Source] == 1 && newCount[l.Source] == 1
	})

	for i := range out {
		if out[i].ID == "" {
			out[i].ID = in.newID()
		}
	}
	in.byNote[noteID] = out
	return append([]Instance(nil), out...)
}

func counts(instances []Instance) map[string]int {
	m := make(map[string]int)
	for _, in := range instances {
		m[in.Source]++
	}
	return m
}

// Lookup returns the instance id of noteID.
func (in *Instances) Lookup(noteID, id string) (Instance, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, inst := range in.byNote[noteID] {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

// Forget drops the instances of noteID.
func (in *Instances) Forget(noteID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.byNote, noteID)
}
