package noteservice

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/notefile"
)

// Change kinds reported by Sync, Reload and Watch.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Change is one note whose file differs from the loaded state.
type Change struct {
	Kind   string `json:"kind"`
	NoteID string `json:"note_id"`
}

// Sync walks the vault and brings the loaded notes up to date: new and
// changed files are read, and notes whose file disappeared are dropped.
// Unreadable files are logged and skipped.
func (s *Service) Sync() ([]Change, error) {
	files, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("noteservice: sync: %w", err)
	}

	s.mu.RLock()
	known := make(map[string]string, len(s.sums))
	for id, sum := range s.sums {
		known[id] = sum
	}
	s.mu.RUnlock()

	var changes []Change
	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		id, ok := notefile.IDOf(f.Name)
		if !ok {
			continue
		}
		disk[id] = struct{}{}
		if known[id] == f.Checksum {
			continue
		}
		c, err := s.Reload(id)
		if err != nil {
			s.logger.Warn("sync: read failed", slog.String("note_id", id), slog.String("error", err.Error()))
			continue
		}
		if c != nil {
			changes = append(changes, *c)
		}
	}

	for id := range known {
		if _, ok := disk[id]; !ok {
			s.forget(id)
			s.logger.Debug("sync: removed stale", slog.String("note_id", id))
			changes = append(changes, Change{Kind: Deleted, NoteID: id})
		}
	}
	return changes, nil
}

// Reload rereads the file of id. It returns nil when the file matches what
// the service last read or wrote, and a Deleted change when the file is
// gone.
func (s *Service) Reload(id string) (*Change, error) {
	data, err := s.store.Read(notefile.FileName(id))
	if errors.Is(err, apperr.ErrNotFound) {
		if s.forget(id) {
			return &Change{Kind: Deleted, NoteID: id}, nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sum := checksum.Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, known := s.sums[id]
	if known && prev == sum {
		return nil, nil
	}
	n, err := notefile.Decode(id, data)
	if err != nil {
		return nil, err
	}
	s.notes[id] = n
	s.sums[id] = sum
	kind := Updated
	if !known {
		kind = Created
	}
	return &Change{Kind: kind, NoteID: id}, nil
}

func (s *Service) forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[id]
	delete(s.notes, id)
	delete(s.sums, id)
	return ok
}
