// Package noteservice keeps the notes of a vault in memory and writes every
// change back to their files.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/notefile"
	"github.com/starford/ansuz/internal/storage"
)

// NewNote is the input of CreateNote. An empty ID is replaced by a fresh
// uuid.
type NewNote struct {
	ID       string `json:"id,omitempty"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	ParentID  string    `json:"parent_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is safe for concurrent use.
type Service struct {
	store  storage.Provider
	logger *slog.Logger
	clock  func() time.Time

	mu    sync.RWMutex
	notes map[string]*models.Note
	// sums holds the checksum of the file bytes last read or written per
	// note, so the watcher can tell foreign edits from our own writes.
	sums map[string]string
}

// NewService returns a service over store. Call Sync to load the vault.
func NewService(store storage.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		clock:  time.Now,
		notes:  make(map[string]*models.Note),
		sums:   make(map[string]string),
	}
}

// Root returns the vault directory.
func (s *Service) Root() string { return s.store.Root() }

// Snapshot returns a copy of every note.
func (s *Service) Snapshot(_ context.Context) (*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notes := make([]*models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, n.Clone())
	}
	return models.NewCollection(notes...), nil
}

// GetNoteByID returns a copy of the note or apperr.ErrNotFound.
func (s *Service) GetNoteByID(_ context.Context, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("noteservice: note %q: %w", id, apperr.ErrNotFound)
	}
	return n.Clone(), nil
}

// ListNotes returns every note sorted by path, then id.
func (s *Service) ListNotes(_ context.Context) []NoteListItem {
	s.mu.RLock()
	items := make([]NoteListItem, 0, len(s.notes))
	for _, n := range s.notes {
		items = append(items, NoteListItem{
			ID:        n.ID,
			Name:      n.FirstLine(),
			Path:      n.Path,
			ParentID:  n.ParentID,
			UpdatedAt: n.UpdatedAt,
		})
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if items[i].Path != items[j].Path {
			return items[i].Path < items[j].Path
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// CreateNote writes a new note file.
func (s *Service) CreateNote(_ context.Context, in NewNote) (*models.Note, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := notefile.IDOf(notefile.FileName(id)); !ok {
		return nil, fmt.Errorf("noteservice: invalid note id %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; ok {
		return nil, fmt.Errorf("noteservice: note %q: %w", id, apperr.ErrAlreadyExists)
	}
	if in.ParentID != "" {
		if _, ok := s.notes[in.ParentID]; !ok {
			return nil, fmt.Errorf("noteservice: parent %q: %w", in.ParentID, apperr.ErrNotFound)
		}
	}
	now := s.clock()
	n := &models.Note{
		ID:        id,
		Path:      in.Path,
		Content:   in.Content,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeLocked(n); err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// DeleteNote removes a note file.
func (s *Service) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("noteservice: note %q: %w", id, apperr.ErrNotFound)
	}
	if err := s.store.Delete(notefile.FileName(id)); err != nil {
		return fmt.Errorf("noteservice: delete %q: %w", id, err)
	}
	delete(s.notes, id)
	delete(s.sums, id)
	return nil
}

// UpdatePath moves a note to path.
func (s *Service) UpdatePath(_ context.Context, id, path string) (*models.Note, error) {
	return s.update(id, true, func(n *models.Note) { n.Path = path })
}

// UpdateContent replaces the content of a note.
func (s *Service) UpdateContent(_ context.Context, id, content string) (*models.Note, error) {
	return s.update(id, true, func(n *models.Note) { n.Content = content })
}

// AppendToNote appends text to the content of a note.
func (s *Service) AppendToNote(_ context.Context, id, text string) (*models.Note, error) {
	return s.update(id, true, func(n *models.Note) { n.Content += text })
}

// MarkViewed sets the viewed timestamp of a note without touching its
// modification time.
func (s *Service) MarkViewed(_ context.Context, id string) (*models.Note, error) {
	now := s.clock()
	return s.update(id, false, func(n *models.Note) { n.ViewedAt = now })
}

func (s *Service) update(id string, modified bool, fn func(*models.Note)) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("noteservice: note %q: %w", id, apperr.ErrNotFound)
	}
	n := cur.Clone()
	fn(n)
	if modified {
		n.UpdatedAt = s.clock()
	}
	if err := s.writeLocked(n); err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

func (s *Service) writeLocked(n *models.Note) error {
	data, err := notefile.Encode(n)
	if err != nil {
		return err
	}
	if err := s.store.Write(notefile.FileName(n.ID), data); err != nil {
		return fmt.Errorf("noteservice: write %q: %w", n.ID, err)
	}
	s.notes[n.ID] = n
	s.sums[n.ID] = checksum.Sum(data)
	return nil
}
