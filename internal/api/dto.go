package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/engine"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/value"
)

var noteIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	ID       string `json:"id,omitempty" example:"inbox"`
	Path     string `json:"path" example:"projects/ansuz"`
	Content  string `json:"content" example:"Ansuz\n[add(1, 2)]" validate:"required"`
	ParentID string `json:"parent_id,omitempty"`
}

// Validate checks the request fields.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Match(noteIDPattern)),
		validation.Field(&r.ParentID, validation.Match(noteIDPattern)),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note. Nil fields
// are left unchanged.
type UpdateNoteRequest struct {
	Path    *string `json:"path,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate checks the request fields.
func (r *UpdateNoteRequest) Validate() error {
	if r.Path == nil && r.Content == nil {
		return validation.NewError("validation_empty_update", "path or content is required")
	}
	return nil
}

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// EvaluateRequest is the request body of POST /api/evaluate.
type EvaluateRequest struct {
	Source string `json:"source" example:"[add(1, 2)]" validate:"required"`
	NoteID string `json:"note_id,omitempty" example:"inbox"`
}

// Validate checks the request fields.
func (r *EvaluateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Required),
	)
}

// DirectiveResponse is the result of evaluating a directive or pressing a
// button.
type DirectiveResponse struct {
	Key       string                `json:"key"`
	Display   string                `json:"display"`
	Value     *value.Wire           `json:"value,omitempty"`
	Error     *apperr.Wire          `json:"error,omitempty"`
	FromCache bool                  `json:"from_cache"`
	Mutations []models.NoteMutation `json:"mutations,omitempty"`
	Views     []*engine.Rendered    `json:"views,omitempty"`
}

// SessionRequest is the request body of POST /api/sessions.
type SessionRequest struct {
	EditedNoteID      string `json:"edited_note_id" validate:"required"`
	OriginatingNoteID string `json:"originating_note_id" validate:"required"`
}

// Validate checks the request fields.
func (r *SessionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EditedNoteID, validation.Required),
		validation.Field(&r.OriginatingNoteID, validation.Required),
	)
}

// EndSessionResponse reports whether a session was active.
type EndSessionResponse struct {
	Ended bool `json:"ended"`
}

// EvictRequest is the optional body of POST /api/cache/evict. Fraction is
// the share of global entries kept; zero selects the configured default.
type EvictRequest struct {
	Fraction float64 `json:"fraction,omitempty" example:"0.5"`
}

// Validate checks the request fields.
func (r *EvictRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Fraction, validation.Min(0.0), validation.Max(1.0)),
	)
}

// EvictResponse reports how many global entries were dropped.
type EvictResponse struct {
	Evicted int `json:"evicted"`
}
