package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/engine"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/session"
	"github.com/starford/ansuz/internal/value"
)

// ChangeFunc is told about note changes made through the API.
type ChangeFunc func(ctx context.Context, c noteservice.Change)

// Handler holds API route handlers.
type Handler struct {
	svc      *noteservice.Service
	engine   *engine.Engine
	sessions *session.Manager
	cache    *cache.Manager
	onChange ChangeFunc
	fraction float64
}

// NewHandler creates a new Handler. evictFraction is the default share of
// global cache entries POST /cache/evict keeps.
func NewHandler(svc *noteservice.Service, eng *engine.Engine, sessions *session.Manager, cm *cache.Manager, onChange ChangeFunc, evictFraction float64) *Handler {
	return &Handler{
		svc:      svc,
		engine:   eng,
		sessions: sessions,
		cache:    cm,
		onChange: onChange,
		fraction: evictFraction,
	}
}

func (h *Handler) changed(ctx context.Context, kind, id string) {
	if h.onChange != nil {
		h.onChange(ctx, noteservice.Change{Kind: kind, NoteID: id})
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items := h.svc.ListNotes(r.Context())
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNoteByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), noteservice.NewNote{
		ID:       req.ID,
		Path:     req.Path,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		writeServiceError(w, "create note", err)
		return
	}
	h.changed(r.Context(), noteservice.Created, note.ID)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Update the path or content of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var (
		note *models.Note
		err  error
	)
	if req.Path != nil {
		if note, err = h.svc.UpdatePath(r.Context(), id, *req.Path); err != nil {
			writeServiceError(w, "update note", err)
			return
		}
	}
	if req.Content != nil {
		if note, err = h.svc.UpdateContent(r.Context(), id, *req.Content); err != nil {
			writeServiceError(w, "update note", err)
			return
		}
	}
	h.changed(r.Context(), noteservice.Updated, id)
	writeJSON(w, http.StatusOK, note)
}

// MarkViewed handles POST /api/notes/{id}/viewed.
//
//	@Summary		Record that a note was viewed
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/viewed [post]
func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.MarkViewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "mark viewed", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeServiceError(w, "delete note", err)
		return
	}
	h.changed(r.Context(), noteservice.Deleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// Evaluate handles POST /api/evaluate.
//
//	@Summary		Evaluate one directive
//	@Tags			directives
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EvaluateRequest	true	"Directive source and host note"
//	@Success		200		{object}	DirectiveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/evaluate [post]
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.NoteID != "" {
		if _, err := h.svc.GetNoteByID(r.Context(), req.NoteID); err != nil {
			writeServiceError(w, "evaluate", err)
			return
		}
	}
	out, err := h.engine.Execute(r.Context(), engine.Request{Source: req.Source, NoteID: req.NoteID})
	if err != nil {
		writeServiceError(w, "evaluate", err)
		return
	}
	writeJSON(w, http.StatusOK, directiveResponse(out))
}

// RenderNote handles GET /api/notes/{id}/render.
//
//	@Summary		Render a note with its directives evaluated
//	@Tags			directives
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	engine.Rendered
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/render [get]
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.engine.RenderNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "render note", err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

// PressButton handles POST /api/notes/{id}/buttons/{instance}.
//
//	@Summary		Run the action of a button directive
//	@Tags			directives
//	@Produce		json
//	@Param			id			path		string	true	"Note id"
//	@Param			instance	path		string	true	"Directive instance id from the render response"
//	@Success		200			{object}	DirectiveResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/buttons/{instance} [post]
func (h *Handler) PressButton(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.PressButton(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "instance"))
	if err != nil {
		writeServiceError(w, "press button", err)
		return
	}
	writeJSON(w, http.StatusOK, directiveResponse(out))
}

// StartSession handles POST /api/sessions.
//
//	@Summary		Start an edit session, ending the previous one
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SessionRequest	true	"Edited and originating notes"
//	@Success		201		{object}	session.Session
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s := h.sessions.Start(r.Context(), req.EditedNoteID, req.OriginatingNoteID)
	writeJSON(w, http.StatusCreated, s)
}

// EndSession handles DELETE /api/sessions.
//
//	@Summary		End the active edit session and apply its queued invalidations
//	@Tags			sessions
//	@Produce		json
//	@Success		200	{object}	EndSessionResponse
//	@Security		BearerAuth
//	@Router			/sessions [delete]
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EndSessionResponse{Ended: h.sessions.End(r.Context())})
}

// EvictCache handles POST /api/cache/evict.
//
//	@Summary		Shrink the global cache to a share of its size, least recently used first
//	@Tags			cache
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EvictRequest	false	"Share to keep"
//	@Success		200		{object}	EvictResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cache/evict [post]
func (h *Handler) EvictCache(w http.ResponseWriter, r *http.Request) {
	var req EvictRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	fraction := req.Fraction
	if fraction == 0 {
		fraction = h.fraction
	}
	n := h.cache.EvictForMemoryPressure(fraction)
	slog.Info("cache: evicted on request", slog.Int("entries", n))
	writeJSON(w, http.StatusOK, EvictResponse{Evicted: n})
}

func directiveResponse(out *engine.Outcome) DirectiveResponse {
	resp := DirectiveResponse{
		Key:       out.Key,
		Display:   out.Display(),
		FromCache: out.FromCache,
		Mutations: out.Mutations,
		Views:     out.Views,
	}
	if out.Err != nil {
		e := out.Err.Encode()
		resp.Error = &e
		return resp
	}
	if v, err := value.Encode(out.Value); err == nil {
		resp.Value = &v
	}
	return resp
}
