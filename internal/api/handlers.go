package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/noteservice"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// SearchNotes handles GET /api/notes.
//
//	@Summary		Search notes
//	@Description	Each q value may hold several space separated terms. Terms prefixed with ! exclude.
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		[]string	false	"Search terms"	collectionFormat(multi)
//	@Success		200	{object}	NotesResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	var terms []string
	for _, q := range r.URL.Query()["q"] {
		terms = append(terms, strings.Fields(q)...)
	}
	notes, err := h.svc.Find(r.Context(), terms)
	if err != nil {
		writeError(w, "search notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NotesResponse{Notes: toDTOs(notes)})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Save a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to save"
//	@Success		201		{object}	TimestampResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	var ts int64
	var err error
	if req.Timestamp == nil {
		ts, err = h.svc.Add(r.Context(), req.Text)
	} else {
		ts, err = h.svc.Save(r.Context(), *req.Timestamp, req.Text)
	}
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, TimestampResponse{Timestamp: ts})
}

// UpdateNote handles PUT /api/notes/{ts}.
//
//	@Summary		Replace a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			ts		path		int					true	"Current timestamp"
//	@Param			body	body		UpdateNoteRequest	true	"Replacement"
//	@Success		200		{object}	TimestampResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ts} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	oldTS, err := timestampParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var req UpdateNoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	newTS := oldTS
	if req.Timestamp != nil {
		newTS = *req.Timestamp
	}
	stored, err := h.svc.Update(r.Context(), oldTS, newTS, req.Text)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, TimestampResponse{Timestamp: stored})
}

// DeleteNote handles DELETE /api/notes/{ts}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			ts	path	int	true	"Timestamp"
//	@Success		204
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{ts} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	ts, err := timestampParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.svc.Delete(r.Context(), ts); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Words handles GET /api/words.
//
//	@Summary		Auto-completion vocabulary
//	@Tags			words
//	@Produce		json
//	@Success		200	{object}	WordsResponse
//	@Security		BearerAuth
//	@Router			/words [get]
func (h *Handler) Words(w http.ResponseWriter, r *http.Request) {
	words, err := h.svc.Words(r.Context())
	if err != nil {
		writeError(w, "list words", err)
		return
	}
	writeJSON(w, http.StatusOK, WordsResponse{Words: words})
}

func timestampParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "ts")
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}
	return ts, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", apperr.ErrInvalid)
	}
	return nil
}
