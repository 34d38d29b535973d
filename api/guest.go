package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/guest"
	"github.com/linkmage/analyzer/models"
)

// GuestNoteRequest is the body of POST /api/guest_notes
type GuestNoteRequest struct {
	Title   string `json:"title" validate:"max=255"`
	Content string `json:"content" validate:"max=10000"`
}

// GuestNoteUpdate is the body of PUT /api/guest_notes/{id}
type GuestNoteUpdate struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content" validate:"omitempty,max=10000"`
}

func guestID(r *http.Request) (string, *APIError) {
	id := strings.TrimSpace(r.URL.Query().Get("guest_id"))
	if id == "" {
		return "", validationError("Missing guest_id", "guest_id is required")
	}
	if !guest.ValidID(id) {
		return "", validationError("Invalid guest_id", "guest_id must look like guest_<millis>_<suffix>")
	}
	return id, nil
}

func (s *Server) guestError(err error) *APIError {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return notFoundError("Note")
	case errors.Is(err, guest.ErrInvalidGuestID):
		return validationError("Invalid guest_id", err.Error())
	}
	s.logger.Error("guest note storage failed", zap.Error(err))
	return &APIError{Status: http.StatusInternalServerError, Err: "Storage error", Code: CodeInternal, Message: err.Error()}
}

func (s *Server) handleListGuestNotes(w http.ResponseWriter, r *http.Request) {
	gid, apiErr := guestID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	notes, err := s.guests.List(r.Context(), gid)
	if err != nil {
		respondAPIError(w, s.guestError(err))
		return
	}

	respondJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateGuestNote(w http.ResponseWriter, r *http.Request) {
	gid, apiErr := guestID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	var req GuestNoteRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondAPIError(w, validationFailure(err))
		return
	}

	note, err := s.guests.Save(r.Context(), gid, req.Title, req.Content)
	if err != nil {
		respondAPIError(w, s.guestError(err))
		return
	}

	respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleUpdateGuestNote(w http.ResponseWriter, r *http.Request) {
	gid, apiErr := guestID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	var req GuestNoteUpdate
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondAPIError(w, validationFailure(err))
		return
	}

	note, err := s.guests.Update(r.Context(), gid, chi.URLParam(r, "id"), guest.Update{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		respondAPIError(w, s.guestError(err))
		return
	}

	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteGuestNote(w http.ResponseWriter, r *http.Request) {
	gid, apiErr := guestID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	if err := s.guests.Delete(r.Context(), gid, chi.URLParam(r, "id")); err != nil {
		respondAPIError(w, s.guestError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearGuestNotes(w http.ResponseWriter, r *http.Request) {
	gid, apiErr := guestID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	if err := s.guests.Clear(r.Context(), gid); err != nil {
		respondAPIError(w, s.guestError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
