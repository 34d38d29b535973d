package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/models"
)

// noteInput decodes and validates a note body. Title and content are
// trimmed before the length checks.
func (s *Server) noteInput(w http.ResponseWriter, r *http.Request) (models.NoteInput, *APIError) {
	var in models.NoteInput
	if apiErr := decodeJSON(w, r, &in); apiErr != nil {
		return in, apiErr
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)

	if err := s.validate.Struct(in); err != nil {
		return in, validationFailure(err)
	}
	return in, nil
}

func noteID(r *http.Request) (string, *APIError) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", validationError("Missing note id", "A note id is required")
	}
	return id, nil
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	notes, err := s.store.ListNotes(r.Context(), uid)
	if err != nil {
		s.logger.Error("failed to list notes", zap.String("user_id", uid), zap.Error(err))
		respondAPIError(w, classifyStoreError(err, "Note"))
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}

	respondJSON(w, http.StatusOK, notes)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	id, apiErr := noteID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	note, err := s.store.GetNote(r.Context(), uid, id)
	if err != nil {
		respondAPIError(w, classifyStoreError(err, "Note"))
		return
	}

	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	in, apiErr := s.noteInput(w, r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	note, err := s.store.CreateNote(r.Context(), uid, in)
	if err != nil {
		s.logger.Error("failed to create note", zap.String("user_id", uid), zap.Error(err))
		respondAPIError(w, classifyStoreError(err, "Note"))
		return
	}

	respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	id, apiErr := noteID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	in, apiErr := s.noteInput(w, r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	note, err := s.store.UpdateNote(r.Context(), uid, id, in)
	if err != nil {
		respondAPIError(w, classifyStoreError(err, "Note"))
		return
	}

	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	id, apiErr := noteID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	if err := s.store.DeleteNote(r.Context(), uid, id); err != nil {
		respondAPIError(w, classifyStoreError(err, "Note"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
