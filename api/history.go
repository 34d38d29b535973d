package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/models"
)

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	entries, err := s.store.ListHistory(r.Context(), uid)
	if err != nil {
		s.logger.Error("failed to list history", zap.String("user_id", uid), zap.Error(err))
		respondAPIError(w, classifyStoreError(err, "History entry"))
		return
	}
	if entries == nil {
		entries = []models.LinkHistory{}
	}

	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	entry, err := s.store.GetHistory(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, classifyStoreError(err, "History entry"))
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	var in models.LinkHistoryInput
	if apiErr := decodeJSON(w, r, &in); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	in.Link = strings.TrimSpace(in.Link)
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		respondAPIError(w, validationFailure(err))
		return
	}

	entry, err := s.store.AddHistory(r.Context(), uid, in)
	if err != nil {
		s.logger.Error("failed to add history", zap.String("user_id", uid), zap.Error(err))
		respondAPIError(w, classifyStoreError(err, "History entry"))
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	if err := s.store.DeleteHistory(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		respondAPIError(w, classifyStoreError(err, "History entry"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
