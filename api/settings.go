package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/linkmage/analyzer/mailer"
)

// SettingsRequest is the body of PUT /api/user_settings
type SettingsRequest struct {
	NotificationsEnabled *bool `json:"notifications_enabled"`
}

// ProfileRequest is the body of PUT /api/profile
type ProfileRequest struct {
	FullName string `json:"full_name" validate:"max=255"`
}

// SendUpdatesRequest is the body of POST /api/send-updates
type SendUpdatesRequest struct {
	Message string `json:"message" validate:"required"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	settings, err := s.store.GetSettings(r.Context(), uid)
	if err != nil {
		respondAPIError(w, classifyStoreError(err, "Settings"))
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	var req SettingsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if req.NotificationsEnabled == nil {
		respondAPIError(w, validationError("Missing notifications_enabled", "notifications_enabled is required"))
		return
	}

	settings, err := s.store.SaveSettings(r.Context(), uid, *req.NotificationsEnabled)
	if err != nil {
		s.logger.Error("failed to save settings", zap.String("user_id", uid), zap.Error(err))
		respondAPIError(w, classifyStoreError(err, "Settings"))
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	profile, err := s.store.GetProfile(r.Context(), uid)
	if err != nil {
		respondAPIError(w, classifyStoreError(err, "Profile"))
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, apiErr := userID(r)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}

	var req ProfileRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		respondAPIError(w, validationFailure(err))
		return
	}

	profile, err := s.store.UpdateProfile(r.Context(), uid, req.FullName)
	if err != nil {
		respondAPIError(w, classifyStoreError(err, "Profile"))
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleSendUpdates mails message to every profile with notifications
// enabled. Any single failure fails the batch.
func (s *Server) handleSendUpdates(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		respondAPIError(w, unavailableError("Email delivery is not configured"))
		return
	}
	var req SendUpdatesRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		respondAPIError(w, validationFailure(err))
		return
	}

	profiles, err := s.store.NotificationRecipients(r.Context())
	if err != nil {
		s.logger.Error("failed to load recipients", zap.Error(err))
		respondAPIError(w, classifyStoreError(err, "Recipients"))
		return
	}

	sent, err := s.notifier.Notify(r.Context(), profiles, req.Message)
	if err != nil {
		s.logger.Error("failed to send updates", zap.Int("recipients", len(profiles)), zap.Error(err))
		apiErr := &APIError{Status: http.StatusInternalServerError, Err: "Failed to send updates", Code: CodeUpstream, Message: err.Error()}
		if errors.Is(err, mailer.ErrNotConfigured) {
			apiErr = unavailableError("Email delivery is not configured")
		}
		respondAPIError(w, apiErr)
		return
	}

	s.logger.Info("sent updates", zap.Int("sent", sent))
	respondJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
