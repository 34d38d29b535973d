package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/linkmage/analyzer"
	"github.com/linkmage/analyzer/models"
)

// AnalyzeLinkRequest represents an analyze-link request
type AnalyzeLinkRequest struct {
	Link                   string `json:"link"`
	ActionSet              int    `json:"actionSet"`
	ManualType             string `json:"manualType"`
	GenerateDynamicActions bool   `json:"generateDynamicActions"`
}

func (s *Server) handleAnalyzeLink(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeLinkRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Link) == "" {
		respondError(w, http.StatusBadRequest, "Link is required")
		return
	}

	result, err := s.analyzer.AnalyzeLink(r.Context(), analyzer.AnalyzeLinkInput{
		Link:                   req.Link,
		ActionSet:              req.ActionSet,
		ManualType:             req.ManualType,
		GenerateDynamicActions: req.GenerateDynamicActions,
	})
	if err != nil {
		s.logger.Error("analyze-link failed", zap.String("link", req.Link), zap.Error(err))
		respondAPIError(w, &APIError{Status: http.StatusInternalServerError, Err: "Analysis failed", Code: CodeInternal, Message: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ExecuteActionRequest represents an execute-action request
type ExecuteActionRequest struct {
	Link   string `json:"link"`
	Action string `json:"action"`
}

func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	var req ExecuteActionRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Link) == "" || strings.TrimSpace(req.Action) == "" {
		respondError(w, http.StatusBadRequest, "Link and action are required")
		return
	}

	result, err := s.analyzer.ExecuteAction(r.Context(), req.Link, req.Action)
	if errors.Is(err, analyzer.ErrInvalidURL) {
		respondError(w, http.StatusBadRequest, "Invalid URL provided")
		return
	}
	if err != nil {
		respondAPIError(w, llmError(err, "Action execution failed"))
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// URLRequest is a request naming a single page
type URLRequest struct {
	URL     string `json:"url"`
	Archive bool   `json:"archive"`
}

func (s *Server) handleFetchURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, "Missing url")
		return
	}

	content, err := s.analyzer.FetchURL(r.Context(), req.URL)
	if err != nil {
		s.logger.Info("fetch-url failed", zap.String("url", req.URL), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":    "Content extraction failed",
			"details":  err.Error(),
			"fallback": analyzer.FetchFallback(),
		})
		return
	}

	respondJSON(w, http.StatusOK, content)
}

func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, "Missing url")
		return
	}

	actions, err := s.analyzer.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		respondAPIError(w, llmError(err, "Action suggestion failed"))
		return
	}

	respondJSON(w, http.StatusOK, actions)
}

// PerformActionRequest represents a perform-action request
type PerformActionRequest struct {
	Type    string               `json:"type"`
	Purpose string               `json:"purpose"`
	Content string               `json:"content"`
	URL     string               `json:"url"`
	Action  *models.PromptAction `json:"action"`
}

func (s *Server) handlePerformAction(w http.ResponseWriter, r *http.Request) {
	var req PerformActionRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if req.Action == nil || strings.TrimSpace(req.Action.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "Missing action or prompt")
		return
	}

	result, err := s.analyzer.PerformAction(r.Context(), analyzer.PerformActionInput{
		Type:    req.Type,
		Purpose: req.Purpose,
		Content: req.Content,
		URL:     req.URL,
		Action:  *req.Action,
	})
	if err != nil {
		respondAPIError(w, llmError(err, "AI request failed"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"result": result})
}

// GenerateActionsRequest represents a generate-actions request
type GenerateActionsRequest struct {
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

func (s *Server) handleGenerateActions(w http.ResponseWriter, r *http.Request) {
	var req GenerateActionsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "Missing type or content")
		return
	}

	actions, err := s.analyzer.GenerateActions(r.Context(), analyzer.GenerateActionsInput{
		Type:    req.Type,
		Purpose: req.Purpose,
		Content: req.Content,
		URL:     req.URL,
	})
	var parseErr *analyzer.ParseError
	if errors.As(err, &parseErr) {
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to parse AI response",
			"details": parseErr.Raw,
		})
		return
	}
	if err != nil {
		respondAPIError(w, llmError(err, "AI request failed"))
		return
	}

	respondJSON(w, http.StatusOK, actions)
}

func (s *Server) handleScrapeContent(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	page, err := s.analyzer.ScrapeContent(r.Context(), req.URL)
	if err != nil {
		var statusErr *analyzer.StatusError
		switch {
		case errors.Is(err, analyzer.ErrInvalidURL):
			respondError(w, http.StatusBadRequest, "Invalid URL provided")
		case errors.As(err, &statusErr):
			respondAPIError(w, &APIError{
				Status: http.StatusInternalServerError,
				Err:    "Failed to fetch URL: " + statusErr.Error(),
				Code:   CodeUpstream,
			})
		default:
			respondAPIError(w, &APIError{Status: http.StatusInternalServerError, Err: err.Error(), Code: CodeUpstream})
		}
		return
	}

	if req.Archive {
		if s.blob == nil {
			s.logger.Warn("archive requested but no storage is configured", zap.String("url", req.URL))
		} else if key, err := s.archive(r.Context(), page); err != nil {
			s.logger.Error("failed to archive snapshot", zap.String("url", req.URL), zap.Error(err))
		} else {
			page.Snapshot = key
		}
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleSummarizeArticle(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, "Missing URL in request body")
		return
	}

	summary, err := s.analyzer.SummarizeArticle(r.Context(), req.URL)
	switch {
	case errors.Is(err, analyzer.ErrInvalidURL):
		respondError(w, http.StatusBadRequest, "Invalid URL provided")
		return
	case err != nil:
		respondAPIError(w, llmError(err, "Failed to scrape and summarize"))
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
