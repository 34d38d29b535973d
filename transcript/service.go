package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/linkmage/analyzer/models"
	"go.uber.org/zap"
)

// SegmentSource returns the caption lines of a video. *Fetcher implements it.
type SegmentSource interface {
	Segments(ctx context.Context, videoID string) ([]Segment, error)
}

// Summarizer reads and summarizes an article page
type Summarizer interface {
	SummarizeArticle(ctx context.Context, url string) (*models.ArticleSummary, error)
}

var availableEndpoints = []string{
	"GET /health",
	"GET /getTranscript?videoId=VIDEO_ID",
	"POST /scrapeAndSummarize",
}

// Service is the standalone transcript HTTP service
type Service struct {
	segments   SegmentSource
	summarizer Summarizer
	logger     *zap.Logger
	router     chi.Router
}

// NewService builds the service. summarizer may be nil, in which case
// scrapeAndSummarize answers 503.
func NewService(segments SegmentSource, summarizer Summarizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		segments:   segments,
		summarizer: summarizer,
		logger:     logger.Named("transcript_service"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	for _, prefix := range []string{"/api", ""} {
		r.Get(prefix+"/health", s.handleHealth)
		r.Get(prefix+"/getTranscript", s.handleGetTranscript)
		r.Post(prefix+"/scrapeAndSummarize", s.handleScrapeAndSummarize)
	}
	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	s.router = r
	return s
}

// Handler returns the service's HTTP handler
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := strings.TrimSpace(r.URL.Query().Get("videoId"))
	if videoID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Missing videoId",
			"example": "/getTranscript?videoId=dQw4w9WgXcQ",
		})
		return
	}

	segments, err := s.segments.Segments(r.Context(), videoID)
	if err != nil {
		status, message := http.StatusInternalServerError, "Internal server error"
		switch {
		case errors.Is(err, ErrInvalidVideoID):
			status, message = http.StatusBadRequest, "Invalid videoId"
		case errors.Is(err, ErrNotAvailable):
			status, message = http.StatusNotFound, "Transcript not available"
		case errors.Is(err, ErrVideoUnavailable):
			status, message = http.StatusNotFound, "Video unavailable"
		default:
			s.logger.Error("transcript fetch failed", zap.String("video_id", videoID), zap.Error(err))
		}
		respondJSON(w, status, map[string]string{"error": message, "videoId": videoID})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"videoId":    videoID,
		"transcript": Join(segments),
		"segments":   len(segments),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

type summarizeRequest struct {
	URL string `json:"url"`
}

func (s *Service) handleScrapeAndSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing URL in request body"})
		return
	}
	if s.summarizer == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Summarization is not configured"})
		return
	}

	summary, err := s.summarizer.SummarizeArticle(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		s.logger.Error("scrape and summarize failed", zap.String("url", req.URL), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to scrape and summarize",
			"message": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"summary":  summary.Summary,
		"metadata": summary.Metadata,
	})
}

func (s *Service) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":              "Endpoint not found",
		"availableEndpoints": availableEndpoints,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
