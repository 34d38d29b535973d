package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer"
	"github.com/linkmage/analyzer/guest"
	"github.com/linkmage/analyzer/metrics"
	"github.com/linkmage/analyzer/storage"
)

const maxBodyBytes = 1 << 20

// Server represents the API server
type Server struct {
	config   Config
	analyzer *analyzer.Analyzer
	store    Store
	blob     storage.Blob
	guests   *guest.Store
	notifier Notifier
	auth     Authenticator
	metrics  *metrics.Metrics
	validate *validator.Validate
	logger   *zap.Logger
	router   *chi.Mux
	handler  http.Handler
	server   *http.Server
	now      func() time.Time
}

// Config contains server configuration
type Config struct {
	Addr           string
	CORSEnabled    bool
	RequireAuth    bool
	RequestTimeout time.Duration
	StoreName      string // Reported by /health
	GroqConfigured bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":7000",
		CORSEnabled:    true,
		RequestTimeout: 60 * time.Second,
		StoreName:      "none",
	}
}

// Deps are the components the handlers use. Analyzer is required; a nil
// Store disables the user data routes, a nil Blob disables guest notes and
// snapshots, and a nil Notifier disables send-updates.
type Deps struct {
	Analyzer *analyzer.Analyzer
	Store    Store
	Blob     storage.Blob
	Notifier Notifier
	Auth     Authenticator
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewServer creates a new API server
func NewServer(config Config, deps Deps) (*Server, error) {
	if deps.Analyzer == nil {
		return nil, errors.New("api: analyzer is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New("linkmage")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if config.StoreName == "" {
		config.StoreName = "none"
	}

	s := &Server{
		config:   config,
		analyzer: deps.Analyzer,
		store:    deps.Store,
		blob:     deps.Blob,
		notifier: deps.Notifier,
		auth:     deps.Auth,
		metrics:  deps.Metrics,
		validate: newValidator(),
		logger:   deps.Logger.Named("api"),
		now:      time.Now,
	}
	if deps.Blob != nil {
		s.guests = guest.New(deps.Blob)
	}

	s.router = s.routes()
	s.handler = otelhttp.NewHandler(s.router, "linkmage",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.RequestTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the instrumented router, for serving outside Start
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the bare chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// routes sets up all API routes
func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(s.logRequests)
	r.Use(s.instrument)
	if s.config.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondAPIError(w, &APIError{Status: http.StatusNotFound, Err: "Endpoint not found", Code: CodeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondAPIError(w, &APIError{
			Status:  http.StatusMethodNotAllowed,
			Err:     "Method not allowed",
			Code:    CodeMethodNotAllowed,
			Message: fmt.Sprintf("%s is not supported for this endpoint", r.Method),
		})
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/analyze-link", s.handleAnalyzeLink)
		r.Post("/execute-action", s.handleExecuteAction)
		r.Post("/fetch-url", s.handleFetchURL)
		r.Post("/analyze-url", s.handleAnalyzeURL)
		r.Post("/perform-action", s.handlePerformAction)
		r.Post("/generate-actions", s.handleGenerateActions)
		r.Post("/scrape-content", s.handleScrapeContent)
		r.Post("/summarize-article", s.handleSummarizeArticle)

		r.Group(func(r chi.Router) {
			r.Use(s.requireBlob)
			r.Get("/snapshots/*", s.handleSnapshot)

			r.Get("/guest_notes", s.handleListGuestNotes)
			r.Post("/guest_notes", s.handleCreateGuestNote)
			r.Delete("/guest_notes", s.handleClearGuestNotes)
			r.Put("/guest_notes/{id}", s.handleUpdateGuestNote)
			r.Delete("/guest_notes/{id}", s.handleDeleteGuestNote)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireStore)
			r.Use(s.authenticate)

			r.Get("/ai_notes", s.handleListNotes)
			r.Post("/ai_notes", s.handleCreateNote)
			r.Get("/ai_notes/{id}", s.handleGetNote)
			r.Put("/ai_notes/{id}", s.handleUpdateNote)
			r.Delete("/ai_notes/{id}", s.handleDeleteNote)

			r.Get("/link_history", s.handleListHistory)
			r.Post("/link_history", s.handleAddHistory)
			r.Get("/link_history/{id}", s.handleGetHistory)
			r.Delete("/link_history/{id}", s.handleDeleteHistory)

			r.Get("/user_settings", s.handleGetSettings)
			r.Put("/user_settings", s.handleSaveSettings)

			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)

			r.Post("/send-updates", s.handleSendUpdates)
		})
	})

	return r
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.config.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("store health check failed", zap.Error(err))
			status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"time":           s.now().UTC(),
		"groqConfigured": s.config.GroqConfigured,
		"store":          s.config.StoreName,
	})
}
