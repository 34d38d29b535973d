// Package app assembles the service from configuration.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/linkmage/analyzer"
	"github.com/linkmage/analyzer/api"
	"github.com/linkmage/analyzer/config"
	"github.com/linkmage/analyzer/db"
	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/mailer"
	"github.com/linkmage/analyzer/metrics"
	"github.com/linkmage/analyzer/storage"
	"github.com/linkmage/analyzer/supastore"
	"github.com/linkmage/analyzer/transcript"
)

// App holds the wired components of the API service
type App struct {
	Config   *config.Config
	Server   *api.Server
	Analyzer *analyzer.Analyzer
	Metrics  *metrics.Metrics
	DB       *db.DB // Set only for the direct Postgres store

	logger *zap.Logger
}

// NewAnalyzer builds the analyzer with its Groq client and transcript
// source. A configured transcript URL uses the remote service; otherwise
// captions are fetched in process.
func NewAnalyzer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*analyzer.Analyzer, error) {
	var opts []groq.Option
	if m != nil {
		opts = append(opts, groq.WithObserver(m.ObserveLLM))
	}
	llm := groq.NewClient(groq.Config{
		APIKey:     cfg.Groq.APIKey,
		BaseURL:    cfg.Groq.BaseURL,
		Model:      cfg.Groq.Model,
		Timeout:    cfg.Groq.Timeout,
		MaxRetries: cfg.Groq.MaxRetries,
		RateLimit:  cfg.Groq.RateLimit,
		Burst:      cfg.Groq.Burst,
	}, logger, opts...)
	if cfg.Groq.APIKey == "" {
		logger.Warn("GROQ_API_KEY is not set, AI features will fail")
	}

	var transcripts analyzer.TranscriptSource
	if cfg.Transcript.APIURL != "" {
		transcripts = transcript.NewClient(cfg.Transcript.APIURL, logger)
	} else {
		transcripts = transcript.NewFetcher(logger, transcript.WithLanguage(cfg.Transcript.Language))
	}

	aCfg := analyzer.DefaultConfig()
	aCfg.HTTPTimeout = cfg.Analyzer.HTTPTimeout
	aCfg.ActionTimeout = cfg.Analyzer.ActionTimeout
	aCfg.MaxConcurrentLLM = cfg.Analyzer.MaxConcurrentLLM
	return analyzer.New(aCfg, llm, transcripts, logger)
}

// New wires the API server. Components without configuration are left out
// and their routes answer 503.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	m := metrics.New("linkmage")

	a, err := NewAnalyzer(cfg, m, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	app := &App{Config: cfg, Analyzer: a, Metrics: m, logger: logger}

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	blob, err := openBlob(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var notifier api.Notifier
	emailClient := mailer.NewClient(mailer.Config{
		ServiceID:  cfg.EmailJS.ServiceID,
		TemplateID: cfg.EmailJS.TemplateID,
		PublicKey:  cfg.EmailJS.PublicKey,
		PrivateKey: cfg.EmailJS.PrivateKey,
	}, logger)
	if emailClient.Configured() {
		notifier = mailer.NewNotifier(emailClient, logger, mailer.WithSendObserver(m.ObserveEmail))
	} else {
		logger.Info("EmailJS is not configured, send-updates is disabled")
	}

	var auth api.Authenticator
	if cfg.Supabase.URL != "" && cfg.Supabase.AnonKey != "" {
		auth, err = api.NewSupabaseAuth(cfg.Supabase.URL, cfg.Supabase.AnonKey)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Server, err = api.NewServer(api.Config{
		Addr:           ":" + strconv.Itoa(cfg.Server.Port),
		CORSEnabled:    cfg.Server.CORSEnabled,
		RequireAuth:    cfg.Server.RequireAuth,
		RequestTimeout: cfg.Server.RequestTimeout,
		StoreName:      cfg.SelectedStore(),
		GroqConfigured: cfg.Groq.APIKey != "",
	}, api.Deps{
		Analyzer: a,
		Store:    store,
		Blob:     blob,
		Notifier: notifier,
		Auth:     auth,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return app, nil
}

// openStore connects the configured user data store, or returns nil
func (a *App) openStore(ctx context.Context) (api.Store, error) {
	switch a.Config.SelectedStore() {
	case config.StorePostgres:
		conn, err := db.New(ctx, db.Config{
			DSN:         a.Config.Database.URL,
			AutoMigrate: a.Config.Database.AutoMigrate,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.DB = conn
		a.logger.Info("using PostgreSQL store")
		return conn, nil
	case config.StoreSupabase:
		store, err := supastore.New(supastore.Config{
			URL: a.Config.Supabase.URL,
			Key: a.Config.Supabase.ServiceRoleKey,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase store: %w", err)
		}
		a.logger.Info("using Supabase store", zap.String("url", a.Config.Supabase.URL))
		return store, nil
	default:
		a.logger.Warn("no database configured, user data routes are disabled")
		return nil, nil
	}
}

func openBlob(ctx context.Context, cfg *config.Config) (storage.Blob, error) {
	if cfg.UseS3() {
		s3 := cfg.Storage.S3
		blob, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UsePathStyle:    s3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return blob, nil
	}

	blob, err := storage.New(storage.Config{BasePath: cfg.Storage.BasePath})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	return blob, nil
}

// RunDBStats publishes connection pool gauges until ctx is done. It returns
// at once without a direct database.
func (a *App) RunDBStats(ctx context.Context) {
	if a.DB == nil {
		return
	}
	interval := a.Config.Metrics.DBStatsInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		a.Metrics.UpdateDBStats(a.DB.DB())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the database connection
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	err := a.DB.Close()
	a.DB = nil
	return err
}
