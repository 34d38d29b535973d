package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/app"
	"github.com/linkmage/analyzer/config"
	"github.com/linkmage/analyzer/db"
	"github.com/linkmage/analyzer/logging"
	"github.com/linkmage/analyzer/tracing"
	"github.com/linkmage/analyzer/transcript"
)

var version = "dev"

var (
	configPath  string
	port        int
	disableCORS bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "linkmage",
	Short:         "LinkMage link analysis service",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE:  runServe,
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Run the standalone transcript service",
	RunE:  runTranscript,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, conn *db.DB, logger *zap.Logger) error {
			return db.Migrate(ctx, conn.DB(), logger)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, conn *db.DB, logger *zap.Logger) error {
			return db.Rollback(ctx, conn.DB(), logger)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, conn *db.DB, _ *zap.Logger) error {
			statuses, err := db.GetMigrationStatus(ctx, conn.DB())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%3d  %-28s %s\n", s.Version, s.Name, state)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables override it)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Server port (overrides PORT)")
	serveCmd.Flags().BoolVar(&disableCORS, "disable-cors", false, "Disable CORS")
	transcriptCmd.Flags().IntVar(&port, "port", 0, "Service port (overrides TRANSCRIPT_PORT)")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, transcriptCmd, migrateCmd)
}

// setup loads configuration and builds the logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if disableCORS {
		cfg.Server.CORSEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func setupTracing(ctx context.Context, cfg *config.Config, serviceName string, logger *zap.Logger) func() {
	name := cfg.Tracing.ServiceName
	if serviceName != "" {
		name = serviceName
	}
	shutdown, err := tracing.Setup(ctx, tracing.Config{Endpoint: cfg.Tracing.Endpoint, ServiceName: name})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		return func() {}
	}
	if cfg.Tracing.Endpoint != "" {
		logger.Info("tracing initialized", zap.String("endpoint", cfg.Tracing.Endpoint))
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Error("error shutting down tracer", zap.Error(err))
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer setupTracing(ctx, cfg, "", logger)()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.RunDBStats(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("linkmage starting",
			zap.String("version", version),
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.SelectedStore()),
			zap.Bool("s3", cfg.UseS3()),
			zap.Bool("cors", cfg.Server.CORSEnabled),
			zap.String("model", cfg.Groq.Model),
		)
		errCh <- a.Server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func runTranscript(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if port > 0 {
		cfg.Transcript.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer setupTracing(ctx, cfg, cfg.Tracing.ServiceName+"-transcript", logger)()

	summarizer, err := app.NewAnalyzer(cfg, nil, logger)
	if err != nil {
		return err
	}
	fetcher := transcript.NewFetcher(logger, transcript.WithLanguage(cfg.Transcript.Language))
	service := transcript.NewService(fetcher, summarizer, logger)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Transcript.Port),
		Handler:      otelhttp.NewHandler(service.Handler(), "transcript"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("transcript service starting", zap.Int("port", cfg.Transcript.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// withDatabase opens the configured PostgreSQL database without running
// migrations and passes it to fn.
func withDatabase(ctx context.Context, fn func(context.Context, *db.DB, *zap.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}

	conn, err := db.New(ctx, db.Config{DSN: cfg.Database.URL}, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, conn, logger)
}
