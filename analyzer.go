package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linkmage/analyzer/groq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const systemJSONOnly = "You are LinkMage. Always respond with valid JSON only. No extra text or formatting."

// ErrInvalidURL is returned when a link is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid URL provided")

// Completer produces LLM text completions. *groq.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req groq.Request) (string, error)
}

// TranscriptSource returns the plain-text transcript of a YouTube video.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// Config contains analyzer configuration
type Config struct {
	HTTPTimeout         time.Duration // Page fetch timeout
	ActionTimeout       time.Duration // Page fetch timeout while executing an action
	MaxPageBytes        int64         // Maximum page body to read
	MaxConcurrentLLM    int           // Concurrent completions allowed
	UserAgent           string
	TranscriptCharLimit int // Transcript characters sent for summarization
}

// DefaultConfig returns default analyzer configuration
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:         15 * time.Second,
		ActionTimeout:       8 * time.Second,
		MaxPageBytes:        5 * 1024 * 1024,
		MaxConcurrentLLM:    3,
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		TranscriptCharLimit: 12000,
	}
}

// Analyzer classifies links and generates content for them
type Analyzer struct {
	config      Config
	httpClient  *http.Client
	llm         Completer
	transcripts TranscriptSource
	actions     *ActionTable
	llmSlots    chan struct{} // Semaphore limiting concurrent completions
	logger      *zap.Logger
}

// New creates an Analyzer. transcripts may be nil, in which case YouTube
// links are treated as having no transcript.
func New(config Config, llm Completer, transcripts TranscriptSource, logger *zap.Logger) (*Analyzer, error) {
	if llm == nil {
		return nil, errors.New("analyzer: completer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = defaults.HTTPTimeout
	}
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = defaults.ActionTimeout
	}
	if config.MaxPageBytes <= 0 {
		config.MaxPageBytes = defaults.MaxPageBytes
	}
	if config.MaxConcurrentLLM <= 0 {
		config.MaxConcurrentLLM = defaults.MaxConcurrentLLM
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.TranscriptCharLimit <= 0 {
		config.TranscriptCharLimit = defaults.TranscriptCharLimit
	}

	actions, err := LoadActionTable()
	if err != nil {
		return nil, fmt.Errorf("failed to load action table: %w", err)
	}

	return &Analyzer{
		config: config,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		llm:         llm,
		transcripts: transcripts,
		actions:     actions,
		llmSlots:    make(chan struct{}, config.MaxConcurrentLLM),
		logger:      logger.Named("analyzer"),
	}, nil
}

// Actions returns the action table used for selection
func (a *Analyzer) Actions() *ActionTable {
	return a.actions
}

// complete runs one completion while holding an LLM slot
func (a *Analyzer) complete(ctx context.Context, req groq.Request) (string, error) {
	select {
	case a.llmSlots <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for LLM slot: %w", ctx.Err())
	}
	defer func() { <-a.llmSlots }()

	return a.llm.Complete(ctx, req)
}

// ParseTargetURL validates that raw is an absolute http or https URL
func ParseTargetURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: URL must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return parsed, nil
}

// truncate caps s at n runes, marking the cut with "...". n <= 0 means no cap.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// prefix returns at most n runes of s without a marker
func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
