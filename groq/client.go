package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-70b-8192"

	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 2
	defaultBaseBackoff = 500 * time.Millisecond
	defaultRateLimit   = 5.0
	defaultBurst       = 10
)

var (
	// ErrRateLimited is returned when the API keeps answering 429 after retries.
	ErrRateLimited = errors.New("groq: rate limited")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("groq: service unavailable")
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("groq: API key is not configured")
)

// Config contains client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	RateLimit   float64 // Requests per second
	Burst       int
}

// Request is a single chat completion
type Request struct {
	Operation   string // Used for metrics and logs only
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Observer receives the outcome of every completion.
type Observer func(operation, outcome string, elapsed time.Duration)

// Option configures a Client
type Option func(*Client)

// WithObserver registers an observer for completion outcomes.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to the Groq OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	maxRetries  int
	baseBackoff time.Duration
	observe     Observer
	logger      *zap.Logger
}

// NewClient creates a client. A zero Config field falls back to its default.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		logger:      logger.Named("groq"),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "groq",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Caller cancellations and rejected requests say nothing about
		// upstream health.
		IsSuccessful: func(err error) bool {
			var reqErr *RequestError
			return err == nil || errors.Is(err, context.Canceled) || errors.As(err, &reqErr)
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one chat completion and returns the trimmed reply text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, req)
	if c.observe != nil {
		c.observe(req.Operation, outcome(err), time.Since(start))
	}
	if err != nil {
		c.logger.Warn("completion failed",
			zap.String("operation", req.Operation),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}
	return text, err
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.completeWithRetry(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) completeWithRetry(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	body := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.doRequest(ctx, body)
		if err == nil {
			return text, nil
		}

		lastErr = err
		var re *retryableError
		if !errors.As(err, &re) {
			return "", err
		}
	}

	var re *retryableError
	if errors.As(lastErr, &re) && re.status == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %v", ErrRateLimited, lastErr)
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, body chatRequest) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{status: resp.StatusCode, err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{status: resp.StatusCode, err: fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(string(data), 200))}
	}
	if resp.StatusCode != http.StatusOK {
		reqErr := &RequestError{Status: resp.StatusCode, Message: truncate(string(data), 200)}
		var errResp errorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
			reqErr.Message = errResp.Error.Message
		}
		return "", reqErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// RequestError is a non-retryable rejection of a request, such as a 400 for
// an oversized prompt or a 401 for a bad key.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

type retryableError struct {
	status int
	err    error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
