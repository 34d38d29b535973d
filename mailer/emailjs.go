// Package mailer sends update emails through the EmailJS REST API.
package mailer

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.emailjs.com"
	sendPath       = "/api/v1.0/email/send"
	defaultTimeout = 15 * time.Second
)

// ErrNotConfigured is returned by Send when the EmailJS ids are missing
var ErrNotConfigured = errors.New("mailer: EmailJS is not configured")

// Config contains EmailJS credentials
type Config struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	BaseURL    string
	Timeout    time.Duration
}

// Recipient is one addressee of an update email
type Recipient struct {
	Email string
	Name  string
}

// Client posts single emails to EmailJS
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// NewClient creates an EmailJS client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("mailer"),
	}
}

// Configured reports whether service, template and public key are set
func (c *Client) Configured() bool {
	return c.cfg.ServiceID != "" && c.cfg.TemplateID != "" && c.cfg.PublicKey != ""
}

// Send delivers message to one recipient using the configured template.
// The template receives to_email, to_name and message.
func (c *Client) Send(ctx context.Context, to Recipient, message string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	name := to.Name
	if name == "" {
		name = to.Email
	}
	payload := sendRequest{
		ServiceID:   c.cfg.ServiceID,
		TemplateID:  c.cfg.TemplateID,
		UserID:      c.cfg.PublicKey,
		AccessToken: c.cfg.PrivateKey,
		TemplateParams: map[string]string{
			"to_email": to.Email,
			"to_name":  name,
			"message":  message,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to.Email, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("emailjs returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("email sent", zap.String("to", to.Email))
	return nil
}
