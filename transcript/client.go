package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client calls a remote transcript service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the transcript service at baseURL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("transcript_client"),
	}
}

type transcriptResponse struct {
	Success    bool   `json:"success"`
	VideoID    string `json:"videoId"`
	Transcript string `json:"transcript"`
	Segments   int    `json:"segments"`
	Error      string `json:"error,omitempty"`
}

// Transcript fetches the transcript of a video from the service.
// A 404 or an empty transcript is reported as ErrNotAvailable.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	endpoint := fmt.Sprintf("%s/getTranscript?videoId=%s", c.baseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotAvailable
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript service returned HTTP %d", resp.StatusCode)
	}

	var body transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %w", err)
	}
	if !body.Success || body.Transcript == "" {
		return "", ErrNotAvailable
	}

	c.logger.Debug("transcript retrieved",
		zap.String("video_id", videoID),
		zap.Int("chars", len(body.Transcript)),
		zap.Int("segments", body.Segments))
	return body.Transcript, nil
}
