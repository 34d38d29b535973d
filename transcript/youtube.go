package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultWatchURL  = "https://www.youtube.com/watch"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxWatchPage     = 8 * 1024 * 1024
)

var (
	captionTracksPattern = regexp.MustCompile(`"captionTracks"\s*:\s*\[`)
	unplayablePattern    = regexp.MustCompile(`"playabilityStatus"\s*:\s*\{\s*"status"\s*:\s*"(ERROR|UNPLAYABLE|LOGIN_REQUIRED)"`)
	spacePattern         = regexp.MustCompile(`\s+`)
)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type timedText struct {
	Texts []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

// Fetcher reads captions straight from YouTube: the watch page lists the
// caption tracks and each track is served as timedtext XML.
type Fetcher struct {
	httpClient *http.Client
	watchURL   string
	language   string
	logger     *zap.Logger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithWatchURL points the fetcher at a different watch page endpoint
func WithWatchURL(u string) FetcherOption {
	return func(f *Fetcher) { f.watchURL = u }
}

// WithLanguage sets the preferred caption language
func WithLanguage(lang string) FetcherOption {
	return func(f *Fetcher) { f.language = lang }
}

// WithFetcherHTTPClient replaces the HTTP client
func WithFetcherHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = hc }
}

// NewFetcher creates a YouTube caption fetcher
func NewFetcher(logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		watchURL: defaultWatchURL,
		language: "en",
		logger:   logger.Named("youtube"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Transcript returns the joined caption text of a video
func (f *Fetcher) Transcript(ctx context.Context, videoID string) (string, error) {
	segments, err := f.Segments(ctx, videoID)
	if err != nil {
		return "", err
	}
	return Join(segments), nil
}

// Segments returns the caption lines of a video in the preferred language,
// or of its first track when that language is missing.
func (f *Fetcher) Segments(ctx context.Context, videoID string) ([]Segment, error) {
	if !ValidVideoID(videoID) {
		return nil, ErrInvalidVideoID
	}

	tracks, err := f.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track := pickTrack(tracks, f.language)
	f.logger.Debug("fetching caption track",
		zap.String("video_id", videoID),
		zap.String("language", track.LanguageCode),
		zap.String("kind", track.Kind))

	body, status, err := f.get(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("timedtext returned HTTP %d", status)
	}

	segments, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNotAvailable
	}
	return segments, nil
}

func (f *Fetcher) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	watch, err := url.Parse(f.watchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid watch URL: %w", err)
	}
	q := watch.Query()
	q.Set("v", videoID)
	q.Set("hl", f.language)
	watch.RawQuery = q.Encode()

	body, status, err := f.get(ctx, watch.String())
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrVideoUnavailable
	case status != http.StatusOK:
		return nil, fmt.Errorf("watch page returned HTTP %d", status)
	}
	return parseCaptionTracks(string(body))
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", f.language+";q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("youtube request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWatchPage))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read youtube response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// parseCaptionTracks pulls the captionTracks array out of the player
// response embedded in a watch page.
func parseCaptionTracks(page string) ([]captionTrack, error) {
	loc := captionTracksPattern.FindStringIndex(page)
	if loc == nil {
		if unplayablePattern.MatchString(page) {
			return nil, ErrVideoUnavailable
		}
		return nil, ErrNotAvailable
	}

	var tracks []captionTrack
	dec := json.NewDecoder(strings.NewReader(page[loc[1]-1:]))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("failed to decode caption tracks: %w", err)
	}

	usable := tracks[:0]
	for _, t := range tracks {
		if t.BaseURL != "" {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNotAvailable
	}
	return usable, nil
}

// pickTrack prefers a manual track in lang, then any track in lang, then
// the first track.
func pickTrack(tracks []captionTrack, lang string) captionTrack {
	var auto *captionTrack
	for i, t := range tracks {
		if t.LanguageCode != lang && !strings.HasPrefix(t.LanguageCode, lang+"-") {
			continue
		}
		if t.Kind != "asr" {
			return t
		}
		if auto == nil {
			auto = &tracks[i]
		}
	}
	if auto != nil {
		return *auto
	}
	return tracks[0]
}

func parseTimedText(body []byte) ([]Segment, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse timedtext: %w", err)
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		// Captions arrive entity-encoded inside the XML text.
		text := strings.TrimSpace(spacePattern.ReplaceAllString(html.UnescapeString(t.Text), " "))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Text: text, Start: t.Start, Duration: t.Duration})
	}
	return segments, nil
}
