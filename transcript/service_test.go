package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linkmage/analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSegments struct {
	segments []Segment
	err      error
}

func (f *fakeSegments) Segments(_ context.Context, _ string) ([]Segment, error) {
	return f.segments, f.err
}

type fakeSummarizer struct {
	summary *models.ArticleSummary
	err     error
	url     string
}

func (f *fakeSummarizer) SummarizeArticle(_ context.Context, url string) (*models.ArticleSummary, error) {
	f.url = url
	return f.summary, f.err
}

func serve(t *testing.T, svc *Service, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestServiceHealth(t *testing.T) {
	svc := NewService(&fakeSegments{}, nil, nil)

	for _, path := range []string{"/api/health", "/health"} {
		rec, body := serve(t, svc, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
	}
}

func TestServiceGetTranscript(t *testing.T) {
	svc := NewService(&fakeSegments{segments: []Segment{{Text: "hello"}, {Text: "world"}}}, nil, nil)

	for _, path := range []string{"/api/getTranscript?videoId=dQw4w9WgXcQ", "/getTranscript?videoId=dQw4w9WgXcQ"} {
		rec, body := serve(t, svc, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "dQw4w9WgXcQ", body["videoId"])
		assert.Equal(t, "hello world", body["transcript"])
		assert.Equal(t, float64(2), body["segments"])
		assert.NotEmpty(t, body["timestamp"])
	}
}

func TestServiceGetTranscriptErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing id", "/api/getTranscript", nil, http.StatusBadRequest, "Missing videoId"},
		{"invalid id", "/api/getTranscript?videoId=x", ErrInvalidVideoID, http.StatusBadRequest, "Invalid videoId"},
		{"no captions", "/api/getTranscript?videoId=x", ErrNotAvailable, http.StatusNotFound, "Transcript not available"},
		{"unavailable", "/api/getTranscript?videoId=x", ErrVideoUnavailable, http.StatusNotFound, "Video unavailable"},
		{"other", "/api/getTranscript?videoId=x", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeSegments{err: tt.err}, nil, nil)
			rec, body := serve(t, svc, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestServiceScrapeAndSummarize(t *testing.T) {
	summarizer := &fakeSummarizer{summary: &models.ArticleSummary{
		Summary:  "**Overview**",
		Metadata: models.ArticleMetadata{Title: "Post", Excerpt: "Short", LeadImageURL: "https://example.com/a.png"},
	}}
	svc := NewService(&fakeSegments{}, summarizer, nil)

	rec, body := serve(t, svc, http.MethodPost, "/api/scrapeAndSummarize", `{"url":" https://example.com/post "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "**Overview**", body["summary"])
	assert.Equal(t, "https://example.com/post", summarizer.url)

	metadata, ok := body["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a.png", metadata["lead_image_url"])
}

func TestServiceScrapeAndSummarizeErrors(t *testing.T) {
	svc := NewService(&fakeSegments{}, &fakeSummarizer{err: errors.New("upstream down")}, nil)

	rec, body := serve(t, svc, http.MethodPost, "/api/scrapeAndSummarize", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing URL in request body", body["error"])

	rec, body = serve(t, svc, http.MethodPost, "/api/scrapeAndSummarize", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to scrape and summarize", body["error"])
	assert.Equal(t, "upstream down", body["message"])

	rec, _ = serve(t, NewService(&fakeSegments{}, nil, nil), http.MethodPost, "/scrapeAndSummarize", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServiceUnknownRoute(t *testing.T) {
	svc := NewService(&fakeSegments{}, nil, nil)

	for _, tt := range []struct{ method, path string }{
		{http.MethodGet, "/api/nope"},
		{http.MethodDelete, "/api/getTranscript"},
	} {
		rec, body := serve(t, svc, tt.method, tt.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Endpoint not found", body["error"])
		assert.Len(t, body["availableEndpoints"], 3)
	}
}
