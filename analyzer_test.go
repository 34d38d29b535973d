package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/linkmage/analyzer/groq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// fakeLLM answers completions by operation and records every request
type fakeLLM struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	reqs    []groq.Request
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{replies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeLLM) Complete(_ context.Context, req groq.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if err, ok := f.errs[req.Operation]; ok {
		return "", err
	}
	return f.replies[req.Operation], nil
}

func (f *fakeLLM) calls(operation string) []groq.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []groq.Request
	for _, r := range f.reqs {
		if r.Operation == operation {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeLLM) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeTranscripts struct {
	text string
	err  error
	ids  []string
}

func (f *fakeTranscripts) Transcript(_ context.Context, videoID string) (string, error) {
	f.ids = append(f.ids, videoID)
	return f.text, f.err
}

func newTestAnalyzer(t *testing.T, llm Completer, transcripts TranscriptSource) *Analyzer {
	t.Helper()
	a, err := New(DefaultConfig(), llm, transcripts, nil)
	require.NoError(t, err)
	return a
}

// servePage serves body as HTML with the given status on every path
func servePage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRequiresCompleter(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	a, err := New(Config{}, newFakeLLM(), nil, nil)
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.HTTPTimeout, a.config.HTTPTimeout)
	assert.Equal(t, defaults.ActionTimeout, a.config.ActionTimeout)
	assert.Equal(t, defaults.MaxPageBytes, a.config.MaxPageBytes)
	assert.Equal(t, defaults.UserAgent, a.config.UserAgent)
	assert.Equal(t, defaults.MaxConcurrentLLM, cap(a.llmSlots))
	assert.NotNil(t, a.Actions())
}

// The page client must carry trace context to fetched sites.
func TestHTTPClientUsesOtelTransport(t *testing.T) {
	a := newTestAnalyzer(t, newFakeLLM(), nil)
	_, ok := a.httpClient.Transport.(*otelhttp.Transport)
	assert.True(t, ok, "page fetches should go through otelhttp.Transport")
}

func TestParseTargetURL(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{"https://example.com/post", true},
		{"  http://example.com  ", true},
		{"ftp://example.com/file", false},
		{"example.com", false},
		{"https://", false},
		{"", false},
		{"http://[::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := ParseTargetURL(tt.raw)
			if tt.valid {
				require.NoError(t, err)
				assert.NotEmpty(t, u.Host)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "hel...", truncate("hello", 3))
	assert.Equal(t, "hello", truncate("hello", 0))
	assert.Equal(t, "héé...", truncate("hééllo", 3))
	assert.Equal(t, "hé", prefix("héllo", 2))
	assert.Equal(t, "hi", prefix("hi", 10))
}

func TestCompleteWaitsForSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentLLM = 1
	llm := newFakeLLM()
	a, err := New(cfg, llm, nil, nil)
	require.NoError(t, err)

	a.llmSlots <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = a.complete(ctx, groq.Request{Operation: "classify"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, llm.total())

	<-a.llmSlots
	_, err = a.complete(context.Background(), groq.Request{Operation: "classify"})
	assert.NoError(t, err)
	assert.Equal(t, 1, llm.total())
}
