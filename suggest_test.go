package analyzer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interfacesPage = `<html><head>
	<title>Understanding Go Interfaces</title>
	<meta name="description" content="How implicit interfaces work">
</head><body>
	<nav><a href="/">Home</a></nav>
	<main>
		<h1>Understanding Go Interfaces</h1>
		<p>Interfaces in Go are satisfied implicitly. A type implements an interface by implementing its methods, with no explicit declaration of intent.</p>
		<p>Small interfaces such as io.Reader and io.Writer compose well and make code easy to test with fakes.</p>
		<p>Accept interfaces and return concrete types so callers keep the flexibility to substitute their own implementations.</p>
	</main>
</body></html>`

func TestFetchURL(t *testing.T) {
	srv := servePage(t, http.StatusOK, interfacesPage)
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	content, err := a.FetchURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.NotEmpty(t, content.Title)
	assert.Contains(t, content.Text, "satisfied implicitly")
	assert.NotContains(t, content.Text, "\n")
	assert.LessOrEqual(t, len([]rune(content.Text)), FetchProfile.MaxLength+3)
}

func TestFetchURLEmptyPage(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<html><head></head><body></body></html>`)
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	content, err := a.FetchURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Web Page", content.Title)
	assert.Equal(t, "Content could not be extracted from this page.", content.Text)
}

func TestFetchURLErrors(t *testing.T) {
	srv := servePage(t, http.StatusBadGateway, "bad")
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	_, err := a.FetchURL(context.Background(), srv.URL)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)

	_, err = a.FetchURL(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidURL)

	fallback := FetchFallback()
	assert.Equal(t, "Web Page", fallback.Title)
	assert.Equal(t, "Content could not be extracted from this page.", fallback.Text)
}

func TestAnalyzeURL(t *testing.T) {
	srv := servePage(t, http.StatusOK, interfacesPage)
	llm := newFakeLLM()
	llm.replies["analyze_url"] = "```json\n[" +
		`{"title": "Explain Interfaces", "description": "Plain-language explanation", "prompt": "Explain Go interfaces simply"},` +
		`{"title": "Missing Prompt", "description": "Dropped"},` +
		`{"title": "Write Examples", "description": "Code samples", "prompt": "Write three interface examples"}` +
		"]\n```"
	a := newTestAnalyzer(t, llm, nil)

	actions, err := a.AnalyzeURL(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Len(t, actions, 2)
	assert.Equal(t, "Explain Interfaces", actions[0].Title)
	assert.Equal(t, "Write Examples", actions[1].Title)

	reqs := llm.calls("analyze_url")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "satisfied implicitly")
	assert.Equal(t, 512, reqs[0].MaxTokens)
}

func TestAnalyzeURLFallbacks(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		srv := servePage(t, http.StatusNotFound, "gone")
		llm := newFakeLLM()
		a := newTestAnalyzer(t, llm, nil)

		actions, err := a.AnalyzeURL(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, fetchFailedActions(), actions)
		assert.Zero(t, llm.total())
	})

	t.Run("thin content", func(t *testing.T) {
		srv := servePage(t, http.StatusOK, `<html><body></body></html>`)
		llm := newFakeLLM()
		a := newTestAnalyzer(t, llm, nil)

		actions, err := a.AnalyzeURL(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, thinContentActions(), actions)
		assert.Zero(t, llm.total())
	})

	t.Run("unparseable reply", func(t *testing.T) {
		srv := servePage(t, http.StatusOK, interfacesPage)
		llm := newFakeLLM()
		llm.replies["analyze_url"] = "Here are some ideas: read it, share it."
		a := newTestAnalyzer(t, llm, nil)

		actions, err := a.AnalyzeURL(context.Background(), srv.URL)
		require.NoError(t, err)
		require.Len(t, actions, 3)
		for _, action := range actions {
			assert.NotEmpty(t, action.Prompt)
		}
	})

	t.Run("llm error", func(t *testing.T) {
		srv := servePage(t, http.StatusOK, interfacesPage)
		llm := newFakeLLM()
		llm.errs["analyze_url"] = groq.ErrUnavailable
		a := newTestAnalyzer(t, llm, nil)

		_, err := a.AnalyzeURL(context.Background(), srv.URL)
		assert.ErrorIs(t, err, groq.ErrUnavailable)
	})
}

func TestContextualActions(t *testing.T) {
	assert.Equal(t, "Analyze Repository", contextualActions("golang/go", "https://github.com/golang/go")[0].Title)
	assert.Equal(t, "Analyze Repository", contextualActions("GitHub - tools", "https://example.com")[0].Title)
	assert.Equal(t, "Summarize Content", contextualActions("My Blog", "https://example.com")[0].Title)
	assert.Equal(t, "Summarize Content", contextualActions("An Article", "https://example.com")[0].Title)
	assert.Equal(t, "Analyze Content", contextualActions("Pricing", "https://example.com")[0].Title)
}

func TestPerformAction(t *testing.T) {
	llm := newFakeLLM()
	llm.replies["perform_action"] = "Interfaces let types plug in."
	a := newTestAnalyzer(t, llm, nil)

	result, err := a.PerformAction(context.Background(), PerformActionInput{
		Type:    "blog post",
		Purpose: "Teach interfaces",
		Content: strings.Repeat("Q", 3000),
		URL:     "https://example.com/interfaces",
		Action: models.PromptAction{
			Title:       "Explain Simply",
			Description: "Plain words",
			Prompt:      "Explain this to a beginner",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Interfaces let types plug in.", result)

	reqs := llm.calls("perform_action")
	require.Len(t, reqs, 1)
	assert.Equal(t, 2000, strings.Count(reqs[0].Prompt, "Q"))
	assert.Contains(t, reqs[0].Prompt, "Explain this to a beginner")
	assert.Equal(t, 1024, reqs[0].MaxTokens)

	llm.errs["perform_action"] = groq.ErrRateLimited
	_, err = a.PerformAction(context.Background(), PerformActionInput{})
	assert.ErrorIs(t, err, groq.ErrRateLimited)
}

func TestGenerateActions(t *testing.T) {
	llm := newFakeLLM()
	llm.replies["generate_actions"] = `[{"title": "Outline", "description": "Make an outline", "prompt": "Outline the page"}]`
	a := newTestAnalyzer(t, llm, nil)

	actions, err := a.GenerateActions(context.Background(), GenerateActionsInput{
		Type:    "documentation",
		Content: strings.Repeat("Q", 1500),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.PromptAction{{Title: "Outline", Description: "Make an outline", Prompt: "Outline the page"}}, actions)
	assert.Equal(t, 1000, strings.Count(llm.calls("generate_actions")[0].Prompt, "Q"))
}

func TestGenerateActionsParseError(t *testing.T) {
	llm := newFakeLLM()
	llm.replies["generate_actions"] = "Sorry, I cannot help with that."
	a := newTestAnalyzer(t, llm, nil)

	_, err := a.GenerateActions(context.Background(), GenerateActionsInput{Type: "blog post"})
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "Sorry, I cannot help with that.", parseErr.Raw)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestScrapeContent(t *testing.T) {
	srv := servePage(t, http.StatusOK, interfacesPage)
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	page, err := a.ScrapeContent(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Understanding Go Interfaces", page.Title)
	assert.Equal(t, "How implicit interfaces work", page.Description)
	assert.Contains(t, page.Content, "satisfied implicitly")
	assert.NotContains(t, page.Content, "Home")
	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, "success", page.Status)
}

func TestScrapeContentDefaults(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<html><body></body></html>`)
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	page, err := a.ScrapeContent(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "No title found", page.Title)
	assert.Equal(t, "No description available", page.Description)
	assert.Equal(t, "Content could not be extracted from this page.", page.Content)
	assert.Nil(t, page.Metadata)
}

func TestScrapeContentMetadata(t *testing.T) {
	srv := servePage(t, http.StatusOK, `<html><head><title>Release notes</title>
		<meta name="author" content="Sam Writer">
		<meta name="keywords" content="go, release">
		<meta property="og:site_name" content="Example Blog">
	</head><body><p>Go 1.24 is out.</p></body></html>`)
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	page, err := a.ScrapeContent(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, page.Metadata)
	assert.Equal(t, "Sam Writer", page.Metadata.Author)
	assert.Equal(t, []string{"go", "release"}, page.Metadata.Keywords)
	assert.Equal(t, "Example Blog", page.Metadata.SiteName)
}

func TestScrapeContentStatusError(t *testing.T) {
	srv := servePage(t, http.StatusServiceUnavailable, "down")
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	_, err := a.ScrapeContent(context.Background(), srv.URL)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "HTTP 503", statusErr.Error())
}
