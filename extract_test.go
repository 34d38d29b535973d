package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var articleText = strings.Repeat("Readable article sentence. ", 20)

func TestParsePagePrefersContentContainer(t *testing.T) {
	doc := `<html><head><title>Post</title></head><body>
		<nav>Home About Contact</nav>
		<header>Site header</header>
		<article><h2>Heading</h2><p>` + articleText + `</p><script>var x = 1;</script></article>
		<footer>Copyright</footer>
	</body></html>`

	page, err := ParsePage(strings.NewReader(doc), "https://example.com/post", AnalyzeProfile)
	require.NoError(t, err)

	assert.Equal(t, "Post", page.Title)
	assert.True(t, strings.HasPrefix(page.Text, "Heading Readable article sentence."))
	assert.NotContains(t, page.Text, "Home About")
	assert.NotContains(t, page.Text, "Copyright")
	assert.NotContains(t, page.Text, "var x")
}

func TestParsePageFallsBackToBody(t *testing.T) {
	doc := `<html><body>
		<nav>Menu</nav>
		<article>Too short</article>
		<div>Body paragraph one.</div>
		<div>Body   paragraph
		two.</div>
	</body></html>`

	page, err := ParsePage(strings.NewReader(doc), "https://example.com", AnalyzeProfile)
	require.NoError(t, err)

	assert.Equal(t, "Too short Body paragraph one. Body paragraph two.", page.Text)
}

func TestParsePageTruncates(t *testing.T) {
	doc := `<html><body><p>` + articleText + `</p></body></html>`
	profile := Profile{MaxLength: 20}

	page, err := ParsePage(strings.NewReader(doc), "https://example.com", profile)
	require.NoError(t, err)

	assert.Equal(t, "Readable article sen...", page.Text)
}

func TestExtractionProfilesDiffer(t *testing.T) {
	doc := `<html><body><aside>Sidebar links</aside><main>` + articleText + `</main></body></html>`

	scraped, err := ParsePage(strings.NewReader(doc), "https://example.com", ScrapeProfile)
	require.NoError(t, err)
	assert.NotContains(t, scraped.Text, "Sidebar")

	long := `<html><body><article>` + strings.Repeat("word ", 2000) + `</article></body></html>`
	for _, p := range []Profile{AnalyzeProfile, FetchProfile, ScrapeProfile, ActionProfile} {
		page, err := ParsePage(strings.NewReader(long), "https://example.com", p)
		require.NoError(t, err)
		assert.Equal(t, p.MaxLength+3, len([]rune(page.Text)))
		assert.True(t, strings.HasSuffix(page.Text, "..."))
	}
}

func TestExtractTitlePriority(t *testing.T) {
	tests := []struct {
		name string
		head string
		body string
		want string
	}{
		{
			name: "title tag wins",
			head: `<title>Title Tag</title><meta property="og:title" content="OG Title">`,
			body: `<h1>Heading</h1>`,
			want: "Title Tag",
		},
		{
			name: "og title",
			head: `<meta property="og:title" content="OG Title"><meta name="twitter:title" content="Twitter Title">`,
			body: `<h1>Heading</h1>`,
			want: "OG Title",
		},
		{
			name: "twitter title",
			head: `<meta name="twitter:title" content="Twitter Title">`,
			body: `<h1>Heading</h1>`,
			want: "Twitter Title",
		},
		{
			name: "h1",
			body: `<h1>  Main
				Heading </h1>`,
			want: "Main Heading",
		},
		{
			name: "none",
			body: `<p>text</p>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "<html><head>" + tt.head + "</head><body>" + tt.body + "</body></html>"
			page, err := ParsePage(strings.NewReader(doc), "https://example.com", AnalyzeProfile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Title)
		})
	}
}

func TestExtractMetadata(t *testing.T) {
	doc := `<html><head>
		<meta property="og:description" content="OG description">
		<meta name="description" content="Plain description">
		<meta name="keywords" content="go, links , ,ai">
		<meta name="author" content="Sam Writer">
		<meta property="article:published_time" content="2024-03-01T10:00:00Z">
		<meta property="og:type" content="article">
		<meta property="og:site_name" content="Example">
	</head><body></body></html>`

	page, err := ParsePage(strings.NewReader(doc), "https://example.com", AnalyzeProfile)
	require.NoError(t, err)

	assert.Equal(t, "Plain description", page.Description)
	assert.Equal(t, []string{"go", "links", "ai"}, page.Metadata.Keywords)
	assert.Equal(t, "Sam Writer", page.Metadata.Author)
	assert.Equal(t, "2024-03-01T10:00:00Z", page.Metadata.PublishedDate)
	assert.Equal(t, "article", page.Metadata.OGType)
	assert.Equal(t, "Example", page.Metadata.SiteName)
}

func TestExtractMetadataDescriptionFallbacks(t *testing.T) {
	doc := `<html><head><meta name="twitter:description" content="Twitter description"></head></html>`
	page, err := ParsePage(strings.NewReader(doc), "https://example.com", AnalyzeProfile)
	require.NoError(t, err)
	assert.Equal(t, "Twitter description", page.Description)

	doc = `<html><head><meta name="twitter:description" content="Twitter"><meta property="og:description" content="OG"></head></html>`
	page, err = ParsePage(strings.NewReader(doc), "https://example.com", AnalyzeProfile)
	require.NoError(t, err)
	assert.Equal(t, "OG", page.Description)
}

func TestFetchPageSendsBrowserHeaders(t *testing.T) {
	var userAgent, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Write([]byte(`<html><head><title>Hi</title></head><body>hello</body></html>`))
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, newFakeLLM(), nil)
	page, err := a.FetchPage(context.Background(), srv.URL, AnalyzeProfile)
	require.NoError(t, err)

	assert.Equal(t, "Hi", page.Title)
	assert.Equal(t, "hello", page.Text)
	assert.Contains(t, userAgent, "Mozilla/5.0")
	assert.Contains(t, accept, "text/html")
}

func TestFetchPageStatusError(t *testing.T) {
	srv := servePage(t, http.StatusNotFound, "missing")
	a := newTestAnalyzer(t, newFakeLLM(), nil)

	_, err := a.FetchPage(context.Background(), srv.URL, AnalyzeProfile)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "HTTP 404", statusErr.Error())
}

func TestFetchPageDecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html><head><title>Caf\xe9</title></head><body>cr\xe8me</body></html>"))
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, newFakeLLM(), nil)
	page, err := a.FetchPage(context.Background(), srv.URL, AnalyzeProfile)
	require.NoError(t, err)
	assert.Equal(t, "Café", page.Title)
	assert.Equal(t, "crème", page.Text)
}

func TestFetchPageRejectsInvalidURL(t *testing.T) {
	a := newTestAnalyzer(t, newFakeLLM(), nil)
	_, err := a.FetchPage(context.Background(), "mailto:someone@example.com", AnalyzeProfile)
	assert.ErrorIs(t, err, ErrInvalidURL)
}
