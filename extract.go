package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/linkmage/analyzer/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Profile describes how one call site pulls readable text out of a page.
type Profile struct {
	Strip     []string // Elements removed before extraction
	Selectors []string // Content containers tried in order
	MinLength int      // A container must exceed this many characters
	MaxLength int      // Character cap; longer text ends in "..."
}

var (
	// AnalyzeProfile feeds classification.
	AnalyzeProfile = Profile{
		Strip:     []string{"script", "style", "noscript", "nav", "header", "footer"},
		Selectors: []string{"article", "main", ".content", ".post-content", ".entry-content", "#content", ".main-content"},
		MinLength: 200,
		MaxLength: 8000,
	}

	// FetchProfile is the fallback behind readability for fetch-url.
	FetchProfile = Profile{
		Strip:     []string{"script", "style"},
		Selectors: []string{"main", "article", ".content", ".post-content", ".entry-content", "#content", ".main-content", "body"},
		MinLength: 100,
		MaxLength: 8000,
	}

	// ScrapeProfile backs scrape-content.
	ScrapeProfile = Profile{
		Strip: []string{"script", "style", "noscript", "iframe", "svg", "nav", "header", "footer", "aside"},
		Selectors: []string{"article", "main", ".content", ".post-content", ".entry-content", "#content",
			".main-content", ".article-content", ".post-body", ".entry-body"},
		MinLength: 200,
		MaxLength: 5000,
	}

	// ActionProfile supplies context when executing an action.
	ActionProfile = Profile{
		Strip:     []string{"script", "style", "nav", "header", "footer"},
		Selectors: []string{"article", "main", ".content", ".post-content", ".entry-content", "#content"},
		MinLength: 200,
		MaxLength: 3000,
	}
)

// StatusError reports a non-2xx response from a fetched page
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Page is the extracted view of a fetched document
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
	Metadata    models.PageMetadata
}

// FetchPage downloads rawURL and extracts it with profile
func (a *Analyzer) FetchPage(ctx context.Context, rawURL string, profile Profile) (*Page, error) {
	return a.fetchPage(ctx, rawURL, profile, a.config.HTTPTimeout)
}

func (a *Analyzer) fetchPage(ctx context.Context, rawURL string, profile Profile, timeout time.Duration) (*Page, error) {
	target, err := ParseTargetURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.fetch(ctx, target, timeout)
	if err != nil {
		return nil, err
	}

	return ParsePage(bytes.NewReader(body), target.String(), profile)
}

// fetch downloads a page with browser-like headers and returns its body
// decoded to UTF-8.
func (a *Analyzer) fetch(ctx context.Context, target *url.URL, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, a.config.MaxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return body, nil
}

// ParsePage parses an HTML document and extracts it with profile
func ParsePage(r io.Reader, pageURL string, profile Profile) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	root := doc.Get(0)
	metadata := extractMetadata(root)

	page := &Page{
		URL:         pageURL,
		Title:       extractTitle(root),
		Description: metadata.Description,
		Metadata:    metadata,
	}
	page.Text = profile.extract(doc)
	return page, nil
}

// extract strips noise elements and returns the first content container
// long enough to count, falling back to the whole body.
func (p Profile) extract(doc *goquery.Document) string {
	if len(p.Strip) > 0 {
		doc.Find(strings.Join(p.Strip, ", ")).Remove()
	}

	for _, selector := range p.Selectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		text := selectionText(sel)
		if len([]rune(text)) > p.MinLength {
			return truncate(text, p.MaxLength)
		}
	}

	return truncate(selectionText(doc.Find("body")), p.MaxLength)
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// selectionText joins the text nodes under sel with single spaces
func selectionText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		if text := extractTextFromNode(n); text != "" {
			parts = append(parts, text)
		}
	}
	return collapseWhitespace(strings.Join(parts, " "))
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// extractTextFromNode extracts all text content from a node and its
// children, skipping script and style bodies
func extractTextFromNode(n *html.Node) string {
	var parts []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(parts, " ")
}

// extractTitle extracts the page title from the HTML
// Priority: title tag > og:title > twitter:title > h1
func extractTitle(n *html.Node) string {
	var ogTitle, twitterTitle, h1Title, htmlTitle string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var property, name, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "property":
						property = strings.ToLower(attr.Val)
					case "name":
						name = strings.ToLower(attr.Val)
					case "content":
						content = attr.Val
					}
				}
				if property == "og:title" && ogTitle == "" {
					ogTitle = content
				} else if name == "twitter:title" && twitterTitle == "" {
					twitterTitle = content
				}
			case "h1":
				if h1Title == "" {
					h1Title = extractTextFromNode(n)
				}
			case "title":
				if htmlTitle == "" {
					htmlTitle = extractTextFromNode(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	for _, title := range []string{htmlTitle, ogTitle, twitterTitle, h1Title} {
		if t := collapseWhitespace(title); t != "" {
			return t
		}
	}
	return ""
}

// extractMetadata extracts page metadata from meta tags. The plain meta
// description wins over og:description and twitter:description.
func extractMetadata(n *html.Node) models.PageMetadata {
	metadata := models.PageMetadata{}
	var ogDescription, twitterDescription string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var name, property, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					name = strings.ToLower(attr.Val)
				case "property":
					property = strings.ToLower(attr.Val)
				case "content":
					content = strings.TrimSpace(attr.Val)
				}
			}

			if content == "" {
				return
			}

			switch {
			case name == "description":
				if metadata.Description == "" {
					metadata.Description = content
				}
			case property == "og:description":
				if ogDescription == "" {
					ogDescription = content
				}
			case name == "twitter:description":
				if twitterDescription == "" {
					twitterDescription = content
				}
			case name == "keywords":
				if len(metadata.Keywords) == 0 {
					for _, kw := range strings.Split(content, ",") {
						if kw = strings.TrimSpace(kw); kw != "" {
							metadata.Keywords = append(metadata.Keywords, kw)
						}
					}
				}
			case name == "author" || property == "article:author":
				if metadata.Author == "" {
					metadata.Author = content
				}
			case property == "article:published_time":
				if metadata.PublishedDate == "" {
					metadata.PublishedDate = content
				}
			case property == "og:type":
				if metadata.OGType == "" {
					metadata.OGType = content
				}
			case property == "og:site_name":
				if metadata.SiteName == "" {
					metadata.SiteName = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	if metadata.Description == "" {
		metadata.Description = ogDescription
	}
	if metadata.Description == "" {
		metadata.Description = twitterDescription
	}
	return metadata
}
