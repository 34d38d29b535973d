package api

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/models"
	"github.com/linkmage/analyzer/slug"
	"github.com/linkmage/analyzer/storage"
)

var snapshotTemplate = template.Must(template.New("snapshot").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="description" content="{{.Description}}">
{{with .Author}}<meta name="author" content="{{.}}">
{{end}}{{with .Keywords}}<meta name="keywords" content="{{.}}">
{{end}}{{with .Published}}<meta property="article:published_time" content="{{.}}">
{{end}}</head>
<body>
<header>
<h1>{{.Title}}</h1>
<p><a href="{{.URL}}">{{.URL}}</a>{{with .SiteName}} ({{.}}){{end}}</p>
<p>Archived {{.Archived}}</p>
</header>
<main>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</main>
</body>
</html>
`))

type snapshotView struct {
	Title       string
	Description string
	URL         string
	Archived    string
	Author      string
	Keywords    string
	Published   string
	SiteName    string
	Paragraphs  []string
}

// archive renders page as a standalone HTML document and stores it under
// snapshots/YYYY/MM/<slug>.html, returning the key.
func (s *Server) archive(ctx context.Context, page *models.ScrapedPage) (string, error) {
	now := s.now().UTC()

	view := snapshotView{
		Title:       page.Title,
		Description: page.Description,
		URL:         page.URL,
		Archived:    now.Format("2006-01-02 15:04 MST"),
	}
	if m := page.Metadata; m != nil {
		view.Author = m.Author
		view.Keywords = strings.Join(m.Keywords, ", ")
		view.Published = m.PublishedDate
		view.SiteName = m.SiteName
	}
	for _, p := range strings.Split(page.Content, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			view.Paragraphs = append(view.Paragraphs, p)
		}
	}

	var buf bytes.Buffer
	if err := snapshotTemplate.Execute(&buf, view); err != nil {
		return "", err
	}

	key, err := storage.SaveContent(ctx, s.blob, slug.ForPage(page.Title, page.URL), buf.String(), now)
	if err != nil {
		return "", err
	}
	s.logger.Info("archived snapshot", zap.String("url", page.URL), zap.String("key", key))
	return key, nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	key := "snapshots/" + chi.URLParam(r, "*")

	data, err := s.blob.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidKey) {
			respondAPIError(w, notFoundError("Snapshot"))
			return
		}
		s.logger.Error("failed to read snapshot", zap.String("key", key), zap.Error(err))
		respondAPIError(w, &APIError{Status: http.StatusInternalServerError, Err: "Failed to read snapshot", Code: CodeInternal})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
