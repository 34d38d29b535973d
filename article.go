package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
	"go.uber.org/zap"
)

const articleCharLimit = 7000

// articleProfile reads the whole body when readability comes up short.
var articleProfile = Profile{Strip: []string{"script", "style", "noscript"}}

// SummarizeArticle reads an article with readability, falling back to the
// page body, and asks the model for a structured overview.
func (a *Analyzer) SummarizeArticle(ctx context.Context, rawURL string) (*models.ArticleSummary, error) {
	target, err := ParseTargetURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.fetch(ctx, target, a.config.HTTPTimeout)
	if err != nil {
		return nil, err
	}

	var content string
	meta := models.ArticleMetadata{}
	if article, err := readability.FromReader(bytes.NewReader(body), target); err == nil {
		content = collapseWhitespace(article.TextContent)
		meta.Title = strings.TrimSpace(article.Title)
		meta.Excerpt = strings.TrimSpace(article.Excerpt)
		meta.LeadImageURL = article.Image
	}

	if len([]rune(content)) < 200 {
		a.logger.Debug("readability content too short, reading page body", zap.String("url", rawURL))
		page, err := ParsePage(bytes.NewReader(body), target.String(), articleProfile)
		if err != nil {
			return nil, err
		}
		if meta.Title == "" {
			meta.Title = page.Title
		}
		if meta.Excerpt == "" {
			meta.Excerpt = page.Description
		}
		content = page.Text
	}
	content = prefix(content, articleCharLimit)

	prompt := fmt.Sprintf("You are an expert summarizer. Given this article, generate a useful summary:\n\n"+
		"Title: %s\nExcerpt: %s\n\nContent:\n%s\n\n"+
		"Respond with the following structure:\n\n**Overview**\n- Topic summary\n\n**Key Points**\n- Main insights\n\n**Relevance**\n- Who should read this and why",
		meta.Title, meta.Excerpt, content)

	summary, err := a.complete(ctx, groq.Request{
		Operation:   "summarize_article",
		System:      "Respond only with the summary. No extra commentary.",
		Prompt:      prompt,
		Temperature: 0.5,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("article summary failed: %w", err)
	}
	if summary == "" {
		summary = "Summary unavailable"
	}

	return &models.ArticleSummary{Summary: summary, Metadata: meta}, nil
}
