package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
	"go.uber.org/zap"
)

// ExecuteAction performs a named action on link. Page content and, for
// YouTube links, the transcript are included as context when available.
func (a *Analyzer) ExecuteAction(ctx context.Context, link, action string) (*models.ActionResult, error) {
	link = strings.TrimSpace(link)
	target, err := ParseTargetURL(link)
	if err != nil {
		return nil, err
	}

	var transcriptContext string
	if videoID := VideoID(link); videoID != "" {
		if transcript := a.transcript(ctx, videoID); transcript != "" {
			transcriptContext = fmt.Sprintf("\nYouTube Video Transcript:\n%s\n\n", truncate(transcript, a.config.TranscriptCharLimit))
		} else {
			transcriptContext = "\nNote: This is a YouTube video but no transcript is available. " +
				"This could be due to auto-generated captions, private video, or no captions being available.\n"
		}
	}

	page, err := a.fetchPage(ctx, link, ActionProfile, a.config.ActionTimeout)
	if err != nil {
		a.logger.Info("page scrape failed, working from URL only", zap.String("link", link), zap.Error(err))
	}

	hasContent := err == nil && page.Text != ""
	var contextInfo string
	if hasContent {
		title := page.Title
		if title == "" {
			title = "Unknown"
		}
		description := page.Description
		if description == "" {
			description = "No description available"
		}
		contextInfo = fmt.Sprintf("\nPage Title: %s\nPage Description: %s\nPage Content: %s\n", title, description, page.Text)
	} else {
		contextInfo = fmt.Sprintf("\nNote: Unable to scrape page content. Working with URL analysis only.\nURL Structure: %s\nDomain: %s\n",
			link, target.Hostname())
	}

	var prompt strings.Builder
	prompt.WriteString("You are LinkMage, an AI assistant that performs intelligent actions on web content.\n\n")
	fmt.Fprintf(&prompt, "URL: %s\nAction to perform: %s\n\n", link, action)
	prompt.WriteString(transcriptContext)
	prompt.WriteString(contextInfo)
	prompt.WriteString(`
Based on the URL and available content, perform the requested action. Provide specific, actionable, and useful content.

Guidelines:
- Format your response with clear structure using bold headings and bullet points
- Use **Bold Headings** for main sections
- Use bullet points (•) for lists and key points
- Be practical and realistic about what can be determined
- If the URL suggests specific content (like GitHub repo, blog, product page), tailor your response accordingly
- If you're working with limited content, be honest about what you can and cannot determine
- For YouTube videos, use the transcript content when available to provide more accurate and detailed analysis

Generate real, practical output for this action with proper formatting:`)

	content, err := a.complete(ctx, groq.Request{
		Operation: "execute_action",
		System: "You are LinkMage, an AI assistant that creates practical, well-formatted content based on URLs and web content. " +
			"Always provide real, usable output without placeholders. Format content clearly without markdown syntax.",
		Prompt:      prompt.String(),
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("action generation failed: %w", err)
	}
	if content == "" {
		content = "No content generated"
	}

	return &models.ActionResult{
		Content:           content,
		URL:               link,
		Action:            action,
		HasScrapedContent: hasContent,
	}, nil
}
