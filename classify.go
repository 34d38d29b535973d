package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
)

const (
	fallbackType    = "unknown"
	fallbackPurpose = "Web content ready for AI analysis"

	dynamicActionCount = 3
)

// contentTypes are the types the classifier may answer with
var contentTypes = []string{
	"blog post", "GitHub repository", "YouTube video", "YouTube sitcom", "YouTube movie",
	"documentation", "product page", "news article", "portfolio", "forum post",
	"movie review", "PDF", "tweet", "unknown",
}

type classification struct {
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

// classify asks the model for the content type and purpose of link. When
// youTubeType is set the type is fixed and only the purpose is requested.
func (a *Analyzer) classify(ctx context.Context, link string, page *Page, youTubeType string) (classification, error) {
	var prompt strings.Builder
	if youTubeType != "" {
		fmt.Fprintf(&prompt, "You are LinkMage, analyzing a YouTube URL to determine content type and purpose.\n\n")
		fmt.Fprintf(&prompt, "URL to analyze: %s\nDetected type: %s\n\n", link, youTubeType)
		prompt.WriteString("Based on the URL and detected type, provide a brief purpose/summary in one sentence.\n\n")
		fmt.Fprintf(&prompt, "Respond with VALID JSON in this EXACT format:\n{\n  \"type\": %q,\n  \"purpose\": \"brief_one_sentence_description_here\"\n}", youTubeType)
	} else {
		prompt.WriteString("You are LinkMage, analyzing a URL to determine content type and purpose.\n\n")
		fmt.Fprintf(&prompt, "URL to analyze: %s\n", link)
		if page != nil {
			if page.Title != "" {
				fmt.Fprintf(&prompt, "Page title: %s\n", page.Title)
			}
			if page.Text != "" {
				fmt.Fprintf(&prompt, "Page content (excerpt): %s\n", prefix(page.Text, 1000))
			}
		}
		prompt.WriteString("\nAnalyze this URL and determine:\n1. What type of content this likely is\n2. A brief purpose/summary in one sentence\n\n")
		prompt.WriteString("Respond with VALID JSON in this EXACT format:\n{\n  \"type\": \"content_type_here\",\n  \"purpose\": \"brief_one_sentence_description_here\"\n}\n\n")
		fmt.Fprintf(&prompt, "Choose type from: %s", strings.Join(contentTypes, ", "))
	}

	reply, err := a.complete(ctx, groq.Request{
		Operation:   "classify",
		System:      systemJSONOnly,
		Prompt:      prompt.String(),
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return classification{}, err
	}

	var c classification
	if err := groq.DecodeObject(reply, &c); err != nil {
		return classification{}, fmt.Errorf("failed to parse classification: %w", err)
	}
	if c.Type == "" {
		c.Type = fallbackType
	}
	if c.Purpose == "" {
		c.Purpose = fallbackPurpose
	}
	return c, nil
}

// dynamicActions asks the model for three fresh actions once the
// hand-authored sets are exhausted.
func (a *Analyzer) dynamicActions(ctx context.Context, link, contentType, summary string) ([]models.Action, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are LinkMage, generating unique AI actions for a %s.\n\nURL: %s\n", contentType, link)
	if summary != "" {
		fmt.Fprintf(&prompt, "Content Summary: %s\n", summary)
	}
	fmt.Fprintf(&prompt, "\nGenerate 3 unique, creative, and contextually relevant actions that would be valuable for this specific content. "+
		"These should be different from standard actions and tailored to this particular %s.\n\n", contentType)
	prompt.WriteString("Each action should have:\n- A clear, actionable title\n- A brief description explaining what it does\n- An appropriate emoji icon\n\n")
	prompt.WriteString("Respond with VALID JSON in this EXACT format:\n{\n  \"actions\": [\n    {\"title\": \"Action Title\", \"description\": \"Brief description of what this action does\", \"icon\": \"🎯\"}\n  ]\n}\n\n")
	prompt.WriteString("Make the actions creative, specific to this content, and genuinely useful.")

	reply, err := a.complete(ctx, groq.Request{
		Operation:   "dynamic_actions",
		System:      systemJSONOnly,
		Prompt:      prompt.String(),
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Actions []models.Action `json:"actions"`
	}
	if err := groq.DecodeObject(reply, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse dynamic actions: %w", err)
	}
	actions := parsed.Actions[:0]
	for _, action := range parsed.Actions {
		if action.Title != "" && action.Description != "" {
			actions = append(actions, action)
		}
	}
	if len(actions) < dynamicActionCount {
		return nil, fmt.Errorf("model returned %d usable actions, want %d", len(actions), dynamicActionCount)
	}
	return actions[:dynamicActionCount], nil
}
