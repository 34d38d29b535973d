package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
	"go.uber.org/zap"
)

const (
	noContentText      = "Content could not be extracted from this page."
	defaultPageTitle   = "Web Page"
	noTitleText        = "No title found"
	noDescriptionText  = "No description available"
	promptContentLimit = 2000
)

// ErrUnparseable is returned when a model reply cannot be decoded and no
// canned fallback applies.
var ErrUnparseable = errors.New("failed to parse AI response")

// ParseError carries the cleaned model reply that failed to decode
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%v: %v", ErrUnparseable, e.Err) }
func (e *ParseError) Unwrap() error { return ErrUnparseable }

// FetchURL returns the readable text of a page, trying readability first
// and the selector cascade second.
func (a *Analyzer) FetchURL(ctx context.Context, rawURL string) (*models.PageContent, error) {
	target, err := ParseTargetURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.fetch(ctx, target, a.config.HTTPTimeout)
	if err != nil {
		return nil, err
	}

	content := &models.PageContent{}
	if article, err := readability.FromReader(bytes.NewReader(body), target); err == nil {
		content.Title = strings.TrimSpace(article.Title)
		content.Text = collapseWhitespace(article.TextContent)
		content.Description = strings.TrimSpace(article.Excerpt)
	} else {
		a.logger.Debug("readability failed, using selectors", zap.String("url", rawURL), zap.Error(err))
	}

	page, err := ParsePage(bytes.NewReader(body), target.String(), FetchProfile)
	if err != nil {
		return nil, err
	}
	if content.Title == "" {
		content.Title = page.Title
	}
	if content.Description == "" {
		content.Description = page.Description
	}
	if len([]rune(content.Text)) <= FetchProfile.MinLength {
		content.Text = page.Text
	}

	if content.Title == "" {
		content.Title = defaultPageTitle
	}
	if content.Text == "" {
		content.Text = noContentText
	}
	content.Text = truncate(content.Text, FetchProfile.MaxLength)
	return content, nil
}

// FetchFallback is the content reported alongside a fetch-url failure
func FetchFallback() models.PageContent {
	return models.PageContent{
		Title:       defaultPageTitle,
		Text:        noContentText,
		Description: "",
	}
}

// AnalyzeURL suggests three prompt actions for a page. Fetch failures,
// thin content and unparseable replies all yield canned actions; only a
// failed completion is returned as an error.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) ([]models.PromptAction, error) {
	content, err := a.FetchURL(ctx, rawURL)
	if err != nil {
		a.logger.Info("fetch failed, suggesting URL actions", zap.String("url", rawURL), zap.Error(err))
		return fetchFailedActions(), nil
	}
	if content.Title == "" || len([]rune(content.Text)) < 10 || content.Text == noContentText {
		return thinContentActions(), nil
	}

	prompt := fmt.Sprintf(`You are LinkMage. A user pasted a link to a page titled "%s". Based on the content below, suggest 3 helpful, smart actions the user might perform.

IMPORTANT: Respond with ONLY valid JSON in this exact format:
[
  { "title": "Action Title", "description": "Action description", "prompt": "Action prompt" }
]

Do not include any other text, markdown, or formatting. Only the JSON array.

Page content:
%s`, content.Title, content.Text)

	reply, err := a.complete(ctx, groq.Request{
		Operation:   "analyze_url",
		System:      "You are LinkMage, an expert at suggesting smart actions for any web page. Always respond with valid JSON only. No markdown, no extra text, just the JSON array.",
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("action suggestion failed: %w", err)
	}

	actions, err := decodePromptActions(reply)
	if err != nil {
		a.logger.Warn("unusable suggestion reply, using fallback actions", zap.String("url", rawURL), zap.Error(err))
		return contextualActions(content.Title, rawURL), nil
	}
	return actions, nil
}

// PerformActionInput is a prompt action with the page context it runs on
type PerformActionInput struct {
	Type    string
	Purpose string
	Content string
	URL     string
	Action  models.PromptAction
}

// PerformAction runs a prompt action against already extracted content
func (a *Analyzer) PerformAction(ctx context.Context, in PerformActionInput) (string, error) {
	prompt := fmt.Sprintf("You are LinkMage, an expert at performing smart, contextual actions for any web page.\n\n"+
		"Page type: %s\nPurpose: %s\nURL: %s\nContent: %s\n\n"+
		"Action: %s\nAction description: %s\n\n%s\n\n"+
		"Respond in clear, readable text. No markdown, no code blocks, just the result.",
		in.Type, in.Purpose, in.URL, prefix(in.Content, promptContentLimit),
		in.Action.Title, in.Action.Description, in.Action.Prompt)

	result, err := a.complete(ctx, groq.Request{
		Operation:   "perform_action",
		System:      "You are LinkMage. Respond in clear, readable text. No markdown, no code blocks.",
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("action failed: %w", err)
	}
	return result, nil
}

// GenerateActionsInput describes a page to suggest actions for
type GenerateActionsInput struct {
	Type    string
	Purpose string
	Content string
	URL     string
}

// GenerateActions asks for 3-5 prompt actions. Unlike AnalyzeURL there is
// no canned fallback: an unparseable reply is a *ParseError.
func (a *Analyzer) GenerateActions(ctx context.Context, in GenerateActionsInput) ([]models.PromptAction, error) {
	prompt := fmt.Sprintf("You are LinkMage, an expert at suggesting smart, actionable things a user might want to do with a web page.\n\n"+
		"Page type: %s\nPurpose: %s\nURL: %s\nContent: %s\n\n"+
		"Suggest 3-5 highly relevant, actionable things a user might want to do with this page.\n\n"+
		"Respond with valid JSON in this format:\n[\n  {\n    \"title\": \"Action title\",\n    \"description\": \"What this action does\",\n    \"prompt\": \"Prompt to use if the user selects this action\"\n  }\n]\n\n"+
		"No extra text, only the JSON array.",
		in.Type, in.Purpose, in.URL, prefix(in.Content, 1000))

	reply, err := a.complete(ctx, groq.Request{
		Operation:   "generate_actions",
		System:      "You are LinkMage. Always respond with valid JSON only. No extra text.",
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("action generation failed: %w", err)
	}

	var actions []models.PromptAction
	if err := groq.DecodeArray(reply, &actions); err != nil {
		return nil, &ParseError{Raw: groq.ExtractArray(reply), Err: err}
	}
	return actions, nil
}

// ScrapeContent extracts the title, description and main text of a page
func (a *Analyzer) ScrapeContent(ctx context.Context, rawURL string) (*models.ScrapedPage, error) {
	page, err := a.FetchPage(ctx, rawURL, ScrapeProfile)
	if err != nil {
		return nil, err
	}

	content := page.Text
	if content == "" {
		switch {
		case page.Description != "":
			content = page.Description
		case page.Title != "":
			content = page.Title
		default:
			content = noContentText
		}
	}

	title := page.Title
	if title == "" {
		title = noTitleText
	}
	description := page.Description
	if description == "" {
		description = noDescriptionText
	}

	scraped := &models.ScrapedPage{
		Title:       title,
		Description: description,
		Content:     content,
		URL:         rawURL,
		Status:      "success",
	}
	if !page.Metadata.IsZero() {
		meta := page.Metadata
		scraped.Metadata = &meta
	}
	return scraped, nil
}

// decodePromptActions decodes a reply into actions, dropping incomplete ones
func decodePromptActions(reply string) ([]models.PromptAction, error) {
	var parsed []models.PromptAction
	if err := groq.DecodeArray(reply, &parsed); err != nil {
		return nil, err
	}

	actions := parsed[:0]
	for _, action := range parsed {
		if action.Title == "" || action.Description == "" || action.Prompt == "" {
			continue
		}
		actions = append(actions, action)
	}
	if len(actions) == 0 {
		return nil, errors.New("no valid actions in reply")
	}
	return actions, nil
}

func fetchFailedActions() []models.PromptAction {
	return []models.PromptAction{
		{
			Title:       "Analyze URL Structure",
			Description: "Analyze the URL structure and domain to understand the content type",
			Prompt:      "Based on the URL structure and domain, what type of content is this likely to be?",
		},
		{
			Title:       "Generate General Actions",
			Description: "Suggest common actions that could be useful for any web content",
			Prompt:      "What are some general useful actions someone might want to perform with web content?",
		},
		{
			Title:       "Extract Key Information",
			Description: "Try to extract any available information from the URL itself",
			Prompt:      "What information can we extract from this URL structure and domain?",
		},
	}
}

func thinContentActions() []models.PromptAction {
	return []models.PromptAction{
		{
			Title:       "URL Analysis",
			Description: "Analyze the URL structure and domain information",
			Prompt:      "Analyze this URL and explain what type of content it likely contains",
		},
		{
			Title:       "Domain Research",
			Description: "Research the domain and suggest potential content types",
			Prompt:      "What can we learn about this domain and what content it might contain?",
		},
		{
			Title:       "General Web Actions",
			Description: "Suggest common actions for web content",
			Prompt:      "What are some useful actions someone might want to perform with web content?",
		},
	}
}

// contextualActions picks canned actions from the page title and URL
func contextualActions(title, rawURL string) []models.PromptAction {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "github") || strings.Contains(rawURL, "github.com"):
		return []models.PromptAction{
			{
				Title:       "Analyze Repository",
				Description: "Understand what this GitHub repository does and its purpose",
				Prompt:      "Analyze this GitHub repository and explain its purpose and functionality",
			},
			{
				Title:       "Review Code Quality",
				Description: "Assess the code quality and suggest improvements",
				Prompt:      "Review the code quality of this repository and suggest improvements",
			},
			{
				Title:       "Create Documentation",
				Description: "Generate comprehensive documentation for this project",
				Prompt:      "Create detailed documentation for this GitHub repository",
			},
		}
	case strings.Contains(t, "blog") || strings.Contains(t, "article"):
		return []models.PromptAction{
			{
				Title:       "Summarize Content",
				Description: "Create a concise summary of the main points",
				Prompt:      "Summarize the key points and main takeaways from this content",
			},
			{
				Title:       "Extract Insights",
				Description: "Identify the most important insights and lessons",
				Prompt:      "What are the key insights and lessons from this content?",
			},
			{
				Title:       "Generate Discussion Points",
				Description: "Create discussion points for further conversation",
				Prompt:      "What are some interesting discussion points from this content?",
			},
		}
	}
	return []models.PromptAction{
		{
			Title:       "Analyze Content",
			Description: "Get a detailed analysis of the page content and key insights",
			Prompt:      "Analyze this content and provide key insights",
		},
		{
			Title:       "Summarize Information",
			Description: "Create a concise summary of the main points and takeaways",
			Prompt:      "Summarize the key information from this content",
		},
		{
			Title:       "Generate Action Items",
			Description: "Extract actionable items and next steps from the content",
			Prompt:      "What are the main action items from this content?",
		},
	}
}
