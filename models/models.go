package models

import (
	"encoding/json"
	"time"
)

// Action is a suggested action shown for an analyzed link
type Action struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

// PromptAction is an action that carries the prompt used to perform it
type PromptAction struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// LinkAnalysis is the result of classifying a link and picking its actions
type LinkAnalysis struct {
	Type            string   `json:"type"`
	Purpose         string   `json:"purpose"`
	Actions         []Action `json:"actions"`
	TotalActionSets int      `json:"totalActionSets,omitempty"`
	NextActionSet   *int     `json:"nextActionSet,omitempty"`
	IsDynamic       bool     `json:"isDynamic,omitempty"`
	Title           string   `json:"title,omitempty"`

	// YouTube only
	ContentAnalysis  string `json:"contentAnalysis,omitempty"`
	ContentAvailable *bool  `json:"contentAvailable,omitempty"`
	ContentMessage   string `json:"contentMessage,omitempty"`

	Warnings []string `json:"warnings,omitempty"` // Non-fatal processing warnings
}

// ActionResult is the generated output of an executed action
type ActionResult struct {
	Content           string `json:"content"`
	URL               string `json:"url"`
	Action            string `json:"action"`
	HasScrapedContent bool   `json:"hasScrapedContent"`
}

// PageContent is the readable text of a page as returned by fetch-url
type PageContent struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

// PageMetadata is what a page declares about itself in meta tags
type PageMetadata struct {
	Description   string   `json:"-"`
	Keywords      []string `json:"keywords,omitempty"`
	Author        string   `json:"author,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	OGType        string   `json:"og_type,omitempty"`
	SiteName      string   `json:"site_name,omitempty"`
}

// IsZero reports whether no field besides the description was found
func (m PageMetadata) IsZero() bool {
	return len(m.Keywords) == 0 && m.Author == "" && m.PublishedDate == "" && m.OGType == "" && m.SiteName == ""
}

// ScrapedPage is the result of scrape-content
type ScrapedPage struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Content     string        `json:"content"`
	URL         string        `json:"url"`
	Status      string        `json:"status"`
	Metadata    *PageMetadata `json:"metadata,omitempty"`
	Snapshot    string        `json:"snapshot,omitempty"` // Storage key of the archived copy
}

// Note is a user-owned AI note
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteInput holds the writable fields of a note
type NoteInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required,max=10000"`
}

// LinkHistory is one entry in a user's analysis log
type LinkHistory struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Link         string          `json:"link"`
	Title        string          `json:"title"`
	ContentType  string          `json:"content_type"`
	Summary      string          `json:"summary"`
	AnalysisData json.RawMessage `json:"analysis_data,omitempty"` // Opaque to the server
	CreatedAt    time.Time       `json:"created_at"`
}

// LinkHistoryInput holds the fields accepted when recording an analysis
type LinkHistoryInput struct {
	Link         string          `json:"link" validate:"required,url"`
	Title        string          `json:"title" validate:"max=500"`
	ContentType  string          `json:"content_type" validate:"max=100"`
	Summary      string          `json:"summary"`
	AnalysisData json.RawMessage `json:"analysis_data,omitempty"`
}

// UserSettings stores per-user preferences
type UserSettings struct {
	UserID               string    `json:"user_id"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Profile mirrors an auth user
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the full name, or the email when no name is set
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// GuestNote is a note kept for a visitor without an account
type GuestNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArticleSummary is an LLM overview of an article page
type ArticleSummary struct {
	Summary  string          `json:"summary"`
	Metadata ArticleMetadata `json:"metadata"`
}

// ArticleMetadata describes the article a summary was built from
type ArticleMetadata struct {
	Title        string `json:"title"`
	Excerpt      string `json:"excerpt"`
	LeadImageURL string `json:"lead_image_url"`
}
