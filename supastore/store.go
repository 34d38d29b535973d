// Package supastore keeps user data in Supabase through its PostgREST API.
// The store authenticates with the service role key and applies the owner
// filter itself.
package supastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/models"
)

const (
	tableNotes    = "ai_notes"
	tableHistory  = "link_history"
	tableSettings = "user_settings"
	tableProfiles = "profiles"

	returnRows = "representation"
)

// Error is a PostgREST error reply
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

// Config contains Supabase connection settings
type Config struct {
	URL string
	Key string // Service role key
}

// Store implements user data persistence on Supabase
type Store struct {
	client *supabase.Client
	logger *zap.Logger
}

// New creates a store
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := supabase.NewClient(cfg.URL, cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Store{client: client, logger: logger.Named("supastore")}, nil
}

// Client exposes the underlying Supabase client, used for auth
func (s *Store) Client() *supabase.Client {
	return s.client
}

var errorPattern = regexp.MustCompile(`^\(([^)]*)\)\s*(.*)$`)

// wrap turns a postgrest-go error string into an *Error
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if m := errorPattern.FindStringSubmatch(err.Error()); m != nil {
		return fmt.Errorf("%s: %w", op, &Error{Code: m[1], Message: m[2]})
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validID reports whether id can match a uuid primary key
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Ping issues a cheap read so health checks see connectivity problems
func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.client.From(tableSettings).Select("user_id", "", false).Limit(1, "").Execute()
	return wrap("ping", err)
}

type noteRow struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListNotes returns a user's notes, newest first
func (s *Store) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	notes := []models.Note{}
	_, err := s.client.From(tableNotes).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&notes)
	if err != nil {
		return nil, wrap("failed to list notes", err)
	}
	return notes, nil
}

// GetNote returns one note owned by userID
func (s *Store) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	var notes []models.Note
	_, err := s.client.From(tableNotes).
		Select("*", "", false).
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteTo(&notes)
	if err != nil {
		return nil, wrap("failed to get note", err)
	}
	return first(notes)
}

// CreateNote inserts a note for userID
func (s *Store) CreateNote(ctx context.Context, userID string, in models.NoteInput) (*models.Note, error) {
	row := noteRow{ID: uuid.NewString(), UserID: userID, Title: in.Title, Content: in.Content}
	var notes []models.Note
	_, err := s.client.From(tableNotes).
		Insert(row, false, "", returnRows, "").
		ExecuteTo(&notes)
	if err != nil {
		return nil, wrap("failed to create note", err)
	}
	return first(notes)
}

// UpdateNote replaces the title and content of a note owned by userID
func (s *Store) UpdateNote(ctx context.Context, userID, id string, in models.NoteInput) (*models.Note, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	changes := map[string]any{
		"title":      in.Title,
		"content":    in.Content,
		"updated_at": time.Now().UTC(),
	}
	var notes []models.Note
	_, err := s.client.From(tableNotes).
		Update(changes, returnRows, "").
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteTo(&notes)
	if err != nil {
		return nil, wrap("failed to update note", err)
	}
	return first(notes)
}

// DeleteNote deletes a note owned by userID
func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	return s.deleteOwned(tableNotes, userID, id)
}

// deleteOwned asks for the deleted rows back; none means the id did not
// exist for this user.
func (s *Store) deleteOwned(table, userID, id string) error {
	var deleted []map[string]any
	_, err := s.client.From(table).
		Delete(returnRows, "").
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteTo(&deleted)
	if err != nil {
		return wrap("failed to delete from "+table, err)
	}
	if len(deleted) == 0 {
		return models.ErrNotFound
	}
	return nil
}

type historyRow struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Link         string          `json:"link"`
	Title        string          `json:"title"`
	ContentType  string          `json:"content_type"`
	Summary      string          `json:"summary"`
	AnalysisData json.RawMessage `json:"analysis_data,omitempty"`
}

// ListHistory returns a user's analyses, newest first
func (s *Store) ListHistory(ctx context.Context, userID string) ([]models.LinkHistory, error) {
	entries := []models.LinkHistory{}
	_, err := s.client.From(tableHistory).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&entries)
	if err != nil {
		return nil, wrap("failed to list link history", err)
	}
	return entries, nil
}

// GetHistory returns one analysis owned by userID
func (s *Store) GetHistory(ctx context.Context, userID, id string) (*models.LinkHistory, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	var entries []models.LinkHistory
	_, err := s.client.From(tableHistory).
		Select("*", "", false).
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteTo(&entries)
	if err != nil {
		return nil, wrap("failed to get link history", err)
	}
	return first(entries)
}

// AddHistory appends an analysis to a user's log
func (s *Store) AddHistory(ctx context.Context, userID string, in models.LinkHistoryInput) (*models.LinkHistory, error) {
	row := historyRow{
		ID:           uuid.NewString(),
		UserID:       userID,
		Link:         in.Link,
		Title:        in.Title,
		ContentType:  in.ContentType,
		Summary:      in.Summary,
		AnalysisData: in.AnalysisData,
	}
	var entries []models.LinkHistory
	_, err := s.client.From(tableHistory).
		Insert(row, false, "", returnRows, "").
		ExecuteTo(&entries)
	if err != nil {
		return nil, wrap("failed to record link history", err)
	}
	return first(entries)
}

// DeleteHistory deletes an analysis owned by userID
func (s *Store) DeleteHistory(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	return s.deleteOwned(tableHistory, userID, id)
}

// GetSettings returns a user's settings. A user without a row has
// notifications disabled.
func (s *Store) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var rows []models.UserSettings
	_, err := s.client.From(tableSettings).
		Select("*", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrap("failed to get settings", err)
	}
	if len(rows) == 0 {
		return &models.UserSettings{UserID: userID}, nil
	}
	return &rows[0], nil
}

// SaveSettings creates or replaces a user's settings
func (s *Store) SaveSettings(ctx context.Context, userID string, notificationsEnabled bool) (*models.UserSettings, error) {
	row := models.UserSettings{
		UserID:               userID,
		NotificationsEnabled: notificationsEnabled,
		UpdatedAt:            time.Now().UTC(),
	}
	var rows []models.UserSettings
	_, err := s.client.From(tableSettings).
		Insert(row, true, "user_id", returnRows, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrap("failed to save settings", err)
	}
	return first(rows)
}

// GetProfile returns the profile of userID
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var rows []models.Profile
	_, err := s.client.From(tableProfiles).
		Select("*", "", false).
		Eq("id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrap("failed to get profile", err)
	}
	return first(rows)
}

// UpdateProfile sets the display name of userID, creating the profile if needed
func (s *Store) UpdateProfile(ctx context.Context, userID, fullName string) (*models.Profile, error) {
	row := map[string]any{
		"id":         userID,
		"full_name":  fullName,
		"updated_at": time.Now().UTC(),
	}
	var rows []models.Profile
	_, err := s.client.From(tableProfiles).
		Insert(row, true, "id", returnRows, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrap("failed to update profile", err)
	}
	return first(rows)
}

// SyncProfile records the email of an authenticated user, keeping any name
func (s *Store) SyncProfile(ctx context.Context, userID, email string) error {
	row := map[string]any{"id": userID, "email": email}
	_, _, err := s.client.From(tableProfiles).
		Insert(row, true, "id", "minimal", "").
		Execute()
	return wrap("failed to sync profile", err)
}

// NotificationRecipients returns the profiles of users who enabled notifications
func (s *Store) NotificationRecipients(ctx context.Context) ([]models.Profile, error) {
	var settings []struct {
		UserID string `json:"user_id"`
	}
	_, err := s.client.From(tableSettings).
		Select("user_id", "", false).
		Eq("notifications_enabled", strconv.FormatBool(true)).
		ExecuteTo(&settings)
	if err != nil {
		return nil, wrap("failed to query settings", err)
	}
	if len(settings) == 0 {
		return []models.Profile{}, nil
	}

	ids := make([]string, len(settings))
	for i, row := range settings {
		ids[i] = row.UserID
	}

	profiles := []models.Profile{}
	_, err = s.client.From(tableProfiles).
		Select("*", "", false).
		In("id", ids).
		ExecuteTo(&profiles)
	if err != nil {
		return nil, wrap("failed to query profiles", err)
	}
	s.logger.Debug("notification recipients loaded", zap.Int("count", len(profiles)))
	return profiles, nil
}

func first[T any](rows []T) (*T, error) {
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	return &rows[0], nil
}
