package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/linkmage/analyzer/models"
)

// DB wraps the database connection and provides data access methods.
// Every user-scoped query filters on user_id, so a row owned by someone
// else reads as missing.
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DSN         string // PostgreSQL connection string
	AutoMigrate bool
}

// New creates a new database connection
func New(ctx context.Context, config Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, logger: logger.Named("db")}

	if config.AutoMigrate {
		if err := Migrate(ctx, conn, db.logger); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// validID reports whether id can be a row id. Anything else cannot match a
// row, and Postgres would reject it as a UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const noteColumns = "id, user_id, title, content, created_at, updated_at"

func scanNote(row rowScanner) (*models.Note, error) {
	var n models.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotes returns a user's notes, newest first
func (db *DB) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM ai_notes WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

// GetNote returns one note owned by userID
func (db *DB) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	n, err := scanNote(db.conn.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM ai_notes WHERE id = $1 AND user_id = $2", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return n, nil
}

// CreateNote inserts a note for userID
func (db *DB) CreateNote(ctx context.Context, userID string, in models.NoteInput) (*models.Note, error) {
	n, err := scanNote(db.conn.QueryRowContext(ctx, `
		INSERT INTO ai_notes (id, user_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+noteColumns,
		uuid.NewString(), userID, in.Title, in.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

// UpdateNote replaces the title and content of a note owned by userID
func (db *DB) UpdateNote(ctx context.Context, userID, id string, in models.NoteInput) (*models.Note, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	n, err := scanNote(db.conn.QueryRowContext(ctx, `
		UPDATE ai_notes SET title = $3, content = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+noteColumns,
		id, userID, in.Title, in.Content))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return n, nil
}

// DeleteNote deletes a note owned by userID
func (db *DB) DeleteNote(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	return db.deleteOwned(ctx, "DELETE FROM ai_notes WHERE id = $1 AND user_id = $2", id, userID)
}

func (db *DB) deleteOwned(ctx context.Context, query, id, userID string) error {
	result, err := db.conn.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

const historyColumns = "id, user_id, link, title, content_type, summary, analysis_data, created_at"

func scanHistory(row rowScanner) (*models.LinkHistory, error) {
	var (
		h    models.LinkHistory
		data []byte
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Link, &h.Title, &h.ContentType, &h.Summary, &data, &h.CreatedAt); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		h.AnalysisData = json.RawMessage(data)
	}
	return &h, nil
}

// ListHistory returns a user's analyses, newest first
func (db *DB) ListHistory(ctx context.Context, userID string) ([]models.LinkHistory, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM link_history WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query link history: %w", err)
	}
	defer rows.Close()

	entries := []models.LinkHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link history: %w", err)
		}
		entries = append(entries, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link history: %w", err)
	}
	return entries, nil
}

// GetHistory returns one analysis owned by userID
func (db *DB) GetHistory(ctx context.Context, userID, id string) (*models.LinkHistory, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	h, err := scanHistory(db.conn.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM link_history WHERE id = $1 AND user_id = $2", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query link history: %w", err)
	}
	return h, nil
}

// AddHistory appends an analysis to a user's log
func (db *DB) AddHistory(ctx context.Context, userID string, in models.LinkHistoryInput) (*models.LinkHistory, error) {
	var data any
	if len(in.AnalysisData) > 0 {
		data = string(in.AnalysisData)
	}
	h, err := scanHistory(db.conn.QueryRowContext(ctx, `
		INSERT INTO link_history (id, user_id, link, title, content_type, summary, analysis_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING `+historyColumns,
		uuid.NewString(), userID, in.Link, in.Title, in.ContentType, in.Summary, data))
	if err != nil {
		return nil, fmt.Errorf("failed to record link history: %w", err)
	}
	return h, nil
}

// DeleteHistory deletes an analysis owned by userID
func (db *DB) DeleteHistory(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	return db.deleteOwned(ctx, "DELETE FROM link_history WHERE id = $1 AND user_id = $2", id, userID)
}

// GetSettings returns a user's settings. A user without a row has
// notifications disabled.
func (db *DB) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	s := models.UserSettings{UserID: userID}
	err := db.conn.QueryRowContext(ctx,
		"SELECT notifications_enabled, updated_at FROM user_settings WHERE user_id = $1", userID,
	).Scan(&s.NotificationsEnabled, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return &s, nil
}

// SaveSettings creates or replaces a user's settings
func (db *DB) SaveSettings(ctx context.Context, userID string, notificationsEnabled bool) (*models.UserSettings, error) {
	s := models.UserSettings{UserID: userID}
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, notifications_enabled, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			notifications_enabled = excluded.notifications_enabled,
			updated_at = excluded.updated_at
		RETURNING notifications_enabled, updated_at`,
		userID, notificationsEnabled,
	).Scan(&s.NotificationsEnabled, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return &s, nil
}

const profileColumns = "id, email, full_name, updated_at"

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile returns the profile of userID
func (db *DB) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = $1", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// UpdateProfile sets the display name of userID, creating the profile if needed
func (db *DB) UpdateProfile(ctx context.Context, userID, fullName string) (*models.Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx, `
		INSERT INTO profiles (id, full_name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			full_name = excluded.full_name,
			updated_at = excluded.updated_at
		RETURNING `+profileColumns,
		userID, fullName))
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// SyncProfile records the email of an authenticated user, keeping any name
func (db *DB) SyncProfile(ctx context.Context, userID, email string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO profiles (id, email, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET email = excluded.email
		WHERE profiles.email IS DISTINCT FROM excluded.email`,
		userID, email)
	if err != nil {
		return fmt.Errorf("failed to sync profile: %w", err)
	}
	return nil
}

// NotificationRecipients returns the profiles of users who enabled notifications
func (db *DB) NotificationRecipients(ctx context.Context) ([]models.Profile, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p.id, p.email, p.full_name, p.updated_at
		FROM profiles p
		JOIN user_settings s ON s.user_id = p.id
		WHERE s.notifications_enabled
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}
	return profiles, nil
}
