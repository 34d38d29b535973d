package api

import (
	"context"

	"github.com/linkmage/analyzer/models"
)

// Store persists user-scoped data. Every method taking a userID must treat
// rows owned by another user as missing and return models.ErrNotFound.
// *db.DB and *supastore.Store implement it.
type Store interface {
	Ping(ctx context.Context) error

	ListNotes(ctx context.Context, userID string) ([]models.Note, error)
	GetNote(ctx context.Context, userID, id string) (*models.Note, error)
	CreateNote(ctx context.Context, userID string, in models.NoteInput) (*models.Note, error)
	UpdateNote(ctx context.Context, userID, id string, in models.NoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, id string) error

	ListHistory(ctx context.Context, userID string) ([]models.LinkHistory, error)
	GetHistory(ctx context.Context, userID, id string) (*models.LinkHistory, error)
	AddHistory(ctx context.Context, userID string, in models.LinkHistoryInput) (*models.LinkHistory, error)
	DeleteHistory(ctx context.Context, userID, id string) error

	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, notificationsEnabled bool) (*models.UserSettings, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID, fullName string) (*models.Profile, error)
	SyncProfile(ctx context.Context, userID, email string) error
	NotificationRecipients(ctx context.Context) ([]models.Profile, error)
}

// Notifier sends an update message to a set of profiles
type Notifier interface {
	Notify(ctx context.Context, profiles []models.Profile, message string) (int, error)
}
