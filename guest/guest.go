// Package guest keeps notes for visitors without an account. Each guest's
// notes live in one JSON document in the blob store.
package guest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/linkmage/analyzer/models"
	"github.com/linkmage/analyzer/storage"
)

// ErrInvalidGuestID is returned for ids not produced by NewID
var ErrInvalidGuestID = errors.New("invalid guest id")

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var guestIDPattern = regexp.MustCompile(`^guest_[0-9]+_[a-z0-9]+$`)

// NewID returns a guest id of the form guest_<unix-millis>_<6 base36>
func NewID() string {
	return newID(time.Now(), 6)
}

func newID(now time.Time, n int) string {
	return fmt.Sprintf("guest_%d_%s", now.UnixMilli(), randomBase36(n))
}

func randomBase36(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String()
}

// ValidID reports whether id looks like a guest or guest note id
func ValidID(id string) bool {
	return guestIDPattern.MatchString(id)
}

// Update holds optional note changes
type Update struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Store reads and writes guest note documents
type Store struct {
	blob storage.Blob
	now  func() time.Time
	mu   sync.Mutex
}

// New creates a guest store over blob
func New(blob storage.Blob) *Store {
	return &Store{blob: blob, now: time.Now}
}

func key(guestID string) string {
	return "guests/" + guestID + ".json"
}

// List returns a guest's notes, newest first. An unknown guest has none.
func (s *Store) List(ctx context.Context, guestID string) ([]models.GuestNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, guestID)
}

// Save adds a note to the front of the guest's list
func (s *Store) Save(ctx context.Context, guestID, title, content string) (*models.GuestNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load(ctx, guestID)
	if err != nil {
		return nil, err
	}

	stamp := s.stamp(notes)
	note := models.GuestNote{
		ID:        newID(stamp, 9),
		Title:     title,
		Content:   content,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	notes = append([]models.GuestNote{note}, notes...)

	if err := s.store(ctx, guestID, notes); err != nil {
		return nil, err
	}
	return &note, nil
}

// Update applies changes to one note. A missing note is models.ErrNotFound.
func (s *Store) Update(ctx context.Context, guestID, noteID string, u Update) (*models.GuestNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load(ctx, guestID)
	if err != nil {
		return nil, err
	}

	for i := range notes {
		if notes[i].ID != noteID {
			continue
		}
		if u.Title != nil {
			notes[i].Title = *u.Title
		}
		if u.Content != nil {
			notes[i].Content = *u.Content
		}
		notes[i].UpdatedAt = s.stamp(notes)

		if err := s.store(ctx, guestID, notes); err != nil {
			return nil, err
		}
		note := notes[i]
		return &note, nil
	}
	return nil, models.ErrNotFound
}

// Delete removes one note. A missing note is models.ErrNotFound.
func (s *Store) Delete(ctx context.Context, guestID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load(ctx, guestID)
	if err != nil {
		return err
	}

	kept := make([]models.GuestNote, 0, len(notes))
	for _, n := range notes {
		if n.ID != noteID {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(notes) {
		return models.ErrNotFound
	}
	return s.store(ctx, guestID, kept)
}

// Clear removes every note of a guest
func (s *Store) Clear(ctx context.Context, guestID string) error {
	if !ValidID(guestID) {
		return ErrInvalidGuestID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.blob.Delete(ctx, key(guestID)); err != nil {
		return fmt.Errorf("failed to clear guest notes: %w", err)
	}
	return nil
}

// stamp returns the current time, nudged past every updated_at already in
// the document so updates within it stay strictly ordered.
func (s *Store) stamp(notes []models.GuestNote) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	for _, n := range notes {
		if !t.After(n.UpdatedAt) {
			t = n.UpdatedAt.Add(time.Microsecond)
		}
	}
	return t
}

// load reads a guest's document. A missing or unreadable document counts
// as empty, matching what the browser copy of this store did.
func (s *Store) load(ctx context.Context, guestID string) ([]models.GuestNote, error) {
	if !ValidID(guestID) {
		return nil, ErrInvalidGuestID
	}

	data, err := s.blob.Get(ctx, key(guestID))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return []models.GuestNote{}, nil
		}
		return nil, fmt.Errorf("failed to load guest notes: %w", err)
	}

	var notes []models.GuestNote
	if err := json.Unmarshal(data, &notes); err != nil || notes == nil {
		return []models.GuestNote{}, nil
	}
	return notes, nil
}

func (s *Store) store(ctx context.Context, guestID string, notes []models.GuestNote) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to encode guest notes: %w", err)
	}
	if err := s.blob.Put(ctx, key(guestID), data, "application/json"); err != nil {
		return fmt.Errorf("failed to save guest notes: %w", err)
	}
	return nil
}
