package guest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkmage/analyzer/models"
	"github.com/linkmage/analyzer/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, storage.Blob) {
	t.Helper()
	blob, err := storage.New(storage.Config{BasePath: filepath.Join(t.TempDir(), "blobs")})
	require.NoError(t, err)
	return New(blob), blob
}

// frozenClock always reports the same instant
func frozenClock(s *Store) {
	fixed := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.True(t, ValidID(id), id)
	assert.Regexp(t, `^guest_[0-9]{13}_[a-z0-9]{6}$`, id)
	assert.NotEqual(t, NewID(), NewID())

	noteID := newID(time.UnixMilli(1700000000000), 9)
	assert.Regexp(t, `^guest_1700000000000_[a-z0-9]{9}$`, noteID)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	frozenClock(s)
	guestID := NewID()

	notes, err := s.List(ctx, guestID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	first, err := s.Save(ctx, guestID, "First", "one")
	require.NoError(t, err)
	second, err := s.Save(ctx, guestID, "Second", "two")
	require.NoError(t, err)

	assert.True(t, ValidID(first.ID))
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	notes, err = s.List(ctx, guestID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Second", notes[0].Title, "new notes are prepended")
	assert.Equal(t, "First", notes[1].Title)

	title := "First, edited"
	updated, err := s.Update(ctx, guestID, first.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "First, edited", updated.Title)
	assert.Equal(t, "one", updated.Content)
	assert.True(t, updated.UpdatedAt.After(second.UpdatedAt))
	assert.True(t, first.CreatedAt.Equal(updated.CreatedAt))

	content := "one, again"
	again, err := s.Update(ctx, guestID, first.ID, Update{Content: &content})
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	require.NoError(t, s.Delete(ctx, guestID, second.ID))
	notes, err = s.List(ctx, guestID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, again.ID, notes[0].ID)
	assert.Equal(t, "one, again", notes[0].Content)
	assert.True(t, again.UpdatedAt.Equal(notes[0].UpdatedAt))
}

func TestUpdatedAtSurvivesReload(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)
	frozenClock(s)
	guestID := NewID()

	note, err := s.Save(ctx, guestID, "a", "b")
	require.NoError(t, err)

	reopened := New(blob)
	reopened.now = s.now
	title := "c"
	updated, err := reopened.Update(ctx, guestID, note.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(note.UpdatedAt))
}

func TestMissingNotes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	guestID := NewID()

	_, err := s.Update(ctx, guestID, "guest_1_missing", Update{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, guestID, "guest_1_missing"), models.ErrNotFound)
}

func TestGuestsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	alice, bob := NewID(), NewID()

	note, err := s.Save(ctx, alice, "mine", "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, bob, note.ID), models.ErrNotFound)

	notes, err := s.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestClearAndCorruptDocument(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)
	guestID := NewID()

	_, err := s.Save(ctx, guestID, "a", "b")
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, guestID))

	notes, err := s.List(ctx, guestID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, blob.Put(ctx, key(guestID), []byte("{not json"), ""))
	notes, err = s.List(ctx, guestID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestInvalidGuestID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, id := range []string{"", "../etc", "guest_abc", "Guest_1_a"} {
		_, err := s.List(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidGuestID, id)
	}
	assert.ErrorIs(t, s.Clear(ctx, "nope"), ErrInvalidGuestID)
}
