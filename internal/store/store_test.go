package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatiitd/chatterm/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleChats() []models.Chat {
	base := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	return []models.Chat{
		{ID: "c1", UserID: "u1", Title: "oldest", CreatedAt: base},
		{ID: "c2", UserID: "u1", Title: "newest", CreatedAt: base.Add(time.Hour)},
	}
}

func TestUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertChats(sampleChats()))

	chats, err := s.ListChats()
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "c2", chats[0].ID, "newest first")
	assert.Equal(t, "c1", chats[1].ID)
	assert.Equal(t, "oldest", chats[1].Title)
	assert.True(t, chats[1].CreatedAt.Equal(time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)))
}

func TestUpsertOverwritesExisting(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertChats(sampleChats()))

	renamed := sampleChats()[0]
	renamed.Title = "renamed"
	require.NoError(t, s.UpsertChats([]models.Chat{renamed}))

	chats, err := s.ListChats()
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "renamed", chats[1].Title)
}

func TestReplaceChats(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertChats(sampleChats()))

	require.NoError(t, s.ReplaceChats([]models.Chat{{ID: "c3", Title: "only"}}))

	chats, err := s.ListChats()
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c3", chats[0].ID)
}

func TestDeleteChat(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertChats(sampleChats()))

	require.NoError(t, s.DeleteChat("c1"))
	require.NoError(t, s.DeleteChat("missing"))

	chats, err := s.ListChats()
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c2", chats[0].ID)
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertChats(sampleChats()))
	require.NoError(t, s.Clear())

	chats, err := s.ListChats()
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertChats(sampleChats()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	chats, err := s.ListChats()
	require.NoError(t, err)
	assert.Len(t, chats, 2, "data survives reopen")
}
