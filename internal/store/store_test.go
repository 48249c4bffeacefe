package store

// Both SessionStore implementations run the same behavior suite. The
// SQLite variant uses an in-memory database so tests stay hermetic.

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/gateway/internal/chat"
)

func runSuite(t *testing.T, name string, open func(t *testing.T) SessionStore) {
	t.Run(name+"/CreateAndGet", func(t *testing.T) {
		s := open(t)
		sess, err := s.CreateSession(context.Background(), "Bitcoin questions")
		require.NoError(t, err)
		require.NotEmpty(t, sess.ID)

		got, err := s.GetSession(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bitcoin questions", got.Title)
		assert.Empty(t, got.Messages)
	})

	t.Run(name+"/GetUnknownSession", func(t *testing.T) {
		s := open(t)
		_, err := s.GetSession(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run(name+"/AppendPreservesOrderAndContent", func(t *testing.T) {
		s := open(t)
		sess, err := s.CreateSession(context.Background(), "")
		require.NoError(t, err)

		user := chat.NewMessage(chat.RoleUser,
			chat.TextContent("what is this?"),
			chat.ImageContent("https://example.com/pic.png"))
		reply := chat.NewTextMessage(chat.RoleAssistant, "a picture")
		require.NoError(t, s.AppendMessage(context.Background(), sess.ID, user))
		require.NoError(t, s.AppendMessage(context.Background(), sess.ID, reply))

		got, err := s.GetSession(context.Background(), sess.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, user.ID, got.Messages[0].ID)
		assert.Equal(t, chat.RoleUser, got.Messages[0].Role)
		require.Len(t, got.Messages[0].Content, 2)
		assert.Equal(t, chat.ContentImageURL, got.Messages[0].Content[1].Type)
		assert.Equal(t, "https://example.com/pic.png", got.Messages[0].Content[1].ImageURL.URL)
		assert.Equal(t, "a picture", got.Messages[1].Text())
	})

	t.Run(name+"/AppendToUnknownSession", func(t *testing.T) {
		s := open(t)
		err := s.AppendMessage(context.Background(), "nope", chat.NewTextMessage(chat.RoleUser, "hi"))
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run(name+"/ReplaceMessage", func(t *testing.T) {
		s := open(t)
		sess, err := s.CreateSession(context.Background(), "")
		require.NoError(t, err)

		pending := chat.NewTextMessage(chat.RoleAssistant, "")
		require.NoError(t, s.AppendMessage(context.Background(), sess.ID, pending))

		final := chat.NewTextMessage(chat.RoleAssistant, "done")
		require.NoError(t, s.ReplaceMessage(context.Background(), sess.ID, pending.ID, final))

		got, err := s.GetSession(context.Background(), sess.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, final.ID, got.Messages[0].ID, "replacement keeps position, takes new id")
		assert.Equal(t, "done", got.Messages[0].Text())
	})

	t.Run(name+"/ReplaceUnknownMessage", func(t *testing.T) {
		s := open(t)
		sess, err := s.CreateSession(context.Background(), "")
		require.NoError(t, err)
		err = s.ReplaceMessage(context.Background(), sess.ID, "missing-id", chat.NewTextMessage(chat.RoleAssistant, "x"))
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run(name+"/SetTitle", func(t *testing.T) {
		s := open(t)
		sess, err := s.CreateSession(context.Background(), "")
		require.NoError(t, err)
		require.NoError(t, s.SetTitle(context.Background(), sess.ID, "renamed"))

		got, err := s.GetSession(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)

		assert.ErrorIs(t, s.SetTitle(context.Background(), "nope", "x"), ErrSessionNotFound)
	})

	t.Run(name+"/ListMostRecentFirst", func(t *testing.T) {
		s := open(t)
		first, err := s.CreateSession(context.Background(), "first")
		require.NoError(t, err)
		second, err := s.CreateSession(context.Background(), "second")
		require.NoError(t, err)

		// Touch the older session so it sorts to the top.
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.AppendMessage(context.Background(), first.ID, chat.NewTextMessage(chat.RoleUser, "hi")))

		summaries, err := s.ListSessions(context.Background())
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, first.ID, summaries[0].ID)
		assert.Equal(t, second.ID, summaries[1].ID)
	})

	t.Run(name+"/DeleteSession", func(t *testing.T) {
		s := open(t)
		sess, err := s.CreateSession(context.Background(), "")
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage(context.Background(), sess.ID, chat.NewTextMessage(chat.RoleUser, "hi")))
		require.NoError(t, s.DeleteSession(context.Background(), sess.ID))

		_, err = s.GetSession(context.Background(), sess.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, s.DeleteSession(context.Background(), sess.ID), ErrSessionNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runSuite(t, "memory", func(t *testing.T) SessionStore {
		s := NewMemoryStore()
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runSuite(t, "sqlite", func(t *testing.T) SessionStore {
		s, err := OpenSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// TestMemoryStore_SnapshotsAreDetached verifies mutating a returned
// session does not leak into stored state.
func TestMemoryStore_SnapshotsAreDetached(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	sess, err := s.CreateSession(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(context.Background(), sess.ID, chat.NewTextMessage(chat.RoleUser, "original")))

	got, err := s.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	got.Messages[0].Content[0].Text = "mutated"

	again, err := s.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Text())
}

// TestMemoryStore_Closed verifies operations fail after Close.
func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.CreateSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.GetSession(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}
