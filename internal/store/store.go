// Package store persists chat sessions and their message history.
//
// Two implementations exist: MemoryStore for tests and single-process
// deployments, and SQLiteStore for durable storage. Both guard the same
// invariant: messages within a session are ordered by insertion and are
// immutable once written, except that a pending assistant placeholder may
// be replaced in place by its finalized version.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/omnichat/gateway/internal/chat"
)

var (
	// ErrSessionNotFound is returned when the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound is returned when replacing a message whose id is
	// not present in the session.
	ErrMessageNotFound = errors.New("message not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Session is one conversation with its ordered history.
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []*chat.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Summary is a session without its messages, for listing.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore is the persistence boundary for the dispatch service.
type SessionStore interface {
	// CreateSession creates an empty session with the given title.
	CreateSession(ctx context.Context, title string) (*Session, error)

	// GetSession returns the session with its full message history.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns summaries of all sessions, most recently
	// updated first.
	ListSessions(ctx context.Context) ([]Summary, error)

	// SetTitle updates a session title.
	SetTitle(ctx context.Context, id, title string) error

	// AppendMessage appends a message to the session history.
	AppendMessage(ctx context.Context, sessionID string, msg *chat.Message) error

	// ReplaceMessage overwrites the stored message with id oldID in place,
	// keeping its position. Used to swap the pending assistant placeholder
	// for the final reply, which may carry a different id.
	ReplaceMessage(ctx context.Context, sessionID, oldID string, msg *chat.Message) error

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, id string) error

	// Close releases underlying resources.
	Close() error
}

// copyMessage returns a detached copy so callers cannot mutate stored state.
func copyMessage(m *chat.Message) *chat.Message {
	cp := *m
	cp.Content = make([]chat.MessageContent, len(m.Content))
	copy(cp.Content, m.Content)
	return &cp
}
