package agentloop

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	errors "github.com/xraph/go-utils/errs"
)

var (
	// ErrSessionNotFound is returned by session stores when no snapshot
	// exists for the requested ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNilStore is returned when a component is built without a
	// conversation store.
	ErrNilStore = errors.New("conversation store is required")

	// ErrNilSessionStore is returned when a session manager is built
	// without a backing session store.
	ErrNilSessionStore = errors.New("session store is required")
)

// Session is a persistable snapshot of one conversation tree.
type Session struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	AgentID       string             `json:"agentId,omitempty"`
	Messages      map[string]Message `json:"messageMap"`
	CurrentLeafID string             `json:"currentLeafId,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// NewSession creates an empty session.
func NewSession() *Session {
	now := time.Now()

	return &Session{
		ID:        uuid.NewString(),
		Title:     "New Chat",
		Messages:  make(map[string]Message),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SnapshotSession captures the current conversation into a session. The
// title defaults to the first message's opening words.
func SnapshotSession(id string, createdAt time.Time, state ConversationState) *Session {
	s := &Session{
		ID:            id,
		AgentID:       state.ActiveAgentID,
		Messages:      cloneMessages(state.Messages),
		CurrentLeafID: state.CurrentLeafID,
		CreatedAt:     createdAt,
		UpdatedAt:     time.Now(),
	}

	s.Title = "New Chat"
	if thread := state.Thread(); len(thread) > 0 {
		title := strings.TrimSpace(thread[0].Content)
		if len(title) > 50 {
			title = title[:50]
		}
		if title != "" {
			s.Title = title
		}
	}

	return s
}

// SessionStore persists session snapshots. The on-disk/on-wire format is up
// to the implementation.
type SessionStore interface {
	// Save creates or replaces a session snapshot.
	Save(ctx context.Context, session *Session) error

	// Load returns the session with the given ID, or ErrSessionNotFound.
	Load(ctx context.Context, id string) (*Session, error)

	// List returns all stored sessions, most recently updated first.
	List(ctx context.Context) ([]*Session, error)

	// Rename updates a session's title without touching its messages.
	Rename(ctx context.Context, id, title string) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Clear removes every stored session.
	Clear(ctx context.Context) error
}
