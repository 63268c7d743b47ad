package agentloop

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"
)

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	Store    *Store
	Sessions SessionStore

	// Notify, when set, receives every state change after the manager has
	// observed it. Use it to chain UI refreshes off the same store.
	Notify func(ConversationState)

	// SaveTimeout bounds each background save. Defaults to 5s.
	SaveTimeout time.Duration

	Logger  logger.Logger
	Metrics metrics.Metrics
}

// SessionManager persists the conversation tree through a SessionStore.
// It snapshots the active conversation whenever the store settles back to
// idle, so every completed turn is durable without explicit save calls.
type SessionManager struct {
	store       *Store
	sessions    SessionStore
	notify      func(ConversationState)
	saveTimeout time.Duration
	logger      logger.Logger
	metrics     metrics.Metrics

	mu        sync.Mutex
	sessionID string
	createdAt time.Time
}

// NewSessionManager builds a session manager and binds it to the store's
// change feed.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Sessions == nil {
		return nil, ErrNilSessionStore
	}

	saveTimeout := cfg.SaveTimeout
	if saveTimeout <= 0 {
		saveTimeout = 5 * time.Second
	}

	m := &SessionManager{
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		notify:      cfg.Notify,
		saveTimeout: saveTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		sessionID:   uuid.NewString(),
		createdAt:   time.Now(),
	}

	cfg.Store.OnChange(m.onStateChange)

	return m, nil
}

// SessionID returns the ID the active conversation is saved under.
func (m *SessionManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessionID
}

// NewConversation clears the store and starts a fresh session.
func (m *SessionManager) NewConversation() {
	m.mu.Lock()
	m.sessionID = uuid.NewString()
	m.createdAt = time.Now()
	m.mu.Unlock()

	m.store.Dispatch(Clear{})
}

// Open restores a stored session into the conversation store.
func (m *SessionManager) Open(ctx context.Context, id string) error {
	session, err := m.sessions.Load(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sessionID = session.ID
	m.createdAt = session.CreatedAt
	m.mu.Unlock()

	m.store.Dispatch(RestoreSession{Session: *session})

	return nil
}

// List returns the stored sessions, most recently updated first.
func (m *SessionManager) List(ctx context.Context) ([]*Session, error) {
	return m.sessions.List(ctx)
}

// Rename retitles a stored session.
func (m *SessionManager) Rename(ctx context.Context, id, title string) error {
	return m.sessions.Rename(ctx, id, title)
}

// Delete removes a stored session. Deleting the active session leaves the
// in-memory conversation untouched.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	return m.sessions.Delete(ctx, id)
}

// Save snapshots the current conversation immediately.
func (m *SessionManager) Save(ctx context.Context) error {
	return m.saveSnapshot(ctx, m.store.State())
}

func (m *SessionManager) onStateChange(state ConversationState) {
	// Persist only settled conversations with content: saving mid-stream
	// would write a snapshot per token.
	if state.Status == StatusIdle && len(state.Messages) > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.saveTimeout)
			defer cancel()

			if err := m.saveSnapshot(ctx, state); err != nil && m.logger != nil {
				m.logger.Error("session save failed", logger.Error(err))
			}
		}()
	}

	if m.notify != nil {
		m.notify(state)
	}
}

func (m *SessionManager) saveSnapshot(ctx context.Context, state ConversationState) error {
	m.mu.Lock()
	id, createdAt := m.sessionID, m.createdAt
	m.mu.Unlock()

	session := SnapshotSession(id, createdAt, state)

	err := m.sessions.Save(ctx, session)

	if m.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.metrics.Counter("agentloop.sessions.saves",
			metrics.WithLabel("status", status),
		).Inc()
	}

	return err
}
