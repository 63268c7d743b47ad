package agentloop

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSessionStore is a minimal in-test store; the real implementations
// live in sessionstores.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	saves    int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*Session)}
}

func (f *fakeSessionStore) Save(ctx context.Context, session *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sessions[session.ID] = session
	f.saves++

	return nil
}

func (f *fakeSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return s, nil
}

func (f *fakeSessionStore) List(ctx context.Context) ([]*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}

	return out, nil
}

func (f *fakeSessionStore) Rename(ctx context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Title = title

	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sessions, id)

	return nil
}

func (f *fakeSessionStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sessions = make(map[string]*Session)

	return nil
}

func (f *fakeSessionStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.saves
}

func TestSnapshotSession_Title(t *testing.T) {
	state := NewConversationState("data-analyst")

	snap := SnapshotSession("s1", time.Now(), state)
	if snap.Title != "New Chat" {
		t.Errorf("empty conversation title = %q", snap.Title)
	}

	long := strings.Repeat("x", 80)
	state = Reduce(state, AppendMessage{Message: NewMessage(RoleUser, long, "")})

	snap = SnapshotSession("s1", time.Now(), state)
	if len(snap.Title) != 50 {
		t.Errorf("title length = %d, want 50", len(snap.Title))
	}
	if snap.AgentID != "data-analyst" {
		t.Errorf("agent = %q", snap.AgentID)
	}
}

func TestSessionManager_SavesOnIdle(t *testing.T) {
	store := NewStore(NewConversationState("data-analyst"))
	sessions := newFakeSessionStore()

	manager, err := NewSessionManager(SessionManagerConfig{
		Store:    store,
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	store.Dispatch(AppendMessage{Message: NewMessage(RoleUser, "save me", "")})
	store.Dispatch(SetStatus{Status: StatusIdle})

	// The idle save runs on a background goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for sessions.saveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	saved, err := sessions.Load(context.Background(), manager.SessionID())
	if err != nil {
		t.Fatalf("session not saved: %v", err)
	}
	if saved.Title != "save me" {
		t.Errorf("title = %q", saved.Title)
	}
}

func TestSessionManager_OpenRestoresConversation(t *testing.T) {
	store := NewStore(NewConversationState("data-analyst"))
	sessions := newFakeSessionStore()

	manager, err := NewSessionManager(SessionManagerConfig{
		Store:    store,
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	msg := NewMessage(RoleUser, "old conversation", "")
	stored := &Session{
		ID:            "prev",
		Title:         "old",
		AgentID:       "data-engineer",
		Messages:      map[string]Message{msg.ID: msg},
		CurrentLeafID: msg.ID,
	}
	if err := sessions.Save(context.Background(), stored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := manager.Open(context.Background(), "prev"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	state := store.State()
	if state.ActiveAgentID != "data-engineer" {
		t.Errorf("agent = %q", state.ActiveAgentID)
	}
	if state.CurrentLeafID != msg.ID {
		t.Errorf("leaf = %q", state.CurrentLeafID)
	}
	if manager.SessionID() != "prev" {
		t.Errorf("session id = %q", manager.SessionID())
	}

	// Future saves go to the opened session, not the original ID.
	if err := manager.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := sessions.Load(context.Background(), "prev"); err != nil {
		t.Errorf("opened session lost: %v", err)
	}
}

func TestSessionManager_NewConversationRotatesID(t *testing.T) {
	store := NewStore(NewConversationState("data-analyst"))

	manager, err := NewSessionManager(SessionManagerConfig{
		Store:    store,
		Sessions: newFakeSessionStore(),
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	store.Dispatch(AppendMessage{Message: NewMessage(RoleUser, "hi", "")})

	first := manager.SessionID()
	manager.NewConversation()

	if manager.SessionID() == first {
		t.Error("session ID not rotated")
	}
	if len(store.State().Messages) != 0 {
		t.Error("conversation not cleared")
	}
}
