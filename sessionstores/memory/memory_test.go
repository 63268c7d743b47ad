package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/agentloop"
)

func testSession(id, title string) *agentloop.Session {
	now := time.Now()

	return &agentloop.Session{
		ID:        id,
		Title:     title,
		AgentID:   "data-analyst",
		Messages:  make(map[string]agentloop.Message),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNewSessionStore(t *testing.T) {
	store := NewSessionStore(Config{})
	if store == nil {
		t.Fatal("expected non-nil store")
	}

	if store.Count() != 0 {
		t.Errorf("new store should be empty, got %d sessions", store.Count())
	}
}

func TestSessionStore_SaveAndLoad(t *testing.T) {
	store := NewSessionStore(Config{})
	ctx := context.Background()

	if err := store.Save(ctx, testSession("s1", "First")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "First" {
		t.Errorf("title = %q", loaded.Title)
	}
}

func TestSessionStore_SaveValidation(t *testing.T) {
	store := NewSessionStore(Config{})
	ctx := context.Background()

	if err := store.Save(ctx, nil); err == nil {
		t.Error("Save(nil) should return error")
	}
	if err := store.Save(ctx, testSession("", "untitled")); err == nil {
		t.Error("Save with empty ID should return error")
	}
}

func TestSessionStore_LoadMissing(t *testing.T) {
	store := NewSessionStore(Config{})

	_, err := store.Load(context.Background(), "missing")
	if err != agentloop.ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_LoadReturnsCopy(t *testing.T) {
	store := NewSessionStore(Config{})
	ctx := context.Background()

	original := testSession("s1", "original")
	_ = store.Save(ctx, original)

	loaded, _ := store.Load(ctx, "s1")
	loaded.Title = "mutated"
	msg := agentloop.NewMessage(agentloop.RoleUser, "injected", "")
	loaded.Messages[msg.ID] = msg

	again, _ := store.Load(ctx, "s1")
	if again.Title != "original" {
		t.Errorf("stored title mutated: %q", again.Title)
	}
	if len(again.Messages) != 0 {
		t.Error("stored messages mutated through loaded copy")
	}
}

func TestSessionStore_ListOrdering(t *testing.T) {
	store := NewSessionStore(Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s := testSession(fmt.Sprintf("s%d", i), fmt.Sprintf("Session %d", i))
		s.UpdatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("count = %d", len(sessions))
	}

	// Most recently updated first.
	if sessions[0].ID != "s2" || sessions[2].ID != "s0" {
		t.Errorf("order = %s, %s, %s", sessions[0].ID, sessions[1].ID, sessions[2].ID)
	}
}

func TestSessionStore_Rename(t *testing.T) {
	store := NewSessionStore(Config{})
	ctx := context.Background()

	_ = store.Save(ctx, testSession("s1", "old"))

	if err := store.Rename(ctx, "s1", "new"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	loaded, _ := store.Load(ctx, "s1")
	if loaded.Title != "new" {
		t.Errorf("title = %q", loaded.Title)
	}

	if err := store.Rename(ctx, "missing", "x"); err != agentloop.ErrSessionNotFound {
		t.Errorf("rename missing err = %v", err)
	}
}

func TestSessionStore_DeleteAndClear(t *testing.T) {
	store := NewSessionStore(Config{})
	ctx := context.Background()

	_ = store.Save(ctx, testSession("s1", "a"))
	_ = store.Save(ctx, testSession("s2", "b"))

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); err != agentloop.ErrSessionNotFound {
		t.Error("deleted session still loadable")
	}

	// Deleting a missing session is not an error.
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("count after clear = %d", store.Count())
	}
}

func TestSessionStore_TTLExpiry(t *testing.T) {
	store := NewSessionStore(Config{TTL: 10 * time.Millisecond})
	ctx := context.Background()

	_ = store.Save(ctx, testSession("s1", "short lived"))

	time.Sleep(20 * time.Millisecond)

	if _, err := store.Load(ctx, "s1"); err != agentloop.ErrSessionNotFound {
		t.Errorf("expired session err = %v, want ErrSessionNotFound", err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expired sessions listed: %d", len(sessions))
	}
}
