// Package memory provides an in-memory session store, suitable for tests
// and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/agentloop"
)

// SessionStore implements agentloop.SessionStore with an in-process map.
// Not suitable for sharing conversations across processes.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	logger   logger.Logger
	metrics  metrics.Metrics
	ttl      time.Duration
}

type entry struct {
	session   *agentloop.Session
	expiresAt *time.Time
}

// Config configures the in-memory session store.
type Config struct {
	// TTL expires sessions after the given idle period. Zero keeps them
	// forever.
	TTL time.Duration

	Logger  logger.Logger
	Metrics metrics.Metrics
}

// NewSessionStore creates an in-memory session store.
func NewSessionStore(cfg Config) *SessionStore {
	store := &SessionStore{
		sessions: make(map[string]*entry),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		ttl:      cfg.TTL,
	}

	if cfg.TTL > 0 {
		go store.sweepExpired()
	}

	if store.logger != nil {
		store.logger.Info("memory session store initialized",
			logger.Duration("ttl", cfg.TTL))
	}

	return store
}

// Save implements agentloop.SessionStore.
func (s *SessionStore) Save(ctx context.Context, session *agentloop.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{session: cloneSession(session)}
	if s.ttl > 0 {
		expiresAt := time.Now().Add(s.ttl)
		e.expiresAt = &expiresAt
	}

	s.sessions[session.ID] = e

	if s.logger != nil {
		s.logger.Debug("saved session to memory",
			logger.String("session_id", session.ID),
			logger.Int("messages", len(session.Messages)))
	}
	if s.metrics != nil {
		s.metrics.Counter("agentloop.sessionstore.memory.save").Inc()
	}

	return nil
}

// Load implements agentloop.SessionStore.
func (s *SessionStore) Load(ctx context.Context, id string) (*agentloop.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.sessions[id]
	if !exists {
		return nil, agentloop.ErrSessionNotFound
	}
	if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
		return nil, agentloop.ErrSessionNotFound
	}

	if s.metrics != nil {
		s.metrics.Counter("agentloop.sessionstore.memory.load").Inc()
	}

	return cloneSession(e.session), nil
}

// List implements agentloop.SessionStore.
func (s *SessionStore) List(ctx context.Context) ([]*agentloop.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()

	out := make([]*agentloop.Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		if e.expiresAt != nil && now.After(*e.expiresAt) {
			continue
		}
		out = append(out, cloneSession(e.session))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if s.metrics != nil {
		s.metrics.Counter("agentloop.sessionstore.memory.list").Inc()
		s.metrics.Histogram("agentloop.sessionstore.memory.sessions").Observe(float64(len(out)))
	}

	return out, nil
}

// Rename implements agentloop.SessionStore.
func (s *SessionStore) Rename(ctx context.Context, id, title string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.sessions[id]
	if !exists {
		return agentloop.ErrSessionNotFound
	}

	e.session.Title = title
	e.session.UpdatedAt = time.Now()

	return nil
}

// Delete implements agentloop.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	if s.metrics != nil {
		s.metrics.Counter("agentloop.sessionstore.memory.delete").Inc()
	}

	return nil
}

// Clear implements agentloop.SessionStore.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*entry)

	return nil
}

// Count returns the number of stored sessions, expired entries included.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *SessionStore) sweepExpired() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		removed := 0

		for id, e := range s.sessions {
			if e.expiresAt != nil && now.After(*e.expiresAt) {
				delete(s.sessions, id)
				removed++
			}
		}

		if removed > 0 && s.logger != nil {
			s.logger.Debug("swept expired sessions", logger.Int("count", removed))
		}

		s.mu.Unlock()
	}
}

// cloneSession copies a session deeply enough that callers cannot mutate
// stored state through the returned pointer.
func cloneSession(in *agentloop.Session) *agentloop.Session {
	out := *in
	out.Messages = make(map[string]agentloop.Message, len(in.Messages))
	for id, msg := range in.Messages {
		out.Messages[id] = msg
	}

	return &out
}
