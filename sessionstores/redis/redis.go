// Package redis provides a Redis-backed session store for sharing
// conversations across processes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/agentloop"
)

// SessionStore implements agentloop.SessionStore on Redis. Sessions are
// stored as JSON values, with a set indexing the known IDs.
type SessionStore struct {
	client  redis.UniversalClient
	prefix  string
	logger  logger.Logger
	metrics metrics.Metrics
}

// Config configures the Redis session store.
type Config struct {
	// Addrs holds Redis addresses: one for standalone, several for
	// cluster mode.
	Addrs    []string
	Password string
	DB       int

	// KeyPrefix defaults to "agentloop:session:".
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// Sentinel
	MasterName    string
	SentinelAddrs []string

	Logger  logger.Logger
	Metrics metrics.Metrics
}

// NewSessionStore connects to Redis and returns a session store.
func NewSessionStore(ctx context.Context, cfg Config) (*SessionStore, error) {
	if len(cfg.Addrs) == 0 {
		cfg.Addrs = []string{"localhost:6379"}
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "agentloop:session:"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}

	var client redis.UniversalClient
	switch {
	case len(cfg.SentinelAddrs) > 0:
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
		})
	case len(cfg.Addrs) > 1:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	default:
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addrs[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &SessionStore{
		client:  client,
		prefix:  cfg.KeyPrefix,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	if store.logger != nil {
		store.logger.Info("redis session store initialized",
			logger.Strings("addrs", cfg.Addrs))
	}

	return store, nil
}

// Save implements agentloop.SessionStore.
func (r *SessionStore) Save(ctx context.Context, session *agentloop.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.Histogram("agentloop.sessionstore.redis.save_duration").Observe(time.Since(start).Seconds())
		}
	}()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := r.client.SAdd(ctx, r.indexKey(), session.ID).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}

	if r.logger != nil {
		r.logger.Debug("saved session to redis",
			logger.String("session_id", session.ID),
			logger.Int("messages", len(session.Messages)))
	}
	if r.metrics != nil {
		r.metrics.Counter("agentloop.sessionstore.redis.save").Inc()
	}

	return nil
}

// Load implements agentloop.SessionStore.
func (r *SessionStore) Load(ctx context.Context, id string) (*agentloop.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.Histogram("agentloop.sessionstore.redis.load_duration").Observe(time.Since(start).Seconds())
		}
	}()

	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, agentloop.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session agentloop.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if r.metrics != nil {
		r.metrics.Counter("agentloop.sessionstore.redis.load").Inc()
	}

	return &session, nil
}

// List implements agentloop.SessionStore. Index entries whose value has
// disappeared are skipped.
func (r *SessionStore) List(ctx context.Context) ([]*agentloop.Session, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]*agentloop.Session, 0, len(ids))
	for _, id := range ids {
		session, err := r.Load(ctx, id)
		if err == agentloop.ErrSessionNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}

		out = append(out, session)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}

// Rename implements agentloop.SessionStore.
func (r *SessionStore) Rename(ctx context.Context, id, title string) error {
	session, err := r.Load(ctx, id)
	if err != nil {
		return err
	}

	session.Title = title
	session.UpdatedAt = time.Now()

	return r.Save(ctx, session)
}

// Delete implements agentloop.SessionStore.
func (r *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	if err := r.client.Del(ctx, r.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := r.client.SRem(ctx, r.indexKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}

	if r.metrics != nil {
		r.metrics.Counter("agentloop.sessionstore.redis.delete").Inc()
	}

	return nil
}

// Clear implements agentloop.SessionStore.
func (r *SessionStore) Clear(ctx context.Context) error {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, r.indexKey())

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (r *SessionStore) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	if r.logger != nil {
		r.logger.Info("redis session store closed")
	}

	return nil
}

func (r *SessionStore) sessionKey(id string) string {
	return r.prefix + id
}

func (r *SessionStore) indexKey() string {
	return r.prefix + "index"
}
