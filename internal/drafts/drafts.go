// Package drafts is the Redis-backed ephemeral draft store. A draft is the
// unsaved editor state for a user's prompt-in-progress; it survives page
// reloads but expires on its own after a TTL. Drafts are convenience state,
// never the system of record.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// ErrNoDraft indicates the user has no live draft.
var ErrNoDraft = errors.New("drafts: no draft")

// DefaultTTL bounds how long an untouched draft survives.
const DefaultTTL = 24 * time.Hour

// Draft is the ephemeral editor state.
type Draft struct {
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Tags    []string  `json:"tags,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

// Config for the draft store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all draft keys. ENV: DRAFTS_KEY_PREFIX
	KeyPrefix string `env:"DRAFTS_KEY_PREFIX,default=pv:drafts:"`
	// TTL for untouched drafts. ENV: DRAFTS_TTL
	TTL time.Duration `env:"DRAFTS_TTL,default=24h"`
}

// Store holds drafts in Redis, one key per user.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func New(cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("drafts: redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "pv:drafts:"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Store{client: cl, keyPrefix: prefix, ttl: ttl}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv() (*Store, error) {
	var cfg Config
	_ = envdecode.Decode(&cfg)
	return New(cfg)
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(userID string) string { return s.keyPrefix + userID }

// Save stores the user's draft, resetting the TTL.
func (s *Store) Save(ctx context.Context, userID string, d *Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("drafts: save: %w", err)
	}
	return nil
}

// Load returns the user's live draft, or ErrNoDraft.
func (s *Store) Load(ctx context.Context, userID string) (*Draft, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("drafts: load: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("drafts: decode: %w", err)
	}
	return &d, nil
}

// Discard removes the user's draft. Discarding a missing draft is a no-op.
func (s *Store) Discard(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("drafts: discard: %w", err)
	}
	return nil
}
