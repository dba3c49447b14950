package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/redis/go-redis/v9"
)

// tokenKey is the single durable entry holding the bearer token.
const tokenKey = "jwt"

// Common errors for token store construction.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Store persists the bearer token across runs.
type Store interface {
	// Load returns the stored token, or "" when none was saved.
	Load(ctx context.Context) (string, error)

	// Save overwrites the stored token. An empty token is stored as empty.
	Save(ctx context.Context, token string) error

	// Close releases any resources.
	Close() error
}

// StoreType selects a Store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypePebble StoreType = "pebble"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption is a functional option for configuring a token store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	dataPath    string
	fs          vfs.FS
	redisClient *redis.Client
	redisKey    string
	redisTTL    time.Duration
}

// WithDataPath sets the directory of the Pebble store.
func WithDataPath(dir string) StoreOption {
	return func(c *storeConfig) { c.dataPath = dir }
}

// WithFS sets the filesystem Pebble writes to (vfs.NewMem() in tests).
func WithFS(fs vfs.FS) StoreOption {
	return func(c *storeConfig) { c.fs = fs }
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisKey overrides the Redis key holding the token.
func WithRedisKey(key string) StoreOption {
	return func(c *storeConfig) { c.redisKey = key }
}

// WithRedisTTL sets the TTL of the Redis key. Zero keeps it forever.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// NewStore creates a token Store of the given type.
// Pebble requires WithDataPath (or WithFS); Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{redisKey: "edabank:" + tokenKey}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return &memoryStore{}, nil

	case StoreTypePebble:
		if cfg.dataPath == "" && cfg.fs == nil {
			return nil, ErrInvalidConfig
		}
		return openPebbleStore(cfg.dataPath, cfg.fs)

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{client: cfg.redisClient, key: cfg.redisKey, ttl: cfg.redisTTL}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// memoryStore keeps the token for the lifetime of the process only.
type memoryStore struct {
	mu    sync.RWMutex
	token string
}

func (s *memoryStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *memoryStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memoryStore) Close() error { return nil }

// redisStore keeps the token under one Redis key so several consoles can
// share a login.
type redisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (s *redisStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *redisStore) Save(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, s.ttl).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// pebbleStore keeps the token in a local PebbleDB under a single key.
type pebbleStore struct {
	db *pebble.DB
}

func openPebbleStore(dir string, fs vfs.FS) (*pebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &pebbleStore{db: db}, nil
}

func (s *pebbleStore) Load(ctx context.Context) (string, error) {
	data, closer, err := s.db.Get([]byte(tokenKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	defer closer.Close()
	return string(data), nil
}

func (s *pebbleStore) Save(ctx context.Context, token string) error {
	return s.db.Set([]byte(tokenKey), []byte(token), pebble.Sync)
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}
