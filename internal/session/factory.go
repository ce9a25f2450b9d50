package session

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType names a session store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

var (
	ErrInvalidConfig    = errors.New("session: invalid store configuration")
	ErrInvalidStoreType = errors.New("session: invalid store type")
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient     *redis.Client
	redisPrefix     string
	cleanupInterval time.Duration
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisPrefix overrides the "session:" key prefix.
func WithRedisPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.redisPrefix = prefix
	}
}

// WithCleanupInterval sets the sweep interval of the memory store.
func WithCleanupInterval(d time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.cleanupInterval = d
	}
}

// NewStore creates a Store of the given type.
// For Redis, WithRedisClient is required.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStoreWithInterval(cfg.cleanupInterval), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		store := NewRedisStore(cfg.redisClient)
		if cfg.redisPrefix != "" {
			store.prefix = cfg.redisPrefix
		}
		return store, nil

	default:
		return nil, ErrInvalidStoreType
	}
}
