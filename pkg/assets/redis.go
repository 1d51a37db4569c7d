package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces artifact keys.
const DefaultRedisKeyPrefix = "loadforecaster:asset:"

// RedisSource loads artifacts stored as plain string values in Redis.
// It lets several forecaster replicas share one published model and scaler
// without baking them into the image.
type RedisSource struct {
	client *redis.Client
	prefix string
	mu     sync.RWMutex
}

var _ Pinger = (*RedisSource)(nil)

// NewRedisSource creates a new Redis-backed source.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - prefix: key prefix prepended to artifact names (empty uses DefaultRedisKeyPrefix)
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisSource(addr, password string, db int, prefix string) (*RedisSource, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisSource{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisSource) Name() string { return "redis" }

// Key returns the Redis key holding the artifact called name.
func (r *RedisSource) Key(name string) string {
	return r.prefix + name
}

// Load fetches the artifact stored under Key(name).
func (r *RedisSource) Load(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("asset name required")
	}

	client, err := r.conn()
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, r.Key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: redis key %q", ErrNotFound, r.Key(name))
		}
		return nil, fmt.Errorf("failed to get asset from redis: %w", err)
	}

	return data, nil
}

// Put publishes an artifact under Key(name) without expiration.
func (r *RedisSource) Put(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return errors.New("asset name required")
	}

	client, err := r.conn()
	if err != nil {
		return err
	}

	if err := client.Set(ctx, r.Key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store asset in redis: %w", err)
	}
	return nil
}

func (r *RedisSource) conn() (*redis.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.client == nil {
		return nil, errors.New("redis source is closed")
	}
	return r.client, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
// Returns an error if the connection is unavailable.
func (r *RedisSource) Ping(ctx context.Context) error {
	client, err := r.conn()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}
