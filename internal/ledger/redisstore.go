package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisLedgerKey = "reconciler:strike_ledger"

// RedisStore persists the ledger as a single JSON value in Redis, for
// deployments where the worker has no durable filesystem. Deleting the key
// resets all strikes, same as deleting the ledger file.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Load reads the ledger key. An absent key is an empty ledger.
func (s *RedisStore) Load(ctx context.Context) (State, error) {
	data, err := s.client.Get(ctx, redisLedgerKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read ledger from redis: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("failed to parse ledger from redis: %w", err)
	}
	if state.Events == nil {
		state.Events = make(map[string]Entry)
	}
	if state.Fights == nil {
		state.Fights = make(map[string]Entry)
	}
	return state, nil
}

// Save replaces the ledger key. No TTL: strike state must survive arbitrary
// gaps between runs.
func (s *RedisStore) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := s.client.Set(ctx, redisLedgerKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write ledger to redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
