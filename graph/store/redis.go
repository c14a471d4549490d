package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of Store[S] and History[S].
//
// Each run is a sorted set scored by step number whose members are JSON
// step records; checkpoints are plain string keys. With a non-zero TTL every
// write refreshes the key's expiry, so idle conversations age out.
type RedisStore[S any] struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix string
	ttl    time.Duration
}

// WithKeyPrefix sets the key namespace. Default "teamgraph:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *redisConfig) { c.prefix = prefix }
}

// WithTTL expires runs and checkpoints after ttl without writes.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *redisConfig) { c.ttl = ttl }
}

// NewRedisStore wraps an existing client. The caller keeps ownership of client
// unless it calls Close on the store.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	st := store.NewRedisStore[graph.State](client, store.WithTTL(24*time.Hour))
func NewRedisStore[S any](client redis.UniversalClient, opts ...RedisOption) *RedisStore[S] {
	cfg := redisConfig{prefix: "teamgraph:"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RedisStore[S]{client: client, keyPrefix: cfg.prefix, ttl: cfg.ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis[S any](ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore[S], error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore[S](client, opts...), nil
}

func (r *RedisStore[S]) stepsKey(runID string) string {
	return r.keyPrefix + "run:" + runID
}

func (r *RedisStore[S]) checkpointKey(cpID string) string {
	return r.keyPrefix + "cp:" + cpID
}

// SaveStep implements Store.
func (r *RedisStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	data, err := json.Marshal(StepRecord[S]{Step: step, NodeID: nodeID, State: state, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	key := r.stepsKey(runID)
	score := strconv.Itoa(step)
	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, score, score)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(step), Member: data})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (r *RedisStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	members, err := r.client.ZRevRange(ctx, r.stepsKey(runID), 0, 0).Result()
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if len(members) == 0 {
		return state, 0, ErrNotFound
	}
	var rec StepRecord[S]
	if err := json.Unmarshal([]byte(members[0]), &rec); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return rec.State, rec.Step, nil
}

// SaveCheckpoint implements Store.
func (r *RedisStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	data, err := json.Marshal(Checkpoint[S]{State: state, Step: step, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := r.client.Set(ctx, r.checkpointKey(cpID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (r *RedisStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	data, err := r.client.Get(ctx, r.checkpointKey(cpID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var cp Checkpoint[S]
	if err := json.Unmarshal(data, &cp); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return cp.State, cp.Step, nil
}

// Steps implements History.
func (r *RedisStore[S]) Steps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	members, err := r.client.ZRange(ctx, r.stepsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}
	out := make([]StepRecord[S], 0, len(members))
	for _, m := range members {
		var rec StepRecord[S]
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping checks the connection.
func (r *RedisStore[S]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore[S]) Close() error {
	return r.client.Close()
}
