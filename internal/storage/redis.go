package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the snapshot when no key is configured.
const DefaultRedisKey = "p2pwatcher:samples"

const snapshotVersion = 1

type snapshotEnvelope struct {
	Version int      `json:"version"`
	Samples []Sample `json:"samples"`
}

// RedisGateway stores the snapshot as one JSON value. A single SET replaces
// it atomically.
type RedisGateway struct {
	client *redis.Client
	key    string
}

// NewRedisGateway wraps a client.
func NewRedisGateway(client *redis.Client, key string) *RedisGateway {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisGateway{client: client, key: key}
}

// LoadAll fetches and decodes the snapshot. A missing key is an empty history.
func (r *RedisGateway) LoadAll(ctx context.Context) ([]Sample, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decodeSnapshot(data)
}

// SaveAll replaces the snapshot.
func (r *RedisGateway) SaveAll(ctx context.Context, samples []Sample) error {
	data, err := encodeSnapshot(samples)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisGateway) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisGateway) Close() error {
	return r.client.Close()
}

func encodeSnapshot(samples []Sample) ([]byte, error) {
	if samples == nil {
		samples = []Sample{}
	}
	data, err := json.Marshal(snapshotEnvelope{Version: snapshotVersion, Samples: samples})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) ([]Sample, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", env.Version)
	}
	return env.Samples, nil
}

var (
	_ Gateway = (*RedisGateway)(nil)
	_ Pinger  = (*RedisGateway)(nil)
)
