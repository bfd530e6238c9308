// Package deadletter sinks input messages the ingestion loop could not
// decode after decode_retries attempts, so operators can inspect and
// replay them without blocking the pair's partition.
package deadletter

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Sink accepts a raw, undecodable payload for symbol.
type Sink interface {
	Push(ctx context.Context, symbol string, payload []byte) error
}

// RedisSink pushes onto a per-symbol Redis list, one entry per poisoned
// message, via redis/go-redis/v9.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(addr string) *RedisSink {
	return &RedisSink{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *RedisSink) Push(ctx context.Context, symbol string, payload []byte) error {
	return s.client.LPush(ctx, key(symbol), payload).Err()
}

func (s *RedisSink) Close() error { return s.client.Close() }

func key(symbol string) string { return symbol + "_deadletter" }

// NoopSink discards poisoned messages. Selected when redis_config.addr is
// unset: a deployment without Redis still runs, it simply logs and drops
// poison messages instead of archiving them.
type NoopSink struct{}

func (NoopSink) Push(ctx context.Context, symbol string, payload []byte) error { return nil }
