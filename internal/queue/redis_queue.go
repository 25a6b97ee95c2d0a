package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisBlockInterval = 2 * time.Second
	pendingSuffix      = ":pending"
)

// RedisQueue is a list-backed queue for deployments without SQS. Messages are
// pushed with LPUSH and claimed with BLMOVE into a per-consumer pending list,
// so an unacknowledged message survives a worker crash and can be requeued.
type RedisQueue struct {
	client  *redis.Client
	key     string
	pending string
}

// NewRedisQueue constructs a Redis-backed queue on the given list key.
func NewRedisQueue(addr, key string) (*RedisQueue, error) {
	if key == "" {
		return nil, fmt.Errorf("redis queue key is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisQueue{
		client:  client,
		key:     key,
		pending: key + pendingSuffix,
	}, nil
}

// Close releases the underlying Redis connection pool.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Send pushes a message onto the queue list.
func (q *RedisQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode redis message: %w", err)
	}
	envelope := uuid.NewString() + "|" + string(payload)
	if err := q.client.LPush(ctx, q.key, envelope).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", q.key, err)
	}
	return nil
}

// Receive blocks up to redisBlockInterval for one message and moves it to the
// pending list until acknowledged.
func (q *RedisQueue) Receive(ctx context.Context) ([]Delivery, error) {
	envelope, err := q.client.BLMove(ctx, q.key, q.pending, "RIGHT", "LEFT", redisBlockInterval).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis blmove %s: %w", q.key, err)
	}

	body := envelope
	if idx := strings.IndexByte(envelope, '|'); idx >= 0 {
		body = envelope[idx+1:]
	}
	return []Delivery{{Body: body, Receipt: envelope, ReceiveCount: 1}}, nil
}

// Ack removes an acknowledged message from the pending list.
func (q *RedisQueue) Ack(ctx context.Context, receipt string) error {
	if receipt == "" {
		return fmt.Errorf("redis ack: missing receipt")
	}
	if err := q.client.LRem(ctx, q.pending, 1, receipt).Err(); err != nil {
		return fmt.Errorf("redis lrem %s: %w", q.pending, err)
	}
	return nil
}

// RequeuePending moves any unacknowledged messages back onto the main list.
// Called at worker startup to recover deliveries orphaned by a crash.
func (q *RedisQueue) RequeuePending(ctx context.Context) (int, error) {
	moved := 0
	for {
		envelope, err := q.client.RPopLPush(ctx, q.pending, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, fmt.Errorf("redis rpoplpush %s: %w", q.pending, err)
		}
		_ = envelope
		moved++
	}
}

var (
	_ Client   = (*RedisQueue)(nil)
	_ Consumer = (*RedisQueue)(nil)
)
