// Package mailq is a small redis-backed job queue for outbound email.
// Producers enqueue fire-and-forget; a background worker drains the list and
// hands each message to a Sender, retrying transient failures with
// exponential backoff up to a bounded attempt count (at-least-once).
package mailq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the redis list the queue lives on.
const DefaultKey = "gatehouse:mailq"

// Message is one email delivery job. Attempts counts deliveries already
// tried; producers leave it zero.
type Message struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	Attempts int      `json:"attempts"`
}

// Queue wraps a redis list used as a FIFO job queue (LPUSH / BRPOP).
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue returns a Queue on the given redis client. An empty key selects
// DefaultKey.
func NewQueue(rdb *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{rdb: rdb, key: key}
}

// Enqueue pushes a message onto the queue. Callers on the request path
// treat this as fire-and-forget: delivery outcome is the worker's problem.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailq: marshal message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("mailq: enqueue: %w", err)
	}
	return nil
}

// Len reports the number of messages currently waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("mailq: len: %w", err)
	}
	return n, nil
}

// retryKey is the sorted set holding messages parked until their backoff
// window elapses, scored by ready time in unix milliseconds.
func (q *Queue) retryKey() string { return q.key + ":retry" }

// ScheduleRetry parks a message in redis until readyAt. Parking in redis
// rather than a process-local timer means a worker shutdown cannot lose a
// retry awaiting its backoff window.
func (q *Queue) ScheduleRetry(ctx context.Context, msg Message, readyAt time.Time) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailq: marshal message: %w", err)
	}
	err = q.rdb.ZAdd(ctx, q.retryKey(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("mailq: schedule retry: %w", err)
	}
	return nil
}

// PromoteDue moves every parked retry whose ready time has passed back onto
// the queue, reporting how many were moved. The ZRem guard keeps a retry
// from being promoted twice when workers race.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.rdb.ZRangeByScore(ctx, q.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("mailq: list due retries: %w", err)
	}

	moved := 0
	for _, payload := range due {
		removed, err := q.rdb.ZRem(ctx, q.retryKey(), payload).Result()
		if err != nil {
			return moved, fmt.Errorf("mailq: unpark retry: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
			return moved, fmt.Errorf("mailq: requeue retry: %w", err)
		}
		moved++
	}
	return moved, nil
}

// RetryLen reports the number of messages parked awaiting retry.
func (q *Queue) RetryLen(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.retryKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("mailq: retry len: %w", err)
	}
	return n, nil
}
