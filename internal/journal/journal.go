// Package journal ships per-room action records to a Redis queue, where the
// historian service picks them up for durable storage. The engine never
// blocks on it.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list holding pending action records.
var DefaultQueueName = "odin_actions"

// Record is one intent outcome as seen by the engine. Rejected intents are
// journaled too, with Committed false.
type Record struct {
	RoomCode    string                 `json:"room_code"`
	ActionIndex int                    `json:"action_index"`
	ActorID     string                 `json:"actor_id,omitempty"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Committed   bool                   `json:"committed"`
	Timestamp   int64                  `json:"timestamp"` // epoch millis
}

// Journal wraps the Redis client and queue name. A nil *Journal is a valid
// no-op sink.
type Journal struct {
	rdb   *redis.Client
	queue string
}

// Connect builds a journal from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - HISTORIAN_QUEUE_NAME (default "odin_actions")
func Connect() (*Journal, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Journal{
		rdb:   rdb,
		queue: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
	}, nil
}

// Publish serializes the record and pushes it onto the queue.
func (j *Journal) Publish(ctx context.Context, rec Record) error {
	if j == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}

// Pop blocks up to timeout waiting for the next record. Returns (nil, nil)
// when the queue stayed empty.
func (j *Journal) Pop(ctx context.Context, timeout time.Duration) (*Record, error) {
	res, err := j.rdb.BLPop(ctx, timeout, j.queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop on '%s': %w", j.queue, err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid action record: %w", err)
	}
	return &rec, nil
}

// Close releases the underlying Redis connection.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.rdb.Close()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
