package monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultFailureThreshold is the consecutive failure count that raises an alert.
const DefaultFailureThreshold = 20

// FailureCounter tracks consecutive fetch failures per product.
type FailureCounter interface {
	// Increment records one more failure and returns the new count.
	Increment(ctx context.Context, productID int64) (int, error)
	// Reset clears the count after a successful fetch.
	Reset(ctx context.Context, productID int64) error
}

// MemoryFailureCounter keeps counts in process memory. Counts are lost on
// restart.
type MemoryFailureCounter struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewMemoryFailureCounter creates an empty counter.
func NewMemoryFailureCounter() *MemoryFailureCounter {
	return &MemoryFailureCounter{counts: make(map[int64]int)}
}

// Increment implements FailureCounter.
func (c *MemoryFailureCounter) Increment(_ context.Context, productID int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[productID]++
	return c.counts[productID], nil
}

// Reset implements FailureCounter.
func (c *MemoryFailureCounter) Reset(_ context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, productID)
	return nil
}

const (
	failureKeyPrefix = "pricewatch:failures:"
	failureKeyTTL    = 30 * 24 * time.Hour
)

// RedisFailureCounter shares counts across replicas and restarts.
type RedisFailureCounter struct {
	client *redis.Client
}

// NewRedisFailureCounter creates a counter backed by client.
func NewRedisFailureCounter(client *redis.Client) *RedisFailureCounter {
	return &RedisFailureCounter{client: client}
}

func failureKey(productID int64) string {
	return failureKeyPrefix + strconv.FormatInt(productID, 10)
}

// Increment implements FailureCounter.
func (c *RedisFailureCounter) Increment(ctx context.Context, productID int64) (int, error) {
	key := failureKey(productID)

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, failureKeyTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment failure count for product %d: %w", productID, err)
	}
	return int(incr.Val()), nil
}

// Reset implements FailureCounter.
func (c *RedisFailureCounter) Reset(ctx context.Context, productID int64) error {
	if err := c.client.Del(ctx, failureKey(productID)).Err(); err != nil {
		return fmt.Errorf("reset failure count for product %d: %w", productID, err)
	}
	return nil
}
