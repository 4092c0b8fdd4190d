// Package coordination keeps scheduler cycles single-flight across replicas.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can block other replicas.
const DefaultLockTTL = 2 * time.Minute

var (
	// ErrLockNotAcquired is returned when another holder owns the lock.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when the lease has expired or was taken over.
	ErrLockNotHeld = errors.New("lock not held")
)

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Lock is a Redis mutex identified by key. Each acquisition gets its own
// token, so a Lock value can be reused across cycles.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewLock creates a lock on key. A non-positive ttl uses DefaultLockTTL.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Lock{client: client, key: key, ttl: ttl}
}

// Key returns the Redis key of the lock.
func (l *Lock) Key() string { return l.key }

// TryAcquire takes the lock without waiting. The returned lease refreshes its
// TTL in the background until Release is called.
func (l *Lock) TryAcquire(ctx context.Context) (*Lease, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	lease := &Lease{
		lock:  l,
		token: token,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		lost:  make(chan struct{}),
	}
	go lease.keepAlive()
	return lease, nil
}

// Lease is a held lock.
type Lease struct {
	lock  *Lock
	token string
	stop  chan struct{}
	done  chan struct{}
	lost  chan struct{}
	err   error
}

// Token identifies this acquisition.
func (ls *Lease) Token() string { return ls.token }

// Lost is closed when a refresh fails. The holder must assume another
// replica can take the lock from then on.
func (ls *Lease) Lost() <-chan struct{} { return ls.lost }

// Err returns the refresh failure once Lost is closed, and nil before.
func (ls *Lease) Err() error {
	select {
	case <-ls.lost:
		return ls.err
	default:
		return nil
	}
}

func (ls *Lease) keepAlive() {
	defer close(ls.done)

	const refreshDivisor = 3
	ticker := time.NewTicker(ls.lock.ttl / refreshDivisor)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stop:
			return
		case <-ticker.C:
			if err := ls.refresh(); err != nil {
				ls.err = err
				close(ls.lost)
				return
			}
		}
	}
}

func (ls *Lease) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), ls.lock.ttl/2)
	defer cancel()
	return ls.extend(ctx)
}

func (ls *Lease) extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, ls.lock.client, []string{ls.lock.key}, ls.token, ls.lock.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", ls.lock.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Release stops the refresh loop and deletes the key if this lease still
// owns it.
func (ls *Lease) Release(ctx context.Context) error {
	select {
	case <-ls.stop:
	default:
		close(ls.stop)
	}
	<-ls.done

	n, err := releaseScript.Run(ctx, ls.lock.client, []string{ls.lock.key}, ls.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", ls.lock.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
