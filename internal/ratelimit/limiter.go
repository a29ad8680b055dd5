package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"servicechat/internal/config"
)

// ErrLimited is returned once a key has used up its window.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter admits or rejects one hit for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// New picks the limiter described by cfg. counter is only used by the redis
// backend and may be nil otherwise.
func New(cfg config.RateLimitConfig, counter Counter) (Limiter, error) {
	if cfg.Requests == nil || *cfg.Requests <= 0 {
		return Unlimited{}, nil
	}
	switch cfg.Backend {
	case "redis":
		if counter == nil {
			return nil, errors.New("redis rate limit backend needs a redis client")
		}
		return NewRedis(counter, *cfg.Requests, cfg.Window(), "servicechat:ratelimit"), nil
	case "", "memory":
		return NewMemory(*cfg.Requests, cfg.Window()), nil
	default:
		return nil, fmt.Errorf("invalid rate limit backend: %s", cfg.Backend)
	}
}

// Unlimited admits everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) error { return nil }

// pruneEvery bounds how many distinct keys the memory limiter tracks before it
// drops the ones with no hits left in the window.
const pruneEvery = 4096

// Memory is a sliding window limiter kept in process memory.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *Memory) Allow(_ context.Context, key string) error {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	queue := trimBefore(l.hits[key], cutoff)
	if len(queue) >= l.limit {
		l.hits[key] = queue
		return fmt.Errorf("%s: %w", key, ErrLimited)
	}
	l.hits[key] = append(queue, now)

	if len(l.hits) >= pruneEvery {
		l.pruneLocked(cutoff)
	}
	return nil
}

func (l *Memory) pruneLocked(cutoff time.Time) {
	for key, queue := range l.hits {
		if queue = trimBefore(queue, cutoff); len(queue) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = queue
		}
	}
}

func trimBefore(queue []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	return queue[idx:]
}

// Counter is the shared store behind the redis limiter.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Redis is a fixed window limiter shared by every replica using the same redis.
type Redis struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
}

func NewRedis(counter Counter, limit int, window time.Duration, prefix string) *Redis {
	if window < time.Second {
		window = time.Second
	}
	return &Redis{counter: counter, limit: limit, window: window, prefix: prefix}
}

func (l *Redis) Allow(ctx context.Context, key string) error {
	bucket := time.Now().Unix() / int64(l.window/time.Second)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)
	count, err := l.counter.IncrWindow(ctx, redisKey, l.window)
	if err != nil {
		return fmt.Errorf("count hit for %s: %w", key, err)
	}
	if count > int64(l.limit) {
		return fmt.Errorf("%s: %w", key, ErrLimited)
	}
	return nil
}
