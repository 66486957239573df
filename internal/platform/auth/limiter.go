package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts login attempts per key (the client IP) within a fixed
// window. Hit counts the attempt and decides in one step, so concurrent
// attempts cannot all slip past the limit; Reset clears the key after a
// successful login.
type LoginLimiter interface {
	// Hit records an attempt and reports whether it is within the limit and,
	// if not, how long until the window resets.
	Hit(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

type window struct {
	attempts int
	resetAt  time.Time
}

// MemoryLoginLimiter keeps windows in process memory.
type MemoryLoginLimiter struct {
	max    int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLoginLimiter(maxAttempts int, period time.Duration) *MemoryLoginLimiter {
	return &MemoryLoginLimiter{
		max:     maxAttempts,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLoginLimiter) Hit(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if len(l.windows) > 10_000 {
			l.sweepLocked(now)
		}
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}
	w.attempts++
	if w.attempts > l.max {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

func (l *MemoryLoginLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLoginLimiter) sweepLocked(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// hitScript returns the attempt count and the remaining window in ms.
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLoginLimiter shares windows across replicas through Redis. Callers
// should treat a Hit error as a rejection.
type RedisLoginLimiter struct {
	client *redis.Client
	prefix string
	max    int
	period time.Duration
}

func NewRedisLoginLimiter(client *redis.Client, prefix string, maxAttempts int, period time.Duration) (*RedisLoginLimiter, error) {
	if maxAttempts <= 0 || period <= 0 {
		return nil, errors.New("login limiter requires positive attempts and window")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "pv:login"
	}
	return &RedisLoginLimiter{client: client, prefix: prefix, max: maxAttempts, period: period}, nil
}

func (l *RedisLoginLimiter) key(k string) string {
	k = strings.TrimSpace(k)
	if k == "" {
		k = "unknown"
	}
	return l.prefix + ":" + k
}

func (l *RedisLoginLimiter) Hit(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := hitScript.Run(ctx, l.client, []string{l.key(key)}, l.period.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("record login attempt: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("record login attempt: unexpected reply %v", res)
	}
	if res[0] <= int64(l.max) {
		return true, 0, nil
	}
	return false, time.Duration(res[1]) * time.Millisecond, nil
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("reset login window: %w", err)
	}
	return nil
}
