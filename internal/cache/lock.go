package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the key
var ErrLockHeld = errors.New("lock is held by another process")

// Locker hands out exclusive, expiring locks keyed by name
type Locker interface {
	// Acquire returns a release func on success and ErrLockHeld if the key
	// is taken. The lock expires after ttl even if never released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, logger *slog.Logger) Locker {
	return &redisLocker{client: client, logger: logger}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		// Release must survive a cancelled request context
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release lock", "key", key, "error", err)
		}
	}
	return release, nil
}

// LocalLocker is an in-process Locker for single-instance runs and tests
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), nowFn: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return nil, ErrLockHeld
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == expiry {
				delete(l.held, key)
			}
		})
	}, nil
}

// ExamSetsLockKey names the regeneration lock of an exam
func ExamSetsLockKey(examID uint) string {
	return fmt.Sprintf("exam:%d:sets", examID)
}
