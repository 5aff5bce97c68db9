package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSubmissionInProgress is returned when the same operation is already running for a session.
var ErrSubmissionInProgress = errors.New("submission in progress")

// Locker guards against duplicate submissions of one operation within a session.
type Locker interface {
	// Acquire takes the lock or returns ErrSubmissionInProgress. The returned
	// release func is safe to call more than once.
	Acquire(ctx context.Context, sessionID, operation string) (release func(), err error)
}

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX and a TTL so a crashed request
// cannot block the session forever.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client redis.Cmdable, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, sessionID, operation string) (func(), error) {
	key := l.key(sessionID, operation)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", operation, err)
	}
	if !ok {
		return nil, ErrSubmissionInProgress
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
		})
	}, nil
}

func (l *RedisLocker) key(sessionID, operation string) string {
	return fmt.Sprintf("%s:%s:lock:%s", l.prefix, sessionID, operation)
}

// MemoryLocker implements Locker in process memory.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, sessionID, operation string) (func(), error) {
	key := sessionID + ":" + operation
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, ErrSubmissionInProgress
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
