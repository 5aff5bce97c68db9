package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend hands out storage scoped to one browser session.
type Backend interface {
	For(sessionID string) Storage
}

// RedisBackend stores slots under "<prefix>:<sessionID>:<slot>".
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend builds a backend. ttl is refreshed on every write.
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisBackend{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) For(sessionID string) Storage {
	return &redisStorage{backend: b, sessionID: sessionID}
}

func (b *RedisBackend) key(sessionID, slot string) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, sessionID, slot)
}

type redisStorage struct {
	backend   *RedisBackend
	sessionID string
}

func (s *redisStorage) Load(ctx context.Context, slot string) ([]byte, bool, error) {
	val, err := s.backend.client.Get(ctx, s.backend.key(s.sessionID, slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", slot, err)
	}
	return val, true, nil
}

func (s *redisStorage) Save(ctx context.Context, slot string, value []byte) error {
	if err := s.backend.client.Set(ctx, s.backend.key(s.sessionID, slot), value, s.backend.ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", slot, err)
	}
	return nil
}

// maxUpdateAttempts bounds optimistic retries when another request writes the same slot.
const maxUpdateAttempts = 10

// Update runs fn inside WATCH/MULTI so a write racing with another request's
// write or delete is retried against the fresh value.
func (s *redisStorage) Update(ctx context.Context, slot string, fn UpdateFunc) error {
	key := s.backend.key(s.sessionID, slot)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		ok := true
		if errors.Is(err, redis.Nil) {
			cur, ok = nil, false
		} else if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.backend.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.backend.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", slot, err)
		}
		return nil
	}
	return fmt.Errorf("update %s: %w", slot, redis.TxFailedErr)
}

func (s *redisStorage) Remove(ctx context.Context, slot string) error {
	if err := s.backend.client.Del(ctx, s.backend.key(s.sessionID, slot)).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", slot, err)
	}
	return nil
}

// MemoryBackend keeps every session in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]*MemoryStorage
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]*MemoryStorage)}
}

func (b *MemoryBackend) For(sessionID string) Storage {
	return b.Session(sessionID)
}

// Session returns the concrete storage of sessionID, creating it on first use.
func (b *MemoryBackend) Session(sessionID string) *MemoryStorage {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		s = NewMemoryStorage()
		b.sessions[sessionID] = s
	}
	return s
}
