// Package idempotency remembers which order-creation requests were already
// answered, keyed by the client's Idempotency-Key header.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultTTL is how long a key and its recorded result are kept.
const DefaultTTL = 24 * time.Hour

const (
	keyPrefix      = "idempotent-key:"
	pendingMarker  = "pending"
	pendingTimeout = time.Minute
)

// ErrInProgress is returned by Begin when another request holding the same
// key has not finished yet.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

// Store records idempotency keys.
//
// Begin claims key. It returns (nil, nil) when the caller now owns the key,
// the stored result when the key already completed, or ErrInProgress.
// Complete stores the result of the owning request; Abandon releases a claim
// whose request failed so that it can be retried.
type Store interface {
	Begin(ctx context.Context, key string) ([]byte, error)
	Complete(ctx context.Context, key string, result []byte) error
	Abandon(ctx context.Context, key string) error
}

// RedisStore keeps keys in Redis with SETNX, so concurrent instances agree
// on which request owns a key.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl uses DefaultTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Begin implements Store.
func (s *RedisStore) Begin(ctx context.Context, key string) ([]byte, error) {
	redisKey := keyPrefix + key
	claimed, err := s.rdb.SetNX(ctx, redisKey, pendingMarker, pendingTimeout).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	val, err := s.rdb.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if string(val) == pendingMarker {
		return nil, ErrInProgress
	}
	return val, nil
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, key string, result []byte) error {
	if err := s.rdb.Set(ctx, keyPrefix+key, result, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent result: %w", err)
	}
	return nil
}

// Abandon implements Store.
func (s *RedisStore) Abandon(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

type memoryEntry struct {
	result    []byte
	pending   bool
	expiresAt time.Time
}

// MemoryStore is a single-process Store used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore. A zero ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Begin implements Store.
func (s *MemoryStore) Begin(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		if entry.pending {
			return nil, ErrInProgress
		}
		return entry.result, nil
	}
	s.entries[key] = memoryEntry{pending: true, expiresAt: now.Add(pendingTimeout)}
	return nil, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{result: append([]byte(nil), result...), expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Abandon implements Store.
func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
