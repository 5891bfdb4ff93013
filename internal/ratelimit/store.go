// Package ratelimit provides the counter store behind the send rate limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is a per-key counter with a fixed expiry window. Incr performs
// an atomic check-and-increment: when the current count has reached the limit
// the counter is left untouched and allowed=false is returned, so a stored
// count never exceeds the limit.
type CounterStore interface {
	Incr(ctx context.Context, key string, limit int64, window time.Duration) (count int64, allowed bool, err error)
}

// checkAndIncr refuses the increment once the counter is at the limit and
// starts the expiry window on the first increment. Running as a script keeps
// the read and the write atomic under concurrent callers.
var checkAndIncr = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return -1
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return current
`)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a CounterStore backed by Redis. Keys are namespaced
// under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) CounterStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) Incr(ctx context.Context, key string, limit int64, window time.Duration) (int64, bool, error) {
	result, err := checkAndIncr.Run(ctx, s.client, []string{s.prefix + ":" + key}, limit, window.Milliseconds()).Int64()
	if err != nil {
		return 0, false, err
	}
	if result < 0 {
		return limit, false, nil
	}
	return result, true, nil
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an in-process CounterStore for single-node
// deployments and tests.
func NewMemoryStore() CounterStore {
	return &memoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *memoryStore) Incr(_ context.Context, key string, limit int64, window time.Duration) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: now.Add(window)}
		s.entries[key] = entry
	}

	if entry.count >= limit {
		return entry.count, false, nil
	}
	entry.count++
	return entry.count, true, nil
}
