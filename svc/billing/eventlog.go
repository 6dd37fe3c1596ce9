package billing

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLog remembers processed webhook event ids.
type EventLog interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

const eventKeyPrefix = "invoicely:stripe:event:"

// RedisEventLog keeps processed ids in Redis for a bounded time. The
// processor stops redelivering after a few days, so the TTL only needs to
// cover its retry window.
type RedisEventLog struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisEventLog(client redis.UniversalClient, ttl time.Duration) *RedisEventLog {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisEventLog{client: client, ttl: ttl}
}

func (l *RedisEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisEventLog) MarkProcessed(ctx context.Context, eventID string) error {
	return l.client.Set(ctx, eventKeyPrefix+eventID, time.Now().Unix(), l.ttl).Err()
}

// MemoryEventLog is an unbounded in-process EventLog for tests and local runs.
type MemoryEventLog struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{seen: make(map[string]struct{})}
}

func (l *MemoryEventLog) Seen(_ context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[eventID]
	return ok, nil
}

func (l *MemoryEventLog) MarkProcessed(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[eventID] = struct{}{}
	return nil
}
