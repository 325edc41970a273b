package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bookwire/internal/logger"
)

const keyPrefix = "notify:sent:"

// Guard suppresses duplicate sends for redelivered events. Best effort
// only: delivery stays at-least-once, this just removes the common
// duplicate case where a record fails after its email already went out.
type Guard interface {
	// FirstDelivery reports whether this event id has not produced an email
	// yet, and marks it. Fails open: on a backend error the send proceeds,
	// since a duplicate email beats a lost one.
	FirstDelivery(ctx context.Context, eventID string) bool
}

type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisGuard(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, logger: log}
}

func (g *RedisGuard) FirstDelivery(ctx context.Context, eventID string) bool {
	key := fmt.Sprintf("%s%s", keyPrefix, eventID)

	first, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		g.logger.WarnwCtx(ctx, "Dedup guard unavailable, proceeding with send",
			"error", err,
		)
		return true
	}

	return first
}

// NopGuard disables duplicate suppression.
type NopGuard struct{}

func (NopGuard) FirstDelivery(context.Context, string) bool {
	return true
}

// MemoryGuard is the in-process implementation used in tests.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]bool)}
}

func (g *MemoryGuard) FirstDelivery(_ context.Context, eventID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen[eventID] {
		return false
	}
	g.seen[eventID] = true
	return true
}
