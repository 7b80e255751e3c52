package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SendGuard lets one send per (room, sender) be in flight at a time.
type SendGuard interface {
	// Acquire returns ok=false when a send for the key is already in flight.
	// release must be called once the send finishes.
	Acquire(ctx context.Context, roomID, senderID uuid.UUID) (release func(), ok bool, err error)
}

func guardKey(roomID, senderID uuid.UUID) string {
	return fmt.Sprintf("chat:sending:%s:%s", roomID, senderID)
}

type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, roomID, senderID uuid.UUID) (func(), bool, error) {
	key := guardKey(roomID, senderID)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, false, nil
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, true, nil
}

type cmdable interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// releaseScript deletes the marker only while it still holds the caller's
// token, so a holder whose TTL lapsed cannot drop a newer sender's marker.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisGuard shares the in-flight marker between service replicas. The TTL
// bounds how long a crashed sender can block its own key.
type RedisGuard struct {
	store cmdable
	ttl   time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{store: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, roomID, senderID uuid.UUID) (func(), bool, error) {
	key := guardKey(roomID, senderID)

	token, err := uuid.NewV4()
	if err != nil {
		return nil, false, fmt.Errorf("guard: failed to generate token: %w", err)
	}

	ok, err := g.store.SetNX(ctx, key, token.String(), g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("guard: failed to set %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done when the send returns.
			delCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			deleted, err := g.store.Eval(delCtx, releaseScript, []string{key}, token.String()).Int64()
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("guard: failed to release send marker")
				return
			}
			if deleted == 0 {
				log.Warn().Str("key", key).Msg("guard: send marker expired before release")
			}
		})
	}, true, nil
}
