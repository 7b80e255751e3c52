package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCmdable struct {
	mu     sync.Mutex
	keys   map[string]string
	ttls   map[string]time.Duration
	setErr error
	dels   []string
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{keys: make(map[string]string), ttls: make(map[string]time.Duration)}
}

// expire drops a key as if its TTL had run out.
func (f *fakeCmdable) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

func (f *fakeCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewBoolCmd(ctx)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	if _, exists := f.keys[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.keys[key] = value.(string)
	f.ttls[key] = ttl
	cmd.SetVal(true)
	return cmd
}

// Eval understands only the release script: compare the token, then delete.
func (f *fakeCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewCmd(ctx)
	if script != releaseScript || len(keys) != 1 || len(args) != 1 {
		cmd.SetErr(errors.New("unexpected script"))
		return cmd
	}
	if f.keys[keys[0]] != args[0] {
		cmd.SetVal(int64(0))
		return cmd
	}
	delete(f.keys, keys[0])
	f.dels = append(f.dels, keys[0])
	cmd.SetVal(int64(1))
	return cmd
}

func TestGuards_OneSendInFlight(t *testing.T) {
	guards := map[string]SendGuard{
		"memory": NewMemoryGuard(),
		"redis":  &RedisGuard{store: newFakeCmdable(), ttl: 30 * time.Second},
	}

	for name, guard := range guards {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			room := uuid.Must(uuid.NewV4())
			alice := uuid.Must(uuid.NewV4())
			bob := uuid.Must(uuid.NewV4())

			release, ok, err := guard.Acquire(ctx, room, alice)
			require.NoError(t, err)
			require.True(t, ok)

			_, ok, err = guard.Acquire(ctx, room, alice)
			require.NoError(t, err)
			assert.False(t, ok, "second send from the same sender must be refused")

			releaseBob, ok, err := guard.Acquire(ctx, room, bob)
			require.NoError(t, err)
			assert.True(t, ok, "other senders are independent")
			releaseBob()

			release()
			release()

			release, ok, err = guard.Acquire(ctx, room, alice)
			require.NoError(t, err)
			assert.True(t, ok, "guard must reopen after release")
			release()
		})
	}
}

func TestRedisGuard_TTLAndErrors(t *testing.T) {
	store := newFakeCmdable()
	guard := &RedisGuard{store: store, ttl: 15 * time.Second}
	room := uuid.Must(uuid.NewV4())
	sender := uuid.Must(uuid.NewV4())

	release, ok, err := guard.Acquire(context.Background(), room, sender)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, store.ttls[guardKey(room, sender)])
	release()
	assert.Equal(t, []string{guardKey(room, sender)}, store.dels)

	store.setErr = errors.New("connection refused")
	_, ok, err = guard.Acquire(context.Background(), room, sender)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestRedisGuard_ExpiredHolderKeepsNewerMarker(t *testing.T) {
	store := newFakeCmdable()
	guard := &RedisGuard{store: store, ttl: time.Second}
	room := uuid.Must(uuid.NewV4())
	sender := uuid.Must(uuid.NewV4())
	key := guardKey(room, sender)

	slowRelease, ok, err := guard.Acquire(context.Background(), room, sender)
	require.NoError(t, err)
	require.True(t, ok)

	store.expire(key)
	release, ok, err := guard.Acquire(context.Background(), room, sender)
	require.NoError(t, err)
	require.True(t, ok, "marker is free once the TTL lapsed")
	newer := store.keys[key]

	slowRelease()
	assert.Equal(t, newer, store.keys[key], "a stale holder must not delete the newer marker")

	_, ok, err = guard.Acquire(context.Background(), room, sender)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.NotContains(t, store.keys, key)
}
