package chat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
)

type fakeSubscription struct {
	ch     chan chat.Message
	once   sync.Once
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{ch: make(chan chat.Message, 8), closed: make(chan struct{})}
}

func (f *fakeSubscription) Messages() <-chan chat.Message { return f.ch }

func (f *fakeSubscription) Close() {
	f.once.Do(func() { close(f.closed) })
}

func (f *fakeSubscription) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*fakeSubscription
}

func (f *fakeSubscriber) Subscribe(roomID uuid.UUID) chat.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[uuid.UUID]*fakeSubscription)
	}
	sub := newFakeSubscription()
	f.subs[roomID] = sub
	return sub
}

func (f *fakeSubscriber) get(roomID uuid.UUID) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[roomID]
}

func receive(t *testing.T, ch <-chan chat.Message) chat.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "updates channel closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
	return chat.Message{}
}

func TestSession_PushedDuplicatesOfHistoryAreDropped(t *testing.T) {
	env := newServiceEnv(t)
	greeting := msgAt(0, "hola")
	env.repo.On("GetRoomByID", anyCtx, env.room.ID).Return(env.room, nil).Once()
	env.repo.On("ListMessages", anyCtx, env.room.ID).Return([]chat.Message{greeting}, nil).Once()

	session, err := env.svc.Open(ctx(), env.alice, env.room.ID)
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, []string{"hola"}, texts(session.History()))

	sub := env.subs.get(env.room.ID)
	require.NotNil(t, sub)
	reply := msgAt(time.Second, "reply")
	sub.ch <- greeting
	sub.ch <- reply
	sub.ch <- reply

	got := receive(t, session.Updates())
	assert.Equal(t, reply.ID, got.ID)

	select {
	case m := <-session.Updates():
		t.Fatalf("unexpected duplicate update %q", m.Message)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []string{"hola", "reply"}, texts(session.Messages()))
}

func TestSession_CloseIsIdempotentAndClosesSubscription(t *testing.T) {
	env := newServiceEnv(t)
	env.repo.On("GetRoomByID", anyCtx, env.room.ID).Return(env.room, nil).Once()
	env.repo.On("ListMessages", anyCtx, env.room.ID).Return([]chat.Message{}, nil).Once()

	session, err := env.svc.Open(ctx(), env.bob, env.room.ID)
	require.NoError(t, err)

	session.Close()
	session.Close()

	assert.True(t, env.subs.get(env.room.ID).isClosed())
	_, ok := <-session.Updates()
	assert.False(t, ok, "updates must be closed")
}

func TestSession_EndsWhenSubscriptionCloses(t *testing.T) {
	env := newServiceEnv(t)
	env.repo.On("GetRoomByID", anyCtx, env.room.ID).Return(env.room, nil).Once()
	env.repo.On("ListMessages", anyCtx, env.room.ID).Return(nil, nil).Once()

	session, err := env.svc.Open(ctx(), env.alice, env.room.ID)
	require.NoError(t, err)
	defer session.Close()

	close(env.subs.get(env.room.ID).ch)

	select {
	case _, ok := <-session.Updates():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("updates not closed after subscription ended")
	}
}
