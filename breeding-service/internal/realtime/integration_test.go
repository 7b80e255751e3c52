package realtime_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/realtime"
)

// Runs against a migrated database when BREEDING_TEST_DSN is set. The DSN
// must be in keyword/value form so both pgx and lib/pq accept it.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("BREEDING_TEST_DSN")
	if dsn == "" {
		t.Skip("BREEDING_TEST_DSN not set")
	}
	return dsn
}

type seeded struct {
	pool  *pgxpool.Pool
	chats chat.Repository
	room  *chat.Room
	alice uuid.UUID
}

// seedAcceptedMatch creates two owners with one pet each and an accepted
// match between them, returning the room created for it.
func seedAcceptedMatch(t *testing.T, dsn string) seeded {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	pets := pet.NewRepository(sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"))
	matches := match.NewRepository(pool)
	chats := chat.NewRepository(pool)

	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	rex := &pet.Pet{OwnerID: alice, Name: "Rex", Species: "dog", Gender: pet.GenderMale, AvailableForBreeding: true}
	luna := &pet.Pet{OwnerID: bob, Name: "Luna", Species: "dog", Gender: pet.GenderFemale, AvailableForBreeding: true}
	require.NoError(t, pets.Create(ctx, rex))
	require.NoError(t, pets.Create(ctx, luna))

	m := &match.Match{Pet: match.RefOnly(rex.ID), PotentialPartner: match.RefOnly(luna.ID), OwnerID: alice, PartnerOwnerID: bob, Status: match.StatusPending}
	require.NoError(t, matches.Create(ctx, m))
	require.ErrorIs(t, matches.Create(ctx, &match.Match{
		Pet: match.RefOnly(rex.ID), PotentialPartner: match.RefOnly(luna.ID), OwnerID: alice, PartnerOwnerID: bob, Status: match.StatusPending,
	}), match.ErrDuplicatePendingMatch)

	accepted, err := matches.UpdateStatus(ctx, m.ID, match.StatusPending, match.StatusAccepted)
	require.NoError(t, err)
	d, ok := accepted.Pet.Detail()
	require.True(t, ok)
	assert.Equal(t, "Rex", d.Name)

	_, err = matches.UpdateStatus(ctx, m.ID, match.StatusPending, match.StatusRejected)
	require.ErrorIs(t, err, match.ErrStatusChanged)

	room, created, err := chats.CreateRoomWithGreeting(ctx,
		&chat.Room{BreedingMatchID: m.ID, Owner1ID: alice, Owner2ID: bob},
		&chat.Message{SenderID: alice, Message: chat.Greeting("Rex", "Luna"), MessageType: chat.MessageSystem})
	require.NoError(t, err)
	require.True(t, created)

	return seeded{pool: pool, chats: chats, room: room, alice: alice}
}

func TestPostgres_ConcurrentRoomCreationYieldsOneRoom(t *testing.T) {
	dsn := testDSN(t)
	s := seedAcceptedMatch(t, dsn)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ids   = map[uuid.UUID]int{}
		fresh int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, created, err := s.chats.CreateRoomWithGreeting(ctx,
				&chat.Room{BreedingMatchID: s.room.BreedingMatchID, Owner1ID: s.room.Owner1ID, Owner2ID: s.room.Owner2ID},
				&chat.Message{SenderID: s.alice, Message: "dup", MessageType: chat.MessageSystem})
			assert.NoError(t, err)
			if err != nil {
				return
			}
			mu.Lock()
			ids[room.ID]++
			if created {
				fresh++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[uuid.UUID]int{s.room.ID: 4}, ids)
	assert.Zero(t, fresh)

	history, err := s.chats.ListMessages(ctx, s.room.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "only the first creator's greeting is stored")
	assert.Equal(t, chat.MessageSystem, history[0].MessageType)
}

func TestPGListener_PushesInsertedMessages(t *testing.T) {
	dsn := testDSN(t)
	s := seedAcceptedMatch(t, dsn)

	hub := realtime.NewHub()
	defer hub.Close()
	sub := hub.Subscribe(s.room.ID)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := realtime.NewPGListener(realtime.ListenerConfig{DSN: dsn}, realtime.NewDispatcher(s.chats, hub))
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	// LISTEN is registered asynchronously; keep inserting until one arrives.
	deadline := time.After(5 * time.Second)
	for {
		msg := &chat.Message{ChatRoomID: s.room.ID, SenderID: s.alice, Message: "¿Hola?", MessageType: chat.MessageText}
		require.NoError(t, s.chats.InsertMessage(context.Background(), msg))

		select {
		case got := <-sub.Messages():
			assert.Equal(t, s.room.ID, got.ChatRoomID)
			assert.Equal(t, "¿Hola?", got.Message)
			cancel()
			require.NoError(t, <-done)
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("no notification pushed")
		}
	}
}
