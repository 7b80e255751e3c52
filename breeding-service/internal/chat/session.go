package chat

import (
	"sync"

	"github.com/gofrs/uuid"
)

// Subscription delivers messages inserted into one room.
type Subscription interface {
	Messages() <-chan Message
	Close()
}

type Subscriber interface {
	Subscribe(roomID uuid.UUID) Subscription
}

// Session is one viewer's live view of a room: the history at open time
// followed by pushed messages that were not part of it.
type Session struct {
	RoomID uuid.UUID

	feed    *Feed
	history []Message
	sub     Subscription
	updates chan Message
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newSession(roomID uuid.UUID, sub Subscription, history []Message) *Session {
	s := &Session{
		RoomID:  roomID,
		feed:    NewFeed(),
		sub:     sub,
		updates: make(chan Message, 16),
		done:    make(chan struct{}),
	}
	s.feed.Ingest(history...)
	s.history = s.feed.Messages()

	s.wg.Add(1)
	go s.pump()
	return s
}

func (s *Session) pump() {
	defer s.wg.Done()
	defer close(s.updates)

	in := s.sub.Messages()
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			for _, fresh := range s.feed.Ingest(m) {
				select {
				case s.updates <- fresh:
				case <-s.done:
					return
				}
			}
		}
	}
}

// History is the ordered log as it was when the session opened.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Updates yields messages that arrived after the history, each once. It is
// closed when the session or its subscription closes.
func (s *Session) Updates() <-chan Message {
	return s.updates
}

// Messages is the full ordered log including updates received so far.
func (s *Session) Messages() []Message {
	return s.feed.Messages()
}

func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.sub.Close()
		s.wg.Wait()
	})
}
