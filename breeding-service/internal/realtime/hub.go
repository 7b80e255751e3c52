package realtime

import (
	"sync"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
)

const DefaultBuffer = 32

// Delivery outcomes reported to the hub observer.
const (
	Delivered = "delivered"
	Dropped   = "dropped"
)

// Hub fans inserted chat messages out to the subscribers of their room.
// Publish never blocks: a subscriber whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]map[*subscription]struct{}
	buffer  int
	closed  bool
	observe func(outcome string)
}

type HubOption func(*Hub)

func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithDeliveryObserver(fn func(outcome string)) HubOption {
	return func(h *Hub) { h.observe = fn }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:   make(map[uuid.UUID]map[*subscription]struct{}),
		buffer:  DefaultBuffer,
		observe: func(string) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type subscription struct {
	hub    *Hub
	roomID uuid.UUID
	ch     chan chat.Message
	once   sync.Once
}

func (s *subscription) Messages() <-chan chat.Message {
	return s.ch
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Subscribe registers interest in roomID. After Close on the hub the returned
// subscription is already closed.
func (h *Hub) Subscribe(roomID uuid.UUID) chat.Subscription {
	sub := &subscription{hub: h, roomID: roomID, ch: make(chan chat.Message, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*subscription]struct{})
		h.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[sub.roomID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.rooms, sub.roomID)
	}
}

// Publish delivers msg to every current subscriber of its room and returns
// how many received it.
func (h *Hub) Publish(msg chat.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.rooms[msg.ChatRoomID] {
		select {
		case sub.ch <- msg:
			delivered++
			h.observe(Delivered)
		default:
			h.observe(Dropped)
			log.Warn().Stringer("room_id", msg.ChatRoomID).Stringer("message_id", msg.ID).Msg("realtime: subscriber buffer full, message dropped")
		}
	}
	return delivered
}

// Subscribers reports the number of open subscriptions for roomID.
func (h *Hub) Subscribers(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Close ends every subscription. It is safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for roomID, subs := range h.rooms {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.rooms, roomID)
	}
}
