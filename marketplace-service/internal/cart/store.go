package cart

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Op string

const (
	OpAdd            Op = "add"
	OpRemove         Op = "remove"
	OpUpdateQuantity Op = "update_quantity"
	OpClear          Op = "clear"
	OpCheckout       Op = "checkout"
)

// Observer is notified after every applied mutation.
type Observer func(op Op)

type session struct {
	cart     *Cart
	lastSeen time.Time
}

// Store keeps one cart per session id in memory. Every mutation and the
// snapshot that follows it happen under one lock, so callers never see
// totals that lag behind the items.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
	observer Observer
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithObserver(o Observer) StoreOption {
	return func(s *Store) { s.observer = o }
}

// NewStore creates a store whose idle sessions expire after ttl. ttl <= 0 disables expiry.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(sessionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return New().State()
	}
	sess.lastSeen = s.now()
	return sess.cart.State()
}

func (s *Store) Add(sessionID string, item Item) State {
	return s.apply(sessionID, OpAdd, func(c *Cart) { c.Add(item) })
}

func (s *Store) Remove(sessionID, itemID string) State {
	return s.apply(sessionID, OpRemove, func(c *Cart) { c.Remove(itemID) })
}

func (s *Store) UpdateQuantity(sessionID, itemID string, quantity int) State {
	return s.apply(sessionID, OpUpdateQuantity, func(c *Cart) { c.UpdateQuantity(itemID, quantity) })
}

// Clear drops the session's cart entirely.
func (s *Store) Clear(sessionID string) State {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.notify(OpClear)
	return New().State()
}

// RemoveCheckedOut takes the ordered quantities out of the session's cart.
// Items added or topped up after the order snapshot was taken stay behind.
func (s *Store) RemoveCheckedOut(sessionID string, ordered []Item) State {
	return s.apply(sessionID, OpCheckout, func(c *Cart) {
		for _, item := range ordered {
			if i := c.indexOf(item.ID); i >= 0 {
				c.UpdateQuantity(item.ID, c.items[i].Quantity-item.Quantity)
			}
		}
	})
}

func (s *Store) ItemCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		return sess.cart.ItemCount()
	}
	return 0
}

func (s *Store) apply(sessionID string, op Op, fn func(*Cart)) State {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{cart: New()}
		s.sessions[sessionID] = sess
	}
	fn(sess.cart)
	sess.lastSeen = s.now()
	state := sess.cart.State()
	if sess.cart.Len() == 0 {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	s.notify(op)
	return state
}

func (s *Store) notify(op Op) {
	if s.observer != nil {
		s.observer(op)
	}
}

// Sweep removes sessions idle for longer than the ttl and returns how many were dropped.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("expired_sessions", n).Msg("cart: expired idle sessions")
			}
		}
	}
}
