package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
)

const DefaultChannel = "chat_messages"

var ErrInvalidPayload = errors.New("invalid notification payload")

// MessageFetcher loads the row a notification refers to.
type MessageFetcher interface {
	GetMessage(ctx context.Context, id uuid.UUID) (*chat.Message, error)
}

type Publisher interface {
	Publish(msg chat.Message) int
}

// notification is the body the insert trigger sends with pg_notify.
type notification struct {
	ID         uuid.UUID `json:"id"`
	ChatRoomID uuid.UUID `json:"chat_room_id"`
}

// Dispatcher turns insert notifications into hub publications.
type Dispatcher struct {
	fetcher   MessageFetcher
	publisher Publisher
}

func NewDispatcher(fetcher MessageFetcher, publisher Publisher) *Dispatcher {
	return &Dispatcher{fetcher: fetcher, publisher: publisher}
}

func (d *Dispatcher) Handle(ctx context.Context, payload string) error {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if n.ID == uuid.Nil || n.ChatRoomID == uuid.Nil {
		return fmt.Errorf("%w: missing id or chat_room_id", ErrInvalidPayload)
	}

	msg, err := d.fetcher.GetMessage(ctx, n.ID)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			log.Warn().Stringer("message_id", n.ID).Msg("realtime: notified message no longer exists")
			return nil
		}
		return fmt.Errorf("realtime: failed to fetch message %s: %w", n.ID, err)
	}

	delivered := d.publisher.Publish(*msg)
	log.Debug().Stringer("message_id", msg.ID).Stringer("room_id", msg.ChatRoomID).Int("delivered", delivered).Msg("realtime: message pushed")
	return nil
}

type ListenerConfig struct {
	DSN                  string
	Channel              string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
}

// PGListener receives LISTEN/NOTIFY events for inserted chat messages and
// hands them to a Dispatcher. Reconnects are handled by lib/pq.
type PGListener struct {
	cfg        ListenerConfig
	dispatcher *Dispatcher
}

func NewPGListener(cfg ListenerConfig, dispatcher *Dispatcher) *PGListener {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.MinReconnectInterval <= 0 {
		cfg.MinReconnectInterval = 10 * time.Second
	}
	if cfg.MaxReconnectInterval < cfg.MinReconnectInterval {
		cfg.MaxReconnectInterval = cfg.MinReconnectInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	return &PGListener{cfg: cfg, dispatcher: dispatcher}
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		log.Info().Msg("realtime: listener connected")
	case pq.ListenerEventDisconnected:
		log.Warn().Err(err).Msg("realtime: listener disconnected")
	case pq.ListenerEventReconnected:
		log.Info().Msg("realtime: listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		log.Error().Err(err).Msg("realtime: listener connection attempt failed")
	}
}

// Run listens until ctx is cancelled. Messages inserted while the
// connection is down are not replayed; sessions recover them on reload.
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.cfg.DSN, l.cfg.MinReconnectInterval, l.cfg.MaxReconnectInterval, logListenerEvent)
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("realtime: failed to close listener")
		}
	}()

	if err := listener.Listen(l.cfg.Channel); err != nil {
		return fmt.Errorf("realtime: failed to listen on %s: %w", l.cfg.Channel, err)
	}
	log.Info().Str("channel", l.cfg.Channel).Msg("realtime: listening for chat messages")

	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect
			if n == nil {
				continue
			}
			if err := l.dispatcher.Handle(ctx, n.Extra); err != nil {
				log.Error().Err(err).Str("payload", n.Extra).Msg("realtime: failed to dispatch notification")
			}
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.Warn().Err(err).Msg("realtime: listener ping failed")
				}
			}()
		}
	}
}
