package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
)

const MaxMessageLength = 4000

var (
	ErrMatchNotAccepted = errors.New("chat is only available for accepted breeding matches")
	ErrNotParticipant   = errors.New("user is not a participant of this chat")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrSendInProgress   = errors.New("a message from this sender is already being sent")
)

// MatchReader loads the match a room belongs to.
type MatchReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*match.Match, error)
}

type Service interface {
	GetOrCreateRoom(ctx context.Context, viewerID, matchID uuid.UUID) (*Room, error)
	LoadMessages(ctx context.Context, viewerID, roomID uuid.UUID) ([]Message, error)
	SendMessage(ctx context.Context, roomID, senderID uuid.UUID, text string) (*Message, error)
	MarkRead(ctx context.Context, viewerID, roomID uuid.UUID) (int64, error)
	Open(ctx context.Context, viewerID, roomID uuid.UUID) (*Session, error)
}

type Option func(*service)

// WithSentObserver is called after every stored text message.
func WithSentObserver(fn func()) Option {
	return func(s *service) { s.onSent = fn }
}

type service struct {
	repo    Repository
	matches MatchReader
	subs    Subscriber
	guard   SendGuard
	onSent  func()
}

func NewService(repo Repository, matches MatchReader, subs Subscriber, guard SendGuard, opts ...Option) Service {
	s := &service{
		repo:    repo,
		matches: matches,
		subs:    subs,
		guard:   guard,
		onSent:  func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Greeting is the system message that opens every room.
func Greeting(petName, partnerName string) string {
	return fmt.Sprintf("¡Hola! Me interesa la solicitud de reproducción entre %s y %s. ¡Conversemos!", petName, partnerName)
}

func petName(ref match.PetRef) string {
	if d, ok := ref.Detail(); ok && d.Name != "" {
		return d.Name
	}
	return ref.ID.String()
}

func (s *service) GetOrCreateRoom(ctx context.Context, viewerID, matchID uuid.UUID) (*Room, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, match.ErrMatchNotFound) {
			return nil, match.ErrMatchNotFound
		}
		return nil, fmt.Errorf("service: failed to load breeding match: %w", err)
	}
	if !m.IsParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	if m.Status != match.StatusAccepted {
		return nil, ErrMatchNotAccepted
	}

	room, err := s.repo.GetRoomByMatchID(ctx, matchID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		log.Error().Err(err).Stringer("match_id", matchID).Msg("service: failed to look up chat room")
		return nil, fmt.Errorf("service: could not create chat: %w", err)
	}

	greeting := &Message{
		SenderID:    viewerID,
		Message:     Greeting(petName(m.Pet), petName(m.PotentialPartner)),
		MessageType: MessageSystem,
	}
	room, created, err := s.repo.CreateRoomWithGreeting(ctx, &Room{
		BreedingMatchID: matchID,
		Owner1ID:        m.OwnerID,
		Owner2ID:        m.PartnerOwnerID,
	}, greeting)
	if err != nil {
		log.Error().Err(err).Stringer("match_id", matchID).Msg("service: failed to create chat room")
		return nil, fmt.Errorf("service: could not create chat: %w", err)
	}

	if created {
		log.Info().Stringer("room_id", room.ID).Stringer("match_id", matchID).Msg("service: chat room created")
	}
	return room, nil
}

func (s *service) participantRoom(ctx context.Context, viewerID, roomID uuid.UUID) (*Room, error) {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("service: failed to load chat room: %w", err)
	}
	if !room.IsParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

func (s *service) LoadMessages(ctx context.Context, viewerID, roomID uuid.UUID) ([]Message, error) {
	if _, err := s.participantRoom(ctx, viewerID, roomID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Stringer("room_id", roomID).Msg("service: failed to load messages")
		return nil, fmt.Errorf("service: could not load messages: %w", err)
	}
	return messages, nil
}

// SendMessage stores a text message. The stored row reaches every open
// session, the sender's included, through the push subscription.
func (s *service) SendMessage(ctx context.Context, roomID, senderID uuid.UUID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if _, err := s.participantRoom(ctx, senderID, roomID); err != nil {
		return nil, err
	}

	release, ok, err := s.guard.Acquire(ctx, roomID, senderID)
	if err != nil {
		log.Error().Err(err).Stringer("room_id", roomID).Msg("service: send guard unavailable")
		return nil, fmt.Errorf("service: could not send message: %w", err)
	}
	if !ok {
		return nil, ErrSendInProgress
	}
	defer release()

	msg := &Message{
		ChatRoomID:  roomID,
		SenderID:    senderID,
		Message:     text,
		MessageType: MessageText,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		log.Error().Err(err).Stringer("room_id", roomID).Stringer("sender_id", senderID).Msg("service: failed to insert message")
		return nil, fmt.Errorf("service: could not send message: %w", err)
	}

	s.onSent()
	return msg, nil
}

func (s *service) MarkRead(ctx context.Context, viewerID, roomID uuid.UUID) (int64, error) {
	if _, err := s.participantRoom(ctx, viewerID, roomID); err != nil {
		return 0, err
	}

	n, err := s.repo.MarkRead(ctx, roomID, viewerID)
	if err != nil {
		log.Error().Err(err).Stringer("room_id", roomID).Msg("service: failed to mark messages read")
		return 0, fmt.Errorf("service: could not mark messages read: %w", err)
	}
	return n, nil
}

// Open subscribes to the room before loading history so no insert falls
// between the two; the session's feed drops the overlap.
func (s *service) Open(ctx context.Context, viewerID, roomID uuid.UUID) (*Session, error) {
	if _, err := s.participantRoom(ctx, viewerID, roomID); err != nil {
		return nil, err
	}

	sub := s.subs.Subscribe(roomID)

	history, err := s.repo.ListMessages(ctx, roomID)
	if err != nil {
		sub.Close()
		log.Error().Err(err).Stringer("room_id", roomID).Msg("service: failed to load history for session")
		return nil, fmt.Errorf("service: could not load messages: %w", err)
	}

	return newSession(roomID, sub, history), nil
}
