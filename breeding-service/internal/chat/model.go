package chat

import (
	"time"

	"github.com/gofrs/uuid"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

type Room struct {
	ID              uuid.UUID `json:"id"`
	BreedingMatchID uuid.UUID `json:"breeding_match_id"`
	Owner1ID        uuid.UUID `json:"owner1_id"`
	Owner2ID        uuid.UUID `json:"owner2_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (r *Room) IsParticipant(userID uuid.UUID) bool {
	return userID == r.Owner1ID || userID == r.Owner2ID
}

// Other returns the participant that is not userID.
func (r *Room) Other(userID uuid.UUID) uuid.UUID {
	if userID == r.Owner1ID {
		return r.Owner2ID
	}
	return r.Owner1ID
}

type Message struct {
	ID          uuid.UUID   `json:"id"`
	ChatRoomID  uuid.UUID   `json:"chat_room_id"`
	SenderID    uuid.UUID   `json:"sender_id"`
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   time.Time   `json:"created_at"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
}

// Before orders messages by creation time, breaking ties by id.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}
