package match

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// PetSummary is the slice of a pet shown alongside a match.
type PetSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Species  string    `json:"species"`
	Breed    string    `json:"breed,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
}

// PetRef is a pet relation that is either loaded with its summary or only
// known by id. Callers must check Detail before using the summary.
type PetRef struct {
	ID     uuid.UUID
	detail *PetSummary
}

func RefOnly(id uuid.UUID) PetRef {
	return PetRef{ID: id}
}

func Loaded(summary PetSummary) PetRef {
	return PetRef{ID: summary.ID, detail: &summary}
}

func (r PetRef) Detail() (PetSummary, bool) {
	if r.detail == nil {
		return PetSummary{}, false
	}
	return *r.detail, true
}

// MarshalJSON writes the summary when loaded and {"id": ...} otherwise.
func (r PetRef) MarshalJSON() ([]byte, error) {
	if d, ok := r.Detail(); ok {
		return json.Marshal(d)
	}
	return json.Marshal(struct {
		ID uuid.UUID `json:"id"`
	}{ID: r.ID})
}

type Match struct {
	ID               uuid.UUID `json:"id"`
	Pet              PetRef    `json:"pet"`
	PotentialPartner PetRef    `json:"potential_partner"`
	OwnerID          uuid.UUID `json:"owner_id"`
	PartnerOwnerID   uuid.UUID `json:"partner_owner_id"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (m *Match) IsParticipant(userID uuid.UUID) bool {
	return userID == m.OwnerID || userID == m.PartnerOwnerID
}

type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
)
