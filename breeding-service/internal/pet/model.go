package pet

import (
	"time"

	"github.com/gofrs/uuid"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Pet struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	OwnerID              uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name                 string     `json:"name" db:"name"`
	Species              string     `json:"species" db:"species"`
	Breed                *string    `json:"breed,omitempty" db:"breed"`
	Gender               Gender     `json:"gender" db:"gender"`
	BirthDate            *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	ImageURL             *string    `json:"image_url,omitempty" db:"image_url"`
	AvailableForBreeding bool       `json:"available_for_breeding" db:"available_for_breeding"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// CandidateFilter narrows the breeding browse list.
type CandidateFilter struct {
	Species string
	Limit   int
	Offset  int
}
