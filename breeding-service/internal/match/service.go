package match

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusAccepted: true,
		StatusRejected: true,
	},
	StatusAccepted: {},
	StatusRejected: {},
}

var (
	ErrNoEligiblePet     = errors.New("you need at least one pet available for breeding")
	ErrPetNotEligible    = errors.New("selected pet is not available for breeding")
	ErrTargetNotFound    = errors.New("target pet not found")
	ErrTargetUnavailable = errors.New("target pet is not available for breeding")
	ErrOwnPet            = errors.New("cannot send a breeding request to your own pet")
	ErrNotPartnerOwner   = errors.New("only the receiving owner can respond to this request")
	ErrNotParticipant    = errors.New("user is not part of this breeding match")
	ErrInvalidTransition = errors.New("invalid breeding match transition")
)

// SelectionRequiredError is returned when the requester owns several eligible
// pets and did not say which one is asking.
type SelectionRequiredError struct {
	Choices []pet.Pet
}

func (e *SelectionRequiredError) Error() string {
	names := make([]string, 0, len(e.Choices))
	for _, p := range e.Choices {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("choose which pet sends the request: %s", strings.Join(names, ", "))
}

// PetLookup is the part of the pet catalog the workflow reads.
type PetLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*pet.Pet, error)
	ListBreedingEligibleByOwner(ctx context.Context, ownerID uuid.UUID) ([]pet.Pet, error)
}

type Service interface {
	SendRequest(ctx context.Context, requesterID, targetPetID, requesterPetID uuid.UUID) (*Match, error)
	Accept(ctx context.Context, actorID, matchID uuid.UUID) (*Match, error)
	Reject(ctx context.Context, actorID, matchID uuid.UUID) (*Match, error)
	GetMatch(ctx context.Context, viewerID, matchID uuid.UUID) (*Match, error)
	ListReceived(ctx context.Context, userID uuid.UUID) ([]Match, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]Match, error)
}

// TransitionObserver is told about every status a match enters.
type TransitionObserver func(status Status)

type service struct {
	repo     Repository
	pets     PetLookup
	observer TransitionObserver
}

func NewService(repo Repository, pets PetLookup, observer TransitionObserver) Service {
	if observer == nil {
		observer = func(Status) {}
	}
	return &service{repo: repo, pets: pets, observer: observer}
}

func summarize(p *pet.Pet) PetSummary {
	s := PetSummary{ID: p.ID, Name: p.Name, Species: p.Species}
	if p.Breed != nil {
		s.Breed = *p.Breed
	}
	if p.ImageURL != nil {
		s.ImageURL = *p.ImageURL
	}
	return s
}

// SendRequest creates a pending match from one of the requester's eligible
// pets to targetPetID. requesterPetID may be uuid.Nil when the requester has
// exactly one eligible pet.
func (s *service) SendRequest(ctx context.Context, requesterID, targetPetID, requesterPetID uuid.UUID) (*Match, error) {
	eligible, err := s.pets.ListBreedingEligibleByOwner(ctx, requesterID)
	if err != nil {
		log.Error().Err(err).Stringer("requester_id", requesterID).Msg("service: failed to load eligible pets")
		return nil, fmt.Errorf("service: failed to load eligible pets: %w", err)
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligiblePet
	}

	var requesterPet *pet.Pet
	switch {
	case requesterPetID != uuid.Nil:
		for i := range eligible {
			if eligible[i].ID == requesterPetID {
				requesterPet = &eligible[i]
				break
			}
		}
		if requesterPet == nil {
			return nil, ErrPetNotEligible
		}
	case len(eligible) == 1:
		requesterPet = &eligible[0]
	default:
		return nil, &SelectionRequiredError{Choices: eligible}
	}

	target, err := s.pets.GetByID(ctx, targetPetID)
	if err != nil {
		if errors.Is(err, pet.ErrPetNotFound) {
			return nil, ErrTargetNotFound
		}
		log.Error().Err(err).Stringer("target_pet_id", targetPetID).Msg("service: failed to load target pet")
		return nil, fmt.Errorf("service: failed to load target pet: %w", err)
	}
	if target.OwnerID == requesterID {
		return nil, ErrOwnPet
	}
	if !target.AvailableForBreeding {
		return nil, ErrTargetUnavailable
	}

	m := &Match{
		Pet:              Loaded(summarize(requesterPet)),
		PotentialPartner: Loaded(summarize(target)),
		OwnerID:          requesterID,
		PartnerOwnerID:   target.OwnerID,
		Status:           StatusPending,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, ErrDuplicatePendingMatch) {
			return nil, ErrDuplicatePendingMatch
		}
		log.Error().Err(err).Stringer("requester_id", requesterID).Msg("service: failed to create breeding match")
		return nil, fmt.Errorf("service: failed to create breeding match: %w", err)
	}

	s.observer(StatusPending)
	log.Info().
		Stringer("match_id", m.ID).
		Stringer("pet_id", requesterPet.ID).
		Stringer("partner_pet_id", target.ID).
		Msg("service: breeding request sent")
	return m, nil
}

func (s *service) Accept(ctx context.Context, actorID, matchID uuid.UUID) (*Match, error) {
	return s.respond(ctx, actorID, matchID, StatusAccepted)
}

func (s *service) Reject(ctx context.Context, actorID, matchID uuid.UUID) (*Match, error) {
	return s.respond(ctx, actorID, matchID, StatusRejected)
}

func (s *service) respond(ctx context.Context, actorID, matchID uuid.UUID, to Status) (*Match, error) {
	current, err := s.repo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("service: failed to load breeding match: %w", err)
	}

	if actorID != current.PartnerOwnerID {
		log.Warn().Stringer("match_id", matchID).Stringer("actor_id", actorID).Stringer("to", to).Msg("service: response attempt by non-receiving owner")
		return nil, ErrNotPartnerOwner
	}

	if !allowedTransitions[current.Status][to] {
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, current.Status, to)
	}

	updated, err := s.repo.UpdateStatus(ctx, matchID, current.Status, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrStatusChanged):
			return nil, fmt.Errorf("%w: match was answered concurrently", ErrInvalidTransition)
		case errors.Is(err, ErrMatchNotFound):
			return nil, ErrMatchNotFound
		}
		log.Error().Err(err).Stringer("match_id", matchID).Stringer("to", to).Msg("service: failed to update breeding match status")
		return nil, fmt.Errorf("service: failed to update breeding match status: %w", err)
	}

	s.observer(to)
	log.Info().Stringer("match_id", matchID).Stringer("status", to).Msg("service: breeding match answered")
	return updated, nil
}

func (s *service) GetMatch(ctx context.Context, viewerID, matchID uuid.UUID) (*Match, error) {
	m, err := s.repo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("service: failed to load breeding match: %w", err)
	}
	if !m.IsParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	return m, nil
}

func (s *service) ListReceived(ctx context.Context, userID uuid.UUID) ([]Match, error) {
	return s.list(ctx, userID, DirectionReceived)
}

func (s *service) ListSent(ctx context.Context, userID uuid.UUID) ([]Match, error) {
	return s.list(ctx, userID, DirectionSent)
}

func (s *service) list(ctx context.Context, userID uuid.UUID, direction Direction) ([]Match, error) {
	matches, err := s.repo.ListForOwner(ctx, userID, direction)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Str("direction", string(direction)).Msg("service: failed to list breeding matches")
		return nil, fmt.Errorf("service: failed to list %s breeding matches: %w", direction, err)
	}
	return matches, nil
}
