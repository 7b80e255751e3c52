package pet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCandidateLimit = 20
	MaxCandidateLimit     = 100
)

var (
	ErrNotOwner   = errors.New("pet belongs to another owner")
	ErrInvalidPet = errors.New("pet is invalid")
)

type Service interface {
	CreatePet(ctx context.Context, p *Pet) (*Pet, error)
	GetPet(ctx context.Context, id uuid.UUID) (*Pet, error)
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]Pet, error)
	ListEligible(ctx context.Context, ownerID uuid.UUID) ([]Pet, error)
	SetBreedingAvailability(ctx context.Context, ownerID, petID uuid.UUID, available bool) (*Pet, error)
	ListCandidates(ctx context.Context, viewerID uuid.UUID, filter CandidateFilter) ([]Pet, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreatePet(ctx context.Context, p *Pet) (*Pet, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Species = strings.ToLower(strings.TrimSpace(p.Species))
	if p.Name == "" || p.Species == "" || p.OwnerID == uuid.Nil {
		return nil, ErrInvalidPet
	}

	if err := s.repo.Create(ctx, p); err != nil {
		log.Error().Err(err).Stringer("owner_id", p.OwnerID).Msg("service: failed to create pet in repository")
		return nil, fmt.Errorf("service: failed to create pet: %w", err)
	}

	log.Info().Stringer("pet_id", p.ID).Stringer("owner_id", p.OwnerID).Msg("service: pet created")
	return p, nil
}

func (s *service) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("service: failed to get pet %s: %w", id, err)
	}
	return p, nil
}

func (s *service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]Pet, error) {
	pets, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list pets: %w", err)
	}
	return pets, nil
}

func (s *service) ListEligible(ctx context.Context, ownerID uuid.UUID) ([]Pet, error) {
	pets, err := s.repo.ListBreedingEligibleByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list eligible pets: %w", err)
	}
	return pets, nil
}

func (s *service) SetBreedingAvailability(ctx context.Context, ownerID, petID uuid.UUID, available bool) (*Pet, error) {
	current, err := s.GetPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != ownerID {
		log.Warn().Stringer("pet_id", petID).Stringer("actor_id", ownerID).Msg("service: breeding availability change by non-owner")
		return nil, ErrNotOwner
	}
	if current.AvailableForBreeding == available {
		return current, nil
	}

	updated, err := s.repo.SetAvailableForBreeding(ctx, petID, available)
	if err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, ErrPetNotFound
		}
		log.Error().Err(err).Stringer("pet_id", petID).Msg("service: failed to update breeding availability")
		return nil, fmt.Errorf("service: failed to update breeding availability: %w", err)
	}
	return updated, nil
}

func (s *service) ListCandidates(ctx context.Context, viewerID uuid.UUID, filter CandidateFilter) ([]Pet, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultCandidateLimit
	}
	if filter.Limit > MaxCandidateLimit {
		filter.Limit = MaxCandidateLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Species = strings.ToLower(strings.TrimSpace(filter.Species))

	pets, err := s.repo.ListCandidates(ctx, viewerID, filter)
	if err != nil {
		log.Error().Err(err).Stringer("viewer_id", viewerID).Msg("service: failed to list breeding candidates")
		return nil, fmt.Errorf("service: failed to list breeding candidates: %w", err)
	}
	return pets, nil
}
