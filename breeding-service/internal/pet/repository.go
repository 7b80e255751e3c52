package pet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var ErrPetNotFound = errors.New("pet not found")

type Repository interface {
	Create(ctx context.Context, p *Pet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Pet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Pet, error)
	ListBreedingEligibleByOwner(ctx context.Context, ownerID uuid.UUID) ([]Pet, error)
	ListCandidates(ctx context.Context, viewerID uuid.UUID, filter CandidateFilter) ([]Pet, error)
	SetAvailableForBreeding(ctx context.Context, id uuid.UUID, available bool) (*Pet, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

const petColumns = `id, owner_id, name, species, breed, gender, birth_date, image_url, available_for_breeding, created_at, updated_at`

func (r *sqlxRepository) Create(ctx context.Context, p *Pet) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate pet ID: %w", err)
		}
		p.ID = id
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO pets (`+petColumns+`)
		VALUES (:id, :owner_id, :name, :species, :breed, :gender, :birth_date, :image_url, :available_for_breeding, :created_at, :updated_at)
	`, p)
	if err != nil {
		return fmt.Errorf("repository: failed to insert pet: %w", err)
	}
	return nil
}

func (r *sqlxRepository) GetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	var p Pet
	err := r.db.GetContext(ctx, &p, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("repository: failed to select pet by id %s: %w", id, err)
	}
	return &p, nil
}

func (r *sqlxRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Pet, error) {
	pets := []Pet{}
	err := r.db.SelectContext(ctx, &pets, `
		SELECT `+petColumns+`
		FROM pets
		WHERE owner_id = $1
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list pets for owner %s: %w", ownerID, err)
	}
	return pets, nil
}

func (r *sqlxRepository) ListBreedingEligibleByOwner(ctx context.Context, ownerID uuid.UUID) ([]Pet, error) {
	pets := []Pet{}
	err := r.db.SelectContext(ctx, &pets, `
		SELECT `+petColumns+`
		FROM pets
		WHERE owner_id = $1 AND available_for_breeding
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list eligible pets for owner %s: %w", ownerID, err)
	}
	return pets, nil
}

// ListCandidates returns other owners' breeding-available pets the viewer has no pending request against.
func (r *sqlxRepository) ListCandidates(ctx context.Context, viewerID uuid.UUID, filter CandidateFilter) ([]Pet, error) {
	pets := []Pet{}
	err := r.db.SelectContext(ctx, &pets, `
		SELECT `+petColumns+`
		FROM pets p
		WHERE p.available_for_breeding
		  AND p.owner_id <> $1
		  AND ($2::text = '' OR p.species = $2::text)
		  AND NOT EXISTS (
			SELECT 1 FROM breeding_matches m
			WHERE m.owner_id = $1
			  AND m.potential_partner_id = p.id
			  AND m.status = 'pending'
		  )
		ORDER BY p.created_at DESC, p.id
		LIMIT $3 OFFSET $4
	`, viewerID, filter.Species, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list breeding candidates for %s: %w", viewerID, err)
	}
	return pets, nil
}

func (r *sqlxRepository) SetAvailableForBreeding(ctx context.Context, id uuid.UUID, available bool) (*Pet, error) {
	var p Pet
	err := r.db.GetContext(ctx, &p, `
		UPDATE pets
		SET available_for_breeding = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+petColumns, available, time.Now().UTC(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Stringer("pet_id", id).Msg("repository: pet not found for breeding availability update")
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("repository: failed to update breeding availability for pet %s: %w", id, err)
	}
	return &p, nil
}
