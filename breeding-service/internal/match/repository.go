package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrMatchNotFound         = errors.New("breeding match not found")
	ErrDuplicatePendingMatch = errors.New("a pending request already exists for this pair")
	// ErrStatusChanged is returned when the row was no longer in the expected status.
	ErrStatusChanged = errors.New("breeding match status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, m *Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*Match, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Match, error)
	ListForOwner(ctx context.Context, userID uuid.UUID, direction Direction) ([]Match, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const selectMatch = `
	SELECT m.id, m.pet_id, m.potential_partner_id, m.owner_id, m.partner_owner_id, m.status, m.created_at, m.updated_at,
	       p.name, p.species, p.breed, p.image_url,
	       pp.name, pp.species, pp.breed, pp.image_url
	FROM breeding_matches m
	LEFT JOIN pets p ON p.id = m.pet_id
	LEFT JOIN pets pp ON pp.id = m.potential_partner_id
`

func scanMatch(row pgx.Row) (*Match, error) {
	var (
		m                             Match
		petID, partnerID              uuid.UUID
		petName, petSpecies, petBreed *string
		petImage                      *string
		partnerName, partnerSpecies   *string
		partnerBreed, partnerImage    *string
	)
	err := row.Scan(
		&m.ID, &petID, &partnerID, &m.OwnerID, &m.PartnerOwnerID, &m.Status, &m.CreatedAt, &m.UpdatedAt,
		&petName, &petSpecies, &petBreed, &petImage,
		&partnerName, &partnerSpecies, &partnerBreed, &partnerImage,
	)
	if err != nil {
		return nil, err
	}
	m.Pet = petRef(petID, petName, petSpecies, petBreed, petImage)
	m.PotentialPartner = petRef(partnerID, partnerName, partnerSpecies, partnerBreed, partnerImage)
	return &m, nil
}

func petRef(id uuid.UUID, name, species, breed, image *string) PetRef {
	if name == nil {
		return RefOnly(id)
	}
	return Loaded(PetSummary{
		ID:       id,
		Name:     *name,
		Species:  deref(species),
		Breed:    deref(breed),
		ImageURL: deref(image),
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *postgresRepository) Create(ctx context.Context, m *Match) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate match ID: %w", err)
		}
		m.ID = id
	}
	now := time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO breeding_matches (id, pet_id, potential_partner_id, owner_id, partner_owner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.Pet.ID, m.PotentialPartner.ID, m.OwnerID, m.PartnerOwnerID, string(m.Status), now, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Warn().Stringer("pet_id", m.Pet.ID).Stringer("partner_id", m.PotentialPartner.ID).Msg("repository: duplicate pending breeding match")
			return ErrDuplicatePendingMatch
		}
		return fmt.Errorf("repository: failed to insert breeding match: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Match, error) {
	m, err := scanMatch(r.db.QueryRow(ctx, selectMatch+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("repository: failed to select breeding match %s: %w", id, err)
	}
	return m, nil
}

// UpdateStatus moves the match from one status to another only if it is still in from.
func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Match, error) {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE breeding_matches
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update breeding match %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		log.Warn().Stringer("match_id", id).Stringer("expected_status", from).Msg("repository: breeding match no longer in expected status")
		return nil, ErrStatusChanged
	}

	return r.GetByID(ctx, id)
}

func (r *postgresRepository) ListForOwner(ctx context.Context, userID uuid.UUID, direction Direction) ([]Match, error) {
	column := "m.partner_owner_id"
	if direction == DirectionSent {
		column = "m.owner_id"
	}

	rows, err := r.db.Query(ctx, selectMatch+` WHERE `+column+` = $1 ORDER BY m.created_at DESC, m.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query %s matches for %s: %w", direction, userID, err)
	}
	defer rows.Close()

	matches := make([]Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan breeding match: %w", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating breeding matches: %w", err)
	}
	return matches, nil
}
