package match_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
)

type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) Create(ctx context.Context, bm *match.Match) error {
	args := m.Called(ctx, bm)
	return args.Error(0)
}

func (m *MockMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*match.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*match.Match), args.Error(1)
}

func (m *MockMatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to match.Status) (*match.Match, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*match.Match), args.Error(1)
}

func (m *MockMatchRepository) ListForOwner(ctx context.Context, userID uuid.UUID, direction match.Direction) ([]match.Match, error) {
	args := m.Called(ctx, userID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]match.Match), args.Error(1)
}

type MockPetLookup struct {
	mock.Mock
}

func (m *MockPetLookup) GetByID(ctx context.Context, id uuid.UUID) (*pet.Pet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pet.Pet), args.Error(1)
}

func (m *MockPetLookup) ListBreedingEligibleByOwner(ctx context.Context, ownerID uuid.UUID) ([]pet.Pet, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pet.Pet), args.Error(1)
}

type world struct {
	alice, bob uuid.UUID
	rex, max   pet.Pet
	luna       pet.Pet
}

func newWorld() world {
	w := world{
		alice: uuid.Must(uuid.NewV4()),
		bob:   uuid.Must(uuid.NewV4()),
	}
	w.rex = pet.Pet{ID: uuid.Must(uuid.NewV4()), OwnerID: w.alice, Name: "Rex", Species: "dog", AvailableForBreeding: true}
	w.max = pet.Pet{ID: uuid.Must(uuid.NewV4()), OwnerID: w.alice, Name: "Max", Species: "dog", AvailableForBreeding: true}
	w.luna = pet.Pet{ID: uuid.Must(uuid.NewV4()), OwnerID: w.bob, Name: "Luna", Species: "dog", AvailableForBreeding: true}
	return w
}

func TestMatchService_SendRequest_SingleEligiblePet(t *testing.T) {
	w := newWorld()
	repo := new(MockMatchRepository)
	pets := new(MockPetLookup)
	var observed []match.Status
	svc := match.NewService(repo, pets, func(s match.Status) { observed = append(observed, s) })

	pets.On("ListBreedingEligibleByOwner", mock.Anything, w.alice).Return([]pet.Pet{w.rex}, nil).Once()
	pets.On("GetByID", mock.Anything, w.luna.ID).Return(&w.luna, nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *match.Match) bool {
		return m.Pet.ID == w.rex.ID &&
			m.PotentialPartner.ID == w.luna.ID &&
			m.OwnerID == w.alice &&
			m.PartnerOwnerID == w.bob &&
			m.Status == match.StatusPending
	})).Return(nil).Once()

	m, err := svc.SendRequest(context.Background(), w.alice, w.luna.ID, uuid.Nil)
	require.NoError(t, err)

	detail, ok := m.Pet.Detail()
	require.True(t, ok)
	assert.Equal(t, "Rex", detail.Name)
	assert.Equal(t, []match.Status{match.StatusPending}, observed)
	repo.AssertExpectations(t)
	pets.AssertExpectations(t)
}

func TestMatchService_SendRequest_RequiresSelection(t *testing.T) {
	w := newWorld()
	repo := new(MockMatchRepository)
	pets := new(MockPetLookup)
	svc := match.NewService(repo, pets, nil)

	pets.On("ListBreedingEligibleByOwner", mock.Anything, w.alice).Return([]pet.Pet{w.rex, w.max}, nil)

	_, err := svc.SendRequest(context.Background(), w.alice, w.luna.ID, uuid.Nil)

	var selErr *match.SelectionRequiredError
	require.ErrorAs(t, err, &selErr)
	require.Len(t, selErr.Choices, 2)
	assert.Contains(t, selErr.Error(), "Rex")
	assert.Contains(t, selErr.Error(), "Max")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	pets.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)

	pets.On("GetByID", mock.Anything, w.luna.ID).Return(&w.luna, nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *match.Match) bool { return m.Pet.ID == w.max.ID })).Return(nil).Once()

	m, err := svc.SendRequest(context.Background(), w.alice, w.luna.ID, w.max.ID)
	require.NoError(t, err)
	assert.Equal(t, w.max.ID, m.Pet.ID)
}

func TestMatchService_SendRequest_Rejections(t *testing.T) {
	w := newWorld()
	hidden := w.luna
	hidden.AvailableForBreeding = false

	tests := []struct {
		name         string
		eligible     []pet.Pet
		chosen       uuid.UUID
		target       *pet.Pet
		targetErr    error
		createErr    error
		wantErr      error
		expectTarget bool
	}{
		{name: "no_eligible_pet", eligible: []pet.Pet{}, wantErr: match.ErrNoEligiblePet},
		{name: "chosen_pet_not_eligible", eligible: []pet.Pet{w.rex}, chosen: uuid.Must(uuid.NewV4()), wantErr: match.ErrPetNotEligible},
		{name: "target_missing", eligible: []pet.Pet{w.rex}, targetErr: pet.ErrPetNotFound, wantErr: match.ErrTargetNotFound, expectTarget: true},
		{name: "own_pet", eligible: []pet.Pet{w.rex}, target: &w.max, wantErr: match.ErrOwnPet, expectTarget: true},
		{name: "target_unavailable", eligible: []pet.Pet{w.rex}, target: &hidden, wantErr: match.ErrTargetUnavailable, expectTarget: true},
		{name: "duplicate_pending", eligible: []pet.Pet{w.rex}, target: &w.luna, createErr: match.ErrDuplicatePendingMatch, wantErr: match.ErrDuplicatePendingMatch, expectTarget: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockMatchRepository)
			pets := new(MockPetLookup)
			pets.On("ListBreedingEligibleByOwner", mock.Anything, w.alice).Return(tt.eligible, nil).Once()
			if tt.expectTarget {
				if tt.targetErr != nil {
					pets.On("GetByID", mock.Anything, w.luna.ID).Return(nil, tt.targetErr).Once()
				} else {
					pets.On("GetByID", mock.Anything, w.luna.ID).Return(tt.target, nil).Once()
				}
			}
			if tt.createErr != nil {
				repo.On("Create", mock.Anything, mock.Anything).Return(tt.createErr).Once()
			}

			_, err := match.NewService(repo, pets, nil).SendRequest(context.Background(), w.alice, w.luna.ID, tt.chosen)

			require.ErrorIs(t, err, tt.wantErr)
			if tt.createErr == nil {
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
			pets.AssertExpectations(t)
		})
	}
}

func pendingMatch(w world) *match.Match {
	return &match.Match{
		ID:               uuid.Must(uuid.NewV4()),
		Pet:              match.RefOnly(w.rex.ID),
		PotentialPartner: match.RefOnly(w.luna.ID),
		OwnerID:          w.alice,
		PartnerOwnerID:   w.bob,
		Status:           match.StatusPending,
	}
}

func TestMatchService_Respond(t *testing.T) {
	w := newWorld()

	tests := []struct {
		name        string
		actor       func(w world) uuid.UUID
		current     match.Status
		accept      bool
		updateErr   error
		expectWrite bool
		wantErr     error
		wantStatus  match.Status
	}{
		{name: "partner_accepts", actor: func(w world) uuid.UUID { return w.bob }, current: match.StatusPending, accept: true, expectWrite: true, wantStatus: match.StatusAccepted},
		{name: "partner_rejects", actor: func(w world) uuid.UUID { return w.bob }, current: match.StatusPending, expectWrite: true, wantStatus: match.StatusRejected},
		{name: "requester_cannot_accept", actor: func(w world) uuid.UUID { return w.alice }, current: match.StatusPending, accept: true, wantErr: match.ErrNotPartnerOwner},
		{name: "stranger_cannot_reject", actor: func(world) uuid.UUID { return uuid.Must(uuid.NewV4()) }, current: match.StatusPending, wantErr: match.ErrNotPartnerOwner},
		{name: "accepted_is_terminal", actor: func(w world) uuid.UUID { return w.bob }, current: match.StatusAccepted, wantErr: match.ErrInvalidTransition},
		{name: "rejected_is_terminal", actor: func(w world) uuid.UUID { return w.bob }, current: match.StatusRejected, accept: true, wantErr: match.ErrInvalidTransition},
		{name: "lost_race", actor: func(w world) uuid.UUID { return w.bob }, current: match.StatusPending, accept: true, expectWrite: true, updateErr: match.ErrStatusChanged, wantErr: match.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockMatchRepository)
			m := pendingMatch(w)
			m.Status = tt.current
			target := match.StatusRejected
			if tt.accept {
				target = match.StatusAccepted
			}

			repo.On("GetByID", mock.Anything, m.ID).Return(m, nil).Once()
			if tt.expectWrite {
				if tt.updateErr != nil {
					repo.On("UpdateStatus", mock.Anything, m.ID, tt.current, target).Return(nil, tt.updateErr).Once()
				} else {
					updated := *m
					updated.Status = target
					repo.On("UpdateStatus", mock.Anything, m.ID, tt.current, target).Return(&updated, nil).Once()
				}
			}

			var observed []match.Status
			svc := match.NewService(repo, new(MockPetLookup), func(s match.Status) { observed = append(observed, s) })

			var (
				got *match.Match
				err error
			)
			if tt.accept {
				got, err = svc.Accept(context.Background(), tt.actor(w), m.ID)
			} else {
				got, err = svc.Reject(context.Background(), tt.actor(w), m.ID)
			}

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, observed)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, got.Status)
				assert.Equal(t, []match.Status{tt.wantStatus}, observed)
			}
			if !tt.expectWrite {
				repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestMatchService_GetMatch_ParticipantsOnly(t *testing.T) {
	w := newWorld()
	repo := new(MockMatchRepository)
	m := pendingMatch(w)
	repo.On("GetByID", mock.Anything, m.ID).Return(m, nil)
	svc := match.NewService(repo, new(MockPetLookup), nil)

	for _, viewer := range []uuid.UUID{w.alice, w.bob} {
		got, err := svc.GetMatch(context.Background(), viewer, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
	}

	_, err := svc.GetMatch(context.Background(), uuid.Must(uuid.NewV4()), m.ID)
	require.ErrorIs(t, err, match.ErrNotParticipant)
}

func TestMatchService_Lists(t *testing.T) {
	w := newWorld()
	repo := new(MockMatchRepository)
	svc := match.NewService(repo, new(MockPetLookup), nil)

	repo.On("ListForOwner", mock.Anything, w.bob, match.DirectionReceived).Return([]match.Match{*pendingMatch(w)}, nil).Once()
	repo.On("ListForOwner", mock.Anything, w.alice, match.DirectionSent).Return(nil, errors.New("db down")).Once()

	received, err := svc.ListReceived(context.Background(), w.bob)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	_, err = svc.ListSent(context.Background(), w.alice)
	require.Error(t, err)
	repo.AssertExpectations(t)
}

func TestPetRef_ExplicitOptional(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	bare := match.RefOnly(id)
	_, ok := bare.Detail()
	assert.False(t, ok)
	raw, err := json.Marshal(bare)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(raw))

	loaded := match.Loaded(match.PetSummary{ID: id, Name: "Luna", Species: "dog"})
	detail, ok := loaded.Detail()
	require.True(t, ok)
	assert.Equal(t, "Luna", detail.Name)
	raw, err = json.Marshal(loaded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`","name":"Luna","species":"dog"}`, string(raw))
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, match.StatusPending.Terminal())
	assert.True(t, match.StatusAccepted.Terminal())
	assert.True(t, match.StatusRejected.Terminal())
}
