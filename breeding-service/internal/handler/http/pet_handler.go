package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
)

type CreatePetRequest struct {
	Name                 string  `json:"name" validate:"required,min=1,max=100"`
	Species              string  `json:"species" validate:"required,max=50"`
	Breed                *string `json:"breed,omitempty" validate:"omitempty,max=100"`
	Gender               string  `json:"gender" validate:"required,oneof=male female"`
	BirthDate            *string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ImageURL             *string `json:"image_url,omitempty" validate:"omitempty,url"`
	AvailableForBreeding bool    `json:"available_for_breeding"`
}

type BreedingAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type PetHandler struct {
	service  pet.Service
	validate *validator.Validate
}

func NewPetHandler(service pet.Service) *PetHandler {
	return &PetHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *PetHandler) RegisterRoutes(router chi.Router) {
	router.Post("/pets", h.handleCreatePet)
	router.Get("/pets/mine", h.handleListMine)
	router.Get("/pets/{id}", h.handleGetPet)
	router.Patch("/pets/{id}/breeding", h.handleSetBreeding)
	router.Get("/breeding/candidates", h.handleListCandidates)
}

func (h *PetHandler) handleCreatePet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var requestPayload CreatePetRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	domainPet := pet.Pet{
		OwnerID:              ownerID,
		Name:                 requestPayload.Name,
		Species:              requestPayload.Species,
		Breed:                requestPayload.Breed,
		Gender:               pet.Gender(requestPayload.Gender),
		ImageURL:             requestPayload.ImageURL,
		AvailableForBreeding: requestPayload.AvailableForBreeding,
	}
	if requestPayload.BirthDate != nil {
		birth, err := time.Parse(time.DateOnly, *requestPayload.BirthDate)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid birth_date")
			return
		}
		domainPet.BirthDate = &birth
	}

	created, err := h.service.CreatePet(r.Context(), &domainPet)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create pet")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// handleListMine lists the caller's pets; ?eligible=true keeps only those
// available for breeding.
func (h *PetHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var (
		pets []pet.Pet
		err  error
	)
	if eligible, _ := strconv.ParseBool(r.URL.Query().Get("eligible")); eligible {
		pets, err = h.service.ListEligible(r.Context(), ownerID)
	} else {
		pets, err = h.service.ListMine(r.Context(), ownerID)
	}
	if err != nil {
		respondWithServiceError(w, err, "Failed to list pets")
		return
	}
	if pets == nil {
		pets = []pet.Pet{}
	}

	respondWithJSON(w, http.StatusOK, pets)
}

func (h *PetHandler) handleGetPet(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetPet(r.Context(), petID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get pet")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *PetHandler) handleSetBreeding(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	petID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var requestPayload BreedingAvailabilityRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.SetBreedingAvailability(r.Context(), ownerID, petID, *requestPayload.Available)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update breeding availability")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *PetHandler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := pet.CandidateFilter{Species: query.Get("species")}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
			return
		}
		*dst = n
	}

	candidates, err := h.service.ListCandidates(r.Context(), viewerID, filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list breeding candidates")
		return
	}
	if candidates == nil {
		candidates = []pet.Pet{}
	}

	respondWithJSON(w, http.StatusOK, candidates)
}
