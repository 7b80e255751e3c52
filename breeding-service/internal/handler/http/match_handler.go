package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
)

type SendRequestRequest struct {
	TargetPetID    string `json:"target_pet_id" validate:"required,uuid"`
	RequesterPetID string `json:"requester_pet_id,omitempty" validate:"omitempty,uuid"`
}

type SelectionRequiredResponse struct {
	Error   string    `json:"error"`
	Choices []pet.Pet `json:"choices"`
}

type MatchHandler struct {
	service  match.Service
	validate *validator.Validate
}

func NewMatchHandler(service match.Service) *MatchHandler {
	return &MatchHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *MatchHandler) RegisterRoutes(router chi.Router) {
	router.Route("/breeding/matches", func(r chi.Router) {
		r.Post("/", h.handleSendRequest)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/accept", h.handleAccept)
		r.Post("/{id}/reject", h.handleReject)
	})
}

func (h *MatchHandler) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var requestPayload SendRequestRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	targetID := uuid.FromStringOrNil(requestPayload.TargetPetID)
	requesterPetID := uuid.FromStringOrNil(requestPayload.RequesterPetID)

	created, err := h.service.SendRequest(r.Context(), requesterID, targetID, requesterPetID)
	if err != nil {
		var selErr *match.SelectionRequiredError
		if errors.As(err, &selErr) {
			respondWithJSON(w, http.StatusUnprocessableEntity, SelectionRequiredResponse{
				Error:   clientMessage(err, ""),
				Choices: selErr.Choices,
			})
			return
		}
		respondWithServiceError(w, err, "Failed to send breeding request")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *MatchHandler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var (
		matches []match.Match
		err     error
	)
	switch match.Direction(r.URL.Query().Get("direction")) {
	case match.DirectionReceived, "":
		matches, err = h.service.ListReceived(r.Context(), userID)
	case match.DirectionSent:
		matches, err = h.service.ListSent(r.Context(), userID)
	default:
		respondWithError(w, http.StatusBadRequest, "direction must be one of: received sent")
		return
	}
	if err != nil {
		respondWithServiceError(w, err, "Failed to list breeding matches")
		return
	}
	if matches == nil {
		matches = []match.Match{}
	}

	respondWithJSON(w, http.StatusOK, matches)
}

func (h *MatchHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetMatch(r.Context(), userID, matchID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get breeding match")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *MatchHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Accept, "Failed to accept breeding request")
}

func (h *MatchHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Reject, "Failed to reject breeding request")
}

type responder func(ctx context.Context, actorID, matchID uuid.UUID) (*match.Match, error)

func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, action responder, failure string) {
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	updated, err := action(r.Context(), actorID, matchID)
	if err != nil {
		respondWithServiceError(w, err, failure)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
