package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/identity"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		case "min":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "url":
			details[field] = "must be a valid URL"
		case "uuid":
			details[field] = "must be a valid UUID"
		default:
			details[field] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return details
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}

// pathID parses a uuid URL parameter, answering 400 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return uuid.Nil, false
	}
	return userID, true
}

func mapErrorToStatusCode(err error) int {
	var selErr *match.SelectionRequiredError
	switch {
	case errors.As(err, &selErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pet.ErrPetNotFound),
		errors.Is(err, match.ErrMatchNotFound),
		errors.Is(err, match.ErrTargetNotFound),
		errors.Is(err, chat.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, pet.ErrNotOwner),
		errors.Is(err, match.ErrNotPartnerOwner),
		errors.Is(err, match.ErrNotParticipant),
		errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, match.ErrDuplicatePendingMatch),
		errors.Is(err, match.ErrInvalidTransition),
		errors.Is(err, chat.ErrMatchNotAccepted),
		errors.Is(err, chat.ErrSendInProgress):
		return http.StatusConflict
	case errors.Is(err, pet.ErrInvalidPet),
		errors.Is(err, match.ErrNoEligiblePet),
		errors.Is(err, match.ErrPetNotEligible),
		errors.Is(err, match.ErrTargetUnavailable),
		errors.Is(err, match.ErrOwnPet),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the domain error text for 4xx answers and the
// action-specific fallback otherwise.
func clientMessage(err error, fallback string) string {
	if mapErrorToStatusCode(err) >= http.StatusInternalServerError {
		return fallback
	}
	var selErr *match.SelectionRequiredError
	if errors.As(err, &selErr) {
		return "Choose which of your pets sends the request"
	}
	for _, target := range []error{
		pet.ErrPetNotFound, pet.ErrNotOwner, pet.ErrInvalidPet,
		match.ErrMatchNotFound, match.ErrTargetNotFound, match.ErrNotPartnerOwner, match.ErrNotParticipant,
		match.ErrDuplicatePendingMatch, match.ErrInvalidTransition, match.ErrNoEligiblePet, match.ErrPetNotEligible,
		match.ErrTargetUnavailable, match.ErrOwnPet,
		chat.ErrRoomNotFound, chat.ErrNotParticipant, chat.ErrMatchNotAccepted, chat.ErrSendInProgress,
		chat.ErrEmptyMessage, chat.ErrMessageTooLong,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return fallback
}

func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
	} else {
		log.Warn().Err(err).Int("status", code).Msg(fallback)
	}
	respondWithError(w, code, clientMessage(err, fallback))
}
