package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/cart"
)

// CartStore is the session-keyed cart state the handlers read and mutate.
type CartStore interface {
	Get(sessionID string) cart.State
	Add(sessionID string, item cart.Item) cart.State
	Remove(sessionID, itemID string) cart.State
	UpdateQuantity(sessionID, itemID string, quantity int) cart.State
	Clear(sessionID string) cart.State
	RemoveCheckedOut(sessionID string, ordered []cart.Item) cart.State
	ItemCount(sessionID string) int
}

type ServiceDataRequest struct {
	AppointmentDate string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	TimeSlotID      string `json:"time_slot_id"`
	ClientName      string `json:"client_name" validate:"omitempty,max=200"`
	ClientPhone     string `json:"client_phone" validate:"omitempty,max=50"`
	ClientEmail     string `json:"client_email" validate:"omitempty,email"`
	Notes           string `json:"notes" validate:"omitempty,max=1000"`
}

type AddItemRequest struct {
	ID           string              `json:"id" validate:"required"`
	Type         string              `json:"type" validate:"required,oneof=product service"`
	Name         string              `json:"name" validate:"required"`
	Price        decimal.Decimal     `json:"price"`
	Currency     string              `json:"currency" validate:"required,len=3"`
	ProviderID   string              `json:"provider_id" validate:"required"`
	ProviderName string              `json:"provider_name"`
	ImageURL     string              `json:"image_url" validate:"omitempty,url"`
	Description  string              `json:"description"`
	DeliveryFee  decimal.Decimal     `json:"delivery_fee"`
	HasDelivery  bool                `json:"has_delivery"`
	HasPickup    bool                `json:"has_pickup"`
	ServiceData  *ServiceDataRequest `json:"service_data" validate:"required_if=Type service"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CountResponse struct {
	ItemCount int `json:"item_count"`
}

type CartHandler struct {
	store    CartStore
	sessions Sessions
	validate *validator.Validate
}

func NewCartHandler(store CartStore, sessions Sessions) *CartHandler {
	return &CartHandler{
		store:    store,
		sessions: sessions,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Route("/cart", func(r chi.Router) {
		r.Get("/", h.handleGetCart)
		r.Delete("/", h.handleClearCart)
		r.Get("/count", h.handleCount)
		r.Post("/items", h.handleAddItem)
		r.Patch("/items/{id}", h.handleUpdateQuantity)
		r.Delete("/items/{id}", h.handleRemoveItem)
	})
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessions.Peek(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, cart.New().State())
		return
	}
	respondWithJSON(w, http.StatusOK, h.store.Get(sessionID))
}

func (h *CartHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	count := 0
	if sessionID, ok := h.sessions.Peek(r); ok {
		count = h.store.ItemCount(sessionID)
	}
	respondWithJSON(w, http.StatusOK, CountResponse{ItemCount: count})
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var requestPayload AddItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	if requestPayload.Price.IsNegative() || requestPayload.DeliveryFee.IsNegative() {
		respondWithError(w, http.StatusBadRequest, "Price and delivery fee cannot be negative")
		return
	}

	item := cart.Item{
		ID:           requestPayload.ID,
		Type:         cart.ItemType(requestPayload.Type),
		Name:         requestPayload.Name,
		Price:        requestPayload.Price,
		Currency:     strings.ToUpper(requestPayload.Currency),
		ProviderID:   requestPayload.ProviderID,
		ProviderName: requestPayload.ProviderName,
		ImageURL:     requestPayload.ImageURL,
		Description:  requestPayload.Description,
		DeliveryFee:  requestPayload.DeliveryFee,
		HasDelivery:  requestPayload.HasDelivery,
		HasPickup:    requestPayload.HasPickup,
	}
	if sd := requestPayload.ServiceData; sd != nil && item.Type == cart.TypeService {
		item.ServiceData = &cart.ServiceData{
			AppointmentDate: sd.AppointmentDate,
			TimeSlotID:      sd.TimeSlotID,
			ClientName:      sd.ClientName,
			ClientPhone:     sd.ClientPhone,
			ClientEmail:     sd.ClientEmail,
			Notes:           sd.Notes,
		}
	}

	sessionID, err := h.sessions.ID(w, r)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve cart session")
		respondWithError(w, http.StatusInternalServerError, "Failed to add item to cart")
		return
	}
	state := h.store.Add(sessionID, item)

	log.Debug().Str("item_id", item.ID).Int("item_count", state.ItemCount).Msg("Item added to cart")
	respondWithJSON(w, http.StatusOK, state)
}

func (h *CartHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var requestPayload UpdateQuantityRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	sessionID, ok := h.sessions.Peek(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, cart.New().State())
		return
	}

	respondWithJSON(w, http.StatusOK, h.store.UpdateQuantity(sessionID, itemID, *requestPayload.Quantity))
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	sessionID, ok := h.sessions.Peek(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, cart.New().State())
		return
	}

	respondWithJSON(w, http.StatusOK, h.store.Remove(sessionID, itemID))
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessions.Peek(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, cart.New().State())
		return
	}

	respondWithJSON(w, http.StatusOK, h.store.Clear(sessionID))
}
