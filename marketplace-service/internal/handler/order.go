package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/identity"
)

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderResponse struct {
	ID                  uuid.UUID         `json:"id"`
	Status              order.OrderStatus `json:"status"`
	Items               []order.OrderItem `json:"items"`
	Currency            string            `json:"currency"`
	Subtotal            decimal.Decimal   `json:"subtotal"`
	DeliveryFee         decimal.Decimal   `json:"delivery_fee"`
	GrandTotal          decimal.Decimal   `json:"grand_total"`
	ShippingAddressText string            `json:"shipping_address_text,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	items := o.OrderItems
	if items == nil {
		items = []order.OrderItem{}
	}
	return OrderResponse{
		ID:                  o.ID,
		Status:              o.Status,
		Items:               items,
		Currency:            o.Currency,
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		GrandTotal:          o.GrandTotal,
		ShippingAddressText: o.ShippingAddressText,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

type OrderHandler struct {
	service   order.Service
	carts     CartStore
	sessions  Sessions
	validate  *validator.Validate
	checkouts *prometheus.CounterVec
}

// NewOrderHandler wires checkout against the cart store. checkouts may be nil.
func NewOrderHandler(service order.Service, carts CartStore, sessions Sessions, checkouts *prometheus.CounterVec) *OrderHandler {
	return &OrderHandler{
		service:   service,
		carts:     carts,
		sessions:  sessions,
		validate:  validator.New(),
		checkouts: checkouts,
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/checkout", h.handleCheckout)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrderByID)
		r.Patch("/orders/{id}/status", h.handleUpdateStatus)
	})
}

func (h *OrderHandler) observeCheckout(result string) {
	if h.checkouts != nil {
		h.checkouts.WithLabelValues(result).Inc()
	}
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	var requestPayload CheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	sessionID, ok := h.sessions.Peek(r)
	if !ok {
		h.observeCheckout("rejected")
		respondWithError(w, http.StatusUnprocessableEntity, "Cart is empty")
		return
	}

	snapshot := h.carts.Get(sessionID)
	created, err := h.service.Checkout(r.Context(), userID, snapshot, requestPayload.ShippingAddress)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to checkout cart via service")

		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			clientMessage = "Cart is empty"
		case errors.Is(err, order.ErrMixedCurrency):
			clientMessage = "Cart items must share one currency"
		case errors.Is(err, order.ErrInvalidItem):
			clientMessage = "Cart contains an invalid item"
		default:
			clientMessage = "Failed to place order"
		}

		if statusCode >= http.StatusInternalServerError {
			h.observeCheckout("failed")
		} else {
			h.observeCheckout("rejected")
		}
		respondWithError(w, statusCode, clientMessage)
		return
	}

	h.carts.RemoveCheckedOut(sessionID, snapshot.Items)
	h.observeCheckout("created")

	respondWithJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	orders, err := h.service.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	responsePayload := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		responsePayload = append(responsePayload, toOrderResponse(&orders[i]))
	}

	respondWithJSON(w, http.StatusOK, responsePayload)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	idParam := chi.URLParam(r, "id")
	orderID, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("order_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), userID, orderID)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		switch {
		case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrForbidden):
			clientMessage = "Order not found"
		default:
			log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to get order by id via service")
			clientMessage = "Failed to get order"
		}

		respondWithError(w, statusCode, clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(found))
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	idParam := chi.URLParam(r, "id")
	orderID, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("order_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	err = h.service.UpdateOrderStatus(r.Context(), userID, orderID, order.OrderStatus(requestPayload.Status))
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("user_id", userID).Msg("Failed to update order status via service")

		statusCode := mapErrorToStatusCode(err)

		var clientMessage string
		switch {
		case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrForbidden):
			clientMessage = "Order not found"
		case errors.Is(err, order.ErrInvalidStatus):
			clientMessage = "Unknown order status"
		case errors.Is(err, order.ErrInvalidStatusTransition):
			clientMessage = "Order status cannot change that way"
		default:
			clientMessage = "Failed to update order status"
		}

		respondWithError(w, statusCode, clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
