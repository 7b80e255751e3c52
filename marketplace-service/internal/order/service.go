package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/cart"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusNew: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusPaid:      true,
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrMixedCurrency           = errors.New("cart contains items in more than one currency")
	ErrInvalidItem             = errors.New("cart item is invalid")
	ErrInvalidStatus           = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrForbidden               = errors.New("order belongs to another user")
)

type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, state cart.State, shippingAddress string) (*Order, error)
	GetOrderByID(ctx context.Context, userID, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, newStatus OrderStatus) error
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{orderRepo: orderRepo}
}

// Checkout turns a cart snapshot into a NEW order. Totals are recomputed
// from the items rather than trusted from the snapshot.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, state cart.State, shippingAddress string) (*Order, error) {
	if len(state.Items) == 0 {
		log.Warn().Stringer("user_id", userID).Msg("service: attempt to checkout an empty cart")
		return nil, ErrEmptyCart
	}

	currency := state.Items[0].Currency
	items := make([]OrderItem, 0, len(state.Items))
	for _, ci := range state.Items {
		if ci.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be greater than zero", ErrInvalidItem, ci.ID)
		}
		if ci.Price.IsNegative() || ci.DeliveryFee.IsNegative() {
			return nil, fmt.Errorf("%w: price for %s cannot be negative", ErrInvalidItem, ci.ID)
		}
		if !strings.EqualFold(ci.Currency, currency) {
			return nil, ErrMixedCurrency
		}

		item := OrderItem{
			CartItemID:   ci.ID,
			Type:         ci.Type,
			Name:         ci.Name,
			ProviderID:   ci.ProviderID,
			ProviderName: ci.ProviderName,
			Quantity:     ci.Quantity,
			UnitPrice:    ci.Price,
			ServiceData:  ci.ServiceData,
		}
		if ci.HasDelivery {
			item.DeliveryFee = ci.DeliveryFee
		}
		items = append(items, item)
	}

	totals := cart.ComputeTotals(state.Items)

	o := &Order{
		UserID:              userID,
		Status:              StatusNew,
		OrderItems:          items,
		Currency:            strings.ToUpper(currency),
		Subtotal:            totals.Total,
		DeliveryFee:         totals.DeliveryFee,
		GrandTotal:          totals.GrandTotal,
		ShippingAddressText: strings.TrimSpace(shippingAddress),
	}

	if _, err := s.orderRepo.CreateOrder(ctx, o); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Stringer("user_id", userID).Str("grand_total", o.GrandTotal.String()).Msg("service: order created from cart")
	return o, nil
}

func (s *service) GetOrderByID(ctx context.Context, userID, id uuid.UUID) (*Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	if order.UserID != userID {
		return nil, ErrForbidden
	}

	return order, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus moves one of userID's orders along the transition table.
func (s *service) UpdateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, newStatus OrderStatus) error {
	if !newStatus.Valid() {
		return ErrInvalidStatus
	}

	currentOrder, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for status update")
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if currentOrder.UserID != userID {
		log.Warn().Stringer("order_id", orderID).Stringer("user_id", userID).Msg("service: status update attempted on another user's order")
		return ErrForbidden
	}

	if currentOrder.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return nil
	}

	if !allowedTransitions[currentOrder.Status][newStatus] {
		log.Warn().
			Stringer("order_id", currentOrder.ID).
			Stringer("current_status", currentOrder.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, currentOrder.Status, newStatus)
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", currentOrder.Status).Stringer("new_status", newStatus).Msg("service: order status updated successfully")
	return nil
}
