package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/cart"
)

type OrderStatus string

const (
	StatusNew        OrderStatus = "NEW"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusPaid       OrderStatus = "PAID"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

func (os OrderStatus) String() string {
	return string(os)
}

func (os OrderStatus) Valid() bool {
	_, ok := allowedTransitions[os]
	return ok
}

// OrderItem is a cart line frozen at checkout time.
type OrderItem struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	OrderID      uuid.UUID         `json:"order_id" db:"order_id"`
	CartItemID   string            `json:"cart_item_id" db:"cart_item_id"`
	Type         cart.ItemType     `json:"type" db:"item_type"`
	Name         string            `json:"name" db:"name"`
	ProviderID   string            `json:"provider_id" db:"provider_id"`
	ProviderName string            `json:"provider_name" db:"provider_name"`
	Quantity     int               `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal   `json:"unit_price" db:"unit_price"`
	DeliveryFee  decimal.Decimal   `json:"delivery_fee" db:"delivery_fee"`
	ServiceData  *cart.ServiceData `json:"service_data,omitempty" db:"service_data"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

type Order struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	UserID              uuid.UUID       `json:"user_id" db:"user_id"`
	Status              OrderStatus     `json:"status" db:"status"`
	OrderItems          []OrderItem     `json:"order_items" db:"-"`
	Currency            string          `json:"currency" db:"currency"`
	Subtotal            decimal.Decimal `json:"subtotal" db:"subtotal"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee" db:"delivery_fee"`
	GrandTotal          decimal.Decimal `json:"grand_total" db:"grand_total"`
	ShippingAddressText string          `json:"shipping_address_text,omitempty" db:"shipping_address_text"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}
