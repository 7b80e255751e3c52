package cart

import (
	"github.com/shopspring/decimal"
)

type ItemType string

const (
	TypeProduct ItemType = "product"
	TypeService ItemType = "service"
)

func (t ItemType) String() string {
	return string(t)
}

// ServiceData holds appointment details for service line items.
type ServiceData struct {
	AppointmentDate string `json:"appointment_date"`
	TimeSlotID      string `json:"time_slot_id,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
	ClientPhone     string `json:"client_phone,omitempty"`
	ClientEmail     string `json:"client_email,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type Item struct {
	ID           string          `json:"id"`
	Type         ItemType        `json:"type"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Quantity     int             `json:"quantity"`
	ProviderID   string          `json:"provider_id"`
	ProviderName string          `json:"provider_name"`
	ImageURL     string          `json:"image_url,omitempty"`
	Description  string          `json:"description,omitempty"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	HasDelivery  bool            `json:"has_delivery"`
	HasPickup    bool            `json:"has_pickup"`
	ServiceData  *ServiceData    `json:"service_data,omitempty"`
}

// LineTotal is price × quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Totals struct {
	Total       decimal.Decimal `json:"total"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// State is a point-in-time snapshot of a cart with its derived totals.
type State struct {
	Items     []Item `json:"items"`
	ItemCount int    `json:"item_count"`
	Totals
}
