package cart

import (
	"github.com/shopspring/decimal"
)

// Cart is the session's list of line items. Totals are never stored: they
// are derived from the items whenever they are read.
//
// A Cart is not safe for concurrent use; Store serializes access.
type Cart struct {
	items []Item
}

func New() *Cart {
	return &Cart{}
}

// Add appends item with quantity 1, or bumps the quantity of an existing
// entry with the same id. The quantity carried by item is ignored.
func (c *Cart) Add(item Item) {
	if i := c.indexOf(item.ID); i >= 0 {
		c.items[i].Quantity++
		return
	}
	item.Quantity = 1
	c.items = append(c.items, item)
}

// Remove deletes the entry with the given id. Unknown ids are ignored.
func (c *Cart) Remove(id string) {
	i := c.indexOf(id)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// UpdateQuantity overwrites the quantity of an entry; quantity <= 0 removes it.
func (c *Cart) UpdateQuantity(id string, quantity int) {
	if quantity <= 0 {
		c.Remove(id)
		return
	}
	if i := c.indexOf(id); i >= 0 {
		c.items[i].Quantity = quantity
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

// ItemCount is the sum of quantities, not the number of entries.
func (c *Cart) ItemCount() int {
	return countItems(c.items)
}

// Items returns a copy in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Totals() Totals {
	return ComputeTotals(c.items)
}

func (c *Cart) State() State {
	items := c.Items()
	return State{
		Items:     items,
		ItemCount: countItems(items),
		Totals:    ComputeTotals(items),
	}
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

// ComputeTotals derives subtotal, delivery fee and grand total from items.
// Delivery is charged per qualifying item, not once per provider.
func ComputeTotals(items []Item) Totals {
	total := decimal.Zero
	delivery := decimal.Zero

	for _, item := range items {
		total = total.Add(item.LineTotal())
		if item.HasDelivery {
			delivery = delivery.Add(item.DeliveryFee)
		}
	}

	return Totals{
		Total:       total,
		DeliveryFee: delivery,
		GrandTotal:  total.Add(delivery),
	}
}

func countItems(items []Item) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
