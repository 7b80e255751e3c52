package cart_test

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/cart"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id, price string) cart.Item {
	return cart.Item{
		ID:           id,
		Type:         cart.TypeProduct,
		Name:         "Item " + id,
		Price:        dec(price),
		Currency:     "EUR",
		ProviderID:   "prov-1",
		ProviderName: "Pet Shop",
	}
}

func delivered(item cart.Item, fee string) cart.Item {
	item.HasDelivery = true
	item.DeliveryFee = dec(fee)
	return item
}

func decEqual(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestCart_AddNewAndExisting(t *testing.T) {
	c := cart.New()

	in := product("food", "10.50")
	in.Quantity = 7 // ignored
	c.Add(in)
	c.Add(product("toy", "3"))
	c.Add(product("food", "10.50"))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "food", items[0].ID, "insertion order is display order")
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, 3, c.ItemCount())
	decEqual(t, "24", c.Totals().Total, "total")
}

func TestCart_RemoveAbsentIsNoop(t *testing.T) {
	c := cart.New()
	c.Add(delivered(product("a", "5"), "2"))

	before := c.State()
	c.Remove("does-not-exist")
	after := c.State()

	if diff := cmp.Diff(before.Items, after.Items, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("items changed after removing an absent id (-before +after):\n%s", diff)
	}
	decEqual(t, before.GrandTotal.String(), after.GrandTotal, "grand_total")
}

func TestCart_UpdateQuantityFloor(t *testing.T) {
	for _, q := range []int{0, -5} {
		t.Run(strconv.Itoa(q), func(t *testing.T) {
			c := cart.New()
			c.Add(product("a", "5"))
			c.Add(product("b", "1"))

			c.UpdateQuantity("a", q)

			items := c.Items()
			require.Len(t, items, 1)
			assert.Equal(t, "b", items[0].ID)
		})
	}
}

func TestCart_UpdateQuantityOverwrites(t *testing.T) {
	c := cart.New()
	c.Add(product("a", "2.25"))
	c.Add(product("a", "2.25"))

	c.UpdateQuantity("a", 5)
	c.UpdateQuantity("missing", 3)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	decEqual(t, "11.25", c.Totals().Total, "total")
}

func TestCart_DeliveryFeePerQualifyingItem(t *testing.T) {
	c := cart.New()
	c.Add(delivered(product("a", "10"), "3"))
	c.Add(delivered(product("b", "4"), "3")) // same provider, still charged
	c.Add(product("c", "1"))
	c.Add(delivered(product("a", "10"), "3")) // quantity does not multiply the fee

	totals := c.Totals()
	decEqual(t, "25", totals.Total, "total")
	decEqual(t, "6", totals.DeliveryFee, "delivery_fee")
	decEqual(t, "31", totals.GrandTotal, "grand_total")
}

func TestCart_ClearResetsToZero(t *testing.T) {
	c := cart.New()
	c.Add(delivered(product("a", "10"), "3"))
	c.Clear()

	state := c.State()
	assert.Empty(t, state.Items)
	assert.Zero(t, state.ItemCount)
	assert.True(t, state.GrandTotal.IsZero())
}

func TestCart_TotalsTrackItemsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalog := []cart.Item{
		product("p1", "9.99"),
		delivered(product("p2", "15.00"), "4.50"),
		delivered(product("p3", "0.35"), "1.00"),
		product("p4", "120"),
	}
	catalog = append(catalog, cart.Item{
		ID:          "svc-grooming",
		Type:        cart.TypeService,
		Name:        "Grooming",
		Price:       dec("30"),
		Currency:    "EUR",
		ServiceData: &cart.ServiceData{AppointmentDate: "2026-11-02", TimeSlotID: "slot-9"},
	})

	c := cart.New()
	for step := 0; step < 500; step++ {
		item := catalog[rng.Intn(len(catalog))]
		switch rng.Intn(3) {
		case 0:
			c.Add(item)
		case 1:
			c.Remove(item.ID)
		case 2:
			c.UpdateQuantity(item.ID, rng.Intn(6)-2)
		}

		state := c.State()
		wantTotal := decimal.Zero
		wantDelivery := decimal.Zero
		wantCount := 0
		seen := map[string]bool{}
		for _, it := range state.Items {
			require.GreaterOrEqual(t, it.Quantity, 1, "step %d", step)
			require.False(t, seen[it.ID], "duplicate id %s at step %d", it.ID, step)
			seen[it.ID] = true

			wantTotal = wantTotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
			if it.HasDelivery {
				wantDelivery = wantDelivery.Add(it.DeliveryFee)
			}
			wantCount += it.Quantity
		}

		require.True(t, wantTotal.Equal(state.Total), "total at step %d", step)
		require.True(t, wantDelivery.Equal(state.DeliveryFee), "delivery at step %d", step)
		require.True(t, state.Total.Add(state.DeliveryFee).Equal(state.GrandTotal), "grand total at step %d", step)
		require.Equal(t, wantCount, state.ItemCount, "count at step %d", step)
	}
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := cart.New()
	c.Add(product("a", "1"))

	items := c.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, c.ItemCount())
}
