package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stroymarket/pos/internal/domain"
)

func priceTable(prices map[string]int64) PriceLookup {
	return PriceFunc(func(id string) (int64, bool) {
		p, ok := prices[id]
		return p, ok
	})
}

func TestCalculatePercentDiscount(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "A", Quantity: 3},
		{ProductID: "B", Quantity: 2},
	}
	prices := priceTable(map[string]int64{"A": 1000, "B": 500})

	got := Calculate(lines, prices, domain.DiscountPolicy{Percent: 10})
	assert.Equal(t, Totals{SubtotalCents: 4000, DiscountCents: 400, TotalCents: 3600}, got)
}

func TestCalculateFlatDiscountFloorsAtZero(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "A", Quantity: 3}}
	prices := priceTable(map[string]int64{"A": 1000})

	got := Calculate(lines, prices, domain.DiscountPolicy{AmountCents: 5000})
	assert.Equal(t, int64(3000), got.SubtotalCents)
	assert.Equal(t, int64(5000), got.DiscountCents)
	assert.Equal(t, int64(0), got.TotalCents)
}

func TestPercentWinsOverFlatAmount(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "A", Quantity: 1}}
	prices := priceTable(map[string]int64{"A": 10000})

	got := Calculate(lines, prices, domain.DiscountPolicy{Percent: 5, AmountCents: 9000})
	assert.Equal(t, int64(500), got.DiscountCents)
	assert.Equal(t, int64(9500), got.TotalCents)
}

func TestTotalInvariantHolds(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "A", Quantity: 7}, {ProductID: "B", Quantity: 1}}
	prices := priceTable(map[string]int64{"A": 333, "B": 12345})

	policies := []domain.DiscountPolicy{
		{}, {Percent: 12.5}, {Percent: 100}, {AmountCents: 1}, {AmountCents: 1 << 40}, {Percent: 33.3, AmountCents: 5},
	}
	for _, policy := range policies {
		got := Calculate(lines, prices, policy)
		want := got.SubtotalCents - got.DiscountCents
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, got.TotalCents)
		assert.GreaterOrEqual(t, got.TotalCents, int64(0))
	}
}

func TestPriceReadAtCalculationTime(t *testing.T) {
	table := map[string]int64{"A": 1000}
	lines := []domain.CartLine{{ProductID: "A", Quantity: 2}}

	before := Calculate(lines, priceTable(table), domain.DiscountPolicy{})
	table["A"] = 1500
	after := Calculate(lines, priceTable(table), domain.DiscountPolicy{})

	assert.Equal(t, int64(2000), before.TotalCents)
	assert.Equal(t, int64(3000), after.TotalCents)
}

func TestUnknownProductContributesNothing(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "gone", Quantity: 4}, {ProductID: "A", Quantity: 1}}
	got := Calculate(lines, priceTable(map[string]int64{"A": 250}), domain.DiscountPolicy{})
	assert.Equal(t, int64(250), got.SubtotalCents)
}

func TestPercentRoundsToWholeCents(t *testing.T) {
	assert.Equal(t, int64(334), Discount(1001, domain.DiscountPolicy{Percent: 33.3333}))
	assert.Equal(t, int64(1), Discount(10, domain.DiscountPolicy{Percent: 5}))
}
