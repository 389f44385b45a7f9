// Package pricing computes cart totals from the current catalog prices.
package pricing

import (
	"github.com/shopspring/decimal"

	"stroymarket/pos/internal/domain"
)

// PriceLookup resolves a product's current sell price in cents.
type PriceLookup interface {
	Price(productID string) (int64, bool)
}

type PriceFunc func(productID string) (int64, bool)

func (f PriceFunc) Price(productID string) (int64, bool) {
	return f(productID)
}

type Totals struct {
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
}

var hundred = decimal.NewFromInt(100)

// Calculate sums lines at the prices known right now. A non-zero percent
// discount overrides the flat amount; the total never drops below zero.
// Lines whose product is unknown contribute nothing.
func Calculate(lines []domain.CartLine, prices PriceLookup, policy domain.DiscountPolicy) Totals {
	var subtotal int64
	for _, line := range lines {
		price, ok := prices.Price(line.ProductID)
		if !ok {
			continue
		}
		subtotal += LineTotal(price, line.Quantity)
	}

	discount := Discount(subtotal, policy)
	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	return Totals{SubtotalCents: subtotal, DiscountCents: discount, TotalCents: total}
}

// Discount returns the effective discount for subtotal, rounded half away
// from zero to whole cents for percentages.
func Discount(subtotal int64, policy domain.DiscountPolicy) int64 {
	if policy.Percent > 0 {
		return decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromFloat(policy.Percent)).
			Div(hundred).
			Round(0).
			IntPart()
	}
	if policy.AmountCents > 0 {
		return policy.AmountCents
	}
	return 0
}

func LineTotal(priceCents int64, quantity int) int64 {
	return priceCents * int64(quantity)
}
