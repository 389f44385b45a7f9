package store

import (
	"fmt"
	"strings"

	"stroymarket/pos/internal/domain"
)

// ApplyDebt moves the customer's balance by one ledger entry. Payments floor
// the balance at zero. A customer with a debt limit is blocked once the
// balance reaches it and unblocked when a payment brings it back below.
func ApplyDebt(c *domain.Customer, tx domain.DebtTransaction) error {
	if tx.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}

	switch tx.Type {
	case domain.DebtAdded, domain.DebtAdjustment:
		c.DebtCents += tx.AmountCents
	case domain.DebtPayment:
		c.DebtCents -= tx.AmountCents
		if c.DebtCents < 0 {
			c.DebtCents = 0
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidTransaction, tx.Type)
	}

	switch {
	case c.DebtLimitCents > 0 && c.DebtCents >= c.DebtLimitCents && c.Status == domain.CustomerStatusActive:
		c.Status = domain.CustomerStatusBlockedByDebt
	case c.Status == domain.CustomerStatusBlockedByDebt && c.DebtCents < c.DebtLimitCents:
		c.Status = domain.CustomerStatusActive
	}
	return nil
}

// CheckDebtSale reports whether c may take amountCents more on credit.
func CheckDebtSale(c domain.Customer, amountCents int64) error {
	if c.Status == domain.CustomerStatusBlocked || c.Status == domain.CustomerStatusBlockedByDebt {
		return fmt.Errorf("%w: %s", ErrCustomerBlocked, c.Name)
	}
	if c.DebtLimitCents > 0 && c.DebtCents+amountCents > c.DebtLimitCents {
		return fmt.Errorf("%w: %s", ErrDebtLimitExceeded, c.Name)
	}
	return nil
}

// ValidateProduct rejects products that may not be persisted.
func ValidateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("%w: name and category are required", ErrInvalidTransaction)
	}
	if p.SellPriceCents < 0 || p.BuyPriceCents < 0 || p.MinStock < 0 || p.CurrentStock < 0 {
		return fmt.Errorf("%w: negative price or stock", ErrInvalidTransaction)
	}
	return nil
}

func containsFold(s string, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}
