package domain

import "errors"

// Validation failures are raised before any request reaches the backend.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidDiscount      = errors.New("invalid discount")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrCustomerRequired     = errors.New("debt sale requires a customer")
	ErrInvalidDebtID        = errors.New("invalid debt record id")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrUnknownProduct       = errors.New("product is not in the catalog")
)

// Backend outcomes as seen by the terminal.
var (
	ErrStockConflict      = errors.New("insufficient stock on backend")
	ErrRejected           = errors.New("request rejected by backend")
	ErrUnauthorized       = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrRefreshFailed marks a write the backend recorded whose follow-up
	// read failed. The write must not be repeated.
	ErrRefreshFailed = errors.New("recorded, but refresh failed")
)
