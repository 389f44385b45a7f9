package store

import (
	"context"
	"errors"

	"stroymarket/pos/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrCustomerBlocked    = errors.New("customer is blocked")
	ErrDebtLimitExceeded  = errors.New("debt limit exceeded")
	ErrConflict           = errors.New("conflict")
)

type CustomerFilter struct {
	// DebtGreaterThan keeps customers whose balance exceeds this many cents.
	// Nil disables the filter.
	DebtGreaterThan *int64
	Search          string
}

func (f CustomerFilter) Match(c domain.Customer) bool {
	if f.DebtGreaterThan != nil && c.DebtCents <= *f.DebtGreaterThan {
		return false
	}
	if f.Search == "" {
		return true
	}
	return containsFold(c.Name, f.Search) || containsFold(c.Phone, f.Search)
}

// Repository is the persistence contract of the store backend. CreateSale
// and ApplyDebtTransaction are atomic: either every stock and balance change
// is applied or none is. CreateSale reports a key that is already recorded
// with ErrConflict and leaves the earlier sale untouched.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)

	ListCustomers(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ApplyDebtTransaction(ctx context.Context, tx domain.DebtTransaction) (*domain.DebtTransaction, error)
	ListDebtTransactions(ctx context.Context, customerID string) ([]domain.DebtTransaction, error)

	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranch(ctx context.Context, id string) (*domain.Branch, error)
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	DeleteBranch(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) error
}
