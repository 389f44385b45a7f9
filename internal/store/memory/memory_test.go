package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/store"
)

var _ store.Repository = (*Store)(nil)

func productByName(t *testing.T, s *Store, name string) domain.Product {
	t.Helper()
	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	for _, p := range products {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("product %q not seeded", name)
	return domain.Product{}
}

func TestNewSeededCatalog(t *testing.T) {
	t.Setenv("SEED_SELLER_PIN", "")
	s := NewSeeded()
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 12)
	for i := 1; i < len(products); i++ {
		assert.LessOrEqual(t, products[i-1].Category, products[i].Category)
	}

	branches, err := s.ListBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "1", branches[0].ID)

	employees, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 3)
	assert.Equal(t, domain.RoleSuperAdmin, employees[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(employees[1].PINHash), []byte("739154")))
	assert.True(t, s.UsesDefaultPINs())
}

func TestCreateSaleDecrementsStockAndRejectsReusedKey(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	cement := productByName(t, s, "Sement M400")

	sale := domain.Sale{
		IdempotencyKey: "sale-1",
		BranchID:       "1",
		PaymentMethod:  domain.PaymentCash,
		TotalCents:     2 * cement.SellPriceCents,
		Items: []domain.SaleLine{{
			ProductID:  cement.ID,
			Quantity:   2,
			PriceCents: cement.SellPriceCents,
			TotalCents: 2 * cement.SellPriceCents,
		}},
	}
	created, err := s.CreateSale(ctx, sale)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Regexp(t, `^SALE-\d{14}-\d{3}$`, created.ReceiptID)
	assert.Equal(t, "Sement M400", created.Items[0].ProductName)
	assert.Equal(t, cement.BuyPriceCents, created.Items[0].CostPriceCents)

	again, err := s.CreateSale(ctx, sale)
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Nil(t, again)

	after, err := s.GetProduct(ctx, cement.ID)
	require.NoError(t, err)
	assert.Equal(t, cement.CurrentStock-2, after.CurrentStock)

	found, err := s.FindSaleByIdempotency(ctx, "sale-1")
	require.NoError(t, err)
	assert.Equal(t, created.ReceiptID, found.ReceiptID)
}

func TestCreateSaleInsufficientStockChangesNothing(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	cement := productByName(t, s, "Sement M400")
	putty := productByName(t, s, "Shpaklyovka")

	_, err := s.CreateSale(ctx, domain.Sale{
		IdempotencyKey: "sale-short",
		PaymentMethod:  domain.PaymentCash,
		Items: []domain.SaleLine{
			{ProductID: cement.ID, Quantity: 1, PriceCents: cement.SellPriceCents, TotalCents: cement.SellPriceCents},
			{ProductID: putty.ID, Quantity: putty.CurrentStock + 1, PriceCents: putty.SellPriceCents},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	after, err := s.GetProduct(ctx, cement.ID)
	require.NoError(t, err)
	assert.Equal(t, cement.CurrentStock, after.CurrentStock)

	_, err = s.FindSaleByIdempotency(ctx, "sale-short")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateSaleDuplicateLinesShareStock(t *testing.T) {
	s := NewSeeded()
	putty := productByName(t, s, "Shpaklyovka")

	_, err := s.CreateSale(context.Background(), domain.Sale{
		IdempotencyKey: "sale-dup",
		PaymentMethod:  domain.PaymentCash,
		Items: []domain.SaleLine{
			{ProductID: putty.ID, Quantity: putty.CurrentStock},
			{ProductID: putty.ID, Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestDebtSaleChargesCustomer(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	sand := productByName(t, s, "Qum")

	created, err := s.CreateSale(ctx, domain.Sale{
		IdempotencyKey: "sale-debt",
		CustomerID:     "1",
		PaymentMethod:  domain.PaymentDebt,
		TotalCents:     sand.SellPriceCents,
		Items:          []domain.SaleLine{{ProductID: sand.ID, Quantity: 1, PriceCents: sand.SellPriceCents, TotalCents: sand.SellPriceCents}},
	})
	require.NoError(t, err)

	customer, err := s.GetCustomer(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(15000000)+sand.SellPriceCents, customer.DebtCents)

	history, err := s.ListDebtTransactions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.DebtAdded, history[0].Type)
	assert.Equal(t, created.ReceiptID, history[0].SaleReceiptID)
	assert.Equal(t, "Sotuv "+created.ReceiptID, history[0].Note)
}

func TestDebtSaleRejectedForBlockedCustomerAndOverLimit(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	paint := productByName(t, s, "Bo'yoq oq 10L")
	line := []domain.SaleLine{{ProductID: paint.ID, Quantity: 1, PriceCents: paint.SellPriceCents, TotalCents: paint.SellPriceCents}}

	_, err := s.CreateSale(ctx, domain.Sale{IdempotencyKey: "k1", CustomerID: "4", PaymentMethod: domain.PaymentDebt, TotalCents: paint.SellPriceCents, Items: line})
	assert.ErrorIs(t, err, store.ErrCustomerBlocked)

	_, err = s.CreateSale(ctx, domain.Sale{IdempotencyKey: "k2", CustomerID: "1", PaymentMethod: domain.PaymentDebt, TotalCents: 40000000, Items: line})
	assert.ErrorIs(t, err, store.ErrDebtLimitExceeded)

	_, err = s.CreateSale(ctx, domain.Sale{IdempotencyKey: "k3", PaymentMethod: domain.PaymentDebt, Items: line})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	after, err := s.GetProduct(ctx, paint.ID)
	require.NoError(t, err)
	assert.Equal(t, paint.CurrentStock, after.CurrentStock)
}

func TestApplyDebtTransactionPayment(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	tx, err := s.ApplyDebtTransaction(ctx, domain.DebtTransaction{CustomerID: "1", Type: domain.DebtPayment, AmountCents: 1500000})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.False(t, tx.CreatedAt.IsZero())

	customer, err := s.GetCustomer(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(13500000), customer.DebtCents)

	_, err = s.ApplyDebtTransaction(ctx, domain.DebtTransaction{CustomerID: "99", Type: domain.DebtPayment, AmountCents: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListCustomersFilter(t *testing.T) {
	s := NewSeeded()
	zero := int64(0)

	debtors, err := s.ListCustomers(context.Background(), store.CustomerFilter{DebtGreaterThan: &zero})
	require.NoError(t, err)
	assert.Len(t, debtors, 3)

	found, err := s.ListCustomers(context.Background(), store.CustomerFilter{Search: "bobur"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bobur Karimov", found[0].Name)
}

func TestBranchLifecycle(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateBranch(ctx, domain.Branch{Name: "Yunusobod filiali"})
	require.NoError(t, err)
	assert.Equal(t, "3", created.ID)
	assert.True(t, created.Active)

	_, err = s.CreateBranch(ctx, domain.Branch{Name: "yunusobod filiali"})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = s.CreateBranch(ctx, domain.Branch{Name: "  "})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	require.NoError(t, s.DeleteBranch(ctx, created.ID))
	assert.ErrorIs(t, s.DeleteBranch(ctx, created.ID), store.ErrNotFound)
}

func TestUpdateProductValidates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	cement := productByName(t, s, "Sement M400")

	cement.CurrentStock = -1
	_, err := s.UpdateProduct(ctx, cement)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	cement.CurrentStock = 7
	updated, err := s.UpdateProduct(ctx, cement)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.CurrentStock)

	cement.ID = "404"
	_, err = s.UpdateProduct(ctx, cement)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuditLogsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{Action: domain.AuditSale, Detail: "first"}))
	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{Action: domain.AuditSale, Detail: "second"}))

	logs, err := s.ListAuditLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "second", logs[0].Detail)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	rebar := productByName(t, s, "Armatura 10mm")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateSale(ctx, domain.Sale{
				IdempotencyKey: "conc-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
				PaymentMethod:  domain.PaymentCash,
				Items:          []domain.SaleLine{{ProductID: rebar.ID, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, rebar.CurrentStock, succeeded)
	after, err := s.GetProduct(ctx, rebar.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.CurrentStock)
}
