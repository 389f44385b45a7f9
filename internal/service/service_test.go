package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"stroymarket/pos/internal/cache"
	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/store"
	"stroymarket/pos/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopStatsCache{}, time.Minute, nil), repo
}

func sellerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		EmployeeID: "2",
		Name:       "Kassir Malika",
		Role:       domain.RoleSeller,
		BranchID:   "1",
	})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{EmployeeID: "1", Role: domain.RoleSuperAdmin, BranchID: "1"})
}

func cementSale(t *testing.T, svc *Service, qty int, key string) domain.SaleRequest {
	t.Helper()
	products, err := svc.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if p.Name == "Sement M400" {
			total := p.SellPriceCents * int64(qty)
			return domain.SaleRequest{
				IdempotencyKey: key,
				PaymentMethod:  domain.PaymentCash,
				TotalCents:     total,
				Items:          []domain.SaleItem{{ProductID: p.ID, Quantity: qty, PriceCents: p.SellPriceCents, TotalCents: total}},
			}
		}
	}
	t.Fatalf("cement not seeded")
	return domain.SaleRequest{}
}

func TestCreateSaleBuildsReceiptAndAudits(t *testing.T) {
	svc, repo := newTestService()
	ctx := sellerCtx()

	req := cementSale(t, svc, 3, "sale-receipt")
	req.CustomerID = "2"
	receipt, duplicate, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if duplicate {
		t.Fatalf("first submission reported as duplicate")
	}
	if receipt.BranchID != "1" || receipt.BranchName != "Asosiy filial" {
		t.Fatalf("expected actor branch on receipt, got %q/%q", receipt.BranchID, receipt.BranchName)
	}
	if receipt.CustomerName != "Bobur Karimov" {
		t.Fatalf("expected customer name, got %q", receipt.CustomerName)
	}
	if len(receipt.Items) != 1 || receipt.Items[0].ProductName != "Sement M400" {
		t.Fatalf("unexpected receipt items: %+v", receipt.Items)
	}

	logs, err := repo.ListAuditLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.AuditSale || logs[0].EmployeeID != "2" {
		t.Fatalf("expected one sale audit entry, got %+v", logs)
	}
}

func TestCreateSaleDuplicateKeyReturnsOriginal(t *testing.T) {
	svc, _ := newTestService()
	ctx := sellerCtx()
	req := cementSale(t, svc, 1, "sale-dup")

	first, _, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("first sale: %v", err)
	}
	second, duplicate, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !duplicate || second.ReceiptID != first.ReceiptID {
		t.Fatalf("expected duplicate of %s, got %s (dup=%v)", first.ReceiptID, second.ReceiptID, duplicate)
	}
}

// lateLookupRepo misses the first idempotency lookup, as when a concurrent
// request commits the same key between the lookup and the insert.
type lateLookupRepo struct {
	*memory.Store
	missed bool
}

func (r *lateLookupRepo) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	if !r.missed {
		r.missed = true
		return nil, store.ErrNotFound
	}
	return r.Store.FindSaleByIdempotency(ctx, key)
}

func TestCreateSaleKeyCommittedConcurrentlyIsReplay(t *testing.T) {
	base := memory.NewSeeded()
	svc := New(&lateLookupRepo{Store: base}, cache.NoopStatsCache{}, time.Minute, nil)
	ctx := sellerCtx()
	req := cementSale(t, svc, 1, "sale-race")

	before, err := base.GetProduct(context.Background(), req.Items[0].ProductID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	first, err := base.CreateSale(context.Background(), domain.Sale{
		IdempotencyKey: req.IdempotencyKey,
		BranchID:       "1",
		PaymentMethod:  req.PaymentMethod,
		TotalCents:     req.TotalCents,
		Items: []domain.SaleLine{{
			ProductID:  req.Items[0].ProductID,
			Quantity:   1,
			PriceCents: req.Items[0].PriceCents,
			TotalCents: req.Items[0].TotalCents,
		}},
	})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	receipt, duplicate, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !duplicate || receipt.ReceiptID != first.ReceiptID {
		t.Fatalf("expected replay of %s, got %s (dup=%v)", first.ReceiptID, receipt.ReceiptID, duplicate)
	}

	logs, err := base.ListAuditLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("replay must not be audited, got %+v", logs)
	}
	after, err := base.GetProduct(context.Background(), req.Items[0].ProductID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.CurrentStock != before.CurrentStock-1 {
		t.Fatalf("expected stock %d, got %d", before.CurrentStock-1, after.CurrentStock)
	}
}

func TestCreateSaleRejectsInconsistentTotals(t *testing.T) {
	svc, _ := newTestService()
	ctx := sellerCtx()

	req := cementSale(t, svc, 2, "bad-total")
	req.TotalCents--
	if _, _, err := svc.CreateSale(ctx, req); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction for total mismatch, got %v", err)
	}

	req = cementSale(t, svc, 2, "bad-line")
	req.Items[0].TotalCents++
	req.TotalCents++
	if _, _, err := svc.CreateSale(ctx, req); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction for line mismatch, got %v", err)
	}
}

func TestCreateSaleDiscountFloorsTotalAtZero(t *testing.T) {
	svc, _ := newTestService()
	req := cementSale(t, svc, 1, "big-discount")
	req.DiscountCents = req.TotalCents + 500000
	req.TotalCents = 0

	receipt, _, err := svc.CreateSale(sellerCtx(), req)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if receipt.TotalCents != 0 {
		t.Fatalf("expected zero total, got %d", receipt.TotalCents)
	}
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	svc, _ := newTestService()
	req := cementSale(t, svc, 121, "too-many")

	if _, _, err := svc.CreateSale(sellerCtx(), req); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestCreateSaleForbiddenForWarehouseKeeper(t *testing.T) {
	svc, _ := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{EmployeeID: "3", Role: domain.RoleWarehouseKeeper})

	if _, _, err := svc.CreateSale(ctx, cementSale(t, svc, 1, "wk")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, _, err := svc.CreateSale(context.Background(), cementSale(t, svc, 1, "anon")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden without actor, got %v", err)
	}
}

func TestUpdateProductRoleRules(t *testing.T) {
	svc, _ := newTestService()
	keeper := WithActor(context.Background(), domain.Actor{EmployeeID: "3", Role: domain.RoleWarehouseKeeper})

	stock := 44
	updated, err := svc.UpdateProduct(keeper, "1", domain.ProductUpdateRequest{CurrentStock: &stock})
	if err != nil {
		t.Fatalf("keeper stock update: %v", err)
	}
	if updated.CurrentStock != 44 {
		t.Fatalf("expected stock 44, got %d", updated.CurrentStock)
	}

	price := int64(100)
	if _, err := svc.UpdateProduct(keeper, "1", domain.ProductUpdateRequest{SellPriceCents: &price}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected keeper price change to be forbidden, got %v", err)
	}
	if _, err := svc.UpdateProduct(sellerCtx(), "1", domain.ProductUpdateRequest{CurrentStock: &stock}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected seller patch to be forbidden, got %v", err)
	}

	negative := -5
	if _, err := svc.UpdateProduct(adminCtx(), "1", domain.ProductUpdateRequest{MinStock: &negative}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid for negative min stock, got %v", err)
	}
	if _, err := svc.UpdateProduct(adminCtx(), "404", domain.ProductUpdateRequest{CurrentStock: &stock}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]domain.Product{
		{BuyPriceCents: 800, SellPriceCents: 1000, CurrentStock: 10, MinStock: 2},
		{BuyPriceCents: 500, SellPriceCents: 1000, CurrentStock: 1, MinStock: 5},
		{BuyPriceCents: 100, SellPriceCents: 0, CurrentStock: 3, MinStock: 0},
	})

	if stats.TotalProducts != 3 {
		t.Fatalf("expected 3 products, got %d", stats.TotalProducts)
	}
	if stats.TotalValueCents != 11000 {
		t.Fatalf("expected value 11000, got %d", stats.TotalValueCents)
	}
	if stats.LowStockCount != 1 {
		t.Fatalf("expected 1 low stock, got %d", stats.LowStockCount)
	}
	if stats.AvgMargin != 35 {
		t.Fatalf("expected avg margin 35, got %v", stats.AvgMargin)
	}

	if empty := ComputeStats(nil); empty != (domain.ProductStats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestProductStatsCachedUntilSale(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisStatsCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = redisCache.Close() })
	svc := New(memory.NewSeeded(), redisCache, time.Minute, nil)
	ctx := sellerCtx()

	before, err := svc.ProductStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !mr.Exists(cache.StatsKey) {
		t.Fatalf("expected stats to be cached")
	}

	if _, _, err := svc.CreateSale(ctx, cementSale(t, svc, 2, "stats-sale")); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if mr.Exists(cache.StatsKey) {
		t.Fatalf("expected sale to invalidate cached stats")
	}

	after, err := svc.ProductStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if before.TotalValueCents-after.TotalValueCents != 2*5800000 {
		t.Fatalf("expected value to drop by two bags, before=%d after=%d", before.TotalValueCents, after.TotalValueCents)
	}
}

func TestDebtTransactionsAndAudit(t *testing.T) {
	svc, repo := newTestService()
	ctx := sellerCtx()

	tx, err := svc.CreateDebtTransaction(ctx, domain.DebtTransaction{CustomerID: "1", Type: domain.DebtPayment, AmountCents: 15000000})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if tx.ID == "" {
		t.Fatalf("expected transaction id")
	}
	customer, err := svc.GetCustomer(ctx, "1")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.DebtCents != 0 {
		t.Fatalf("expected debt cleared, got %d", customer.DebtCents)
	}

	history, err := svc.CustomerTransactions(ctx, "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Type != domain.DebtPayment {
		t.Fatalf("expected payment first in history, got %+v", history)
	}

	if _, err := svc.CreateDebtTransaction(ctx, domain.DebtTransaction{CustomerID: "1", Type: domain.DebtPayment}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid for zero amount, got %v", err)
	}

	logs, _ := repo.ListAuditLogs(context.Background(), 0)
	if len(logs) != 1 || logs[0].Action != domain.AuditDebtPayment {
		t.Fatalf("expected debt payment audit, got %+v", logs)
	}
}

func TestBranchAdminOnly(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateBranch(sellerCtx(), domain.Branch{Name: "Yangi"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	created, err := svc.CreateBranch(adminCtx(), domain.Branch{Name: "Yangi"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if err := svc.DeleteBranch(adminCtx(), created.ID); err != nil {
		t.Fatalf("delete branch: %v", err)
	}
	if _, err := svc.ListAuditLogs(sellerCtx(), 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected audit logs forbidden for seller, got %v", err)
	}
}
