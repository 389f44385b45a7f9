package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"stroymarket/pos/internal/cache"
	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/store"
	"stroymarket/pos/internal/xid"
)

// ErrForbidden is returned when the caller's role may not perform the action.
var ErrForbidden = errors.New("forbidden role")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	stats    cache.StatsCache
	statsTTL time.Duration
	logger   *zap.Logger
}

func New(repo store.Repository, stats cache.StatsCache, statsTTL time.Duration, logger *zap.Logger) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if statsTTL <= 0 {
		statsTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:     repo,
		stats:    stats,
		statsTTL: statsTTL,
		logger:   logger.Named("service"),
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// ProductStats returns the catalog summary, served from cache when fresh.
func (s *Service) ProductStats(ctx context.Context) (domain.ProductStats, error) {
	cached, ok, err := s.stats.Get(ctx, cache.StatsKey)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ProductStats{}, err
	}
	stats := ComputeStats(products)
	if err := s.stats.Set(ctx, cache.StatsKey, &stats, s.statsTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return stats, nil
}

// ComputeStats aggregates the catalog: total value at sale price, count of
// products at or below their minimum, and the mean margin percent of priced
// products rounded to one decimal.
func ComputeStats(products []domain.Product) domain.ProductStats {
	stats := domain.ProductStats{TotalProducts: len(products)}

	marginSum := 0.0
	priced := 0
	for _, p := range products {
		stats.TotalValueCents += int64(p.CurrentStock) * p.SellPriceCents
		if p.LowStock() {
			stats.LowStockCount++
		}
		if p.SellPriceCents > 0 {
			marginSum += float64(p.SellPriceCents-p.BuyPriceCents) / float64(p.SellPriceCents) * 100
			priced++
		}
	}
	if priced > 0 {
		stats.AvgMargin = math.Round(marginSum/float64(priced)*10) / 10
	}
	return stats
}

// UpdateProduct applies a partial edit. Warehouse keepers may only touch
// stock levels; price and naming changes need an admin role.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := requireRole(ctx, domain.RoleSuperAdmin, domain.RoleBranchAdmin, domain.RoleWarehouseKeeper)
	if err != nil {
		return domain.Product{}, err
	}
	if actor.Role == domain.RoleWarehouseKeeper &&
		(req.Name != nil || req.Category != nil || req.SellPriceCents != nil || req.BuyPriceCents != nil) {
		return domain.Product{}, fmt.Errorf("%w: warehouse keepers may only change stock", ErrForbidden)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.SellPriceCents != nil {
		updated.SellPriceCents = *req.SellPriceCents
	}
	if req.BuyPriceCents != nil {
		updated.BuyPriceCents = *req.BuyPriceCents
	}
	if req.MinStock != nil {
		updated.MinStock = *req.MinStock
	}
	if req.CurrentStock != nil {
		updated.CurrentStock = *req.CurrentStock
	}
	if err := store.ValidateProduct(updated); err != nil {
		return domain.Product{}, err
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	action := domain.AuditProductEdit
	detail := fmt.Sprintf("product=%s,stock=%d,min_stock=%d", saved.ID, saved.CurrentStock, saved.MinStock)
	if existing.SellPriceCents != saved.SellPriceCents || existing.BuyPriceCents != saved.BuyPriceCents {
		action = domain.AuditPriceChange
		detail = fmt.Sprintf("product=%s,sale_price=%d->%d,cost_price=%d->%d",
			saved.ID, existing.SellPriceCents, saved.SellPriceCents, existing.BuyPriceCents, saved.BuyPriceCents)
	}
	s.logAudit(ctx, action, saved.BranchID, detail)
	s.invalidateStats(ctx)

	return *saved, nil
}

// CreateSale records a sale. The reported flag is true when the idempotency
// key matched an earlier sale, whose receipt is returned unchanged.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Receipt, bool, error) {
	actor, err := requireRole(ctx, domain.RoleSuperAdmin, domain.RoleBranchAdmin, domain.RoleSeller)
	if err != nil {
		return domain.Receipt{}, false, err
	}
	if err := ValidateSale(req); err != nil {
		return domain.Receipt{}, false, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("sale")
	}
	if existing, err := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return s.toReceipt(ctx, existing), true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Receipt{}, false, err
	}

	branchID := req.BranchID
	if branchID == "" {
		branchID = actor.BranchID
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.SaleLine{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
			TotalCents: item.TotalCents,
		})
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		IdempotencyKey: req.IdempotencyKey,
		CustomerID:     req.CustomerID,
		BranchID:       branchID,
		CashierID:      actor.EmployeeID,
		TotalCents:     req.TotalCents,
		DiscountCents:  req.DiscountCents,
		PaymentMethod:  req.PaymentMethod,
		CreatedAt:      time.Now().UTC(),
		Items:          lines,
	})
	if errors.Is(err, store.ErrConflict) {
		// Another request with the same key won the race.
		existing, ferr := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey)
		if ferr != nil {
			return domain.Receipt{}, false, ferr
		}
		return s.toReceipt(ctx, existing), true, nil
	}
	if err != nil {
		return domain.Receipt{}, false, err
	}

	s.logAudit(ctx, domain.AuditSale, created.BranchID, fmt.Sprintf(
		"receipt=%s,total=%d,discount=%d,payment=%s,customer=%s,items=%d",
		created.ReceiptID,
		created.TotalCents,
		created.DiscountCents,
		created.PaymentMethod,
		created.CustomerID,
		len(created.Items),
	))
	s.invalidateStats(ctx)
	s.logger.Info("sale recorded",
		zap.String("receipt_id", created.ReceiptID),
		zap.Int64("total_cents", created.TotalCents),
		zap.String("payment_method", string(created.PaymentMethod)),
	)

	return s.toReceipt(ctx, created), false, nil
}

// ValidateSale checks a sale request for internal consistency. Prices are
// taken as sent; each line total must equal price times quantity and the
// sale total must equal the line sum less the discount, floored at zero.
func ValidateSale(req domain.SaleRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: sale has no items", store.ErrInvalidTransaction)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidTransaction, req.PaymentMethod)
	}
	if req.PaymentMethod == domain.PaymentDebt && req.CustomerID == "" {
		return fmt.Errorf("%w: debt sale requires a customer", store.ErrInvalidTransaction)
	}
	if req.DiscountCents < 0 {
		return fmt.Errorf("%w: negative discount", store.ErrInvalidTransaction)
	}

	sum := int64(0)
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item without product", store.ErrInvalidTransaction)
		}
		if item.Quantity < 1 || item.PriceCents < 0 {
			return fmt.Errorf("%w: product %s has invalid quantity or price", store.ErrInvalidTransaction, item.ProductID)
		}
		if item.TotalCents != item.PriceCents*int64(item.Quantity) {
			return fmt.Errorf("%w: product %s line total mismatch", store.ErrInvalidTransaction, item.ProductID)
		}
		sum += item.TotalCents
	}

	want := max(sum-req.DiscountCents, 0)
	if req.TotalCents != want {
		return fmt.Errorf("%w: total %d does not match %d", store.ErrInvalidTransaction, req.TotalCents, want)
	}
	return nil
}

func (s *Service) ListCustomers(ctx context.Context, filter store.CustomerFilter) ([]domain.Customer, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, filter)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if _, err := requireRole(ctx); err != nil {
		return domain.Customer{}, err
	}
	c, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) CustomerTransactions(ctx context.Context, customerID string) ([]domain.DebtTransaction, error) {
	if _, err := requireRole(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListDebtTransactions(ctx, strings.TrimSpace(customerID))
}

func (s *Service) CreateDebtTransaction(ctx context.Context, tx domain.DebtTransaction) (domain.DebtTransaction, error) {
	if _, err := requireRole(ctx, domain.RoleSuperAdmin, domain.RoleBranchAdmin, domain.RoleSeller); err != nil {
		return domain.DebtTransaction{}, err
	}

	tx.CustomerID = strings.TrimSpace(tx.CustomerID)
	tx.Note = strings.TrimSpace(tx.Note)
	if tx.CustomerID == "" {
		return domain.DebtTransaction{}, fmt.Errorf("%w: customer required", store.ErrInvalidTransaction)
	}
	tx.CreatedAt = time.Now().UTC()

	created, err := s.repo.ApplyDebtTransaction(ctx, tx)
	if err != nil {
		return domain.DebtTransaction{}, err
	}

	if created.Type == domain.DebtPayment {
		s.logAudit(ctx, domain.AuditDebtPayment, "", fmt.Sprintf("customer=%s,amount=%d", created.CustomerID, created.AmountCents))
	}
	return *created, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, branch domain.Branch) (domain.Branch, error) {
	if _, err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
		return domain.Branch{}, err
	}
	created, err := s.repo.CreateBranch(ctx, branch)
	if err != nil {
		return domain.Branch{}, err
	}
	s.logAudit(ctx, domain.AuditBranchEdit, created.ID, "branch_create="+created.Name)
	return *created, nil
}

func (s *Service) DeleteBranch(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteBranch(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, domain.AuditBranchEdit, id, "branch_delete="+id)
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if _, err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) toReceipt(ctx context.Context, sale *domain.Sale) domain.Receipt {
	receipt := domain.Receipt{
		ID:            sale.ID,
		ReceiptID:     sale.ReceiptID,
		CreatedAt:     sale.CreatedAt,
		TotalCents:    sale.TotalCents,
		DiscountCents: sale.DiscountCents,
		PaymentMethod: sale.PaymentMethod,
		CustomerID:    sale.CustomerID,
		BranchID:      sale.BranchID,
		Items:         make([]domain.ReceiptLine, 0, len(sale.Items)),
	}
	for _, line := range sale.Items {
		receipt.Items = append(receipt.Items, domain.ReceiptLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			PriceCents:  line.PriceCents,
			TotalCents:  line.TotalCents,
		})
	}
	slices.SortFunc(receipt.Items, func(a, b domain.ReceiptLine) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	if sale.CustomerID != "" {
		if c, err := s.repo.GetCustomer(ctx, sale.CustomerID); err == nil {
			receipt.CustomerName = c.Name
		}
	}
	if sale.BranchID != "" {
		if b, err := s.repo.GetBranch(ctx, sale.BranchID); err == nil {
			receipt.BranchName = b.Name
		}
	}
	return receipt
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Delete(ctx, cache.StatsKey); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) logAudit(ctx context.Context, action string, branchID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{EmployeeID: "system", Role: "system"}
	}
	if branchID == "" {
		branchID = actor.BranchID
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		EmployeeID: actor.EmployeeID,
		Role:       actor.Role,
		Action:     action,
		BranchID:   branchID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

// requireRole returns the caller, or ErrForbidden when there is none or its
// role is not listed. No roles means any authenticated employee.
func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, ErrForbidden
	}
	if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
		return domain.Actor{}, fmt.Errorf("%w: %s", ErrForbidden, actor.Role)
	}
	return actor, nil
}
