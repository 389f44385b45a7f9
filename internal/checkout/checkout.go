// Package checkout turns the open cart into a recorded sale.
//
// A checkout moves Idle -> Submitting -> Succeeded|Failed. The sale request
// is built from a cart snapshot before the network call, so edits made while
// the request is in flight never change what was sent. Only one submission
// may be in flight per session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"stroymarket/pos/internal/cart"
	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/pricing"
)

type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type SaleSubmitter interface {
	CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Receipt, error)
}

// Catalog is the part of the catalog cache checkout reconciles against.
type Catalog interface {
	pricing.PriceLookup
	Refresh(ctx context.Context) error
	Invalidate()
}

type Protocol struct {
	cart      *cart.Cart
	catalog   Catalog
	submitter SaleSubmitter
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	lastReceipt *domain.Receipt
	lastErr     error
}

func New(c *cart.Cart, catalog Catalog, submitter SaleSubmitter, logger *zap.Logger) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		cart:      c,
		catalog:   catalog,
		submitter: submitter,
		logger:    logger.Named("checkout"),
	}
}

// Checkout submits the current cart once. Validation failures return before
// any request is made and leave the state untouched.
func (p *Protocol) Checkout(ctx context.Context) (domain.Receipt, error) {
	req, err := p.begin()
	if err != nil {
		return domain.Receipt{}, err
	}

	receipt, err := p.submitter.CreateSale(ctx, req)
	if err != nil {
		return domain.Receipt{}, p.fail(ctx, err)
	}
	p.succeed(ctx, receipt)
	return receipt, nil
}

func (p *Protocol) begin() (domain.SaleRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Submitting {
		return domain.SaleRequest{}, domain.ErrCheckoutInProgress
	}
	snap := p.cart.Snapshot()
	if snap.Empty() {
		return domain.SaleRequest{}, domain.ErrEmptyCart
	}
	if snap.PaymentMethod == domain.PaymentDebt && snap.CustomerID == "" {
		return domain.SaleRequest{}, domain.ErrCustomerRequired
	}
	// A line whose product left the catalog would be sent at price 0.
	for _, line := range snap.Lines {
		if _, ok := p.catalog.Price(line.ProductID); !ok {
			return domain.SaleRequest{}, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, line.ProductID)
		}
	}

	req := BuildSaleRequest(snap, p.catalog)
	p.state = Submitting
	p.lastErr = nil
	return req, nil
}

func (p *Protocol) fail(ctx context.Context, err error) error {
	p.mu.Lock()
	p.state = Failed
	p.lastErr = err
	p.mu.Unlock()

	p.logger.Warn("sale rejected", zap.Error(err))

	// The backend saw different stock than we did; pull its numbers.
	if errors.Is(err, domain.ErrStockConflict) {
		if rerr := p.catalog.Refresh(ctx); rerr != nil {
			p.logger.Warn("catalog refresh after stock conflict failed", zap.Error(rerr))
		}
	}
	return fmt.Errorf("checkout: %w", err)
}

func (p *Protocol) succeed(ctx context.Context, receipt domain.Receipt) {
	p.mu.Lock()
	p.state = Succeeded
	r := receipt
	p.lastReceipt = &r
	p.mu.Unlock()

	p.logger.Info("sale recorded",
		zap.String("receipt_id", receipt.ReceiptID),
		zap.Int64("total_cents", receipt.TotalCents),
	)

	p.cart.Clear()
	if err := p.catalog.Refresh(ctx); err != nil {
		p.catalog.Invalidate()
		p.logger.Warn("catalog refresh after sale failed; stock shown may be stale",
			zap.String("receipt_id", receipt.ReceiptID),
			zap.Error(err),
		)
	}
}

func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Protocol) LastReceipt() (domain.Receipt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastReceipt == nil {
		return domain.Receipt{}, false
	}
	return *p.lastReceipt, true
}

func (p *Protocol) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// BuildSaleRequest prices a snapshot at current catalog prices. Items are
// ordered by product id.
func BuildSaleRequest(snap cart.Snapshot, prices pricing.PriceLookup) domain.SaleRequest {
	lines := make([]domain.CartLine, len(snap.Lines))
	copy(lines, snap.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	items := make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		price, _ := prices.Price(line.ProductID)
		items = append(items, domain.SaleItem{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			PriceCents: price,
			TotalCents: pricing.LineTotal(price, line.Quantity),
		})
	}

	totals := pricing.Calculate(lines, prices, snap.Discount)
	return domain.SaleRequest{
		IdempotencyKey: snap.Key,
		CustomerID:     snap.CustomerID,
		BranchID:       snap.BranchID,
		TotalCents:     totals.TotalCents,
		DiscountCents:  totals.DiscountCents,
		PaymentMethod:  snap.PaymentMethod,
		Items:          items,
	}
}
