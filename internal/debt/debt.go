// Package debt presents customer balances as debt records.
//
// Records are a projection of each customer's aggregate balance and are
// rebuilt on every fetch. Payments are posted as ledger transactions against
// the customer; the record itself is never edited.
package debt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stroymarket/pos/internal/domain"
)

type Source interface {
	ListDebtors(ctx context.Context) ([]domain.Customer, error)
	CreateDebtTransaction(ctx context.Context, tx domain.DebtTransaction) (domain.DebtTransaction, error)
	CustomerTransactions(ctx context.Context, customerID string) ([]domain.DebtTransaction, error)
}

type Summary struct {
	TotalDebtCents int64
	// OverdueDebtCents is always zero: balances carry no due date.
	OverdueDebtCents int64
	Count            int
}

type Builder struct {
	source Source
	logger *zap.Logger
}

func New(source Source, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{source: source, logger: logger.Named("debt")}
}

func RecordID(customerID string) string {
	return domain.DebtRecordPrefix + customerID
}

func ParseRecordID(id string) (string, error) {
	customerID, ok := strings.CutPrefix(strings.TrimSpace(id), domain.DebtRecordPrefix)
	if !ok || strings.TrimSpace(customerID) == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDebtID, id)
	}
	return customerID, nil
}

func (b *Builder) Fetch(ctx context.Context) ([]domain.DebtRecord, error) {
	customers, err := b.source.ListDebtors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch debtors: %w", err)
	}

	records := make([]domain.DebtRecord, 0, len(customers))
	for _, c := range customers {
		if c.DebtCents <= 0 {
			continue
		}
		records = append(records, domain.DebtRecord{
			ID:           RecordID(c.ID),
			CustomerID:   c.ID,
			CustomerName: c.Name,
			Phone:        c.Phone,
			AmountCents:  c.DebtCents,
			Status:       domain.DebtStatusActive,
			CreatedAt:    c.CreatedAt,
		})
	}
	return records, nil
}

func Summarize(records []domain.DebtRecord) Summary {
	s := Summary{Count: len(records)}
	for _, r := range records {
		s.TotalDebtCents += r.AmountCents
	}
	return s
}

// PayDebt records a payment against the customer behind recordID and returns
// the refreshed records. Nothing is sent for a non-positive amount or a
// malformed id.
func (b *Builder) PayDebt(ctx context.Context, recordID string, amountCents int64) ([]domain.DebtRecord, error) {
	if amountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	customerID, err := ParseRecordID(recordID)
	if err != nil {
		return nil, err
	}

	tx, err := b.source.CreateDebtTransaction(ctx, domain.DebtTransaction{
		CustomerID:  customerID,
		Type:        domain.DebtPayment,
		AmountCents: amountCents,
	})
	if err != nil {
		return nil, fmt.Errorf("pay debt %s: %w", recordID, err)
	}
	b.logger.Info("debt payment recorded",
		zap.String("customer_id", customerID),
		zap.String("transaction_id", tx.ID),
		zap.Int64("amount_cents", amountCents),
	)

	records, err := b.Fetch(ctx)
	if err != nil {
		return nil, &RefreshError{Transaction: tx, Err: err}
	}
	return records, nil
}

// RefreshError reports a payment that was recorded but whose refreshed
// debtor list could not be loaded.
type RefreshError struct {
	Transaction domain.DebtTransaction
	Err         error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("payment %s recorded, debtor list may be stale: %v", e.Transaction.ID, e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{domain.ErrRefreshFailed, e.Err}
}

func (b *Builder) History(ctx context.Context, customerID string) ([]domain.DebtTransaction, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidDebtID
	}
	txs, err := b.source.CustomerTransactions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("debt history %s: %w", customerID, err)
	}
	return txs, nil
}
