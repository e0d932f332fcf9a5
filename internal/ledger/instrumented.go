package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/metrics"
)

type instrumented struct {
	next Ledger
}

// Instrument counts every call to next in the ledger call metric.
func Instrument(next Ledger) Ledger {
	return &instrumented{next: next}
}

func (l *instrumented) CreateAndPost(ctx context.Context, doc Document) (string, error) {
	id, err := l.next.CreateAndPost(ctx, doc)
	record("create", string(doc.Type), err)
	return id, err
}

func (l *instrumented) Outstanding(ctx context.Context, documentID string) (decimal.Decimal, error) {
	amount, err := l.next.Outstanding(ctx, documentID)
	record("outstanding", "", err)
	return amount, err
}

func (l *instrumented) Cancel(ctx context.Context, documentID string) error {
	err := l.next.Cancel(ctx, documentID)
	record("cancel", "", err)
	return err
}

func (l *instrumented) StockBalance(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	qty, err := l.next.StockBalance(ctx, itemCode, warehouse)
	record("stock_balance", "", err)
	return qty, err
}

func (l *instrumented) ValuationRate(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	rate, err := l.next.ValuationRate(ctx, itemCode, warehouse)
	record("valuation_rate", "", err)
	return rate, err
}

func (l *instrumented) AccountBalance(ctx context.Context, account string, costCenter string, before time.Time) (decimal.Decimal, error) {
	balance, err := l.next.AccountBalance(ctx, account, costCenter, before)
	record("account_balance", "", err)
	return balance, err
}

func (l *instrumented) EnsureItem(ctx context.Context, itemCode string, name string) error {
	err := l.next.EnsureItem(ctx, itemCode, name)
	record("ensure_item", "", err)
	return err
}

func (l *instrumented) EnsureCustomer(ctx context.Context, name string) error {
	err := l.next.EnsureCustomer(ctx, name)
	record("ensure_customer", "", err)
	return err
}

func record(op string, docType string, err error) {
	metrics.LedgerCalls.WithLabelValues(op, docType, metrics.Outcome(err)).Inc()
}
