package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestStockIssueAndCancelRestoresBalance(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.SetStock("PETROL", "Tank P1", d("100"), d("7.5"))

	id, err := l.CreateAndPost(ctx, ledger.Document{
		Type:  domain.DocStockIssue,
		Items: []ledger.Item{{ItemCode: "PETROL", Qty: d("40"), SourceWarehouse: "Tank P1"}},
	})
	require.NoError(t, err)

	balance, err := l.StockBalance(ctx, "PETROL", "Tank P1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("60")), "balance=%s", balance)

	require.NoError(t, l.Cancel(ctx, id))
	require.NoError(t, l.Cancel(ctx, id), "second cancel is a no-op")

	balance, err = l.StockBalance(ctx, "PETROL", "Tank P1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("100")), "balance=%s", balance)
	assert.Equal(t, []string{id}, l.CancelledOrder())
}

func TestStockIssueRejectsShortage(t *testing.T) {
	l := New()
	l.SetStock("DIESEL", "Tank D1", d("5"), d("6"))

	_, err := l.CreateAndPost(context.Background(), ledger.Document{
		Type:  domain.DocStockIssue,
		Items: []ledger.Item{{ItemCode: "DIESEL", Qty: d("6"), SourceWarehouse: "Tank D1"}},
	})
	require.ErrorIs(t, err, ledger.ErrRejected)
	assert.Empty(t, l.Documents())
}

func TestPaymentReducesOutstandingAndBlocksInvoiceCancel(t *testing.T) {
	ctx := context.Background()
	l := New()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	invoiceID, err := l.CreateAndPost(ctx, ledger.Document{
		Type:        domain.DocSalesInvoice,
		Party:       "Cash Customer",
		PostingDate: at,
		Items:       []ledger.Item{{ItemCode: "PETROL", Qty: d("10"), Rate: d("10"), Amount: d("100")}},
	})
	require.NoError(t, err)

	paymentID, err := l.CreateAndPost(ctx, ledger.Document{
		Type:        domain.DocPaymentEntry,
		CostCenter:  "Main",
		PostingDate: at,
		Payment: &ledger.Payment{
			Type:           ledger.PaymentReceive,
			PaidFrom:       "Debtors",
			PaidTo:         "Cash",
			Amount:         d("60"),
			AgainstInvoice: invoiceID,
		},
	})
	require.NoError(t, err)

	outstanding, err := l.Outstanding(ctx, invoiceID)
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(d("40")), "outstanding=%s", outstanding)

	_, err = l.CreateAndPost(ctx, ledger.Document{
		Type:    domain.DocPaymentEntry,
		Payment: &ledger.Payment{PaidFrom: "Debtors", PaidTo: "Cash", Amount: d("41"), AgainstInvoice: invoiceID},
	})
	require.ErrorIs(t, err, ledger.ErrRejected)

	require.ErrorIs(t, l.Cancel(ctx, invoiceID), ledger.ErrRejected)

	cash, err := l.AccountBalance(ctx, "Cash", "Main", at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("60")), "cash=%s", cash)

	require.NoError(t, l.Cancel(ctx, paymentID))
	require.NoError(t, l.Cancel(ctx, invoiceID))

	cash, err = l.AccountBalance(ctx, "Cash", "Main", at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, cash.IsZero(), "cash=%s", cash)
}

func TestJournalMustBalance(t *testing.T) {
	l := New()
	_, err := l.CreateAndPost(context.Background(), ledger.Document{
		Type: domain.DocJournalEntry,
		Accounts: []ledger.JournalLine{
			{Account: "Fuel Expenses", Debit: d("50")},
			{Account: "Cash", Credit: d("40")},
		},
	})
	require.ErrorIs(t, err, ledger.ErrRejected)
}

func TestAccountBalanceIsStrictlyBefore(t *testing.T) {
	l := New()
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	l.SeedBalance("Cash", "Main", day.Add(-time.Hour), d("300"))
	l.SeedBalance("Cash", "Main", day, d("50"))
	l.SeedBalance("Cash", "Other", day.Add(-time.Hour), d("999"))

	balance, err := l.AccountBalance(context.Background(), "Cash", "Main", day)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("300")), "balance=%s", balance)
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	l := New()
	boom := errors.New("boom")

	l.FailCreate(domain.DocJournalEntry, boom)
	_, err := l.CreateAndPost(ctx, ledger.Document{Type: domain.DocJournalEntry})
	require.ErrorIs(t, err, boom)
	l.FailCreate(domain.DocJournalEntry, nil)

	l.SetStock("PETROL", "W", d("10"), d("1"))
	id, err := l.CreateAndPost(ctx, ledger.Document{
		Type:  domain.DocStockIssue,
		Items: []ledger.Item{{ItemCode: "PETROL", Qty: d("1"), SourceWarehouse: "W"}},
	})
	require.NoError(t, err)

	l.FailCancel(id, boom)
	require.ErrorIs(t, l.Cancel(ctx, id), boom)
	_, cancelled, ok := l.Document(id)
	require.True(t, ok)
	assert.False(t, cancelled)

	require.ErrorIs(t, l.Cancel(ctx, "missing"), ledger.ErrUnknownDocument)
}

func TestStockReconciliationSetsQuantity(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.SetStock("PETROL", "W", d("100"), d("7"))

	id, err := l.CreateAndPost(ctx, ledger.Document{
		Type:  domain.DocStockReconciliation,
		Items: []ledger.Item{{ItemCode: "PETROL", Qty: d("97.5"), Rate: d("7"), TargetWarehouse: "W"}},
	})
	require.NoError(t, err)

	balance, _ := l.StockBalance(ctx, "PETROL", "W")
	assert.True(t, balance.Equal(d("97.5")), "balance=%s", balance)

	require.NoError(t, l.Cancel(ctx, id))
	balance, _ = l.StockBalance(ctx, "PETROL", "W")
	assert.True(t, balance.Equal(d("100")), "balance=%s", balance)
}
