package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrchestrationErrorListsEveryCashFigure(t *testing.T) {
	err := &OrchestrationError{
		RecordID: "DC-1",
		Step:     "expense_entries",
		Err:      errors.New("account frozen"),
		Totals: Totals{
			TotalSales:            decimal.NewFromInt(660),
			CashInHand:            decimal.NewFromInt(430),
			TotalPaymentsReceived: decimal.NewFromInt(560),
			ExpectedCollection:    decimal.NewFromInt(560),
			CashVariance:          decimal.RequireFromString("-12.5"),
		},
		Created: DocumentRefs{{Group: GroupStockEntry, Type: DocStockIssue, ID: "SE-1"}},
	}

	msg := err.Error()
	for _, want := range []string{
		"day closing DC-1 submit failed at expense_entries: account frozen",
		"Total Sales: 660.00",
		"Cash in Hand: 430.00",
		"Payments Received: 560.00",
		"Expected Collection: 560.00",
		"Cash Variance: -12.50",
		"created before failure: SE-1",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}
