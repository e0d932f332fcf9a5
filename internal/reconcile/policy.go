package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
)

const (
	PolicyNetCash  = "net_cash"
	PolicyVariance = "variance"
)

// CashPolicy turns the aggregated sales and collection totals into the cash figures
// of a closing and decides the approval state on submit.
type CashPolicy interface {
	Name() string
	Apply(t *domain.Totals)
	ApprovalState(t domain.Totals) domain.WorkflowState
}

// NetCash derives the cash that must be in the till from sales minus every non-cash
// and cash-out line, plus collections of old dues.
type NetCash struct{}

func (NetCash) Name() string { return PolicyNetCash }

func (NetCash) Apply(t *domain.Totals) {
	t.CashAmount = t.TotalSales.
		Sub(t.CreditAmount).
		Sub(t.CardAmount).
		Sub(t.TotalExpenses).
		Sub(t.TotalSupplierPayments).
		Add(t.TotalCreditCollections)
	t.CashInHand = t.PreviousCash.Add(t.CashAmount)
	t.TotalPaymentsReceived = t.CashAmount.Add(t.CardAmount)
	t.ExpectedCollection = t.TotalPaymentsReceived
	t.CashVariance = decimal.Zero
}

func (NetCash) ApprovalState(domain.Totals) domain.WorkflowState {
	return domain.StateApproved
}

// Variance compares the cash and card actually collected with what sales imply.
// CashAmount is operator input and is never overwritten.
type Variance struct {
	Threshold        decimal.Decimal
	SubtractExpenses bool
}

func (Variance) Name() string { return PolicyVariance }

func (v Variance) Apply(t *domain.Totals) {
	t.TotalPaymentsReceived = t.CashAmount.Add(t.CardAmount)
	t.ExpectedCollection = t.TotalSales.Sub(t.CreditAmount)
	if v.SubtractExpenses {
		t.ExpectedCollection = t.ExpectedCollection.Sub(t.TotalExpenses)
	}
	t.CashVariance = t.TotalPaymentsReceived.Sub(t.ExpectedCollection)
	t.CashInHand = t.PreviousCash.Add(t.CashAmount)
}

func (v Variance) ApprovalState(t domain.Totals) domain.WorkflowState {
	if t.CashVariance.Abs().GreaterThan(v.Threshold) {
		return domain.StatePendingApproval
	}
	return domain.StateApproved
}

// NewPolicy selects a policy by its configuration name.
func NewPolicy(name string, threshold decimal.Decimal, subtractExpenses bool) (CashPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyNetCash:
		return NetCash{}, nil
	case PolicyVariance:
		if threshold.IsNegative() {
			return nil, fmt.Errorf("variance threshold must not be negative")
		}
		return Variance{Threshold: threshold, SubtractExpenses: subtractExpenses}, nil
	}
	return nil, fmt.Errorf("unknown cash policy %q", name)
}
