package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidationError is raised before any external document is created.
type ValidationError struct {
	Rule    string
	Message string
	kind    error
}

func NewValidationError(rule string, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func NewStockError(format string, args ...any) *ValidationError {
	return &ValidationError{Rule: "stock", Message: fmt.Sprintf(format, args...), kind: ErrInsufficientStock}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() []error {
	if e.kind != nil {
		return []error{ErrValidation, e.kind}
	}
	return []error{ErrValidation}
}

// OrchestrationError reports a forward posting failure together with every computed
// total so the operator can reconcile the documents already created.
type OrchestrationError struct {
	RecordID string
	Step     string
	Err      error
	Totals   Totals
	Created  DocumentRefs
}

func (e *OrchestrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "day closing %s submit failed at %s: %v", e.RecordID, e.Step, e.Err)
	fmt.Fprintf(&b, "; Total Sales: %s", e.Totals.TotalSales.StringFixed(2))
	fmt.Fprintf(&b, ", Credit Sales: %s", e.Totals.CreditAmount.StringFixed(2))
	fmt.Fprintf(&b, ", Card/POS: %s", e.Totals.CardAmount.StringFixed(2))
	fmt.Fprintf(&b, ", Expenses: %s", e.Totals.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, ", Supplier Payments: %s", e.Totals.TotalSupplierPayments.StringFixed(2))
	fmt.Fprintf(&b, ", Credit Collections: %s", e.Totals.TotalCreditCollections.StringFixed(2))
	fmt.Fprintf(&b, ", Cash Amount: %s", e.Totals.CashAmount.StringFixed(2))
	fmt.Fprintf(&b, ", Previous Cash: %s", e.Totals.PreviousCash.StringFixed(2))
	fmt.Fprintf(&b, ", Cash in Hand: %s", e.Totals.CashInHand.StringFixed(2))
	fmt.Fprintf(&b, ", Payments Received: %s", e.Totals.TotalPaymentsReceived.StringFixed(2))
	fmt.Fprintf(&b, ", Expected Collection: %s", e.Totals.ExpectedCollection.StringFixed(2))
	fmt.Fprintf(&b, ", Cash Variance: %s", e.Totals.CashVariance.StringFixed(2))
	if len(e.Created) > 0 {
		fmt.Fprintf(&b, "; created before failure: %s", strings.Join(e.Created.IDs(), ", "))
	}
	return b.String()
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

type CompensationFailure struct {
	Ref DocumentRef
	Err error
}

// CompensationError batches every cancel failure of one reversal.
type CompensationError struct {
	Failures []CompensationFailure
}

func (e *CompensationError) Error() string {
	return "some transactions could not be cancelled: " + strings.Join(e.Messages(), "; ")
}

func (e *CompensationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Messages lists one line per failure.
func (e *CompensationError) Messages() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, fmt.Sprintf("%s %s: %v", f.Ref.Type, f.Ref.ID, f.Err))
	}
	return out
}
