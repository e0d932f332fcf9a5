// Package ledger defines the contract with the external accounting and inventory
// service. Documents are created already posted; cancel reverses their effects.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
)

var (
	ErrUnknownDocument = errors.New("unknown ledger document")
	ErrRejected        = errors.New("ledger rejected document")
)

const (
	PaymentReceive = "Receive"
	PaymentPay     = "Pay"

	PartyCustomer = "Customer"
	PartySupplier = "Supplier"

	UOMLitre = "Litre"
)

type Item struct {
	ItemCode        string          `json:"item_code"`
	Qty             decimal.Decimal `json:"qty"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
	SourceWarehouse string          `json:"s_warehouse,omitempty"`
	TargetWarehouse string          `json:"t_warehouse,omitempty"`
	UOM             string          `json:"uom,omitempty"`
}

type JournalLine struct {
	Account string          `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
}

type Payment struct {
	Type           string          `json:"payment_type"`
	PaidFrom       string          `json:"paid_from"`
	PaidTo         string          `json:"paid_to"`
	Amount         decimal.Decimal `json:"amount"`
	ModeOfPayment  string          `json:"mode_of_payment"`
	AgainstInvoice string          `json:"against_invoice,omitempty"`
}

type Document struct {
	Type        domain.DocumentType `json:"type"`
	Company     string              `json:"company"`
	CostCenter  string              `json:"cost_center"`
	PostingDate time.Time           `json:"posting_date"`
	Reference   string              `json:"reference"`
	Remark      string              `json:"remark,omitempty"`
	PartyType   string              `json:"party_type,omitempty"`
	Party       string              `json:"party,omitempty"`
	Items       []Item              `json:"items,omitempty"`
	Accounts    []JournalLine       `json:"accounts,omitempty"`
	Payment     *Payment            `json:"payment,omitempty"`
}

// Total sums item amounts for invoices.
func (d Document) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Amount)
	}
	return total
}

type Ledger interface {
	CreateAndPost(ctx context.Context, doc Document) (string, error)
	Outstanding(ctx context.Context, documentID string) (decimal.Decimal, error)
	Cancel(ctx context.Context, documentID string) error
	StockBalance(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error)
	ValuationRate(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error)
	// AccountBalance is the sum of debit minus credit posted strictly before the given time.
	AccountBalance(ctx context.Context, account string, costCenter string, before time.Time) (decimal.Decimal, error)
	EnsureItem(ctx context.Context, itemCode string, name string) error
	EnsureCustomer(ctx context.Context, name string) error
}
