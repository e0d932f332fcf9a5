// Package memory is an in-process ledger used for development mode and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
)

type stockKey struct {
	item      string
	warehouse string
}

type posting struct {
	docID      string
	account    string
	costCenter string
	at         time.Time
	amount     decimal.Decimal
}

type stockDelta struct {
	key stockKey
	qty decimal.Decimal
}

type entry struct {
	id          string
	doc         ledger.Document
	cancelled   bool
	outstanding decimal.Decimal
	deltas      []stockDelta
}

type Ledger struct {
	mu          sync.Mutex
	seq         int
	order       []string
	cancelOrder []string
	docs        map[string]*entry
	stock      map[stockKey]decimal.Decimal
	rates      map[stockKey]decimal.Decimal
	postings   []posting
	items      map[string]string
	customers  map[string]bool
	failCreate map[domain.DocumentType]error
	failCancel map[string]error
}

func New() *Ledger {
	return &Ledger{
		docs:       make(map[string]*entry),
		stock:      make(map[stockKey]decimal.Decimal),
		rates:      make(map[stockKey]decimal.Decimal),
		postings:   make([]posting, 0, 64),
		items:      make(map[string]string),
		customers:  make(map[string]bool),
		failCreate: make(map[domain.DocumentType]error),
		failCancel: make(map[string]error),
	}
}

// SetStock seeds an on-hand quantity and valuation rate.
func (l *Ledger) SetStock(itemCode string, warehouse string, qty decimal.Decimal, rate decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := stockKey{item: itemCode, warehouse: warehouse}
	l.stock[key] = qty
	l.rates[key] = rate
}

// SeedBalance posts an opening amount (debit positive) to an account.
func (l *Ledger) SeedBalance(account string, costCenter string, at time.Time, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.postings = append(l.postings, posting{account: account, costCenter: costCenter, at: at, amount: amount})
}

// FailCreate makes the next creations of docType fail with err until cleared with nil.
func (l *Ledger) FailCreate(docType domain.DocumentType, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		delete(l.failCreate, docType)
		return
	}
	l.failCreate[docType] = err
}

func (l *Ledger) FailCancel(documentID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		delete(l.failCancel, documentID)
		return
	}
	l.failCancel[documentID] = err
}

// Documents returns every document id in creation order.
func (l *Ledger) Documents() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.order...)
}

// Document returns a posted document and whether it has been cancelled.
func (l *Ledger) Document(id string) (ledger.Document, bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.docs[id]
	if !ok {
		return ledger.Document{}, false, false
	}
	return e.doc, e.cancelled, true
}

// CancelledOrder lists document ids in the order they were cancelled.
func (l *Ledger) CancelledOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.cancelOrder...)
}

func (l *Ledger) CreateAndPost(_ context.Context, doc ledger.Document) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.failCreate[doc.Type]; ok {
		return "", err
	}

	e := &entry{doc: doc}
	switch doc.Type {
	case domain.DocStockIssue:
		if err := l.applyIssue(e); err != nil {
			return "", err
		}
	case domain.DocStockTransfer:
		if err := l.applyTransfer(e); err != nil {
			return "", err
		}
	case domain.DocStockReconciliation:
		if err := l.applyReconciliation(e); err != nil {
			return "", err
		}
	case domain.DocSalesInvoice:
		if strings.TrimSpace(doc.Party) == "" || len(doc.Items) == 0 {
			return "", fmt.Errorf("%w: sales invoice needs a customer and items", ledger.ErrRejected)
		}
		e.outstanding = doc.Total()
	case domain.DocPaymentEntry:
		if err := l.applyPayment(e); err != nil {
			return "", err
		}
	case domain.DocJournalEntry:
		if err := l.applyJournal(e); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: unsupported document type %q", ledger.ErrRejected, doc.Type)
	}

	l.seq++
	e.id = fmt.Sprintf("%s-%05d", prefixFor(doc.Type), l.seq)
	for i := range l.postings {
		if l.postings[i].docID == pendingDoc {
			l.postings[i].docID = e.id
		}
	}
	l.docs[e.id] = e
	l.order = append(l.order, e.id)
	return e.id, nil
}

func (l *Ledger) Outstanding(_ context.Context, documentID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.docs[documentID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ledger.ErrUnknownDocument, documentID)
	}
	if e.cancelled {
		return decimal.Zero, nil
	}
	return e.outstanding, nil
}

func (l *Ledger) Cancel(_ context.Context, documentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.docs[documentID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownDocument, documentID)
	}
	if e.cancelled {
		return nil
	}
	if err, ok := l.failCancel[documentID]; ok {
		return err
	}

	switch e.doc.Type {
	case domain.DocSalesInvoice:
		for _, other := range l.docs {
			if other.cancelled || other.doc.Payment == nil {
				continue
			}
			if other.doc.Payment.AgainstInvoice == documentID {
				return fmt.Errorf("%w: %s is linked with payment %s", ledger.ErrRejected, documentID, other.id)
			}
		}
	case domain.DocPaymentEntry:
		if invoiceID := e.doc.Payment.AgainstInvoice; invoiceID != "" {
			if invoice, ok := l.docs[invoiceID]; ok && !invoice.cancelled {
				invoice.outstanding = invoice.outstanding.Add(e.doc.Payment.Amount)
			}
		}
	}

	for _, delta := range e.deltas {
		l.stock[delta.key] = l.stock[delta.key].Sub(delta.qty)
	}
	e.cancelled = true
	l.cancelOrder = append(l.cancelOrder, documentID)
	return nil
}

func (l *Ledger) StockBalance(_ context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.stock[stockKey{item: itemCode, warehouse: warehouse}], nil
}

func (l *Ledger) ValuationRate(_ context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.rates[stockKey{item: itemCode, warehouse: warehouse}], nil
}

func (l *Ledger) AccountBalance(_ context.Context, account string, costCenter string, before time.Time) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := decimal.Zero
	for _, p := range l.postings {
		if p.account != account || !p.at.Before(before) {
			continue
		}
		if costCenter != "" && p.costCenter != costCenter {
			continue
		}
		if p.docID != "" {
			if e, ok := l.docs[p.docID]; ok && e.cancelled {
				continue
			}
		}
		balance = balance.Add(p.amount)
	}
	return balance, nil
}

func (l *Ledger) EnsureItem(_ context.Context, itemCode string, name string) error {
	if strings.TrimSpace(itemCode) == "" {
		return fmt.Errorf("%w: item code required", ledger.ErrRejected)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.items[itemCode]; !ok {
		l.items[itemCode] = name
	}
	return nil
}

func (l *Ledger) EnsureCustomer(_ context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: customer name required", ledger.ErrRejected)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.customers[name] = true
	return nil
}

// pendingDoc tags postings made before the document id is assigned.
const pendingDoc = "\x00pending"

func (l *Ledger) applyIssue(e *entry) error {
	if len(e.doc.Items) == 0 {
		return fmt.Errorf("%w: stock issue without items", ledger.ErrRejected)
	}
	for _, item := range e.doc.Items {
		key := stockKey{item: item.ItemCode, warehouse: item.SourceWarehouse}
		if item.Qty.GreaterThan(l.stock[key]) {
			return fmt.Errorf("%w: %s short in %s: needed %s, on hand %s", ledger.ErrRejected,
				item.ItemCode, item.SourceWarehouse, item.Qty.String(), l.stock[key].String())
		}
	}
	for _, item := range e.doc.Items {
		l.move(e, stockKey{item: item.ItemCode, warehouse: item.SourceWarehouse}, item.Qty.Neg())
	}
	return nil
}

func (l *Ledger) applyTransfer(e *entry) error {
	if len(e.doc.Items) == 0 {
		return fmt.Errorf("%w: stock transfer without items", ledger.ErrRejected)
	}
	for _, item := range e.doc.Items {
		source := stockKey{item: item.ItemCode, warehouse: item.SourceWarehouse}
		if item.Qty.GreaterThan(l.stock[source]) {
			return fmt.Errorf("%w: %s short in %s", ledger.ErrRejected, item.ItemCode, item.SourceWarehouse)
		}
	}
	for _, item := range e.doc.Items {
		source := stockKey{item: item.ItemCode, warehouse: item.SourceWarehouse}
		target := stockKey{item: item.ItemCode, warehouse: item.TargetWarehouse}
		l.move(e, source, item.Qty.Neg())
		l.move(e, target, item.Qty)
		if l.rates[target].IsZero() {
			l.rates[target] = l.rates[source]
		}
	}
	return nil
}

func (l *Ledger) applyReconciliation(e *entry) error {
	if len(e.doc.Items) == 0 {
		return fmt.Errorf("%w: stock reconciliation without items", ledger.ErrRejected)
	}
	for _, item := range e.doc.Items {
		warehouse := item.TargetWarehouse
		if warehouse == "" {
			warehouse = item.SourceWarehouse
		}
		key := stockKey{item: item.ItemCode, warehouse: warehouse}
		l.move(e, key, item.Qty.Sub(l.stock[key]))
		if item.Rate.IsPositive() {
			l.rates[key] = item.Rate
		}
	}
	return nil
}

func (l *Ledger) applyPayment(e *entry) error {
	payment := e.doc.Payment
	if payment == nil || !payment.Amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", ledger.ErrRejected)
	}
	if payment.PaidFrom == "" || payment.PaidTo == "" {
		return fmt.Errorf("%w: payment accounts required", ledger.ErrRejected)
	}
	if payment.AgainstInvoice != "" {
		invoice, ok := l.docs[payment.AgainstInvoice]
		if !ok || invoice.cancelled {
			return fmt.Errorf("%w: %s", ledger.ErrUnknownDocument, payment.AgainstInvoice)
		}
		if payment.Amount.GreaterThan(invoice.outstanding) {
			return fmt.Errorf("%w: allocation %s exceeds outstanding %s", ledger.ErrRejected,
				payment.Amount.String(), invoice.outstanding.String())
		}
		invoice.outstanding = invoice.outstanding.Sub(payment.Amount)
	}
	l.post(e.doc, payment.PaidTo, payment.Amount)
	l.post(e.doc, payment.PaidFrom, payment.Amount.Neg())
	return nil
}

func (l *Ledger) applyJournal(e *entry) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range e.doc.Accounts {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if len(e.doc.Accounts) < 2 || !debit.Equal(credit) || !debit.IsPositive() {
		return fmt.Errorf("%w: journal entry must balance", ledger.ErrRejected)
	}
	for _, line := range e.doc.Accounts {
		l.post(e.doc, line.Account, line.Debit.Sub(line.Credit))
	}
	return nil
}

func (l *Ledger) move(e *entry, key stockKey, qty decimal.Decimal) {
	l.stock[key] = l.stock[key].Add(qty)
	e.deltas = append(e.deltas, stockDelta{key: key, qty: qty})
}

func (l *Ledger) post(doc ledger.Document, account string, amount decimal.Decimal) {
	l.postings = append(l.postings, posting{
		docID:      pendingDoc,
		account:    account,
		costCenter: doc.CostCenter,
		at:         doc.PostingDate,
		amount:     amount,
	})
}

func prefixFor(docType domain.DocumentType) string {
	switch docType {
	case domain.DocStockIssue:
		return "MAT-ISS"
	case domain.DocStockTransfer:
		return "MAT-TRF"
	case domain.DocStockReconciliation:
		return "MAT-RECO"
	case domain.DocSalesInvoice:
		return "SINV"
	case domain.DocPaymentEntry:
		return "PAY"
	case domain.DocJournalEntry:
		return "JV"
	}
	return "DOC"
}
