package domain

type DocumentType string

const (
	DocStockIssue          DocumentType = "StockIssue"
	DocStockTransfer       DocumentType = "StockTransfer"
	DocStockReconciliation DocumentType = "StockReconciliation"
	DocSalesInvoice        DocumentType = "SalesInvoice"
	DocPaymentEntry        DocumentType = "PaymentEntry"
	DocJournalEntry        DocumentType = "JournalEntry"
)

// RefGroup names the slot on a record a document reference belongs to.
type RefGroup string

const (
	GroupStockEntry          RefGroup = "stock_entry"
	GroupSalesInvoices       RefGroup = "sales_invoices"
	GroupPaymentEntries      RefGroup = "payment_entries"
	GroupExpenseEntries      RefGroup = "expense_entries"
	GroupSupplierPayments    RefGroup = "supplier_payment_entries"
	GroupCreditCollections   RefGroup = "credit_collection_entries"
	GroupStockReconciliation RefGroup = "stock_reconciliation"
)

type DocumentRef struct {
	Group RefGroup     `json:"group"`
	Type  DocumentType `json:"type"`
	ID    string       `json:"id"`
}

// DocumentRefs keeps references in creation order.
type DocumentRefs []DocumentRef

func (r DocumentRefs) Group(group RefGroup) DocumentRefs {
	out := make(DocumentRefs, 0, len(r))
	for _, ref := range r {
		if ref.Group == group {
			out = append(out, ref)
		}
	}
	return out
}

func (r DocumentRefs) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, ref := range r {
		ids = append(ids, ref.ID)
	}
	return ids
}

// Reversed returns a copy in reverse creation order.
func (r DocumentRefs) Reversed() DocumentRefs {
	out := make(DocumentRefs, len(r))
	for i, ref := range r {
		out[len(r)-1-i] = ref
	}
	return out
}
