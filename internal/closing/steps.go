package closing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/saga"
	"fuelbook/backend/internal/stock"
)

type run struct {
	o             *Orchestrator
	record        *domain.DayClosing
	pump          *domain.Pump
	cashInvoiceID string
}

var postingGroups = []domain.RefGroup{
	domain.GroupStockEntry,
	domain.GroupSalesInvoices,
	domain.GroupPaymentEntries,
	domain.GroupExpenseEntries,
	domain.GroupSupplierPayments,
	domain.GroupCreditCollections,
}

func (r *run) steps() []saga.Step {
	return []saga.Step{
		{Name: StepStockEntry, Apply: r.stockEntry},
		{Name: StepSalesInvoices, Apply: r.salesInvoices},
		{Name: StepCollections, Apply: r.collectionPayments},
		{Name: StepExpenses, Apply: r.expenseEntries},
		{Name: StepSupplierPayments, Apply: r.supplierPayments},
		{Name: StepCreditCollections, Apply: r.creditCollections},
		{Name: StepNozzleAdvance, Apply: r.advanceNozzles},
	}
}

type fuelSale struct {
	fuelTypeID string
	qty        decimal.Decimal
	rate       decimal.Decimal
	amount     decimal.Decimal
}

type creditSale struct {
	customer   string
	fuelTypeID string
	qty        decimal.Decimal
	rate       decimal.Decimal
	amount     decimal.Decimal
}

func (r *run) document(docType domain.DocumentType, remark string) ledger.Document {
	return ledger.Document{
		Type:        docType,
		Company:     r.pump.Company,
		CostCenter:  r.pump.CostCenter,
		PostingDate: r.record.ReadingDate,
		Reference:   r.record.ID,
		Remark:      remark,
	}
}

// post creates doc and links it to the record before anything else happens.
func (r *run) post(ctx context.Context, group domain.RefGroup, doc ledger.Document) (string, error) {
	id, err := r.o.ledger.CreateAndPost(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", doc.Type, err)
	}
	ref := domain.DocumentRef{Group: group, Type: doc.Type, ID: id}
	r.record.Refs = append(r.record.Refs, ref)
	if err := r.o.refs.AppendDayClosingRef(ctx, r.record.ID, ref); err != nil {
		return id, fmt.Errorf("link %s %s: %w", doc.Type, id, err)
	}
	r.o.logger.WithFields(logrus.Fields{
		"record_id": r.record.ID,
		"doc_type":  doc.Type,
		"doc_id":    id,
	}).Debug("ledger document created")
	return id, nil
}

func (r *run) itemCode(ctx context.Context, fuelTypeID string) (string, error) {
	fuelType, err := r.o.catalog.GetFuelType(ctx, fuelTypeID)
	if err != nil {
		return "", fmt.Errorf("fuel type %s: %w", fuelTypeID, err)
	}
	return fuelType.ItemCode, nil
}

func (r *run) cashAccount() (string, error) {
	if r.pump.CashAccount == "" {
		return "", domain.NewValidationError("cash_account",
			"Cash account not found for petrol pump %s. Please configure the pump cash account.", r.pump.Name)
	}
	return r.pump.CashAccount, nil
}

func (r *run) receivableAccount() (string, error) {
	if r.pump.ReceivableAccount == "" {
		return "", domain.NewValidationError("receivable_account",
			"Receivable account not found for petrol pump %s. Please configure the pump receivable account.", r.pump.Name)
	}
	return r.pump.ReceivableAccount, nil
}

// fuelSales groups dispensing lines per fuel type in first-seen order. The rate of a
// group is the rate of its first line.
func fuelSales(lines []domain.NozzleReadingLine) []*fuelSale {
	index := make(map[string]*fuelSale, 4)
	out := make([]*fuelSale, 0, 4)
	for _, line := range lines {
		if line.FuelTypeID == "" || !line.Dispensed.IsPositive() {
			continue
		}
		sale, ok := index[line.FuelTypeID]
		if !ok {
			sale = &fuelSale{fuelTypeID: line.FuelTypeID, rate: line.Rate}
			index[line.FuelTypeID] = sale
			out = append(out, sale)
		}
		sale.qty = sale.qty.Add(line.Dispensed)
		sale.amount = sale.amount.Add(line.Amount)
	}
	return out
}

func (r *run) stockEntry(ctx context.Context) error {
	sales := fuelSales(r.record.NozzleReadings)
	if len(sales) == 0 {
		return nil
	}
	issues := make([]stock.Issue, 0, len(sales))
	for _, sale := range sales {
		issues = append(issues, stock.Issue{FuelTypeID: sale.fuelTypeID, Qty: sale.qty})
	}
	items, err := r.o.issuer.IssueItems(ctx, r.pump, issues)
	if err != nil {
		return err
	}

	doc := r.document(domain.DocStockIssue, "Fuel dispensed on day closing "+r.record.ID)
	doc.Items = items
	if _, err = r.post(ctx, domain.GroupStockEntry, doc); err != nil {
		return err
	}
	r.record.CostOfGoodsSold = doc.Total()
	return nil
}

func (r *run) creditSales() ([]*creditSale, error) {
	index := make(map[string]*creditSale, len(r.record.CreditSales))
	out := make([]*creditSale, 0, len(r.record.CreditSales))
	for _, line := range r.record.CreditSales {
		if !line.Liters.IsPositive() {
			continue
		}
		if line.Customer == "" || line.FuelTypeID == "" {
			return nil, domain.NewValidationError("credit_party",
				"Credit sale of %s liters must name both a customer and a fuel type.", line.Liters.String())
		}
		key := line.Customer + "::" + line.FuelTypeID
		sale, ok := index[key]
		if !ok {
			sale = &creditSale{customer: line.Customer, fuelTypeID: line.FuelTypeID, rate: line.Rate}
			index[key] = sale
			out = append(out, sale)
		}
		sale.qty = sale.qty.Add(line.Liters)
		sale.amount = sale.amount.Add(line.Amount)
		if line.Rate.IsPositive() {
			sale.rate = line.Rate
		}
	}
	return out, nil
}

// salesInvoices books the cash portion of every fuel on the walk-in customer and one
// invoice per credit customer and fuel type.
func (r *run) salesInvoices(ctx context.Context) error {
	if !r.record.TotalSales.IsPositive() {
		return nil
	}
	credits, err := r.creditSales()
	if err != nil {
		return err
	}

	cash := fuelSales(r.record.NozzleReadings)
	cashAmount := decimal.Zero
	for _, sale := range cash {
		cashAmount = cashAmount.Add(sale.amount)
	}
	for _, credit := range credits {
		for _, sale := range cash {
			if sale.fuelTypeID == credit.fuelTypeID {
				sale.qty = sale.qty.Sub(credit.qty)
				sale.amount = sale.amount.Sub(credit.amount)
				cashAmount = cashAmount.Sub(credit.amount)
			}
		}
	}

	if cashAmount.IsPositive() {
		if err := r.o.ledger.EnsureCustomer(ctx, r.o.cashCustomer); err != nil {
			return fmt.Errorf("ensure customer %s: %w", r.o.cashCustomer, err)
		}
		doc := r.document(domain.DocSalesInvoice, "Cash sales of day closing "+r.record.ID)
		doc.PartyType = ledger.PartyCustomer
		doc.Party = r.o.cashCustomer
		for _, sale := range cash {
			if !sale.qty.IsPositive() {
				continue
			}
			itemCode, err := r.itemCode(ctx, sale.fuelTypeID)
			if err != nil {
				return err
			}
			doc.Items = append(doc.Items, ledger.Item{
				ItemCode: itemCode,
				Qty:      sale.qty,
				Rate:     sale.rate,
				Amount:   sale.amount,
				UOM:      ledger.UOMLitre,
			})
		}
		if len(doc.Items) > 0 {
			id, err := r.post(ctx, domain.GroupSalesInvoices, doc)
			if id != "" {
				r.cashInvoiceID = id
			}
			if err != nil {
				return err
			}
		}
	}

	for _, credit := range credits {
		itemCode, err := r.itemCode(ctx, credit.fuelTypeID)
		if err != nil {
			return err
		}
		doc := r.document(domain.DocSalesInvoice, "Credit sale of day closing "+r.record.ID)
		doc.PartyType = ledger.PartyCustomer
		doc.Party = credit.customer
		doc.Items = []ledger.Item{{
			ItemCode: itemCode,
			Qty:      credit.qty,
			Rate:     credit.rate,
			Amount:   credit.amount,
			UOM:      ledger.UOMLitre,
		}}
		if _, err := r.post(ctx, domain.GroupSalesInvoices, doc); err != nil {
			return err
		}
	}
	return nil
}

// collectionPayments settles the cash invoice: card amounts per bank account first,
// then cash for whatever the ledger still shows outstanding.
func (r *run) collectionPayments(ctx context.Context) error {
	if r.cashInvoiceID == "" {
		return nil
	}
	receivable, err := r.receivableAccount()
	if err != nil {
		return err
	}

	banks := make([]string, 0, len(r.record.CardSales))
	byBank := make(map[string]decimal.Decimal, len(r.record.CardSales))
	for _, line := range r.record.CardSales {
		if line.BankAccount == "" || !line.Amount.IsPositive() {
			continue
		}
		if _, ok := byBank[line.BankAccount]; !ok {
			banks = append(banks, line.BankAccount)
		}
		byBank[line.BankAccount] = byBank[line.BankAccount].Add(line.Amount)
	}

	for _, bank := range banks {
		outstanding, err := r.o.ledger.Outstanding(ctx, r.cashInvoiceID)
		if err != nil {
			return fmt.Errorf("outstanding of %s: %w", r.cashInvoiceID, err)
		}
		if !outstanding.IsPositive() {
			break
		}
		if err := r.receive(ctx, receivable, bank, decimal.Min(byBank[bank], outstanding), modeBank); err != nil {
			return err
		}
	}

	outstanding, err := r.o.ledger.Outstanding(ctx, r.cashInvoiceID)
	if err != nil {
		return fmt.Errorf("outstanding of %s: %w", r.cashInvoiceID, err)
	}
	if !outstanding.IsPositive() {
		return nil
	}
	cashAccount, err := r.cashAccount()
	if err != nil {
		return err
	}
	return r.receive(ctx, receivable, cashAccount, outstanding, modeCash)
}

func (r *run) receive(ctx context.Context, receivable string, paidTo string, amount decimal.Decimal, mode string) error {
	outstanding, err := r.o.ledger.Outstanding(ctx, r.cashInvoiceID)
	if err != nil {
		return fmt.Errorf("outstanding of %s: %w", r.cashInvoiceID, err)
	}
	allocate := decimal.Min(amount, outstanding)
	if !allocate.IsPositive() {
		return nil
	}
	doc := r.document(domain.DocPaymentEntry, mode+" collection of day closing "+r.record.ID)
	doc.PartyType = ledger.PartyCustomer
	doc.Party = r.o.cashCustomer
	doc.Payment = &ledger.Payment{
		Type:           ledger.PaymentReceive,
		PaidFrom:       receivable,
		PaidTo:         paidTo,
		Amount:         allocate,
		ModeOfPayment:  mode,
		AgainstInvoice: r.cashInvoiceID,
	}
	_, err = r.post(ctx, domain.GroupPaymentEntries, doc)
	return err
}

func (r *run) expenseEntries(ctx context.Context) error {
	accounts := make([]string, 0, len(r.record.Expenses))
	byAccount := make(map[string]decimal.Decimal, len(r.record.Expenses))
	for _, line := range r.record.Expenses {
		if line.ExpenseAccount == "" || !line.Amount.IsPositive() {
			continue
		}
		if _, ok := byAccount[line.ExpenseAccount]; !ok {
			accounts = append(accounts, line.ExpenseAccount)
		}
		byAccount[line.ExpenseAccount] = byAccount[line.ExpenseAccount].Add(line.Amount)
	}
	if len(accounts) == 0 {
		return nil
	}
	cashAccount, err := r.cashAccount()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		total := byAccount[account]
		doc := r.document(domain.DocJournalEntry, "Expenses from day closing "+r.record.ID)
		doc.Accounts = []ledger.JournalLine{
			{Account: account, Debit: total, Credit: decimal.Zero},
			{Account: cashAccount, Debit: decimal.Zero, Credit: total},
		}
		if _, err := r.post(ctx, domain.GroupExpenseEntries, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) supplierPayments(ctx context.Context) error {
	var cashAccount string
	for _, line := range r.record.SupplierPayments {
		if line.Supplier == "" || !line.Amount.IsPositive() {
			continue
		}
		if cashAccount == "" {
			account, err := r.cashAccount()
			if err != nil {
				return err
			}
			cashAccount = account
		}
		payable := line.PayableAccount
		if payable == "" {
			payable = r.pump.PayableAccount
		}
		doc := r.document(domain.DocPaymentEntry, "Supplier payment from day closing "+r.record.ID)
		doc.PartyType = ledger.PartySupplier
		doc.Party = line.Supplier
		doc.Payment = &ledger.Payment{
			Type:          ledger.PaymentPay,
			PaidFrom:      cashAccount,
			PaidTo:        payable,
			Amount:        line.Amount,
			ModeOfPayment: modeCash,
		}
		if _, err := r.post(ctx, domain.GroupSupplierPayments, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) creditCollections(ctx context.Context) error {
	var cashAccount, receivable string
	for _, line := range r.record.CreditCollections {
		if line.Customer == "" || !line.Amount.IsPositive() {
			continue
		}
		if cashAccount == "" {
			account, err := r.cashAccount()
			if err != nil {
				return err
			}
			cashAccount = account
			if receivable, err = r.receivableAccount(); err != nil {
				return err
			}
		}
		doc := r.document(domain.DocPaymentEntry, "Credit collection from day closing "+r.record.ID)
		doc.PartyType = ledger.PartyCustomer
		doc.Party = line.Customer
		doc.Payment = &ledger.Payment{
			Type:          ledger.PaymentReceive,
			PaidFrom:      receivable,
			PaidTo:        cashAccount,
			Amount:        line.Amount,
			ModeOfPayment: modeCash,
		}
		if _, err := r.post(ctx, domain.GroupCreditCollections, doc); err != nil {
			return err
		}
	}
	return nil
}

// moved reports whether a line carries a meter reading to checkpoint. Lines left at zero
// keep the nozzle's current checkpoint.
func moved(line domain.NozzleReadingLine) bool {
	return line.NozzleID != "" && line.CurrentReading.IsPositive()
}

func (r *run) advanceNozzles(ctx context.Context) error {
	for _, line := range r.record.NozzleReadings {
		if !moved(line) {
			continue
		}
		if err := r.o.nozzles.SetNozzleLastReading(ctx, line.NozzleID, line.CurrentReading); err != nil {
			return fmt.Errorf("advance nozzle %s: %w", line.NozzleID, err)
		}
	}
	return nil
}

func (r *run) revertNozzles(ctx context.Context) []domain.CompensationFailure {
	var failures []domain.CompensationFailure
	for _, line := range r.record.NozzleReadings {
		if !moved(line) {
			continue
		}
		if err := r.o.nozzles.SetNozzleLastReading(ctx, line.NozzleID, line.PreviousReading); err != nil {
			failures = append(failures, domain.CompensationFailure{
				Ref: domain.DocumentRef{Group: "nozzles", Type: "Nozzle", ID: line.NozzleID},
				Err: fmt.Errorf("revert reading: %w", err),
			})
		}
	}
	return failures
}

func (r *run) cancelGroup(ctx context.Context, group domain.RefGroup) []domain.CompensationFailure {
	var failures []domain.CompensationFailure
	for _, ref := range r.record.Refs.Group(group).Reversed() {
		if err := r.o.ledger.Cancel(ctx, ref.ID); err != nil {
			failures = append(failures, domain.CompensationFailure{Ref: ref, Err: err})
		}
	}
	return failures
}
