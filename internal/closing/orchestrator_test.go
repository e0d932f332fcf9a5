package closing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelbook/backend/internal/domain"
	ledgermem "fuelbook/backend/internal/ledger/memory"
	"fuelbook/backend/internal/logging"
	"fuelbook/backend/internal/pricing"
	"fuelbook/backend/internal/reconcile"
	"fuelbook/backend/internal/stock"
	"fuelbook/backend/internal/store/memory"
)

type fixture struct {
	repo   *memory.Store
	ledger *ledgermem.Ledger
	orch   *Orchestrator
	record *domain.DayClosing
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewSeeded()
	led := ledgermem.New()
	led.SetStock("PETROL", memory.SeedPetrolWarehouse, dec(10000), dec(7))
	led.SetStock("DIESEL", memory.SeedDieselWarehouse, dec(10000), dec(6))

	record := &domain.DayClosing{
		PumpID:      memory.SeedPumpID,
		ReadingDate: time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC),
		State:       domain.StateSubmitted,
		NozzleReadings: []domain.NozzleReadingLine{
			{NozzleID: "nozzle-p1", NozzleName: "P1", FuelTypeID: memory.SeedPetrolID, PreviousReading: dec(1000), CurrentReading: dec(1050)},
			{NozzleID: "nozzle-d1", NozzleName: "D1", FuelTypeID: memory.SeedDieselID, PreviousReading: dec(500), CurrentReading: dec(520)},
		},
		CreditSales:       []domain.CreditSaleLine{{Customer: "Fleet Co", FuelTypeID: memory.SeedPetrolID, Liters: dec(10)}},
		CardSales:         []domain.CardSaleLine{{BankAccount: "HDFC Bank - FD", Amount: dec(200)}},
		Expenses:          []domain.ExpenseLine{{ExpenseAccount: "Generator Fuel - FD", Amount: dec(20)}, {ExpenseAccount: "Generator Fuel - FD", Amount: dec(10)}},
		SupplierPayments:  []domain.SupplierPaymentLine{{Supplier: "Refinery Ltd", Amount: dec(50)}},
		CreditCollections: []domain.CreditCollectionLine{{Customer: "Old Fleet", Amount: dec(40)}},
	}
	engine := reconcile.NewEngine(pricing.NewResolver(repo, false), reconcile.NetCash{})
	require.NoError(t, engine.Compute(ctx, record))

	saved, err := repo.SaveDayClosing(ctx, *record)
	require.NoError(t, err)

	orch := New(Config{
		Ledger:  led,
		Catalog: repo,
		Refs:    repo,
		Nozzles: repo,
		Issuer:  stock.NewChecker(repo, led),
		Logger:  logging.Discard(),
	})
	return &fixture{repo: repo, ledger: led, orch: orch, record: saved}
}

func groups(refs domain.DocumentRefs) []domain.RefGroup {
	out := make([]domain.RefGroup, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Group)
	}
	return out
}

func TestFinalizePostsDocumentsInDependencyOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.orch.Finalize(ctx, f.record, reconcile.NetCash{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateApproved, state)

	assert.Equal(t, []domain.RefGroup{
		domain.GroupStockEntry,
		domain.GroupSalesInvoices, domain.GroupSalesInvoices,
		domain.GroupPaymentEntries, domain.GroupPaymentEntries,
		domain.GroupExpenseEntries,
		domain.GroupSupplierPayments,
		domain.GroupCreditCollections,
	}, groups(f.record.Refs))

	stored, err := f.repo.GetDayClosing(ctx, f.record.ID)
	require.NoError(t, err)
	assert.Equal(t, f.record.Refs, stored.Refs)

	issue, _, ok := f.ledger.Document(f.record.Refs[0].ID)
	require.True(t, ok)
	require.Len(t, issue.Items, 2)
	assert.Equal(t, memory.SeedPetrolWarehouse, issue.Items[0].SourceWarehouse)
	assert.True(t, issue.Items[0].Amount.Equal(dec(350)), "50 L at valuation 7")

	cashInvoice, _, _ := f.ledger.Document(f.record.Refs[1].ID)
	assert.Equal(t, "Cash Customer", cashInvoice.Party)
	assert.True(t, cashInvoice.Total().Equal(dec(560)), "total=%s", cashInvoice.Total())

	creditInvoice, _, _ := f.ledger.Document(f.record.Refs[2].ID)
	assert.Equal(t, "Fleet Co", creditInvoice.Party)
	assert.True(t, creditInvoice.Total().Equal(dec(100)))

	card, _, _ := f.ledger.Document(f.record.Refs[3].ID)
	assert.True(t, card.Payment.Amount.Equal(dec(200)))
	assert.Equal(t, "HDFC Bank - FD", card.Payment.PaidTo)
	cash, _, _ := f.ledger.Document(f.record.Refs[4].ID)
	assert.True(t, cash.Payment.Amount.Equal(dec(360)))
	assert.Equal(t, "Cash - FD", cash.Payment.PaidTo)

	outstanding, err := f.ledger.Outstanding(ctx, f.record.Refs[1].ID)
	require.NoError(t, err)
	assert.True(t, outstanding.IsZero())

	journal, _, _ := f.ledger.Document(f.record.Refs[5].ID)
	require.Len(t, journal.Accounts, 2)
	assert.True(t, journal.Accounts[0].Debit.Equal(dec(30)), "expenses per account are combined")

	petrol, _ := f.ledger.StockBalance(ctx, "PETROL", memory.SeedPetrolWarehouse)
	assert.True(t, petrol.Equal(dec(9950)))

	nozzle, err := f.repo.GetNozzle(ctx, "nozzle-p1")
	require.NoError(t, err)
	assert.True(t, nozzle.LastReading.Equal(dec(1050)))
}

func TestCardAllocationIsCappedByOutstanding(t *testing.T) {
	f := newFixture(t)
	f.record.CardSales = []domain.CardSaleLine{
		{BankAccount: "HDFC Bank - FD", Amount: dec(500)},
		{BankAccount: "ICICI Bank - FD", Amount: dec(100)},
	}
	f.record.SupplierPayments = nil
	f.record.CreditCollections = nil
	f.record.Expenses = nil

	_, err := f.orch.Finalize(context.Background(), f.record, reconcile.NetCash{})
	require.NoError(t, err)

	payments := f.record.Refs.Group(domain.GroupPaymentEntries)
	require.Len(t, payments, 2, "second bank takes the remainder and no cash entry is left")
	first, _, _ := f.ledger.Document(payments[0].ID)
	second, _, _ := f.ledger.Document(payments[1].ID)
	assert.True(t, first.Payment.Amount.Equal(dec(500)))
	assert.True(t, second.Payment.Amount.Equal(dec(60)))
	assert.Equal(t, "ICICI Bank - FD", second.Payment.PaidTo)
}

func TestFinalizeFailureKeepsCreatedDocumentsAndReportsTotals(t *testing.T) {
	f := newFixture(t)
	f.ledger.FailCreate(domain.DocJournalEntry, errors.New("ledger unavailable"))

	_, err := f.orch.Finalize(context.Background(), f.record, reconcile.NetCash{})
	require.Error(t, err)

	var orchErr *domain.OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	assert.Equal(t, StepExpenses, orchErr.Step)
	assert.Len(t, orchErr.Created, 5)
	assert.Contains(t, err.Error(), "Total Sales: 660.00")
	assert.Contains(t, err.Error(), "Cash Amount: ")
	assert.Contains(t, err.Error(), "ledger unavailable")

	assert.Empty(t, f.ledger.CancelledOrder(), "no automatic rollback")
	stored, err := f.repo.GetDayClosing(context.Background(), f.record.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Refs, 5)

	nozzle, _ := f.repo.GetNozzle(context.Background(), "nozzle-p1")
	assert.True(t, nozzle.LastReading.Equal(dec(1000)), "nozzles advance only after every document")
}

func TestFinalizeRequiresCashAccount(t *testing.T) {
	f := newFixture(t)
	pump, err := f.repo.CreatePump(context.Background(), domain.Pump{ID: "pump-nocash", Name: "No Cash", Company: "Demo", ReceivableAccount: "Debtors"})
	require.NoError(t, err)
	f.record.PumpID = pump.ID
	f.record.NozzleReadings = nil
	f.record.TotalSales = decimal.Zero
	f.record.SupplierPayments = nil
	f.record.CreditCollections = nil

	_, err = f.orch.Finalize(context.Background(), f.record, reconcile.NetCash{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cash account not found for petrol pump No Cash")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cash_account", verr.Rule)
}

func TestReverseCancelsInStrictReverseOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.Finalize(ctx, f.record, reconcile.NetCash{})
	require.NoError(t, err)
	created := append(domain.DocumentRefs(nil), f.record.Refs...)

	require.NoError(t, f.orch.Reverse(ctx, f.record))

	assert.Equal(t, created.Reversed().IDs(), f.ledger.CancelledOrder())
	assert.Empty(t, f.record.Refs)
	stored, _ := f.repo.GetDayClosing(ctx, f.record.ID)
	assert.Empty(t, stored.Refs)

	petrol, _ := f.ledger.StockBalance(ctx, "PETROL", memory.SeedPetrolWarehouse)
	assert.True(t, petrol.Equal(dec(10000)))
	nozzle, _ := f.repo.GetNozzle(ctx, "nozzle-p1")
	assert.True(t, nozzle.LastReading.Equal(dec(1000)))
}

func TestReverseContinuesPastFailuresAndClearsLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.Finalize(ctx, f.record, reconcile.NetCash{})
	require.NoError(t, err)

	journalID := f.record.Refs.Group(domain.GroupExpenseEntries)[0].ID
	f.ledger.FailCancel(journalID, errors.New("period closed"))

	err = f.orch.Reverse(ctx, f.record)
	require.Error(t, err)

	var compErr *domain.CompensationError
	require.ErrorAs(t, err, &compErr)
	require.Len(t, compErr.Failures, 1)
	assert.Equal(t, journalID, compErr.Failures[0].Ref.ID)
	assert.Contains(t, err.Error(), "some transactions could not be cancelled")

	assert.Len(t, f.ledger.CancelledOrder(), 7)
	_, cancelled, _ := f.ledger.Document(journalID)
	assert.False(t, cancelled)

	stored, _ := f.repo.GetDayClosing(ctx, f.record.ID)
	assert.Empty(t, stored.Refs)
	assert.Empty(t, f.record.Refs)
}

type countingNozzles struct {
	next         NozzleStore
	ledger       *ledgermem.Ledger
	cancelsSoFar []int
}

func (n *countingNozzles) SetNozzleLastReading(ctx context.Context, id string, reading decimal.Decimal) error {
	n.cancelsSoFar = append(n.cancelsSoFar, len(n.ledger.CancelledOrder()))
	return n.next.SetNozzleLastReading(ctx, id, reading)
}

func TestReverseRevertsNozzlesAfterEveryCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nozzles := &countingNozzles{next: f.repo, ledger: f.ledger}
	orch := New(Config{
		Ledger:  f.ledger,
		Catalog: f.repo,
		Refs:    f.repo,
		Nozzles: nozzles,
		Issuer:  stock.NewChecker(f.repo, f.ledger),
		Logger:  logging.Discard(),
	})

	_, err := orch.Finalize(ctx, f.record, reconcile.NetCash{})
	require.NoError(t, err)
	documents := len(f.record.Refs)
	require.Equal(t, 8, documents)
	nozzles.cancelsSoFar = nil

	require.NoError(t, orch.Reverse(ctx, f.record))

	assert.Equal(t, []int{documents, documents}, nozzles.cancelsSoFar)
	nozzle, _ := f.repo.GetNozzle(ctx, "nozzle-d1")
	assert.True(t, nozzle.LastReading.Equal(dec(500)))
}
