package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelbook/backend/internal/domain"
)

type fixedPrices map[string]decimal.Decimal

func (p fixedPrices) Resolve(_ context.Context, fuelTypeID string, _ string, _ time.Time) (decimal.Decimal, error) {
	return p[fuelTypeID], nil
}

type fuelNames map[string]string

func (f fuelNames) GetFuelType(_ context.Context, id string) (*domain.FuelType, error) {
	name, ok := f[id]
	if !ok {
		return nil, errors.New("missing")
	}
	return &domain.FuelType{ID: id, Name: name}, nil
}

type stockLimit map[string]decimal.Decimal

func (s stockLimit) CheckSufficient(_ context.Context, _ string, fuelTypeID string, requested decimal.Decimal) error {
	if !s[fuelTypeID].Sub(requested).IsPositive() {
		return domain.NewStockError("Insufficient stock for Fuel Type %s.", fuelTypeID)
	}
	return nil
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func baseRecord() *domain.DayClosing {
	return &domain.DayClosing{
		PumpID:      "pump-a",
		ReadingDate: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC),
		NozzleReadings: []domain.NozzleReadingLine{
			{NozzleID: "n1", NozzleName: "1", FuelTypeID: "A", PreviousReading: dec(100), CurrentReading: dec(150), Rate: dec(10)},
			{NozzleID: "n2", NozzleName: "2", FuelTypeID: "B", PreviousReading: dec(100), CurrentReading: dec(150), Rate: dec(10)},
		},
	}
}

func TestComputeTwoNozzleScenario(t *testing.T) {
	engine := NewEngine(fixedPrices{}, NetCash{})
	record := baseRecord()

	require.NoError(t, engine.Compute(context.Background(), record))

	for _, line := range record.NozzleReadings {
		assert.True(t, line.Dispensed.Equal(dec(50)))
		assert.True(t, line.Amount.Equal(dec(500)))
	}
	assert.True(t, record.TotalSales.Equal(dec(1000)), "total_sales=%s", record.TotalSales)
	assert.True(t, record.TotalLiters.Equal(dec(100)), "total_liters=%s", record.TotalLiters)
	assert.Equal(t, PolicyNetCash, record.CashPolicy)
}

func TestComputeResolvesMissingRatesAndSkipsIdleNozzles(t *testing.T) {
	engine := NewEngine(fixedPrices{"A": decimal.RequireFromString("10.25")}, NetCash{})
	record := &domain.DayClosing{
		PumpID: "pump-a",
		NozzleReadings: []domain.NozzleReadingLine{
			{NozzleID: "n1", FuelTypeID: "A", PreviousReading: dec(100), CurrentReading: dec(104)},
			{NozzleID: "n2", FuelTypeID: "A", PreviousReading: dec(300), CurrentReading: decimal.Zero},
		},
		CreditSales: []domain.CreditSaleLine{{Customer: "Fleet", FuelTypeID: "A", Liters: dec(2)}},
	}

	require.NoError(t, engine.Compute(context.Background(), record))

	assert.True(t, record.NozzleReadings[0].Amount.Equal(decimal.RequireFromString("41")))
	assert.True(t, record.NozzleReadings[1].Amount.IsZero())
	assert.True(t, record.TotalLiters.Equal(dec(4)))
	assert.True(t, record.CreditSales[0].Rate.Equal(decimal.RequireFromString("10.25")))
	assert.True(t, record.CreditAmount.Equal(decimal.RequireFromString("20.5")))
}

func TestComputeIsIdempotent(t *testing.T) {
	engine := NewEngine(fixedPrices{"A": dec(10), "B": dec(10)}, NetCash{})
	record := baseRecord()
	record.CreditSales = []domain.CreditSaleLine{{Customer: "Fleet", FuelTypeID: "A", Liters: dec(20)}}
	record.CardSales = []domain.CardSaleLine{{BankAccount: "Bank", Amount: dec(150)}}
	record.Expenses = []domain.ExpenseLine{{ExpenseAccount: "Fuel Exp", Amount: dec(30)}}
	record.PreviousCash = dec(70)

	require.NoError(t, engine.Compute(context.Background(), record))
	first := record.Totals
	require.NoError(t, engine.Compute(context.Background(), record))

	assert.Equal(t, first, record.Totals)
}

func TestNetCashFormula(t *testing.T) {
	engine := NewEngine(fixedPrices{}, NetCash{})
	record := baseRecord()
	record.CreditSales = []domain.CreditSaleLine{{Customer: "Fleet", FuelTypeID: "A", Liters: dec(20), Rate: dec(10)}}
	record.CardSales = []domain.CardSaleLine{{BankAccount: "Bank", Amount: dec(150)}}
	record.Expenses = []domain.ExpenseLine{{ExpenseAccount: "Fuel Exp", Amount: dec(30)}}
	record.SupplierPayments = []domain.SupplierPaymentLine{{Supplier: "Refinery", Amount: dec(100)}}
	record.CreditCollections = []domain.CreditCollectionLine{{Customer: "Old Fleet", Amount: dec(80)}}
	record.PreviousCash = dec(500)

	require.NoError(t, engine.Compute(context.Background(), record))

	// 1000 - 200 - 150 - 30 - 100 + 80
	assert.True(t, record.CashAmount.Equal(dec(600)), "cash=%s", record.CashAmount)
	assert.True(t, record.CashInHand.Equal(dec(1100)), "in hand=%s", record.CashInHand)
	assert.Equal(t, domain.StateApproved, engine.Policy().ApprovalState(record.Totals))
}

func TestVariancePolicyRoutesLargeVarianceToApproval(t *testing.T) {
	policy, err := NewPolicy(PolicyVariance, dec(500), false)
	require.NoError(t, err)
	engine := NewEngine(fixedPrices{}, policy)

	record := baseRecord()
	record.CreditSales = []domain.CreditSaleLine{{Customer: "Fleet", FuelTypeID: "A", Liters: dec(10), Rate: dec(10)}}
	record.CardSales = []domain.CardSaleLine{{BankAccount: "Bank", Amount: dec(200)}}
	record.CashAmount = dec(650)

	require.NoError(t, engine.Compute(context.Background(), record))
	assert.True(t, record.ExpectedCollection.Equal(dec(900)))
	assert.True(t, record.TotalPaymentsReceived.Equal(dec(850)))
	assert.True(t, record.CashVariance.Equal(dec(-50)))
	assert.True(t, record.CashAmount.Equal(dec(650)), "entered cash is kept")
	assert.Equal(t, domain.StateApproved, policy.ApprovalState(record.Totals))

	record.CashAmount = dec(100)
	require.NoError(t, engine.Compute(context.Background(), record))
	assert.True(t, record.CashVariance.Equal(dec(-600)))
	assert.Equal(t, domain.StatePendingApproval, policy.ApprovalState(record.Totals))
}

func TestVarianceSubtractExpenses(t *testing.T) {
	policy := Variance{Threshold: dec(500), SubtractExpenses: true}
	totals := domain.Totals{TotalSales: dec(1000), CreditAmount: dec(100), TotalExpenses: dec(50), CashAmount: dec(850)}
	policy.Apply(&totals)
	assert.True(t, totals.ExpectedCollection.Equal(dec(850)))
	assert.True(t, totals.CashVariance.IsZero())
}

func TestNewPolicyRejectsUnknown(t *testing.T) {
	_, err := NewPolicy("float", decimal.Zero, false)
	assert.Error(t, err)

	policy, err := NewPolicy("", decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, PolicyNetCash, policy.Name())
}
