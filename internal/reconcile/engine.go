// Package reconcile computes the totals of a day closing from its meter readings and
// collection lines, and enforces the save and submit validations.
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
)

type PriceResolver interface {
	Resolve(ctx context.Context, fuelTypeID string, pumpID string, asOf time.Time) (decimal.Decimal, error)
}

type Engine struct {
	prices PriceResolver
	policy CashPolicy
}

func NewEngine(prices PriceResolver, policy CashPolicy) *Engine {
	if policy == nil {
		policy = NetCash{}
	}
	return &Engine{prices: prices, policy: policy}
}

func (e *Engine) Policy() CashPolicy {
	return e.policy
}

// Compute recomputes every derived field of record in place. Running it twice on the
// same inputs yields the same totals.
func (e *Engine) Compute(ctx context.Context, record *domain.DayClosing) error {
	totalSales, totalLiters, err := e.ComputeReadings(ctx, record.PumpID, record.ReadingDate, record.NozzleReadings)
	if err != nil {
		return err
	}

	creditLiters, creditAmount := decimal.Zero, decimal.Zero
	for i := range record.CreditSales {
		line := &record.CreditSales[i]
		if line.Rate.IsZero() && line.FuelTypeID != "" {
			rate, err := e.prices.Resolve(ctx, line.FuelTypeID, record.PumpID, record.ReadingDate)
			if err != nil {
				return err
			}
			line.Rate = rate
		}
		if line.Liters.IsPositive() && line.Rate.IsPositive() {
			line.Amount = line.Liters.Mul(line.Rate)
		}
		creditLiters = creditLiters.Add(line.Liters)
		creditAmount = creditAmount.Add(line.Amount)
	}

	cardAmount := decimal.Zero
	for _, line := range record.CardSales {
		cardAmount = cardAmount.Add(line.Amount)
	}
	expenses := decimal.Zero
	for _, line := range record.Expenses {
		expenses = expenses.Add(line.Amount)
	}
	supplierPayments := decimal.Zero
	for _, line := range record.SupplierPayments {
		supplierPayments = supplierPayments.Add(line.Amount)
	}
	collections := decimal.Zero
	for _, line := range record.CreditCollections {
		collections = collections.Add(line.Amount)
	}

	t := &record.Totals
	t.TotalSales = totalSales
	t.TotalLiters = totalLiters
	t.CreditLiters = creditLiters
	t.CreditAmount = creditAmount
	t.CardAmount = cardAmount
	t.TotalExpenses = expenses
	t.TotalSupplierPayments = supplierPayments
	t.TotalCreditCollections = collections

	e.policy.Apply(t)
	record.CashPolicy = e.policy.Name()
	return nil
}

// ComputeReadings fills dispensed, rate and amount on each line and returns the sales
// and litre totals over lines that dispensed fuel.
func (e *Engine) ComputeReadings(ctx context.Context, pumpID string, asOf time.Time, lines []domain.NozzleReadingLine) (decimal.Decimal, decimal.Decimal, error) {
	totalSales, totalLiters := decimal.Zero, decimal.Zero
	for i := range lines {
		line := &lines[i]
		line.Dispensed = line.CurrentReading.Sub(line.PreviousReading)
		if line.Rate.IsZero() && line.FuelTypeID != "" {
			rate, err := e.prices.Resolve(ctx, line.FuelTypeID, pumpID, asOf)
			if err != nil {
				return decimal.Zero, decimal.Zero, err
			}
			line.Rate = rate
		}
		if !line.Dispensed.IsPositive() {
			line.Amount = decimal.Zero
			continue
		}
		line.Amount = line.Dispensed.Mul(line.Rate)
		totalSales = totalSales.Add(line.Amount)
		totalLiters = totalLiters.Add(line.Dispensed)
	}
	return totalSales, totalLiters, nil
}

// DispensedByFuel sums positive dispensed litres per fuel type.
func DispensedByFuel(lines []domain.NozzleReadingLine) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, 4)
	for _, line := range lines {
		if line.FuelTypeID == "" || !line.Dispensed.IsPositive() {
			continue
		}
		out[line.FuelTypeID] = out[line.FuelTypeID].Add(line.Dispensed)
	}
	return out
}
