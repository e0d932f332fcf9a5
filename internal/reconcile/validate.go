package reconcile

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
)

type FuelTypes interface {
	GetFuelType(ctx context.Context, id string) (*domain.FuelType, error)
}

type StockChecker interface {
	CheckSufficient(ctx context.Context, pumpID string, fuelTypeID string, requested decimal.Decimal) error
}

type Validator struct {
	fuelTypes FuelTypes
	stock     StockChecker
}

func NewValidator(fuelTypes FuelTypes, stock StockChecker) *Validator {
	return &Validator{fuelTypes: fuelTypes, stock: stock}
}

// ValidateReadings rejects lines that dispensed fuel without a price, or whose meter
// went backwards after a current reading was entered.
func (v *Validator) ValidateReadings(ctx context.Context, lines []domain.NozzleReadingLine) error {
	for _, line := range lines {
		if line.CurrentReading.IsPositive() && line.CurrentReading.LessThan(line.PreviousReading) {
			return domain.NewValidationError("reading",
				"Current reading (%s) cannot be less than previous reading (%s) on Nozzle %s.",
				line.CurrentReading.String(), line.PreviousReading.String(), line.NozzleName)
		}
		if line.Dispensed.IsPositive() && !line.Rate.IsPositive() {
			return domain.NewValidationError("price",
				"Price is missing or zero for %s on Nozzle %s. Please ensure active Fuel Price exists for the reading date.",
				v.fuelName(ctx, line.FuelTypeID), line.NozzleName)
		}
	}
	return nil
}

// ValidateSave runs the checks that block saving a draft. record must be computed.
func (v *Validator) ValidateSave(ctx context.Context, record *domain.DayClosing) error {
	return v.ValidateReadings(ctx, record.NozzleReadings)
}

// ValidateSubmit runs every save check plus stock, credit and collection limits.
func (v *Validator) ValidateSubmit(ctx context.Context, record *domain.DayClosing) error {
	if err := v.ValidateSave(ctx, record); err != nil {
		return err
	}

	dispensed := DispensedByFuel(record.NozzleReadings)
	for _, fuelTypeID := range sortedKeys(dispensed) {
		if err := v.stock.CheckSufficient(ctx, record.PumpID, fuelTypeID, dispensed[fuelTypeID]); err != nil {
			return err
		}
	}

	credit := make(map[string]decimal.Decimal, len(record.CreditSales))
	for i, line := range record.CreditSales {
		if line.Customer == "" || line.FuelTypeID == "" {
			return domain.NewValidationError("credit_party",
				"Credit sale row %d must name both a customer and a fuel type.", i+1)
		}
		if !line.Liters.IsPositive() {
			return domain.NewValidationError("credit_liters",
				"Credit sale row %d for %s must have liters greater than zero.", i+1, line.Customer)
		}
		credit[line.FuelTypeID] = credit[line.FuelTypeID].Add(line.Liters)
	}
	for _, fuelTypeID := range sortedKeys(credit) {
		sold, ok := dispensed[fuelTypeID]
		if !ok {
			return domain.NewValidationError("credit_fuel",
				"Credit sale has Fuel Type %s but no nozzle readings exist for this fuel type. Please check your credit sales entries.",
				v.fuelName(ctx, fuelTypeID))
		}
		if credit[fuelTypeID].GreaterThan(sold) {
			return domain.NewValidationError("credit_liters",
				"Credit sale liters for %s (%s) exceed total nozzle dispensed liters (%s). Credit sales cannot be more than what was dispensed.",
				v.fuelName(ctx, fuelTypeID), credit[fuelTypeID].String(), sold.String())
		}
	}

	collected := record.CreditAmount.Add(record.CardAmount)
	if collected.GreaterThan(record.TotalSales) {
		return domain.NewValidationError("collections",
			"Credit Sales + Card/POS (%s) exceed Total Sales (%s). Credit Sales: %s, Card/POS: %s. Credit and card collections cannot exceed what was sold from nozzles.",
			collected.StringFixed(2), record.TotalSales.StringFixed(2),
			record.CreditAmount.StringFixed(2), record.CardAmount.StringFixed(2))
	}
	return nil
}

func (v *Validator) fuelName(ctx context.Context, fuelTypeID string) string {
	if v.fuelTypes == nil || fuelTypeID == "" {
		return fuelTypeID
	}
	fuelType, err := v.fuelTypes.GetFuelType(ctx, fuelTypeID)
	if err != nil {
		return fuelTypeID
	}
	return fuelType.Name
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
