package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/saga"
	"fuelbook/backend/internal/stock"
	"fuelbook/backend/internal/store"
)

const fuelTestingKind = "fuel_testing"

func (s *Service) SaveFuelTesting(ctx context.Context, testing domain.FuelTesting) (domain.FuelTesting, error) {
	if testing.PumpID == "" || len(testing.Lines) == 0 {
		return domain.FuelTesting{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetPump(ctx, testing.PumpID); err != nil {
		return domain.FuelTesting{}, err
	}
	if testing.ID != "" {
		existing, err := s.repo.GetFuelTesting(ctx, testing.ID)
		if err != nil {
			return domain.FuelTesting{}, err
		}
		if err := requireState(fuelTestingKind, existing.ID, existing.State, domain.StateDraft); err != nil {
			return domain.FuelTesting{}, err
		}
	}
	testing.TestDate = defaultTime(testing.TestDate)
	testing.State = domain.StateDraft
	testing.Refs = domain.DocumentRefs{}
	if err := s.computeFuelTesting(ctx, &testing); err != nil {
		return domain.FuelTesting{}, err
	}

	saved, err := s.repo.SaveFuelTesting(ctx, testing)
	if err != nil {
		return domain.FuelTesting{}, err
	}
	s.logAudit(ctx, saved.PumpID, "fuel_testing_save", fuelTestingKind, saved.ID, "liters="+saved.TotalTestLiters.String())
	return *saved, nil
}

func (s *Service) computeFuelTesting(ctx context.Context, testing *domain.FuelTesting) error {
	total := decimal.Zero
	for i := range testing.Lines {
		line := &testing.Lines[i]
		if line.NozzleID == "" {
			return domain.NewValidationError("nozzle", "Row %d: Nozzle is required.", i+1)
		}
		if !line.TestLiters.IsPositive() {
			return domain.NewValidationError("test_liters", "Row %d: Test liters must be greater than zero.", i+1)
		}
		nozzle, err := s.repo.GetNozzle(ctx, line.NozzleID)
		if err != nil {
			return fmt.Errorf("nozzle %s: %w", line.NozzleID, err)
		}
		if nozzle.PumpID != testing.PumpID {
			return domain.NewValidationError("nozzle", "Nozzle %s belongs to another petrol pump.", nozzle.Name)
		}
		line.FuelTypeID = nozzle.FuelTypeID
		if !line.Rate.IsPositive() {
			rate, err := s.prices.Resolve(ctx, line.FuelTypeID, testing.PumpID, testing.TestDate)
			if err != nil {
				return err
			}
			line.Rate = rate
		}
		line.Amount = line.TestLiters.Mul(line.Rate)
		total = total.Add(line.TestLiters)
	}
	testing.TotalTestLiters = total
	return nil
}

// checkTestingStock compares each fuel against the pump's primary tank only, since the
// test issue draws from that tank.
func (s *Service) checkTestingStock(ctx context.Context, pump *domain.Pump, fuels []stock.Issue) error {
	for _, fuel := range fuels {
		fuelType, err := s.repo.GetFuelType(ctx, fuel.FuelTypeID)
		if err != nil {
			return fmt.Errorf("fuel type %s: %w", fuel.FuelTypeID, err)
		}
		tank, err := s.stock.PrimaryTank(ctx, pump.ID, fuel.FuelTypeID)
		if err != nil {
			return domain.NewValidationError("tank", "No Fuel Tank with warehouse found for %s at %s.", fuelType.Name, pump.Name)
		}
		available, err := s.ledger.StockBalance(ctx, fuelType.ItemCode, tank.Warehouse)
		if err != nil {
			return fmt.Errorf("stock of tank %s: %w", tank.Name, err)
		}
		if available.LessThan(fuel.Qty) {
			return domain.NewStockError("Insufficient stock for testing %s in %s (%s). Available: %s L, Required: %s L",
				fuelType.Name, tank.Name, tank.Warehouse, available.StringFixed(2), fuel.Qty.StringFixed(2))
		}
	}
	return nil
}

func (s *Service) GetFuelTesting(ctx context.Context, id string) (domain.FuelTesting, error) {
	testing, err := s.repo.GetFuelTesting(ctx, id)
	if err != nil {
		return domain.FuelTesting{}, err
	}
	return *testing, nil
}

// SubmitFuelTesting issues the test fuel and moves each nozzle's checkpoint past the
// liters pumped during the test.
func (s *Service) SubmitFuelTesting(ctx context.Context, id string) (domain.FuelTesting, error) {
	var result domain.FuelTesting
	err := s.withRecordLock(ctx, fuelTestingKind, id, func(ctx context.Context) error {
		testing, err := s.repo.GetFuelTesting(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(fuelTestingKind, id, testing.State, domain.StateDraft); err != nil {
			return err
		}
		if err := s.computeFuelTesting(ctx, testing); err != nil {
			return err
		}
		pump, err := s.repo.GetPump(ctx, testing.PumpID)
		if err != nil {
			return err
		}
		issue := fuelQuantities(testing.Lines,
			func(l domain.FuelTestingLine) string { return l.FuelTypeID },
			func(l domain.FuelTestingLine) decimal.Decimal { return l.TestLiters })
		if err := s.checkTestingStock(ctx, pump, issue); err != nil {
			return err
		}

		testing.Refs = domain.DocumentRefs{}
		steps := []saga.Step{
			{
				Name: "stock_issue",
				Apply: func(ctx context.Context) error {
					ref, err := s.postStockIssue(ctx, pump, testing.ID, "Fuel testing "+testing.ID, testing.TestDate, issue)
					if err != nil {
						return err
					}
					testing.Refs = append(testing.Refs, ref)
					return nil
				},
				Compensate: func(ctx context.Context) error {
					if failures := s.cancelRefs(ctx, testing.Refs); len(failures) > 0 {
						return &domain.CompensationError{Failures: failures}
					}
					testing.Refs = domain.DocumentRefs{}
					return nil
				},
			},
			{
				Name:       "nozzle_advance",
				Apply:      func(ctx context.Context) error { return s.shiftTestedNozzles(ctx, testing.Lines, 1) },
				Compensate: func(ctx context.Context) error { return s.shiftTestedNozzles(ctx, testing.Lines, -1) },
			},
		}
		if err := s.runCompensated(ctx, fuelTestingKind, id, steps...); err != nil {
			return fmt.Errorf("submit fuel testing %s: %w", id, err)
		}

		testing.State = domain.StateSubmitted
		saved, err := s.repo.SaveFuelTesting(ctx, *testing)
		if err != nil {
			return err
		}
		s.logAudit(ctx, saved.PumpID, "fuel_testing_submit", fuelTestingKind, id, "liters="+saved.TotalTestLiters.String())
		result = *saved
		return nil
	})
	return result, err
}

func (s *Service) CancelFuelTesting(ctx context.Context, id string) (domain.CancelResponse, error) {
	var resp domain.CancelResponse
	err := s.withRecordLock(ctx, fuelTestingKind, id, func(ctx context.Context) error {
		testing, err := s.repo.GetFuelTesting(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(fuelTestingKind, id, testing.State, domain.StateSubmitted); err != nil {
			return err
		}

		var warnings []string
		if failures := s.cancelRefs(ctx, testing.Refs); len(failures) > 0 {
			warnings = (&domain.CompensationError{Failures: failures}).Messages()
		}
		if err := s.shiftTestedNozzles(ctx, testing.Lines, -1); err != nil {
			warnings = append(warnings, err.Error())
		}

		testing.State = domain.StateCancelled
		testing.Refs = domain.DocumentRefs{}
		saved, err := s.repo.SaveFuelTesting(ctx, *testing)
		if err != nil {
			return err
		}
		s.logAudit(ctx, saved.PumpID, "fuel_testing_cancel", fuelTestingKind, id, fmt.Sprintf("warnings=%d", len(warnings)))
		resp = domain.CancelResponse{ID: saved.ID, State: saved.State, Warnings: warnings}
		return nil
	})
	return resp, err
}

// shiftTestedNozzles moves last_reading by sign times the tested liters, never below zero.
func (s *Service) shiftTestedNozzles(ctx context.Context, lines []domain.FuelTestingLine, sign int64) error {
	for _, line := range lines {
		nozzle, err := s.repo.GetNozzle(ctx, line.NozzleID)
		if err != nil {
			return fmt.Errorf("nozzle %s: %w", line.NozzleID, err)
		}
		next := nozzle.LastReading.Add(line.TestLiters.Mul(decimal.NewFromInt(sign)))
		if next.IsNegative() {
			next = decimal.Zero
		}
		if err := s.repo.SetNozzleLastReading(ctx, nozzle.ID, next); err != nil {
			return fmt.Errorf("nozzle %s: %w", nozzle.ID, err)
		}
	}
	return nil
}
