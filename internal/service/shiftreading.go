package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/reconcile"
	"fuelbook/backend/internal/saga"
	"fuelbook/backend/internal/store"
)

const shiftReadingKind = "shift_reading"

// SaveShiftReading stores a draft. An empty line list is filled from the pump's active
// nozzles starting at their checkpoints.
func (s *Service) SaveShiftReading(ctx context.Context, reading domain.ShiftReading) (domain.ShiftReading, error) {
	if reading.PumpID == "" {
		return domain.ShiftReading{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetPump(ctx, reading.PumpID); err != nil {
		return domain.ShiftReading{}, err
	}
	if reading.ID != "" {
		existing, err := s.repo.GetShiftReading(ctx, reading.ID)
		if err != nil {
			return domain.ShiftReading{}, err
		}
		if err := requireState(shiftReadingKind, existing.ID, existing.State, domain.StateDraft); err != nil {
			return domain.ShiftReading{}, err
		}
	}
	if reading.ShiftID != "" {
		shift, err := s.repo.GetShift(ctx, reading.ShiftID)
		if err != nil {
			return domain.ShiftReading{}, err
		}
		if shift.PumpID != reading.PumpID {
			return domain.ShiftReading{}, domain.NewValidationError("shift", "Shift %s belongs to another petrol pump.", shift.Name)
		}
	}
	reading.ReadingDate = defaultTime(reading.ReadingDate)
	reading.State = domain.StateDraft
	reading.Refs = domain.DocumentRefs{}

	if len(reading.NozzleReadings) == 0 {
		nozzles, err := s.repo.ListNozzles(ctx, reading.PumpID, true)
		if err != nil {
			return domain.ShiftReading{}, err
		}
		for _, nozzle := range nozzles {
			reading.NozzleReadings = append(reading.NozzleReadings, domain.NozzleReadingLine{
				NozzleID:        nozzle.ID,
				NozzleName:      nozzle.Name,
				FuelTypeID:      nozzle.FuelTypeID,
				PreviousReading: nozzle.LastReading,
			})
		}
	}
	if err := s.computeShiftReading(ctx, &reading); err != nil {
		return domain.ShiftReading{}, err
	}

	saved, err := s.repo.SaveShiftReading(ctx, reading)
	if err != nil {
		return domain.ShiftReading{}, err
	}
	s.logAudit(ctx, saved.PumpID, "shift_reading_save", shiftReadingKind, saved.ID, "total_sales="+saved.TotalSales.StringFixed(2))
	return *saved, nil
}

func (s *Service) computeShiftReading(ctx context.Context, reading *domain.ShiftReading) error {
	if err := s.fillReadingLines(ctx, reading.PumpID, reading.NozzleReadings); err != nil {
		return err
	}
	sales, liters, err := s.engine.ComputeReadings(ctx, reading.PumpID, reading.ReadingDate, reading.NozzleReadings)
	if err != nil {
		return err
	}
	reading.TotalSales = sales
	reading.TotalLiters = liters
	return s.validator.ValidateReadings(ctx, reading.NozzleReadings)
}

func (s *Service) GetShiftReading(ctx context.Context, id string) (domain.ShiftReading, error) {
	reading, err := s.repo.GetShiftReading(ctx, id)
	if err != nil {
		return domain.ShiftReading{}, err
	}
	return *reading, nil
}

// SubmitShiftReading issues the dispensed fuel, advances the nozzles and closes the
// shift. A failing step rolls back the steps before it.
func (s *Service) SubmitShiftReading(ctx context.Context, id string) (domain.ShiftReading, error) {
	var result domain.ShiftReading
	err := s.withRecordLock(ctx, shiftReadingKind, id, func(ctx context.Context) error {
		reading, err := s.repo.GetShiftReading(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(shiftReadingKind, id, reading.State, domain.StateDraft); err != nil {
			return err
		}
		if err := s.computeShiftReading(ctx, reading); err != nil {
			return err
		}
		dispensed := reconcile.DispensedByFuel(reading.NozzleReadings)
		fuels := make([]string, 0, len(dispensed))
		for fuelTypeID := range dispensed {
			fuels = append(fuels, fuelTypeID)
		}
		slices.Sort(fuels)
		for _, fuelTypeID := range fuels {
			if err := s.stock.CheckSufficient(ctx, reading.PumpID, fuelTypeID, dispensed[fuelTypeID]); err != nil {
				return err
			}
		}
		pump, err := s.repo.GetPump(ctx, reading.PumpID)
		if err != nil {
			return err
		}

		issue := fuelQuantities(reading.NozzleReadings,
			func(l domain.NozzleReadingLine) string { return l.FuelTypeID },
			func(l domain.NozzleReadingLine) decimal.Decimal { return l.Dispensed })
		reading.Refs = domain.DocumentRefs{}
		steps := []saga.Step{
			{
				Name: "stock_issue",
				Apply: func(ctx context.Context) error {
					if len(issue) == 0 {
						return nil
					}
					ref, err := s.postStockIssue(ctx, pump, reading.ID, "Fuel dispensed on shift reading "+reading.ID, reading.ReadingDate, issue)
					if err != nil {
						return err
					}
					reading.Refs = append(reading.Refs, ref)
					return nil
				},
				Compensate: func(ctx context.Context) error {
					if failures := s.cancelRefs(ctx, reading.Refs); len(failures) > 0 {
						return &domain.CompensationError{Failures: failures}
					}
					reading.Refs = domain.DocumentRefs{}
					return nil
				},
			},
			{
				Name:       "nozzle_advance",
				Apply:      func(ctx context.Context) error { return s.setNozzleReadings(ctx, reading.NozzleReadings, currentReading) },
				Compensate: func(ctx context.Context) error { return s.setNozzleReadings(ctx, reading.NozzleReadings, previousReading) },
			},
			{
				Name:  "shift_close",
				Apply: func(ctx context.Context) error { return s.setShiftStatus(ctx, reading.ShiftID, domain.ShiftClosed) },
			},
		}
		if err := s.runCompensated(ctx, shiftReadingKind, id, steps...); err != nil {
			return fmt.Errorf("submit shift reading %s: %w", id, err)
		}

		reading.State = domain.StateSubmitted
		saved, err := s.repo.SaveShiftReading(ctx, *reading)
		if err != nil {
			return err
		}
		s.logAudit(ctx, saved.PumpID, "shift_reading_submit", shiftReadingKind, id, fmt.Sprintf("liters=%s,documents=%d", saved.TotalLiters, len(saved.Refs)))
		result = *saved
		return nil
	})
	return result, err
}

func (s *Service) CancelShiftReading(ctx context.Context, id string) (domain.CancelResponse, error) {
	var resp domain.CancelResponse
	err := s.withRecordLock(ctx, shiftReadingKind, id, func(ctx context.Context) error {
		reading, err := s.repo.GetShiftReading(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(shiftReadingKind, id, reading.State, domain.StateSubmitted); err != nil {
			return err
		}

		var warnings []string
		if failures := s.cancelRefs(ctx, reading.Refs); len(failures) > 0 {
			warnings = (&domain.CompensationError{Failures: failures}).Messages()
		}
		if err := s.setNozzleReadings(ctx, reading.NozzleReadings, previousReading); err != nil {
			warnings = append(warnings, err.Error())
		}
		if err := s.setShiftStatus(ctx, reading.ShiftID, domain.ShiftOpen); err != nil {
			warnings = append(warnings, err.Error())
		}

		reading.State = domain.StateCancelled
		reading.Refs = domain.DocumentRefs{}
		saved, err := s.repo.SaveShiftReading(ctx, *reading)
		if err != nil {
			return err
		}
		s.logAudit(ctx, saved.PumpID, "shift_reading_cancel", shiftReadingKind, id, fmt.Sprintf("warnings=%d", len(warnings)))
		resp = domain.CancelResponse{ID: saved.ID, State: saved.State, Warnings: warnings}
		return nil
	})
	return resp, err
}

func (s *Service) setShiftStatus(ctx context.Context, shiftID string, status string) error {
	if shiftID == "" {
		return nil
	}
	if _, err := s.repo.SetShiftStatus(ctx, shiftID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("shift %s: %w", shiftID, err)
	}
	return nil
}
