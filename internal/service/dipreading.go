package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/store"
)

const dipReadingKind = "dip_reading"

// dipTolerance is the smallest difference between dip and books that is reconciled.
var dipTolerance = decimal.RequireFromString("0.1")

type dipTarget struct {
	pump     *domain.Pump
	tank     *domain.FuelTank
	itemCode string
}

func (s *Service) dipTarget(ctx context.Context, tankID string) (dipTarget, error) {
	tank, err := s.repo.GetTank(ctx, tankID)
	if err != nil {
		return dipTarget{}, err
	}
	if tank.Warehouse == "" {
		return dipTarget{}, domain.NewValidationError("tank", "Fuel Tank %s has no warehouse.", tank.Name)
	}
	pump, err := s.repo.GetPump(ctx, tank.PumpID)
	if err != nil {
		return dipTarget{}, err
	}
	fuelType, err := s.repo.GetFuelType(ctx, tank.FuelTypeID)
	if err != nil {
		return dipTarget{}, err
	}
	return dipTarget{pump: pump, tank: tank, itemCode: fuelType.ItemCode}, nil
}

func (s *Service) measureDip(ctx context.Context, reading *domain.DipReading, target dipTarget) error {
	system, err := s.ledger.StockBalance(ctx, target.itemCode, target.tank.Warehouse)
	if err != nil {
		return fmt.Errorf("stock of tank %s: %w", target.tank.Name, err)
	}
	reading.PumpID = target.tank.PumpID
	reading.SystemStock = system
	reading.Difference = reading.MeasuredDip.Sub(system)
	return nil
}

func (s *Service) SaveDipReading(ctx context.Context, reading domain.DipReading) (domain.DipReading, error) {
	if reading.TankID == "" || reading.MeasuredDip.IsNegative() {
		return domain.DipReading{}, store.ErrInvalidInput
	}
	if reading.ID != "" {
		existing, err := s.repo.GetDipReading(ctx, reading.ID)
		if err != nil {
			return domain.DipReading{}, err
		}
		if err := requireState(dipReadingKind, existing.ID, existing.State, domain.StateDraft); err != nil {
			return domain.DipReading{}, err
		}
	}
	target, err := s.dipTarget(ctx, reading.TankID)
	if err != nil {
		return domain.DipReading{}, err
	}
	reading.ReadingDate = defaultTime(reading.ReadingDate)
	reading.State = domain.StateDraft
	reading.Refs = domain.DocumentRefs{}
	if err := s.measureDip(ctx, &reading, target); err != nil {
		return domain.DipReading{}, err
	}

	saved, err := s.repo.SaveDipReading(ctx, reading)
	if err != nil {
		return domain.DipReading{}, err
	}
	s.logAudit(ctx, saved.PumpID, "dip_reading_save", dipReadingKind, saved.ID, "difference="+saved.Difference.StringFixed(2))
	return *saved, nil
}

func (s *Service) GetDipReading(ctx context.Context, id string) (domain.DipReading, error) {
	reading, err := s.repo.GetDipReading(ctx, id)
	if err != nil {
		return domain.DipReading{}, err
	}
	return *reading, nil
}

// SubmitDipReading books the tank to the measured dip when it differs from the books
// by at least the tolerance.
func (s *Service) SubmitDipReading(ctx context.Context, id string) (domain.DipReading, error) {
	var result domain.DipReading
	err := s.withRecordLock(ctx, dipReadingKind, id, func(ctx context.Context) error {
		reading, err := s.repo.GetDipReading(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(dipReadingKind, id, reading.State, domain.StateDraft); err != nil {
			return err
		}
		target, err := s.dipTarget(ctx, reading.TankID)
		if err != nil {
			return err
		}
		if err := s.measureDip(ctx, reading, target); err != nil {
			return err
		}

		reading.Refs = domain.DocumentRefs{}
		if reading.Difference.Abs().GreaterThanOrEqual(dipTolerance) {
			rate, err := s.ledger.ValuationRate(ctx, target.itemCode, target.tank.Warehouse)
			if err != nil {
				return fmt.Errorf("valuation rate for %s: %w", target.itemCode, err)
			}
			ref, err := s.postDocument(ctx, domain.GroupStockReconciliation, ledger.Document{
				Type:        domain.DocStockReconciliation,
				Company:     target.pump.Company,
				CostCenter:  target.pump.CostCenter,
				PostingDate: reading.ReadingDate,
				Reference:   reading.ID,
				Remark:      "Dip reading " + reading.ID + " on " + target.tank.Name,
				Items: []ledger.Item{{
					ItemCode:        target.itemCode,
					Qty:             reading.MeasuredDip,
					Rate:            rate,
					Amount:          reading.MeasuredDip.Mul(rate),
					TargetWarehouse: target.tank.Warehouse,
					UOM:             ledger.UOMLitre,
				}},
			})
			if err != nil {
				return err
			}
			reading.Refs = append(reading.Refs, ref)
		}

		reading.State = domain.StateSubmitted
		saved, err := s.repo.SaveDipReading(ctx, *reading)
		if err != nil {
			return err
		}
		s.logAudit(ctx, saved.PumpID, "dip_reading_submit", dipReadingKind, id,
			fmt.Sprintf("difference=%s,documents=%d", saved.Difference.StringFixed(2), len(saved.Refs)))
		result = *saved
		return nil
	})
	return result, err
}

// CancelDipReading cancels the reconciliation. A cancel failure fails the request.
func (s *Service) CancelDipReading(ctx context.Context, id string) (domain.CancelResponse, error) {
	var resp domain.CancelResponse
	err := s.withRecordLock(ctx, dipReadingKind, id, func(ctx context.Context) error {
		reading, err := s.repo.GetDipReading(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(dipReadingKind, id, reading.State, domain.StateSubmitted); err != nil {
			return err
		}
		if failures := s.cancelRefs(ctx, reading.Refs); len(failures) > 0 {
			return &domain.CompensationError{Failures: failures}
		}

		reading.State = domain.StateCancelled
		reading.Refs = domain.DocumentRefs{}
		saved, err := s.repo.SaveDipReading(ctx, *reading)
		if err != nil {
			return err
		}
		s.logAudit(ctx, saved.PumpID, "dip_reading_cancel", dipReadingKind, id, "")
		resp = domain.CancelResponse{ID: saved.ID, State: saved.State}
		return nil
	})
	return resp, err
}
