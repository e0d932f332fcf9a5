package service

import (
	"context"
	"fmt"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/store"
)

const fuelTransferKind = "fuel_transfer"

type transferTanks struct {
	from     *domain.FuelTank
	to       *domain.FuelTank
	fuelType *domain.FuelType
}

func (s *Service) transferTanks(ctx context.Context, transfer *domain.FuelTransfer) (transferTanks, error) {
	from, err := s.repo.GetTank(ctx, transfer.FromTankID)
	if err != nil {
		return transferTanks{}, fmt.Errorf("source tank %s: %w", transfer.FromTankID, err)
	}
	to, err := s.repo.GetTank(ctx, transfer.ToTankID)
	if err != nil {
		return transferTanks{}, fmt.Errorf("destination tank %s: %w", transfer.ToTankID, err)
	}
	if from.Warehouse == "" || to.Warehouse == "" {
		return transferTanks{}, domain.NewValidationError("tank", "Both tanks need a warehouse to transfer fuel.")
	}
	if transfer.FuelTypeID == "" {
		transfer.FuelTypeID = from.FuelTypeID
	}
	if from.FuelTypeID != to.FuelTypeID || transfer.FuelTypeID != from.FuelTypeID {
		return transferTanks{}, domain.NewValidationError("fuel_type",
			"Cannot transfer fuel between different fuel types. Source tank %s holds %s and destination tank %s holds %s.",
			from.Name, from.FuelTypeID, to.Name, to.FuelTypeID)
	}
	fuelType, err := s.repo.GetFuelType(ctx, from.FuelTypeID)
	if err != nil {
		return transferTanks{}, err
	}
	return transferTanks{from: from, to: to, fuelType: fuelType}, nil
}

func (s *Service) checkTransferStock(ctx context.Context, transfer *domain.FuelTransfer, tanks transferTanks) error {
	available, err := s.ledger.StockBalance(ctx, tanks.fuelType.ItemCode, tanks.from.Warehouse)
	if err != nil {
		return fmt.Errorf("stock of tank %s: %w", tanks.from.Name, err)
	}
	if available.LessThan(transfer.Quantity) {
		return domain.NewStockError("Insufficient stock in source tank %s. Available: %s liters, Requested: %s liters. Short by: %s liters.",
			tanks.from.Name, available.StringFixed(2), transfer.Quantity.StringFixed(2), transfer.Quantity.Sub(available).StringFixed(2))
	}
	return nil
}

func (s *Service) SaveFuelTransfer(ctx context.Context, transfer domain.FuelTransfer) (domain.FuelTransfer, error) {
	if transfer.FromTankID == "" || transfer.ToTankID == "" || !transfer.Quantity.IsPositive() {
		return domain.FuelTransfer{}, store.ErrInvalidInput
	}
	if transfer.FromTankID == transfer.ToTankID {
		return domain.FuelTransfer{}, domain.NewValidationError("tank", "Source and destination tank must differ.")
	}
	if transfer.ID != "" {
		existing, err := s.repo.GetFuelTransfer(ctx, transfer.ID)
		if err != nil {
			return domain.FuelTransfer{}, err
		}
		if err := requireState(fuelTransferKind, existing.ID, existing.State, domain.StateDraft); err != nil {
			return domain.FuelTransfer{}, err
		}
	}
	tanks, err := s.transferTanks(ctx, &transfer)
	if err != nil {
		return domain.FuelTransfer{}, err
	}
	if err := s.checkTransferStock(ctx, &transfer, tanks); err != nil {
		return domain.FuelTransfer{}, err
	}
	transfer.TransferDate = defaultTime(transfer.TransferDate)
	transfer.State = domain.StateDraft
	transfer.Refs = domain.DocumentRefs{}

	saved, err := s.repo.SaveFuelTransfer(ctx, transfer)
	if err != nil {
		return domain.FuelTransfer{}, err
	}
	s.logAudit(ctx, tanks.from.PumpID, "fuel_transfer_save", fuelTransferKind, saved.ID,
		fmt.Sprintf("from=%s,to=%s,qty=%s", tanks.from.Name, tanks.to.Name, saved.Quantity))
	return *saved, nil
}

func (s *Service) GetFuelTransfer(ctx context.Context, id string) (domain.FuelTransfer, error) {
	transfer, err := s.repo.GetFuelTransfer(ctx, id)
	if err != nil {
		return domain.FuelTransfer{}, err
	}
	return *transfer, nil
}

func (s *Service) SubmitFuelTransfer(ctx context.Context, id string) (domain.FuelTransfer, error) {
	var result domain.FuelTransfer
	err := s.withRecordLock(ctx, fuelTransferKind, id, func(ctx context.Context) error {
		transfer, err := s.repo.GetFuelTransfer(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(fuelTransferKind, id, transfer.State, domain.StateDraft); err != nil {
			return err
		}
		tanks, err := s.transferTanks(ctx, transfer)
		if err != nil {
			return err
		}
		if err := s.checkTransferStock(ctx, transfer, tanks); err != nil {
			return err
		}
		pump, err := s.repo.GetPump(ctx, tanks.from.PumpID)
		if err != nil {
			return err
		}
		rate, err := s.ledger.ValuationRate(ctx, tanks.fuelType.ItemCode, tanks.from.Warehouse)
		if err != nil {
			return fmt.Errorf("valuation rate for %s: %w", tanks.fuelType.ItemCode, err)
		}

		ref, err := s.postDocument(ctx, domain.GroupStockEntry, ledger.Document{
			Type:        domain.DocStockTransfer,
			Company:     pump.Company,
			CostCenter:  pump.CostCenter,
			PostingDate: transfer.TransferDate,
			Reference:   transfer.ID,
			Remark:      "Fuel transfer " + tanks.from.Name + " to " + tanks.to.Name,
			Items: []ledger.Item{{
				ItemCode:        tanks.fuelType.ItemCode,
				Qty:             transfer.Quantity,
				Rate:            rate,
				Amount:          transfer.Quantity.Mul(rate),
				SourceWarehouse: tanks.from.Warehouse,
				TargetWarehouse: tanks.to.Warehouse,
				UOM:             ledger.UOMLitre,
			}},
		})
		if err != nil {
			return err
		}

		transfer.Refs = domain.DocumentRefs{ref}
		transfer.State = domain.StateSubmitted
		saved, err := s.repo.SaveFuelTransfer(ctx, *transfer)
		if err != nil {
			return err
		}
		s.logAudit(ctx, pump.ID, "fuel_transfer_submit", fuelTransferKind, id, "document="+ref.ID)
		result = *saved
		return nil
	})
	return result, err
}

func (s *Service) CancelFuelTransfer(ctx context.Context, id string) (domain.CancelResponse, error) {
	var resp domain.CancelResponse
	err := s.withRecordLock(ctx, fuelTransferKind, id, func(ctx context.Context) error {
		transfer, err := s.repo.GetFuelTransfer(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(fuelTransferKind, id, transfer.State, domain.StateSubmitted); err != nil {
			return err
		}
		if failures := s.cancelRefs(ctx, transfer.Refs); len(failures) > 0 {
			return &domain.CompensationError{Failures: failures}
		}

		transfer.State = domain.StateCancelled
		transfer.Refs = domain.DocumentRefs{}
		saved, err := s.repo.SaveFuelTransfer(ctx, *transfer)
		if err != nil {
			return err
		}
		pumpID := ""
		if tank, err := s.repo.GetTank(ctx, saved.FromTankID); err == nil {
			pumpID = tank.PumpID
		}
		s.logAudit(ctx, pumpID, "fuel_transfer_cancel", fuelTransferKind, id, "")
		resp = domain.CancelResponse{ID: saved.ID, State: saved.State}
		return nil
	})
	return resp, err
}
