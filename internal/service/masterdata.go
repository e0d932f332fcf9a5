package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
)

func (s *Service) CreatePump(ctx context.Context, pump domain.Pump) (domain.Pump, error) {
	pump.Name = strings.TrimSpace(pump.Name)
	pump.Company = strings.TrimSpace(pump.Company)
	if pump.Name == "" || pump.Company == "" {
		return domain.Pump{}, store.ErrInvalidInput
	}
	pump.CostCenter = strings.TrimSpace(pump.CostCenter)
	pump.CashAccount = strings.TrimSpace(pump.CashAccount)
	pump.ReceivableAccount = strings.TrimSpace(pump.ReceivableAccount)
	pump.PayableAccount = strings.TrimSpace(pump.PayableAccount)

	created, err := s.repo.CreatePump(ctx, pump)
	if err != nil {
		return domain.Pump{}, err
	}
	s.logAudit(ctx, created.ID, "pump_create", "pump", created.ID, fmt.Sprintf("name=%s,company=%s", created.Name, created.Company))
	return *created, nil
}

func (s *Service) ListPumps(ctx context.Context) ([]domain.Pump, error) {
	return s.repo.ListPumps(ctx)
}

// CreateFuelType registers the fuel and makes sure the ledger knows its stock item.
func (s *Service) CreateFuelType(ctx context.Context, fuelType domain.FuelType) (domain.FuelType, error) {
	fuelType.Name = strings.TrimSpace(fuelType.Name)
	if fuelType.Name == "" {
		return domain.FuelType{}, store.ErrInvalidInput
	}
	fuelType.ItemCode = strings.ToUpper(defaultString(fuelType.ItemCode, strings.ReplaceAll(fuelType.Name, " ", "-")))

	if err := s.ledger.EnsureItem(ctx, fuelType.ItemCode, fuelType.Name); err != nil {
		return domain.FuelType{}, fmt.Errorf("ensure stock item %s: %w", fuelType.ItemCode, err)
	}
	created, err := s.repo.CreateFuelType(ctx, fuelType)
	if err != nil {
		return domain.FuelType{}, err
	}
	s.logAudit(ctx, "", "fuel_type_create", "fuel_type", created.ID, "item_code="+created.ItemCode)
	return *created, nil
}

func (s *Service) ListFuelTypes(ctx context.Context) ([]domain.FuelType, error) {
	return s.repo.ListFuelTypes(ctx)
}

func (s *Service) CreateTank(ctx context.Context, tank domain.FuelTank) (domain.FuelTank, error) {
	tank.Name = strings.TrimSpace(tank.Name)
	tank.Warehouse = strings.TrimSpace(tank.Warehouse)
	if tank.PumpID == "" || tank.FuelTypeID == "" || tank.Name == "" || tank.Capacity.IsNegative() {
		return domain.FuelTank{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetFuelType(ctx, tank.FuelTypeID); err != nil {
		if isNotFound(err) {
			return domain.FuelTank{}, domain.NewValidationError("fuel_type", "Fuel Type %s does not exist.", tank.FuelTypeID)
		}
		return domain.FuelTank{}, err
	}

	created, err := s.repo.CreateTank(ctx, tank)
	if err != nil {
		return domain.FuelTank{}, err
	}
	s.logAudit(ctx, created.PumpID, "tank_create", "fuel_tank", created.ID, fmt.Sprintf("name=%s,warehouse=%s", created.Name, created.Warehouse))
	return *created, nil
}

func (s *Service) GetTank(ctx context.Context, id string) (domain.FuelTank, error) {
	tank, err := s.repo.GetTank(ctx, id)
	if err != nil {
		return domain.FuelTank{}, err
	}
	if err := s.refreshTankStock(ctx, tank); err != nil {
		return domain.FuelTank{}, err
	}
	return *tank, nil
}

func (s *Service) ListTanks(ctx context.Context, pumpID string) ([]domain.FuelTank, error) {
	tanks, err := s.repo.ListTanks(ctx, pumpID)
	if err != nil {
		return nil, err
	}
	for i := range tanks {
		if err := s.refreshTankStock(ctx, &tanks[i]); err != nil {
			return nil, err
		}
	}
	return tanks, nil
}

func (s *Service) refreshTankStock(ctx context.Context, tank *domain.FuelTank) error {
	if tank.Warehouse == "" {
		return nil
	}
	fuelType, err := s.repo.GetFuelType(ctx, tank.FuelTypeID)
	if err != nil {
		return err
	}
	qty, err := s.ledger.StockBalance(ctx, fuelType.ItemCode, tank.Warehouse)
	if err != nil {
		return fmt.Errorf("stock of tank %s: %w", tank.Name, err)
	}
	tank.CurrentStock = qty
	return nil
}

func (s *Service) CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (domain.Nozzle, error) {
	nozzle.Name = strings.TrimSpace(nozzle.Name)
	if nozzle.PumpID == "" || nozzle.TankID == "" || nozzle.Name == "" || nozzle.OpeningReading.IsNegative() {
		return domain.Nozzle{}, store.ErrInvalidInput
	}
	pump, err := s.repo.GetPump(ctx, nozzle.PumpID)
	if err != nil {
		return domain.Nozzle{}, err
	}
	tank, err := s.repo.GetTank(ctx, nozzle.TankID)
	if err != nil {
		return domain.Nozzle{}, err
	}
	if err := s.checkNozzle(ctx, pump, tank, &nozzle); err != nil {
		return domain.Nozzle{}, err
	}

	created, err := s.repo.CreateNozzle(ctx, nozzle)
	if err != nil {
		return domain.Nozzle{}, err
	}
	s.logAudit(ctx, created.PumpID, "nozzle_create", "nozzle", created.ID, fmt.Sprintf("name=%s,tank=%s,opening=%s", created.Name, created.TankID, created.OpeningReading))
	return *created, nil
}

// checkNozzle applies the tank and name rules shared by single and bulk creation and
// fills the inherited fields.
func (s *Service) checkNozzle(ctx context.Context, pump *domain.Pump, tank *domain.FuelTank, nozzle *domain.Nozzle) error {
	if tank.PumpID != pump.ID {
		owner := tank.PumpID
		if other, err := s.repo.GetPump(ctx, tank.PumpID); err == nil {
			owner = other.Name
		}
		return domain.NewValidationError("nozzle_tank",
			"Fuel Tank '%s' belongs to petrol pump '%s', but Nozzle is linked to '%s'. They must match.",
			tank.Name, owner, pump.Name)
	}
	if _, err := s.repo.FindNozzleByName(ctx, pump.ID, nozzle.Name); err == nil {
		return domain.NewValidationError("nozzle_name", "Nozzle '%s' already exists for petrol pump '%s'.", nozzle.Name, pump.Name)
	} else if !isNotFound(err) {
		return err
	}

	nozzle.FuelTypeID = tank.FuelTypeID
	if nozzle.LastReading.IsZero() {
		nozzle.LastReading = nozzle.OpeningReading
	}
	return nil
}

func (s *Service) ListNozzles(ctx context.Context, pumpID string) ([]domain.Nozzle, error) {
	return s.repo.ListNozzles(ctx, pumpID, false)
}

// BulkCreateNozzles rejects the request when a name repeats, then creates row by row and
// skips rows that cannot be created.
func (s *Service) BulkCreateNozzles(ctx context.Context, req domain.BulkNozzleRequest) (domain.BulkNozzleResponse, error) {
	if req.PumpID == "" || len(req.Rows) == 0 {
		return domain.BulkNozzleResponse{}, store.ErrInvalidInput
	}
	pump, err := s.repo.GetPump(ctx, req.PumpID)
	if err != nil {
		return domain.BulkNozzleResponse{}, err
	}

	seen := make(map[string]bool, len(req.Rows))
	for _, row := range req.Rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		if seen[name] {
			return domain.BulkNozzleResponse{}, domain.NewValidationError("bulk_rows", "Nozzle name '%s' appears more than once.", name)
		}
		seen[name] = true
	}

	resp := domain.BulkNozzleResponse{Created: []string{}, Skipped: []domain.SkippedNozzle{}}
	for _, row := range req.Rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			resp.Skipped = append(resp.Skipped, domain.SkippedNozzle{Name: name, Reason: "name is required"})
			continue
		}
		if row.TankID == "" {
			resp.Skipped = append(resp.Skipped, domain.SkippedNozzle{Name: name, Reason: "tank is required"})
			continue
		}
		tank, err := s.repo.GetTank(ctx, row.TankID)
		if isNotFound(err) {
			resp.Skipped = append(resp.Skipped, domain.SkippedNozzle{Name: name, Reason: "tank " + row.TankID + " not found"})
			continue
		}
		if err != nil {
			return domain.BulkNozzleResponse{}, err
		}

		nozzle := domain.Nozzle{
			PumpID:         pump.ID,
			Name:           name,
			TankID:         tank.ID,
			OpeningReading: row.OpeningReading,
			Active:         row.Active == nil || *row.Active,
		}
		if err := s.checkNozzle(ctx, pump, tank, &nozzle); err != nil {
			var validation *domain.ValidationError
			if errors.As(err, &validation) {
				resp.Skipped = append(resp.Skipped, domain.SkippedNozzle{Name: name, Reason: validation.Message})
				continue
			}
			return domain.BulkNozzleResponse{}, err
		}
		created, err := s.repo.CreateNozzle(ctx, nozzle)
		if errors.Is(err, store.ErrConflict) {
			resp.Skipped = append(resp.Skipped, domain.SkippedNozzle{Name: name, Reason: "already exists"})
			continue
		}
		if err != nil {
			return domain.BulkNozzleResponse{}, err
		}
		resp.Created = append(resp.Created, created.ID)
	}

	s.logAudit(ctx, pump.ID, "nozzle_bulk_create", "nozzle", pump.ID, fmt.Sprintf("created=%d,skipped=%d", len(resp.Created), len(resp.Skipped)))
	return resp, nil
}

func (s *Service) CreateDispenser(ctx context.Context, dispenser domain.Dispenser) (domain.Dispenser, error) {
	dispenser.Name = strings.TrimSpace(dispenser.Name)
	if dispenser.PumpID == "" || dispenser.Name == "" {
		return domain.Dispenser{}, store.ErrInvalidInput
	}
	for _, nozzleID := range dispenser.NozzleIDs {
		nozzle, err := s.repo.GetNozzle(ctx, nozzleID)
		if err != nil {
			return domain.Dispenser{}, fmt.Errorf("nozzle %s: %w", nozzleID, err)
		}
		if nozzle.PumpID != dispenser.PumpID {
			return domain.Dispenser{}, domain.NewValidationError("dispenser_nozzle",
				"Nozzle %s belongs to another petrol pump.", nozzle.Name)
		}
	}

	created, err := s.repo.CreateDispenser(ctx, dispenser)
	if err != nil {
		return domain.Dispenser{}, err
	}
	s.logAudit(ctx, created.PumpID, "dispenser_create", "dispenser", created.ID, fmt.Sprintf("name=%s,nozzles=%d", created.Name, len(created.NozzleIDs)))
	return *created, nil
}

func (s *Service) ListDispensers(ctx context.Context, pumpID string) ([]domain.Dispenser, error) {
	return s.repo.ListDispensers(ctx, pumpID)
}

func (s *Service) OpenShift(ctx context.Context, shift domain.Shift) (domain.Shift, error) {
	shift.Name = strings.TrimSpace(shift.Name)
	if shift.PumpID == "" || shift.Name == "" {
		return domain.Shift{}, store.ErrInvalidInput
	}
	shift.Status = domain.ShiftOpen
	shift.StartTime = defaultTime(shift.StartTime)
	shift.EndTime = nil

	created, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		return domain.Shift{}, err
	}
	s.logAudit(ctx, created.PumpID, "shift_open", "shift", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) CloseShift(ctx context.Context, id string) (domain.Shift, error) {
	shift, err := s.repo.SetShiftStatus(ctx, id, domain.ShiftClosed, time.Now().UTC())
	if err != nil {
		return domain.Shift{}, err
	}
	s.logAudit(ctx, shift.PumpID, "shift_close", "shift", shift.ID, "")
	return *shift, nil
}
