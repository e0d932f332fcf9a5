package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
	"fuelbook/backend/internal/xid"
)

// Seed identifiers shared with the seeded memory ledger.
const (
	SeedPumpID          = "pump-main"
	SeedPetrolID        = "fuel-petrol"
	SeedDieselID        = "fuel-diesel"
	SeedPetrolTankID    = "tank-petrol-1"
	SeedDieselTankID    = "tank-diesel-1"
	SeedPetrolWarehouse = "Tank P1 - MAIN"
	SeedDieselWarehouse = "Tank D1 - MAIN"
)

type Store struct {
	mu            sync.RWMutex
	pumps         map[string]domain.Pump
	fuelTypes     map[string]domain.FuelType
	tanks         map[string]domain.FuelTank
	nozzles       map[string]domain.Nozzle
	dispensers    map[string]domain.Dispenser
	prices        map[string]domain.FuelPrice
	shifts        map[string]domain.Shift
	dayClosings   map[string]domain.DayClosing
	shiftReadings map[string]domain.ShiftReading
	dipReadings   map[string]domain.DipReading
	fuelTestings  map[string]domain.FuelTesting
	fuelTransfers map[string]domain.FuelTransfer
	auditLogs     []domain.AuditLog
}

func New() *Store {
	return &Store{
		pumps:         make(map[string]domain.Pump),
		fuelTypes:     make(map[string]domain.FuelType),
		tanks:         make(map[string]domain.FuelTank),
		nozzles:       make(map[string]domain.Nozzle),
		dispensers:    make(map[string]domain.Dispenser),
		prices:        make(map[string]domain.FuelPrice),
		shifts:        make(map[string]domain.Shift),
		dayClosings:   make(map[string]domain.DayClosing),
		shiftReadings: make(map[string]domain.ShiftReading),
		dipReadings:   make(map[string]domain.DipReading),
		fuelTestings:  make(map[string]domain.FuelTesting),
		fuelTransfers: make(map[string]domain.FuelTransfer),
		auditLogs:     make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store with one demo pump, two fuel types, a tank and nozzles per
// fuel type and an active price for each.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.pumps[SeedPumpID] = domain.Pump{
		ID:                SeedPumpID,
		Name:              "Main Road Station",
		Company:           "Fuelbook Demo",
		CostCenter:        "Main - FD",
		CashAccount:       "Cash - FD",
		ReceivableAccount: "Debtors - FD",
		PayableAccount:    "Creditors - FD",
		CreatedAt:         now,
	}
	s.fuelTypes[SeedPetrolID] = domain.FuelType{ID: SeedPetrolID, Name: "Petrol", ItemCode: "PETROL", CreatedAt: now}
	s.fuelTypes[SeedDieselID] = domain.FuelType{ID: SeedDieselID, Name: "Diesel", ItemCode: "DIESEL", CreatedAt: now}

	s.tanks[SeedPetrolTankID] = domain.FuelTank{
		ID: SeedPetrolTankID, PumpID: SeedPumpID, Name: "Tank P1", FuelTypeID: SeedPetrolID,
		Warehouse: SeedPetrolWarehouse, Capacity: decimal.NewFromInt(20000), CreatedAt: now,
	}
	s.tanks[SeedDieselTankID] = domain.FuelTank{
		ID: SeedDieselTankID, PumpID: SeedPumpID, Name: "Tank D1", FuelTypeID: SeedDieselID,
		Warehouse: SeedDieselWarehouse, Capacity: decimal.NewFromInt(20000), CreatedAt: now,
	}

	for _, n := range []struct {
		id, name, tank, fuel string
		opening              int64
	}{
		{"nozzle-p1", "P1", SeedPetrolTankID, SeedPetrolID, 1000},
		{"nozzle-p2", "P2", SeedPetrolTankID, SeedPetrolID, 2000},
		{"nozzle-d1", "D1", SeedDieselTankID, SeedDieselID, 500},
	} {
		s.nozzles[n.id] = domain.Nozzle{
			ID: n.id, PumpID: SeedPumpID, Name: n.name, TankID: n.tank, FuelTypeID: n.fuel,
			OpeningReading: decimal.NewFromInt(n.opening), LastReading: decimal.NewFromInt(n.opening),
			Active: true, CreatedAt: now,
		}
	}

	s.prices["price-petrol-1"] = domain.FuelPrice{
		ID: "price-petrol-1", PumpID: SeedPumpID, FuelTypeID: SeedPetrolID,
		PricePerUnit: decimal.NewFromInt(10), EffectiveFrom: since, Active: true, CreatedAt: now,
	}
	s.prices["price-diesel-1"] = domain.FuelPrice{
		ID: "price-diesel-1", PumpID: SeedPumpID, FuelTypeID: SeedDieselID,
		PricePerUnit: decimal.NewFromInt(8), EffectiveFrom: since, Active: true, CreatedAt: now,
	}
	return s
}

func (s *Store) CreatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	if strings.TrimSpace(pump.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if pump.ID == "" {
		pump.ID = xid.New("pump")
	}
	if _, exists := s.pumps[pump.ID]; exists {
		return nil, store.ErrConflict
	}
	if pump.CreatedAt.IsZero() {
		pump.CreatedAt = time.Now().UTC()
	}
	s.pumps[pump.ID] = pump
	created := pump
	return &created, nil
}

func (s *Store) GetPump(_ context.Context, id string) (*domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pump, ok := s.pumps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &pump, nil
}

func (s *Store) ListPumps(_ context.Context) ([]domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pumps := make([]domain.Pump, 0, len(s.pumps))
	for _, p := range s.pumps {
		pumps = append(pumps, p)
	}
	slices.SortFunc(pumps, func(a, b domain.Pump) int { return cmpString(a.Name, b.Name) })
	return pumps, nil
}

func (s *Store) CreateFuelType(_ context.Context, fuelType domain.FuelType) (*domain.FuelType, error) {
	if strings.TrimSpace(fuelType.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if fuelType.ID == "" {
		fuelType.ID = xid.New("fuel")
	}
	for _, existing := range s.fuelTypes {
		if existing.ID == fuelType.ID || strings.EqualFold(existing.Name, fuelType.Name) {
			return nil, store.ErrConflict
		}
	}
	if fuelType.CreatedAt.IsZero() {
		fuelType.CreatedAt = time.Now().UTC()
	}
	s.fuelTypes[fuelType.ID] = fuelType
	created := fuelType
	return &created, nil
}

func (s *Store) GetFuelType(_ context.Context, id string) (*domain.FuelType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fuelType, ok := s.fuelTypes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &fuelType, nil
}

func (s *Store) ListFuelTypes(_ context.Context) ([]domain.FuelType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FuelType, 0, len(s.fuelTypes))
	for _, ft := range s.fuelTypes {
		result = append(result, ft)
	}
	slices.SortFunc(result, func(a, b domain.FuelType) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) CreateTank(_ context.Context, tank domain.FuelTank) (*domain.FuelTank, error) {
	if tank.PumpID == "" || tank.FuelTypeID == "" || strings.TrimSpace(tank.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pumps[tank.PumpID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.fuelTypes[tank.FuelTypeID]; !ok {
		return nil, store.ErrNotFound
	}
	if tank.ID == "" {
		tank.ID = xid.New("tank")
	}
	if _, exists := s.tanks[tank.ID]; exists {
		return nil, store.ErrConflict
	}
	if tank.CreatedAt.IsZero() {
		tank.CreatedAt = time.Now().UTC()
	}
	s.tanks[tank.ID] = tank
	created := tank
	return &created, nil
}

func (s *Store) GetTank(_ context.Context, id string) (*domain.FuelTank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tank, ok := s.tanks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tank, nil
}

func (s *Store) ListTanks(_ context.Context, pumpID string) ([]domain.FuelTank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FuelTank, 0, 8)
	for _, t := range s.tanks {
		if pumpID != "" && t.PumpID != pumpID {
			continue
		}
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b domain.FuelTank) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) CreateNozzle(_ context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	if nozzle.PumpID == "" || nozzle.TankID == "" || strings.TrimSpace(nozzle.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tanks[nozzle.TankID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.nozzles {
		if existing.PumpID == nozzle.PumpID && existing.Name == nozzle.Name {
			return nil, store.ErrConflict
		}
	}
	if nozzle.ID == "" {
		nozzle.ID = xid.New("nozzle")
	}
	if nozzle.CreatedAt.IsZero() {
		nozzle.CreatedAt = time.Now().UTC()
	}
	s.nozzles[nozzle.ID] = nozzle
	created := nozzle
	return &created, nil
}

func (s *Store) GetNozzle(_ context.Context, id string) (*domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nozzle, ok := s.nozzles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &nozzle, nil
}

func (s *Store) FindNozzleByName(_ context.Context, pumpID string, name string) (*domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nozzles {
		if n.PumpID == pumpID && n.Name == name {
			found := n
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListNozzles(_ context.Context, pumpID string, activeOnly bool) ([]domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Nozzle, 0, 16)
	for _, n := range s.nozzles {
		if pumpID != "" && n.PumpID != pumpID {
			continue
		}
		if activeOnly && !n.Active {
			continue
		}
		result = append(result, n)
	}
	slices.SortFunc(result, func(a, b domain.Nozzle) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) SetNozzleLastReading(_ context.Context, id string, reading decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nozzle, ok := s.nozzles[id]
	if !ok {
		return store.ErrNotFound
	}
	nozzle.LastReading = reading
	s.nozzles[id] = nozzle
	return nil
}

func (s *Store) CreateDispenser(_ context.Context, dispenser domain.Dispenser) (*domain.Dispenser, error) {
	if dispenser.PumpID == "" || strings.TrimSpace(dispenser.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, nozzleID := range dispenser.NozzleIDs {
		if _, ok := s.nozzles[nozzleID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if dispenser.ID == "" {
		dispenser.ID = xid.New("disp")
	}
	if dispenser.CreatedAt.IsZero() {
		dispenser.CreatedAt = time.Now().UTC()
	}
	dispenser.NozzleIDs = slices.Clone(dispenser.NozzleIDs)
	s.dispensers[dispenser.ID] = dispenser
	created := dispenser
	created.NozzleIDs = slices.Clone(dispenser.NozzleIDs)
	return &created, nil
}

func (s *Store) ListDispensers(_ context.Context, pumpID string) ([]domain.Dispenser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Dispenser, 0, 8)
	for _, d := range s.dispensers {
		if pumpID != "" && d.PumpID != pumpID {
			continue
		}
		d.NozzleIDs = slices.Clone(d.NozzleIDs)
		result = append(result, d)
	}
	slices.SortFunc(result, func(a, b domain.Dispenser) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) CreateFuelPrice(_ context.Context, price domain.FuelPrice) (*domain.FuelPrice, error) {
	if price.PumpID == "" || price.FuelTypeID == "" || !price.PricePerUnit.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if price.ID == "" {
		price.ID = xid.New("price")
	}
	if price.CreatedAt.IsZero() {
		price.CreatedAt = time.Now().UTC()
	}
	s.prices[price.ID] = price
	created := price
	return &created, nil
}

func (s *Store) GetFuelPrice(_ context.Context, id string) (*domain.FuelPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &price, nil
}

func (s *Store) ListFuelPrices(_ context.Context, pumpID string, fuelTypeID string) ([]domain.FuelPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FuelPrice, 0, 16)
	for _, p := range s.prices {
		if pumpID != "" && p.PumpID != pumpID {
			continue
		}
		if fuelTypeID != "" && p.FuelTypeID != fuelTypeID {
			continue
		}
		result = append(result, p)
	}
	slices.SortFunc(result, comparePriceNewestFirst)
	return result, nil
}

func (s *Store) ActivateFuelPrice(_ context.Context, id string) (*domain.FuelPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for siblingID, sibling := range s.prices {
		if siblingID == id || !sibling.Active {
			continue
		}
		if sibling.PumpID == price.PumpID && sibling.FuelTypeID == price.FuelTypeID {
			sibling.Active = false
			s.prices[siblingID] = sibling
		}
	}
	price.Active = true
	s.prices[id] = price
	return &price, nil
}

func (s *Store) LatestFuelPrice(_ context.Context, pumpID string, fuelTypeID string, asOf time.Time, activeOnly bool) (*domain.FuelPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.FuelPrice
	for _, p := range s.prices {
		if p.PumpID != pumpID || p.FuelTypeID != fuelTypeID {
			continue
		}
		if p.EffectiveFrom.After(asOf) {
			continue
		}
		if activeOnly && !p.Active {
			continue
		}
		if best == nil || comparePriceNewestFirst(p, *best) < 0 {
			candidate := p
			best = &candidate
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if shift.PumpID == "" || strings.TrimSpace(shift.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pumps[shift.PumpID]; !ok {
		return nil, store.ErrNotFound
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.Status == "" {
		shift.Status = domain.ShiftOpen
	}
	s.shifts[shift.ID] = shift
	created := shift
	return &created, nil
}

func (s *Store) GetShift(_ context.Context, id string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.shifts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &shift, nil
}

func (s *Store) SetShiftStatus(_ context.Context, id string, status string, at time.Time) (*domain.Shift, error) {
	if status != domain.ShiftOpen && status != domain.ShiftClosed {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shifts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	shift.Status = status
	if status == domain.ShiftClosed && shift.EndTime == nil {
		end := at
		shift.EndTime = &end
	}
	s.shifts[id] = shift
	return &shift, nil
}

func (s *Store) SaveDayClosing(_ context.Context, record domain.DayClosing) (*domain.DayClosing, error) {
	if record.PumpID == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = xid.New("dc")
	}
	if existing, ok := s.dayClosings[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.dayClosings[record.ID] = cloneDayClosing(record)
	saved := cloneDayClosing(record)
	return &saved, nil
}

func (s *Store) GetDayClosing(_ context.Context, id string) (*domain.DayClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.dayClosings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneDayClosing(record)
	return &found, nil
}

func (s *Store) ListDayClosings(_ context.Context, pumpID string, from time.Time, to time.Time) ([]domain.DayClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DayClosing, 0, 32)
	for _, record := range s.dayClosings {
		if pumpID != "" && record.PumpID != pumpID {
			continue
		}
		if !from.IsZero() && record.ReadingDate.Before(from) {
			continue
		}
		if !to.IsZero() && !record.ReadingDate.Before(to) {
			continue
		}
		result = append(result, cloneDayClosing(record))
	}
	slices.SortFunc(result, func(a, b domain.DayClosing) int {
		if a.ReadingDate.Equal(b.ReadingDate) {
			return cmpString(a.ID, b.ID)
		}
		return a.ReadingDate.Compare(b.ReadingDate)
	})
	return result, nil
}

func (s *Store) LastSubmittedDayClosing(_ context.Context, pumpID string, onOrBefore time.Time) (*domain.DayClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.DayClosing
	for _, record := range s.dayClosings {
		if record.PumpID != pumpID || !record.State.Finalized() {
			continue
		}
		if record.ReadingDate.After(onOrBefore) {
			continue
		}
		if best == nil || record.ReadingDate.After(best.ReadingDate) ||
			(record.ReadingDate.Equal(best.ReadingDate) && record.CreatedAt.After(best.CreatedAt)) {
			candidate := record
			best = &candidate
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	found := cloneDayClosing(*best)
	return &found, nil
}

func (s *Store) AppendDayClosingRef(_ context.Context, id string, ref domain.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.dayClosings[id]
	if !ok {
		return store.ErrNotFound
	}
	record.Refs = append(slices.Clone(record.Refs), ref)
	s.dayClosings[id] = record
	return nil
}

func (s *Store) ClearDayClosingRefs(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.dayClosings[id]
	if !ok {
		return store.ErrNotFound
	}
	record.Refs = domain.DocumentRefs{}
	s.dayClosings[id] = record
	return nil
}

func (s *Store) SaveShiftReading(_ context.Context, reading domain.ShiftReading) (*domain.ShiftReading, error) {
	if reading.PumpID == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if reading.ID == "" {
		reading.ID = xid.New("sr")
	}
	stampCreated(&reading.CreatedAt, &reading.UpdatedAt, s.shiftReadings[reading.ID].CreatedAt)
	reading.NozzleReadings = slices.Clone(reading.NozzleReadings)
	reading.Refs = slices.Clone(reading.Refs)
	s.shiftReadings[reading.ID] = reading
	saved := reading
	saved.NozzleReadings = slices.Clone(reading.NozzleReadings)
	saved.Refs = slices.Clone(reading.Refs)
	return &saved, nil
}

func (s *Store) GetShiftReading(_ context.Context, id string) (*domain.ShiftReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reading, ok := s.shiftReadings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	reading.NozzleReadings = slices.Clone(reading.NozzleReadings)
	reading.Refs = slices.Clone(reading.Refs)
	return &reading, nil
}

func (s *Store) SaveDipReading(_ context.Context, reading domain.DipReading) (*domain.DipReading, error) {
	if reading.TankID == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if reading.ID == "" {
		reading.ID = xid.New("dip")
	}
	stampCreated(&reading.CreatedAt, &reading.UpdatedAt, s.dipReadings[reading.ID].CreatedAt)
	reading.Refs = slices.Clone(reading.Refs)
	s.dipReadings[reading.ID] = reading
	saved := reading
	saved.Refs = slices.Clone(reading.Refs)
	return &saved, nil
}

func (s *Store) GetDipReading(_ context.Context, id string) (*domain.DipReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reading, ok := s.dipReadings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	reading.Refs = slices.Clone(reading.Refs)
	return &reading, nil
}

func (s *Store) SaveFuelTesting(_ context.Context, testing domain.FuelTesting) (*domain.FuelTesting, error) {
	if testing.PumpID == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if testing.ID == "" {
		testing.ID = xid.New("ft")
	}
	stampCreated(&testing.CreatedAt, &testing.UpdatedAt, s.fuelTestings[testing.ID].CreatedAt)
	testing.Lines = slices.Clone(testing.Lines)
	testing.Refs = slices.Clone(testing.Refs)
	s.fuelTestings[testing.ID] = testing
	saved := testing
	saved.Lines = slices.Clone(testing.Lines)
	saved.Refs = slices.Clone(testing.Refs)
	return &saved, nil
}

func (s *Store) GetFuelTesting(_ context.Context, id string) (*domain.FuelTesting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	testing, ok := s.fuelTestings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	testing.Lines = slices.Clone(testing.Lines)
	testing.Refs = slices.Clone(testing.Refs)
	return &testing, nil
}

func (s *Store) SaveFuelTransfer(_ context.Context, transfer domain.FuelTransfer) (*domain.FuelTransfer, error) {
	if transfer.FromTankID == "" || transfer.ToTankID == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if transfer.ID == "" {
		transfer.ID = xid.New("xfer")
	}
	stampCreated(&transfer.CreatedAt, &transfer.UpdatedAt, s.fuelTransfers[transfer.ID].CreatedAt)
	transfer.Refs = slices.Clone(transfer.Refs)
	s.fuelTransfers[transfer.ID] = transfer
	saved := transfer
	saved.Refs = slices.Clone(transfer.Refs)
	return &saved, nil
}

func (s *Store) GetFuelTransfer(_ context.Context, id string) (*domain.FuelTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, ok := s.fuelTransfers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	transfer.Refs = slices.Clone(transfer.Refs)
	return &transfer, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func stampCreated(createdAt *time.Time, updatedAt *time.Time, existing time.Time) {
	now := time.Now().UTC()
	if !existing.IsZero() {
		*createdAt = existing
	} else if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func cloneDayClosing(record domain.DayClosing) domain.DayClosing {
	record.NozzleReadings = slices.Clone(record.NozzleReadings)
	record.CreditSales = slices.Clone(record.CreditSales)
	record.CardSales = slices.Clone(record.CardSales)
	record.Expenses = slices.Clone(record.Expenses)
	record.SupplierPayments = slices.Clone(record.SupplierPayments)
	record.CreditCollections = slices.Clone(record.CreditCollections)
	record.Refs = slices.Clone(record.Refs)
	return record
}

func comparePriceNewestFirst(a, b domain.FuelPrice) int {
	if a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return b.CreatedAt.Compare(a.CreatedAt)
	}
	return b.EffectiveFrom.Compare(a.EffectiveFrom)
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
