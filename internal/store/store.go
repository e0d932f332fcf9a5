package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)
	GetPump(ctx context.Context, id string) (*domain.Pump, error)
	ListPumps(ctx context.Context) ([]domain.Pump, error)

	CreateFuelType(ctx context.Context, fuelType domain.FuelType) (*domain.FuelType, error)
	GetFuelType(ctx context.Context, id string) (*domain.FuelType, error)
	ListFuelTypes(ctx context.Context) ([]domain.FuelType, error)

	CreateTank(ctx context.Context, tank domain.FuelTank) (*domain.FuelTank, error)
	GetTank(ctx context.Context, id string) (*domain.FuelTank, error)
	ListTanks(ctx context.Context, pumpID string) ([]domain.FuelTank, error)

	CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error)
	GetNozzle(ctx context.Context, id string) (*domain.Nozzle, error)
	FindNozzleByName(ctx context.Context, pumpID string, name string) (*domain.Nozzle, error)
	ListNozzles(ctx context.Context, pumpID string, activeOnly bool) ([]domain.Nozzle, error)
	SetNozzleLastReading(ctx context.Context, id string, reading decimal.Decimal) error

	CreateDispenser(ctx context.Context, dispenser domain.Dispenser) (*domain.Dispenser, error)
	ListDispensers(ctx context.Context, pumpID string) ([]domain.Dispenser, error)

	CreateFuelPrice(ctx context.Context, price domain.FuelPrice) (*domain.FuelPrice, error)
	GetFuelPrice(ctx context.Context, id string) (*domain.FuelPrice, error)
	ListFuelPrices(ctx context.Context, pumpID string, fuelTypeID string) ([]domain.FuelPrice, error)
	// ActivateFuelPrice deactivates sibling prices for the same pump and fuel type and
	// activates id within a single transaction.
	ActivateFuelPrice(ctx context.Context, id string) (*domain.FuelPrice, error)
	// LatestFuelPrice returns the price with the greatest effective_from <= asOf.
	LatestFuelPrice(ctx context.Context, pumpID string, fuelTypeID string, asOf time.Time, activeOnly bool) (*domain.FuelPrice, error)

	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetShift(ctx context.Context, id string) (*domain.Shift, error)
	SetShiftStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Shift, error)

	SaveDayClosing(ctx context.Context, record domain.DayClosing) (*domain.DayClosing, error)
	GetDayClosing(ctx context.Context, id string) (*domain.DayClosing, error)
	ListDayClosings(ctx context.Context, pumpID string, from time.Time, to time.Time) ([]domain.DayClosing, error)
	// LastSubmittedDayClosing returns the latest finalized closing for the pump on or before the date.
	LastSubmittedDayClosing(ctx context.Context, pumpID string, onOrBefore time.Time) (*domain.DayClosing, error)
	AppendDayClosingRef(ctx context.Context, id string, ref domain.DocumentRef) error
	ClearDayClosingRefs(ctx context.Context, id string) error

	SaveShiftReading(ctx context.Context, reading domain.ShiftReading) (*domain.ShiftReading, error)
	GetShiftReading(ctx context.Context, id string) (*domain.ShiftReading, error)

	SaveDipReading(ctx context.Context, reading domain.DipReading) (*domain.DipReading, error)
	GetDipReading(ctx context.Context, id string) (*domain.DipReading, error)

	SaveFuelTesting(ctx context.Context, testing domain.FuelTesting) (*domain.FuelTesting, error)
	GetFuelTesting(ctx context.Context, id string) (*domain.FuelTesting, error)

	SaveFuelTransfer(ctx context.Context, transfer domain.FuelTransfer) (*domain.FuelTransfer, error)
	GetFuelTransfer(ctx context.Context, id string) (*domain.FuelTransfer, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
