// Package stock answers on-hand questions for a pump by pooling ledger balances over
// the pump's tanks.
package stock

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/store"
)

type TankStore interface {
	ListTanks(ctx context.Context, pumpID string) ([]domain.FuelTank, error)
	GetFuelType(ctx context.Context, id string) (*domain.FuelType, error)
}

type Balances interface {
	StockBalance(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error)
	ValuationRate(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error)
}

// Issue is a quantity of one fuel drawn from a pump.
type Issue struct {
	FuelTypeID string
	Qty        decimal.Decimal
}

type Checker struct {
	tanks    TankStore
	balances Balances
}

func NewChecker(tanks TankStore, balances Balances) *Checker {
	return &Checker{tanks: tanks, balances: balances}
}

// Available sums the on-hand quantity of fuelTypeID across every tank of the pump.
func (c *Checker) Available(ctx context.Context, pumpID string, fuelTypeID string) (decimal.Decimal, error) {
	fuelType, err := c.tanks.GetFuelType(ctx, fuelTypeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fuel type %s: %w", fuelTypeID, err)
	}
	tanks, err := c.tanks.ListTanks(ctx, pumpID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	seen := make(map[string]bool, len(tanks))
	for _, tank := range tanks {
		if tank.FuelTypeID != fuelTypeID || tank.Warehouse == "" || seen[tank.Warehouse] {
			continue
		}
		seen[tank.Warehouse] = true
		qty, err := c.balances.StockBalance(ctx, fuelType.ItemCode, tank.Warehouse)
		if err != nil {
			return decimal.Zero, fmt.Errorf("stock balance for %s in %s: %w", fuelType.ItemCode, tank.Warehouse, err)
		}
		total = total.Add(qty)
	}
	return total, nil
}

// CheckSufficient fails unless issuing requested leaves a strictly positive remainder.
func (c *Checker) CheckSufficient(ctx context.Context, pumpID string, fuelTypeID string, requested decimal.Decimal) error {
	available, err := c.Available(ctx, pumpID, fuelTypeID)
	if err != nil {
		return err
	}
	remaining := available.Sub(requested)
	if !remaining.IsPositive() {
		name := fuelTypeID
		if fuelType, err := c.tanks.GetFuelType(ctx, fuelTypeID); err == nil {
			name = fuelType.Name
		}
		return domain.NewStockError("Insufficient stock for Fuel Type %s. Available: %s, Issue: %s. This would leave %s (<= 0).",
			name, available.StringFixed(2), requested.StringFixed(2), remaining.StringFixed(2))
	}
	return nil
}

// PrimaryTank returns the first tank by name of the fuel type that has a warehouse.
func (c *Checker) PrimaryTank(ctx context.Context, pumpID string, fuelTypeID string) (*domain.FuelTank, error) {
	tanks, err := c.tanks.ListTanks(ctx, pumpID)
	if err != nil {
		return nil, err
	}
	for _, tank := range tanks {
		if tank.FuelTypeID == fuelTypeID && tank.Warehouse != "" {
			found := tank
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// IssueItems builds one stock issue line per fuel, drawn from the pump's primary tank
// at the ledger's valuation rate.
func (c *Checker) IssueItems(ctx context.Context, pump *domain.Pump, issues []Issue) ([]ledger.Item, error) {
	items := make([]ledger.Item, 0, len(issues))
	for _, issue := range issues {
		fuelType, err := c.tanks.GetFuelType(ctx, issue.FuelTypeID)
		if err != nil {
			return nil, fmt.Errorf("fuel type %s: %w", issue.FuelTypeID, err)
		}
		tank, err := c.PrimaryTank(ctx, pump.ID, issue.FuelTypeID)
		if err != nil {
			return nil, domain.NewValidationError("tank", "No Fuel Tank with warehouse found for %s at %s.", fuelType.Name, pump.Name)
		}
		rate, err := c.balances.ValuationRate(ctx, fuelType.ItemCode, tank.Warehouse)
		if err != nil {
			return nil, fmt.Errorf("valuation rate for %s: %w", fuelType.ItemCode, err)
		}
		items = append(items, ledger.Item{
			ItemCode:        fuelType.ItemCode,
			Qty:             issue.Qty,
			Rate:            rate,
			Amount:          issue.Qty.Mul(rate),
			SourceWarehouse: tank.Warehouse,
			UOM:             ledger.UOMLitre,
		})
	}
	return items, nil
}

// Tanks lists every tank of the pump with its current ledger balance.
func (c *Checker) Tanks(ctx context.Context, pumpID string) ([]domain.TankStock, error) {
	tanks, err := c.tanks.ListTanks(ctx, pumpID)
	if err != nil {
		return nil, err
	}
	items := make(map[string]string, 4)
	rows := make([]domain.TankStock, 0, len(tanks))
	for _, tank := range tanks {
		row := domain.TankStock{
			TankID:     tank.ID,
			TankName:   tank.Name,
			FuelTypeID: tank.FuelTypeID,
			Warehouse:  tank.Warehouse,
			Qty:        decimal.Zero,
		}
		if tank.Warehouse != "" {
			itemCode, ok := items[tank.FuelTypeID]
			if !ok {
				fuelType, err := c.tanks.GetFuelType(ctx, tank.FuelTypeID)
				if err != nil {
					return nil, fmt.Errorf("fuel type %s: %w", tank.FuelTypeID, err)
				}
				itemCode = fuelType.ItemCode
				items[tank.FuelTypeID] = itemCode
			}
			qty, err := c.balances.StockBalance(ctx, itemCode, tank.Warehouse)
			if err != nil {
				return nil, err
			}
			row.Qty = qty
		}
		rows = append(rows, row)
	}
	return rows, nil
}
