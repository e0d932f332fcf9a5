package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
)

// CreateFuelPrice stores a new price. When activate is set the price becomes the only
// active one for its pump and fuel type.
func (s *Service) CreateFuelPrice(ctx context.Context, price domain.FuelPrice, activate bool) (domain.FuelPrice, error) {
	if price.PumpID == "" || price.FuelTypeID == "" || !price.PricePerUnit.IsPositive() {
		return domain.FuelPrice{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetPump(ctx, price.PumpID); err != nil {
		return domain.FuelPrice{}, err
	}
	if _, err := s.repo.GetFuelType(ctx, price.FuelTypeID); err != nil {
		return domain.FuelPrice{}, err
	}
	price.EffectiveFrom = defaultTime(price.EffectiveFrom)
	price.Active = false

	created, err := s.repo.CreateFuelPrice(ctx, price)
	if err != nil {
		return domain.FuelPrice{}, err
	}
	if activate {
		if created, err = s.prices.Activate(ctx, created.ID); err != nil {
			return domain.FuelPrice{}, err
		}
	}
	s.logAudit(ctx, created.PumpID, "fuel_price_create", "fuel_price", created.ID,
		fmt.Sprintf("fuel=%s,price=%s,active=%t", created.FuelTypeID, created.PricePerUnit, created.Active))
	return *created, nil
}

func (s *Service) ActivateFuelPrice(ctx context.Context, id string) (domain.FuelPrice, error) {
	price, err := s.prices.Activate(ctx, id)
	if err != nil {
		return domain.FuelPrice{}, err
	}
	s.logAudit(ctx, price.PumpID, "fuel_price_activate", "fuel_price", price.ID, "fuel="+price.FuelTypeID)
	return *price, nil
}

func (s *Service) ListFuelPrices(ctx context.Context, pumpID string, fuelTypeID string) ([]domain.FuelPrice, error) {
	return s.repo.ListFuelPrices(ctx, pumpID, fuelTypeID)
}

// CurrentRate returns the rate of fuelTypeID at pumpID effective at asOf, or zero when
// no price exists.
func (s *Service) CurrentRate(ctx context.Context, pumpID string, fuelTypeID string, asOf time.Time) (decimal.Decimal, error) {
	if pumpID == "" || fuelTypeID == "" {
		return decimal.Zero, store.ErrInvalidInput
	}
	return s.prices.Resolve(ctx, fuelTypeID, pumpID, defaultTime(asOf))
}
