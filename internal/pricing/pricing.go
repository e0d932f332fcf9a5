// Package pricing resolves the selling price of a fuel at a point in time.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
)

type PriceStore interface {
	LatestFuelPrice(ctx context.Context, pumpID string, fuelTypeID string, asOf time.Time, activeOnly bool) (*domain.FuelPrice, error)
	ActivateFuelPrice(ctx context.Context, id string) (*domain.FuelPrice, error)
}

type Resolver struct {
	prices        PriceStore
	requireActive bool
}

func NewResolver(prices PriceStore, requireActive bool) *Resolver {
	return &Resolver{prices: prices, requireActive: requireActive}
}

// Resolve returns the most recent price effective at or before asOf. A missing price
// resolves to zero; callers treat zero as "no price", never as free fuel.
func (r *Resolver) Resolve(ctx context.Context, fuelTypeID string, pumpID string, asOf time.Time) (decimal.Decimal, error) {
	if fuelTypeID == "" || pumpID == "" {
		return decimal.Zero, nil
	}
	price, err := r.prices.LatestFuelPrice(ctx, pumpID, fuelTypeID, asOf, r.requireActive)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve price for %s: %w", fuelTypeID, err)
	}
	return price.PricePerUnit, nil
}

// Activate makes id the single active price for its pump and fuel type.
func (r *Resolver) Activate(ctx context.Context, id string) (*domain.FuelPrice, error) {
	price, err := r.prices.ActivateFuelPrice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("activate price %s: %w", id, err)
	}
	return price, nil
}
