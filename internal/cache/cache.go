// Package cache keeps computed cash reconciliation reports for a short time.
package cache

import (
	"context"
	"time"

	"fuelbook/backend/internal/domain"
)

// ReportCache stores reports per pump. Invalidate drops every report of a pump.
type ReportCache interface {
	Get(ctx context.Context, pumpID string, key string) (*domain.CashReconciliationReport, bool, error)
	Set(ctx context.Context, pumpID string, key string, value *domain.CashReconciliationReport, ttl time.Duration) error
	Invalidate(ctx context.Context, pumpID string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ string) (*domain.CashReconciliationReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ string, _ *domain.CashReconciliationReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
