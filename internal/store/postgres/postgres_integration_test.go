package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestDayClosingRefsSurviveReload(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	pump, err := s.CreatePump(ctx, domain.Pump{Name: fmt.Sprintf("Pump IT %d", stamp), Company: "Fuelbook IT", CashAccount: "Cash - IT"})
	if err != nil {
		t.Fatalf("create pump: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM day_closings WHERE pump_id = $1`, pump.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM pumps WHERE id = $1`, pump.ID)
	})

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	saved, err := s.SaveDayClosing(ctx, domain.DayClosing{
		PumpID:      pump.ID,
		ReadingDate: day,
		State:       domain.StateSubmitted,
		CashPolicy:  "net_cash",
		Totals:      domain.Totals{TotalSales: decimal.RequireFromString("660.00")},
	})
	if err != nil {
		t.Fatalf("save day closing: %v", err)
	}

	refs := []domain.DocumentRef{
		{Group: domain.GroupStockEntry, Type: domain.DocStockIssue, ID: "SI-IT-1"},
		{Group: domain.GroupPaymentEntries, Type: domain.DocPaymentEntry, ID: "PE-IT-1"},
	}
	for _, ref := range refs {
		if err := s.AppendDayClosingRef(ctx, saved.ID, ref); err != nil {
			t.Fatalf("append ref %s: %v", ref.ID, err)
		}
	}

	loaded, err := s.GetDayClosing(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get day closing: %v", err)
	}
	if len(loaded.Refs) != 2 || loaded.Refs[0].ID != "SI-IT-1" || loaded.Refs[1].ID != "PE-IT-1" {
		t.Fatalf("unexpected refs: %+v", loaded.Refs)
	}
	if !loaded.TotalSales.Equal(decimal.RequireFromString("660")) {
		t.Fatalf("expected total sales 660, got %s", loaded.TotalSales)
	}

	latest, err := s.LastSubmittedDayClosing(ctx, pump.ID, day)
	if err != nil {
		t.Fatalf("last submitted: %v", err)
	}
	if latest.ID != saved.ID {
		t.Fatalf("expected %s, got %s", saved.ID, latest.ID)
	}

	listed, err := s.ListDayClosings(ctx, pump.ID, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list day closings: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 day closing, got %d", len(listed))
	}

	if err := s.ClearDayClosingRefs(ctx, saved.ID); err != nil {
		t.Fatalf("clear refs: %v", err)
	}
	cleared, err := s.GetDayClosing(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get cleared: %v", err)
	}
	if len(cleared.Refs) != 0 {
		t.Fatalf("expected refs cleared, got %+v", cleared.Refs)
	}

	if err := s.AppendDayClosingRef(ctx, "dc-missing", refs[0]); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing closing, got %v", err)
	}
}

func TestNozzleNameUniquePerPump(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	pump, err := s.CreatePump(ctx, domain.Pump{Name: fmt.Sprintf("Pump N %d", stamp), Company: "Fuelbook IT"})
	if err != nil {
		t.Fatalf("create pump: %v", err)
	}
	fuel, err := s.CreateFuelType(ctx, domain.FuelType{Name: fmt.Sprintf("Petrol %d", stamp), ItemCode: "PETROL"})
	if err != nil {
		t.Fatalf("create fuel type: %v", err)
	}
	tank, err := s.CreateTank(ctx, domain.FuelTank{PumpID: pump.ID, Name: "Tank A", FuelTypeID: fuel.ID, Warehouse: "Tank A - IT"})
	if err != nil {
		t.Fatalf("create tank: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM nozzles WHERE pump_id = $1`, pump.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM fuel_tanks WHERE id = $1`, tank.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM fuel_types WHERE id = $1`, fuel.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM pumps WHERE id = $1`, pump.ID)
	})

	nozzle := domain.Nozzle{PumpID: pump.ID, Name: "P1", TankID: tank.ID, FuelTypeID: fuel.ID, Active: true}
	if _, err := s.CreateNozzle(ctx, nozzle); err != nil {
		t.Fatalf("create nozzle: %v", err)
	}
	if _, err := s.CreateNozzle(ctx, nozzle); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate nozzle, got %v", err)
	}
}
