package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	ledgermem "fuelbook/backend/internal/ledger/memory"
	"fuelbook/backend/internal/lock"
	"fuelbook/backend/internal/logging"
	"fuelbook/backend/internal/reconcile"
	"fuelbook/backend/internal/service"
	"fuelbook/backend/internal/store/memory"
)

type testServer struct {
	handler http.Handler
	ledger  *ledgermem.Ledger
	locker  *lock.Local
}

// newTestAPI wires the real service over the seeded memory store and ledger so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) *testServer {
	t.Helper()

	repo := memory.NewSeeded()
	led := ledgermem.New()
	led.SetStock("PETROL", memory.SeedPetrolWarehouse, decimal.NewFromInt(10000), decimal.NewFromInt(7))
	led.SetStock("DIESEL", memory.SeedDieselWarehouse, decimal.NewFromInt(10000), decimal.NewFromInt(6))
	locker := lock.NewLocal()
	svc := service.New(repo, led, service.Options{
		Policy:            reconcile.NetCash{},
		VarianceThreshold: decimal.NewFromInt(500),
		CashCustomer:      "Cash Customer",
		Locker:            locker,
		Logger:            logging.Discard(),
	})

	api := New(svc, "http://127.0.0.1:3000", logging.Discard())
	return &testServer{handler: api.Handler(), ledger: led, locker: locker}
}

func (s *testServer) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func closingPayload() map[string]any {
	return map[string]any{
		"pump_id":      memory.SeedPumpID,
		"reading_date": "2024-06-01T21:00:00Z",
		"nozzle_readings": []map[string]any{
			{"nozzle_id": "nozzle-p1", "previous_reading": "1000", "current_reading": "1050"},
			{"nozzle_id": "nozzle-d1", "previous_reading": "500", "current_reading": "520"},
		},
	}
}

func saveClosing(t *testing.T, s *testServer, payload map[string]any) domain.DayClosing {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/day-closings", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var record domain.DayClosing
	decodeBody(t, rec, &record)
	return record
}

func TestHandleHealth(t *testing.T) {
	s := newTestAPI(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestDayClosingLifecycleOverHTTP(t *testing.T) {
	s := newTestAPI(t)
	saved := saveClosing(t, s, closingPayload())

	if saved.State != domain.StateDraft {
		t.Fatalf("expected draft, got %s", saved.State)
	}
	if !saved.TotalSales.Equal(decimal.NewFromInt(660)) {
		t.Fatalf("expected total sales 660, got %s", saved.TotalSales)
	}

	rec := s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected submit 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var submitted domain.DayClosing
	decodeBody(t, rec, &submitted)
	if submitted.State != domain.StateApproved {
		t.Fatalf("expected approved, got %s", submitted.State)
	}
	if len(submitted.Refs) == 0 {
		t.Fatalf("expected document refs after submit")
	}

	rec = s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected second submit 409, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected cancel 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var cancelled domain.CancelResponse
	decodeBody(t, rec, &cancelled)
	if cancelled.State != domain.StateCancelled || len(cancelled.Warnings) != 0 {
		t.Fatalf("unexpected cancel response: %+v", cancelled)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/amend", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected amend 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var amended domain.DayClosing
	decodeBody(t, rec, &amended)
	if amended.AmendedFrom != saved.ID || amended.State != domain.StateDraft {
		t.Fatalf("unexpected amendment: %+v", amended)
	}
}

func TestUpdateDayClosingDraftOverHTTP(t *testing.T) {
	s := newTestAPI(t)
	saved := saveClosing(t, s, closingPayload())

	payload := closingPayload()
	payload["cash_amount"] = "600"
	rec := s.do(t, http.MethodPut, "/api/v1/day-closings/"+saved.ID, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var updated domain.DayClosing
	decodeBody(t, rec, &updated)
	if updated.ID != saved.ID {
		t.Fatalf("expected same id, got %s", updated.ID)
	}
}

func TestSaveDayClosingRejectsMissingPump(t *testing.T) {
	s := newTestAPI(t)
	payload := closingPayload()
	delete(payload, "pump_id")

	rec := s.do(t, http.MethodPost, "/api/v1/day-closings", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	fields, ok := body["fields"].(map[string]any)
	if !ok || fields["dayClosingRequest.PumpID"] != "required" {
		t.Fatalf("expected pump field error, got %v", body)
	}
}

func TestSaveDayClosingRejectsUnknownField(t *testing.T) {
	s := newTestAPI(t)
	payload := closingPayload()
	payload["total_sales"] = "1"

	rec := s.do(t, http.MethodPost, "/api/v1/day-closings", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetDayClosingNotFound(t *testing.T) {
	s := newTestAPI(t)
	rec := s.do(t, http.MethodGet, "/api/v1/day-closings/dc-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitInsufficientStockReturns422(t *testing.T) {
	s := newTestAPI(t)
	s.ledger.SetStock("PETROL", memory.SeedPetrolWarehouse, decimal.NewFromInt(10), decimal.NewFromInt(7))
	saved := saveClosing(t, s, closingPayload())

	rec := s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["rule"] != "stock" {
		t.Fatalf("expected stock rule, got %v", body["rule"])
	}
}

func TestSubmitLedgerFailureReturnsTotals(t *testing.T) {
	s := newTestAPI(t)
	s.ledger.FailCreate(domain.DocJournalEntry, errors.New("period closed"))
	payload := closingPayload()
	payload["expenses"] = []map[string]any{{"expense_account": "Generator Fuel - FD", "amount": "25"}}
	saved := saveClosing(t, s, payload)

	rec := s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Error   string              `json:"error"`
		Step    string              `json:"step"`
		Totals  domain.Totals       `json:"totals"`
		Created domain.DocumentRefs `json:"created"`
	}
	decodeBody(t, rec, &body)
	if !strings.Contains(body.Error, "Total Sales: 660.00") {
		t.Fatalf("expected totals in message, got %q", body.Error)
	}
	if !body.Totals.TotalSales.Equal(decimal.NewFromInt(660)) {
		t.Fatalf("expected totals block, got %+v", body.Totals)
	}
	if len(body.Created) == 0 {
		t.Fatalf("expected created refs in response")
	}
}

func TestSubmitWhileLockedReturns409(t *testing.T) {
	s := newTestAPI(t)
	saved := saveClosing(t, s, closingPayload())

	lease, err := s.locker.Obtain(context.Background(), "day_closing:"+saved.ID, time.Minute)
	if err != nil {
		t.Fatalf("obtain lock: %v", err)
	}
	defer lease.Release(context.Background())

	rec := s.do(t, http.MethodPost, "/api/v1/day-closings/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestOperatorHeaderRecordedInAuditLog(t *testing.T) {
	s := newTestAPI(t)
	payload, _ := json.Marshal(closingPayload())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/day-closings", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(operatorHeader, "rina")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/audit-logs?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		AuditLogs []domain.AuditLog `json:"audit_logs"`
	}
	decodeBody(t, rec, &body)
	found := false
	for _, entry := range body.AuditLogs {
		if entry.Action == "day_closing_save" && entry.ActorUsername == "rina" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected audit entry by rina, got %+v", body.AuditLogs)
	}
}

func TestNozzleDefaultsAndPreviousCash(t *testing.T) {
	s := newTestAPI(t)

	rec := s.do(t, http.MethodGet, "/api/v1/day-closings/defaults?pump="+memory.SeedPumpID+"&date=2024-06-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var defaults struct {
		Nozzles []domain.NozzleDefault `json:"nozzles"`
	}
	decodeBody(t, rec, &defaults)
	if len(defaults.Nozzles) != 3 {
		t.Fatalf("expected 3 nozzle defaults, got %d", len(defaults.Nozzles))
	}

	rec = s.do(t, http.MethodGet, "/api/v1/day-closings/previous-cash?pump="+memory.SeedPumpID+"&date=bad", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestCreateNozzleAndBulkImport(t *testing.T) {
	s := newTestAPI(t)

	rec := s.do(t, http.MethodPost, "/api/v1/nozzles", map[string]any{
		"pump_id": memory.SeedPumpID, "name": "P3", "tank_id": memory.SeedPetrolTankID, "opening_reading": "0",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/v1/nozzles/bulk", map[string]any{
		"pump_id": memory.SeedPumpID,
		"rows":    []map[string]any{{"name": "P4", "tank_id": memory.SeedPetrolTankID, "opening_reading": "0"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var bulk domain.BulkNozzleResponse
	decodeBody(t, rec, &bulk)
	if len(bulk.Created) != 1 {
		t.Fatalf("expected 1 created nozzle, got %+v", bulk)
	}
}

func TestCashReconciliationRejectsBadDate(t *testing.T) {
	s := newTestAPI(t)
	rec := s.do(t, http.MethodGet, "/api/v1/reports/cash-reconciliation?pump="+memory.SeedPumpID+"&from=06/01/2024", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDailySalesAndPriceHistoryReports(t *testing.T) {
	s := newTestAPI(t)

	rec := s.do(t, http.MethodGet, "/api/v1/reports/daily-sales?pump="+memory.SeedPumpID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var sales struct {
		PumpID string           `json:"pump_id"`
		Rows   []map[string]any `json:"rows"`
	}
	decodeBody(t, rec, &sales)
	if sales.PumpID != memory.SeedPumpID || len(sales.Rows) != 0 {
		t.Fatalf("unexpected daily sales report: %+v", sales)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/reports/fuel-price-history?pump="+memory.SeedPumpID+"&active=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var history struct {
		Prices []struct {
			FuelTypeName string `json:"fuel_type_name"`
			Active       bool   `json:"active"`
		} `json:"prices"`
	}
	decodeBody(t, rec, &history)
	if len(history.Prices) != 2 || !history.Prices[0].Active {
		t.Fatalf("unexpected price history: %+v", history)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/reports/fuel-price-history", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without pump, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesRequestCounter(t *testing.T) {
	s := newTestAPI(t)
	s.do(t, http.MethodGet, "/healthz", nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fuelbook_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
