package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fuelbook/backend/internal/domain"
)

func (a *API) handleCreatePump(w http.ResponseWriter, r *http.Request) {
	var req pumpRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	pump, err := a.service.CreatePump(r.Context(), req.toDomain())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pump)
}

func (a *API) handleListPumps(w http.ResponseWriter, r *http.Request) {
	pumps, err := a.service.ListPumps(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pumps": pumps})
}

func (a *API) handleCreateFuelType(w http.ResponseWriter, r *http.Request) {
	var req fuelTypeRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	fuelType, err := a.service.CreateFuelType(r.Context(), domain.FuelType{Name: req.Name, ItemCode: req.ItemCode})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fuelType)
}

func (a *API) handleListFuelTypes(w http.ResponseWriter, r *http.Request) {
	fuelTypes, err := a.service.ListFuelTypes(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fuel_types": fuelTypes})
}

func (a *API) handleCreateTank(w http.ResponseWriter, r *http.Request) {
	var req tankRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	tank, err := a.service.CreateTank(r.Context(), domain.FuelTank{
		PumpID:     req.PumpID,
		Name:       req.Name,
		FuelTypeID: req.FuelTypeID,
		Warehouse:  req.Warehouse,
		Capacity:   req.Capacity,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tank)
}

func (a *API) handleListTanks(w http.ResponseWriter, r *http.Request) {
	tanks, err := a.service.ListTanks(r.Context(), r.URL.Query().Get("pump"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tanks": tanks})
}

func (a *API) handleCreateNozzle(w http.ResponseWriter, r *http.Request) {
	var req nozzleRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	nozzle, err := a.service.CreateNozzle(r.Context(), req.toDomain())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nozzle)
}

func (a *API) handleListNozzles(w http.ResponseWriter, r *http.Request) {
	nozzles, err := a.service.ListNozzles(r.Context(), r.URL.Query().Get("pump"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nozzles": nozzles})
}

func (a *API) handleBulkNozzles(w http.ResponseWriter, r *http.Request) {
	var req bulkNozzleRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := a.service.BulkCreateNozzles(r.Context(), domain.BulkNozzleRequest{PumpID: req.PumpID, Rows: req.Rows})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCreateDispenser(w http.ResponseWriter, r *http.Request) {
	var req dispenserRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	dispenser, err := a.service.CreateDispenser(r.Context(), domain.Dispenser{
		PumpID:    req.PumpID,
		Name:      req.Name,
		NozzleIDs: req.NozzleIDs,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dispenser)
}

func (a *API) handleListDispensers(w http.ResponseWriter, r *http.Request) {
	dispensers, err := a.service.ListDispensers(r.Context(), r.URL.Query().Get("pump"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispensers": dispensers})
}

func (a *API) handleOpenShift(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	shift, err := a.service.OpenShift(r.Context(), domain.Shift{PumpID: req.PumpID, Name: req.Name, StartTime: req.StartTime})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (a *API) handleCloseShift(w http.ResponseWriter, r *http.Request) {
	shift, err := a.service.CloseShift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (a *API) handleCreateFuelPrice(w http.ResponseWriter, r *http.Request) {
	var req fuelPriceRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	price, err := a.service.CreateFuelPrice(r.Context(), domain.FuelPrice{
		PumpID:        req.PumpID,
		FuelTypeID:    req.FuelTypeID,
		PricePerUnit:  req.PricePerUnit,
		EffectiveFrom: req.EffectiveFrom,
	}, req.Activate)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, price)
}

func (a *API) handleListFuelPrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	prices, err := a.service.ListFuelPrices(r.Context(), query.Get("pump"), query.Get("fuel_type"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fuel_prices": prices})
}

func (a *API) handleActivateFuelPrice(w http.ResponseWriter, r *http.Request) {
	price, err := a.service.ActivateFuelPrice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (a *API) handleResolvePrice(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	at, err := parseDateParam(query.Get("at"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	rate, err := a.service.CurrentRate(r.Context(), query.Get("pump"), query.Get("fuel_type"), at)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pump_id":      query.Get("pump"),
		"fuel_type_id": query.Get("fuel_type"),
		"rate":         rate,
	})
}

func (a *API) handleAvailableStock(w http.ResponseWriter, r *http.Request) {
	stock, err := a.service.AvailableStock(r.Context(), r.URL.Query().Get("pump"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tanks": stock})
}

func (a *API) handleCashReconciliation(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.CashReconciliation(r.Context(), query.Get("pump"), query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleDailySales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.DailySalesSummary(r.Context(), query.Get("pump"), query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleFuelPriceHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rows, err := a.service.FuelPriceHistory(r.Context(), query.Get("pump"), query.Get("fuel_type"),
		query.Get("from"), query.Get("to"), query.Get("active") == "true")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": rows})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("date"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}
