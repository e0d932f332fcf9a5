package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fuelbook/backend/internal/domain"
)

func (a *API) handleSaveDayClosing(w http.ResponseWriter, r *http.Request) {
	var req dayClosingRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	record := req.toDomain()
	status := http.StatusCreated
	if id := chi.URLParam(r, "id"); id != "" {
		record.ID = id
		status = http.StatusOK
	}

	saved, err := a.service.SaveDayClosing(r.Context(), record)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, status, saved)
}

func (a *API) handleGetDayClosing(w http.ResponseWriter, r *http.Request) {
	record, err := a.service.GetDayClosing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) handleListDayClosings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to, err := parseDayRange(query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	records, err := a.service.ListDayClosings(r.Context(), query.Get("pump"), from, to)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day_closings": records})
}

func (a *API) handleSubmitDayClosing(w http.ResponseWriter, r *http.Request) {
	record, err := a.service.SubmitDayClosing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) handleCancelDayClosing(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelDayClosing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleApproveDayClosing(w http.ResponseWriter, r *http.Request) {
	record, err := a.service.ApproveDayClosing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) handleAmendDayClosing(w http.ResponseWriter, r *http.Request) {
	record, err := a.service.AmendDayClosing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (a *API) handleNozzleDefaults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	date, err := parseDateParam(query.Get("date"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	defaults, err := a.service.NozzleDefaults(r.Context(), query.Get("pump"), date)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nozzles": defaults})
}

func (a *API) handlePreviousCash(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	date, err := parseDateParam(query.Get("date"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	amount, err := a.service.PreviousCash(r.Context(), query.Get("pump"), date)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"previous_cash": amount})
}

func (a *API) handleSaveShiftReading(w http.ResponseWriter, r *http.Request) {
	var req shiftReadingRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	reading, err := a.service.SaveShiftReading(r.Context(), domain.ShiftReading{
		ID:             req.ID,
		PumpID:         req.PumpID,
		ShiftID:        req.ShiftID,
		ReadingDate:    req.ReadingDate,
		NozzleReadings: toReadingLines(req.NozzleReadings),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleGetShiftReading(w http.ResponseWriter, r *http.Request) {
	reading, err := a.service.GetShiftReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleSubmitShiftReading(w http.ResponseWriter, r *http.Request) {
	reading, err := a.service.SubmitShiftReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleCancelShiftReading(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelShiftReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaveDipReading(w http.ResponseWriter, r *http.Request) {
	var req dipReadingRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	reading, err := a.service.SaveDipReading(r.Context(), domain.DipReading{
		ID:          req.ID,
		TankID:      req.TankID,
		ReadingDate: req.ReadingDate,
		MeasuredDip: req.MeasuredDip,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleGetDipReading(w http.ResponseWriter, r *http.Request) {
	reading, err := a.service.GetDipReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleSubmitDipReading(w http.ResponseWriter, r *http.Request) {
	reading, err := a.service.SubmitDipReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleCancelDipReading(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelDipReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaveFuelTesting(w http.ResponseWriter, r *http.Request) {
	var req fuelTestingRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	testing, err := a.service.SaveFuelTesting(r.Context(), req.toDomain())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, testing)
}

func (a *API) handleGetFuelTesting(w http.ResponseWriter, r *http.Request) {
	testing, err := a.service.GetFuelTesting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, testing)
}

func (a *API) handleSubmitFuelTesting(w http.ResponseWriter, r *http.Request) {
	testing, err := a.service.SubmitFuelTesting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, testing)
}

func (a *API) handleCancelFuelTesting(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelFuelTesting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaveFuelTransfer(w http.ResponseWriter, r *http.Request) {
	var req fuelTransferRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	transfer, err := a.service.SaveFuelTransfer(r.Context(), domain.FuelTransfer{
		ID:           req.ID,
		FromTankID:   req.FromTankID,
		ToTankID:     req.ToTankID,
		FuelTypeID:   req.FuelTypeID,
		Quantity:     req.Quantity,
		TransferDate: req.TransferDate,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (a *API) handleGetFuelTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := a.service.GetFuelTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (a *API) handleSubmitFuelTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := a.service.SubmitFuelTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (a *API) handleCancelFuelTransfer(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelFuelTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
