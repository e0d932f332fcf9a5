package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/lock"
	"fuelbook/backend/internal/metrics"
	"fuelbook/backend/internal/service"
	"fuelbook/backend/internal/store"
)

const operatorHeader = "X-Operator"

type API struct {
	service       *service.Service
	allowedOrigin string
	validate      *validator.Validate
	logger        logrus.FieldLogger
}

func New(svc *service.Service, allowedOrigin string, logger logrus.FieldLogger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{
		service:       svc,
		allowedOrigin: allowedOrigin,
		validate:      validator.New(),
		logger:        logger.WithField("component", "httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", operatorHeader},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)
	r.Use(limitBody)
	r.Use(withOperator)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pumps", func(r chi.Router) {
			r.Post("/", a.handleCreatePump)
			r.Get("/", a.handleListPumps)
		})
		r.Route("/fuel-types", func(r chi.Router) {
			r.Post("/", a.handleCreateFuelType)
			r.Get("/", a.handleListFuelTypes)
		})
		r.Route("/tanks", func(r chi.Router) {
			r.Post("/", a.handleCreateTank)
			r.Get("/", a.handleListTanks)
		})
		r.Route("/nozzles", func(r chi.Router) {
			r.Post("/", a.handleCreateNozzle)
			r.Get("/", a.handleListNozzles)
			r.Post("/bulk", a.handleBulkNozzles)
		})
		r.Route("/dispensers", func(r chi.Router) {
			r.Post("/", a.handleCreateDispenser)
			r.Get("/", a.handleListDispensers)
		})
		r.Route("/shifts", func(r chi.Router) {
			r.Post("/", a.handleOpenShift)
			r.Post("/{id}/close", a.handleCloseShift)
		})
		r.Route("/fuel-prices", func(r chi.Router) {
			r.Post("/", a.handleCreateFuelPrice)
			r.Get("/", a.handleListFuelPrices)
			r.Get("/resolve", a.handleResolvePrice)
			r.Post("/{id}/activate", a.handleActivateFuelPrice)
		})
		r.Route("/day-closings", func(r chi.Router) {
			r.Post("/", a.handleSaveDayClosing)
			r.Get("/", a.handleListDayClosings)
			r.Get("/defaults", a.handleNozzleDefaults)
			r.Get("/previous-cash", a.handlePreviousCash)
			r.Get("/{id}", a.handleGetDayClosing)
			r.Put("/{id}", a.handleSaveDayClosing)
			r.Post("/{id}/submit", a.handleSubmitDayClosing)
			r.Post("/{id}/cancel", a.handleCancelDayClosing)
			r.Post("/{id}/approve", a.handleApproveDayClosing)
			r.Post("/{id}/amend", a.handleAmendDayClosing)
		})
		r.Get("/stock", a.handleAvailableStock)
		r.Route("/shift-readings", func(r chi.Router) {
			r.Post("/", a.handleSaveShiftReading)
			r.Get("/{id}", a.handleGetShiftReading)
			r.Post("/{id}/submit", a.handleSubmitShiftReading)
			r.Post("/{id}/cancel", a.handleCancelShiftReading)
		})
		r.Route("/dip-readings", func(r chi.Router) {
			r.Post("/", a.handleSaveDipReading)
			r.Get("/{id}", a.handleGetDipReading)
			r.Post("/{id}/submit", a.handleSubmitDipReading)
			r.Post("/{id}/cancel", a.handleCancelDipReading)
		})
		r.Route("/fuel-testings", func(r chi.Router) {
			r.Post("/", a.handleSaveFuelTesting)
			r.Get("/{id}", a.handleGetFuelTesting)
			r.Post("/{id}/submit", a.handleSubmitFuelTesting)
			r.Post("/{id}/cancel", a.handleCancelFuelTesting)
		})
		r.Route("/fuel-transfers", func(r chi.Router) {
			r.Post("/", a.handleSaveFuelTransfer)
			r.Get("/{id}", a.handleGetFuelTransfer)
			r.Post("/{id}/submit", a.handleSubmitFuelTransfer)
			r.Post("/{id}/cancel", a.handleCancelFuelTransfer)
		})
		r.Get("/reports/cash-reconciliation", a.handleCashReconciliation)
		r.Get("/reports/daily-sales", a.handleDailySales)
		r.Get("/reports/fuel-price-history", a.handleFuelPriceHistory)
		r.Get("/audit-logs", a.handleAuditLogs)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})
	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// accessLog writes one line per request and feeds the HTTP collectors. The route label
// is the chi pattern so ids do not explode cardinality.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(startedAt)

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		a.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

// withOperator records who is acting. It is identity only; nothing is authenticated.
func withOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(operatorHeader))
		if username == "" {
			username = "system"
		}
		ctx := service.WithActor(r.Context(), domain.Actor{Username: username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// decodeAndValidate decodes a JSON body strictly and runs the struct tags. It writes the
// error response itself and reports whether the handler may continue.
func (a *API) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return false
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "invalid request",
				"fields": validationFields(fieldErrs),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func validationFields(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return fields
}

// writeServiceError maps service errors onto status codes. Orchestration failures keep
// the computed totals so the operator can reconcile by hand.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var orchErr *domain.OrchestrationError
	var compErr *domain.CompensationError
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &orchErr):
		a.logger.WithField("record_id", orchErr.RecordID).Warn(orchErr.Error())
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   orchErr.Error(),
			"step":    orchErr.Step,
			"totals":  orchErr.Totals,
			"created": orchErr.Created,
		})
	case errors.As(err, &compErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "some transactions could not be cancelled",
			"warnings": compErr.Messages(),
		})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": validationErr.Message,
			"rule":  validationErr.Rule,
		})
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict), errors.Is(err, lock.ErrLocked):
		writeError(w, http.StatusConflict, err)
	default:
		a.logger.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// parseDateParam accepts YYYY-MM-DD or RFC 3339. Empty means now.
func parseDateParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if day, err := time.Parse("2006-01-02", raw); err == nil {
		return day.UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, store.ErrInvalidInput
	}
	return at.UTC(), nil
}

// parseDayRange turns inclusive YYYY-MM-DD bounds into a half-open interval. An empty
// bound is left zero.
func parseDayRange(from string, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	if from = strings.TrimSpace(from); from != "" {
		day, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidInput
		}
		start = day.UTC()
	}
	if to = strings.TrimSpace(to); to != "" {
		day, err := time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidInput
		}
		end = day.UTC().Add(24 * time.Hour)
	}
	return start, end, nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry the underlying error.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
