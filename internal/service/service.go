package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/cache"
	"fuelbook/backend/internal/closing"
	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/lock"
	"fuelbook/backend/internal/pricing"
	"fuelbook/backend/internal/reconcile"
	"fuelbook/backend/internal/stock"
	"fuelbook/backend/internal/store"
	"fuelbook/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Policy             reconcile.CashPolicy
	VarianceThreshold  decimal.Decimal
	RequireActivePrice bool
	CashCustomer       string
	Locker             lock.Locker
	LockTTL            time.Duration
	Reports            cache.ReportCache
	ReportTTL          time.Duration
	Logger             logrus.FieldLogger
}

type Service struct {
	repo      store.Repository
	ledger    ledger.Ledger
	prices    *pricing.Resolver
	stock     *stock.Checker
	engine    *reconcile.Engine
	validator *reconcile.Validator
	closing   *closing.Orchestrator
	locker    lock.Locker
	lockTTL   time.Duration
	reports   cache.ReportCache
	reportTTL time.Duration
	threshold decimal.Decimal
	logger    logrus.FieldLogger
}

func New(repo store.Repository, ledgerClient ledger.Ledger, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if opts.Reports == nil {
		opts.Reports = cache.NoopReportCache{}
	}
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = time.Minute
	}
	if opts.VarianceThreshold.IsNegative() {
		opts.VarianceThreshold = decimal.Zero
	}

	prices := pricing.NewResolver(repo, opts.RequireActivePrice)
	checker := stock.NewChecker(repo, ledgerClient)
	logger := opts.Logger.WithField("component", "service")

	return &Service{
		repo:      repo,
		ledger:    ledgerClient,
		prices:    prices,
		stock:     checker,
		engine:    reconcile.NewEngine(prices, opts.Policy),
		validator: reconcile.NewValidator(repo, checker),
		closing: closing.New(closing.Config{
			Ledger:       ledgerClient,
			Catalog:      repo,
			Refs:         repo,
			Nozzles:      repo,
			Issuer:       checker,
			CashCustomer: opts.CashCustomer,
			Logger:       opts.Logger,
		}),
		locker:    opts.Locker,
		lockTTL:   opts.LockTTL,
		reports:   opts.Reports,
		reportTTL: opts.ReportTTL,
		threshold: opts.VarianceThreshold,
		logger:    logger,
	}
}

// withRecordLock serializes submit and cancel of one document. A second caller gets
// lock.ErrLocked immediately.
func (s *Service) withRecordLock(ctx context.Context, kind string, id string, fn func(ctx context.Context) error) error {
	return lock.WithLock(ctx, s.locker, kind+":"+id, s.lockTTL, fn)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	var from time.Time
	to := time.Now().UTC().Add(time.Minute)
	if strings.TrimSpace(date) != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = day.UTC()
		to = from.Add(24 * time.Hour)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, pumpID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		actor = domain.Actor{Username: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		PumpID:        pumpID,
		ActorUsername: actor.Username,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}).Warn("failed to write audit log: " + err.Error())
	}
}

func (s *Service) invalidateReports(ctx context.Context, pumpID string) {
	if err := s.reports.Invalidate(ctx, pumpID); err != nil {
		s.logger.WithField("pump_id", pumpID).Warn("failed to invalidate report cache: " + err.Error())
	}
}

func (s *Service) cancelRefs(ctx context.Context, refs domain.DocumentRefs) []domain.CompensationFailure {
	var failures []domain.CompensationFailure
	for _, ref := range refs.Reversed() {
		if err := s.ledger.Cancel(ctx, ref.ID); err != nil {
			failures = append(failures, domain.CompensationFailure{Ref: ref, Err: err})
		}
	}
	return failures
}

func requireState(kind string, id string, state domain.WorkflowState, allowed ...domain.WorkflowState) error {
	for _, candidate := range allowed {
		if state == candidate {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s is %s", store.ErrConflict, kind, id, state)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
