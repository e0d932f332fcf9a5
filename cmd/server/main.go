package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/cache"
	"fuelbook/backend/internal/config"
	"fuelbook/backend/internal/httpapi"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/ledger/httpledger"
	ledgermem "fuelbook/backend/internal/ledger/memory"
	"fuelbook/backend/internal/lock"
	"fuelbook/backend/internal/logging"
	"fuelbook/backend/internal/reconcile"
	"fuelbook/backend/internal/service"
	"fuelbook/backend/internal/store"
	"fuelbook/backend/internal/store/memory"
	pgstore "fuelbook/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	policy, err := validateConfig(cfg)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			logger.Fatalf("postgres migrate: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var ledgerClient ledger.Ledger
	if cfg.LedgerURL != "" {
		ledgerClient = httpledger.New(cfg.LedgerURL, cfg.LedgerSecret, cfg.LedgerTimeout())
		logger.WithField("url", cfg.LedgerURL).Info("ledger: http")
	} else {
		ledgerClient = seededLedger()
		logger.Info("ledger: in-memory")
	}

	var locker lock.Locker = lock.NewLocal()
	var reports cache.ReportCache = cache.NoopReportCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis unavailable (%v), using in-process lock and noop cache", err)
			_ = rdb.Close()
		} else {
			locker = lock.NewRedis(rdb, "fuelbook:lock:")
			reports = cache.NewRedisReportCache(rdb, "fuelbook:report:")
			closers = append(closers, rdb.Close)
			logger.Info("lock and cache: redis")
		}
	} else {
		logger.Info("lock: in-process, cache: noop")
	}

	svc := service.New(repo, ledger.Instrument(ledgerClient), service.Options{
		Policy:             policy,
		VarianceThreshold:  cfg.VarianceThreshold,
		RequireActivePrice: cfg.PriceRequireActive,
		CashCustomer:       cfg.CashCustomer,
		Locker:             locker,
		LockTTL:            cfg.LockTTL(),
		Reports:            reports,
		ReportTTL:          cfg.ReportCacheTTL(),
		Logger:             logger,
	})
	api := httpapi.New(svc, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("fuelbook backend listening on %s (cash policy %s)", cfg.Address(), policy.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warnf("close error: %v", err)
		}
	}

	logger.Info("server stopped")
}

// validateConfig rejects settings the server must not start with and builds the cash
// policy they name.
func validateConfig(cfg config.Config) (reconcile.CashPolicy, error) {
	if cfg.LedgerURL != "" && len(cfg.LedgerSecret) < 32 {
		return nil, fmt.Errorf("LEDGER_SECRET must be at least 32 characters when LEDGER_URL is set")
	}
	if cfg.VarianceThreshold.IsNegative() {
		return nil, fmt.Errorf("VARIANCE_THRESHOLD must not be negative")
	}
	policy, err := reconcile.NewPolicy(cfg.CashPolicy, cfg.VarianceThreshold, cfg.VarianceSubtractExpenses)
	if err != nil {
		return nil, fmt.Errorf("CASH_POLICY: %w", err)
	}
	return policy, nil
}

// seededLedger stocks the demo tanks of memory.NewSeeded so a bare `go run` can close a
// day end to end.
func seededLedger() *ledgermem.Ledger {
	led := ledgermem.New()
	led.SetStock("PETROL", memory.SeedPetrolWarehouse, decimal.NewFromInt(10000), decimal.NewFromInt(7))
	led.SetStock("DIESEL", memory.SeedDieselWarehouse, decimal.NewFromInt(10000), decimal.NewFromInt(6))
	return led
}
