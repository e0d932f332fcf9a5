package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/config"
	"fuelbook/backend/internal/reconcile"
	"fuelbook/backend/internal/store/memory"
)

func TestValidateConfigRejectsShortLedgerSecret(t *testing.T) {
	_, err := validateConfig(config.Config{LedgerURL: "https://ledger.internal", LedgerSecret: "short", CashPolicy: "net_cash"})
	if err == nil {
		t.Fatalf("expected short ledger secret to be rejected")
	}
}

func TestValidateConfigAllowsMissingSecretWithoutLedgerURL(t *testing.T) {
	policy, err := validateConfig(config.Config{CashPolicy: "net_cash"})
	if err != nil {
		t.Fatalf("expected config without ledger url to pass, got %v", err)
	}
	if policy.Name() != reconcile.PolicyNetCash {
		t.Fatalf("expected net_cash policy, got %s", policy.Name())
	}
}

func TestValidateConfigRejectsUnknownPolicy(t *testing.T) {
	if _, err := validateConfig(config.Config{CashPolicy: "float"}); err == nil {
		t.Fatalf("expected unknown cash policy to be rejected")
	}
}

func TestValidateConfigRejectsNegativeThreshold(t *testing.T) {
	_, err := validateConfig(config.Config{CashPolicy: "variance", VarianceThreshold: decimal.NewFromInt(-1)})
	if err == nil {
		t.Fatalf("expected negative threshold to be rejected")
	}
}

func TestValidateConfigBuildsVariancePolicy(t *testing.T) {
	policy, err := validateConfig(config.Config{
		LedgerURL:         "https://ledger.internal",
		LedgerSecret:      "0123456789abcdef0123456789abcdef",
		CashPolicy:        "variance",
		VarianceThreshold: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
	variance, ok := policy.(reconcile.Variance)
	if !ok || !variance.Threshold.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected variance policy with threshold 50, got %#v", policy)
	}
}

func TestSeededLedgerStocksDemoTanks(t *testing.T) {
	led := seededLedger()
	qty, err := led.StockBalance(context.Background(), "PETROL", memory.SeedPetrolWarehouse)
	if err != nil {
		t.Fatalf("stock balance: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected 10000 litres, got %s", qty)
	}
}
