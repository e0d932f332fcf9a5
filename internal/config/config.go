package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	DatabaseURL   string `mapstructure:"database_url"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LedgerURL            string `mapstructure:"ledger_url"`
	LedgerSecret         string `mapstructure:"ledger_secret"`
	LedgerTimeoutSeconds int    `mapstructure:"ledger_timeout_seconds"`

	CashPolicy               string `mapstructure:"cash_policy"`
	RawVarianceThreshold     string `mapstructure:"variance_threshold"`
	VarianceSubtractExpenses bool   `mapstructure:"variance_subtract_expenses"`
	PriceRequireActive       bool   `mapstructure:"price_require_active"`
	CashCustomer             string `mapstructure:"cash_customer"`

	LockTTLSeconds        int `mapstructure:"lock_ttl_seconds"`
	ReportCacheTTLSeconds int `mapstructure:"report_cache_ttl_seconds"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	VarianceThreshold decimal.Decimal `mapstructure:"-"`
}

var defaults = map[string]any{
	"port":                       "8080",
	"allowed_origin":             "http://127.0.0.1:3000",
	"database_url":               "",
	"redis_addr":                 "",
	"redis_password":             "",
	"redis_db":                   0,
	"ledger_url":                 "",
	"ledger_secret":              "",
	"ledger_timeout_seconds":     15,
	"cash_policy":                "net_cash",
	"variance_threshold":         "500",
	"variance_subtract_expenses": false,
	"price_require_active":       false,
	"cash_customer":              "Cash Customer",
	"lock_ttl_seconds":           120,
	"report_cache_ttl_seconds":   60,
	"log_level":                  "info",
	"log_format":                 "json",
}

// Load reads .env when present, then the optional YAML file named by CONFIG_FILE, then
// the environment. Environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.LedgerSecret = strings.TrimSpace(cfg.LedgerSecret)
	cfg.CashPolicy = strings.ToLower(strings.TrimSpace(cfg.CashPolicy))
	if cfg.CashCustomer = strings.TrimSpace(cfg.CashCustomer); cfg.CashCustomer == "" {
		cfg.CashCustomer = "Cash Customer"
	}
	if cfg.LedgerTimeoutSeconds < 1 {
		cfg.LedgerTimeoutSeconds = 15
	}
	if cfg.LockTTLSeconds < 1 {
		cfg.LockTTLSeconds = 120
	}
	if cfg.ReportCacheTTLSeconds < 1 {
		cfg.ReportCacheTTLSeconds = 60
	}

	threshold, err := decimal.NewFromString(strings.TrimSpace(cfg.RawVarianceThreshold))
	if err != nil {
		return Config{}, fmt.Errorf("VARIANCE_THRESHOLD %q is not a number", cfg.RawVarianceThreshold)
	}
	cfg.VarianceThreshold = threshold
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSeconds) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}
