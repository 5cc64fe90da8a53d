// Package config defines all configuration for the trading pipeline.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via TRADER_* environment variables.
// Grounded on 0xtitan6-polymarket-mm's internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool           `mapstructure:"dry_run"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	API      APIConfig      `mapstructure:"api"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Writer   WriterConfig   `mapstructure:"writer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ExchangeConfig names the venue and instrument this process trades.
type ExchangeConfig struct {
	Name       string `mapstructure:"name"`        // "bitFlyer"
	Symbol     string `mapstructure:"symbol"`      // domain.Symbol, e.g. "FX_BTC_JPY"
	ProductCode string `mapstructure:"product_code"` // exchange-native product code, e.g. "FX_BTC_JPY"
}

// APIConfig holds bitFlyer API endpoints and credentials. ApiKey/Secret are
// overridable via TRADER_API_KEY / TRADER_API_SECRET env vars so they never
// need to sit in the YAML file, mirroring the teacher's sensitive-field
// override idiom.
type APIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	WSURL     string `mapstructure:"ws_url"`
	ApiKey    string `mapstructure:"api_key"`
	ApiSecret string `mapstructure:"api_secret"`
}

// PipelineConfig tunes the execution-stream pipeline.
//
//   - WarmupWindow: duration W of historical replay handed to each new
//     subscriber of the warm-up queue before it switches to live feed.
//   - NewPricesWindow / OHLCWindow: bucket widths for the corresponding
//     stream adapters, independently configurable since a pipeline may
//     chain both off the same raw stream.
type PipelineConfig struct {
	WarmupWindow    time.Duration `mapstructure:"warmup_window"`
	NewPricesWindow time.Duration `mapstructure:"new_prices_window"`
	OHLCWindow      time.Duration `mapstructure:"ohlc_window"`
}

// BrokerConfig tunes the declarative broker's retry and settlement timing.
//
//   - TimeWaitRetrying: fixed backoff between Transient-condition retries.
//   - TimeWait429Suspends: fixed backoff between RateLimited retries
//     (longer than TimeWaitRetrying).
//   - SettlementDelay: optional pause between order submission/cancellation
//     and the confirmation re-query, to absorb read-after-write lag.
//   - MinuteToExpire / TimeInForce: fixed order parameters for every
//     LIMIT order the broker places.
type BrokerConfig struct {
	TimeWaitRetrying    time.Duration `mapstructure:"time_wait_retrying"`
	TimeWait429Suspends time.Duration `mapstructure:"time_wait_429_suspends"`
	SettlementDelay     time.Duration `mapstructure:"settlement_delay"`
	MinuteToExpire      int           `mapstructure:"minute_to_expire"`
	TimeInForce         string        `mapstructure:"time_in_force"`
}

// WriterConfig tunes the execution writer's rotation/flush cadence.
type WriterConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	RecordsRotation  int    `mapstructure:"records_rotation"`
	RecordsInsertion int    `mapstructure:"records_insertion"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: TRADER_API_KEY, TRADER_API_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("TRADER_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("TRADER_API_SECRET"); secret != "" {
		cfg.API.ApiSecret = secret
	}
	if os.Getenv("TRADER_DRY_RUN") == "true" || os.Getenv("TRADER_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.ApiKey == "" {
		return fmt.Errorf("api.api_key is required (set TRADER_API_KEY)")
	}
	if c.API.ApiSecret == "" {
		return fmt.Errorf("api.api_secret is required (set TRADER_API_SECRET)")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Exchange.ProductCode == "" {
		return fmt.Errorf("exchange.product_code is required")
	}
	if c.Pipeline.WarmupWindow <= 0 {
		return fmt.Errorf("pipeline.warmup_window must be > 0")
	}
	if c.Broker.TimeWaitRetrying <= 0 {
		return fmt.Errorf("broker.time_wait_retrying must be > 0")
	}
	if c.Broker.TimeWait429Suspends <= 0 {
		return fmt.Errorf("broker.time_wait_429_suspends must be > 0")
	}
	if c.Broker.MinuteToExpire <= 0 {
		return fmt.Errorf("broker.minute_to_expire must be > 0")
	}
	if c.Broker.TimeInForce == "" {
		return fmt.Errorf("broker.time_in_force is required")
	}
	if c.Writer.RecordsRotation <= 0 {
		return fmt.Errorf("writer.records_rotation must be > 0")
	}
	if c.Writer.RecordsInsertion <= 0 || c.Writer.RecordsInsertion > c.Writer.RecordsRotation {
		return fmt.Errorf("writer.records_insertion must be > 0 and <= records_rotation")
	}
	return nil
}
