// Package config exposes strongly typed application configuration structs loaded from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Venue names accepted by Exchange.Venue.
const (
	VenuePaper = "paper"
	VenueREST  = "rest"
)

// Environment tags accepted by Exchange.Environment.
const (
	EnvDemo = "DEMO"
	EnvProd = "PROD"
)

// App captures process-wide runtime settings such as name, metrics and logging.
type App struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
	Pretty      bool   `yaml:"pretty"`
}

// Exchange describes how the bot reaches the venue and which credentials it presents.
type Exchange struct {
	Venue            string `yaml:"venue"`
	Environment      string `yaml:"environment"`
	BaseURL          string `yaml:"base_url"`
	StreamURL        string `yaml:"stream_url"`
	APIKey           string `yaml:"api_key"`
	PrivateKey       string `yaml:"private_key"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
}

// Trading holds the cycle parameters. CashQuantity > 0 overrides the OrderSize-derived notional.
type Trading struct {
	Instrument   string  `yaml:"instrument"`
	OrderSize    float64 `yaml:"order_size"`
	CashQuantity float64 `yaml:"cash_quantity"`
	Leverage     int     `yaml:"leverage"`
	TradeDelayMs int     `yaml:"trade_delay_ms"`
	LegDelayMs   int     `yaml:"leg_delay_ms"`
	MaxTrades    int     `yaml:"max_trades"`
	MaxNotional  float64 `yaml:"max_notional"`
}

// Paper configures the in-memory venue used when Exchange.Venue is "paper".
type Paper struct {
	StartingCash float64 `yaml:"starting_cash"`
	StartPrice   float64 `yaml:"start_price"`
	SpreadBps    float64 `yaml:"spread_bps"`
	StepBps      float64 `yaml:"step_bps"`
	FillsPath    string  `yaml:"fills_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Trading  Trading  `yaml:"trading"`
	Paper    Paper    `yaml:"paper"`
}

// Defaults returns the settings the bot runs with when nothing overrides them.
func Defaults() *Config {
	return &Config{
		App: App{
			Name:        "volumebot",
			LogLevel:    "info",
			MetricsAddr: ":9108",
		},
		Exchange: Exchange{
			Venue:            VenuePaper,
			Environment:      EnvDemo,
			RequestTimeoutMs: 10000,
		},
		Trading: Trading{
			Instrument:   "BTCUSD:DEMO",
			OrderSize:    0.001,
			Leverage:     5,
			TradeDelayMs: 2000,
			LegDelayMs:   500,
		},
		Paper: Paper{
			StartingCash: 10000,
			StartPrice:   50000,
			SpreadBps:    2,
			StepBps:      1,
		},
	}
}

// TradeDelay is the pause between cycles.
func (t Trading) TradeDelay() time.Duration {
	return time.Duration(t.TradeDelayMs) * time.Millisecond
}

// LegDelay is the pause between the buy and the sell leg of one cycle.
func (t Trading) LegDelay() time.Duration {
	return time.Duration(t.LegDelayMs) * time.Millisecond
}

// RequestTimeout bounds every call to the venue.
func (e Exchange) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutMs) * time.Millisecond
}

// Load reads a YAML file from disk on top of Defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Defaults()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultFile is the config file looked up relative to the working directory.
const DefaultFile = "internal/config/config.yaml"

// DefaultPath picks the config file: CONFIG_PATH when set, otherwise DefaultFile when it
// exists, otherwise "" so Resolve runs on defaults and the environment alone.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Resolve builds the effective configuration: YAML file (optional), then .env files, then
// the process environment, then validation.
func Resolve(path string, envFiles ...string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	LoadEnvFiles(envFiles...)
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
