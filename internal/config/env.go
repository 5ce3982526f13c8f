package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFiles populates the process environment from dotenv files without overriding
// variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// ApplyEnv overlays environment variables onto cfg. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"ENVIRONMENT":  &cfg.Exchange.Environment,
		"VENUE":        &cfg.Exchange.Venue,
		"BASE_URL":     &cfg.Exchange.BaseURL,
		"STREAM_URL":   &cfg.Exchange.StreamURL,
		"API_KEY":      &cfg.Exchange.APIKey,
		"PRIVATE_KEY":  &cfg.Exchange.PrivateKey,
		"INSTRUMENT":   &cfg.Trading.Instrument,
		"LOG_LEVEL":    &cfg.App.LogLevel,
		"METRICS_ADDR": &cfg.App.MetricsAddr,
		"FILLS_PATH":   &cfg.Paper.FillsPath,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"ORDER_SIZE":    &cfg.Trading.OrderSize,
		"CASH_QUANTITY": &cfg.Trading.CashQuantity,
		"MAX_NOTIONAL":  &cfg.Trading.MaxNotional,
	}
	for key, dst := range floats {
		v, ok := get(key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"LEVERAGE":           &cfg.Trading.Leverage,
		"TRADE_DELAY_MS":     &cfg.Trading.TradeDelayMs,
		"LEG_DELAY_MS":       &cfg.Trading.LegDelayMs,
		"MAX_TRADES":         &cfg.Trading.MaxTrades,
		"REQUEST_TIMEOUT_MS": &cfg.Exchange.RequestTimeoutMs,
	}
	for key, dst := range ints {
		v, ok := get(key)
		if !ok {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = i
	}

	if v, ok := get("LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse LOG_PRETTY: %w", err)
		}
		cfg.App.Pretty = b
	}
	return nil
}
