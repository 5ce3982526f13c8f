package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate normalises enum-like fields and checks that every value is usable.
func (c *Config) Validate() error {
	c.Exchange.Venue = strings.ToLower(strings.TrimSpace(c.Exchange.Venue))
	c.Exchange.Environment = strings.ToUpper(strings.TrimSpace(c.Exchange.Environment))
	c.Trading.Instrument = strings.TrimSpace(c.Trading.Instrument)

	switch c.Exchange.Environment {
	case EnvDemo, EnvProd:
	default:
		return fmt.Errorf("exchange.environment must be %s or %s, got %q", EnvDemo, EnvProd, c.Exchange.Environment)
	}
	if c.Exchange.RequestTimeoutMs < 1 {
		return errors.New("exchange.request_timeout_ms must be >= 1")
	}

	if err := c.Trading.validate(); err != nil {
		return err
	}

	switch c.Exchange.Venue {
	case VenueREST:
		if c.Exchange.BaseURL == "" {
			return errors.New("exchange.base_url is required for the rest venue")
		}
		if c.Exchange.StreamURL == "" {
			return errors.New("exchange.stream_url is required for the rest venue")
		}
		if c.Exchange.PrivateKey == "" {
			return errors.New("PRIVATE_KEY is required for the rest venue")
		}
	case VenuePaper:
		if c.Paper.StartingCash <= 0 {
			return errors.New("paper.starting_cash must be > 0")
		}
		if c.Paper.StartPrice <= 0 {
			return errors.New("paper.start_price must be > 0")
		}
		if c.Paper.SpreadBps < 0 || c.Paper.StepBps < 0 {
			return errors.New("paper.spread_bps and paper.step_bps must be >= 0")
		}
	default:
		return fmt.Errorf("exchange.venue must be %s or %s, got %q", VenuePaper, VenueREST, c.Exchange.Venue)
	}
	return nil
}

func (t Trading) validate() error {
	if t.Instrument == "" {
		return errors.New("trading.instrument is required")
	}
	if t.OrderSize < 0 {
		return fmt.Errorf("trading.order_size must be >= 0, got %v", t.OrderSize)
	}
	if t.CashQuantity < 0 {
		return fmt.Errorf("trading.cash_quantity must be >= 0, got %v", t.CashQuantity)
	}
	if t.OrderSize == 0 && t.CashQuantity == 0 {
		return errors.New("one of trading.order_size or trading.cash_quantity must be > 0")
	}
	if t.Leverage < 1 {
		return fmt.Errorf("trading.leverage must be >= 1, got %d", t.Leverage)
	}
	if t.TradeDelayMs < 0 {
		return errors.New("trading.trade_delay_ms must be >= 0")
	}
	if t.LegDelayMs < 0 {
		return errors.New("trading.leg_delay_ms must be >= 0")
	}
	if t.MaxTrades < 0 {
		return errors.New("trading.max_trades must be >= 0")
	}
	if t.MaxNotional < 0 {
		return fmt.Errorf("trading.max_notional must be >= 0, got %v", t.MaxNotional)
	}
	return nil
}
