// Package scheduler runs the buy-then-sell trade cycle on a fixed cadence until told to stop.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"volumebot-go/internal/exchange"
	"volumebot-go/internal/execution"
	"volumebot-go/internal/metrics"
	"volumebot-go/internal/oracle"
	"volumebot-go/internal/state"
	"volumebot-go/internal/volume"
)

// DefaultLegDelay separates the two legs so the venue sees two distinct orders.
const DefaultLegDelay = 500 * time.Millisecond

// Outcome classifies one cycle.
type Outcome string

const (
	Completed  Outcome = "completed"
	Skipped    Outcome = "skipped"
	BuyFailed  Outcome = "buy_failed"
	SellFailed Outcome = "sell_failed"
)

// StopReason says why Run returned.
type StopReason string

const (
	StopMaxTrades   StopReason = "max_trades"
	StopRequested   StopReason = "stop_requested"
	StopContextDone StopReason = "context_done"
)

// PriceSource yields the reference price of a cycle.
type PriceSource interface {
	CurrentPrice(ctx context.Context, instrument string) (oracle.Quote, error)
}

// LegExecutor submits one leg.
type LegExecutor interface {
	Execute(ctx context.Context, side exchange.Side, notional float64) (execution.Result, error)
}

// Settings are the cycle parameters taken from configuration.
type Settings struct {
	Instrument   string
	OrderSize    float64
	CashQuantity float64
	TradeDelay   time.Duration
	LegDelay     time.Duration
	MaxTrades    int
}

// Scheduler executes cycles one at a time; cycles never overlap.
type Scheduler struct {
	cfg       Settings
	prices    PriceSource
	exec      LegExecutor
	acct      *volume.Accountant
	positions exchange.PositionSource
	state     *state.Machine
	log       zerolog.Logger

	pause func(time.Duration)
}

// New wires a scheduler. positions may be nil when no snapshot source exists.
func New(cfg Settings, prices PriceSource, exec LegExecutor, acct *volume.Accountant, positions exchange.PositionSource, machine *state.Machine, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		prices:    prices,
		exec:      exec,
		acct:      acct,
		positions: positions,
		state:     machine,
		log:       log,
		pause:     time.Sleep,
	}
}

// Run loops until the trade cap is reached, a stop is requested, or ctx ends. The state is
// checked before every cycle; a cycle that has started always runs to its end.
func (s *Scheduler) Run(ctx context.Context) StopReason {
	s.log.Info().Str("instrument", s.cfg.Instrument).Int("max_trades", s.cfg.MaxTrades).Msg("bot started, generating trading volume")
	for {
		if reason, stop := s.checkpoint(ctx); stop {
			return reason
		}

		s.RunCycle(ctx)

		if s.capReached() {
			s.log.Info().Int("max_trades", s.cfg.MaxTrades).Msg("reached maximum trades, stopping bot")
			s.state.RequestStop()
			return StopMaxTrades
		}
		if !s.wait(ctx, s.cfg.TradeDelay) {
			if ctx.Err() != nil {
				return StopContextDone
			}
			return StopRequested
		}
	}
}

// RunCycle performs price lookup, buy, pause, sell and accounting. Volume is credited only
// when both legs went through.
func (s *Scheduler) RunCycle(ctx context.Context) Outcome {
	start := time.Now()

	quote, err := s.prices.CurrentPrice(ctx, s.cfg.Instrument)
	if err != nil {
		s.log.Warn().Err(err).Msg("skipping cycle, no market price available")
		metrics.CyclesTotal.WithLabelValues(string(Skipped)).Inc()
		return Skipped
	}
	s.log.Info().Float64("mid", quote.Mid).Float64("bid", quote.Bid).Float64("ask", quote.Ask).Msg("current price")

	notional := execution.ResolveNotional(s.cfg.CashQuantity, s.cfg.OrderSize, quote.Mid)

	// Orders already sent must be allowed to finish even if shutdown cancels ctx.
	orderCtx := context.WithoutCancel(ctx)

	if _, err := s.exec.Execute(orderCtx, exchange.Buy, notional); err != nil {
		s.cycleFailed(BuyFailed, err)
		return BuyFailed
	}

	s.pause(s.cfg.LegDelay)

	if _, err := s.exec.Execute(orderCtx, exchange.Sell, notional); err != nil {
		s.cycleFailed(SellFailed, err)
		return SellFailed
	}

	totals := s.acct.RecordCycle(notional)
	metrics.CyclesTotal.WithLabelValues(string(Completed)).Inc()
	metrics.VolumeTotal.Add(notional * 2)
	metrics.TradesExecuted.Set(float64(totals.TradesExecuted))
	s.log.Info().
		Int("cycle", totals.TradesExecuted).
		Dur("elapsed", time.Since(start)).
		Float64("cycle_volume", notional*2).
		Float64("total_volume", totals.TotalVolume).
		Msg("trade cycle completed")

	s.logPositions(ctx)
	return Completed
}

func (s *Scheduler) cycleFailed(outcome Outcome, err error) {
	metrics.CyclesTotal.WithLabelValues(string(outcome)).Inc()
	evt := s.log.Error().Err(err).Str("outcome", string(outcome))
	var rejected *execution.RejectedError
	if errors.As(err, &rejected) && rejected.Details != "" {
		evt = evt.Str("details", rejected.Details)
	}
	if outcome == SellFailed {
		evt.Msg("trade cycle failed after buy leg, position left open")
		return
	}
	evt.Msg("trade cycle failed")
}

func (s *Scheduler) logPositions(ctx context.Context) {
	if s.positions == nil {
		return
	}
	positions, err := s.positions.Positions(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("position snapshot unavailable")
		return
	}
	if len(positions) == 0 {
		return
	}
	s.log.Warn().Int("count", len(positions)).Msg("open positions")
	for _, pos := range positions {
		s.log.Info().Str("instrument", pos.Instrument).Str("side", string(pos.Side)).
			Float64("qty", pos.Quantity).Float64("avg_price", pos.AvgPrice).Msg("position")
	}
}

func (s *Scheduler) checkpoint(ctx context.Context) (StopReason, bool) {
	if ctx.Err() != nil {
		return StopContextDone, true
	}
	if s.state.Load() != state.Running {
		return StopRequested, true
	}
	if s.capReached() {
		s.state.RequestStop()
		return StopMaxTrades, true
	}
	return "", false
}

func (s *Scheduler) capReached() bool {
	return s.cfg.MaxTrades > 0 && s.acct.Snapshot().TradesExecuted >= s.cfg.MaxTrades
}

// wait sleeps for d and reports false when interrupted by a stop request or ctx.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.state.Stopping():
		return false
	case <-ctx.Done():
		return false
	}
}
