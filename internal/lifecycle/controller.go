// Package lifecycle sequences startup, hands control to the trade loop, and tears everything
// down exactly once.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"volumebot-go/internal/config"
	"volumebot-go/internal/exchange"
	"volumebot-go/internal/execution"
	"volumebot-go/internal/oracle"
	"volumebot-go/internal/risk"
	"volumebot-go/internal/scheduler"
	"volumebot-go/internal/state"
	"volumebot-go/internal/volume"
)

// Controller owns the venue session, the run state and the trade loop.
type Controller struct {
	cfg     *config.Config
	gw      exchange.Gateway
	log     zerolog.Logger
	machine *state.Machine
	acct    *volume.Accountant
	sched   *scheduler.Scheduler

	loopStarted  atomic.Bool
	loopDone     chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// New wires the oracle, executor and scheduler around gw. cfg must already be validated.
func New(cfg *config.Config, gw exchange.Gateway, log zerolog.Logger) *Controller {
	machine := state.NewMachine()
	acct := volume.NewAccountant()
	t := cfg.Trading

	prices := oracle.New(gw, log.With().Str("component", "oracle").Logger())
	exec := execution.NewExecutor(gw, t.Instrument, t.Leverage, log.With().Str("component", "executor").Logger(),
		execution.WithLimits(risk.Limits{MaxNotionalPerLeg: t.MaxNotional}))
	sched := scheduler.New(scheduler.Settings{
		Instrument:   t.Instrument,
		OrderSize:    t.OrderSize,
		CashQuantity: t.CashQuantity,
		TradeDelay:   t.TradeDelay(),
		LegDelay:     t.LegDelay(),
		MaxTrades:    t.MaxTrades,
	}, prices, exec, acct, gw, machine, log.With().Str("component", "scheduler").Logger())

	return &Controller{
		cfg:      cfg,
		gw:       gw,
		log:      log,
		machine:  machine,
		acct:     acct,
		sched:    sched,
		loopDone: make(chan struct{}),
	}
}

// State reports the current run state.
func (c *Controller) State() state.RunState { return c.machine.Load() }

// Totals returns the cumulative volume counters.
func (c *Controller) Totals() volume.State { return c.acct.Snapshot() }

// Start brings the session up: connect, resolve account, subscribe to balance updates, set
// leverage and read the free balance. Only the leverage step may fail without aborting. A stop
// requested before or during startup aborts it without an error.
func (c *Controller) Start(ctx context.Context) error {
	if !c.machine.Transition(state.Idle, state.Initializing) {
		if c.stopRequested() {
			c.log.Info().Msg("stop requested before startup, not starting")
			return nil
		}
		return &InitError{Stage: "state", Err: errors.New("controller already started")}
	}
	c.banner()

	if err := c.gw.Connect(ctx); err != nil {
		return c.initFailed("connect", err)
	}
	if c.stopRequested() {
		return c.startAborted("connect")
	}
	account, err := c.gw.Account(ctx)
	if err != nil {
		return c.initFailed("account", err)
	}
	c.log.Info().Str("account", account.ID).Str("wallet", account.Wallet).Msg("account resolved")
	if c.stopRequested() {
		return c.startAborted("account")
	}

	if err := c.gw.SubscribeBalance(ctx); err != nil {
		return c.initFailed("subscribe_balance", err)
	}
	if c.stopRequested() {
		return c.startAborted("subscribe_balance")
	}

	t := c.cfg.Trading
	if err := c.gw.SetLeverage(ctx, t.Instrument, t.Leverage); err != nil {
		c.log.Warn().Err(err).Str("instrument", t.Instrument).Int("leverage", t.Leverage).
			Str("details", details(err)).Msg("could not set leverage, continuing with venue default")
	} else {
		c.log.Info().Str("instrument", t.Instrument).Int("leverage", t.Leverage).Msg("leverage set")
	}

	balance, err := c.gw.AvailableBalance(ctx)
	if err != nil {
		return c.initFailed("balance", err)
	}
	c.log.Info().Float64("available", balance.Available).Str("currency", balance.Currency).Msg("available balance")

	if !c.machine.Transition(state.Initializing, state.Running) {
		c.log.Warn().Str("state", c.machine.Load().String()).Msg("stop requested during startup")
		return nil
	}
	c.log.Info().Msg("bot initialized")
	return nil
}

// Run starts the bot, drives the trade loop until it stops and then shuts down. Only
// startup failures are returned.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	c.loopStarted.Store(true)
	if c.machine.Load() == state.Running {
		reason := c.sched.Run(ctx)
		c.log.Info().Str("reason", string(reason)).Msg("trade loop exited")
	}
	close(c.loopDone)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	c.Shutdown(shutdownCtx)
	return nil
}

// Shutdown stops the loop, reports totals and releases the session. It is safe to call from
// several goroutines; all of them return once the first call has finished.
func (c *Controller) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		if c.machine.RequestStop() {
			c.log.Info().Msg("stopping bot")
		}

		if c.loopStarted.Load() {
			select {
			case <-c.loopDone:
			case <-ctx.Done():
				c.log.Warn().Err(ctx.Err()).Msg("trade loop still running at shutdown deadline")
			}
		}

		totals := c.acct.Snapshot()
		c.log.Info().
			Int("trades_executed", totals.TradesExecuted).
			Float64("total_volume", totals.TotalVolume).
			Msg("final trading statistics")

		c.release()
		c.machine.MarkStopped()
		c.log.Info().Msg("bot stopped")
	})
}

func (c *Controller) initFailed(stage string, err error) error {
	if c.stopRequested() {
		c.log.Info().Err(err).Str("stage", stage).Msg("startup interrupted by stop request")
		return c.startAborted(stage)
	}
	initErr := &InitError{Stage: stage, Err: err}
	c.log.Error().Err(err).Str("stage", stage).Str("details", details(err)).Msg("failed to initialize bot")
	c.release()
	c.machine.MarkStopped()
	return initErr
}

// startAborted ends a startup that lost the race against Shutdown. Shutdown owns the
// teardown, so only the session release is repeated here.
func (c *Controller) startAborted(stage string) error {
	c.log.Info().Str("stage", stage).Msg("startup aborted, bot stopping")
	c.release()
	return nil
}

func (c *Controller) stopRequested() bool {
	s := c.machine.Load()
	return s == state.Stopping || s == state.Stopped
}

func (c *Controller) release() {
	c.closeOnce.Do(func() {
		if err := c.gw.Close(); err != nil {
			fault := &ShutdownFault{Err: err}
			c.log.Error().Err(fault).Msg("error closing venue session")
		}
	})
}

func (c *Controller) banner() {
	t := c.cfg.Trading
	c.log.Info().
		Str("environment", c.cfg.Exchange.Environment).
		Str("venue", c.cfg.Exchange.Venue).
		Str("instrument", t.Instrument).
		Float64("order_size", t.OrderSize).
		Float64("cash_quantity", t.CashQuantity).
		Int("leverage", t.Leverage).
		Dur("trade_delay", t.TradeDelay()).
		Dur("leg_delay", t.LegDelay()).
		Int("max_trades", t.MaxTrades).
		Msg("volume bot starting")
}
