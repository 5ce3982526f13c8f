// Package execution submits the market orders that make up a trade cycle.
package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"volumebot-go/internal/exchange"
	"volumebot-go/internal/metrics"
	"volumebot-go/internal/risk"
)

// ErrOrderRejected matches every failed submission, whether the venue refused it or never answered.
var ErrOrderRejected = errors.New("order rejected")

// RejectedError carries the order that failed and whatever diagnostic the venue returned.
type RejectedError struct {
	Side       exchange.Side
	Instrument string
	Notional   float64
	Details    string
	Err        error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s %s order for %.6f rejected: %v", e.Side, e.Instrument, e.Notional, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

func (e *RejectedError) Is(target error) bool { return target == ErrOrderRejected }

// Result is the outcome of one accepted leg.
type Result struct {
	OrderID  string
	Side     exchange.Side
	Notional float64
	Accepted bool
}

// ResolveNotional picks the cash amount of an order: a configured cash quantity wins,
// otherwise orderSize is valued at the reference mid.
func ResolveNotional(cashQuantity, orderSize, mid float64) float64 {
	if cashQuantity > 0 {
		return cashQuantity
	}
	return orderSize * mid
}

// Executor submits IOC market orders for one instrument at a fixed leverage.
type Executor struct {
	placer     exchange.OrderPlacer
	instrument string
	leverage   int
	limits     risk.Limits
	log        zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLimits applies pre-trade limits to every leg.
func WithLimits(l risk.Limits) Option {
	return func(e *Executor) { e.limits = l }
}

// NewExecutor binds the executor to a venue, instrument and leverage.
func NewExecutor(placer exchange.OrderPlacer, instrument string, leverage int, log zerolog.Logger, opts ...Option) *Executor {
	executor := &Executor{placer: placer, instrument: instrument, leverage: leverage, log: log}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Execute submits one leg. It never retries; any failure is returned as a *RejectedError.
func (executor *Executor) Execute(ctx context.Context, side exchange.Side, notional float64) (Result, error) {
	if notional <= 0 {
		err := &RejectedError{Side: side, Instrument: executor.instrument, Notional: notional, Err: errors.New("notional must be positive")}
		executor.fail(err)
		return Result{Side: side, Notional: notional}, err
	}
	if err := executor.limits.Check(notional); err != nil {
		rejected := &RejectedError{Side: side, Instrument: executor.instrument, Notional: notional, Err: err}
		executor.fail(rejected)
		return Result{Side: side, Notional: notional}, rejected
	}

	req := exchange.OrderRequest{
		Instrument:    executor.instrument,
		Side:          side,
		Leverage:      executor.leverage,
		TimeInForce:   exchange.IOC,
		CashQuantity:  notional,
		ClientOrderID: uuid.New().String(),
	}
	executor.log.Info().Str("sym", req.Instrument).Str("side", string(side)).Float64("notional", notional).
		Int("leverage", req.Leverage).Str("client_order_id", req.ClientOrderID).Msg("submit order")

	order, err := executor.placer.CreateMarketOrder(ctx, req)
	if err != nil {
		rejected := &RejectedError{Side: side, Instrument: executor.instrument, Notional: notional, Err: err}
		var apiErr *exchange.APIError
		if errors.As(err, &apiErr) {
			rejected.Details = string(apiErr.Body)
		}
		executor.fail(rejected)
		return Result{Side: side, Notional: notional}, rejected
	}

	metrics.OrdersTotal.WithLabelValues(string(side), "accepted").Inc()
	executor.log.Info().Str("side", string(side)).Str("order_id", order.ID).Str("status", order.Status).Msg("order executed")
	return Result{OrderID: order.ID, Side: side, Notional: notional, Accepted: true}, nil
}

func (executor *Executor) fail(err *RejectedError) {
	metrics.OrdersTotal.WithLabelValues(string(err.Side), "rejected").Inc()
	evt := executor.log.Error().Err(err.Err).Str("side", string(err.Side)).Float64("notional", err.Notional)
	if err.Details != "" {
		evt = evt.Str("details", err.Details)
	}
	evt.Msg("order failed")
}
