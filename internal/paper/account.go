package paper

import (
	"errors"
	"math"
	"sync"

	"volumebot-go/internal/exchange"
)

const epsilon = 1e-9

// ErrInsufficientMargin is returned when a fill would push used margin above collateral.
var ErrInsufficientMargin = errors.New("insufficient margin")

type positionState struct {
	Qty      float64 // signed: >0 long, <0 short
	AvgPrice float64
	Leverage int
}

// Account tracks collateral, realized PnL, and per-symbol perpetual positions in paper mode.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	positions    map[string]positionState
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty        float64
	AvgPrice   float64
	Margin     float64
	Unrealized float64
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account funded with starting collateral.
func NewAccount(startingCash float64) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]positionState),
	}
}

// StartingCash returns the initial collateral.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill applies a fill of qty at price. Reducing fills realize PnL into cash; the part of
// a fill that opens or extends exposure must be covered by free margin at the given leverage.
func (a *Account) MarketFill(symbol string, side exchange.Side, qty, price float64, leverage int) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}
	if leverage < 1 {
		leverage = 1
	}

	var delta float64
	switch side {
	case exchange.Buy:
		delta = qty
	case exchange.Sell:
		delta = -qty
	default:
		return errors.New("unknown order side")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	if state.Leverage == 0 {
		state.Leverage = leverage
	}

	opening := qty
	if state.Qty != 0 && math.Signbit(state.Qty) != math.Signbit(delta) {
		closing := math.Min(math.Abs(state.Qty), qty)
		opening = qty - closing
		direction := 1.0
		if state.Qty < 0 {
			direction = -1
		}
		realized := (price - state.AvgPrice) * closing * direction
		a.realizedPnL += realized
		a.cash += realized
		state.Qty += math.Copysign(closing, delta)
		if math.Abs(state.Qty) <= epsilon {
			state.Qty = 0
			state.AvgPrice = 0
		}
	}

	if opening > epsilon {
		required := opening * price / float64(leverage)
		if required > a.availableLocked()+epsilon {
			return ErrInsufficientMargin
		}
		newQty := math.Abs(state.Qty) + opening
		state.AvgPrice = (state.AvgPrice*math.Abs(state.Qty) + price*opening) / newQty
		state.Qty = math.Copysign(newQty, delta)
		state.Leverage = leverage
	}

	if state.Qty == 0 {
		delete(a.positions, symbol)
	} else {
		a.positions[symbol] = state
	}
	return nil
}

func (a *Account) availableLocked() float64 {
	used := 0.0
	for _, pos := range a.positions {
		used += math.Abs(pos.Qty) * pos.AvgPrice / float64(pos.Leverage)
	}
	return a.cash - used
}

// Available reports collateral not tied up as position margin.
func (a *Account) Available() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availableLocked()
}

// Position returns the signed position size for the supplied symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}

// OpenPositions lists positions in venue format.
func (a *Account) OpenPositions() []exchange.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]exchange.Position, 0, len(a.positions))
	for sym, pos := range a.positions {
		side := exchange.Buy
		if pos.Qty < 0 {
			side = exchange.Sell
		}
		out = append(out, exchange.Position{Instrument: sym, Side: side, Quantity: math.Abs(pos.Qty), AvgPrice: pos.AvgPrice})
	}
	return out
}

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		unrealized := 0.0
		if mark := prices[sym]; mark > 0 {
			unrealized = (mark - pos.AvgPrice) * pos.Qty
		}
		positions[sym] = PositionSnapshot{
			Qty:        pos.Qty,
			AvgPrice:   pos.AvgPrice,
			Margin:     math.Abs(pos.Qty) * pos.AvgPrice / float64(pos.Leverage),
			Unrealized: unrealized,
		}
		equity += unrealized
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Positions:   positions,
	}
}
