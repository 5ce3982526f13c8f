package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"volumebot-go/internal/exchange"
)

var _ exchange.Gateway = (*Venue)(nil)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("paper venue closed")

const defaultLeverage = 1

// Venue is an in-memory exchange: a drifting mid price per instrument, immediate fills at
// the touch, and a margin Account behind it.
type Venue struct {
	log      zerolog.Logger
	account  *Account
	ledger   *Ledger
	recorder FillRecorder

	mu         sync.Mutex
	rng        *rand.Rand
	startPrice float64
	spreadBps  float64
	stepBps    float64
	mids       map[string]float64
	leverage   map[string]int
	closed     bool
}

// VenueOption configures Venue construction parameters.
type VenueOption func(*Venue)

// WithRecorder mirrors every fill into r.
func WithRecorder(r FillRecorder) VenueOption {
	return func(v *Venue) { v.recorder = r }
}

// WithSeed makes the price walk reproducible.
func WithSeed(seed uint64) VenueOption {
	return func(v *Venue) { v.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithSpread overrides the quoted spread and the per-fetch drift, both in basis points.
func WithSpread(spreadBps, stepBps float64) VenueOption {
	return func(v *Venue) {
		if spreadBps >= 0 {
			v.spreadBps = spreadBps
		}
		if stepBps >= 0 {
			v.stepBps = stepBps
		}
	}
}

// NewVenue funds a paper account with startingCash and quotes every instrument around startPrice.
func NewVenue(startingCash, startPrice float64, log zerolog.Logger, opts ...VenueOption) *Venue {
	v := &Venue{
		log:        log,
		account:    NewAccount(startingCash),
		ledger:     NewLedger(256),
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		startPrice: startPrice,
		spreadBps:  2,
		stepBps:    1,
		mids:       make(map[string]float64),
		leverage:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// PaperAccount exposes the backing margin account.
func (v *Venue) PaperAccount() *Account { return v.account }

// Ledger exposes the in-memory fill history.
func (v *Venue) Ledger() *Ledger { return v.ledger }

func (v *Venue) Connect(ctx context.Context) error {
	return v.checkOpen()
}

func (v *Venue) Account(ctx context.Context) (exchange.Account, error) {
	if err := v.checkOpen(); err != nil {
		return exchange.Account{}, err
	}
	return exchange.Account{ID: "paper", Wallet: "paper"}, nil
}

func (v *Venue) SubscribeBalance(ctx context.Context) error {
	return v.checkOpen()
}

func (v *Venue) AvailableBalance(ctx context.Context) (exchange.Balance, error) {
	if err := v.checkOpen(); err != nil {
		return exchange.Balance{}, err
	}
	return exchange.Balance{Available: v.account.Available(), Currency: "USDT"}, nil
}

func (v *Venue) Positions(ctx context.Context) ([]exchange.Position, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	return v.account.OpenPositions(), nil
}

func (v *Venue) SetLeverage(ctx context.Context, instrument string, leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("leverage must be >= 1, got %d", leverage)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.leverage[instrument] = leverage
	return nil
}

// FetchMarketDepth advances the price walk one step and quotes a single level each side.
func (v *Venue) FetchMarketDepth(ctx context.Context, instrument string, maxLevel int) (exchange.Depth, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return exchange.Depth{}, ErrClosed
	}
	mid := v.stepLocked(instrument)
	bid, ask := v.touchLocked(mid)
	return exchange.Depth{
		Bids: []exchange.Level{{Price: bid, Quantity: 10}},
		Asks: []exchange.Level{{Price: ask, Quantity: 10}},
	}, nil
}

// FetchTrades returns the most recent paper fill, if any.
func (v *Venue) FetchTrades(ctx context.Context, instrument string, limit int) ([]exchange.Trade, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	fill, ok := v.ledger.Last(instrument)
	if !ok || limit < 1 {
		return nil, nil
	}
	return []exchange.Trade{{Price: fill.Price, Quantity: fill.Qty, Side: fill.Side}}, nil
}

// CreateMarketOrder fills the whole notional at the touch or rejects it; nothing rests.
func (v *Venue) CreateMarketOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	if req.CashQuantity <= 0 {
		return exchange.Order{}, reject(http.StatusBadRequest, "cash quantity must be positive")
	}
	if req.TimeInForce != exchange.IOC {
		return exchange.Order{}, reject(http.StatusBadRequest, "only IOC market orders are supported")
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return exchange.Order{}, ErrClosed
	}
	mid, ok := v.mids[req.Instrument]
	if !ok {
		mid = v.stepLocked(req.Instrument)
	}
	bid, ask := v.touchLocked(mid)
	leverage := req.Leverage
	if leverage < 1 {
		leverage = v.leverage[req.Instrument]
	}
	if leverage < 1 {
		leverage = defaultLeverage
	}
	v.mu.Unlock()

	price := ask
	if req.Side == exchange.Sell {
		price = bid
	}
	qty := req.CashQuantity / price
	if err := v.account.MarketFill(req.Instrument, req.Side, qty, price, leverage); err != nil {
		return exchange.Order{}, reject(http.StatusBadRequest, err.Error())
	}

	fill := Fill{
		OrderID:  uuid.New().String(),
		Symbol:   req.Instrument,
		Side:     req.Side,
		Qty:      qty,
		Price:    price,
		Notional: req.CashQuantity,
		Ts:       time.Now().UTC(),
	}
	v.ledger.Record(fill)
	if v.recorder != nil {
		v.recorder.Record(fill)
	}
	v.log.Debug().Str("sym", fill.Symbol).Str("side", string(fill.Side)).Float64("qty", qty).Float64("px", price).Msg("paper fill")
	return exchange.Order{ID: fill.OrderID, Status: "FILLED"}, nil
}

// Close marks the venue closed and closes the recorder when it owns a file.
func (v *Venue) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	marks := make(map[string]float64, len(v.mids))
	for sym, mid := range v.mids {
		marks[sym] = mid
	}
	v.mu.Unlock()

	snap := v.account.Snapshot(marks)
	v.log.Info().
		Float64("starting_cash", v.account.StartingCash()).
		Float64("cash", snap.Cash).
		Float64("realized_pnl", snap.RealizedPnL).
		Float64("equity", snap.Equity).
		Int("open_positions", len(snap.Positions)).
		Int("fills", v.ledger.Len()).
		Msg("paper session closed")
	if c, ok := v.recorder.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (v *Venue) checkOpen() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	return nil
}

func (v *Venue) stepLocked(instrument string) float64 {
	mid, ok := v.mids[instrument]
	if !ok {
		mid = v.startPrice
	} else if v.stepBps > 0 {
		mid *= 1 + (v.rng.Float64()*2-1)*v.stepBps/10_000
	}
	mid = math.Max(mid, epsilon)
	v.mids[instrument] = mid
	return mid
}

func (v *Venue) touchLocked(mid float64) (bid, ask float64) {
	half := mid * v.spreadBps / 20_000
	return mid - half, mid + half
}

func reject(status int, reason string) error {
	body := fmt.Sprintf(`{"error":%q}`, reason)
	return &exchange.APIError{StatusCode: status, Message: http.StatusText(status), Body: []byte(body)}
}
