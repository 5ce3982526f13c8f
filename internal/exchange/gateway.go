// Package exchange defines the venue surface the bot trades through and ships a REST/WebSocket client for it.
package exchange

import (
	"context"
	"fmt"
	"strings"
)

// Side enumerates order directions.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// TimeInForce controls how long an order may rest. The bot only sends IOC.
type TimeInForce string

const IOC TimeInForce = "IOC"

// Level is one price level of the book.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Depth is a (possibly truncated) order book; index 0 is the best level.
type Depth struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// Trade is a public print.
type Trade struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Side     Side    `json:"side"`
}

// OrderRequest is a market order sized by cash notional.
type OrderRequest struct {
	Instrument    string      `json:"instrument"`
	Side          Side        `json:"side"`
	Leverage      int         `json:"leverage"`
	TimeInForce   TimeInForce `json:"timeInForce"`
	CashQuantity  float64     `json:"-"`
	ClientOrderID string      `json:"clientOrderId,omitempty"`
}

// Order is the venue's acknowledgement of a submitted order.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Account identifies the trading account the session resolved to.
type Account struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"`
}

// Balance is the margin currently free for new orders.
type Balance struct {
	Available float64 `json:"availableBalance"`
	Currency  string  `json:"currency"`
}

// Position is an open position as reported by the venue.
type Position struct {
	Instrument string  `json:"instrument"`
	Side       Side    `json:"side"`
	Quantity   float64 `json:"quantity"`
	AvgPrice   float64 `json:"avgPrice"`
}

// MarketData is the read-only price surface.
type MarketData interface {
	FetchMarketDepth(ctx context.Context, instrument string, maxLevel int) (Depth, error)
	FetchTrades(ctx context.Context, instrument string, limit int) ([]Trade, error)
}

// OrderPlacer submits market orders.
type OrderPlacer interface {
	CreateMarketOrder(ctx context.Context, req OrderRequest) (Order, error)
}

// PositionSource lists open positions.
type PositionSource interface {
	Positions(ctx context.Context) ([]Position, error)
}

// Gateway is everything the bot needs from a venue session.
type Gateway interface {
	MarketData
	OrderPlacer
	PositionSource

	Connect(ctx context.Context) error
	Account(ctx context.Context) (Account, error)
	SubscribeBalance(ctx context.Context) error
	AvailableBalance(ctx context.Context) (Balance, error)
	SetLeverage(ctx context.Context, instrument string, leverage int) error
	Close() error
}

// APIError is a non-2xx answer from the venue; Body keeps the raw diagnostic payload.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if msg := strings.TrimSpace(string(e.Body)); msg != "" {
		return fmt.Sprintf("venue error %d: %s: %s", e.StatusCode, e.Message, msg)
	}
	return fmt.Sprintf("venue error %d: %s", e.StatusCode, e.Message)
}
