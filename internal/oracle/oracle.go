// Package oracle derives a reference price for one instrument from the venue's book or last print.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"volumebot-go/internal/exchange"
)

// ErrPriceUnavailable means no usable price could be obtained, whatever the reason.
var ErrPriceUnavailable = errors.New("no market price available")

// Quote is a reference price. Mid is the touch midpoint, or the last trade price when the
// book is one-sided or empty, in which case Bid, Ask and Mid are equal.
type Quote struct {
	Bid float64
	Ask float64
	Mid float64
}

// Oracle reads prices through a MarketData source. It never retries.
type Oracle struct {
	md  exchange.MarketData
	log zerolog.Logger
}

func New(md exchange.MarketData, log zerolog.Logger) *Oracle {
	return &Oracle{md: md, log: log}
}

// CurrentPrice returns the top-of-book quote, falling back to the last trade. Every failure,
// transport or empty data, comes back as ErrPriceUnavailable.
func (o *Oracle) CurrentPrice(ctx context.Context, instrument string) (Quote, error) {
	depth, err := o.md.FetchMarketDepth(ctx, instrument, 1)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if bid, ask, ok := touch(depth); ok {
		return Quote{Bid: bid, Ask: ask, Mid: (bid + ask) / 2}, nil
	}

	trades, err := o.md.FetchTrades(ctx, instrument, 1)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if len(trades) > 0 && trades[0].Price > 0 {
		last := trades[0].Price
		o.log.Debug().Str("instrument", instrument).Float64("last", last).Msg("book empty, using last trade")
		return Quote{Bid: last, Ask: last, Mid: last}, nil
	}
	return Quote{}, ErrPriceUnavailable
}

func touch(depth exchange.Depth) (bid, ask float64, ok bool) {
	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return 0, 0, false
	}
	bid, ask = depth.Bids[0].Price, depth.Asks[0].Price
	if bid <= 0 || ask <= 0 {
		return 0, 0, false
	}
	return bid, ask, true
}
