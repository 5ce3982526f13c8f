package paper

import (
	"sync"
	"time"

	"volumebot-go/internal/exchange"
)

// Fill is one simulated execution.
type Fill struct {
	OrderID  string        `json:"order_id"`
	Symbol   string        `json:"symbol"`
	Side     exchange.Side `json:"side"`
	Qty      float64       `json:"qty"`
	Price    float64       `json:"price"`
	Notional float64       `json:"notional"`
	Ts       time.Time     `json:"ts"`
}

const defaultLedgerCapacity = 256

// Ledger keeps the most recent paper fills in memory; past capacity the oldest fill is dropped.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	fills    []Fill
}

// NewLedger creates an empty ledger holding at most capacity fills.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = defaultLedgerCapacity
	}
	return &Ledger{capacity: capacity, fills: make([]Fill, 0, capacity)}
}

// Record appends a fill, evicting the oldest one when the ledger is full.
func (l *Ledger) Record(fill Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.fills) == l.capacity {
		copy(l.fills, l.fills[1:])
		l.fills[len(l.fills)-1] = fill
		return
	}
	l.fills = append(l.fills, fill)
}

// Len reports how many fills are held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fills)
}

// Snapshot returns a copy of the recorded fills.
func (l *Ledger) Snapshot() []Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Last returns the most recent fill for symbol.
func (l *Ledger) Last(symbol string) (Fill, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.fills) - 1; i >= 0; i-- {
		if l.fills[i].Symbol == symbol {
			return l.fills[i], true
		}
	}
	return Fill{}, false
}
