// Package volume keeps the running totals of completed cycles.
package volume

import "sync"

// State is a copy of the totals. TradesExecuted counts completed buy+sell cycles and
// TotalVolume is the notional of both legs of each, in quote currency.
type State struct {
	TradesExecuted int
	TotalVolume    float64
}

// Accountant owns State. Shutdown reads it from another goroutine, hence the mutex.
type Accountant struct {
	mu    sync.Mutex
	state State
}

func NewAccountant() *Accountant { return &Accountant{} }

// RecordCycle credits one completed cycle: both legs of notionalPerLeg.
func (a *Accountant) RecordCycle(notionalPerLeg float64) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.TradesExecuted++
	a.state.TotalVolume += notionalPerLeg * 2
	return a.state
}

func (a *Accountant) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
