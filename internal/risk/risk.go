// Package risk holds pre-trade guards applied before an order leaves the process.
package risk

import "fmt"

// Limits caps the cash notional of a single leg. Zero disables the cap.
type Limits struct {
	MaxNotionalPerLeg float64
}

func (l Limits) Allow(notional float64) bool {
	return l.MaxNotionalPerLeg <= 0 || notional <= l.MaxNotionalPerLeg
}

// Check is Allow with a reason.
func (l Limits) Check(notional float64) error {
	if l.Allow(notional) {
		return nil
	}
	return fmt.Errorf("notional %.6f exceeds per-leg cap %.6f", notional, l.MaxNotionalPerLeg)
}
