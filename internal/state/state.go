// Package state holds the run-state machine shared by the controller and the scheduler.
package state

import (
	"sync"

	"volumebot-go/internal/metrics"
)

// RunState is the lifecycle phase of the bot.
type RunState int32

const (
	Idle RunState = iota
	Initializing
	Running
	Stopping
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Machine is a RunState with guarded transitions. Stopping() is closed on the first stop
// request so sleepers can wake up.
type Machine struct {
	mu       sync.Mutex
	current  RunState
	stopping chan struct{}
	stopOnce sync.Once
}

func NewMachine() *Machine {
	metrics.RunState.Set(float64(Idle))
	return &Machine{stopping: make(chan struct{})}
}

// Load returns the current state.
func (m *Machine) Load() RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves from -> to and reports whether the machine was in from.
func (m *Machine) Transition(from, to RunState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != from {
		return false
	}
	m.set(to)
	return true
}

// RequestStop moves any state short of Stopped to Stopping. It reports whether this call
// made the change.
func (m *Machine) RequestStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == Stopping || m.current == Stopped {
		return false
	}
	m.set(Stopping)
	return true
}

// MarkStopped is terminal.
func (m *Machine) MarkStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(Stopped)
}

// Stopping is closed once a stop has been requested.
func (m *Machine) Stopping() <-chan struct{} { return m.stopping }

func (m *Machine) set(to RunState) {
	m.current = to
	metrics.RunState.Set(float64(to))
	if to == Stopping || to == Stopped {
		m.stopOnce.Do(func() { close(m.stopping) })
	}
}
