// Package earlystop decides when a training run has stopped improving.
package earlystop

import (
	"errors"
	"fmt"
)

// Mode is the direction in which the monitored value improves.
type Mode int

const (
	// Minimize treats lower values as better (losses).
	Minimize Mode = iota
	// Maximize treats higher values as better (accuracies).
	Maximize
)

func (m Mode) String() string {
	switch m {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the monitor's position in its lifecycle.
type State int

const (
	Improving State = iota
	Plateaued
	Stopped
)

func (s State) String() string {
	switch s {
	case Improving:
		return "improving"
	case Plateaued:
		return "plateaued"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// tolerance absorbs float rounding when comparing an improvement to a
// positive minDelta, so 1.0 -> 0.99 with minDelta 0.01 is not an improvement.
const tolerance = 1e-9

// Monitor tracks the best value seen and counts observations since the last
// qualifying improvement. Once stopped it stays stopped.
type Monitor struct {
	patience int
	minDelta float64
	mode     Mode

	best    float64
	hasBest bool
	counter int
	stopped bool
}

// New returns a Monitor. patience and minDelta must be non-negative.
func New(patience int, minDelta float64, mode Mode) (*Monitor, error) {
	if patience < 0 {
		return nil, errors.New("patience must be non-negative")
	}
	if minDelta < 0 {
		return nil, errors.New("min delta must be non-negative")
	}
	if mode != Minimize && mode != Maximize {
		return nil, fmt.Errorf("invalid mode %v", mode)
	}
	return &Monitor{patience: patience, minDelta: minDelta, mode: mode}, nil
}

// Observe feeds one value and reports whether the monitor is now stopped.
func (m *Monitor) Observe(v float64) bool {
	if m.stopped {
		return true
	}
	if !m.hasBest {
		m.best, m.hasBest = v, true
		return false
	}
	if m.improves(v) {
		m.best = v
		m.counter = 0
		return false
	}
	m.counter++
	if m.counter >= m.patience {
		m.stopped = true
	}
	return m.stopped
}

func (m *Monitor) improves(v float64) bool {
	delta := m.best - v
	if m.mode == Maximize {
		delta = v - m.best
	}
	if m.minDelta == 0 {
		return delta > 0
	}
	return delta-m.minDelta > tolerance
}

// State returns Improving, Plateaued or Stopped.
func (m *Monitor) State() State {
	switch {
	case m.stopped:
		return Stopped
	case m.counter > 0:
		return Plateaued
	default:
		return Improving
	}
}

// Best returns the best value observed and whether any value was observed.
func (m *Monitor) Best() (float64, bool) { return m.best, m.hasBest }

// Counter is the number of observations since the last improvement.
func (m *Monitor) Counter() int { return m.counter }

// Stopped reports whether patience has been exhausted.
func (m *Monitor) Stopped() bool { return m.stopped }

// Mode returns the configured direction.
func (m *Monitor) Mode() Mode { return m.mode }
