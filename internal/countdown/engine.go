// Package countdown turns a host-configured delay into a one-second tick-down
// that fires a single expiry.
package countdown

import (
	"fmt"
	"sync"
	"time"
)

// State is the engine's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Expired
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Expired:
		return "expired"
	default:
		return "idle"
	}
}

// Engine counts whole seconds down to zero. The expiry transition is reported
// exactly once per run no matter how many goroutines tick it.
type Engine struct {
	mu        sync.Mutex
	state     State
	total     int
	remaining int
}

// New returns an idle engine.
func New() *Engine {
	return &Engine{}
}

// Start arms the engine from a descriptor. It reports true when the duration
// is zero, in which case the engine is already Expired.
func (e *Engine) Start(desc string) bool {
	return e.StartDuration(Parse(desc))
}

// StartDuration arms the engine for d, rounded down to whole seconds.
// Starting an engine that is not idle is a no-op.
func (e *Engine) StartDuration(d time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return false
	}
	e.total = int(d / time.Second)
	e.remaining = e.total
	if e.total <= 0 {
		e.remaining = 0
		e.state = Expired
		return true
	}
	e.state = Running
	return false
}

// Tick advances one second. It returns true on the tick that reaches zero
// and false on every other call.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return false
	}
	e.remaining--
	if e.remaining > 0 {
		return false
	}
	e.remaining = 0
	e.state = Expired
	return true
}

// Stop returns to Idle with the remaining time reset to the full duration,
// so the next Start counts from the configured length again.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Idle
	e.remaining = e.total
}

// Observe follows an externally driven active flag: a rising edge starts the
// engine, a falling edge stops it. It reports true when starting expired at once.
func (e *Engine) Observe(active bool, desc string) bool {
	return e.ObserveDuration(active, Parse(desc))
}

// ObserveDuration is Observe with an already parsed duration.
func (e *Engine) ObserveDuration(active bool, d time.Duration) bool {
	switch st := e.State(); {
	case active && st == Idle:
		return e.StartDuration(d)
	case !active && st != Idle:
		e.Stop()
	}
	return false
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Remaining returns the time left in the current run.
func (e *Engine) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.remaining) * time.Second
}

// Total returns the full duration of the current or last run.
func (e *Engine) Total() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.total) * time.Second
}

// Display formats the remaining time as M:SS.
func Display(d time.Duration) string {
	s := int(d / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
