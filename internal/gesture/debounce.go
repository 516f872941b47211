package gesture

import (
	"math"
	"time"
)

// Unset is the last-emitted value before any event has fired.
const Unset Class = "unset"

// DefaultCooldown is the minimum interval between two emitted events.
const DefaultCooldown = time.Second

// Event is an emitted open/closed edge.
type Event struct {
	Kind      Class   `json:"kind"`
	Timestamp float64 `json:"timestamp"`
}

// State is the debounce memory: what was last emitted and when.
type State struct {
	LastEmitted      Class   `json:"last_emitted"`
	LastEmissionTime float64 `json:"last_emission_time"`
}

// InitialState returns the state before any emission. The emission time is
// -Inf so the first qualifying gesture fires immediately.
func InitialState() State {
	return State{LastEmitted: Unset, LastEmissionTime: math.Inf(-1)}
}

// Next applies the emission rule for one classified frame. Neutral frames and
// suppressed frames return the state unchanged.
func (s State) Next(c Class, t float64, cooldown time.Duration) (State, Event, bool) {
	if c != Open && c != Closed {
		return s, Event{}, false
	}
	if c == s.LastEmitted {
		return s, Event{}, false
	}
	if t-s.LastEmissionTime < cooldown.Seconds() {
		return s, Event{}, false
	}
	return State{LastEmitted: c, LastEmissionTime: t}, Event{Kind: c, Timestamp: t}, true
}

// Remaining returns how much of the cooldown is left at time t, never negative.
func (s State) Remaining(t float64, cooldown time.Duration) float64 {
	left := cooldown.Seconds() - (t - s.LastEmissionTime)
	if left < 0 || math.IsNaN(left) {
		return 0
	}
	return left
}

// Debouncer owns one State and enforces frame ordering. It is not safe for
// concurrent use; give each tracked hand or camera its own Debouncer.
type Debouncer struct {
	state     State
	cooldown  time.Duration
	lastFrame float64
}

// NewDebouncer creates a Debouncer. Negative cooldowns are treated as zero.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Debouncer{
		state:     InitialState(),
		cooldown:  cooldown,
		lastFrame: math.Inf(-1),
	}
}

// Step feeds one classified frame. A frame older than the previous accepted
// frame, or with a non-finite timestamp, is rejected with a SequencingError
// and changes nothing.
func (d *Debouncer) Step(c Class, t float64) (Event, bool, error) {
	if err := d.Check(t); err != nil {
		return Event{}, false, err
	}
	d.lastFrame = t

	next, ev, ok := d.state.Next(c, t, d.cooldown)
	d.state = next
	return ev, ok, nil
}

// Check reports whether a frame at t would be accepted, without consuming it.
func (d *Debouncer) Check(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < d.lastFrame {
		return &SequencingError{Timestamp: t, Previous: d.lastFrame}
	}
	return nil
}

// State returns a copy of the debounce memory.
func (d *Debouncer) State() State {
	return d.state
}

// Cooldown returns the configured cooldown.
func (d *Debouncer) Cooldown() time.Duration {
	return d.cooldown
}

// Remaining returns the cooldown left at time t.
func (d *Debouncer) Remaining(t float64) float64 {
	return d.state.Remaining(t, d.cooldown)
}
