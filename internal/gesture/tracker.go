package gesture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/detector/landmark"
)

// Config holds the tunables of one Tracker.
type Config struct {
	Cooldown   time.Duration
	Thresholds Thresholds
}

// DefaultConfig returns a one second cooldown with the 4/1 thresholds.
func DefaultConfig() Config {
	return Config{
		Cooldown:   DefaultCooldown,
		Thresholds: DefaultThresholds(),
	}
}

// Validate checks the cooldown and thresholds.
func (c Config) Validate() error {
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown)
	}
	return c.Thresholds.Validate()
}

// Observation is what the tracker saw on the most recent accepted frame.
type Observation struct {
	Timestamp float64     `json:"timestamp"`
	Count     FingerCount `json:"count"`
	Class     Class       `json:"class"`
	Remaining float64     `json:"cooldown_remaining"`
}

// Tracker runs extraction, classification, debouncing and dispatch for one
// hand stream. Process must be called from a single goroutine; State and
// Snapshot may be read concurrently.
type Tracker struct {
	thresholds Thresholds
	debouncer  *Debouncer
	handler    Handler
	logger     *zap.SugaredLogger

	mu    sync.RWMutex
	state State
	last  Observation
}

// NewTracker creates a Tracker that dispatches events to h.
func NewTracker(cfg Config, h Handler, logger *zap.SugaredLogger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	d := NewDebouncer(cfg.Cooldown)
	return &Tracker{
		thresholds: cfg.Thresholds,
		debouncer:  d,
		handler:    h,
		logger:     logger,
		state:      d.State(),
		last:       Observation{Count: NoHand, Class: Neutral, Timestamp: -1},
	}, nil
}

// Process handles one frame. It returns the emitted event, if any. Rejected
// frames return an *InputError or *SequencingError and leave state untouched;
// a failing handler returns a *HandlerError after the state has advanced.
func (t *Tracker) Process(frame landmark.Frame) (Event, bool, error) {
	if err := t.debouncer.Check(frame.Timestamp); err != nil {
		t.logger.Warnw("frame rejected", "reason", "sequencing", "error", err)
		return Event{}, false, err
	}

	count, err := Extract(frame)
	if err != nil {
		t.logger.Warnw("frame rejected", "reason", "input", "error", err)
		return Event{}, false, err
	}

	class := t.thresholds.Classify(count)
	ev, emitted, err := t.debouncer.Step(class, frame.Timestamp)
	if err != nil {
		return Event{}, false, err
	}

	t.mu.Lock()
	t.state = t.debouncer.State()
	t.last = Observation{
		Timestamp: frame.Timestamp,
		Count:     count,
		Class:     class,
		Remaining: t.debouncer.Remaining(frame.Timestamp),
	}
	t.mu.Unlock()

	if !emitted {
		return Event{}, false, nil
	}

	t.logger.Infow("gesture emitted", "kind", ev.Kind, "timestamp", ev.Timestamp, "fingers", int(count))
	if err := Dispatch(t.handler, ev); err != nil {
		return ev, true, err
	}
	return ev, true, nil
}

// State returns the debounce memory as of the last accepted frame.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot returns the last accepted frame's observation.
func (t *Tracker) Snapshot() Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Cooldown returns the configured cooldown.
func (t *Tracker) Cooldown() time.Duration {
	return t.debouncer.Cooldown()
}
