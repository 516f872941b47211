// Package app drives the frame loop: it pulls landmark frames from a source and
// feeds them to a gesture tracker.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/detector"
	"github.com/ayusman/handswitch/internal/gesture"
)

// Config holds the frame loop settings.
type Config struct {
	Gesture gesture.Config
	// FPS is the rate at which frames are pulled from the source.
	FPS int
	// StopOnHandlerError ends the loop on the first handler failure instead of
	// logging it and carrying on.
	StopOnHandlerError bool
	// StartDisabled leaves detection paused until SetEnabled(true).
	StartDisabled bool
}

// App owns one tracker and the source feeding it.
type App struct {
	config  Config
	source  detector.Source
	tracker *gesture.Tracker
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	enabled bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// New creates an App. Emitted events go to handler.
func New(config Config, source detector.Source, handler gesture.Handler, logger *zap.SugaredLogger) (*App, error) {
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if config.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", config.FPS)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	tracker, err := gesture.NewTracker(config.Gesture, handler, logger.Named("tracker"))
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}

	return &App{
		config:  config,
		source:  source,
		tracker: tracker,
		logger:  logger,
		enabled: !config.StartDisabled,
	}, nil
}

// SetEnabled pauses or resumes detection. Paused ticks do not read the source.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed {
		a.logger.Infow("detection toggled", "enabled", enabled)
	}
}

// IsEnabled reports whether detection is running.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Tracker returns the tracker fed by the loop.
func (a *App) Tracker() *gesture.Tracker {
	return a.tracker
}

// State returns the tracker's debounce memory.
func (a *App) State() gesture.State {
	return a.tracker.State()
}

// Snapshot returns the tracker's last observation.
func (a *App) Snapshot() gesture.Observation {
	return a.tracker.Snapshot()
}

// Cooldown returns the tracker's cooldown.
func (a *App) Cooldown() time.Duration {
	return a.tracker.Cooldown()
}

// Start runs the frame loop in a new goroutine. Starting a running App is a no-op.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.err = nil

	go func(done chan struct{}) {
		defer close(done)
		err := a.Run(ctx)

		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
	}(a.done)

	a.logger.Infow("frame loop started", "fps", a.config.FPS)
}

// Stop cancels the frame loop and waits for it to exit.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.logger.Info("frame loop stopped")
}

// Done is closed when a loop started by Start exits. It is nil if the App was never started.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Err returns the error that ended the last loop started by Start, if any.
func (a *App) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Close releases the source. Call it after Stop.
func (a *App) Close() error {
	return a.source.Close()
}
