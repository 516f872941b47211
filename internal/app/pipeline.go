package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/handswitch/internal/detector"
	"github.com/ayusman/handswitch/internal/detector/landmark"
	"github.com/ayusman/handswitch/internal/gesture"
)

// Run pulls one frame per tick until ctx is cancelled or the source runs dry.
// It returns nil in both cases. With StopOnHandlerError set, the first handler
// failure ends the loop and is returned.
//
// Per tick:
//  1. skip if detection is paused
//  2. read a frame; source errors are logged and the tick is dropped
//  3. hand the frame to the tracker (see Step)
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.source.Next(ctx)
		switch {
		case errors.Is(err, detector.ErrSourceExhausted):
			a.logger.Info("frame source exhausted")
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			a.logger.Warnw("frame dropped", "error", err)
			continue
		}

		if err := a.Step(frame); err != nil {
			return err
		}
	}
}

// Step processes a single frame. Rejected frames are dropped. A handler
// failure is logged, and returned only when StopOnHandlerError is set.
func (a *App) Step(frame landmark.Frame) error {
	_, _, err := a.tracker.Process(frame)
	if err == nil {
		return nil
	}

	var handlerErr *gesture.HandlerError
	if !errors.As(err, &handlerErr) {
		// The tracker already logged why the frame was rejected.
		return nil
	}

	a.logger.Errorw("event handler failed", "kind", handlerErr.Event.Kind, "timestamp", handlerErr.Event.Timestamp, "error", handlerErr.Err)
	if a.config.StopOnHandlerError {
		return err
	}
	return nil
}
