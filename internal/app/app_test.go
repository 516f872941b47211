package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/handswitch/internal/detector"
	"github.com/ayusman/handswitch/internal/detector/landmark"
	"github.com/ayusman/handswitch/internal/gesture"
	"github.com/ayusman/handswitch/internal/store"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) OnOpen(ts float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "open")
	return r.err
}

func (r *recorder) OnClose(ts float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "close")
	return r.err
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func open(ts float64) landmark.Frame {
	h := landmark.OpenPalm()
	return landmark.FrameFromHand(ts, &h)
}

func fist(ts float64) landmark.Frame {
	h := landmark.Fist()
	return landmark.FrameFromHand(ts, &h)
}

func newTestApp(t *testing.T, cfg Config, src detector.Source, h gesture.Handler) *App {
	t.Helper()
	if cfg.FPS == 0 {
		cfg.FPS = 1000
	}
	if cfg.Gesture == (gesture.Config{}) {
		cfg.Gesture = gesture.DefaultConfig()
	}
	a, err := New(cfg, src, h, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestApp_Run_DispatchesEvents(t *testing.T) {
	rec := &recorder{}
	src := detector.NewReplaySource(
		open(0),
		fist(0.5), // cooldown
		fist(1.2),
		landmark.Frame{Timestamp: 1.3}, // no hand
		open(1.4),                              // cooldown
		open(2.5),
	)
	a := newTestApp(t, Config{}, src, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff([]string{"open", "close", "open"}, rec.Calls()); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
	if src.Remaining() != 0 {
		t.Errorf("expected every frame consumed, %d left", src.Remaining())
	}
	if got := a.State(); got.LastEmitted != gesture.Open || got.LastEmissionTime != 2.5 {
		t.Errorf("unexpected final state %+v", got)
	}
}

func TestApp_Run_SkipsRejectedFrames(t *testing.T) {
	rec := &recorder{}
	short := landmark.Frame{Timestamp: 0.1, Landmarks: make([]landmark.Point3D, 19)}
	src := detector.NewReplaySource(open(1), short, open(0.5), fist(2.5))
	a := newTestApp(t, Config{}, src, rec)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"open", "close"}, rec.Calls()); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestApp_Run_HandlerErrorPolicy(t *testing.T) {
	boom := errors.New("relay offline")

	t.Run("log and continue", func(t *testing.T) {
		rec := &recorder{err: boom}
		a := newTestApp(t, Config{}, detector.NewReplaySource(open(0), fist(2)), rec)

		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(rec.Calls()) != 2 {
			t.Errorf("expected both events dispatched, got %v", rec.Calls())
		}
	})

	t.Run("stop on handler error", func(t *testing.T) {
		rec := &recorder{err: boom}
		src := detector.NewReplaySource(open(0), fist(2))
		a := newTestApp(t, Config{StopOnHandlerError: true}, src, rec)

		err := a.Run(context.Background())
		var handlerErr *gesture.HandlerError
		if !errors.As(err, &handlerErr) {
			t.Fatalf("Run() error = %v, want *gesture.HandlerError", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("expected the handler's error to be wrapped, got %v", err)
		}
		if handlerErr.Event.Kind != gesture.Open {
			t.Errorf("expected failing event to be open, got %s", handlerErr.Event.Kind)
		}
		if src.Remaining() != 1 {
			t.Errorf("loop should stop right after the failure, %d frames left", src.Remaining())
		}
	})
}

func TestApp_Disabled(t *testing.T) {
	rec := &recorder{}
	src := detector.NewReplaySource(open(0))
	a := newTestApp(t, Config{StartDisabled: true}, src, rec)

	if a.IsEnabled() {
		t.Fatal("app should start disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.Remaining() != 1 {
		t.Error("a paused loop must not read the source")
	}

	a.SetEnabled(true)
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"open"}, rec.Calls()); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}

// blockingSource never runs dry; it serves no-hand frames until closed.
type blockingSource struct {
	mu     sync.Mutex
	t      float64
	closed bool
}

func (s *blockingSource) Next(ctx context.Context) (landmark.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t += 0.01
	return landmark.Frame{Timestamp: s.t}, nil
}

func (s *blockingSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestApp_StartStop(t *testing.T) {
	src := &blockingSource{}
	a := newTestApp(t, Config{FPS: 200}, src, &recorder{})

	a.Start(context.Background())
	a.Start(context.Background()) // no-op while running

	done := a.Done()
	if done == nil {
		t.Fatal("Done() should be set after Start")
	}

	time.Sleep(30 * time.Millisecond)
	a.Stop()

	select {
	case <-done:
	default:
		t.Fatal("loop should have exited after Stop")
	}
	if err := a.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after a clean stop", err)
	}
	if a.Snapshot().Class != gesture.Neutral {
		t.Errorf("expected neutral observation, got %+v", a.Snapshot())
	}

	a.Stop() // stopping twice is harmless

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !src.closed {
		t.Error("Close() should close the source")
	}
}

func TestApp_Err_AfterHandlerFailure(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	a := newTestApp(t, Config{StopOnHandlerError: true}, detector.NewReplaySource(open(0)), rec)

	a.Start(context.Background())
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on handler failure")
	}

	var handlerErr *gesture.HandlerError
	if !errors.As(a.Err(), &handlerErr) {
		t.Errorf("Err() = %v, want *gesture.HandlerError", a.Err())
	}
	a.Stop()
}

func TestNew_Validation(t *testing.T) {
	src := detector.NewReplaySource()

	if _, err := New(Config{FPS: 10, Gesture: gesture.DefaultConfig()}, nil, &recorder{}, nil); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := New(Config{FPS: 0, Gesture: gesture.DefaultConfig()}, src, &recorder{}, nil); err == nil {
		t.Error("expected error for zero fps")
	}
	if _, err := New(Config{FPS: 10, Gesture: gesture.DefaultConfig()}, src, nil, nil); err == nil {
		t.Error("expected error for nil handler")
	}
	bad := gesture.DefaultConfig()
	bad.Thresholds.Closed = 4
	if _, err := New(Config{FPS: 10, Gesture: bad}, src, &recorder{}, nil); err == nil {
		t.Error("expected error for overlapping thresholds")
	}
}

func TestApplySettings(t *testing.T) {
	base := gesture.DefaultConfig()

	t.Run("no settings", func(t *testing.T) {
		got, err := ApplySettings(base, nil)
		if err != nil {
			t.Fatalf("ApplySettings() error = %v", err)
		}
		if diff := cmp.Diff(base, got); diff != "" {
			t.Errorf("config changed (-want +got):\n%s", diff)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		got, err := ApplySettings(base, map[string]string{
			store.SettingCooldown:        "1500ms",
			store.SettingOpenThreshold:   "5",
			store.SettingClosedThreshold: "0",
			"unrelated":                  "x",
		})
		if err != nil {
			t.Fatalf("ApplySettings() error = %v", err)
		}
		want := gesture.Config{
			Cooldown:   1500 * time.Millisecond,
			Thresholds: gesture.Thresholds{Open: 5, Closed: 0, TotalFingers: 5},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected config (-want +got):\n%s", diff)
		}
	})

	t.Run("unparsable", func(t *testing.T) {
		if _, err := ApplySettings(base, map[string]string{store.SettingCooldown: "soon"}); err == nil {
			t.Error("expected error for bad duration")
		}
		if _, err := ApplySettings(base, map[string]string{store.SettingOpenThreshold: "four"}); err == nil {
			t.Error("expected error for bad integer")
		}
	})

	t.Run("invalid result", func(t *testing.T) {
		if _, err := ApplySettings(base, map[string]string{store.SettingClosedThreshold: "4"}); err == nil {
			t.Error("expected validation error")
		}
	})
}
