package gesture

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/handswitch/internal/detector/landmark"
)

// recorder is a Handler that records calls in order.
type recorder struct {
	calls []string
	times []float64
	err   error
}

func (r *recorder) OnOpen(ts float64) error {
	r.calls = append(r.calls, "open")
	r.times = append(r.times, ts)
	return r.err
}

func (r *recorder) OnClose(ts float64) error {
	r.calls = append(r.calls, "close")
	r.times = append(r.times, ts)
	return r.err
}

func newTestTracker(t *testing.T, h Handler) *Tracker {
	t.Helper()
	tr, err := NewTracker(DefaultConfig(), h, nil)
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}
	return tr
}

func openFrame(ts float64) landmark.Frame {
	h := landmark.OpenPalm()
	return landmark.FrameFromHand(ts, &h)
}

func fistFrame(ts float64) landmark.Frame {
	h := landmark.Fist()
	return landmark.FrameFromHand(ts, &h)
}

func TestTracker_Scenarios(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(t, rec)

	if _, ok, err := tr.Process(openFrame(0)); err != nil || !ok {
		t.Fatalf("A: expected open emission, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := tr.Process(fistFrame(0.5)); err != nil || ok {
		t.Fatalf("B: expected suppression, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := tr.Process(fistFrame(1.1)); err != nil || !ok {
		t.Fatalf("C: expected close emission, got ok=%v err=%v", ok, err)
	}

	if diff := cmp.Diff([]string{"open", "close"}, rec.calls); diff != "" {
		t.Errorf("handler calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 1.1}, rec.times); diff != "" {
		t.Errorf("handler timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_RejectsShortLandmarks(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(t, rec)
	tr.Process(openFrame(0))
	before := tr.State()
	beforeObs := tr.Snapshot()

	_, ok, err := tr.Process(landmark.Frame{Timestamp: 2, Landmarks: make([]landmark.Point3D, 19)})

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if ok {
		t.Error("rejected frame must not emit")
	}
	if diff := cmp.Diff(before, tr.State()); diff != "" {
		t.Errorf("state changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(beforeObs, tr.Snapshot()); diff != "" {
		t.Errorf("observation changed (-want +got):\n%s", diff)
	}

	// A rejected frame does not advance the frame clock either.
	if _, _, err := tr.Process(fistFrame(1.5)); err != nil {
		t.Errorf("frame after a rejected one should be accepted, got %v", err)
	}
}

func TestTracker_RejectsOutOfOrderFrames(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(t, rec)
	tr.Process(openFrame(3))
	before := tr.State()

	_, _, err := tr.Process(fistFrame(2))

	var seqErr *SequencingError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequencingError, got %v", err)
	}
	if diff := cmp.Diff(before, tr.State()); diff != "" {
		t.Errorf("state changed (-want +got):\n%s", diff)
	}
	if len(rec.calls) != 1 {
		t.Errorf("expected one handler call, got %v", rec.calls)
	}
}

func TestTracker_RejectsInfiniteTimestamps(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(t, rec)

	for _, ts := range []float64{math.Inf(-1), math.Inf(1)} {
		_, emitted, err := tr.Process(openFrame(ts))
		var seqErr *SequencingError
		if !errors.As(err, &seqErr) || emitted {
			t.Errorf("t=%v: expected SequencingError without event, got emitted=%v err=%v", ts, emitted, err)
		}
	}
	if len(rec.calls) != 0 {
		t.Errorf("expected no handler calls, got %v", rec.calls)
	}

	if _, emitted, err := tr.Process(fistFrame(0.5)); err != nil || !emitted {
		t.Errorf("expected CLOSED@0.5 after the rejected frames, got emitted=%v err=%v", emitted, err)
	}
}

func TestTracker_NoHandIsNeutral(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(t, rec)

	_, ok, err := tr.Process(landmark.Frame{Timestamp: 0})
	if err != nil || ok {
		t.Fatalf("expected silent neutral frame, got ok=%v err=%v", ok, err)
	}

	obs := tr.Snapshot()
	if obs.Count != NoHand || obs.Class != Neutral {
		t.Errorf("unexpected observation: %+v", obs)
	}
	if tr.State().LastEmitted != Unset {
		t.Errorf("expected unset state, got %s", tr.State().LastEmitted)
	}
}

func TestTracker_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("relay offline")
	rec := &recorder{err: boom}
	tr := newTestTracker(t, rec)

	ev, ok, err := tr.Process(openFrame(0))

	var handlerErr *HandlerError
	if !errors.As(err, &handlerErr) {
		t.Fatalf("expected HandlerError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped handler error, got %v", err)
	}
	if !ok || ev.Kind != Open {
		t.Errorf("expected the open event to be reported, got %+v ok=%v", ev, ok)
	}
	// The emission stands; a failing handler does not roll back debounce state.
	if tr.State().LastEmitted != Open {
		t.Errorf("expected state open, got %s", tr.State().LastEmitted)
	}
}

func TestTracker_IndependentInstances(t *testing.T) {
	left := newTestTracker(t, &recorder{})
	right := newTestTracker(t, &recorder{})

	left.Process(openFrame(0))
	if _, ok, _ := right.Process(openFrame(0.1)); !ok {
		t.Error("second tracker should emit independently of the first")
	}
}

func TestNewTracker_Validation(t *testing.T) {
	if _, err := NewTracker(DefaultConfig(), nil, nil); err == nil {
		t.Error("expected error for nil handler")
	}

	cfg := DefaultConfig()
	cfg.Cooldown = -time.Second
	if _, err := NewTracker(cfg, &recorder{}, nil); err == nil {
		t.Error("expected error for negative cooldown")
	}

	cfg = DefaultConfig()
	cfg.Thresholds.Open = 1
	if _, err := NewTracker(cfg, &recorder{}, nil); err == nil {
		t.Error("expected error for overlapping thresholds")
	}
}

func TestHandlers(t *testing.T) {
	t.Run("fan out in order", func(t *testing.T) {
		var order []string
		hs := Handlers{
			HandlerFuncs{Open: func(float64) error { order = append(order, "a"); return nil }},
			HandlerFuncs{Open: func(float64) error { order = append(order, "b"); return nil }},
		}
		if err := hs.OnOpen(1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"a", "b"}, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("first error stops the chain", func(t *testing.T) {
		called := false
		hs := Handlers{
			HandlerFuncs{Close: func(float64) error { return errors.New("fail") }},
			HandlerFuncs{Close: func(float64) error { called = true; return nil }},
		}
		if err := hs.OnClose(1); err == nil {
			t.Error("expected error")
		}
		if called {
			t.Error("second handler should not run")
		}
	})

	t.Run("nil funcs are no-ops", func(t *testing.T) {
		if err := (HandlerFuncs{}).OnOpen(0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("dispatch rejects neutral", func(t *testing.T) {
		if err := Dispatch(HandlerFuncs{}, Event{Kind: Neutral}); err == nil {
			t.Error("expected error for neutral event")
		}
	})
}
