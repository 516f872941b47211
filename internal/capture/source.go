package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/detector"
	"github.com/ayusman/handswitch/internal/detector/landmark"
)

// Source turns camera frames into landmark frames. It implements detector.Source.
//
// Timestamps are seconds on the monotonic clock since Open. When a MotionGate
// is configured and a frame shows no motion, the previous detection is reused
// with the new timestamp instead of running the detector again.
type Source struct {
	camera   Camera
	detector detector.Detector
	gate     *MotionGate
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	start time.Time
	last  *landmark.Hand
	since func(time.Time) time.Duration
}

// NewSource wires a camera to a hand detector. motionThreshold is a percentage
// of changed pixels; zero or less disables motion gating.
func NewSource(camera Camera, det detector.Detector, motionThreshold float64, logger *zap.SugaredLogger) *Source {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Source{
		camera:   camera,
		detector: det,
		logger:   logger,
		since:    time.Since,
	}
	if motionThreshold > 0 {
		s.gate = NewMotionGate(motionThreshold)
	}
	return s
}

// Open opens the camera and starts the frame clock.
func (s *Source) Open() error {
	if err := s.camera.Open(); err != nil {
		return err
	}

	s.mu.Lock()
	s.start = time.Now()
	s.last = nil
	s.mu.Unlock()

	if s.gate != nil {
		s.gate.Reset()
	}
	s.logger.Infow("camera source opened", "fps", s.camera.FPS(), "motion_gate", s.gate != nil)
	return nil
}

// Next reads one camera frame and returns the first detected hand, if any.
func (s *Source) Next(ctx context.Context) (landmark.Frame, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Frame{}, err
	}

	mat, err := s.camera.ReadFrame()
	if err != nil {
		return landmark.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	defer mat.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.since(s.start).Seconds()

	if s.gate != nil {
		if moved, _ := s.gate.Moved(mat); !moved {
			return s.frameLocked(ts), nil
		}
	}

	hands, err := s.detector.Detect(mat)
	if err != nil {
		return landmark.Frame{}, fmt.Errorf("detect hands: %w", err)
	}

	s.last = nil
	if len(hands) > 0 {
		first := hands[0]
		s.last = &first
		if len(hands) > 1 {
			s.logger.Debugw("multiple hands detected, tracking the first", "count", len(hands))
		}
	}
	return s.frameLocked(ts), nil
}

func (s *Source) frameLocked(ts float64) landmark.Frame {
	if s.last == nil {
		return landmark.Frame{Timestamp: ts}
	}
	return landmark.FrameFromHand(ts, s.last)
}

// Close releases the camera, the detector and the motion gate.
func (s *Source) Close() error {
	if s.gate != nil {
		s.gate.Close()
	}
	return errors.Join(s.camera.Close(), s.detector.Close())
}
