// Package landmark holds the 21-point hand topology and the frame type the
// gesture pipeline consumes. It has no OpenCV dependency.
package landmark

import (
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a normalized image-plane landmark. Y grows downward; Z is carried but unused.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand is one detected hand: 21 landmarks plus the detector's handedness guess.
type Hand struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Frame is one tick of the landmark stream.
// A nil Landmarks slice means no hand was detected on this tick; a non-nil
// slice of the wrong length is a malformed hand and stays distinct when encoded.
type Frame struct {
	Timestamp float64   `json:"timestamp"` // monotonic seconds
	Landmarks []Point3D `json:"landmarks"`
}

// HasHand reports whether the frame carries a landmark set.
func (f Frame) HasHand() bool {
	return f.Landmarks != nil
}

// FrameFromHand builds a frame from a detected hand. A nil hand yields a no-hand frame.
func FrameFromHand(ts float64, hand *Hand) Frame {
	if hand == nil {
		return Frame{Timestamp: ts}
	}
	points := make([]Point3D, NumLandmarks)
	copy(points, hand.Points[:])
	return Frame{Timestamp: ts, Landmarks: points}
}

// Validate checks that a landmark set matches the hand topology.
func Validate(points []Point3D) error {
	if len(points) != NumLandmarks {
		return fmt.Errorf("expected %d landmarks, got %d", NumLandmarks, len(points))
	}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("landmark %d has non-finite coordinates (%v, %v)", i, p.X, p.Y)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
