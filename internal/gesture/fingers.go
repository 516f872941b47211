// Package gesture turns hand landmark frames into debounced open/closed events.
//
// The pipeline is Extract -> Classify -> Debouncer.Step -> Handler. Extraction
// and classification are pure; the Debouncer holds the only state.
package gesture

import (
	"github.com/ayusman/handswitch/internal/detector/landmark"
)

// FingerCount is the number of extended fingers, in [0, TotalFingers], or NoHand.
type FingerCount int

// NoHand is the count reported for a frame without a landmark set.
const NoHand FingerCount = -1

// Known reports whether the count came from a detected hand.
func (c FingerCount) Known() bool {
	return c >= 0
}

// fingerJoints pairs each non-thumb finger tip with the joint it must rise above.
var fingerJoints = [4][2]int{
	{landmark.IndexTip, landmark.IndexPIP},
	{landmark.MiddleTip, landmark.MiddlePIP},
	{landmark.RingTip, landmark.RingPIP},
	{landmark.PinkyTip, landmark.PinkyPIP},
}

// palmJoints are averaged on X to locate the palm centre for the thumb rule.
var palmJoints = [5]int{
	landmark.Wrist,
	landmark.IndexMCP,
	landmark.MiddleMCP,
	landmark.RingMCP,
	landmark.PinkyMCP,
}

// Extract counts the extended fingers in a frame. A frame without a hand yields NoHand.
func Extract(frame landmark.Frame) (FingerCount, error) {
	if !frame.HasHand() {
		return NoHand, nil
	}
	count, err := CountExtended(frame.Landmarks)
	if err != nil {
		return NoHand, &InputError{Timestamp: frame.Timestamp, Err: err}
	}
	return count, nil
}

// CountExtended applies the geometric finger rules to a 21-point landmark set.
func CountExtended(points []landmark.Point3D) (FingerCount, error) {
	if err := landmark.Validate(points); err != nil {
		return NoHand, err
	}

	var count FingerCount
	if thumbExtended(points) {
		count++
	}
	for _, j := range fingerJoints {
		// image Y grows downward
		if points[j[0]].Y < points[j[1]].Y {
			count++
		}
	}
	return count, nil
}

// thumbExtended compares horizontal distance from the palm centre, so the
// rule holds for a left or right hand without a handedness label.
func thumbExtended(points []landmark.Point3D) bool {
	var palmX float64
	for _, i := range palmJoints {
		palmX += points[i].X
	}
	palmX /= float64(len(palmJoints))

	tip := abs(points[landmark.ThumbTip].X - palmX)
	ip := abs(points[landmark.ThumbIP].X - palmX)
	return tip > ip
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
