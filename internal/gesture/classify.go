package gesture

import "fmt"

// Class is the per-frame gesture classification.
type Class string

const (
	// Neutral covers the 2-3 finger dead zone and frames without a hand.
	Neutral Class = "neutral"
	// Open is an open hand.
	Open Class = "open"
	// Closed is a closed fist.
	Closed Class = "closed"
)

// Default classification thresholds. One misdetected finger either way still classifies.
const (
	DefaultOpenThreshold   = 4
	DefaultClosedThreshold = 1
	DefaultTotalFingers    = 5
)

// Thresholds are the hysteresis cutoffs used by Classify.
type Thresholds struct {
	Open         int // count >= Open is an open hand
	Closed       int // count <= Closed is a fist
	TotalFingers int
}

// DefaultThresholds returns the standard 4/1 cutoffs for a five-finger hand.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Open:         DefaultOpenThreshold,
		Closed:       DefaultClosedThreshold,
		TotalFingers: DefaultTotalFingers,
	}
}

// Validate checks that the thresholds leave a dead zone inside [0, TotalFingers].
func (t Thresholds) Validate() error {
	if t.TotalFingers <= 0 {
		return fmt.Errorf("total fingers must be positive, got %d", t.TotalFingers)
	}
	if t.Closed < 0 {
		return fmt.Errorf("closed threshold must not be negative, got %d", t.Closed)
	}
	if t.Open > t.TotalFingers {
		return fmt.Errorf("open threshold %d exceeds total fingers %d", t.Open, t.TotalFingers)
	}
	if t.Closed >= t.Open {
		return fmt.Errorf("closed threshold %d must be below open threshold %d", t.Closed, t.Open)
	}
	return nil
}

// Classify maps a finger count to a gesture class. It is total: NoHand is Neutral.
func (t Thresholds) Classify(count FingerCount) Class {
	switch {
	case !count.Known():
		return Neutral
	case int(count) >= t.Open:
		return Open
	case int(count) <= t.Closed:
		return Closed
	default:
		return Neutral
	}
}

// Classify uses the default thresholds.
func Classify(count FingerCount) Class {
	return DefaultThresholds().Classify(count)
}
