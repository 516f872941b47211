package gesture

import "fmt"

// InputError reports a frame whose landmark set does not match the hand topology.
type InputError struct {
	Timestamp float64
	Err       error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid landmarks at t=%.3f: %v", e.Timestamp, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// SequencingError reports a frame older than the last accepted frame.
type SequencingError struct {
	Timestamp float64
	Previous  float64
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("timestamp %.3f precedes last accepted frame at %.3f", e.Timestamp, e.Previous)
}

// HandlerError wraps a failure returned by an event handler.
type HandlerError struct {
	Event Event
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler at t=%.3f: %v", e.Event.Kind, e.Event.Timestamp, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
