package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ayusman/handswitch/internal/detector/landmark"
)

// ErrSourceExhausted is returned by ReplaySource once every frame was delivered.
var ErrSourceExhausted = errors.New("no more frames")

// ReplaySource plays back frames in order, once.
type ReplaySource struct {
	mu     sync.Mutex
	frames []landmark.Frame
	index  int
	closed bool
}

// NewReplaySource creates a source that plays back frames.
func NewReplaySource(frames ...landmark.Frame) *ReplaySource {
	return &ReplaySource{frames: frames}
}

// Next returns the next frame, or ErrSourceExhausted.
func (s *ReplaySource) Next(ctx context.Context) (landmark.Frame, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.index >= len(s.frames) {
		return landmark.Frame{}, ErrSourceExhausted
	}
	f := s.frames[s.index]
	s.index++
	return f, nil
}

// Close stops playback.
func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Remaining reports how many frames have not been delivered yet.
func (s *ReplaySource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) - s.index
}

// ReadRecording parses a JSON Lines recording, one landmark.Frame per line.
// Blank lines are skipped.
func ReadRecording(r io.Reader) ([]landmark.Frame, error) {
	var frames []landmark.Frame

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var f landmark.Frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			return nil, fmt.Errorf("recording line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return frames, nil
}

// Recorder wraps a Source and appends every delivered frame to w as one JSON line.
type Recorder struct {
	Source

	mu  sync.Mutex
	enc *json.Encoder
}

// NewRecorder tees src into w.
func NewRecorder(src Source, w io.Writer) *Recorder {
	return &Recorder{Source: src, enc: json.NewEncoder(w)}
}

// Next reads a frame from the wrapped source and records it.
func (r *Recorder) Next(ctx context.Context) (landmark.Frame, error) {
	f, err := r.Source.Next(ctx)
	if err != nil {
		return f, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(f); err != nil {
		return f, fmt.Errorf("record frame: %w", err)
	}
	return f, nil
}
