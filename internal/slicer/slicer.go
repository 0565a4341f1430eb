// Package slicer splits arbitrary-length sample buffers into fixed-size
// frames for transmission to a streaming recognizer.
package slicer

// Slicer cuts incoming sample buffers into frames of a fixed size, buffering
// the trailing remainder across calls within a session. It never blocks and
// has no side effects beyond the internal cursor.
type Slicer struct {
	frameSize int
	remainder []int16
}

// New creates a slicer producing frames of frameSize samples. A non-positive
// size falls back to 16000, one second of audio at the default sample rate.
func New(frameSize int) *Slicer {
	if frameSize <= 0 {
		frameSize = 16000
	}
	return &Slicer{frameSize: frameSize}
}

// Push appends samples and returns every complete frame now available, in
// order. Samples that do not fill a frame are kept for the next call.
func (s *Slicer) Push(samples []int16) [][]int16 {
	if len(samples) == 0 {
		return nil
	}
	buf := append(s.remainder, samples...)

	var frames [][]int16
	for len(buf) >= s.frameSize {
		frame := make([]int16, s.frameSize)
		copy(frame, buf[:s.frameSize])
		frames = append(frames, frame)
		buf = buf[s.frameSize:]
	}

	s.remainder = append([]int16(nil), buf...)
	return frames
}

// Flush returns the buffered remainder, if any, and clears it.
func (s *Slicer) Flush() []int16 {
	if len(s.remainder) == 0 {
		return nil
	}
	out := s.remainder
	s.remainder = nil
	return out
}

// Reset discards any buffered remainder.
func (s *Slicer) Reset() {
	s.remainder = nil
}

// FrameSize returns the configured frame size in samples.
func (s *Slicer) FrameSize() int {
	return s.frameSize
}
