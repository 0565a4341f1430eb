package slicer

import "testing"

func samples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i)
	}
	return out
}

func TestPushExactFrames(t *testing.T) {
	s := New(4)

	frames := s.Push(samples(8))
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	for _, f := range frames {
		if len(f) != 4 {
			t.Errorf("Expected frame size 4, got %d", len(f))
		}
	}
	if got := s.Flush(); got != nil {
		t.Errorf("Expected no remainder, got %d samples", len(got))
	}
}

func TestPushBuffersRemainderAcrossCalls(t *testing.T) {
	s := New(4)

	if frames := s.Push(samples(3)); frames != nil {
		t.Fatalf("Expected no complete frame, got %d", len(frames))
	}

	frames := s.Push(samples(3))
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame after second push, got %d", len(frames))
	}
	if frames[0][0] != 0 || frames[0][3] != 0 {
		t.Errorf("Expected frame [0 1 2 0], got %v", frames[0])
	}

	rem := s.Flush()
	if len(rem) != 2 {
		t.Fatalf("Expected 2 remainder samples, got %d", len(rem))
	}
	if rem[0] != 1 || rem[1] != 2 {
		t.Errorf("Expected remainder [1 2], got %v", rem)
	}
}

func TestPushEmpty(t *testing.T) {
	s := New(4)
	if frames := s.Push(nil); frames != nil {
		t.Errorf("Expected nil frames for empty input, got %v", frames)
	}
}

func TestReset(t *testing.T) {
	s := New(4)
	s.Push(samples(3))
	s.Reset()
	if got := s.Flush(); got != nil {
		t.Errorf("Expected empty remainder after reset, got %v", got)
	}
}

func TestOrderPreserved(t *testing.T) {
	s := New(2)
	frames := s.Push([]int16{10, 11, 12, 13, 14, 15})
	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(frames))
	}
	want := int16(10)
	for _, f := range frames {
		for _, v := range f {
			if v != want {
				t.Fatalf("Expected sample %d, got %d", want, v)
			}
			want++
		}
	}
}
