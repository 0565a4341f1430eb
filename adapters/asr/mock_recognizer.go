package asr

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// MockRecognizer is a scripted SpeechRecognizer for tests and offline runs.
// Events queued with QueueEvent are delivered to the stream as soon as it is
// started; Stop replays anything still pending and closes the stream.
type MockRecognizer struct {
	mu      sync.Mutex
	logger  *zap.Logger
	pending []repositories.RecognitionEvent
	started int
	stream  *mockStream
}

// NewMockRecognizer creates an empty scripted recognizer.
func NewMockRecognizer(logger *zap.Logger) *MockRecognizer {
	return &MockRecognizer{logger: logger}
}

// QueueEvent schedules an event for delivery. Events queued before Start are
// delivered on Start; events queued after are delivered immediately.
func (m *MockRecognizer) QueueEvent(ev repositories.RecognitionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		m.stream.deliver(ev)
		return
	}
	m.pending = append(m.pending, ev)
}

// Started reports how many streams have been opened.
func (m *MockRecognizer) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Start opens a scripted stream and replays queued events.
func (m *MockRecognizer) Start(_ context.Context, _ repositories.RecognitionConfig) (repositories.RecognizerStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started++
	stream := &mockStream{
		events: make(chan repositories.RecognitionEvent, 64),
		logger: m.logger,
	}
	m.stream = stream
	for _, ev := range m.pending {
		stream.deliver(ev)
	}
	m.pending = nil
	return stream, nil
}

type mockStream struct {
	mu     sync.Mutex
	events chan repositories.RecognitionEvent
	closed bool
	frames int
	logger *zap.Logger
}

func (s *mockStream) deliver(ev repositories.RecognitionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
	if ev.Kind == repositories.RecognitionError || ev.Kind == repositories.RecognitionClosed {
		s.closed = true
		close(s.events)
	}
}

func (s *mockStream) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

func (s *mockStream) SendFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *mockStream) Stop(_ context.Context) error {
	s.deliver(repositories.RecognitionEvent{Kind: repositories.RecognitionClosed})
	return nil
}
