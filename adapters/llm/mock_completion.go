package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// MockCompletion is a scripted ChatCompletion for tests. Each StreamChat
// call consumes the next queued script; a script is a sequence of chunks
// replayed in order.
type MockCompletion struct {
	mu       sync.Mutex
	scripts  [][]repositories.StreamChunk
	requests []*repositories.ChatRequest
	failNext bool
}

// NewMockCompletion creates an empty scripted completion service.
func NewMockCompletion() *MockCompletion {
	return &MockCompletion{}
}

// QueueScript appends one scripted response stream.
func (m *MockCompletion) QueueScript(chunks ...repositories.StreamChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, chunks)
}

// QueueText is a convenience wrapper queueing plain text deltas.
func (m *MockCompletion) QueueText(deltas ...string) {
	chunks := make([]repositories.StreamChunk, 0, len(deltas))
	for _, d := range deltas {
		chunks = append(chunks, repositories.StreamChunk{
			Delta: repositories.Message{Role: repositories.RoleAssistant, Content: d},
		})
	}
	m.QueueScript(chunks...)
}

// FailNext makes the next StreamChat call return an error.
func (m *MockCompletion) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// Requests returns every request seen so far, in call order.
func (m *MockCompletion) Requests() []*repositories.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*repositories.ChatRequest(nil), m.requests...)
}

// Calls returns the number of StreamChat invocations.
func (m *MockCompletion) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// StreamChat replays the next queued script.
func (m *MockCompletion) StreamChat(_ context.Context, req *repositories.ChatRequest) (<-chan repositories.StreamChunk, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if m.failNext {
		m.failNext = false
		m.mu.Unlock()
		return nil, fmt.Errorf("scripted completion failure")
	}
	var script []repositories.StreamChunk
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	m.mu.Unlock()

	ch := make(chan repositories.StreamChunk, len(script)+1)
	for _, chunk := range script {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}
