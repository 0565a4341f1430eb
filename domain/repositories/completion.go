package repositories

import (
	"context"
	"encoding/json"

	"github.com/leauyn/openavatarchat/domain/entities"
)

// Role defines the type of message sender in a completion request
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single chat-completion message. Tool-call arguments are plain
// strings because streaming providers deliver them as appended fragments.
type Message struct {
	Role       Role                `json:"role"`
	Content    string              `json:"content,omitempty"`
	ToolCalls  []entities.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	// ImageData optionally attaches an encoded video frame to a user message.
	ImageData []byte `json:"-"`
}

// ToolSchema describes one offered tool in JSON-schema form.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest carries everything needed for one completion call.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float32      `json:"temperature,omitempty"`
}

// StreamChunk is one delta from a streaming completion call. Err, when set,
// terminates the stream.
type StreamChunk struct {
	Delta        Message `json:"delta"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Err          error   `json:"-"`
}

// ChatCompletion abstracts a streaming chat-completion service. The returned
// channel is closed by the adapter once the stream ends.
type ChatCompletion interface {
	StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
}
