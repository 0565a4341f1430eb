// Package llm provides streaming chat-completion adapters: an
// OpenAI-compatible client with tool-call support (DashScope compatible
// mode) and a Gemini client for text-only completion.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/entities"
	"github.com/leauyn/openavatarchat/domain/repositories"
)

// OpenAIConfig holds credentials and endpoint for an OpenAI-compatible
// completion service.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAICompatible implements ChatCompletion against any OpenAI-compatible
// chat endpoint, including DashScope compatible mode.
type OpenAICompatible struct {
	config OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAICompatible creates an OpenAI-compatible completion adapter.
func NewOpenAICompatible(config OpenAIConfig, logger *zap.Logger) (*OpenAICompatible, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("completion api key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAICompatible{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Wire types of the OpenAI-compatible chat API.
type oaContentPart struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL *oaImage `json:"image_url,omitempty"`
}

type oaImage struct {
	URL string `json:"url"`
}

type oaFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type oaToolCall struct {
	Index    *int       `json:"index,omitempty"`
	ID       string     `json:"id,omitempty"`
	Type     string     `json:"type,omitempty"`
	Function oaFunction `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    interface{}  `json:"content,omitempty"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

type oaDelta struct {
	Role      string       `json:"role,omitempty"`
	Content   string       `json:"content,omitempty"`
	ToolCalls []oaToolCall `json:"tool_calls,omitempty"`
}

type oaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type oaRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Tools       []oaTool    `json:"tools,omitempty"`
	ToolChoice  string      `json:"tool_choice,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float32     `json:"temperature,omitempty"`
	Stream      bool        `json:"stream"`
}

type oaStreamChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Delta        oaDelta `json:"delta"`
}

type oaStreamResponse struct {
	ID      string           `json:"id"`
	Model   string           `json:"model"`
	Choices []oaStreamChoice `json:"choices"`
}

type oaErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func convertMessages(msgs []repositories.Message) []oaMessage {
	out := make([]oaMessage, 0, len(msgs))
	for _, m := range msgs {
		oa := oaMessage{
			Role:       string(m.Role),
			ToolCallID: m.ToolCallID,
		}
		if len(m.ImageData) > 0 {
			parts := []oaContentPart{
				{Type: "image_url", ImageURL: &oaImage{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(m.ImageData),
				}},
				{Type: "text", Text: m.Content},
			}
			oa.Content = parts
		} else if m.Content != "" || len(m.ToolCalls) == 0 {
			oa.Content = m.Content
		}
		for _, tc := range m.ToolCalls {
			oa.ToolCalls = append(oa.ToolCalls, oaToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: oaFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, oa)
	}
	return out
}

func convertTools(tools []repositories.ToolSchema) []oaTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]oaTool, 0, len(tools))
	for _, t := range tools {
		var tool oaTool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		out = append(out, tool)
	}
	return out
}

// StreamChat issues a streaming completion call and converts SSE deltas into
// stream chunks, forwarding fragmented tool-call deltas as they arrive.
func (o *OpenAICompatible) StreamChat(ctx context.Context, req *repositories.ChatRequest) (<-chan repositories.StreamChunk, error) {
	body := oaRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Tools),
		ToolChoice:  req.ToolChoice,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/completions", strings.TrimRight(o.config.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("completion call failed: %s", readErrMsg(resp.Body, resp.StatusCode))
	}

	ch := make(chan repositories.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					ch <- repositories.StreamChunk{Err: fmt.Errorf("completion stream read failed: %w", err)}
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var event oaStreamResponse
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				ch <- repositories.StreamChunk{Err: fmt.Errorf("undecodable completion chunk: %w", err)}
				return
			}

			for _, choice := range event.Choices {
				chunk := repositories.StreamChunk{
					Delta: repositories.Message{
						Role:    repositories.RoleAssistant,
						Content: choice.Delta.Content,
					},
					FinishReason: choice.FinishReason,
				}
				for _, tc := range choice.Delta.ToolCalls {
					chunk.Delta.ToolCalls = append(chunk.Delta.ToolCalls, entities.ToolCall{
						ID:        tc.ID,
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					})
				}
				ch <- chunk
			}
		}
	}()
	return ch, nil
}

func readErrMsg(body io.Reader, status int) string {
	data, _ := io.ReadAll(body)
	var errResp oaErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return fmt.Sprintf("status %d", status)
}
