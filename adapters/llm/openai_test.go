package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

func sseServer(t *testing.T, events []string, capture *oaRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			w.Write([]byte("data: " + ev + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
}

func newTestClient(t *testing.T, baseURL string) *OpenAICompatible {
	t.Helper()
	client, err := NewOpenAICompatible(OpenAIConfig{APIKey: "test-key", BaseURL: baseURL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAICompatible: %v", err)
	}
	return client
}

func collect(t *testing.T, stream <-chan repositories.StreamChunk) []repositories.StreamChunk {
	t.Helper()
	var out []repositories.StreamChunk
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		out = append(out, chunk)
	}
	return out
}

func TestStreamChatTextDeltas(t *testing.T) {
	var captured oaRequest
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"role":"assistant","content":"你好"}}]}`,
		`{"choices":[{"delta":{"content":"！"},"finish_reason":"stop"}]}`,
	}, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.StreamChat(context.Background(), &repositories.ChatRequest{
		Model: "qwen-plus",
		Messages: []repositories.Message{
			{Role: repositories.RoleSystem, Content: "系统提示"},
			{Role: repositories.RoleUser, Content: "你好"},
		},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	chunks := collect(t, stream)
	var text strings.Builder
	for _, c := range chunks {
		text.WriteString(c.Delta.Content)
	}
	if text.String() != "你好！" {
		t.Errorf("unexpected text %q", text.String())
	}
	if chunks[len(chunks)-1].FinishReason != "stop" {
		t.Error("finish reason not forwarded")
	}

	if !captured.Stream {
		t.Error("request must ask for streaming")
	}
	if captured.Model != "qwen-plus" || len(captured.Messages) != 2 {
		t.Errorf("request mangled: %+v", captured)
	}
}

func TestStreamChatFragmentedToolCalls(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_user_info"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"user_id\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"42\"}"}}]}},{"finish_reason":"tool_calls"}]}`,
	}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.StreamChat(context.Background(), &repositories.ChatRequest{Model: "qwen-plus"})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var name, args string
	for _, chunk := range collect(t, stream) {
		for _, tc := range chunk.Delta.ToolCalls {
			if tc.Name != "" {
				name = tc.Name
			}
			args += tc.Arguments
		}
	}
	if name != "get_user_info" {
		t.Errorf("tool name lost: %q", name)
	}
	if args != `{"user_id":"42"}` {
		t.Errorf("fragmented arguments mangled: %q", args)
	}
}

func TestStreamChatSendsToolSchemas(t *testing.T) {
	var captured oaRequest
	server := sseServer(t, nil, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.StreamChat(context.Background(), &repositories.ChatRequest{
		Model:      "qwen-plus",
		Tools:      []repositories.ToolSchema{{Name: "get_user_info", Parameters: json.RawMessage(`{"type":"object"}`)}},
		ToolChoice: "auto",
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	collect(t, stream)

	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "get_user_info" {
		t.Errorf("tool schema not forwarded: %+v", captured.Tools)
	}
	if captured.Tools[0].Type != "function" || captured.ToolChoice != "auto" {
		t.Errorf("tool wiring wrong: %+v", captured)
	}
}

func TestStreamChatErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.StreamChat(context.Background(), &repositories.ChatRequest{Model: "qwen-plus"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("server message not surfaced: %v", err)
	}
}

func TestStreamChatAttachesImage(t *testing.T) {
	var captured oaRequest
	server := sseServer(t, nil, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.StreamChat(context.Background(), &repositories.ChatRequest{
		Model: "qwen-vl-plus",
		Messages: []repositories.Message{
			{Role: repositories.RoleUser, Content: "画面里有什么", ImageData: []byte{0xFF, 0xD8}},
		},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	collect(t, stream)

	raw, _ := json.Marshal(captured.Messages[0].Content)
	if !strings.Contains(string(raw), "data:image/jpeg;base64,") {
		t.Errorf("image not encoded as data url: %s", raw)
	}
	if !strings.Contains(string(raw), "画面里有什么") {
		t.Errorf("text part missing: %s", raw)
	}
}
