package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// Gemini implements ChatCompletion using Google's Gemini API. It streams
// text deltas only; tool offering is not supported, so the orchestrator's
// tool path stays inactive when this adapter is configured.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGemini creates a Gemini completion adapter.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{client: client, logger: logger, model: model}, nil
}

// StreamChat converts the request into Gemini contents and streams the
// response text as chunks.
func (g *Gemini) StreamChat(ctx context.Context, req *repositories.ChatRequest) (<-chan repositories.StreamChunk, error) {
	config := &genai.GenerateContentConfig{}
	var contents []*genai.Content

	for _, msg := range req.Messages {
		switch msg.Role {
		case repositories.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case repositories.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			// User and tool-result messages both enter as user content.
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	ch := make(chan repositories.StreamChunk)
	go func() {
		defer close(ch)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				ch <- repositories.StreamChunk{Err: fmt.Errorf("gemini stream failed: %w", err)}
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				ch <- repositories.StreamChunk{
					Delta: repositories.Message{
						Role:    repositories.RoleAssistant,
						Content: part.Text,
					},
				}
			}
		}
	}()
	return ch, nil
}
