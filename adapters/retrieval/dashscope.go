// Package retrieval implements the streaming knowledge-retrieval call used
// to short-circuit the completion service.
package retrieval

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds credentials and endpoint for the retrieval application.
type Config struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// DashScope implements KnowledgeRetriever against a DashScope application
// endpoint streaming its answer over SSE.
type DashScope struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewDashScope creates a retrieval adapter.
func NewDashScope(config Config, logger *zap.Logger) (*DashScope, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("retrieval api key is required")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("retrieval endpoint is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &DashScope{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type retrievalRequest struct {
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		IncrementalOutput bool `json:"incremental_output"`
	} `json:"parameters"`
}

type retrievalEvent struct {
	Output struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
}

// StreamQuery issues the retrieval call and streams answer text in arrival
// order. The channel is closed when the stream ends.
func (d *DashScope) StreamQuery(ctx context.Context, query string) (<-chan string, error) {
	var body retrievalRequest
	body.Input.Prompt = query
	body.Parameters.IncrementalOutput = true
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-SSE", "enable")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval call failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("retrieval call failed: status %d: %s", resp.StatusCode, string(data))
	}

	ch := make(chan string)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					d.logger.Warn("retrieval stream read failed", zap.Error(err))
				}
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event retrievalEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			if event.Output.Text != "" {
				ch <- event.Output.Text
			}
			if event.Output.FinishReason == "stop" {
				return
			}
		}
	}()
	return ch, nil
}
