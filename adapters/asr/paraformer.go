// Package asr provides streaming speech-recognizer adapters. The primary
// adapter speaks the DashScope realtime recognition protocol; a Google Cloud
// Speech adapter and a scripted mock implement the same contract.
package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

const defaultParaformerURL = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"

// ParaformerConfig holds credentials and endpoint for the DashScope realtime
// recognition service.
type ParaformerConfig struct {
	APIKey string
	URL    string
}

// Paraformer implements SpeechRecognizer against the DashScope realtime
// websocket API.
type Paraformer struct {
	config ParaformerConfig
	logger *zap.Logger
}

// NewParaformer creates a DashScope recognizer adapter.
func NewParaformer(config ParaformerConfig, logger *zap.Logger) (*Paraformer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("dashscope api key is required")
	}
	if config.URL == "" {
		config.URL = defaultParaformerURL
	}
	return &Paraformer{config: config, logger: logger}, nil
}

// wsHeader is the protocol header of every DashScope websocket message.
type wsHeader struct {
	Action    string `json:"action,omitempty"`
	TaskID    string `json:"task_id"`
	Streaming string `json:"streaming,omitempty"`
	Event     string `json:"event,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_message,omitempty"`
}

type wsSentence struct {
	Text        string `json:"text"`
	SentenceEnd bool   `json:"sentence_end"`
}

type wsMessage struct {
	Header  wsHeader `json:"header"`
	Payload struct {
		TaskGroup  string                 `json:"task_group,omitempty"`
		Task       string                 `json:"task,omitempty"`
		Function   string                 `json:"function,omitempty"`
		Model      string                 `json:"model,omitempty"`
		Parameters map[string]interface{} `json:"parameters,omitempty"`
		Input      map[string]interface{} `json:"input,omitempty"`
		Output     struct {
			Sentence wsSentence `json:"sentence"`
		} `json:"output,omitempty"`
	} `json:"payload"`
}

// Start opens a websocket, issues the run-task directive and spawns the
// receive goroutine that pumps recognition events.
func (p *Paraformer) Start(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognizerStream, error) {
	header := http.Header{}
	header.Set("Authorization", "bearer "+p.config.APIKey)
	header.Set("X-DashScope-DataInspection", "enable")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, p.config.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial recognizer: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial recognizer: %w", err)
	}

	taskID := uuid.NewString()
	model := config.Model
	if model == "" {
		model = "paraformer-realtime-v2"
	}

	run := wsMessage{}
	run.Header = wsHeader{Action: "run-task", TaskID: taskID, Streaming: "duplex"}
	run.Payload.TaskGroup = "audio"
	run.Payload.Task = "asr"
	run.Payload.Function = "recognition"
	run.Payload.Model = model
	run.Payload.Parameters = map[string]interface{}{
		"format":                             config.Format,
		"sample_rate":                        config.SampleRate,
		"language_hints":                     config.LanguageHints,
		"punctuation_prediction_enabled":     config.EnablePunctuation,
		"inverse_text_normalization_enabled": config.EnableInverseText,
		"enable_intermediate_result":         config.EnableIntermediateResult,
		"max_sentence_silence":               config.MaxSentenceSilenceMs,
	}
	run.Payload.Input = map[string]interface{}{}

	if err := conn.WriteJSON(run); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send run-task: %w", err)
	}

	stream := &paraformerStream{
		conn:   conn,
		taskID: taskID,
		events: make(chan repositories.RecognitionEvent, 64),
		done:   make(chan struct{}),
		logger: p.logger.With(zap.String("task_id", taskID)),
	}
	go stream.receive()

	return stream, nil
}

type paraformerStream struct {
	conn   *websocket.Conn
	taskID string
	events chan repositories.RecognitionEvent
	done   chan struct{}
	logger *zap.Logger
}

func (s *paraformerStream) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

func (s *paraformerStream) SendFrame(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Stop issues finish-task and waits for the recognizer to flush its
// remaining results before closing the connection.
func (s *paraformerStream) Stop(ctx context.Context) error {
	finish := wsMessage{}
	finish.Header = wsHeader{Action: "finish-task", TaskID: s.taskID}
	finish.Payload.Input = map[string]interface{}{}

	err := s.conn.WriteJSON(finish)

	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("recognizer stop timed out waiting for flush")
	case <-time.After(5 * time.Second):
		s.logger.Warn("recognizer stop timed out waiting for flush")
	}

	s.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to send finish-task: %w", err)
	}
	return nil
}

// receive pumps protocol messages into recognition events. It is the only
// writer of the events channel and closes it when the task ends.
func (s *paraformerStream) receive() {
	defer close(s.events)
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.events <- repositories.RecognitionEvent{
				Kind: repositories.RecognitionError,
				Err:  fmt.Errorf("recognizer read failed: %w", err),
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("undecodable recognizer message", zap.Error(err))
			continue
		}

		switch msg.Header.Event {
		case "task-started":
			s.logger.Info("recognition task started")
		case "result-generated":
			sentence := msg.Payload.Output.Sentence
			if sentence.Text == "" {
				continue
			}
			kind := repositories.RecognitionPartial
			if sentence.SentenceEnd {
				kind = repositories.RecognitionSentence
			}
			s.events <- repositories.RecognitionEvent{Kind: kind, Text: sentence.Text}
		case "task-finished":
			s.events <- repositories.RecognitionEvent{Kind: repositories.RecognitionClosed}
			return
		case "task-failed":
			s.events <- repositories.RecognitionEvent{
				Kind: repositories.RecognitionError,
				Err:  fmt.Errorf("recognition task failed: %s: %s", msg.Header.ErrorCode, msg.Header.ErrorMsg),
			}
			return
		}
	}
}
