package websocket

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leauyn/openavatarchat/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeAudioChunk  MessageType = "audio_chunk"
	MessageTypeTextInput   MessageType = "text_input"
	MessageTypeCameraFrame MessageType = "camera_frame"
	MessageTypeChatData    MessageType = "chat_data"
	MessageTypeListenState MessageType = "listen_state"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeError       MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// AudioChunkMessage carries one chunk of microphone audio. AudioData is
// base64-encoded little-endian 16-bit PCM. IsFinal marks end of speech for
// the current turn.
type AudioChunkMessage struct {
	BaseMessage
	TurnID     string `json:"turn_id,omitempty"`
	AudioData  string `json:"audio_data"`
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	ChunkSeq   int    `json:"chunk_sequence"`
	IsFinal    bool   `json:"is_final"`
}

// DecodeSamples decodes the base64 PCM payload into int16 samples.
func (m *AudioChunkMessage) DecodeSamples() ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(m.AudioData)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio data: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("odd PCM payload length %d", len(raw))
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, nil
}

// TextInputMessage carries typed human text, bypassing recognition.
type TextInputMessage struct {
	BaseMessage
	TurnID  string `json:"turn_id,omitempty"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// CameraFrameMessage carries one encoded camera frame for multimodal turns.
type CameraFrameMessage struct {
	BaseMessage
	ImageData string `json:"image_data"`
}

// DecodeImage decodes the base64 frame payload.
func (m *CameraFrameMessage) DecodeImage() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(m.ImageData)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return raw, nil
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChatDataMessage wraps one outbound pipeline envelope.
type ChatDataMessage struct {
	BaseMessage
	SessionID string          `json:"session_id"`
	Data      domain.Envelope `json:"data"`
}

// ListenStateMessage tells the client to re-arm or release local silence
// gating.
type ListenStateMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	EnableVAD bool   `json:"enable_vad"`
}

// MessageValidator parses and validates inbound WebSocket messages.
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message and returns its typed form.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeAudioChunk:
		var msg AudioChunkMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio chunk message: %w", err)
		}
		if err := v.validateAudioChunk(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeTextInput:
		var msg TextInputMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid text input message: %w", err)
		}
		if msg.Text == "" && !msg.IsFinal {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeCameraFrame:
		var msg CameraFrameMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid camera frame message: %w", err)
		}
		if msg.ImageData == "" {
			return nil, fmt.Errorf("image_data is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateAudioChunk validates audio chunk message fields
func (v *MessageValidator) validateAudioChunk(msg *AudioChunkMessage) error {
	if msg.AudioData == "" && !msg.IsFinal {
		return fmt.Errorf("audio_data is required")
	}
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding != "" && msg.Encoding != "pcm" {
		return fmt.Errorf("encoding must be pcm")
	}
	if msg.ChunkSeq < 0 {
		return fmt.Errorf("chunk_sequence must not be negative")
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}

// CreateChatDataMessage wraps a pipeline envelope for the wire.
func CreateChatDataMessage(sessionID string, env domain.Envelope) *ChatDataMessage {
	return &ChatDataMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeChatData,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID: sessionID,
		Data:      env,
	}
}

// CreateListenStateMessage builds a silence-gating control message.
func CreateListenStateMessage(sessionID string, enableVAD bool) *ListenStateMessage {
	return &ListenStateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeListenState,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID: sessionID,
		EnableVAD: enableVAD,
	}
}
