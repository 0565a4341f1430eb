package websocket

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/leauyn/openavatarchat/domain"
)

func TestValidateAudioChunk(t *testing.T) {
	validator := NewMessageValidator()

	pcm := base64.StdEncoding.EncodeToString([]byte{0x01, 0x00, 0xFF, 0x7F})
	raw := []byte(`{"type":"audio_chunk","audio_data":"` + pcm + `","sample_rate":16000,"encoding":"pcm","chunk_sequence":0}`)

	parsed, err := validator.ValidateMessage(raw)
	if err != nil {
		t.Fatalf("ValidateMessage: %v", err)
	}
	msg, ok := parsed.(*AudioChunkMessage)
	if !ok {
		t.Fatalf("expected AudioChunkMessage, got %T", parsed)
	}

	samples, err := msg.DecodeSamples()
	if err != nil {
		t.Fatalf("DecodeSamples: %v", err)
	}
	if len(samples) != 2 || samples[0] != 1 || samples[1] != 32767 {
		t.Errorf("unexpected samples %v", samples)
	}
}

func TestValidateAudioChunkRejectsBadFields(t *testing.T) {
	validator := NewMessageValidator()

	cases := []struct {
		name string
		raw  string
	}{
		{"missing audio data", `{"type":"audio_chunk","sample_rate":16000}`},
		{"bad sample rate", `{"type":"audio_chunk","audio_data":"AAA=","sample_rate":4000}`},
		{"bad encoding", `{"type":"audio_chunk","audio_data":"AAA=","encoding":"mp3"}`},
		{"negative sequence", `{"type":"audio_chunk","audio_data":"AAA=","chunk_sequence":-1}`},
	}
	for _, tc := range cases {
		if _, err := validator.ValidateMessage([]byte(tc.raw)); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateFinalChunkWithoutAudio(t *testing.T) {
	validator := NewMessageValidator()

	parsed, err := validator.ValidateMessage([]byte(`{"type":"audio_chunk","is_final":true}`))
	if err != nil {
		t.Fatalf("final chunk without audio should be valid: %v", err)
	}
	msg := parsed.(*AudioChunkMessage)
	if !msg.IsFinal {
		t.Error("is_final not parsed")
	}
}

func TestValidateTextInput(t *testing.T) {
	validator := NewMessageValidator()

	parsed, err := validator.ValidateMessage([]byte(`{"type":"text_input","text":"你好","turn_id":"t1"}`))
	if err != nil {
		t.Fatalf("ValidateMessage: %v", err)
	}
	msg, ok := parsed.(*TextInputMessage)
	if !ok {
		t.Fatalf("expected TextInputMessage, got %T", parsed)
	}
	if msg.Text != "你好" || msg.TurnID != "t1" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestValidateUnknownType(t *testing.T) {
	validator := NewMessageValidator()
	if _, err := validator.ValidateMessage([]byte(`{"type":"teleport"}`)); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestChatDataMessageRoundTrip(t *testing.T) {
	env := domain.Envelope{
		Type:    domain.ChatDataAvatarText,
		Payload: "你好！",
		TurnID:  "t1",
	}
	raw, err := json.Marshal(CreateChatDataMessage("sess-1", env))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ChatDataMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != MessageTypeChatData || decoded.SessionID != "sess-1" {
		t.Errorf("unexpected header %+v", decoded.BaseMessage)
	}
	if decoded.Data != env {
		t.Errorf("envelope mangled: %+v", decoded.Data)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage("invalid_audio", "audio payload rejected", "odd length")
	if msg.Type != MessageTypeError || msg.Code != "invalid_audio" {
		t.Errorf("unexpected error message %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp not set")
	}
}
