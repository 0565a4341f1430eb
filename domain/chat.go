package domain

// ChatDataType identifies the logical channel a piece of chat data belongs to.
type ChatDataType string

const (
	ChatDataHumanAudio  ChatDataType = "human_audio"
	ChatDataHumanText   ChatDataType = "human_text"
	ChatDataAvatarText  ChatDataType = "avatar_text"
	ChatDataCameraVideo ChatDataType = "camera_video"
)

// ChatData is one inbound unit of work delivered to a handler.
type ChatData struct {
	Type ChatDataType

	// Samples carries PCM audio for the human_audio channel.
	Samples []int16
	// Text carries a fragment for the human_text and avatar_text channels.
	Text string
	// Image carries the most recent encoded video frame for camera_video.
	Image []byte

	// TurnID correlates fragments belonging to one turn. Handlers fall back
	// to the session id when it is empty.
	TurnID string
	// EndOfTurn marks the last fragment of a turn on the text channels.
	EndOfTurn bool
	// SpeechEnd marks end of speech on the audio channel.
	SpeechEnd bool
}

// Envelope is one output data bundle produced by a handler. A completed turn
// is terminated by exactly one envelope with EndOfTurn=true and an empty
// payload.
type Envelope struct {
	Type      ChatDataType `json:"type"`
	Payload   string       `json:"payload"`
	TurnID    string       `json:"turn_id"`
	EndOfTurn bool         `json:"end_of_turn"`
}

// EndSentinel builds the terminating envelope for a turn.
func EndSentinel(t ChatDataType, turnID string) Envelope {
	return Envelope{Type: t, TurnID: turnID, EndOfTurn: true}
}
