package repositories

import "context"

// RecognitionConfig represents audio and model configuration for a streaming
// recognition session.
type RecognitionConfig struct {
	Model                    string   `json:"model"`
	SampleRate               int      `json:"sample_rate"`
	Format                   string   `json:"format"`
	LanguageHints            []string `json:"language_hints"`
	EnablePunctuation        bool     `json:"enable_punctuation"`
	EnableInverseText        bool     `json:"enable_inverse_text"`
	EnableIntermediateResult bool     `json:"enable_intermediate_result"`
	MaxSentenceSilenceMs     int      `json:"max_sentence_silence_ms"`
}

// RecognitionEventKind classifies events delivered by a recognizer stream.
type RecognitionEventKind int

const (
	// RecognitionPartial is a non-final fragment of the sentence in progress.
	RecognitionPartial RecognitionEventKind = iota
	// RecognitionSentence is a finalized sentence.
	RecognitionSentence
	// RecognitionError signals a recognizer failure; the stream is dead.
	RecognitionError
	// RecognitionClosed signals normal end of the event stream.
	RecognitionClosed
)

// RecognitionEvent is one asynchronous result from the recognizer.
type RecognitionEvent struct {
	Kind RecognitionEventKind
	Text string
	Err  error
}

// RecognizerStream is one live streaming-recognition session. SendFrame and
// Stop are called from the session's own flow; events are produced by the
// adapter's receive goroutine. The events channel is the only structure
// shared between the two and is closed by the adapter once the stream ends.
type RecognizerStream interface {
	// SendFrame forwards one audio frame to the recognizer.
	SendFrame(frame []byte) error
	// Stop signals end of audio and lets the recognizer flush its results.
	Stop(ctx context.Context) error
	// Events exposes asynchronous recognition results. The channel is closed
	// after a Closed or Error event.
	Events() <-chan RecognitionEvent
}

// SpeechRecognizer abstracts a streaming speech recognition service.
type SpeechRecognizer interface {
	Start(ctx context.Context, config RecognitionConfig) (RecognizerStream, error)
}
