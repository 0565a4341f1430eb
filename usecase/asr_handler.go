package usecase

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain"
	"github.com/leauyn/openavatarchat/domain/repositories"
	"github.com/leauyn/openavatarchat/internal/session"
	"github.com/leauyn/openavatarchat/internal/slicer"
)

// ASRConfig configures the recognition handler.
type ASRConfig struct {
	Model                    string
	SampleRate               int
	Format                   string
	LanguageHints            []string
	EnablePunctuation        bool
	EnableInverseText        bool
	EnableIntermediateResult bool
	MaxSentenceSilenceMs     int
	// FrameSize is the slicer frame size in samples.
	FrameSize int
}

// DefaultASRConfig returns the default recognition configuration.
func DefaultASRConfig() ASRConfig {
	return ASRConfig{
		Model:                    "paraformer-realtime-v2",
		SampleRate:               16000,
		Format:                   "pcm",
		LanguageHints:            []string{"zh", "en"},
		EnablePunctuation:        true,
		EnableInverseText:        true,
		EnableIntermediateResult: true,
		MaxSentenceSilenceMs:     800,
		FrameSize:                16000,
	}
}

// asrSessionState tracks one recognition session. State is Idle when stream
// is nil, Listening while it is live and Draining inside the end-of-speech
// flush.
type asrSessionState struct {
	slicer *slicer.Slicer
	stream repositories.RecognizerStream

	// seen dedupes finalized sentence text within the current turn. Exact
	// text match can suppress a genuinely repeated utterance; keeping the
	// set turn-scoped and explicit preserves the upstream behavior while
	// bounding its effect.
	seen       map[string]struct{}
	transcript []string
	// emitted counts the transcript entries already surfaced as
	// intermediate outputs; the flush sends only the remainder so
	// downstream accumulators see each sentence once.
	emitted int
}

func (s *asrSessionState) reset() {
	s.stream = nil
	s.seen = make(map[string]struct{})
	s.transcript = nil
	s.emitted = 0
	s.slicer.Reset()
}

// ASRHandler owns one streaming-recognizer lifecycle per turn and converts
// its asynchronous events into ordered human-text envelopes.
type ASRHandler struct {
	config     ASRConfig
	recognizer repositories.SpeechRecognizer
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*asrSessionState
}

// NewASRHandler creates the recognition handler.
func NewASRHandler(config ASRConfig, recognizer repositories.SpeechRecognizer, logger *zap.Logger) *ASRHandler {
	return &ASRHandler{
		config:     config,
		recognizer: recognizer,
		logger:     logger,
		sessions:   make(map[string]*asrSessionState),
	}
}

// Configure validates the handler configuration.
func (h *ASRHandler) Configure() error {
	if h.config.SampleRate <= 0 {
		h.config.SampleRate = 16000
	}
	if h.config.FrameSize <= 0 {
		h.config.FrameSize = h.config.SampleRate
	}
	return nil
}

// CreateSession prepares recognition state for a session.
func (h *ASRHandler) CreateSession(_ context.Context, sess *session.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := &asrSessionState{slicer: slicer.New(h.config.FrameSize)}
	state.reset()
	h.sessions[sess.ID] = state

	h.logger.Info("recognition session created", zap.String("session_id", sess.ID))
	return nil
}

// DestroySession tears recognition state down, stopping any live stream.
func (h *ASRHandler) DestroySession(sess *session.Context) {
	h.mu.Lock()
	state := h.sessions[sess.ID]
	delete(h.sessions, sess.ID)
	h.mu.Unlock()

	if state != nil && state.stream != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := state.stream.Stop(ctx); err != nil {
			h.logger.Debug("recognizer already stopped", zap.Error(err))
		}
	}
	h.logger.Info("recognition session destroyed", zap.String("session_id", sess.ID))
}

func (h *ASRHandler) state(sessionID string) *asrSessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sessionID]
}

// Handle processes one audio unit: forwards sliced frames to the recognizer,
// drains queued events into intermediate outputs, and on end of speech
// flushes the turn.
func (h *ASRHandler) Handle(ctx context.Context, sess *session.Context, input domain.ChatData, emit EmitFunc) error {
	if input.Type != domain.ChatDataHumanAudio {
		return nil
	}
	state := h.state(sess.ID)
	if state == nil {
		return nil
	}

	turnID := input.TurnID
	if turnID == "" {
		turnID = sess.ID
	}

	if len(input.Samples) > 0 {
		if state.stream == nil {
			stream, err := h.recognizer.Start(ctx, repositories.RecognitionConfig{
				Model:                    h.config.Model,
				SampleRate:               h.config.SampleRate,
				Format:                   h.config.Format,
				LanguageHints:            h.config.LanguageHints,
				EnablePunctuation:        h.config.EnablePunctuation,
				EnableInverseText:        h.config.EnableInverseText,
				EnableIntermediateResult: h.config.EnableIntermediateResult,
				MaxSentenceSilenceMs:     h.config.MaxSentenceSilenceMs,
			})
			if err != nil {
				h.logger.Error("failed to start recognizer", zap.String("session_id", sess.ID), zap.Error(err))
				return nil
			}
			state.stream = stream
			h.logger.Info("recognition started", zap.String("session_id", sess.ID))
		}

		for _, frame := range state.slicer.Push(input.Samples) {
			if err := state.stream.SendFrame(pcmBytes(frame)); err != nil {
				h.logger.Error("failed to forward audio frame", zap.Error(err))
				break
			}
		}
	}

	if !input.SpeechEnd {
		h.drainQueued(sess, state, turnID, emit)
		return nil
	}

	h.flush(ctx, sess, state, turnID, emit)
	return nil
}

// drainQueued performs a non-blocking receive-all on the event queue,
// emitting each newly finalized sentence as an intermediate output.
func (h *ASRHandler) drainQueued(sess *session.Context, state *asrSessionState, turnID string, emit EmitFunc) {
	if state.stream == nil {
		return
	}
	for {
		select {
		case ev, ok := <-state.stream.Events():
			if !ok {
				// Queue closed without an end-of-speech flush; the turn
				// cannot produce text anymore.
				h.abandonTurn(sess, state)
				return
			}
			if done := h.processEvent(sess, state, ev, turnID, emit, true); done {
				return
			}
		default:
			return
		}
	}
}

// processEvent folds one recognition event into the turn. Returns true when
// the event terminated the stream.
func (h *ASRHandler) processEvent(sess *session.Context, state *asrSessionState, ev repositories.RecognitionEvent, turnID string, emit EmitFunc, emitIntermediate bool) bool {
	switch ev.Kind {
	case repositories.RecognitionPartial:
		h.logger.Debug("partial result", zap.String("text", ev.Text))
	case repositories.RecognitionSentence:
		text := strings.TrimSpace(stripMarkup(ev.Text))
		if text == "" {
			return false
		}
		if _, dup := state.seen[text]; dup {
			return false
		}
		state.seen[text] = struct{}{}
		state.transcript = append(state.transcript, text)
		if emitIntermediate {
			state.emitted = len(state.transcript)
			h.logger.Info("intermediate result", zap.String("text", text))
			emit(domain.Envelope{
				Type:    domain.ChatDataHumanText,
				Payload: text,
				TurnID:  turnID,
			})
		}
	case repositories.RecognitionError:
		h.logger.Error("recognizer error", zap.String("session_id", sess.ID), zap.Error(ev.Err))
		// Mid-turn errors abandon the turn; during the flush drain the
		// transcript gathered so far is still delivered.
		if emitIntermediate {
			h.abandonTurn(sess, state)
		}
		return true
	case repositories.RecognitionClosed:
		return true
	}
	return false
}

// flush stops the recognizer, synchronously drains the remaining events and
// emits the turn's final text plus the end sentinel, or re-arms silence
// gating when the turn produced nothing.
func (h *ASRHandler) flush(ctx context.Context, sess *session.Context, state *asrSessionState, turnID string, emit EmitFunc) {
	if state.stream != nil {
		if remainder := state.slicer.Flush(); len(remainder) > 0 {
			if err := state.stream.SendFrame(pcmBytes(remainder)); err != nil {
				h.logger.Debug("failed to forward trailing frame", zap.Error(err))
			}
		}

		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := state.stream.Stop(stopCtx); err != nil {
			h.logger.Debug("recognizer stop failed", zap.Error(err))
		}
		cancel()

		// Sentences that arrive during the drain still join the turn's
		// transcript; they are not re-emitted individually.
		for ev := range state.stream.Events() {
			if done := h.processEvent(sess, state, ev, turnID, emit, false); done {
				break
			}
		}
		h.logger.Info("recognition stopped", zap.String("session_id", sess.ID))
	}

	// Sentences already surfaced mid-turn are not re-sent; only the
	// residual drained here goes out, so the turn's text reaches the
	// downstream accumulator exactly once.
	residual := strings.TrimSpace(stripMarkup(strings.Join(state.transcript[state.emitted:], "")))
	hadText := len(state.transcript) > 0
	state.reset()

	if !hadText {
		// Nothing recognized: re-arm voice-activity gating and abandon the
		// turn without output.
		sess.Shared.SetEnableVAD(true)
		h.logger.Info("empty recognition turn, re-arming silence gating", zap.String("session_id", sess.ID))
		return
	}

	if residual != "" {
		h.logger.Info("final result", zap.String("text", residual))
		emit(domain.Envelope{
			Type:    domain.ChatDataHumanText,
			Payload: residual,
			TurnID:  turnID,
		})
	}
	emit(domain.EndSentinel(domain.ChatDataHumanText, turnID))
}

// abandonTurn resets the session to idle with no text for this turn.
func (h *ASRHandler) abandonTurn(sess *session.Context, state *asrSessionState) {
	state.reset()
	sess.Shared.SetEnableVAD(true)
}

// pcmBytes renders int16 samples as little-endian PCM.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
