package usecase

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain"
	"github.com/leauyn/openavatarchat/domain/entities"
	"github.com/leauyn/openavatarchat/domain/repositories"
	"github.com/leauyn/openavatarchat/internal/session"
)

const apologyText = "抱歉，我现在遇到了一点问题，请稍后再试。"

// retrievalChunkRunes is the emission granularity for knowledge-base answers.
const retrievalChunkRunes = 10

// ChatConfig configures the turn response orchestrator.
type ChatConfig struct {
	Model         string
	HistoryLength int
	MaxTokens     int
	Temperature   float32

	EnableVideoInput bool
	EnableRetrieval  bool
	EnableTools      bool

	// DefaultSubjectID is the subject used when neither the session nor the
	// store carries a binding.
	DefaultSubjectID string
	// RetrievalNotFound is the exact answer text the knowledge base returns
	// when it has nothing; a match falls through to the completion path.
	RetrievalNotFound string

	Templates PromptTemplates
}

// DefaultChatConfig returns the default orchestrator configuration.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Model:             "qwen-plus",
		HistoryLength:     20,
		EnableTools:       true,
		RetrievalNotFound: "知识库中没有找到相关内容",
	}
}

// chatSessionState is one session's conversational state. All access is
// serialized by the handler's per-session tick.
type chatSessionState struct {
	phase        PromptPhase
	activePrompt string
	// ongoingPrompt is pre-rendered alongside the opening prompt so the
	// phase swap after the first exchange needs no further lookups.
	ongoingPrompt string
	promptsReady  bool
	subjectID     string

	history *entities.History
	// turns accumulates human text fragments per turn id until end of turn.
	turns map[string]*strings.Builder
	// currentImage is the most recent camera frame, consumed by the next
	// completed turn.
	currentImage []byte
}

// ChatHandler turns a flushed human turn into a streamed assistant reply,
// optionally short-circuited by knowledge-base retrieval and augmented by a
// tool round-trip.
type ChatHandler struct {
	config     ChatConfig
	completion repositories.ChatCompletion
	retriever  repositories.KnowledgeRetriever
	dispatcher *ToolDispatcher
	prompts    *PromptController
	userData   repositories.UserDataService
	store      *session.Store
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*chatSessionState
}

// NewChatHandler creates the orchestrator. retriever may be nil when
// retrieval is disabled.
func NewChatHandler(
	config ChatConfig,
	completion repositories.ChatCompletion,
	retriever repositories.KnowledgeRetriever,
	userData repositories.UserDataService,
	store *session.Store,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		config:     config,
		completion: completion,
		retriever:  retriever,
		dispatcher: NewToolDispatcher(userData, logger),
		prompts:    NewPromptController(config.Templates),
		userData:   userData,
		store:      store,
		logger:     logger,
		sessions:   make(map[string]*chatSessionState),
	}
}

// Configure validates the orchestrator configuration.
func (h *ChatHandler) Configure() error {
	if h.config.Model == "" {
		h.config.Model = "qwen-plus"
	}
	if h.config.HistoryLength <= 0 {
		h.config.HistoryLength = 20
	}
	if h.config.EnableRetrieval && h.retriever == nil {
		h.config.EnableRetrieval = false
		h.logger.Warn("retrieval enabled without a retriever, disabling")
	}
	return nil
}

// CreateSession prepares conversational state for a session.
func (h *ChatHandler) CreateSession(_ context.Context, sess *session.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[sess.ID] = &chatSessionState{
		phase:   PhaseOpening,
		history: entities.NewHistory(h.config.HistoryLength),
		turns:   make(map[string]*strings.Builder),
	}
	h.logger.Info("chat session created", zap.String("session_id", sess.ID))
	return nil
}

// DestroySession drops conversational state.
func (h *ChatHandler) DestroySession(sess *session.Context) {
	h.mu.Lock()
	delete(h.sessions, sess.ID)
	h.mu.Unlock()
	h.store.Remove(sess.ID)
	h.logger.Info("chat session destroyed", zap.String("session_id", sess.ID))
}

func (h *ChatHandler) state(sessionID string) *chatSessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sessionID]
}

// Handle accumulates human text fragments and, on end of turn, produces the
// assistant response stream terminated by exactly one end sentinel.
func (h *ChatHandler) Handle(ctx context.Context, sess *session.Context, input domain.ChatData, emit EmitFunc) error {
	state := h.state(sess.ID)
	if state == nil {
		return nil
	}

	switch input.Type {
	case domain.ChatDataCameraVideo:
		if h.config.EnableVideoInput && len(input.Image) > 0 {
			state.currentImage = input.Image
		}
		return nil
	case domain.ChatDataHumanText:
	default:
		return nil
	}

	turnID := input.TurnID
	if turnID == "" {
		turnID = sess.ID
	}

	if !input.EndOfTurn {
		buf, ok := state.turns[turnID]
		if !ok {
			buf = &strings.Builder{}
			state.turns[turnID] = buf
		}
		buf.WriteString(input.Text)
		return nil
	}

	var b strings.Builder
	if buf, ok := state.turns[turnID]; ok {
		b.WriteString(buf.String())
		delete(state.turns, turnID)
	}
	b.WriteString(input.Text)

	query := strings.TrimSpace(stripMarkup(b.String()))
	if query == "" {
		// Nothing survived markup stripping; the turn is abandoned without
		// any output.
		h.logger.Debug("empty turn dropped", zap.String("session_id", sess.ID))
		return nil
	}

	h.respond(ctx, sess, state, turnID, query, emit)
	return nil
}

// respond runs one complete response for a finalized human turn.
func (h *ChatHandler) respond(ctx context.Context, sess *session.Context, state *chatSessionState, turnID, query string, emit EmitFunc) {
	h.ensurePrompts(ctx, sess, state)
	h.logger.Info("turn flushed",
		zap.String("session_id", sess.ID),
		zap.String("turn_id", turnID),
		zap.String("query", query),
	)

	// The sentinel closes the turn exactly once, whatever path produced the
	// reply.
	defer emit(domain.EndSentinel(domain.ChatDataAvatarText, turnID))
	defer h.completeTurn(state)

	if h.config.EnableRetrieval {
		if answered := h.tryRetrieval(ctx, state, turnID, query, emit); answered {
			return
		}
	}

	messages := h.buildMessages(state, query)
	state.currentImage = nil

	var tools []repositories.ToolSchema
	toolChoice := ""
	if h.config.EnableTools {
		tools = ToolCatalog()
		toolChoice = "auto"
	}

	assembler := NewToolCallAssembler()
	firstText, err := h.streamPass(ctx, &repositories.ChatRequest{
		Model:       h.config.Model,
		Messages:    messages,
		Tools:       tools,
		ToolChoice:  toolChoice,
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	}, assembler, turnID, emit)
	if err != nil {
		h.logger.Error("completion failed", zap.String("session_id", sess.ID), zap.Error(err))
		emit(domain.Envelope{Type: domain.ChatDataAvatarText, Payload: apologyText, TurnID: turnID})
		return
	}

	state.history.Push(entities.HistoryMessage{Role: entities.MessageRoleHuman, Content: query})

	calls := assembler.Finalize()
	if len(calls) == 0 {
		state.history.Push(entities.HistoryMessage{Role: entities.MessageRoleAssistant, Content: firstText})
		return
	}

	state.history.Push(entities.HistoryMessage{
		Role:      entities.MessageRoleAssistant,
		Content:   firstText,
		ToolCalls: calls,
	})
	for _, call := range calls {
		h.logger.Info("dispatching tool",
			zap.String("session_id", sess.ID),
			zap.String("tool", call.Name),
			zap.String("arguments", call.Arguments),
		)
		result := h.dispatcher.Dispatch(ctx, call, state.subjectID)
		state.history.Push(entities.HistoryMessage{
			Role:       entities.MessageRoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}

	// Second pass carries the tool results and offers no tools, so the
	// model must answer in text.
	finalText, err := h.streamPass(ctx, &repositories.ChatRequest{
		Model:       h.config.Model,
		Messages:    h.historyMessages(state),
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	}, nil, turnID, emit)
	if err != nil {
		h.logger.Error("tool follow-up completion failed", zap.String("session_id", sess.ID), zap.Error(err))
		emit(domain.Envelope{Type: domain.ChatDataAvatarText, Payload: apologyText, TurnID: turnID})
		state.history.Push(entities.HistoryMessage{Role: entities.MessageRoleAssistant, Content: apologyText})
		return
	}
	state.history.Push(entities.HistoryMessage{Role: entities.MessageRoleAssistant, Content: finalText})
}

// streamPass runs one streaming completion call, emitting text deltas as they
// arrive and folding tool-call fragments into the assembler when one is
// given. It returns the accumulated text.
func (h *ChatHandler) streamPass(ctx context.Context, req *repositories.ChatRequest, assembler *ToolCallAssembler, turnID string, emit EmitFunc) (string, error) {
	stream, err := h.completion.StreamChat(ctx, req)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return text.String(), chunk.Err
		}
		if chunk.Delta.Content != "" {
			text.WriteString(chunk.Delta.Content)
			emit(domain.Envelope{
				Type:    domain.ChatDataAvatarText,
				Payload: chunk.Delta.Content,
				TurnID:  turnID,
			})
		}
		if assembler != nil {
			for _, fragment := range chunk.Delta.ToolCalls {
				assembler.Add(fragment)
			}
		}
	}
	return text.String(), nil
}

// tryRetrieval asks the knowledge base first. A usable answer is emitted in
// small chunks and recorded in history, skipping the completion passes
// entirely. Returns false on miss or failure.
func (h *ChatHandler) tryRetrieval(ctx context.Context, state *chatSessionState, turnID, query string, emit EmitFunc) bool {
	stream, err := h.retriever.StreamQuery(ctx, query)
	if err != nil {
		h.logger.Warn("retrieval failed, falling back to completion", zap.Error(err))
		return false
	}

	// The not-found sentinel can only be matched against the complete
	// answer, so the stream is accumulated before anything is emitted.
	var b strings.Builder
	for piece := range stream {
		b.WriteString(piece)
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" || answer == h.config.RetrievalNotFound {
		return false
	}

	h.logger.Info("retrieval answered turn", zap.String("turn_id", turnID))
	for _, chunk := range splitRunes(answer, retrievalChunkRunes) {
		emit(domain.Envelope{Type: domain.ChatDataAvatarText, Payload: chunk, TurnID: turnID})
	}
	state.history.Push(entities.HistoryMessage{Role: entities.MessageRoleHuman, Content: query})
	state.history.Push(entities.HistoryMessage{Role: entities.MessageRoleAssistant, Content: answer})
	return true
}

// ensurePrompts resolves the session's subject and renders both phase
// prompts once, on the first completed turn.
func (h *ChatHandler) ensurePrompts(ctx context.Context, sess *session.Context, state *chatSessionState) {
	if state.promptsReady {
		return
	}

	subjectID := sess.SubjectID
	if subjectID == "" {
		subjectID = h.store.Get(sess.ID)
	}
	if subjectID == "" {
		subjectID = h.config.DefaultSubjectID
	}
	state.subjectID = subjectID

	var profile, assessment string
	if subjectID != "" && h.userData != nil {
		profile = h.userData.Profile(ctx, subjectID)
		assessment = h.userData.AssessmentSummary(ctx, subjectID)
	}

	state.activePrompt = h.prompts.Build(PhaseOpening, profile, assessment)
	state.ongoingPrompt = h.prompts.Build(PhaseOngoing, profile, assessment)
	state.promptsReady = true
	h.logger.Info("system prompts rendered",
		zap.String("session_id", sess.ID),
		zap.String("subject_id", subjectID),
		zap.Bool("has_profile", profile != ""),
		zap.Bool("has_assessment", assessment != ""),
	)
}

// completeTurn advances the conversation phase after the first exchange.
// The phase never moves backwards.
func (h *ChatHandler) completeTurn(state *chatSessionState) {
	if state.phase == PhaseOpening {
		state.phase = PhaseOngoing
		state.activePrompt = state.ongoingPrompt
	}
}

// buildMessages assembles the first-pass request: system prompt, retained
// history and the current human turn, with the pending camera frame attached
// when video input is enabled.
func (h *ChatHandler) buildMessages(state *chatSessionState, query string) []repositories.Message {
	messages := h.historyMessages(state)
	human := repositories.Message{Role: repositories.RoleUser, Content: query}
	if h.config.EnableVideoInput && len(state.currentImage) > 0 {
		human.ImageData = state.currentImage
	}
	return append(messages, human)
}

// historyMessages converts the retained history into completion messages,
// prefixed by the active system prompt.
func (h *ChatHandler) historyMessages(state *chatSessionState) []repositories.Message {
	messages := []repositories.Message{{Role: repositories.RoleSystem, Content: state.activePrompt}}
	for _, msg := range state.history.Messages() {
		switch msg.Role {
		case entities.MessageRoleHuman:
			messages = append(messages, repositories.Message{Role: repositories.RoleUser, Content: msg.Content})
		case entities.MessageRoleAssistant:
			messages = append(messages, repositories.Message{
				Role:      repositories.RoleAssistant,
				Content:   msg.Content,
				ToolCalls: msg.ToolCalls,
			})
		case entities.MessageRoleTool:
			messages = append(messages, repositories.Message{
				Role:       repositories.RoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return messages
}

// splitRunes cuts text into rune-bounded chunks of at most size runes.
func splitRunes(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := size
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
