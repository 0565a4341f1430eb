// Package usecase contains the two cooperating state machines of the turn
// pipeline: the recognition session, turning streamed audio into turn-bounded
// human text, and the turn response orchestrator, turning flushed human text
// into a streamed, tool-augmented assistant reply.
package usecase

import (
	"context"
	"regexp"

	"github.com/leauyn/openavatarchat/domain"
	"github.com/leauyn/openavatarchat/internal/session"
)

// EmitFunc receives output envelopes in emission order. Implementations must
// not block for long; the handler's flow is suspended while it runs.
type EmitFunc func(domain.Envelope)

// Handler is the capability interface every pipeline stage implements. The
// host composes handlers by dependency injection: it configures the handler
// once, creates one session context per conversation, feeds inbound units
// through Handle and tears the session down at the end.
type Handler interface {
	// Configure validates the handler's configuration before first use.
	Configure() error
	// CreateSession prepares per-session state.
	CreateSession(ctx context.Context, sess *session.Context) error
	// Handle processes one inbound unit, emitting zero or more envelopes.
	Handle(ctx context.Context, sess *session.Context, input domain.ChatData, emit EmitFunc) error
	// DestroySession releases per-session state.
	DestroySession(sess *session.Context)
}

// control markup such as <|endofspeech|> that recognizers and models leak
// into text
var markupPattern = regexp.MustCompile(`<\|.*?\|>`)

// stripMarkup removes paired control-marker tokens from text.
func stripMarkup(text string) string {
	return markupPattern.ReplaceAllString(text, "")
}
