package usecase

import (
	"encoding/json"

	"github.com/leauyn/openavatarchat/domain/entities"
)

// ToolCallAssembler reassembles streamed tool-call fragments into complete
// calls. Providers split one call across many deltas: the first fragment
// carries the id and function name, continuations carry argument text and may
// omit the id entirely.
type ToolCallAssembler struct {
	order  []string
	calls  map[string]*entities.ToolCall
	lastID string
}

// NewToolCallAssembler creates an empty assembler.
func NewToolCallAssembler() *ToolCallAssembler {
	return &ToolCallAssembler{calls: make(map[string]*entities.ToolCall)}
}

// Add folds one streamed fragment into the assembler. A fragment with an
// empty id continues the most recently seen call.
func (a *ToolCallAssembler) Add(fragment entities.ToolCall) {
	id := fragment.ID
	if id == "" {
		id = a.lastID
		if id == "" {
			// Continuation before any call opened; nothing to attach to.
			return
		}
	} else {
		a.lastID = id
	}

	call, ok := a.calls[id]
	if !ok {
		call = &entities.ToolCall{ID: id}
		a.calls[id] = call
		a.order = append(a.order, id)
	}
	if fragment.Name != "" {
		call.Name = fragment.Name
	}
	call.Arguments += fragment.Arguments
}

// Pending reports whether any fragments have been folded in.
func (a *ToolCallAssembler) Pending() bool {
	return len(a.order) > 0
}

// Finalize returns the completed calls in arrival order. Calls that never
// received a function name, or whose accumulated arguments are not valid
// JSON, are dropped. Empty arguments normalize to an empty object.
func (a *ToolCallAssembler) Finalize() []entities.ToolCall {
	out := make([]entities.ToolCall, 0, len(a.order))
	for _, id := range a.order {
		call := a.calls[id]
		if call.Name == "" {
			continue
		}
		if call.Arguments == "" {
			call.Arguments = "{}"
		}
		if !json.Valid([]byte(call.Arguments)) {
			continue
		}
		out = append(out, *call)
	}
	return out
}

// Reset clears the assembler for the next completion pass.
func (a *ToolCallAssembler) Reset() {
	a.order = nil
	a.calls = make(map[string]*entities.ToolCall)
	a.lastID = ""
}
