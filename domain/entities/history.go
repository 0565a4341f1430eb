package entities

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleHuman     MessageRole = "human"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// ToolCall is a finalized tool invocation directive: name and argument
// payload fully reassembled and ready for dispatch.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// HistoryMessage represents a single message in the conversation history
type HistoryMessage struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// History is a bounded, ordered, role-tagged message log. It retains the
// most recent maxExchanges exchanges, where one exchange is a human message
// plus everything produced in reply to it (assistant and tool messages).
// Eviction drops the oldest exchange as a whole.
type History struct {
	maxExchanges int
	exchanges    [][]HistoryMessage
}

// NewHistory creates a history bounded to maxExchanges exchanges. A
// non-positive bound falls back to 20, matching the default history length
// of the chat handler configuration.
func NewHistory(maxExchanges int) *History {
	if maxExchanges <= 0 {
		maxExchanges = 20
	}
	return &History{maxExchanges: maxExchanges}
}

// Push appends a message. A human message opens a new exchange; assistant
// and tool messages attach to the exchange in progress.
func (h *History) Push(msg HistoryMessage) {
	if msg.Role == MessageRoleHuman || len(h.exchanges) == 0 {
		h.exchanges = append(h.exchanges, []HistoryMessage{msg})
		if len(h.exchanges) > h.maxExchanges {
			h.exchanges = h.exchanges[len(h.exchanges)-h.maxExchanges:]
		}
		return
	}
	last := len(h.exchanges) - 1
	h.exchanges[last] = append(h.exchanges[last], msg)
}

// Messages returns a flattened snapshot of the retained history in insertion
// order.
func (h *History) Messages() []HistoryMessage {
	var out []HistoryMessage
	for _, ex := range h.exchanges {
		out = append(out, ex...)
	}
	return out
}

// Exchanges returns the number of retained exchanges.
func (h *History) Exchanges() int {
	return len(h.exchanges)
}

// Clear drops all retained history.
func (h *History) Clear() {
	h.exchanges = nil
}
