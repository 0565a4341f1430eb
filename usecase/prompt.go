package usecase

import "strings"

// PromptPhase selects which conversation-stage template the system prompt is
// built from.
type PromptPhase int

const (
	// PhaseOpening covers the first exchange, where the assistant greets
	// and sets the scene.
	PhaseOpening PromptPhase = iota
	// PhaseOngoing covers every exchange after the first.
	PhaseOngoing
)

const defaultPromptTemplate = "请你扮演一个 AI 助手，用简短的对话来回答用户的问题，并在合适的时机结束对话。"

// PromptTemplates holds the per-phase system prompt bodies. An empty field
// falls back to the default template.
type PromptTemplates struct {
	Opening string
	Ongoing string
}

// PromptController renders phase-specific system prompts, optionally enriched
// with subject profile and assessment context.
type PromptController struct {
	templates PromptTemplates
}

// NewPromptController creates a prompt controller over the given templates.
func NewPromptController(templates PromptTemplates) *PromptController {
	return &PromptController{templates: templates}
}

// Build renders the system prompt for a phase. profile and assessment are
// appended as labeled context blocks when non-empty.
func (c *PromptController) Build(phase PromptPhase, profile, assessment string) string {
	var b strings.Builder
	b.WriteString(c.template(phase))
	b.WriteString("\n")

	if profile != "" {
		b.WriteString("【用户信息】：\n")
		b.WriteString(profile)
		b.WriteString("\n")
	}
	if assessment != "" {
		b.WriteString("【用户测评数据】：\n")
		b.WriteString(assessment)
		b.WriteString("\n")
	}

	switch phase {
	case PhaseOpening:
		b.WriteString("现在，请你作为本次对话的发起方，说一句简短自然的开场白。")
	default:
		b.WriteString("请根据以上信息回答用户的问题。")
	}
	return b.String()
}

func (c *PromptController) template(phase PromptPhase) string {
	t := c.templates.Ongoing
	if phase == PhaseOpening {
		t = c.templates.Opening
	}
	if t == "" {
		return defaultPromptTemplate
	}
	return t
}
