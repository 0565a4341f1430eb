package usecase

import (
	"strings"
	"testing"
)

func TestPromptDefaultTemplate(t *testing.T) {
	c := NewPromptController(PromptTemplates{})
	prompt := c.Build(PhaseOngoing, "", "")
	if !strings.Contains(prompt, "AI 助手") {
		t.Errorf("default template missing: %q", prompt)
	}
}

func TestPromptPhaseClosingLines(t *testing.T) {
	c := NewPromptController(PromptTemplates{Opening: "opening body", Ongoing: "ongoing body"})

	opening := c.Build(PhaseOpening, "", "")
	if !strings.Contains(opening, "opening body") || !strings.Contains(opening, "开场白") {
		t.Errorf("opening prompt malformed: %q", opening)
	}

	ongoing := c.Build(PhaseOngoing, "", "")
	if !strings.Contains(ongoing, "ongoing body") || strings.Contains(ongoing, "开场白") {
		t.Errorf("ongoing prompt malformed: %q", ongoing)
	}
}

func TestPromptContextBlocks(t *testing.T) {
	c := NewPromptController(PromptTemplates{})

	prompt := c.Build(PhaseOngoing, "姓名: 张三", "重点关注: 焦虑")
	if !strings.Contains(prompt, "【用户信息】：\n姓名: 张三") {
		t.Errorf("profile block missing: %q", prompt)
	}
	if !strings.Contains(prompt, "【用户测评数据】：\n重点关注: 焦虑") {
		t.Errorf("assessment block missing: %q", prompt)
	}

	bare := c.Build(PhaseOngoing, "", "")
	if strings.Contains(bare, "【用户信息】") || strings.Contains(bare, "【用户测评数据】") {
		t.Errorf("empty context produced labeled blocks: %q", bare)
	}
}
