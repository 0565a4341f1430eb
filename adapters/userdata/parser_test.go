package userdata

import (
	"strings"
	"testing"
)

func TestExtractCategoryPrimaryPattern(t *testing.T) {
	body := "A. 根据学校量表测评结果，该学生在情绪管理方面存在一定情况，处于重点关注群体。B. 建议……"
	if got := extractCategory(body); got != "重点关注" {
		t.Errorf("Expected 重点关注, got %q", got)
	}
}

func TestExtractCategorySecondaryPattern(t *testing.T) {
	body := "该学生整体表现良好，处于健康群体。"
	if got := extractCategory(body); got != "健康" {
		t.Errorf("Expected 健康, got %q", got)
	}
}

func TestExtractCategoryNoMatch(t *testing.T) {
	if got := extractCategory("无法判断的自由文本"); got != "" {
		t.Errorf("Expected empty category, got %q", got)
	}
}

func TestRenderAssessmentGroupsAndDedupes(t *testing.T) {
	items := []assessmentItem{
		{Name: "情绪管理", Value: "A. 根据学校量表测评结果，该学生情绪管理情况，处于重点关注群体"},
		{Name: "注意力", Value: "处于重点关注群体"},
		{Name: "情绪管理", Value: "处于重点关注群体"}, // duplicate name, same category
		{Name: "社交能力", Value: "处于一般关注群体"},
		{Name: "身体健康", Value: "处于健康群体"},
		{Name: "未知项目", Value: "没有匹配的内容"}, // skipped as unclassified
	}

	out := renderAssessment(items)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 category lines, got %d: %q", len(lines), out)
	}
	if lines[0] != "重点关注: 情绪管理, 注意力" {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if lines[1] != "一般关注: 社交能力" {
		t.Errorf("Unexpected second line: %q", lines[1])
	}
	if lines[2] != "健康: 身体健康" {
		t.Errorf("Unexpected third line: %q", lines[2])
	}
}

func TestRenderAssessmentEmpty(t *testing.T) {
	if out := renderAssessment(nil); out != "" {
		t.Errorf("Expected empty output, got %q", out)
	}
}

func strPtr(s string) *string { return &s }

func TestRenderProfileSkipsNilAndMapsSex(t *testing.T) {
	data := profileData{
		Name:       strPtr("张三"),
		Grade:      strPtr("高一"),
		Sex:        strPtr("1"),
		SchoolName: strPtr("第一中学"),
	}

	out := renderProfile(data)
	want := "姓名: 张三\n年级: 高一\n性别: 男\n学校名称: 第一中学"
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestRenderProfileUnknownSexCodeKept(t *testing.T) {
	out := renderProfile(profileData{Sex: strPtr("9")})
	if out != "性别: 9" {
		t.Errorf("Expected raw code kept, got %q", out)
	}
}
