package usecase

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/entities"
)

func TestToolCatalogNames(t *testing.T) {
	want := map[string]bool{
		"get_user_info":             false,
		"get_user_survey_data":      false,
		"get_survey_detail":         false,
		"get_guidance_by_code":      false,
		"get_guidance_by_dimension": false,
		"query_knowledge_base":      false,
	}
	for _, schema := range ToolCatalog() {
		if _, ok := want[schema.Name]; !ok {
			t.Errorf("unexpected tool %q", schema.Name)
			continue
		}
		want[schema.Name] = true
		if len(schema.Parameters) == 0 {
			t.Errorf("tool %q has no parameter schema", schema.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %q missing from catalog", name)
		}
	}
}

func TestDispatchProfileLookup(t *testing.T) {
	data := &fakeUserData{profile: "姓名: 张三"}
	d := NewToolDispatcher(data, zap.NewNop())

	result := d.Dispatch(context.Background(), entities.ToolCall{
		ID:        "call_1",
		Name:      "get_user_info",
		Arguments: `{"user_id":"42"}`,
	}, "fallback")

	if result != "姓名: 张三" {
		t.Errorf("unexpected result %q", result)
	}
	if len(data.profileIDs) != 1 || data.profileIDs[0] != "42" {
		t.Errorf("expected lookup for 42, got %v", data.profileIDs)
	}
}

func TestDispatchFallsBackToSubject(t *testing.T) {
	data := &fakeUserData{profile: "姓名: 张三"}
	d := NewToolDispatcher(data, zap.NewNop())

	d.Dispatch(context.Background(), entities.ToolCall{
		ID:        "call_1",
		Name:      "get_user_info",
		Arguments: `{}`,
	}, "42")

	if len(data.profileIDs) != 1 || data.profileIDs[0] != "42" {
		t.Errorf("expected subject fallback to 42, got %v", data.profileIDs)
	}
}

func TestDispatchDimensionArgument(t *testing.T) {
	data := &fakeUserData{guidance: "建议多与同学交流"}
	d := NewToolDispatcher(data, zap.NewNop())

	result := d.Dispatch(context.Background(), entities.ToolCall{
		ID:        "call_1",
		Name:      "get_guidance_by_dimension",
		Arguments: `{"dimension":"人际关系"}`,
	}, "42")

	if result != "建议多与同学交流" {
		t.Errorf("unexpected result %q", result)
	}
	if len(data.queriedDims) != 1 || data.queriedDims[0] != "人际关系" {
		t.Errorf("dimension argument not forwarded: %v", data.queriedDims)
	}
}

func TestDispatchEmptyResultFallback(t *testing.T) {
	d := NewToolDispatcher(&fakeUserData{}, zap.NewNop())

	result := d.Dispatch(context.Background(), entities.ToolCall{
		ID:        "call_1",
		Name:      "get_survey_detail",
		Arguments: `{"user_id":"42"}`,
	}, "")

	if result != "未查询到相关数据" {
		t.Errorf("unexpected fallback %q", result)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewToolDispatcher(&fakeUserData{}, zap.NewNop())

	result := d.Dispatch(context.Background(), entities.ToolCall{
		ID:        "call_1",
		Name:      "self_destruct",
		Arguments: `{}`,
	}, "")

	if !strings.Contains(result, "self_destruct") {
		t.Errorf("unknown tool result should name the tool: %q", result)
	}
}

func TestDispatchMalformedArguments(t *testing.T) {
	data := &fakeUserData{profile: "姓名: 张三"}
	d := NewToolDispatcher(data, zap.NewNop())

	result := d.Dispatch(context.Background(), entities.ToolCall{
		ID:        "call_1",
		Name:      "get_user_info",
		Arguments: `{"user_id":`,
	}, "42")

	if !strings.Contains(result, "无法解析") {
		t.Errorf("malformed arguments should produce a diagnostic, got %q", result)
	}
	if len(data.profileIDs) != 0 {
		t.Errorf("no lookup expected, got %v", data.profileIDs)
	}
}
