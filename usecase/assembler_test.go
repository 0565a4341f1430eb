package usecase

import (
	"testing"

	"github.com/leauyn/openavatarchat/domain/entities"
)

func TestAssemblerMergesFragmentedCall(t *testing.T) {
	a := NewToolCallAssembler()
	a.Add(entities.ToolCall{ID: "call_1", Name: "get_user_info"})
	a.Add(entities.ToolCall{ID: "call_1", Arguments: `{"user_id":`})
	a.Add(entities.ToolCall{ID: "call_1", Arguments: `"42"}`})

	calls := a.Finalize()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "get_user_info" {
		t.Errorf("expected name get_user_info, got %q", calls[0].Name)
	}
	if calls[0].Arguments != `{"user_id":"42"}` {
		t.Errorf("unexpected arguments %q", calls[0].Arguments)
	}
}

func TestAssemblerContinuationWithoutID(t *testing.T) {
	a := NewToolCallAssembler()
	a.Add(entities.ToolCall{ID: "call_1", Name: "query_knowledge_base", Arguments: `{"query":`})
	a.Add(entities.ToolCall{Arguments: `"焦虑"}`})

	calls := a.Finalize()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Arguments != `{"query":"焦虑"}` {
		t.Errorf("unexpected arguments %q", calls[0].Arguments)
	}
}

func TestAssemblerPreservesArrivalOrder(t *testing.T) {
	a := NewToolCallAssembler()
	a.Add(entities.ToolCall{ID: "b", Name: "second"})
	a.Add(entities.ToolCall{ID: "a", Name: "first"})

	calls := a.Finalize()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "second" || calls[1].Name != "first" {
		t.Errorf("arrival order not preserved: %v", calls)
	}
}

func TestAssemblerDropsBrokenCalls(t *testing.T) {
	a := NewToolCallAssembler()
	a.Add(entities.ToolCall{ID: "nameless", Arguments: `{}`})
	a.Add(entities.ToolCall{ID: "bad_json", Name: "get_user_info", Arguments: `{"user_id":`})
	a.Add(entities.ToolCall{ID: "ok", Name: "get_user_survey_data"})

	calls := a.Finalize()
	if len(calls) != 1 {
		t.Fatalf("expected 1 surviving call, got %d", len(calls))
	}
	if calls[0].ID != "ok" {
		t.Errorf("wrong survivor: %+v", calls[0])
	}
	if calls[0].Arguments != "{}" {
		t.Errorf("empty arguments not normalized: %q", calls[0].Arguments)
	}
}

func TestAssemblerOrphanContinuationIgnored(t *testing.T) {
	a := NewToolCallAssembler()
	a.Add(entities.ToolCall{Arguments: `{"x":1}`})

	if a.Pending() {
		t.Error("orphan fragment should not open a call")
	}
	if calls := a.Finalize(); len(calls) != 0 {
		t.Errorf("expected no calls, got %v", calls)
	}
}

func TestAssemblerReset(t *testing.T) {
	a := NewToolCallAssembler()
	a.Add(entities.ToolCall{ID: "call_1", Name: "get_user_info"})
	a.Reset()

	if a.Pending() {
		t.Error("assembler still pending after reset")
	}
	if calls := a.Finalize(); len(calls) != 0 {
		t.Errorf("expected no calls after reset, got %v", calls)
	}
}
