package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestStreamQueryIncrementalText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-DashScope-SSE") != "enable" {
			t.Error("SSE header missing")
		}
		if !strings.Contains(r.Header.Get("Authorization"), "test-key") {
			t.Error("authorization header missing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"output\":{\"text\":\"焦虑是\"}}\n\n"))
		w.Write([]byte("data: {\"output\":{\"text\":\"一种情绪反应。\",\"finish_reason\":\"stop\"}}\n\n"))
	}))
	defer server.Close()

	d, err := NewDashScope(Config{APIKey: "test-key", URL: server.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDashScope: %v", err)
	}

	stream, err := d.StreamQuery(context.Background(), "什么是焦虑")
	if err != nil {
		t.Fatalf("StreamQuery: %v", err)
	}

	var b strings.Builder
	for piece := range stream {
		b.WriteString(piece)
	}
	if b.String() != "焦虑是一种情绪反应。" {
		t.Errorf("unexpected answer %q", b.String())
	}
}

func TestStreamQueryServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"app not found"}`))
	}))
	defer server.Close()

	d, err := NewDashScope(Config{APIKey: "test-key", URL: server.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDashScope: %v", err)
	}

	if _, err := d.StreamQuery(context.Background(), "q"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestNewDashScopeValidation(t *testing.T) {
	if _, err := NewDashScope(Config{URL: "http://x"}, zap.NewNop()); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewDashScope(Config{APIKey: "k"}, zap.NewNop()); err == nil {
		t.Error("expected error for missing endpoint")
	}
}
