package updatemap

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func mapRaw(t *testing.T, sessionUpdate string, inner map[string]any) *Event {
	t.Helper()
	data, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("marshal inner: %v", err)
	}
	params, err := json.Marshal(map[string]any{
		"sessionId": "s1",
		"update":    json.RawMessage(data),
	})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return Map(params, zap.NewNop())
}

func TestMap_AgentMessageChunk(t *testing.T) {
	ev := mapRaw(t, "agent_message_chunk", map[string]any{
		"sessionUpdate": "agent_message_chunk",
		"content":       map[string]string{"type": "text", "text": "hello"},
	})
	if ev == nil {
		t.Fatal("expected a mapped event")
	}
	if ev.Kind != KindTextDelta || ev.Text != "hello" || ev.Stream != "output" {
		t.Errorf("got %+v", ev)
	}
}

func TestMap_ToolCall(t *testing.T) {
	ev := mapRaw(t, "tool_call", map[string]any{
		"sessionUpdate": "tool_call",
		"toolCallId":    "call_1",
		"title":         "read_file",
	})
	if ev == nil || ev.Kind != KindToolCall || ev.ToolText != "read_file" {
		t.Errorf("got %+v", ev)
	}
}

func TestMap_ToolCallMissingTitleFallsBack(t *testing.T) {
	ev := mapRaw(t, "tool_call", map[string]any{
		"sessionUpdate": "tool_call",
		"toolCallId":    "call_1",
	})
	if ev == nil || ev.ToolText != "tool" {
		t.Errorf("got %+v, want ToolText=\"tool\"", ev)
	}
}

func TestMap_ToolCallUpdate(t *testing.T) {
	ev := mapRaw(t, "tool_call_update", map[string]any{
		"sessionUpdate": "tool_call_update",
		"toolCallId":    "call_1",
		"status":        "completed",
	})
	if ev == nil || ev.Kind != KindStatus {
		t.Fatalf("got %+v", ev)
	}
	if ev.StatusText != "tool call_1: completed" {
		t.Errorf("StatusText = %q", ev.StatusText)
	}
}

func TestMap_UnmappedKindDropped(t *testing.T) {
	ev := mapRaw(t, "plan", map[string]any{
		"sessionUpdate": "plan",
		"entries":       []string{"step 1"},
	})
	if ev != nil {
		t.Errorf("got %+v, want nil for an unmapped update kind", ev)
	}
}

func TestMap_MissingDiscriminatorDropped(t *testing.T) {
	ev := mapRaw(t, "", map[string]any{"content": "x"})
	if ev != nil {
		t.Errorf("got %+v, want nil for a missing discriminator", ev)
	}
}

func TestMap_MalformedEnvelopeDropped(t *testing.T) {
	if ev := Map(json.RawMessage("not json"), zap.NewNop()); ev != nil {
		t.Errorf("got %+v, want nil for a malformed envelope", ev)
	}
}

func TestMap_EmptyUpdateDropped(t *testing.T) {
	params, _ := json.Marshal(map[string]any{"sessionId": "s1"})
	if ev := Map(params, zap.NewNop()); ev != nil {
		t.Errorf("got %+v, want nil for an empty update", ev)
	}
}
