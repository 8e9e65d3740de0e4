package llm

import (
	"encoding/json"
	"testing"
)

func TestMessageJSONRoundTrip(t *testing.T) {
	original := Message{
		Role: "assistant",
		Content: []Block{
			TextBlock("running the build"),
			ToolUseBlock("toolu_01", "bash", map[string]any{"command": "make"}),
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Role != "assistant" {
		t.Errorf("role = %q, want assistant", decoded.Role)
	}
	if len(decoded.Content) != 2 {
		t.Fatalf("content blocks = %d, want 2", len(decoded.Content))
	}
	if decoded.Content[0].Type != "text" || decoded.Content[0].Text != "running the build" {
		t.Errorf("text block mismatch: %+v", decoded.Content[0])
	}
	if decoded.Content[1].Type != "tool_use" || decoded.Content[1].Name != "bash" {
		t.Errorf("tool_use block mismatch: %+v", decoded.Content[1])
	}
	if decoded.Content[1].Input["command"] != "make" {
		t.Errorf("tool input mismatch: %v", decoded.Content[1].Input)
	}
}

func TestToolResultBlockCarriesCorrelationID(t *testing.T) {
	b := ToolResultBlock("toolu_42", "ok", false)
	if b.Type != "tool_result" {
		t.Errorf("type = %q, want tool_result", b.Type)
	}
	if b.ToolUseID != "toolu_42" {
		t.Errorf("tool_use_id = %q, want toolu_42", b.ToolUseID)
	}
	if b.IsError {
		t.Error("is_error should default to false")
	}
}

func TestTextContentConcatenatesTextBlocks(t *testing.T) {
	m := Message{Role: "user", Content: []Block{
		TextBlock("a"),
		ToolResultBlock("x", "ignored", false),
		TextBlock("b"),
	}}
	if got := m.TextContent(); got != "ab" {
		t.Errorf("TextContent() = %q, want %q", got, "ab")
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                              defaultBaseURL,
		"https://proxy.example.com/v1":  "https://proxy.example.com",
		"https://proxy.example.com/":    "https://proxy.example.com",
		"https://api.anthropic.com/v1/": "https://api.anthropic.com",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
