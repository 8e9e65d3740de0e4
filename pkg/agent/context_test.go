package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crewclaw/crewclaw/pkg/llm"
)

func newTestContextManager(t *testing.T, client llm.Client) *ContextManager {
	t.Helper()
	workspace := t.TempDir()
	return NewContextManager(client, workspace, filepath.Join(workspace, ".transcripts"), 200000, 16384)
}

func TestThresholdFormula(t *testing.T) {
	cm := newTestContextManager(t, nil)
	if cm.Threshold() != 170616 {
		t.Errorf("threshold = %d, want 170616", cm.Threshold())
	}

	// Output budget above 20000 is capped.
	cmBig := NewContextManager(nil, t.TempDir(), t.TempDir(), 200000, 64000)
	if cmBig.Threshold() != 200000-20000-13000 {
		t.Errorf("capped threshold = %d, want %d", cmBig.Threshold(), 200000-20000-13000)
	}
}

func toolCallPair(id, tool, output string) []llm.Message {
	return []llm.Message{
		{Role: "assistant", Content: []llm.Block{
			llm.ToolUseBlock(id, tool, map[string]any{"command": "x"}),
		}},
		{Role: "user", Content: []llm.Block{
			llm.ToolResultBlock(id, output, false),
		}},
	}
}

func TestMicrocompactKeepsRecentThree(t *testing.T) {
	cm := newTestContextManager(t, nil)
	big := strings.Repeat("o", 2000)

	var messages []llm.Message
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		messages = append(messages, toolCallPair(id, "bash", big)...)
	}

	cm.Microcompact(messages)

	placeholders := 0
	intact := 0
	for _, msg := range messages {
		for _, b := range msg.Content {
			if b.Type != "tool_result" {
				continue
			}
			if b.Content == compactedPlaceholder {
				placeholders++
			} else {
				intact++
			}
		}
	}
	if placeholders != 2 || intact != 3 {
		t.Errorf("placeholders = %d, intact = %d; want 2 and 3", placeholders, intact)
	}

	// The most recent results must be the intact ones.
	last := messages[len(messages)-1].Content[0]
	if last.Content != big {
		t.Error("most recent tool result was rewritten")
	}
}

func TestMicrocompactUnderLimitUntouched(t *testing.T) {
	cm := newTestContextManager(t, nil)
	big := strings.Repeat("o", 2000)

	var messages []llm.Message
	for _, id := range []string{"t1", "t2", "t3"} {
		messages = append(messages, toolCallPair(id, "bash", big)...)
	}
	cm.Microcompact(messages)

	for _, msg := range messages {
		for _, b := range msg.Content {
			if b.Type == "tool_result" && b.Content != big {
				t.Error("tool result rewritten with only 3 compactable results")
			}
		}
	}
}

func TestMicrocompactSkipsSmallAndForeignResults(t *testing.T) {
	cm := newTestContextManager(t, nil)

	var messages []llm.Message
	// Four big bash results, one tiny one, one result of an
	// uncompactable tool.
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		messages = append(messages, toolCallPair(id, "bash", strings.Repeat("o", 2000))...)
	}
	messages = append(messages, toolCallPair("small", "bash", "tiny output")...)
	messages = append(messages, toolCallPair("other", "TaskList", strings.Repeat("o", 2000))...)

	cm.Microcompact(messages)

	for _, msg := range messages {
		for _, b := range msg.Content {
			if b.Type != "tool_result" {
				continue
			}
			if b.ToolUseID == "small" && b.Content != "tiny output" {
				t.Error("small result was placeholdered")
			}
			if b.ToolUseID == "other" && b.Content == compactedPlaceholder {
				t.Error("uncompactable tool's result was placeholdered")
			}
		}
	}
}

func TestShouldCompactBoundaries(t *testing.T) {
	cm := newTestContextManager(t, nil)

	// Exactly five messages never compact: the savings term is zero.
	big := strings.Repeat("x", 400000)
	five := make([]llm.Message, 5)
	for i := range five {
		five[i] = llm.UserText(big)
	}
	if cm.ShouldCompact(five) {
		t.Error("5 messages should never trigger compaction")
	}

	// Many large messages over threshold do compact.
	many := make([]llm.Message, 12)
	for i := range many {
		many[i] = llm.UserText(strings.Repeat("x", 80000))
	}
	if !cm.ShouldCompact(many) {
		t.Error("large 12-message transcript should trigger compaction")
	}

	// Small transcripts stay untouched.
	if cm.ShouldCompact([]llm.Message{llm.UserText("hi")}) {
		t.Error("tiny transcript should not compact")
	}
}

func TestAutoCompactPreservesTail(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResponse("summary of everything so far"),
	}}
	cm := newTestContextManager(t, client)

	var messages []llm.Message
	for i := 0; i < 10; i++ {
		messages = append(messages,
			llm.UserText(strings.Repeat("u", 100)),
			llm.AssistantText(strings.Repeat("a", 100)),
		)
	}

	compacted, err := cm.AutoCompact(context.Background(), messages)
	if err != nil {
		t.Fatal(err)
	}

	first := compacted[0]
	if first.Role != "user" || !strings.Contains(first.TextContent(), "[Conversation compressed]") {
		t.Errorf("first message: %+v", first)
	}
	if !strings.Contains(first.TextContent(), "summary of everything so far") {
		t.Error("summary text missing from compressed message")
	}
	if compacted[1].Role != "assistant" {
		t.Error("missing assistant ack after summary")
	}

	tail := compacted[len(compacted)-KeepTail:]
	original := messages[len(messages)-KeepTail:]
	for i := range tail {
		if tail[i].TextContent() != original[i].TextContent() {
			t.Errorf("tail message %d mismatch", i)
		}
	}
}

func TestAutoCompactArchivesBeforeSummarizing(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("s")}}
	workspace := t.TempDir()
	transcripts := filepath.Join(workspace, ".transcripts")
	cm := NewContextManager(client, workspace, transcripts, 200000, 16384)

	messages := []llm.Message{llm.UserText("hello"), llm.AssistantText("hi")}
	if _, err := cm.AutoCompact(context.Background(), messages); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(transcripts, "transcript.jsonl"))
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("archive lines = %d, want 2", len(lines))
	}
}

func TestAutoCompactRestoresRecentFiles(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("s")}}
	workspace := t.TempDir()
	cm := NewContextManager(client, workspace, filepath.Join(workspace, ".transcripts"), 200000, 16384)

	if err := os.WriteFile(filepath.Join(workspace, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	messages := []llm.Message{
		{Role: "assistant", Content: []llm.Block{
			llm.ToolUseBlock("r1", "read_file", map[string]any{"path": "main.go"}),
		}},
		{Role: "user", Content: []llm.Block{llm.ToolResultBlock("r1", "package main", false)}},
	}

	compacted, err := cm.AutoCompact(context.Background(), messages)
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, msg := range compacted {
		if strings.Contains(msg.TextContent(), "[Restored after compact] main.go") {
			found = true
		}
	}
	if !found {
		t.Error("recently read file was not restored")
	}
}

func TestHandleLargeOutputBoundary(t *testing.T) {
	cm := newTestContextManager(t, nil)

	exact := strings.Repeat("x", MaxOutputTokens*4)
	if got := cm.HandleLargeOutput(exact); got != exact {
		t.Error("output at the limit should pass through")
	}

	over := exact + "x"
	got := cm.HandleLargeOutput(over)
	if got == over {
		t.Fatal("output one char over the limit should spill")
	}
	if !strings.Contains(got, "Output too large") || !strings.Contains(got, "Preview:") {
		t.Errorf("spill message = %q...", got[:80])
	}
	// Preview is the first 2000 chars.
	if !strings.Contains(got, strings.Repeat("x", previewChars)) {
		t.Error("preview missing from spill message")
	}
}
