package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewclaw/crewclaw/pkg/llm"
	"github.com/crewclaw/crewclaw/pkg/logger"
)

const (
	// KeepRecent is how many recent compactable tool results survive
	// microcompact untouched.
	KeepRecent = 3
	// KeepTail is how many trailing messages auto-compact preserves.
	KeepTail = 5
	// MinSavings is the minimum token win required to bother compacting.
	MinSavings = 20000
	// MaxOutputTokens is the spill threshold for single tool outputs.
	MaxOutputTokens = 40000
	// MaxRestoreFiles caps how many recently-read files are re-injected
	// after auto-compact.
	MaxRestoreFiles         = 5
	MaxRestoreTokensPerFile = 5000
	MaxRestoreTokensTotal   = 50000

	// minCompactChars: tool results smaller than this are not worth
	// placeholdering.
	minCompactChars = 1000

	compactedPlaceholder = "[Output compacted - re-read if needed]"

	summaryMaxTokens = 2000
	previewChars     = 2000
)

var compactableTools = map[string]bool{
	"bash":       true,
	"read_file":  true,
	"write_file": true,
	"edit_file":  true,
}

const summarizerSystem = "You are a conversation summarizer. Produce a chronological summary " +
	"of the conversation: goals, actions taken, key decisions, current state, and pending work. " +
	"Be specific about file paths, task ids, and commands."

// ContextManager owns the transcript compression policy: in-place
// microcompact, LLM-assisted auto-compact, and large-output spill.
type ContextManager struct {
	client         llm.Client
	workspace      string
	transcriptsDir string
	threshold      int
}

// NewContextManager derives the compaction threshold from the model's
// context window and output budget.
func NewContextManager(client llm.Client, workspace, transcriptsDir string, contextWindow, maxOutput int) *ContextManager {
	reserved := maxOutput
	if reserved > 20000 {
		reserved = 20000
	}
	return &ContextManager{
		client:         client,
		workspace:      workspace,
		transcriptsDir: transcriptsDir,
		threshold:      contextWindow - reserved - 13000,
	}
}

// Threshold returns the computed compaction trigger in tokens.
func (cm *ContextManager) Threshold() int {
	return cm.threshold
}

// Microcompact placeholders old compactable tool results in place and
// returns the same slice. Only results beyond the most recent
// KeepRecent are touched, and only when they are big enough to matter.
func (cm *ContextManager) Microcompact(messages []llm.Message) []llm.Message {
	toolNames := make(map[string]string)
	for _, msg := range messages {
		for _, b := range msg.Content {
			if b.Type == "tool_use" {
				toolNames[b.ID] = b.Name
			}
		}
	}

	type position struct{ msg, block int }
	var candidates []position
	for i, msg := range messages {
		for j, b := range msg.Content {
			if b.Type != "tool_result" {
				continue
			}
			if !compactableTools[toolNames[b.ToolUseID]] {
				continue
			}
			if b.Content == compactedPlaceholder {
				continue
			}
			candidates = append(candidates, position{i, j})
		}
	}

	if len(candidates) <= KeepRecent {
		return messages
	}

	compacted := 0
	for _, pos := range candidates[:len(candidates)-KeepRecent] {
		block := &messages[pos.msg].Content[pos.block]
		if len(block.Content) <= minCompactChars {
			continue
		}
		block.Content = compactedPlaceholder
		compacted++
	}
	if compacted > 0 {
		logger.DebugCF("context", "Microcompacted tool results",
			map[string]any{"count": compacted})
	}
	return messages
}

// ShouldCompact reports whether the transcript is over budget and
// compaction would actually save enough to be worth an LLM call.
func (cm *ContextManager) ShouldCompact(messages []llm.Message) bool {
	total := EstimateTokens(messages)
	if total <= cm.threshold {
		return false
	}
	tail := messages
	if len(messages) > KeepTail {
		tail = messages[len(messages)-KeepTail:]
	}
	savings := total - EstimateTokens(tail)
	return savings >= MinSavings
}

// AutoCompact archives the transcript, asks the model for a summary,
// and rebuilds the conversation as summary + restored files + tail.
func (cm *ContextManager) AutoCompact(ctx context.Context, messages []llm.Message) ([]llm.Message, error) {
	if err := cm.SaveTranscript(messages); err != nil {
		logger.WarnCF("context", "Transcript archive failed",
			map[string]any{"error": err.Error()})
	}

	restored := cm.restoreRecentFiles(messages)
	summary, err := cm.summarize(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("summarizing transcript: %w", err)
	}

	compacted := make([]llm.Message, 0, 2+2*len(restored)+KeepTail)
	compacted = append(compacted,
		llm.UserText("[Conversation compressed]\n\n"+summary),
		llm.AssistantText("Understood. Continuing from the summary above."),
	)
	for _, rf := range restored {
		compacted = append(compacted,
			llm.UserText(fmt.Sprintf("[Restored after compact] %s:\n%s", rf.path, rf.content)),
			llm.AssistantText("Noted."),
		)
	}

	tail := messages
	if len(messages) > KeepTail {
		tail = messages[len(messages)-KeepTail:]
	}
	compacted = append(compacted, tail...)

	logger.InfoCF("context", "Auto-compacted conversation",
		map[string]any{
			"before_msgs":    len(messages),
			"after_msgs":     len(compacted),
			"restored_files": len(restored),
		})
	return compacted, nil
}

func (cm *ContextManager) summarize(ctx context.Context, messages []llm.Message) (string, error) {
	var sb strings.Builder
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}

	prompt := "Summarize this conversation chronologically. Cover goals, actions, " +
		"decisions, current state, and pending work:\n\n" + sb.String()
	resp, err := cm.client.Send(ctx, summarizerSystem,
		[]llm.Message{llm.UserText(prompt)}, nil, summaryMaxTokens)
	if err != nil {
		return "", err
	}

	var summary string
	for _, b := range resp.Content {
		if b.Type == "text" {
			summary += b.Text
		}
	}
	return summary, nil
}

type restoredFile struct {
	path    string
	content string
}

// restoreRecentFiles re-reads the files most recently touched by
// read_file so the model keeps them in view after compaction.
func (cm *ContextManager) restoreRecentFiles(messages []llm.Message) []restoredFile {
	var paths []string
	seen := make(map[string]bool)
	for i := len(messages) - 1; i >= 0; i-- {
		for _, b := range messages[i].Content {
			if b.Type != "tool_use" || b.Name != "read_file" {
				continue
			}
			path, _ := b.Input["path"].(string)
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			paths = append(paths, path)
		}
	}

	var restored []restoredFile
	totalTokens := 0
	for _, path := range paths {
		if len(restored) >= MaxRestoreFiles || totalTokens >= MaxRestoreTokensTotal {
			break
		}
		resolved := path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(cm.workspace, resolved)
		}
		resolved = filepath.Clean(resolved)
		root := filepath.Clean(cm.workspace)
		if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
			continue
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			continue
		}
		content := string(data)
		if len(content) > MaxRestoreTokensPerFile*4 {
			content = content[:MaxRestoreTokensPerFile*4]
		}
		totalTokens += EstimateTokens(content)
		restored = append(restored, restoredFile{path: path, content: content})
	}
	return restored
}

// SaveTranscript appends every message as one JSON line to the
// permanent archive.
func (cm *ContextManager) SaveTranscript(messages []llm.Message) error {
	if err := os.MkdirAll(cm.transcriptsDir, 0o755); err != nil {
		return fmt.Errorf("creating transcripts dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cm.transcriptsDir, "transcript.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening transcript archive: %w", err)
	}
	defer f.Close()

	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("appending to transcript archive: %w", err)
		}
	}
	return nil
}

// HandleLargeOutput passes small outputs through and spills oversized
// ones to a time-suffixed file, returning a preview.
func (cm *ContextManager) HandleLargeOutput(text string) string {
	if len(text) <= MaxOutputTokens*4 {
		return text
	}

	if err := os.MkdirAll(cm.transcriptsDir, 0o755); err != nil {
		logger.ErrorCF("context", "Cannot create spill dir",
			map[string]any{"error": err.Error()})
		return text[:MaxOutputTokens*4]
	}
	path := filepath.Join(cm.transcriptsDir, fmt.Sprintf("output_%d.txt", time.Now().UnixNano()))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		logger.ErrorCF("context", "Cannot write spill file",
			map[string]any{"error": err.Error()})
		return text[:MaxOutputTokens*4]
	}

	preview := text
	if len(preview) > previewChars {
		preview = preview[:previewChars]
	}
	return fmt.Sprintf(
		"Output too large (~%d tokens). Full output saved to %s\n\nPreview:\n%s",
		EstimateTokens(text), path, preview)
}
