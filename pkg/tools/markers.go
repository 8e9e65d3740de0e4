package tools

import "context"

// CompactTool is a marker: the loop watches for its name and runs
// auto-compaction after the turn's tool dispatch completes.
type CompactTool struct{}

func NewCompactTool() *CompactTool {
	return &CompactTool{}
}

func (t *CompactTool) Name() string {
	return "compact"
}

func (t *CompactTool) Description() string {
	return "Compress the conversation history when it grows long"
}

func (t *CompactTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *CompactTool) Execute(ctx context.Context, args map[string]any) *Result {
	return NewResult("Compaction scheduled.")
}

// IdleTool lets a teammate declare it is waiting for work. The teammate
// loop treats a turn ending without tool calls the same way; this tool
// exists so the model can be explicit about it.
type IdleTool struct{}

func NewIdleTool() *IdleTool {
	return &IdleTool{}
}

func (t *IdleTool) Name() string {
	return "idle"
}

func (t *IdleTool) Description() string {
	return "Declare that you are idle and waiting for messages or tasks"
}

func (t *IdleTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{"type": "string", "description": "Why you are going idle"},
		},
	}
}

func (t *IdleTool) Execute(ctx context.Context, args map[string]any) *Result {
	return SilentResult("Idling.")
}
