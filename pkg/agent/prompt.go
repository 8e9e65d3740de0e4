package agent

import (
	"fmt"
	"strings"
)

// PromptSpec carries the pieces assembled into a system prompt.
type PromptSpec struct {
	Identity       string
	Workspace      string
	ToolSummaries  []string
	SkillSummaries []string
	Extra          string
}

// BuildSystemPrompt assembles the system prompt in a fixed section
// order so the provider's prefix cache stays warm across turns.
func BuildSystemPrompt(spec PromptSpec) string {
	var sb strings.Builder

	sb.WriteString(spec.Identity)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Workspace root: %s\nAll file paths are relative to the workspace.\n", spec.Workspace))

	if len(spec.ToolSummaries) > 0 {
		sb.WriteString("\n## Tools\n")
		for _, line := range spec.ToolSummaries {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if len(spec.SkillSummaries) > 0 {
		sb.WriteString("\n## Skills\nLoad a skill with load_skill before relying on it.\n")
		for _, line := range spec.SkillSummaries {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if spec.Extra != "" {
		sb.WriteString("\n")
		sb.WriteString(spec.Extra)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// SubagentPrompts maps subagent types to their identity preambles.
var SubagentPrompts = map[string]string{
	"explore": "You are a read-only exploration agent. Investigate the workspace and report findings. Do not modify anything.",
	"code":    "You are a focused implementation agent. Make the requested changes and report what you did.",
	"plan":    "You are a planning agent. Analyze the workspace and produce a concrete step-by-step plan. Do not modify anything.",
}
