package tools

import (
	"context"
	"fmt"

	"github.com/crewclaw/crewclaw/pkg/skills"
)

// LoadSkillTool injects a skill's full instructions into the transcript.
type LoadSkillTool struct {
	library *skills.Library
}

func NewLoadSkillTool(library *skills.Library) *LoadSkillTool {
	return &LoadSkillTool{library: library}
}

func (t *LoadSkillTool) Name() string {
	return "load_skill"
}

func (t *LoadSkillTool) Description() string {
	return "Load the full instructions of a named skill"
}

func (t *LoadSkillTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "description": "Skill name"},
		},
		"required": []string{"name"},
	}
}

func (t *LoadSkillTool) Execute(ctx context.Context, args map[string]any) *Result {
	name := stringArg(args, "name")
	skill, ok := t.library.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("Error: unknown skill %q", name))
	}
	return NewResult(fmt.Sprintf("<skill-loaded name=%q>\n%s\n</skill-loaded>", skill.Name, skill.Content))
}
