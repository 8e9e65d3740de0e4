package tools

import (
	"context"
	"fmt"

	"github.com/crewclaw/crewclaw/pkg/background"
)

// Subagent types and what they may touch. explore and plan are
// read-only; code gets the mutating tools.
var SubagentTypes = map[string]string{
	"explore": "Read-only exploration of the workspace",
	"code":    "Implement changes with the full tool set",
	"plan":    "Read-only analysis producing a plan",
}

// SubagentRunner executes a one-shot nested agent synchronously and
// returns its final text. Injected by the composition root so the tool
// layer stays independent of the loop implementation.
type SubagentRunner func(ctx context.Context, agentType, prompt string) (string, error)

// TaskTool spawns a one-shot subagent, optionally in the background, or
// a persistent teammate when team_name and name are supplied. Never
// exposed to subagents themselves.
type TaskTool struct {
	run      SubagentRunner
	executor *background.Executor
	service  TeamService
}

func NewTaskTool(run SubagentRunner, executor *background.Executor, service TeamService) *TaskTool {
	return &TaskTool{run: run, executor: executor, service: service}
}

func (t *TaskTool) Name() string {
	return "Task"
}

func (t *TaskTool) Description() string {
	return "Spawn a subagent (explore/code/plan) for a focused prompt, or a persistent teammate with team_name and name"
}

func (t *TaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{"type": "string", "description": "Instructions for the spawned agent"},
			"agent_type": map[string]any{
				"type":        "string",
				"enum":        []string{"explore", "code", "plan"},
				"description": "Subagent type (default explore)",
			},
			"background": map[string]any{"type": "boolean", "description": "Run the subagent as a background job"},
			"team_name":  map[string]any{"type": "string", "description": "Spawn a persistent teammate into this team"},
			"name":       map[string]any{"type": "string", "description": "Teammate name (with team_name)"},
		},
		"required": []string{"prompt"},
	}
}

func (t *TaskTool) Execute(ctx context.Context, args map[string]any) *Result {
	prompt := stringArg(args, "prompt")
	if prompt == "" {
		return ErrorResult("Error: prompt is required")
	}

	teamName := stringArg(args, "team_name")
	name := stringArg(args, "name")
	if teamName != "" || name != "" {
		if teamName == "" || name == "" {
			return ErrorResult("Error: teammate spawn needs both team_name and name")
		}
		if t.service == nil {
			return ErrorResult("Error: teams are not available here")
		}
		if err := t.service.SpawnTeammate(teamName, name, prompt); err != nil {
			return ErrorResult("Error: " + err.Error())
		}
		return NewResult(fmt.Sprintf("Spawned teammate %s@%s", name, teamName))
	}

	agentType := stringArg(args, "agent_type")
	if agentType == "" {
		agentType = "explore"
	}
	if _, ok := SubagentTypes[agentType]; !ok {
		return ErrorResult(fmt.Sprintf("Error: unknown agent_type %q", agentType))
	}

	if boolArg(args, "background") && t.executor != nil {
		taskID, err := t.executor.Run(background.KindAgent, func(jobCtx context.Context) (string, error) {
			return t.run(jobCtx, agentType, prompt)
		})
		if err != nil {
			return ErrorResult("Error: " + err.Error())
		}
		return NewResult(fmt.Sprintf("Started background subagent %s", taskID))
	}

	output, err := t.run(ctx, agentType, prompt)
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(output)
}
