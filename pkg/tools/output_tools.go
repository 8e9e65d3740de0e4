package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewclaw/crewclaw/pkg/background"
)

// TaskOutputTool reads a background job's status and output, optionally
// blocking until the job completes.
type TaskOutputTool struct {
	executor *background.Executor
}

func NewTaskOutputTool(executor *background.Executor) *TaskOutputTool {
	return &TaskOutputTool{executor: executor}
}

func (t *TaskOutputTool) Name() string {
	return "TaskOutput"
}

func (t *TaskOutputTool) Description() string {
	return "Get the output of a background task, waiting for completion by default"
}

func (t *TaskOutputTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "description": "Background task id"},
			"block":   map[string]any{"type": "boolean", "description": "Wait for completion (default true)"},
			"timeout": map[string]any{"type": "integer", "description": "Wait timeout in milliseconds (default 30000)"},
			"offset":  map[string]any{"type": "integer", "description": "Byte offset into the output file; when set, reads the file instead"},
		},
		"required": []string{"task_id"},
	}
}

func (t *TaskOutputTool) Execute(ctx context.Context, args map[string]any) *Result {
	taskID := stringArg(args, "task_id")

	if _, hasOffset := args["offset"]; hasOffset {
		text, err := t.executor.ReadOutput(taskID, int64(intArg(args, "offset", 0)))
		if err != nil {
			if errors.Is(err, background.ErrJobNotFound) {
				return ErrorResult(fmt.Sprintf("Error: unknown task: %s", taskID))
			}
			return ErrorResult("Error: " + err.Error())
		}
		return NewResult(text)
	}

	block := true
	if v, ok := args["block"].(bool); ok {
		block = v
	}
	timeout := time.Duration(intArg(args, "timeout", 30000)) * time.Millisecond

	out, err := t.executor.GetOutput(taskID, block, timeout)
	if err != nil {
		if errors.Is(err, background.ErrJobNotFound) {
			return ErrorResult(fmt.Sprintf("Error: unknown task: %s", taskID))
		}
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("[%s] status=%s\n%s", out.TaskID, out.Status, out.Output))
}

// TaskStopTool flips a running background job to stopped.
type TaskStopTool struct {
	executor *background.Executor
}

func NewTaskStopTool(executor *background.Executor) *TaskStopTool {
	return &TaskStopTool{executor: executor}
}

func (t *TaskStopTool) Name() string {
	return "TaskStop"
}

func (t *TaskStopTool) Description() string {
	return "Stop a running background task"
}

func (t *TaskStopTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "description": "Background task id"},
		},
		"required": []string{"task_id"},
	}
}

func (t *TaskStopTool) Execute(ctx context.Context, args map[string]any) *Result {
	taskID := stringArg(args, "task_id")
	if err := t.executor.Stop(taskID); err != nil {
		if errors.Is(err, background.ErrJobNotFound) {
			return ErrorResult(fmt.Sprintf("Error: unknown task: %s", taskID))
		}
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Stopped task %s", taskID))
}
