package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crewclaw/crewclaw/pkg/taskboard"
)

func renderTask(t *taskboard.Task) string {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Sprintf("task %s", t.ID)
	}
	return string(data)
}

type TaskCreateTool struct {
	board *taskboard.Board
}

func NewTaskCreateTool(board *taskboard.Board) *TaskCreateTool {
	return &TaskCreateTool{board: board}
}

func (t *TaskCreateTool) Name() string {
	return "TaskCreate"
}

func (t *TaskCreateTool) Description() string {
	return "Create a task on the shared task board"
}

func (t *TaskCreateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject":     map[string]any{"type": "string", "description": "Short task title"},
			"description": map[string]any{"type": "string", "description": "What needs to be done"},
			"active_form": map[string]any{"type": "string", "description": "Present-continuous label shown while in progress"},
			"metadata":    map[string]any{"type": "object", "description": "Arbitrary key/value annotations"},
		},
		"required": []string{"subject", "description"},
	}
}

func (t *TaskCreateTool) Execute(ctx context.Context, args map[string]any) *Result {
	subject := stringArg(args, "subject")
	if subject == "" {
		return ErrorResult("Error: subject is required")
	}
	metadata, _ := args["metadata"].(map[string]any)
	task, err := t.board.Create(subject, stringArg(args, "description"), stringArg(args, "active_form"), metadata)
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Created task #%s: %s", task.ID, task.Subject))
}

type TaskGetTool struct {
	board *taskboard.Board
}

func NewTaskGetTool(board *taskboard.Board) *TaskGetTool {
	return &TaskGetTool{board: board}
}

func (t *TaskGetTool) Name() string {
	return "TaskGet"
}

func (t *TaskGetTool) Description() string {
	return "Read one task from the board by id"
}

func (t *TaskGetTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "description": "Task id"},
		},
		"required": []string{"task_id"},
	}
}

func (t *TaskGetTool) Execute(ctx context.Context, args map[string]any) *Result {
	task, err := t.board.Get(stringArg(args, "task_id"))
	if err != nil {
		if errors.Is(err, taskboard.ErrNotFound) {
			return ErrorResult(fmt.Sprintf("Error: task not found: %s", stringArg(args, "task_id")))
		}
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(renderTask(task))
}

type TaskUpdateTool struct {
	board *taskboard.Board
}

func NewTaskUpdateTool(board *taskboard.Board) *TaskUpdateTool {
	return &TaskUpdateTool{board: board}
}

func (t *TaskUpdateTool) Name() string {
	return "TaskUpdate"
}

func (t *TaskUpdateTool) Description() string {
	return "Update task fields, status, or dependency edges"
}

func (t *TaskUpdateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id":     map[string]any{"type": "string", "description": "Task id"},
			"subject":     map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"active_form": map[string]any{"type": "string"},
			"owner":       map[string]any{"type": "string"},
			"status": map[string]any{
				"type": "string",
				"enum": []string{"pending", "in_progress", "completed", "deleted"},
			},
			"metadata": map[string]any{"type": "object", "description": "Merged into existing metadata"},
			"addBlocks": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Task ids this task blocks",
			},
			"addBlockedBy": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Task ids that block this task",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *TaskUpdateTool) Execute(ctx context.Context, args map[string]any) *Result {
	id := stringArg(args, "task_id")
	if id == "" {
		return ErrorResult("Error: task_id is required")
	}

	upd := taskboard.Update{
		AddBlocks:    stringListArg(args, "addBlocks"),
		AddBlockedBy: stringListArg(args, "addBlockedBy"),
	}
	if v, ok := args["subject"].(string); ok {
		upd.Subject = &v
	}
	if v, ok := args["description"].(string); ok {
		upd.Description = &v
	}
	if v, ok := args["active_form"].(string); ok {
		upd.ActiveForm = &v
	}
	if v, ok := args["owner"].(string); ok {
		upd.Owner = &v
	}
	if v, ok := args["status"].(string); ok {
		status := taskboard.Status(v)
		upd.Status = &status
	}
	if m, ok := args["metadata"].(map[string]any); ok {
		upd.Metadata = m
	}

	task, err := t.board.Apply(id, upd)
	if err != nil {
		if errors.Is(err, taskboard.ErrNotFound) {
			return ErrorResult(fmt.Sprintf("Error: task not found: %s", id))
		}
		return ErrorResult("Error: " + err.Error())
	}
	if task.Status == taskboard.StatusDeleted {
		return NewResult(fmt.Sprintf("Deleted task #%s", id))
	}
	return NewResult(fmt.Sprintf("Updated task #%s", id))
}

type TaskListTool struct {
	board *taskboard.Board
}

func NewTaskListTool(board *taskboard.Board) *TaskListTool {
	return &TaskListTool{board: board}
}

func (t *TaskListTool) Name() string {
	return "TaskList"
}

func (t *TaskListTool) Description() string {
	return "List all tasks on the board in id order"
}

func (t *TaskListTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *TaskListTool) Execute(ctx context.Context, args map[string]any) *Result {
	tasks, err := t.board.ListAll()
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	if len(tasks) == 0 {
		return NewResult("No tasks.")
	}
	out := ""
	for _, task := range tasks {
		owner := task.Owner
		if owner == "" {
			owner = "-"
		}
		out += fmt.Sprintf("#%s [%s] %s (owner: %s", task.ID, task.Status, task.Subject, owner)
		if len(task.BlockedBy) > 0 {
			out += fmt.Sprintf(", blocked by: %v", task.BlockedBy)
		}
		out += ")\n"
	}
	return NewResult(out)
}

// ClaimTaskTool claims a board task for the bound agent.
type ClaimTaskTool struct {
	board *taskboard.Board
	owner string
}

func NewClaimTaskTool(board *taskboard.Board, owner string) *ClaimTaskTool {
	return &ClaimTaskTool{board: board, owner: owner}
}

func (t *ClaimTaskTool) Name() string {
	return "claim_task"
}

func (t *ClaimTaskTool) Description() string {
	return "Claim an unclaimed task: set yourself as owner and mark it in_progress"
}

func (t *ClaimTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "description": "Task id to claim"},
		},
		"required": []string{"task_id"},
	}
}

func (t *ClaimTaskTool) Execute(ctx context.Context, args map[string]any) *Result {
	id := stringArg(args, "task_id")
	task, err := t.board.Claim(id, t.owner)
	if err != nil {
		if errors.Is(err, taskboard.ErrNotFound) {
			return ErrorResult(fmt.Sprintf("Error: task not found: %s", id))
		}
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Claimed task #%s: %s", task.ID, task.Subject))
}
