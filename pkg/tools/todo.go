package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const maxTodoItems = 20

type TodoItem struct {
	Content    string
	ActiveForm string
	Status     string // pending, in_progress, completed
}

// TodoList is the short in-memory checklist, distinct from board tasks.
type TodoList struct {
	mu    sync.Mutex
	items []TodoItem
}

func NewTodoList() *TodoList {
	return &TodoList{}
}

// Set replaces the whole list after validating it.
func (l *TodoList) Set(items []TodoItem) error {
	if len(items) > maxTodoItems {
		return fmt.Errorf("too many todos: %d (max %d)", len(items), maxTodoItems)
	}
	inProgress := 0
	for i, item := range items {
		if item.Content == "" {
			return fmt.Errorf("todo %d: content is required", i+1)
		}
		if item.ActiveForm == "" {
			return fmt.Errorf("todo %d: activeForm is required", i+1)
		}
		switch item.Status {
		case "pending", "in_progress", "completed":
		default:
			return fmt.Errorf("todo %d: invalid status %q", i+1, item.Status)
		}
		if item.Status == "in_progress" {
			inProgress++
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("only one todo may be in_progress, got %d", inProgress)
	}

	l.mu.Lock()
	l.items = append([]TodoItem{}, items...)
	l.mu.Unlock()
	return nil
}

// HasOpenItems reports whether any item is not yet completed.
func (l *TodoList) HasOpenItems() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if item.Status != "completed" {
			return true
		}
	}
	return false
}

// Render draws the checklist the way it is echoed back to the model.
func (l *TodoList) Render() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return "(empty todo list)"
	}
	var sb strings.Builder
	for _, item := range l.items {
		switch item.Status {
		case "completed":
			sb.WriteString("[x] ")
		case "in_progress":
			sb.WriteString("[~] ")
		default:
			sb.WriteString("[ ] ")
		}
		sb.WriteString(item.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// TodoWriteTool replaces the checklist from the model's structured input.
type TodoWriteTool struct {
	list *TodoList
}

func NewTodoWriteTool(list *TodoList) *TodoWriteTool {
	return &TodoWriteTool{list: list}
}

func (t *TodoWriteTool) Name() string {
	return "TodoWrite"
}

func (t *TodoWriteTool) Description() string {
	return "Replace the working todo checklist; keep it current as work progresses"
}

func (t *TodoWriteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"todos": map[string]any{
				"type":        "array",
				"description": "The full todo list",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content":    map[string]any{"type": "string"},
						"activeForm": map[string]any{"type": "string"},
						"status": map[string]any{
							"type": "string",
							"enum": []string{"pending", "in_progress", "completed"},
						},
					},
					"required": []string{"content", "activeForm", "status"},
				},
			},
		},
		"required": []string{"todos"},
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, args map[string]any) *Result {
	raw, ok := args["todos"].([]any)
	if !ok {
		return ErrorResult("Error: todos must be an array")
	}

	items := make([]TodoItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return ErrorResult("Error: each todo must be an object")
		}
		items = append(items, TodoItem{
			Content:    stringArg(m, "content"),
			ActiveForm: stringArg(m, "activeForm"),
			Status:     stringArg(m, "status"),
		})
	}

	if err := t.list.Set(items); err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult("Todos updated:\n" + t.list.Render())
}
