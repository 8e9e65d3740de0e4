package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// safePath resolves p against the workspace root and rejects anything
// that escapes it.
func safePath(workspace, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	resolved := p
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(workspace, resolved)
	}
	resolved = filepath.Clean(resolved)

	root := filepath.Clean(workspace)
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", p)
	}
	return resolved, nil
}

type ReadFileTool struct {
	workspace string
}

func NewReadFileTool(workspace string) *ReadFileTool {
	return &ReadFileTool{workspace: workspace}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read a file from the workspace and return its content"
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace root",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) *Result {
	path, err := safePath(t.workspace, stringArg(args, "path"))
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(string(data))
}

type WriteFileTool struct {
	workspace string
}

func NewWriteFileTool(workspace string) *WriteFileTool {
	return &WriteFileTool{workspace: workspace}
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating parent directories as needed"
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace root",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Full file content to write",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) *Result {
	path, err := safePath(t.workspace, stringArg(args, "path"))
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	content := stringArg(args, "content")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Wrote %d bytes to %s", len(content), stringArg(args, "path")))
}

type EditFileTool struct {
	workspace string
}

func NewEditFileTool(workspace string) *EditFileTool {
	return &EditFileTool{workspace: workspace}
}

func (t *EditFileTool) Name() string {
	return "edit_file"
}

func (t *EditFileTool) Description() string {
	return "Replace an exact string in a file with a new string"
}

func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace root",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "Exact text to replace; must appear in the file",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "Replacement text",
			},
		},
		"required": []string{"path", "old_string", "new_string"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) *Result {
	path, err := safePath(t.workspace, stringArg(args, "path"))
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	oldString := stringArg(args, "old_string")
	if oldString == "" {
		return ErrorResult("Error: old_string is required")
	}
	newString := stringArg(args, "new_string")

	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	content := string(data)
	if !strings.Contains(content, oldString) {
		return ErrorResult("Error: old_string not found in file")
	}
	updated := strings.Replace(content, oldString, newString, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Edited %s", stringArg(args, "path")))
}
