package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePathRejectsEscape(t *testing.T) {
	workspace := t.TempDir()
	for _, p := range []string{"../outside.txt", "a/../../b", "/etc/passwd"} {
		if _, err := safePath(workspace, p); err == nil {
			t.Errorf("safePath(%q) accepted an escaping path", p)
		}
	}
}

func TestSafePathAcceptsInside(t *testing.T) {
	workspace := t.TempDir()
	got, err := safePath(workspace, "sub/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(workspace, "sub", "file.txt") {
		t.Errorf("resolved = %q", got)
	}
}

func TestWriteReadEditCycle(t *testing.T) {
	workspace := t.TempDir()
	ctx := context.Background()

	write := NewWriteFileTool(workspace)
	result := write.Execute(ctx, map[string]any{"path": "notes.txt", "content": "alpha beta"})
	if result.IsError {
		t.Fatalf("write failed: %s", result.ForLLM)
	}

	read := NewReadFileTool(workspace)
	result = read.Execute(ctx, map[string]any{"path": "notes.txt"})
	if result.IsError || result.ForLLM != "alpha beta" {
		t.Fatalf("read = %+v", result)
	}

	edit := NewEditFileTool(workspace)
	result = edit.Execute(ctx, map[string]any{
		"path":       "notes.txt",
		"old_string": "beta",
		"new_string": "gamma",
	})
	if result.IsError {
		t.Fatalf("edit failed: %s", result.ForLLM)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "alpha gamma" {
		t.Errorf("content = %q", data)
	}
}

func TestEditMissingOldString(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "f.txt"), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	edit := NewEditFileTool(workspace)
	result := edit.Execute(context.Background(), map[string]any{
		"path":       "f.txt",
		"old_string": "zzz",
		"new_string": "yyy",
	})
	if !result.IsError || !strings.Contains(result.ForLLM, "not found") {
		t.Errorf("result = %+v", result)
	}
}

func TestReadMissingFile(t *testing.T) {
	read := NewReadFileTool(t.TempDir())
	result := read.Execute(context.Background(), map[string]any{"path": "absent.txt"})
	if !result.IsError {
		t.Error("expected error result for missing file")
	}
}
