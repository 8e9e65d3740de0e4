package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/crewclaw/crewclaw/pkg/background"
)

func TestBashDenylist(t *testing.T) {
	bash := NewBashTool(t.TempDir(), nil)
	denied := []string{
		"rm -rf / --no-preserve-root",
		"sudo apt install x",
		"shutdown -h now",
		"reboot",
		"echo x > /dev/sda",
	}
	for _, cmd := range denied {
		result := bash.Execute(context.Background(), map[string]any{"command": cmd})
		if !result.IsError {
			t.Errorf("command %q was not refused", cmd)
		}
		if !strings.Contains(result.ForLLM, "refused") {
			t.Errorf("refusal message = %q", result.ForLLM)
		}
	}
}

func TestBashEcho(t *testing.T) {
	bash := NewBashTool(t.TempDir(), nil)
	result := bash.Execute(context.Background(), map[string]any{"command": "echo hi"})
	if result.IsError {
		t.Fatalf("echo failed: %s", result.ForLLM)
	}
	if strings.TrimSpace(result.ForLLM) != "hi" {
		t.Errorf("output = %q", result.ForLLM)
	}
}

func TestBashFailureIsErrorResult(t *testing.T) {
	bash := NewBashTool(t.TempDir(), nil)
	result := bash.Execute(context.Background(), map[string]any{"command": "exit 3"})
	if !result.IsError {
		t.Error("non-zero exit should be an error result")
	}
}

func TestBashBackground(t *testing.T) {
	executor := background.NewExecutor(t.TempDir())
	bash := NewBashTool(t.TempDir(), executor)

	result := bash.Execute(context.Background(), map[string]any{
		"command":    "echo bg",
		"background": true,
	})
	if result.IsError {
		t.Fatalf("background launch failed: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "background task b") {
		t.Errorf("result = %q", result.ForLLM)
	}

	taskID := result.ForLLM[strings.LastIndex(result.ForLLM, " ")+1:]
	out, err := executor.GetOutput(taskID, true, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != background.StatusCompleted {
		t.Errorf("status = %q", out.Status)
	}
	if strings.TrimSpace(out.Output) != "bg" {
		t.Errorf("output = %q", out.Output)
	}
}

func TestBashMissingCommand(t *testing.T) {
	bash := NewBashTool(t.TempDir(), nil)
	result := bash.Execute(context.Background(), map[string]any{})
	if !result.IsError {
		t.Error("expected error for missing command")
	}
}
