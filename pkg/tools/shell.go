package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/crewclaw/crewclaw/pkg/background"
)

const (
	defaultBashTimeout = 120 * time.Second
	maxBashTimeout     = 300 * time.Second
)

// deniedSubstrings is a coarse guard, not a sandbox. The workspace path
// check does the real containment for file tools.
var deniedSubstrings = []string{
	"rm -rf /",
	"sudo",
	"shutdown",
	"reboot",
	"> /dev/",
}

func guardCommand(command string) error {
	for _, denied := range deniedSubstrings {
		if strings.Contains(command, denied) {
			return fmt.Errorf("command refused: contains %q", denied)
		}
	}
	return nil
}

// BashTool runs shell commands in the workspace, either synchronously
// or as a background job on the executor.
type BashTool struct {
	workspace string
	executor  *background.Executor
}

func NewBashTool(workspace string, executor *background.Executor) *BashTool {
	return &BashTool{workspace: workspace, executor: executor}
}

func (t *BashTool) Name() string {
	return "bash"
}

func (t *BashTool) Description() string {
	return "Run a shell command in the workspace; set background=true for long-running commands"
}

func (t *BashTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to run",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 120, max 300)",
			},
			"background": map[string]any{
				"type":        "boolean",
				"description": "Run in the background and return a task id immediately",
			},
		},
		"required": []string{"command"},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) *Result {
	command := stringArg(args, "command")
	if command == "" {
		return ErrorResult("Error: command is required")
	}
	if err := guardCommand(command); err != nil {
		return ErrorResult("Error: " + err.Error())
	}

	timeout := defaultBashTimeout
	if secs := intArg(args, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
	}

	if boolArg(args, "background") && t.executor != nil {
		taskID, err := t.executor.Run(background.KindBash, func(jobCtx context.Context) (string, error) {
			return t.runCommand(jobCtx, command, timeout)
		})
		if err != nil {
			return ErrorResult("Error: " + err.Error())
		}
		return NewResult(fmt.Sprintf("Started background task %s", taskID))
	}

	output, err := t.runCommand(ctx, command, timeout)
	if err != nil {
		if output != "" {
			return ErrorResult(fmt.Sprintf("Error: %v\n%s", err, output))
		}
		return ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	if output == "" {
		output = "(no output)"
	}
	return NewResult(output)
}

func (t *BashTool) runCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = t.workspace
	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return string(out), fmt.Errorf("command timed out after %s", timeout)
	}
	return string(out), err
}
