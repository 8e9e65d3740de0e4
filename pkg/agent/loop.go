package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/crewclaw/crewclaw/pkg/background"
	"github.com/crewclaw/crewclaw/pkg/llm"
	"github.com/crewclaw/crewclaw/pkg/logger"
	"github.com/crewclaw/crewclaw/pkg/tools"
)

// ErrShutdownRequested is returned by an inbox drainer when a
// shutdown_request arrives; the loop stops immediately.
var ErrShutdownRequested = errors.New("shutdown requested")

const (
	defaultMaxIterations = 100
	todoNagThreshold     = 3

	todoReminder = "<reminder>The todo list has open items you have not updated in a while. " +
		"Use TodoWrite to reflect your current progress.</reminder>"
)

// InboxDrainer returns formatted event text to inject into the next
// user turn. It reports ErrShutdownRequested to terminate the loop.
type InboxDrainer func() ([]string, error)

// Loop drives one conversation: compress, inject events, call the
// model, dispatch tools, repeat until the model stops using tools.
type Loop struct {
	Client        llm.Client
	Registry      *tools.Registry
	Context       *ContextManager
	Executor      *background.Executor
	Viewer        tools.Viewer
	System        string
	MaxTokens     int
	MaxIterations int
	Todos         *tools.TodoList
	DrainInbox    InboxDrainer
	// OnAutoCompact runs after every auto-compaction, on the rebuilt
	// transcript. Teammates use it to re-inject their identity.
	OnAutoCompact func(messages []llm.Message)

	roundsWithoutTodo int
}

// Run processes the transcript to a stop point and returns it. On a
// normal return the final message has role assistant.
func (l *Loop) Run(ctx context.Context, messages []llm.Message) ([]llm.Message, error) {
	maxIterations := l.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		messages = l.compress(ctx, messages)

		injected, err := l.collectEvents()
		if err != nil {
			return messages, err
		}
		if len(injected) > 0 {
			blocks := make([]llm.Block, 0, len(injected))
			for _, text := range injected {
				blocks = append(blocks, llm.TextBlock(text))
			}
			messages = append(messages, llm.Message{Role: "user", Content: blocks})
		}

		var defs []llm.ToolDef
		if l.Registry != nil {
			defs = l.Registry.DefinitionsFor(l.Viewer)
		}

		logger.DebugCF("loop", "LLM turn",
			map[string]any{"iteration": iteration, "messages": len(messages)})
		resp, err := l.Client.Send(ctx, l.System, messages, defs, l.MaxTokens)
		if err != nil {
			return messages, fmt.Errorf("LLM call failed: %w", err)
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})

		if resp.StopReason != llm.StopToolUse {
			logger.DebugCF("loop", "Turn complete",
				map[string]any{"stop_reason": resp.StopReason, "iterations": iteration})
			return messages, nil
		}

		results, compactRequested, todoTouched := l.dispatch(ctx, resp.Content)
		messages = append(messages, llm.Message{Role: "user", Content: results})

		if l.tracksTodos() {
			if todoTouched {
				l.roundsWithoutTodo = 0
			} else {
				l.roundsWithoutTodo++
			}
		}

		if compactRequested && l.Context != nil {
			messages = l.autoCompact(ctx, messages)
		}
	}

	return messages, fmt.Errorf("loop exceeded %d iterations", maxIterations)
}

func (l *Loop) compress(ctx context.Context, messages []llm.Message) []llm.Message {
	if l.Context == nil {
		return messages
	}
	messages = l.Context.Microcompact(messages)
	if l.Context.ShouldCompact(messages) {
		messages = l.autoCompact(ctx, messages)
	}
	return messages
}

func (l *Loop) autoCompact(ctx context.Context, messages []llm.Message) []llm.Message {
	compacted, err := l.Context.AutoCompact(ctx, messages)
	if err != nil {
		// Keep going uncompacted rather than kill the conversation.
		logger.WarnCF("loop", "Auto-compact failed",
			map[string]any{"error": err.Error()})
		return messages
	}
	if l.OnAutoCompact != nil {
		l.OnAutoCompact(compacted)
	}
	return compacted
}

func (l *Loop) tracksTodos() bool {
	return l.Todos != nil && l.Registry != nil && l.Registry.Has("TodoWrite")
}

// collectEvents gathers the synthetic user content for this turn:
// overdue todo reminder, background notifications, inbox messages.
func (l *Loop) collectEvents() ([]string, error) {
	var injected []string

	if l.tracksTodos() && l.Todos.HasOpenItems() && l.roundsWithoutTodo >= todoNagThreshold {
		injected = append(injected, todoReminder)
		l.roundsWithoutTodo = 0
	}

	if l.Executor != nil {
		for _, n := range l.Executor.DrainNotifications() {
			injected = append(injected, FormatNotification(n))
		}
	}

	if l.DrainInbox != nil {
		blocks, err := l.DrainInbox()
		if err != nil {
			return injected, err
		}
		injected = append(injected, blocks...)
	}

	return injected, nil
}

// dispatch runs the turn's tool calls in listed order and collects the
// tool_result blocks for the next user message.
func (l *Loop) dispatch(ctx context.Context, content []llm.Block) (results []llm.Block, compactRequested, todoTouched bool) {
	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		switch block.Name {
		case "compact":
			compactRequested = true
		case "TodoWrite":
			todoTouched = true
		}

		var result *tools.Result
		if l.Registry != nil {
			result = l.Registry.Execute(ctx, block.Name, block.Input)
		} else {
			result = tools.ErrorResult(fmt.Sprintf("Unknown tool: %s", block.Name))
		}

		output := result.ForLLM
		if output == "" && result.Err != nil {
			output = "Error: " + result.Err.Error()
		}
		if l.Context != nil {
			output = l.Context.HandleLargeOutput(output)
		}
		results = append(results, llm.ToolResultBlock(block.ID, output, result.IsError))
	}
	return results, compactRequested, todoTouched
}

// FormatNotification renders a background completion for the transcript.
// These blocks are injected as plain text and are never rewritten by
// micro-compact.
func FormatNotification(n background.Notification) string {
	return fmt.Sprintf(
		"<task-notification>\n  <task-id>%s</task-id>\n  <task-type>%s</task-type>\n  <status>%s</status>\n  <summary>%s</summary>\n  <output-file>%s</output-file>\n</task-notification>",
		n.TaskID, n.Kind, n.Status, n.Summary, n.OutputPath)
}
