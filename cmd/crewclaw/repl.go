package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/crewclaw/crewclaw/pkg/llm"
)

// RunREPL runs the interactive lead session.
func (a *app) RunREPL(ctx context.Context) error {
	fmt.Println("crewclaw interactive mode (Ctrl+C to exit)")
	fmt.Println("  /compact  - compress the conversation")
	fmt.Println("  /tasks    - show the task board")
	fmt.Println("  /team     - show team status")
	fmt.Println("  /inbox    - drain the lead inbox")
	fmt.Println()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".crewclaw_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}
		if strings.HasPrefix(input, "/") {
			a.handleSlashCommand(ctx, input)
			continue
		}

		a.messages = append(a.messages, llm.UserText(input))
		transcript, err := a.leadLoop.Run(ctx, a.messages)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		a.messages = transcript
		fmt.Printf("\n%s\n\n", finalAssistantText(transcript))
	}
}

func (a *app) handleSlashCommand(ctx context.Context, input string) {
	switch input {
	case "/compact":
		if len(a.messages) == 0 {
			fmt.Println("Nothing to compact.")
			return
		}
		compacted, err := a.leadLoop.Context.AutoCompact(ctx, a.messages)
		if err != nil {
			fmt.Printf("Compaction failed: %v\n", err)
			return
		}
		a.messages = compacted
		fmt.Printf("Compacted to %d messages.\n", len(compacted))

	case "/tasks":
		tasks, err := a.board.ListAll()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(tasks) == 0 {
			fmt.Println("Task board is empty.")
			return
		}
		for _, task := range tasks {
			line := fmt.Sprintf("#%s [%s] %s", task.ID, task.Status, task.Subject)
			if task.Owner != "" {
				line += " (owner: " + task.Owner + ")"
			}
			if len(task.BlockedBy) > 0 {
				line += " blocked-by: " + strings.Join(task.BlockedBy, ", ")
			}
			fmt.Println(line)
		}

	case "/team":
		fmt.Println(a.manager.Status())

	case "/inbox":
		blocks, err := a.manager.LeadDrainer()()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(blocks) == 0 {
			fmt.Println("Inbox is empty.")
			return
		}
		for _, b := range blocks {
			fmt.Println(b)
		}

	default:
		fmt.Printf("Unknown command: %s\n", input)
	}
}
