package main

import (
	"context"
	"fmt"
	"os"

	"github.com/crewclaw/crewclaw/pkg/agent"
	"github.com/crewclaw/crewclaw/pkg/background"
	"github.com/crewclaw/crewclaw/pkg/config"
	"github.com/crewclaw/crewclaw/pkg/llm"
	"github.com/crewclaw/crewclaw/pkg/logger"
	"github.com/crewclaw/crewclaw/pkg/skills"
	"github.com/crewclaw/crewclaw/pkg/taskboard"
	"github.com/crewclaw/crewclaw/pkg/team"
	"github.com/crewclaw/crewclaw/pkg/tools"
)

// app owns the wired runtime: one LLM client, one task board, one
// background executor, one teammate manager, and the lead agent loop.
type app struct {
	cfg      *config.Config
	client   llm.Client
	board    *taskboard.Board
	executor *background.Executor
	library  *skills.Library
	manager  *team.Manager

	leadLoop *agent.Loop
	messages []llm.Message
}

func newApp(cfg *config.Config) (*app, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	for _, dir := range []string{cfg.Workspace, cfg.TranscriptsDir(), cfg.TaskOutputsDir(), cfg.TeamsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	var client llm.Client = llm.NewAnthropicClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	if cfg.RequestsPerMin > 0 {
		client = llm.NewRateLimitedClient(client, cfg.RequestsPerMin)
	}

	board, err := taskboard.NewBoard(cfg.TasksDir(""), cfg.AgentName)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		client:   client,
		board:    board,
		executor: background.NewExecutor(cfg.TaskOutputsDir()),
		library:  skills.NewLibrary(cfg.SkillsDir()),
	}
	a.manager = team.NewManager(cfg.TeamsDir(), board, a.buildTeammateLoop)

	leadViewer := tools.Viewer{Role: "lead"}
	registry := a.buildRegistry(cfg.AgentName)
	todos := tools.NewTodoList()
	registry.Register(tools.NewTodoWriteTool(todos))

	cm := agent.NewContextManager(client, cfg.Workspace, cfg.TranscriptsDir(),
		cfg.ContextWindow, cfg.MaxOutputTokens)

	a.leadLoop = &agent.Loop{
		Client:     client,
		Registry:   registry,
		Context:    cm,
		Executor:   a.executor,
		Viewer:     leadViewer,
		MaxTokens:  cfg.MaxOutputTokens,
		Todos:      todos,
		DrainInbox: a.manager.LeadDrainer(),
		System: agent.BuildSystemPrompt(agent.PromptSpec{
			Identity:       fmt.Sprintf("You are %q, the lead agent of a coding team.", cfg.AgentName),
			Workspace:      cfg.Workspace,
			ToolSummaries:  registry.Summaries(leadViewer),
			SkillSummaries: a.library.Summaries(),
		}),
	}

	logger.InfoCF("main", "Runtime initialized", map[string]any{
		"workspace": cfg.Workspace,
		"model":     cfg.Model,
		"tools":     len(registry.List()),
	})
	return a, nil
}

// buildRegistry assembles the full tool set for one agent identity.
// Visibility filters decide what each viewer actually sees.
func (a *app) buildRegistry(owner string) *tools.Registry {
	cfg := a.cfg
	r := tools.NewRegistry()

	r.Register(tools.NewReadFileTool(cfg.Workspace))
	r.RegisterWithFilter(tools.NewWriteFileTool(cfg.Workspace), tools.ReadOnlySubagents)
	r.RegisterWithFilter(tools.NewEditFileTool(cfg.Workspace), tools.ReadOnlySubagents)
	r.RegisterWithFilter(tools.NewBashTool(cfg.Workspace, a.executor), tools.ReadOnlySubagents)

	r.Register(tools.NewTaskGetTool(a.board))
	r.Register(tools.NewTaskListTool(a.board))
	r.RegisterWithFilter(tools.NewTaskCreateTool(a.board), tools.ReadOnlySubagents)
	r.RegisterWithFilter(tools.NewTaskUpdateTool(a.board), tools.ReadOnlySubagents)
	r.RegisterWithFilter(tools.NewClaimTaskTool(a.board, owner), tools.TeammateOK)

	r.RegisterWithFilter(tools.NewTaskOutputTool(a.executor), tools.LeadOnly)
	r.RegisterWithFilter(tools.NewTaskStopTool(a.executor), tools.LeadOnly)

	r.RegisterWithFilter(tools.NewTeamCreateTool(a.manager), tools.LeadOnly)
	r.RegisterWithFilter(tools.NewTeamDeleteTool(a.manager), tools.LeadOnly)
	r.RegisterWithFilter(tools.NewSendMessageTool(a.manager, owner), tools.TeammateOK)

	r.RegisterWithFilter(tools.NewTaskTool(a.runSubagent, a.executor, a.manager), tools.LeadOnly)

	r.Register(tools.NewLoadSkillTool(a.library))
	r.Register(tools.NewCompactTool())
	r.RegisterWithFilter(tools.NewIdleTool(), tools.TeammateOK)

	return r
}

// buildTeammateLoop is the team manager's loop factory. The manager
// attaches DrainInbox and OnAutoCompact itself.
func (a *app) buildTeammateLoop(teamName, name string) *agent.Loop {
	cfg := a.cfg
	viewer := tools.Viewer{Role: "teammate"}
	registry := a.buildRegistry(name)
	todos := tools.NewTodoList()
	registry.Register(tools.NewTodoWriteTool(todos))

	cm := agent.NewContextManager(a.client, cfg.Workspace, cfg.TranscriptsDir(),
		cfg.ContextWindow, cfg.MaxOutputTokens)

	identity := fmt.Sprintf("You are teammate '%s' (%s@%s) in team '%s'. Claim tasks from the shared board and report results to the lead.",
		name, name, teamName, teamName)

	return &agent.Loop{
		Client:    a.client,
		Registry:  registry,
		Context:   cm,
		Executor:  a.executor,
		Viewer:    viewer,
		MaxTokens: cfg.MaxOutputTokens,
		Todos:     todos,
		System: agent.BuildSystemPrompt(agent.PromptSpec{
			Identity:       identity,
			Workspace:      cfg.Workspace,
			ToolSummaries:  registry.Summaries(viewer),
			SkillSummaries: a.library.Summaries(),
		}),
	}
}

// runSubagent executes a one-shot nested agent and returns its final
// text. Subagents get no team tools and, outside the code type, no
// mutating tools.
func (a *app) runSubagent(ctx context.Context, agentType, prompt string) (string, error) {
	cfg := a.cfg
	preamble, ok := agent.SubagentPrompts[agentType]
	if !ok {
		return "", fmt.Errorf("unknown subagent type %q", agentType)
	}

	viewer := tools.Viewer{Role: "subagent", SubagentType: agentType}
	registry := a.buildRegistry(cfg.AgentName)

	cm := agent.NewContextManager(a.client, cfg.Workspace, cfg.TranscriptsDir(),
		cfg.ContextWindow, cfg.MaxOutputTokens)

	loop := &agent.Loop{
		Client:    a.client,
		Registry:  registry,
		Context:   cm,
		Viewer:    viewer,
		MaxTokens: cfg.MaxOutputTokens,
		System: agent.BuildSystemPrompt(agent.PromptSpec{
			Identity:      preamble,
			Workspace:     cfg.Workspace,
			ToolSummaries: registry.Summaries(viewer),
		}),
	}

	transcript, err := loop.Run(ctx, []llm.Message{llm.UserText(prompt)})
	if err != nil {
		return "", err
	}
	return finalAssistantText(transcript), nil
}

// RunOnce processes a single message and prints the reply.
func (a *app) RunOnce(ctx context.Context, message string) error {
	a.messages = append(a.messages, llm.UserText(message))
	transcript, err := a.leadLoop.Run(ctx, a.messages)
	if err != nil {
		return err
	}
	a.messages = transcript
	fmt.Println(finalAssistantText(transcript))
	return nil
}

func finalAssistantText(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			if text := messages[i].TextContent(); text != "" {
				return text
			}
		}
	}
	return ""
}

// Close shuts down remaining teams and waits for their workers.
func (a *app) Close() {
	for _, name := range a.manager.Teams() {
		if err := a.manager.DeleteTeam(name); err != nil {
			logger.WarnCF("main", "Team shutdown failed",
				map[string]any{"team": name, "error": err.Error()})
		}
	}
	a.manager.Wait()
}
