package main

import (
	"testing"

	"github.com/crewclaw/crewclaw/pkg/background"
	"github.com/crewclaw/crewclaw/pkg/config"
	"github.com/crewclaw/crewclaw/pkg/skills"
	"github.com/crewclaw/crewclaw/pkg/taskboard"
	"github.com/crewclaw/crewclaw/pkg/team"
	"github.com/crewclaw/crewclaw/pkg/tools"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := &config.Config{
		Workspace:       t.TempDir(),
		AgentName:       "lead",
		ContextWindow:   200000,
		MaxOutputTokens: 16384,
	}
	board, err := taskboard.NewBoard(cfg.TasksDir(""), cfg.AgentName)
	if err != nil {
		t.Fatal(err)
	}
	a := &app{
		cfg:      cfg,
		board:    board,
		executor: background.NewExecutor(cfg.TaskOutputsDir()),
		library:  skills.NewLibrary(cfg.SkillsDir()),
	}
	a.manager = team.NewManager(cfg.TeamsDir(), board, a.buildTeammateLoop)
	return a
}

func visibleTools(reg *tools.Registry, v tools.Viewer) map[string]bool {
	names := make(map[string]bool)
	for _, def := range reg.DefinitionsFor(v) {
		names[def.Name] = true
	}
	return names
}

func TestToolVisibilityMatrix(t *testing.T) {
	reg := newTestApp(t).buildRegistry("lead")

	lead := visibleTools(reg, tools.Viewer{Role: "lead"})
	teammate := visibleTools(reg, tools.Viewer{Role: "teammate"})
	explore := visibleTools(reg, tools.Viewer{Role: "subagent", SubagentType: "explore"})
	code := visibleTools(reg, tools.Viewer{Role: "subagent", SubagentType: "code"})

	// The lead sees everything, including the spawn and team tools.
	for _, name := range []string{"Task", "TeamCreate", "TeamDelete", "TaskOutput", "TaskStop", "SendMessage", "bash"} {
		if !lead[name] {
			t.Errorf("lead view missing %s", name)
		}
	}

	// Teammates never spawn agents or manage teams.
	for _, name := range []string{"Task", "TeamCreate", "TeamDelete", "TaskOutput", "TaskStop"} {
		if teammate[name] {
			t.Errorf("teammate view exposes %s", name)
		}
	}
	for _, name := range []string{"bash", "read_file", "write_file", "edit_file", "TaskCreate", "TaskGet", "TaskUpdate", "TaskList", "claim_task", "SendMessage", "idle"} {
		if !teammate[name] {
			t.Errorf("teammate view missing %s", name)
		}
	}

	// Read-only subagents get no mutating or team-facing tools.
	for _, name := range []string{"Task", "SendMessage", "bash", "write_file", "edit_file", "TaskCreate", "TaskUpdate", "claim_task"} {
		if explore[name] {
			t.Errorf("explore subagent view exposes %s", name)
		}
	}
	for _, name := range []string{"read_file", "TaskGet", "TaskList"} {
		if !explore[name] {
			t.Errorf("explore subagent view missing %s", name)
		}
	}

	// The code subagent may mutate, but still never spawns.
	for _, name := range []string{"bash", "write_file", "edit_file"} {
		if !code[name] {
			t.Errorf("code subagent view missing %s", name)
		}
	}
	if code["Task"] || code["SendMessage"] || code["TeamCreate"] {
		t.Error("code subagent view exposes spawn or team tools")
	}
}
