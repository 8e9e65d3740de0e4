package tools

import (
	"context"
	"strings"
	"testing"
)

type fakeTool struct {
	name   string
	result *Result
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake " + f.name }
func (f *fakeTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) *Result {
	return f.result
}

type panickyTool struct{}

func (p *panickyTool) Name() string        { return "boom" }
func (p *panickyTool) Description() string { return "panics" }
func (p *panickyTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (p *panickyTool) Execute(ctx context.Context, args map[string]any) *Result {
	panic("handler bug")
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(context.Background(), "nope", nil)
	if !result.IsError {
		t.Error("expected error result")
	}
	if result.ForLLM != "Unknown tool: nope" {
		t.Errorf("message = %q", result.ForLLM)
	}
}

func TestExecutePanicBecomesErrorResult(t *testing.T) {
	r := NewRegistry()
	r.Register(&panickyTool{})
	result := r.Execute(context.Background(), "boom", nil)
	if !result.IsError {
		t.Error("expected error result")
	}
	if !strings.Contains(result.ForLLM, "handler bug") {
		t.Errorf("message = %q", result.ForLLM)
	}
}

func TestDefinitionsSortedAndFiltered(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "zeta", result: NewResult("z")})
	r.Register(&fakeTool{name: "alpha", result: NewResult("a")})
	r.RegisterWithFilter(&fakeTool{name: "TeamCreate", result: NewResult("t")}, LeadOnly)

	leadDefs := r.DefinitionsFor(Viewer{Role: "lead"})
	if len(leadDefs) != 3 {
		t.Fatalf("lead sees %d tools, want 3", len(leadDefs))
	}
	if leadDefs[0].Name != "TeamCreate" || leadDefs[1].Name != "alpha" || leadDefs[2].Name != "zeta" {
		t.Errorf("order: %s, %s, %s", leadDefs[0].Name, leadDefs[1].Name, leadDefs[2].Name)
	}

	mateDefs := r.DefinitionsFor(Viewer{Role: "teammate"})
	for _, def := range mateDefs {
		if def.Name == "TeamCreate" {
			t.Error("teammate can see a lead-only tool")
		}
	}
}

func TestReadOnlySubagentFilter(t *testing.T) {
	r := NewRegistry()
	r.RegisterWithFilter(&fakeTool{name: "write_file", result: NewResult("w")}, ReadOnlySubagents)
	r.Register(&fakeTool{name: "read_file", result: NewResult("r")})

	explore := r.DefinitionsFor(Viewer{Role: "subagent", SubagentType: "explore"})
	if len(explore) != 1 || explore[0].Name != "read_file" {
		t.Errorf("explore sees: %+v", explore)
	}

	code := r.DefinitionsFor(Viewer{Role: "subagent", SubagentType: "code"})
	if len(code) != 2 {
		t.Errorf("code sees %d tools, want 2", len(code))
	}
}

func TestSummariesIncludeDescriptions(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "alpha", result: NewResult("a")})
	summaries := r.Summaries(Viewer{Role: "lead"})
	if len(summaries) != 1 || !strings.Contains(summaries[0], "fake alpha") {
		t.Errorf("summaries = %v", summaries)
	}
}
