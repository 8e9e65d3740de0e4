package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crewclaw/crewclaw/pkg/llm"
	"github.com/crewclaw/crewclaw/pkg/logger"
)

// Viewer identifies who is looking at the registry: the lead agent, a
// teammate, or a typed subagent.
type Viewer struct {
	Role         string // "lead", "teammate", "subagent"
	SubagentType string // "explore", "code", "plan" (subagents only)
}

// VisibilityFilter decides whether a tool is exposed to a viewer.
type VisibilityFilter func(v Viewer) bool

// LeadOnly restricts a tool to the lead agent.
func LeadOnly(v Viewer) bool {
	return v.Role == "lead"
}

// TeammateOK exposes a tool to the lead and teammates but not subagents.
func TeammateOK(v Viewer) bool {
	return v.Role == "lead" || v.Role == "teammate"
}

// ReadOnlySubagents hides mutating tools from explore and plan
// subagents; everyone else sees them.
func ReadOnlySubagents(v Viewer) bool {
	if v.Role != "subagent" {
		return true
	}
	return v.SubagentType == "code"
}

// Registry maps tool names to handlers with per-viewer visibility.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	filters map[string]VisibilityFilter
}

func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		filters: make(map[string]VisibilityFilter),
	}
}

// Register adds a tool visible to every viewer.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	delete(r.filters, tool.Name())
}

// RegisterWithFilter adds a tool gated by a visibility filter.
func (r *Registry) RegisterWithFilter(tool Tool, filter VisibilityFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	if filter != nil {
		r.filters[tool.Name()] = filter
	} else {
		delete(r.filters, tool.Name())
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool is registered under the name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Execute runs the named tool, trapping panics so a broken handler
// surfaces to the model instead of killing the loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result *Result) {
	tool, ok := r.Get(name)
	if !ok {
		logger.ErrorCF("tool", "Unknown tool requested", map[string]any{"tool": name})
		return ErrorResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("tool", "Tool handler panicked",
				map[string]any{"tool": name, "panic": fmt.Sprint(rec)})
			result = ErrorResult(fmt.Sprintf("Error: %v", rec))
		}
	}()

	logger.DebugCF("tool", "Tool execution started",
		map[string]any{"tool": name, "args": args})

	start := time.Now()
	result = tool.Execute(ctx, args)
	duration := time.Since(start)

	if result == nil {
		result = ErrorResult(fmt.Sprintf("Error: tool %s returned no result", name))
	}

	if result.IsError {
		logger.ErrorCF("tool", "Tool execution failed",
			map[string]any{
				"tool":        name,
				"duration_ms": duration.Milliseconds(),
				"error":       result.ForLLM,
			})
	} else {
		logger.InfoCF("tool", "Tool execution completed",
			map[string]any{
				"tool":          name,
				"duration_ms":   duration.Milliseconds(),
				"result_length": len(result.ForLLM),
			})
	}
	return result
}

// sortedToolNames keeps definitions deterministic: map iteration order
// would shuffle the tool list between turns and defeat prompt caching.
func (r *Registry) sortedToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefinitionsFor returns the tool definitions visible to the viewer.
func (r *Registry) DefinitionsFor(v Viewer) []llm.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.sortedToolNames()
	defs := make([]llm.ToolDef, 0, len(sorted))
	for _, name := range sorted {
		if filter, gated := r.filters[name]; gated && !filter(v) {
			continue
		}
		defs = append(defs, ToolToDef(r.tools[name]))
	}
	return defs
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedToolNames()
}

// Summaries renders "name - description" lines for the system prompt,
// restricted to the viewer's visible set.
func (r *Registry) Summaries(v Viewer) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.sortedToolNames()
	out := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if filter, gated := r.filters[name]; gated && !filter(v) {
			continue
		}
		tool := r.tools[name]
		out = append(out, fmt.Sprintf("- `%s` - %s", tool.Name(), tool.Description()))
	}
	return out
}
