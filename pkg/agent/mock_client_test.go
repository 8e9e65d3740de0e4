package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/crewclaw/crewclaw/pkg/llm"
)

// scriptedClient replays a fixed sequence of responses and records
// every request it receives.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*llm.Response
	calls     int
	requests  [][]llm.Message
	systems   []string
}

func (c *scriptedClient) Send(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolDef, maxTokens int) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	c.requests = append(c.requests, snapshot)
	c.systems = append(c.systems, system)

	if c.calls >= len(c.responses) {
		return nil, errors.New("scripted client exhausted")
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.Block{llm.TextBlock(text)},
		StopReason: llm.StopEndTurn,
	}
}

func toolUseResponse(id, name string, input map[string]any) *llm.Response {
	return &llm.Response{
		Content:    []llm.Block{llm.ToolUseBlock(id, name, input)},
		StopReason: llm.StopToolUse,
	}
}
