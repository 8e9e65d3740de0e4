package llm

import "context"

// Block is one content element of a message. Type discriminates the
// variant: "text", "tool_use", "tool_result" or "image". Blocks are
// canonicalized at the client boundary so internal code never inspects
// provider SDK types.
type Block struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Source    map[string]any `json:"source,omitempty"`
}

func TextBlock(text string) Block {
	return Block{Type: "text", Text: text}
}

func ToolUseBlock(id, name string, input map[string]any) Block {
	return Block{Type: "tool_use", ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Type: "tool_result", ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is one conversation turn. Content is always a block list;
// plain-text turns hold a single text block.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

func UserText(text string) Message {
	return Message{Role: "user", Content: []Block{TextBlock(text)}}
}

func AssistantText(text string) Message {
	return Message{Role: "assistant", Content: []Block{TextBlock(text)}}
}

// TextContent concatenates the text blocks of a message.
func (m Message) TextContent() string {
	var out string
	for _, b := range m.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// ToolDef describes one callable tool for the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Response is a single model turn.
type Response struct {
	Content    []Block
	StopReason string
}

// Stop reasons the loop branches on. StopToolUse is the only value that
// continues the loop; anything else terminates the turn.
const (
	StopToolUse   = "tool_use"
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
)

// Client is the single boundary to the model provider.
type Client interface {
	Send(ctx context.Context, system string, messages []Message, tools []ToolDef, maxTokens int) (*Response, error)
}
