package tools

import (
	"context"
	"fmt"

	"github.com/crewclaw/crewclaw/pkg/inbox"
)

// TeamService is the slice of the teammate manager the team tools need.
// Injected to keep the dependency direction manager -> tools.
type TeamService interface {
	CreateTeam(name string) error
	DeleteTeam(name string) error
	SpawnTeammate(teamName, name, prompt string) error
	Send(sender, recipient, content, msgType string, extra *inbox.Message) error
	Status() string
}

type TeamCreateTool struct {
	service TeamService
}

func NewTeamCreateTool(service TeamService) *TeamCreateTool {
	return &TeamCreateTool{service: service}
}

func (t *TeamCreateTool) Name() string {
	return "TeamCreate"
}

func (t *TeamCreateTool) Description() string {
	return "Create a named team that teammates can be spawned into"
}

func (t *TeamCreateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team_name": map[string]any{"type": "string", "description": "Team name"},
		},
		"required": []string{"team_name"},
	}
}

func (t *TeamCreateTool) Execute(ctx context.Context, args map[string]any) *Result {
	name := stringArg(args, "team_name")
	if name == "" {
		return ErrorResult("Error: team_name is required")
	}
	if err := t.service.CreateTeam(name); err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Created team %q", name))
}

type TeamDeleteTool struct {
	service TeamService
}

func NewTeamDeleteTool(service TeamService) *TeamDeleteTool {
	return &TeamDeleteTool{service: service}
}

func (t *TeamDeleteTool) Name() string {
	return "TeamDelete"
}

func (t *TeamDeleteTool) Description() string {
	return "Shut down every teammate in a team and remove the team"
}

func (t *TeamDeleteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team_name": map[string]any{"type": "string", "description": "Team name"},
		},
		"required": []string{"team_name"},
	}
}

func (t *TeamDeleteTool) Execute(ctx context.Context, args map[string]any) *Result {
	name := stringArg(args, "team_name")
	if name == "" {
		return ErrorResult("Error: team_name is required")
	}
	if err := t.service.DeleteTeam(name); err != nil {
		return ErrorResult("Error: " + err.Error())
	}
	return NewResult(fmt.Sprintf("Deleted team %q", name))
}

// SendMessageTool routes a message or broadcast to teammates through
// the inbox bus. The sender name is bound at registration time.
type SendMessageTool struct {
	service TeamService
	sender  string
}

func NewSendMessageTool(service TeamService, sender string) *SendMessageTool {
	return &SendMessageTool{service: service, sender: sender}
}

func (t *SendMessageTool) Name() string {
	return "SendMessage"
}

func (t *SendMessageTool) Description() string {
	return "Send a message to a teammate, or broadcast to the whole team"
}

func (t *SendMessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{"type": "string", "description": "Teammate name; omit for broadcast"},
			"content":   map[string]any{"type": "string", "description": "Message body"},
			"type": map[string]any{
				"type":        "string",
				"enum":        []string{"message", "broadcast", "shutdown_request", "shutdown_response", "plan_approval_response"},
				"description": "Message type (default message)",
			},
			"request_id": map[string]any{"type": "string", "description": "Correlation id for shutdown handshakes"},
			"approved":   map[string]any{"type": "boolean", "description": "Approval verdict for plan_approval_response"},
		},
		"required": []string{"content"},
	}
}

func (t *SendMessageTool) Execute(ctx context.Context, args map[string]any) *Result {
	content := stringArg(args, "content")
	if content == "" {
		return ErrorResult("Error: content is required")
	}
	msgType := stringArg(args, "type")
	if msgType == "" {
		msgType = inbox.TypeMessage
	}
	recipient := stringArg(args, "recipient")
	if recipient == "" && msgType != inbox.TypeBroadcast {
		msgType = inbox.TypeBroadcast
	}

	var extra *inbox.Message
	if requestID := stringArg(args, "request_id"); requestID != "" {
		extra = &inbox.Message{RequestID: requestID}
	}
	if v, ok := args["approved"].(bool); ok {
		if extra == nil {
			extra = &inbox.Message{}
		}
		extra.Approved = &v
	}

	if err := t.service.Send(t.sender, recipient, content, msgType, extra); err != nil {
		return ErrorResult(err.Error())
	}
	if msgType == inbox.TypeBroadcast {
		return NewResult("Broadcast sent")
	}
	return NewResult(fmt.Sprintf("Message sent to %s", recipient))
}
