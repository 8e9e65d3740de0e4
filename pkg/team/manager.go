package team

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crewclaw/crewclaw/pkg/agent"
	"github.com/crewclaw/crewclaw/pkg/inbox"
	"github.com/crewclaw/crewclaw/pkg/llm"
	"github.com/crewclaw/crewclaw/pkg/logger"
	"github.com/crewclaw/crewclaw/pkg/taskboard"
)

const (
	IdlePollInterval = 1 * time.Second
	IdleTimeout      = 60 * time.Second

	// LeadName is the reserved inbox owner for the lead agent.
	LeadName = "lead"
)

// Teammate statuses.
const (
	StatusActive   = "active"
	StatusIdle     = "idle"
	StatusShutdown = "shutdown"
)

// Idle reasons, informational only.
const (
	IdleNoToolUse       = "no_tool_use"
	IdleAwaitingMessage = "awaiting_messages"
	IdleAwaitingTasks   = "awaiting_tasks"
	IdleTimedOut        = "timeout"
)

var teammateColors = []string{
	"\033[95m", "\033[96m", "\033[93m", "\033[92m", "\033[94m", "\033[91m",
}

// Teammate is one persistent worker inside a team.
type Teammate struct {
	Name       string
	TeamName   string
	AgentID    string
	Color      string
	Prompt     string
	Status     string
	IdleReason string
}

// Team owns its members and their shared inbox bus.
type Team struct {
	Name    string
	Dir     string
	Bus     *inbox.Bus
	Members map[string]*Teammate
}

// LoopBuilder constructs the agent loop for one teammate. The manager
// fills in DrainInbox and OnAutoCompact afterwards.
type LoopBuilder func(teamName, name string) *agent.Loop

// Manager owns all teams and the teammate workers.
type Manager struct {
	teamsDir  string
	board     *taskboard.Board
	buildLoop LoopBuilder

	idlePoll    time.Duration
	idleTimeout time.Duration

	mu         sync.Mutex
	teams      map[string]*Team
	colorIndex int
	wg         sync.WaitGroup
}

func NewManager(teamsDir string, board *taskboard.Board, buildLoop LoopBuilder) *Manager {
	return &Manager{
		teamsDir:    teamsDir,
		board:       board,
		buildLoop:   buildLoop,
		idlePoll:    IdlePollInterval,
		idleTimeout: IdleTimeout,
		teams:       make(map[string]*Team),
	}
}

// CreateTeam creates the team directory and registers the lead's inbox.
func (m *Manager) CreateTeam(name string) error {
	if name == "" {
		return fmt.Errorf("team name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.teams[name]; exists {
		return fmt.Errorf("team %q already exists", name)
	}

	dir := filepath.Join(m.teamsDir, name)
	team := &Team{
		Name:    name,
		Dir:     dir,
		Bus:     inbox.NewBus(dir),
		Members: make(map[string]*Teammate),
	}
	if err := team.Bus.Register(LeadName); err != nil {
		return err
	}
	m.teams[name] = team
	if err := m.persistConfigLocked(team); err != nil {
		return err
	}

	logger.InfoCF("team", "Team created", map[string]any{"team": name})
	return nil
}

// SpawnTeammate starts a persistent worker in an existing team.
func (m *Manager) SpawnTeammate(teamName, name, prompt string) error {
	m.mu.Lock()
	team, ok := m.teams[teamName]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown team %q", teamName)
	}
	if _, dup := team.Members[name]; dup {
		m.mu.Unlock()
		return fmt.Errorf("teammate %q already exists in team %q", name, teamName)
	}
	if name == LeadName {
		m.mu.Unlock()
		return fmt.Errorf("teammate name %q is reserved", LeadName)
	}

	tm := &Teammate{
		Name:     name,
		TeamName: teamName,
		AgentID:  name + "@" + teamName,
		Color:    teammateColors[m.colorIndex%len(teammateColors)],
		Prompt:   prompt,
		Status:   StatusActive,
	}
	m.colorIndex++
	team.Members[name] = tm

	if err := team.Bus.Register(name); err != nil {
		delete(team.Members, name)
		m.mu.Unlock()
		return err
	}
	if err := m.persistConfigLocked(team); err != nil {
		delete(team.Members, name)
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	logger.InfoCF("team", "Teammate spawned",
		map[string]any{"agent_id": tm.AgentID})

	m.wg.Add(1)
	go m.runTeammate(team, tm)
	return nil
}

// DeleteTeam requests shutdown from every member and forgets the team.
// Workers observe the request on their next inbox drain.
func (m *Manager) DeleteTeam(name string) error {
	m.mu.Lock()
	team, ok := m.teams[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown team %q", name)
	}
	members := make([]*Teammate, 0, len(team.Members))
	for _, tm := range team.Members {
		members = append(members, tm)
	}
	delete(m.teams, name)
	m.mu.Unlock()

	for _, tm := range members {
		extra := &inbox.Message{RequestID: fmt.Sprintf("shutdown-%d", time.Now().UnixNano())}
		if err := team.Bus.Send(LeadName, tm.Name, "Team is being deleted.", inbox.TypeShutdownRequest, extra); err != nil {
			logger.WarnCF("team", "Shutdown request failed",
				map[string]any{"agent_id": tm.AgentID, "error": err.Error()})
		}
		m.setStatus(tm, StatusShutdown, "")
	}

	logger.InfoCF("team", "Team deleted", map[string]any{"team": name})
	return nil
}

// Send routes a message through the team bus that knows the recipient.
// Messages to the lead travel over the sender's team bus.
func (m *Manager) Send(sender, recipient, content, msgType string, extra *inbox.Message) error {
	if msgType == inbox.TypeBroadcast {
		return m.broadcast(sender, content, extra)
	}

	m.mu.Lock()
	target := m.teamOfLocked(recipient)
	if target == nil && recipient == LeadName {
		target = m.teamOfLocked(sender)
	}
	m.mu.Unlock()

	if target == nil {
		return fmt.Errorf("Error: recipient not found: %s", recipient)
	}
	return target.Bus.Send(sender, recipient, content, msgType, extra)
}

// broadcast fans out to the sender's team. The lead belongs to every
// team, so its broadcasts reach all of them in name order.
func (m *Manager) broadcast(sender, content string, extra *inbox.Message) error {
	m.mu.Lock()
	var targets []*Team
	if sender == LeadName {
		names := make([]string, 0, len(m.teams))
		for name := range m.teams {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			targets = append(targets, m.teams[name])
		}
	} else if team := m.teamOfLocked(sender); team != nil {
		targets = append(targets, team)
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		return fmt.Errorf("Error: no team to broadcast to")
	}
	for _, team := range targets {
		if err := team.Bus.Send(sender, "", content, inbox.TypeBroadcast, extra); err != nil {
			return err
		}
	}
	return nil
}

// teamOfLocked finds the team a member belongs to.
func (m *Manager) teamOfLocked(name string) *Team {
	for _, team := range m.teams {
		if _, ok := team.Members[name]; ok {
			return team
		}
	}
	return nil
}

// Teams returns the current team names, sorted.
func (m *Manager) Teams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.teams))
	for name := range m.teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Member returns a snapshot of one teammate.
func (m *Manager) Member(teamName, name string) (Teammate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[teamName]
	if !ok {
		return Teammate{}, false
	}
	tm, ok := team.Members[name]
	if !ok {
		return Teammate{}, false
	}
	return *tm, true
}

// Status renders a human-readable overview of all teams.
func (m *Manager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.teams) == 0 {
		return "No teams."
	}

	names := make([]string, 0, len(m.teams))
	for name := range m.teams {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		team := m.teams[name]
		fmt.Fprintf(&sb, "Team %s (%d members)\n", name, len(team.Members))
		memberNames := make([]string, 0, len(team.Members))
		for mn := range team.Members {
			memberNames = append(memberNames, mn)
		}
		sort.Strings(memberNames)
		for _, mn := range memberNames {
			tm := team.Members[mn]
			line := fmt.Sprintf("  %s: %s", tm.AgentID, tm.Status)
			if tm.Status == StatusIdle && tm.IdleReason != "" {
				line += " (" + tm.IdleReason + ")"
			}
			sb.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LeadDrainer returns an inbox drainer for the lead agent's loop,
// covering every team's lead inbox.
func (m *Manager) LeadDrainer() agent.InboxDrainer {
	return func() ([]string, error) {
		m.mu.Lock()
		teams := make([]*Team, 0, len(m.teams))
		for _, team := range m.teams {
			teams = append(teams, team)
		}
		m.mu.Unlock()

		var blocks []string
		for _, team := range teams {
			for _, msg := range team.Bus.CheckInbox(LeadName) {
				blocks = append(blocks, FormatTeammateMessage(msg))
			}
		}
		return blocks, nil
	}
}

// Wait blocks until every teammate worker has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) setStatus(tm *Teammate, status, idleReason string) {
	m.mu.Lock()
	tm.Status = status
	tm.IdleReason = idleReason
	m.mu.Unlock()
}

type memberConfig struct {
	Name    string `json:"name"`
	AgentID string `json:"agent_id"`
	Color   string `json:"color"`
}

type teamConfig struct {
	Name    string         `json:"name"`
	Members []memberConfig `json:"members"`
}

func (m *Manager) persistConfigLocked(team *Team) error {
	cfg := teamConfig{Name: team.Name}
	names := make([]string, 0, len(team.Members))
	for name := range team.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tm := team.Members[name]
		cfg.Members = append(cfg.Members, memberConfig{
			Name:    tm.Name,
			AgentID: tm.AgentID,
			Color:   tm.Color,
		})
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(team.Dir, 0o755); err != nil {
		return fmt.Errorf("creating team dir: %w", err)
	}
	path := filepath.Join(team.Dir, "config.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing team config: %w", err)
	}
	return os.Rename(tmp, path)
}

// FormatTeammateMessage renders an inbox message for transcript
// injection.
func FormatTeammateMessage(msg inbox.Message) string {
	return fmt.Sprintf("<teammate-message sender=%q type=%q>%s</teammate-message>",
		msg.Sender, msg.Type, msg.Content)
}

// ReinjectIdentity appends the teammate's identity line to the first
// message so it survives auto-compaction.
func ReinjectIdentity(messages []llm.Message, tm *Teammate) {
	if len(messages) == 0 {
		return
	}
	suffix := fmt.Sprintf("\n\nRemember: You are teammate '%s' (%s) in team '%s'.",
		tm.Name, tm.AgentID, tm.TeamName)
	for i, b := range messages[0].Content {
		if b.Type == "text" {
			messages[0].Content[i].Text += suffix
			return
		}
	}
	messages[0].Content = append(messages[0].Content, llm.TextBlock(strings.TrimPrefix(suffix, "\n\n")))
}

// drainForTeammate converts inbox messages into transcript blocks,
// surfacing shutdown as an error the loop terminates on. The shutdown
// request id comes back so the worker can acknowledge it.
func drainForTeammate(msgs []inbox.Message) ([]string, string, error) {
	var blocks []string
	for _, msg := range msgs {
		switch msg.Type {
		case inbox.TypeShutdownRequest:
			return blocks, msg.RequestID, agent.ErrShutdownRequested
		case inbox.TypePlanApprovalResponse:
			if msg.Approved != nil && *msg.Approved {
				blocks = append(blocks, "Plan APPROVED.")
			} else {
				blocks = append(blocks, "Plan REJECTED: "+msg.Content)
			}
		default:
			blocks = append(blocks, FormatTeammateMessage(msg))
		}
	}
	return blocks, "", nil
}

// runTeammate is the worker: active turns, then an idle poll cycle that
// resumes on messages or auto-claimed tasks, until shutdown or timeout.
func (m *Manager) runTeammate(team *Team, tm *Teammate) {
	defer m.wg.Done()

	var shutdownReqID string
	loop := m.buildLoop(tm.TeamName, tm.Name)
	loop.DrainInbox = func() ([]string, error) {
		blocks, reqID, err := drainForTeammate(team.Bus.CheckInbox(tm.Name))
		if err != nil {
			shutdownReqID = reqID
		}
		return blocks, err
	}
	loop.OnAutoCompact = func(messages []llm.Message) {
		ReinjectIdentity(messages, tm)
	}

	messages := []llm.Message{llm.UserText(tm.Prompt)}
	ctx := context.Background()

	for {
		m.setStatus(tm, StatusActive, "")

		var err error
		messages, err = loop.Run(ctx, messages)
		if err != nil {
			if err == agent.ErrShutdownRequested {
				m.acknowledgeShutdown(team, tm, shutdownReqID)
				logger.InfoCF("team", "Teammate shutting down on request",
					map[string]any{"agent_id": tm.AgentID})
			} else {
				logger.ErrorCF("team", "Teammate loop failed",
					map[string]any{"agent_id": tm.AgentID, "error": err.Error()})
			}
			m.setStatus(tm, StatusShutdown, "")
			return
		}

		m.setStatus(tm, StatusIdle, IdleNoToolUse)
		resume, injected, reqID := m.idleCycle(team, tm)
		if !resume {
			if reqID != "" {
				m.acknowledgeShutdown(team, tm, reqID)
				logger.InfoCF("team", "Teammate shutting down on request",
					map[string]any{"agent_id": tm.AgentID})
			} else {
				logger.InfoCF("team", "Teammate idle timeout, shutting down",
					map[string]any{"agent_id": tm.AgentID})
			}
			m.setStatus(tm, StatusShutdown, "")
			return
		}
		messages = append(messages, injected...)
	}
}

// acknowledgeShutdown answers a shutdown request so the lead can
// observe the handshake completing.
func (m *Manager) acknowledgeShutdown(team *Team, tm *Teammate, requestID string) {
	extra := &inbox.Message{RequestID: requestID}
	if err := team.Bus.Send(tm.Name, LeadName, "Shutting down.", inbox.TypeShutdownResponse, extra); err != nil {
		logger.WarnCF("team", "Shutdown response failed",
			map[string]any{"agent_id": tm.AgentID, "error": err.Error()})
	}
}

// idleCycle polls for wake-up triggers: inbox messages or unclaimed
// board tasks. Returns the user messages to resume with.
func (m *Manager) idleCycle(team *Team, tm *Teammate) (bool, []llm.Message, string) {
	deadline := time.Now().Add(m.idleTimeout)

	for time.Now().Before(deadline) {
		inboxMsgs := team.Bus.CheckInbox(tm.Name)
		if len(inboxMsgs) > 0 {
			blocks, reqID, err := drainForTeammate(inboxMsgs)
			if err != nil {
				return false, nil, reqID
			}
			m.setStatus(tm, StatusIdle, IdleAwaitingMessage)
			content := make([]llm.Block, 0, len(blocks))
			for _, b := range blocks {
				content = append(content, llm.TextBlock(b))
			}
			if len(content) == 0 {
				return false, nil, ""
			}
			return true, []llm.Message{{Role: "user", Content: content}}, ""
		}

		if m.board != nil {
			unclaimed, err := m.board.Unclaimed()
			if err == nil && len(unclaimed) > 0 {
				task := unclaimed[0]
				if _, err := m.board.Claim(task.ID, tm.Name); err == nil {
					m.setStatus(tm, StatusIdle, IdleAwaitingTasks)
					text := fmt.Sprintf("Unclaimed task auto-claimed - #%s: %s\n\n%s",
						task.ID, task.Subject, task.Description)
					logger.InfoCF("team", "Task auto-claimed",
						map[string]any{"agent_id": tm.AgentID, "task_id": task.ID})
					return true, []llm.Message{llm.UserText(text)}, ""
				}
			}
		}

		time.Sleep(m.idlePoll)
	}

	m.setStatus(tm, StatusIdle, IdleTimedOut)
	return false, nil, ""
}
