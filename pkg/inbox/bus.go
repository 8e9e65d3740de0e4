package inbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crewclaw/crewclaw/pkg/logger"
)

// Message types accepted by Send.
const (
	TypeMessage              = "message"
	TypeBroadcast            = "broadcast"
	TypeShutdownRequest      = "shutdown_request"
	TypeShutdownResponse     = "shutdown_response"
	TypePlanApprovalResponse = "plan_approval_response"
)

var validTypes = map[string]bool{
	TypeMessage:              true,
	TypeBroadcast:            true,
	TypeShutdownRequest:      true,
	TypeShutdownResponse:     true,
	TypePlanApprovalResponse: true,
}

const (
	lockRetries  = 50
	lockInterval = 50 * time.Millisecond
)

// Message is one inbox record, stored as a compact JSON line.
type Message struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
	Approved  *bool  `json:"approved,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Bus routes messages between the registered members of one team.
// Each member owns an append-only JSONL inbox guarded by an advisory
// <inbox>.lock file.
type Bus struct {
	dir     string
	mu      sync.Mutex
	members map[string]bool
}

func NewBus(dir string) *Bus {
	return &Bus{
		dir:     dir,
		members: make(map[string]bool),
	}
}

// Register adds a recipient and ensures its inbox file exists.
func (b *Bus) Register(name string) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("creating team dir: %w", err)
	}
	b.mu.Lock()
	b.members[name] = true
	b.mu.Unlock()

	f, err := os.OpenFile(b.inboxPath(name), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}
	return f.Close()
}

// Unregister removes a recipient; its inbox file is left in place.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	delete(b.members, name)
	b.mu.Unlock()
}

// Members returns the registered recipient names, sorted.
func (b *Bus) Members() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.members))
	for name := range b.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (b *Bus) inboxPath(name string) string {
	return filepath.Join(b.dir, name+"_inbox.jsonl")
}

// Send delivers a message. Broadcasts go to every member except the
// sender; all other types require a known recipient.
func (b *Bus) Send(sender, recipient, content, msgType string, extra *Message) error {
	if !validTypes[msgType] {
		return fmt.Errorf("Error: Invalid type %q", msgType)
	}

	msg := Message{
		Type:      msgType,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().Unix(),
	}
	if extra != nil {
		msg.RequestID = extra.RequestID
		msg.Approved = extra.Approved
		msg.Reason = extra.Reason
	}

	if msgType == TypeBroadcast {
		for _, member := range b.Members() {
			if member == sender {
				continue
			}
			if err := b.deliver(member, msg); err != nil {
				return err
			}
		}
		return nil
	}

	b.mu.Lock()
	known := b.members[recipient]
	b.mu.Unlock()
	if !known {
		return fmt.Errorf("Error: recipient not found: %s", recipient)
	}
	msg.Recipient = recipient
	return b.deliver(recipient, msg)
}

func (b *Bus) deliver(recipient string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	path := b.inboxPath(recipient)
	locked := b.acquireLock(path)
	if !locked {
		// Liveness over strict exclusion: after the deadline the write
		// proceeds without the lock.
		logger.WarnCF("inbox", "Writing without lock after contention",
			map[string]any{"recipient": recipient})
	} else {
		defer b.releaseLock(path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening inbox: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending to inbox: %w", err)
	}
	return nil
}

// CheckInbox drains the recipient's inbox: parse every line, truncate
// the file, return the messages in append order. Returns nil if the
// lock cannot be acquired; the caller retries on its next poll.
func (b *Bus) CheckInbox(name string) []Message {
	path := b.inboxPath(name)
	if !b.acquireLock(path) {
		return nil
	}
	defer b.releaseLock(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var messages []Message
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logger.WarnCF("inbox", "Skipping malformed inbox line",
				map[string]any{"recipient": name, "error": err.Error()})
			continue
		}
		messages = append(messages, msg)
	}

	if len(messages) > 0 || len(data) > 0 {
		if err := os.Truncate(path, 0); err != nil {
			logger.ErrorCF("inbox", "Failed to truncate inbox",
				map[string]any{"recipient": name, "error": err.Error()})
		}
	}
	return messages
}

func (b *Bus) acquireLock(inboxPath string) bool {
	lockPath := inboxPath + ".lock"
	for i := 0; i < lockRetries; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return true
		}
		if !os.IsExist(err) {
			return false
		}
		time.Sleep(lockInterval)
	}
	return false
}

func (b *Bus) releaseLock(inboxPath string) {
	os.Remove(inboxPath + ".lock")
}
