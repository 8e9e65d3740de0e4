package taskboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/crewclaw/crewclaw/pkg/logger"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeleted    Status = "deleted"
)

var ErrNotFound = errors.New("task not found")

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusDeleted:
		return true
	}
	return false
}

// Task is one persistent unit of work, stored as task_<N>.json.
type Task struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	ActiveForm  string         `json:"active_form"`
	Owner       string         `json:"owner"`
	Blocks      []string       `json:"blocks"`
	BlockedBy   []string       `json:"blocked_by"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// Update describes a partial task update. Nil pointers leave the field
// unchanged; Metadata entries are merged; AddBlocks/AddBlockedBy grow
// the dependency graph bidirectionally.
type Update struct {
	Subject      *string
	Description  *string
	Status       *Status
	ActiveForm   *string
	Owner        *string
	Metadata     map[string]any
	AddBlocks    []string
	AddBlockedBy []string
}

// Board is a directory of task files plus a .highwatermark id counter.
// All operations serialize on the board mutex; individual files are
// replaced whole so concurrent readers never observe torn records.
type Board struct {
	dir          string
	defaultOwner string
	mu           sync.Mutex
	highwater    int
}

var taskFileRe = regexp.MustCompile(`^task_(\d+)\.json$`)

// NewBoard opens (or creates) the board directory. defaultOwner fills
// the owner field when a task moves to in_progress without one.
func NewBoard(dir, defaultOwner string) (*Board, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating board dir: %w", err)
	}
	b := &Board{dir: dir, defaultOwner: defaultOwner}
	if err := b.recoverHighwater(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) recoverHighwater() error {
	data, err := os.ReadFile(b.highwaterPath())
	if err == nil {
		if n, convErr := strconv.Atoi(string(trimSpace(data))); convErr == nil {
			b.highwater = n
			return nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading highwatermark: %w", err)
	}

	// Fall back to scanning filenames for the maximum allocated id.
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("scanning board dir: %w", err)
	}
	max := 0
	for _, entry := range entries {
		m := taskFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > max {
			max = n
		}
	}
	b.highwater = max
	return nil
}

func trimSpace(data []byte) []byte {
	start, end := 0, len(data)
	for start < end && (data[start] == ' ' || data[start] == '\n' || data[start] == '\r' || data[start] == '\t') {
		start++
	}
	for end > start && (data[end-1] == ' ' || data[end-1] == '\n' || data[end-1] == '\r' || data[end-1] == '\t') {
		end--
	}
	return data[start:end]
}

func (b *Board) highwaterPath() string {
	return filepath.Join(b.dir, ".highwatermark")
}

func (b *Board) taskPath(id string) string {
	return filepath.Join(b.dir, "task_"+id+".json")
}

// nextIDLocked allocates the next id and persists the highwatermark
// before any task file exists, so ids stay unique even when two
// processes share the directory.
func (b *Board) nextIDLocked() (string, error) {
	b.highwater++
	data := []byte(strconv.Itoa(b.highwater))
	tmp := b.highwaterPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("persisting highwatermark: %w", err)
	}
	if err := os.Rename(tmp, b.highwaterPath()); err != nil {
		return "", fmt.Errorf("persisting highwatermark: %w", err)
	}
	return strconv.Itoa(b.highwater), nil
}

// Create allocates an id and persists a pending task.
func (b *Board) Create(subject, description, activeForm string, metadata map[string]any) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.nextIDLocked()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if metadata == nil {
		metadata = map[string]any{}
	}
	task := &Task{
		ID:          id,
		Subject:     subject,
		Description: description,
		Status:      StatusPending,
		ActiveForm:  activeForm,
		Owner:       "",
		Blocks:      []string{},
		BlockedBy:   []string{},
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.saveLocked(task); err != nil {
		return nil, err
	}

	logger.InfoCF("taskboard", "Task created",
		map[string]any{"id": id, "subject": subject})
	return cloneTask(task), nil
}

// Get returns the task or ErrNotFound.
func (b *Board) Get(id string) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, err := b.loadLocked(id)
	if err != nil {
		return nil, err
	}
	return cloneTask(task), nil
}

// ListAll returns every task in ascending id order.
func (b *Board) ListAll() ([]*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("scanning board dir: %w", err)
	}

	tasks := make([]*Task, 0, len(entries))
	for _, entry := range entries {
		m := taskFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		task, err := b.loadLocked(m[1])
		if err != nil {
			continue
		}
		tasks = append(tasks, cloneTask(task))
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, _ := strconv.Atoi(tasks[i].ID)
		c, _ := strconv.Atoi(tasks[j].ID)
		return a < c
	})
	return tasks, nil
}

// Apply updates the task. Completing a task removes its id from every
// other task's blocked_by; deleting removes the file and returns a
// tombstone copy.
func (b *Board) Apply(id string, upd Update) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, err := b.loadLocked(id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil && !validStatus(*upd.Status) {
		return nil, fmt.Errorf("invalid status %q", *upd.Status)
	}

	if upd.Subject != nil {
		task.Subject = *upd.Subject
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.ActiveForm != nil {
		task.ActiveForm = *upd.ActiveForm
	}
	if upd.Owner != nil {
		task.Owner = *upd.Owner
	}
	for k, v := range upd.Metadata {
		if task.Metadata == nil {
			task.Metadata = map[string]any{}
		}
		task.Metadata[k] = v
	}

	for _, other := range upd.AddBlocks {
		if err := b.linkLocked(task, other, true); err != nil {
			return nil, err
		}
	}
	for _, other := range upd.AddBlockedBy {
		if err := b.linkLocked(task, other, false); err != nil {
			return nil, err
		}
	}

	if upd.Status != nil {
		task.Status = *upd.Status
		switch *upd.Status {
		case StatusInProgress:
			if task.Owner == "" {
				task.Owner = b.defaultOwner
			}
		case StatusCompleted:
			if err := b.unblockAllLocked(task.ID); err != nil {
				return nil, err
			}
		case StatusDeleted:
			tombstone := cloneTask(task)
			tombstone.Status = StatusDeleted
			tombstone.UpdatedAt = time.Now().Unix()
			if err := os.Remove(b.taskPath(id)); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("deleting task file: %w", err)
			}
			logger.InfoCF("taskboard", "Task deleted", map[string]any{"id": id})
			return tombstone, nil
		}
	}

	task.UpdatedAt = time.Now().Unix()
	if err := b.saveLocked(task); err != nil {
		return nil, err
	}
	return cloneTask(task), nil
}

// Claim atomically assigns the owner and moves the task to in_progress.
func (b *Board) Claim(id, owner string) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, err := b.loadLocked(id)
	if err != nil {
		return nil, err
	}
	task.Owner = owner
	task.Status = StatusInProgress
	task.UpdatedAt = time.Now().Unix()
	if err := b.saveLocked(task); err != nil {
		return nil, err
	}
	logger.InfoCF("taskboard", "Task claimed",
		map[string]any{"id": id, "owner": owner})
	return cloneTask(task), nil
}

// Unclaimed returns pending tasks with no owner and no blockers, in
// ascending id order.
func (b *Board) Unclaimed() ([]*Task, error) {
	all, err := b.ListAll()
	if err != nil {
		return nil, err
	}
	out := make([]*Task, 0)
	for _, t := range all {
		if t.Status == StatusPending && t.Owner == "" && len(t.BlockedBy) == 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

// linkLocked records the edge task→other (blocks=true) or other→task
// (blocks=false) on both endpoints and persists the other endpoint.
func (b *Board) linkLocked(task *Task, otherID string, blocks bool) error {
	if otherID == task.ID {
		return nil
	}
	other, err := b.loadLocked(otherID)
	if err != nil {
		return fmt.Errorf("dependency %s: %w", otherID, err)
	}
	if blocks {
		task.Blocks = appendUnique(task.Blocks, otherID)
		other.BlockedBy = appendUnique(other.BlockedBy, task.ID)
	} else {
		task.BlockedBy = appendUnique(task.BlockedBy, otherID)
		other.Blocks = appendUnique(other.Blocks, task.ID)
	}
	other.UpdatedAt = time.Now().Unix()
	return b.saveLocked(other)
}

// unblockAllLocked removes id from every stored task's blocked_by.
func (b *Board) unblockAllLocked(id string) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("scanning board dir: %w", err)
	}
	for _, entry := range entries {
		m := taskFileRe.FindStringSubmatch(entry.Name())
		if m == nil || m[1] == id {
			continue
		}
		other, err := b.loadLocked(m[1])
		if err != nil {
			continue
		}
		filtered := removeString(other.BlockedBy, id)
		if len(filtered) == len(other.BlockedBy) {
			continue
		}
		other.BlockedBy = filtered
		other.UpdatedAt = time.Now().Unix()
		if err := b.saveLocked(other); err != nil {
			return err
		}
	}
	return nil
}

func (b *Board) loadLocked(id string) (*Task, error) {
	data, err := os.ReadFile(b.taskPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return &task, nil
}

func (b *Board) saveLocked(task *Task) error {
	if task.Blocks == nil {
		task.Blocks = []string{}
	}
	if task.BlockedBy == nil {
		task.BlockedBy = []string{}
	}
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.taskPath(task.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.taskPath(task.ID))
}

func cloneTask(t *Task) *Task {
	snapshot := *t
	snapshot.Blocks = append([]string{}, t.Blocks...)
	snapshot.BlockedBy = append([]string{}, t.BlockedBy...)
	if t.Metadata != nil {
		snapshot.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			snapshot.Metadata[k] = v
		}
	}
	return &snapshot
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
