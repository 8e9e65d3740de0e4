package background

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewclaw/crewclaw/pkg/logger"
)

type Kind string

const (
	KindBash     Kind = "bash"
	KindAgent    Kind = "agent"
	KindTeammate Kind = "teammate"
)

type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusStopped   JobStatus = "stopped"
	StatusError     JobStatus = "error"
	StatusTimeout   JobStatus = "timeout"
)

var ErrJobNotFound = errors.New("background job not found")

var kindPrefixes = map[Kind]string{
	KindBash:     "b",
	KindAgent:    "a",
	KindTeammate: "t",
}

// JobFunc is the unit of work. The returned string is the job's final
// output; a non-nil error marks the job as failed.
type JobFunc func(ctx context.Context) (string, error)

// Notification is enqueued exactly once, at a job's terminal transition.
type Notification struct {
	TaskID     string
	Kind       Kind
	Status     JobStatus
	Summary    string
	OutputPath string
}

type job struct {
	taskID     string
	kind       Kind
	status     JobStatus
	output     string
	outputPath string
	done       chan struct{}
	closeOnce  sync.Once
	cancel     context.CancelFunc
}

// Output is the response shape of GetOutput.
type Output struct {
	TaskID string
	Status JobStatus
	Output string
}

// Executor runs opaque closures concurrently and bridges their
// completion back into the lead's transcript via the notification queue.
type Executor struct {
	outputDir string

	mu            sync.Mutex
	jobs          map[string]*job
	notifications []Notification
}

func NewExecutor(outputDir string) *Executor {
	return &Executor{
		outputDir: outputDir,
		jobs:      make(map[string]*job),
	}
}

// Run starts fn in its own goroutine and returns the assigned task id
// immediately.
func (e *Executor) Run(kind Kind, fn JobFunc) (string, error) {
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return "", fmt.Errorf("unknown job kind %q", kind)
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	taskID := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		taskID:     taskID,
		kind:       kind,
		status:     StatusRunning,
		outputPath: filepath.Join(e.outputDir, taskID+".txt"),
		done:       make(chan struct{}),
		cancel:     cancel,
	}

	e.mu.Lock()
	e.jobs[taskID] = j
	e.mu.Unlock()

	logger.InfoCF("background", "Job started",
		map[string]any{"task_id": taskID, "kind": string(kind)})

	go e.runJob(ctx, j, fn)
	return taskID, nil
}

func (e *Executor) runJob(ctx context.Context, j *job, fn JobFunc) {
	output, err := fn(ctx)

	if output != "" {
		if f, ferr := os.OpenFile(j.outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); ferr == nil {
			f.WriteString(output)
			f.Close()
		}
	}

	e.mu.Lock()
	j.output = output
	// A stopped or timed-out job keeps its status; the late result is
	// recorded but the terminal transition already happened.
	alreadyTerminal := j.status != StatusRunning
	if !alreadyTerminal {
		if err != nil {
			j.status = StatusError
			if output == "" {
				j.output = err.Error()
			}
		} else {
			j.status = StatusCompleted
		}
	}
	status := j.status
	e.mu.Unlock()

	j.closeOnce.Do(func() { close(j.done) })

	if !alreadyTerminal {
		e.enqueue(j, status)
	}

	logger.InfoCF("background", "Job finished",
		map[string]any{"task_id": j.taskID, "status": string(status)})
}

func (e *Executor) enqueue(j *job, status JobStatus) {
	summary := j.output
	if len(summary) > 500 {
		summary = summary[:500]
	}
	e.mu.Lock()
	e.notifications = append(e.notifications, Notification{
		TaskID:     j.taskID,
		Kind:       j.kind,
		Status:     status,
		Summary:    summary,
		OutputPath: j.outputPath,
	})
	e.mu.Unlock()
}

// GetOutput returns the job's status and output, optionally blocking on
// the completion signal up to timeout.
func (e *Executor) GetOutput(taskID string, block bool, timeout time.Duration) (*Output, error) {
	e.mu.Lock()
	j, ok := e.jobs[taskID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrJobNotFound
	}
	status := j.status
	e.mu.Unlock()

	if block && status == StatusRunning {
		select {
		case <-j.done:
		case <-time.After(timeout):
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return &Output{TaskID: taskID, Status: j.status, Output: j.output}, nil
}

// Stop flips a running job to stopped and raises its completion signal.
// The closure is cancelled via context but not forcibly killed.
func (e *Executor) Stop(taskID string) error {
	e.mu.Lock()
	j, ok := e.jobs[taskID]
	if !ok {
		e.mu.Unlock()
		return ErrJobNotFound
	}
	if j.status != StatusRunning {
		e.mu.Unlock()
		return nil
	}
	j.status = StatusStopped
	e.mu.Unlock()

	j.cancel()
	j.closeOnce.Do(func() { close(j.done) })
	e.enqueue(j, StatusStopped)

	logger.InfoCF("background", "Job stopped", map[string]any{"task_id": taskID})
	return nil
}

// DrainNotifications removes and returns all queued notifications.
// Never blocks; returns nil when the queue is empty.
func (e *Executor) DrainNotifications() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.notifications
	e.notifications = nil
	return out
}

// ReadOutput reads the job's append-only output file from a byte offset.
func (e *Executor) ReadOutput(taskID string, offset int64) (string, error) {
	e.mu.Lock()
	j, ok := e.jobs[taskID]
	e.mu.Unlock()
	if !ok {
		return "", ErrJobNotFound
	}

	data, err := os.ReadFile(j.outputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading output file: %w", err)
	}
	if offset < 0 || offset >= int64(len(data)) {
		return "", nil
	}
	return string(data[offset:]), nil
}

// OutputPath returns the job's output file path.
func (e *Executor) OutputPath(taskID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[taskID]
	if !ok {
		return "", false
	}
	return j.outputPath, true
}
