package background

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunAndBlockingGetOutput(t *testing.T) {
	e := NewExecutor(t.TempDir())

	id, err := e.Run(KindBash, func(ctx context.Context) (string, error) {
		return "hi", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "b") || len(id) != 7 {
		t.Errorf("task id = %q, want b + 6 hex chars", id)
	}

	out, err := e.GetOutput(id, true, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
	if out.Output != "hi" {
		t.Errorf("output = %q, want hi", out.Output)
	}
}

func TestKindPrefixes(t *testing.T) {
	e := NewExecutor(t.TempDir())
	cases := map[Kind]string{KindBash: "b", KindAgent: "a", KindTeammate: "t"}
	for kind, prefix := range cases {
		id, err := e.Run(kind, func(ctx context.Context) (string, error) { return "", nil })
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(id, prefix) {
			t.Errorf("kind %s: id = %q, want prefix %q", kind, id, prefix)
		}
	}
}

func TestErrorBecomesTerminalStatus(t *testing.T) {
	e := NewExecutor(t.TempDir())
	id, _ := e.Run(KindBash, func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})

	out, err := e.GetOutput(id, true, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusError {
		t.Errorf("status = %q, want error", out.Status)
	}
	if out.Output != "boom" {
		t.Errorf("output = %q, want boom", out.Output)
	}
}

func TestStopFlipsStatusImmediately(t *testing.T) {
	e := NewExecutor(t.TempDir())
	release := make(chan struct{})
	id, _ := e.Run(KindBash, func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	})

	if err := e.Stop(id); err != nil {
		t.Fatal(err)
	}
	out, err := e.GetOutput(id, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusStopped {
		t.Errorf("status = %q, want stopped", out.Status)
	}
	close(release)

	// The late finish must not produce a second notification.
	time.Sleep(50 * time.Millisecond)
	notes := e.DrainNotifications()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Status != StatusStopped {
		t.Errorf("notification status = %q, want stopped", notes[0].Status)
	}
}

func TestNotificationsDrainOnce(t *testing.T) {
	e := NewExecutor(t.TempDir())
	for i := 0; i < 2; i++ {
		id, _ := e.Run(KindBash, func(ctx context.Context) (string, error) {
			return "done", nil
		})
		if _, err := e.GetOutput(id, true, 5*time.Second); err != nil {
			t.Fatal(err)
		}
	}

	notes := e.DrainNotifications()
	if len(notes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notes))
	}
	for _, n := range notes {
		if !strings.HasPrefix(n.TaskID, "b") {
			t.Errorf("task id = %q, want b prefix", n.TaskID)
		}
		if n.Summary != "done" {
			t.Errorf("summary = %q", n.Summary)
		}
	}

	if again := e.DrainNotifications(); len(again) != 0 {
		t.Errorf("second drain = %d notifications, want 0", len(again))
	}
}

func TestSummaryTruncatedTo500(t *testing.T) {
	e := NewExecutor(t.TempDir())
	long := strings.Repeat("x", 1200)
	id, _ := e.Run(KindBash, func(ctx context.Context) (string, error) {
		return long, nil
	})
	if _, err := e.GetOutput(id, true, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	notes := e.DrainNotifications()
	if len(notes) != 1 {
		t.Fatal("expected one notification")
	}
	if len(notes[0].Summary) != 500 {
		t.Errorf("summary length = %d, want 500", len(notes[0].Summary))
	}
}

func TestReadOutputFromOffset(t *testing.T) {
	e := NewExecutor(t.TempDir())
	id, _ := e.Run(KindBash, func(ctx context.Context) (string, error) {
		return "hello world", nil
	})
	if _, err := e.GetOutput(id, true, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	full, err := e.ReadOutput(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if full != "hello world" {
		t.Errorf("full read = %q", full)
	}

	tail, err := e.ReadOutput(id, 6)
	if err != nil {
		t.Fatal(err)
	}
	if tail != "world" {
		t.Errorf("offset read = %q, want world", tail)
	}

	past, err := e.ReadOutput(id, 100)
	if err != nil {
		t.Fatal(err)
	}
	if past != "" {
		t.Errorf("past-end read = %q, want empty", past)
	}
}

func TestGetOutputUnknownJob(t *testing.T) {
	e := NewExecutor(t.TempDir())
	if _, err := e.GetOutput("b000000", false, 0); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}
