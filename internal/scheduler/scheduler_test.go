package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sumithkumar07/aetherflow/internal/config"
	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/orchestrator"
	"github.com/sumithkumar07/aetherflow/internal/store"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	tasks []string
	err   error
}

func (f *fakeSubmitter) Submit(ctx context.Context, task string, mode executor.Mode) (*orchestrator.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &orchestrator.Submission{WorkflowID: uuid.New().String(), Mode: mode.String()}, nil
}

func (f *fakeSubmitter) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.tasks...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveDueRun(t *testing.T, s *store.Store, scheduleDoc, mode string) *store.ScheduledRun {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	run := &store.ScheduledRun{
		ID:        uuid.New().String(),
		Name:      "nightly build review",
		Schedule:  scheduleDoc,
		Task:      "review the nightly build results",
		Mode:      mode,
		Status:    "active",
		NextRunAt: &past,
	}
	if err := s.SaveScheduledRun(run); err != nil {
		t.Fatal(err)
	}
	return run
}

func TestPollSubmitsDueRuns(t *testing.T) {
	st := newTestStore(t)
	sub := &fakeSubmitter{}
	sched := New(st, sub, nil, config.SchedulerConfig{PollInterval: time.Minute})

	run := saveDueRun(t, st, `{"kind":"interval","interval_ms":3600000}`, "parallel")
	sched.poll(context.Background())

	if got := sub.submitted(); len(got) != 1 || got[0] != run.Task {
		t.Fatalf("expected one submission of %q, got %v", run.Task, got)
	}

	stored, err := st.GetScheduledRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastStatus != "success" {
		t.Errorf("expected success, got %q (%q)", stored.LastStatus, stored.LastError)
	}
	if stored.NextRunAt == nil || !stored.NextRunAt.After(time.Now()) {
		t.Error("interval run must be rescheduled into the future")
	}
	if stored.Status != "active" {
		t.Errorf("recurring run must stay active, got %s", stored.Status)
	}
}

func TestOnceRunCompletes(t *testing.T) {
	st := newTestStore(t)
	sub := &fakeSubmitter{}
	sched := New(st, sub, nil, config.SchedulerConfig{})

	run := saveDueRun(t, st, `{"kind":"once","at_ms":1}`, "sequential")
	sched.poll(context.Background())

	stored, err := st.GetScheduledRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != "completed" {
		t.Errorf("exhausted once run must complete, got %s", stored.Status)
	}
	if stored.NextRunAt != nil {
		t.Error("completed run must not be rescheduled")
	}
}

func TestSubmitErrorRecorded(t *testing.T) {
	st := newTestStore(t)
	sub := &fakeSubmitter{err: errors.New("no agents available")}
	sched := New(st, sub, nil, config.SchedulerConfig{})

	run := saveDueRun(t, st, `{"kind":"interval","interval_ms":60000}`, "parallel")
	sched.poll(context.Background())

	stored, err := st.GetScheduledRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastStatus != "error" || stored.LastError == "" {
		t.Errorf("expected recorded error, got %q / %q", stored.LastStatus, stored.LastError)
	}
}

func TestInvalidModeRecorded(t *testing.T) {
	st := newTestStore(t)
	sub := &fakeSubmitter{}
	sched := New(st, sub, nil, config.SchedulerConfig{})

	run := saveDueRun(t, st, `{"kind":"interval","interval_ms":60000}`, "democracy")
	sched.poll(context.Background())

	if len(sub.submitted()) != 0 {
		t.Error("invalid mode must not reach the submitter")
	}
	stored, err := st.GetScheduledRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastStatus != "error" {
		t.Errorf("expected error status, got %s", stored.LastStatus)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	st := newTestStore(t)
	sched := New(st, &fakeSubmitter{}, nil, config.SchedulerConfig{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
