// Package scheduler polls the store for due scheduled runs and submits them
// as workflows.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sumithkumar07/aetherflow/internal/config"
	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/natsbus"
	"github.com/sumithkumar07/aetherflow/internal/orchestrator"
	"github.com/sumithkumar07/aetherflow/internal/schedule"
	"github.com/sumithkumar07/aetherflow/internal/store"
)

// Submitter starts a workflow for a task. Satisfied by the orchestrator.
type Submitter interface {
	Submit(ctx context.Context, task string, mode executor.Mode) (*orchestrator.Submission, error)
}

type Scheduler struct {
	store        *store.Store
	submitter    Submitter
	events       *natsbus.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func New(s *store.Store, sub Submitter, events *natsbus.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:        s,
		submitter:    sub,
		events:       events,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdateConfig changes the poll interval and nudges the run loop to reset
// its ticker.
func (s *Scheduler) UpdateConfig(pollInterval time.Duration) {
	s.pollInterval = pollInterval
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			slog.Info("scheduler config reloaded", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	runs, err := s.store.GetDueRuns(time.Now())
	if err != nil {
		slog.Error("failed to get due runs", "error", err)
		return
	}

	for _, run := range runs {
		s.execute(ctx, run)
	}
}

func (s *Scheduler) execute(ctx context.Context, run store.ScheduledRun) {
	slog.Info("submitting scheduled run", "id", run.ID, "name", run.Name, "mode", run.Mode)

	lastStatus := "success"
	lastError := ""
	workflowID := ""

	mode, err := executor.ParseMode(run.Mode)
	if err == nil {
		var sub *orchestrator.Submission
		sub, err = s.submitter.Submit(ctx, run.Task, mode)
		if sub != nil {
			workflowID = sub.WorkflowID
		}
	}
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("scheduled run failed", "id", run.ID, "error", err)
	}

	nextRun := schedule.NextRun(run.Schedule, time.Now())

	if err := s.store.UpdateScheduledRunResult(run.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("failed to update scheduled run", "id", run.ID, "error", err)
	}

	s.publishRunEvent(run, lastStatus, workflowID)

	if nextRun == nil {
		slog.Info("schedule exhausted, completing run", "id", run.ID, "name", run.Name)
		if err := s.store.UpdateScheduledRunStatus(run.ID, "completed"); err != nil {
			slog.Error("failed to complete scheduled run", "id", run.ID, "error", err)
		}
	}
}

func (s *Scheduler) publishRunEvent(run store.ScheduledRun, status, workflowID string) {
	if s.events == nil {
		return
	}

	event := map[string]any{
		"type":      "scheduled_run_submitted",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"id":          run.ID,
			"name":        run.Name,
			"status":      status,
			"workflow_id": workflowID,
		},
	}
	if err := s.events.PublishJSON(natsbus.TopicEventsScheduledRun, event); err != nil {
		slog.Warn("publish scheduled run event failed", "error", err)
	}
}
