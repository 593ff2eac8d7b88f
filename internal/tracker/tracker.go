// Package tracker holds live workflow state for status polling. It owns the
// only durable shared mutable map in-process; every read and write goes
// through its lock.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sumithkumar07/aetherflow/internal/planner"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

// ErrWorkflowNotFound is returned for status queries against unknown ids.
var ErrWorkflowNotFound = errors.New("workflow not found")

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// WorkflowState is the live record for one workflow. Only the tracker
// mutates it.
type WorkflowState struct {
	Plan         *planner.Plan
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       string
	CurrentPhase string
	Participants []roster.Role
}

// Snapshot is a point-in-time status report safe to hand to callers.
type Snapshot struct {
	WorkflowID       string   `json:"workflow_id"`
	Status           string   `json:"status"`
	CurrentPhase     string   `json:"current_phase,omitempty"`
	Progress         float64  `json:"progress"`
	ElapsedMinutes   float64  `json:"elapsed_minutes"`
	RemainingMinutes int      `json:"remaining_minutes"`
	NextActions      string   `json:"next_actions"`
	Participants     []string `json:"participants"`
}

type Tracker struct {
	mu        sync.RWMutex
	workflows map[string]*WorkflowState

	retention  time.Duration
	sweepEvery time.Duration
	now        func() time.Time
}

// New builds a tracker. Terminal workflows older than retention are swept
// by Run every sweepEvery interval.
func New(retention, sweepEvery time.Duration) *Tracker {
	if retention <= 0 {
		retention = time.Hour
	}
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	return &Tracker{
		workflows:  make(map[string]*WorkflowState),
		retention:  retention,
		sweepEvery: sweepEvery,
		now:        time.Now,
	}
}

// Start registers a new active workflow for the plan.
func (t *Tracker) Start(plan *planner.Plan, participants []roster.Role) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.workflows[plan.WorkflowID] = &WorkflowState{
		Plan:         plan,
		StartedAt:    t.now(),
		Status:       StatusActive,
		Participants: participants,
	}
}

// SetPhase records the phase the workflow is currently executing and flips
// the plan's phase statuses accordingly.
func (t *Tracker) SetPhase(workflowID, phase string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.workflows[workflowID]
	if !ok {
		return fmt.Errorf("set phase %s: %w", workflowID, ErrWorkflowNotFound)
	}
	st.CurrentPhase = phase
	if pt := st.Plan.Phase(phase); pt != nil {
		pt.Status = planner.PhaseRunning
	}
	return nil
}

// CompletePhase marks one plan phase with its terminal status.
func (t *Tracker) CompletePhase(workflowID, phase string, failed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.workflows[workflowID]
	if !ok {
		return fmt.Errorf("complete phase %s: %w", workflowID, ErrWorkflowNotFound)
	}
	pt := st.Plan.Phase(phase)
	if pt == nil {
		return fmt.Errorf("workflow %s has no phase %q", workflowID, phase)
	}
	if failed {
		pt.Status = planner.PhaseFailed
	} else {
		pt.Status = planner.PhaseCompleted
	}
	return nil
}

// Finish moves the workflow to a terminal status.
func (t *Tracker) Finish(workflowID string, failed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.workflows[workflowID]
	if !ok {
		return fmt.Errorf("finish %s: %w", workflowID, ErrWorkflowNotFound)
	}
	st.FinishedAt = t.now()
	st.CurrentPhase = ""
	if failed {
		st.Status = StatusFailed
	} else {
		st.Status = StatusCompleted
	}
	return nil
}

// Status reports progress, elapsed and remaining time, and the next action
// for a workflow.
func (t *Tracker) Status(workflowID string) (*Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("status %s: %w", workflowID, ErrWorkflowNotFound)
	}

	snap := &Snapshot{
		WorkflowID:   workflowID,
		Status:       st.Status,
		CurrentPhase: st.CurrentPhase,
	}
	for _, p := range st.Participants {
		snap.Participants = append(snap.Participants, p.String())
	}

	end := t.now()
	if !st.FinishedAt.IsZero() {
		end = st.FinishedAt
	}
	snap.ElapsedMinutes = end.Sub(st.StartedAt).Minutes()

	completed := 0
	var next *planner.PhaseTask
	for i := range st.Plan.Phases {
		ph := &st.Plan.Phases[i]
		if ph.Status == planner.PhaseCompleted {
			completed++
			continue
		}
		snap.RemainingMinutes += ph.EstimatedMinutes
		if next == nil && ph.Status != planner.PhaseFailed {
			next = ph
		}
	}
	if n := len(st.Plan.Phases); n > 0 {
		snap.Progress = 100 * float64(completed) / float64(n)
	}

	switch {
	case next != nil && st.Status == StatusActive:
		snap.NextActions = fmt.Sprintf("%s: %s", next.Name, next.Description)
	case st.Status == StatusFailed:
		snap.NextActions = "workflow failed; review agent errors"
	default:
		snap.NextActions = "all phases complete"
	}
	return snap, nil
}

// Remove drops a workflow from the tracker.
func (t *Tracker) Remove(workflowID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.workflows, workflowID)
}

// Active returns the ids of workflows that have not reached a terminal
// status.
func (t *Tracker) Active() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []string
	for id, st := range t.workflows {
		if st.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// Run sweeps expired terminal workflows until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := t.now().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, st := range t.workflows {
		if st.Status == StatusActive || st.FinishedAt.IsZero() {
			continue
		}
		if st.FinishedAt.Before(cutoff) {
			slog.Debug("sweeping expired workflow", "workflow_id", id, "status", st.Status)
			delete(t.workflows, id)
		}
	}
}
