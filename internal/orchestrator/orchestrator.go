// Package orchestrator drives the full workflow pipeline: analyze the task,
// select agents, build a plan, execute it under a collaboration mode, and
// synthesize the results, keeping the tracker and store current throughout.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sumithkumar07/aetherflow/internal/analyzer"
	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/natsbus"
	"github.com/sumithkumar07/aetherflow/internal/planner"
	"github.com/sumithkumar07/aetherflow/internal/roster"
	"github.com/sumithkumar07/aetherflow/internal/selector"
	"github.com/sumithkumar07/aetherflow/internal/store"
	"github.com/sumithkumar07/aetherflow/internal/synthesis"
	"github.com/sumithkumar07/aetherflow/internal/tracker"
)

// Event is published to NATS at workflow lifecycle transitions.
type Event struct {
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflow_id"`
	Role       string    `json:"role,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

const (
	EventWorkflowStarted   = "workflow_started"
	EventAgentCompleted    = "agent_completed"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowFailed    = "workflow_failed"
)

// Submission is the synchronous part of a workflow run: everything known
// before the agents start working.
type Submission struct {
	WorkflowID     string                   `json:"workflow_id"`
	Requirement    analyzer.Requirement     `json:"requirement"`
	Recommendation *selector.Recommendation `json:"recommendation"`
	Plan           *planner.Plan            `json:"plan"`
	Mode           string                   `json:"mode"`
}

// Orchestrator owns the pipeline state for all in-flight workflows. There is
// no package-level state: everything lives here, guarded by the mutex.
type Orchestrator struct {
	classifier analyzer.Classifier
	selector   *selector.Selector
	executor   *executor.Executor
	synth      *synthesis.Synthesizer
	tracker    *tracker.Tracker
	store      *store.Store
	events     *natsbus.Client

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New wires the pipeline. The events client may be nil, in which case
// lifecycle events are only logged.
func New(classifier analyzer.Classifier, sel *selector.Selector, exec *executor.Executor, trk *tracker.Tracker, st *store.Store, events *natsbus.Client) *Orchestrator {
	if classifier == nil {
		classifier = analyzer.NewKeywordClassifier()
	}
	return &Orchestrator{
		classifier: classifier,
		selector:   sel,
		executor:   exec,
		synth:      synthesis.New(),
		tracker:    trk,
		store:      st,
		events:     events,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Analyze turns raw task text into a structured requirement.
func (o *Orchestrator) Analyze(task string) analyzer.Requirement {
	return o.classifier.Analyze(task)
}

// SelectAgents ranks the roster against a requirement.
func (o *Orchestrator) SelectAgents(req analyzer.Requirement) (*selector.Recommendation, error) {
	return o.selector.Select(req)
}

// PlanWorkflow expands a task and its agents into a phased plan.
func (o *Orchestrator) PlanWorkflow(task string, req analyzer.Requirement, agents []roster.Role) *planner.Plan {
	return planner.Build(task, req, agents)
}

// Submit runs the synchronous pipeline stages, persists the new workflow and
// starts execution in the background. The returned submission carries the
// workflow id for status polling.
func (o *Orchestrator) Submit(ctx context.Context, task string, mode executor.Mode) (*Submission, error) {
	req := o.classifier.Analyze(task)

	rec, err := o.selector.Select(req)
	if err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}
	plan := planner.Build(task, req, rec.Agents())
	// Execution follows the plan, not the raw selection: the plan's always
	// present development phase adds the developer even when selection picked
	// someone else.
	agents := plan.Participants()

	if err := o.persistNew(task, mode, req, plan); err != nil {
		return nil, err
	}
	o.tracker.Start(plan, agents)
	o.publish(natsbus.TopicEventsWorkflow(plan.WorkflowID), Event{
		Type:       EventWorkflowStarted,
		WorkflowID: plan.WorkflowID,
		Status:     tracker.StatusActive,
		Detail:     fmt.Sprintf("%s with %d agents", mode, len(agents)),
		At:         time.Now(),
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.cancels[plan.WorkflowID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.forget(plan.WorkflowID)
		o.run(runCtx, plan, mode, agents)
	}()

	return &Submission{
		WorkflowID:     plan.WorkflowID,
		Requirement:    req,
		Recommendation: rec,
		Plan:           plan,
		Mode:           mode.String(),
	}, nil
}

// Cancel aborts a running workflow. In-flight agent calls observe the
// cancellation through their contexts.
func (o *Orchestrator) Cancel(workflowID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[workflowID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Status reports live progress for a workflow.
func (o *Orchestrator) Status(workflowID string) (*tracker.Snapshot, error) {
	return o.tracker.Status(workflowID)
}

// ActiveWorkflows lists the ids of workflows still running.
func (o *Orchestrator) ActiveWorkflows() []string {
	return o.tracker.Active()
}

// Wait blocks until all in-flight workflows finish. Used on shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, plan *planner.Plan, mode executor.Mode, agents []roster.Role) {
	log := slog.With("workflow_id", plan.WorkflowID, "mode", mode)
	log.Info("workflow execution started", "agents", len(agents))

	if len(plan.Phases) > 0 {
		if err := o.tracker.SetPhase(plan.WorkflowID, plan.Phases[0].Name); err != nil {
			log.Warn("set phase failed", "error", err)
		}
	}

	out, err := o.executor.Execute(ctx, mode, agents, plan.Task, nil)
	if err != nil {
		log.Error("workflow execution failed", "error", err)
		o.finish(plan, mode, nil, nil, true)
		return
	}

	for _, ph := range plan.Phases {
		res, ok := out.Results[ph.Role.String()]
		failed := !ok || res.Status != executor.StatusSuccess
		if err := o.tracker.CompletePhase(plan.WorkflowID, ph.Name, failed); err != nil {
			log.Warn("complete phase failed", "phase", ph.Name, "error", err)
		}
	}

	for _, role := range agents {
		res := out.Results[role.String()]
		o.publish(natsbus.TopicEventsAgent(role.String()), Event{
			Type:       EventAgentCompleted,
			WorkflowID: plan.WorkflowID,
			Role:       role.String(),
			Status:     res.Status,
			Detail:     res.Error,
			At:         time.Now(),
		})
	}

	syn := o.synth.Synthesize(mode, agents, out)
	failed := len(syn.Successful) == 0
	o.finish(plan, mode, out, syn, failed)
	log.Info("workflow execution finished", "failed", failed, "quality", syn.Quality.Overall)
}

// finish records the terminal state in the tracker, the store and the event
// stream. A run counts as failed only when no agent succeeded; partial
// failures complete with a best-effort synthesis.
func (o *Orchestrator) finish(plan *planner.Plan, mode executor.Mode, out *executor.Outcome, syn *synthesis.Synthesis, failed bool) {
	if err := o.tracker.Finish(plan.WorkflowID, failed); err != nil {
		slog.Warn("tracker finish failed", "workflow_id", plan.WorkflowID, "error", err)
	}

	status := tracker.StatusCompleted
	eventType := EventWorkflowCompleted
	if failed {
		status = tracker.StatusFailed
		eventType = EventWorkflowFailed
	}

	var results, synDoc json.RawMessage
	if out != nil {
		results, _ = json.Marshal(out.Results)
	}
	if syn != nil {
		synDoc, _ = json.Marshal(syn)
	}
	if o.store != nil {
		if err := o.store.UpdateWorkflowRun(plan.WorkflowID, status, "", results, synDoc); err != nil {
			slog.Error("persist workflow result failed", "workflow_id", plan.WorkflowID, "error", err)
		}
	}

	detail := ""
	if syn != nil {
		detail = syn.Summary
	}
	o.publish(natsbus.TopicEventsWorkflow(plan.WorkflowID), Event{
		Type:       eventType,
		WorkflowID: plan.WorkflowID,
		Status:     status,
		Detail:     detail,
		At:         time.Now(),
	})
}

func (o *Orchestrator) persistNew(task string, mode executor.Mode, req analyzer.Requirement, plan *planner.Plan) error {
	if o.store == nil {
		return nil
	}

	reqDoc, _ := json.Marshal(req)
	planDoc, _ := json.Marshal(plan)
	agentsDoc, _ := json.Marshal(plan.Participants())

	run := &store.WorkflowRun{
		ID:          plan.WorkflowID,
		Task:        task,
		Mode:        mode.String(),
		Status:      tracker.StatusActive,
		Requirement: reqDoc,
		Plan:        planDoc,
		Agents:      agentsDoc,
		StartedAt:   time.Now(),
	}
	if err := o.store.SaveWorkflowRun(run); err != nil {
		return fmt.Errorf("persist workflow: %w", err)
	}
	return nil
}

func (o *Orchestrator) publish(topic string, ev Event) {
	if o.events == nil {
		slog.Debug("event", "topic", topic, "type", ev.Type, "workflow_id", ev.WorkflowID)
		return
	}
	if err := o.events.PublishJSON(topic, ev); err != nil {
		slog.Warn("publish event failed", "topic", topic, "error", err)
	}
}

func (o *Orchestrator) forget(workflowID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.cancels[workflowID]; ok {
		cancel()
		delete(o.cancels, workflowID)
	}
}
