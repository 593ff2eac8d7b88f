// Package executor runs a planned agent group under one of three
// collaboration strategies: parallel fan-out, sequential chaining, or a
// voting round with consensus tallying.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sumithkumar07/aetherflow/internal/completion"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

// ErrInvalidMode is returned for unrecognized collaboration mode names.
var ErrInvalidMode = errors.New("invalid collaboration mode")

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// OutcomeCompleted and OutcomePartial are the executor's terminal states.
	OutcomeCompleted = "completed"
	OutcomePartial   = "partially-failed"
)

// ExecutionResult is one agent's outcome for one run. Failures are values,
// never panics: a failing agent yields a result with StatusError.
type ExecutionResult struct {
	Role      roster.Role       `json:"role"`
	Status    string            `json:"status"`
	Response  string            `json:"response,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
	ElapsedMs int64             `json:"elapsed_ms"`
}

// Consensus is the aggregated outcome of a voting run.
type Consensus struct {
	Winner     roster.Role    `json:"winner"`
	Tally      map[string]int `json:"tally"`
	Confidence float64        `json:"confidence"`
	Agreement  float64        `json:"agreement"`
	Summary    string         `json:"summary"`
}

// Outcome is the executor's terminal report: exactly one result per agent,
// plus a consensus in voting mode.
type Outcome struct {
	Status    string                     `json:"status"`
	Results   map[string]ExecutionResult `json:"results"`
	Consensus *Consensus                 `json:"consensus,omitempty"`
}

// Options tune one execution run.
type Options struct {
	// CallTimeout bounds each agent-completion call so one stuck provider
	// cannot stall the whole batch.
	CallTimeout time.Duration
	// HaltOnError stops a sequential chain at the first failing step.
	// Default is the continue-on-error policy: later agents run with
	// whatever context accumulated so far.
	HaltOnError bool
}

type Executor struct {
	client   completion.Client
	registry *roster.Registry
	opts     Options
}

func New(client completion.Client, reg *roster.Registry, opts Options) *Executor {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Minute
	}
	return &Executor{client: client, registry: reg, opts: opts}
}

// Execute runs the agent group under the given mode. The context is the
// workflow-level cancellation token; it propagates into every in-flight
// completion call.
func (e *Executor) Execute(ctx context.Context, mode Mode, agents []roster.Role, task string, meta map[string]string) (*Outcome, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("execute: no agents")
	}

	switch mode {
	case ModeParallel:
		return e.runParallel(ctx, agents, task, meta), nil
	case ModeSequential:
		return e.runSequential(ctx, agents, task, meta), nil
	case ModeVoting:
		return e.runVoting(ctx, agents, task, meta), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidMode, mode)
}

type agentResult struct {
	role   roster.Role
	result ExecutionResult
}

// runParallel fans out one completion call per agent. Every agent reports
// exactly once: failures and timeouts become error results without touching
// sibling calls.
func (e *Executor) runParallel(ctx context.Context, agents []roster.Role, task string, meta map[string]string) *Outcome {
	ch := make(chan agentResult, len(agents))
	for _, role := range agents {
		go func(role roster.Role) {
			ch <- agentResult{role: role, result: e.callAgent(ctx, role, e.rolePrompt(role, task), meta)}
		}(role)
	}

	results := make(map[string]ExecutionResult, len(agents))
	for range agents {
		ar := <-ch
		results[ar.role.String()] = ar.result
	}

	return outcome(results)
}

// runSequential iterates agents in order, feeding each one a digest of the
// previously successful outputs. A failing step is recorded and, unless
// HaltOnError is set, the chain keeps going on the accumulated context.
func (e *Executor) runSequential(ctx context.Context, agents []roster.Role, task string, meta map[string]string) *Outcome {
	results := make(map[string]ExecutionResult, len(agents))
	var prior []agentResult

	halted := false
	for _, role := range agents {
		if halted {
			results[role.String()] = ExecutionResult{
				Role:   role,
				Status: StatusError,
				Error:  "skipped: earlier step failed",
			}
			continue
		}

		prompt := e.rolePrompt(role, task)
		if digest := contextDigest(prior); digest != "" {
			prompt += "\n\n" + digest
		}

		res := e.callAgent(ctx, role, prompt, meta)
		results[role.String()] = res

		if res.Status == StatusSuccess {
			prior = append(prior, agentResult{role: role, result: res})
		} else if e.opts.HaltOnError {
			halted = true
		}
	}

	return outcome(results)
}

// runVoting runs a parallel round first, then asks every agent to assess the
// other agents' solutions. Votes are counted as case-insensitive substring
// mentions of candidate names in the voters' responses — a deliberately
// simple heuristic that can miscount when agent names are common words.
func (e *Executor) runVoting(ctx context.Context, agents []roster.Role, task string, meta map[string]string) *Outcome {
	first := e.runParallel(ctx, agents, task, meta)

	votes := make(chan agentResult, len(agents))
	voters := 0
	for _, role := range agents {
		solution, ok := first.Results[role.String()]
		if !ok || solution.Status != StatusSuccess {
			continue
		}
		voters++
		go func(role roster.Role) {
			prompt := e.votingPrompt(role, task, agents, first.Results)
			votes <- agentResult{role: role, result: e.callAgent(ctx, role, prompt, meta)}
		}(role)
	}

	ballots := make([]agentResult, 0, voters)
	for i := 0; i < voters; i++ {
		ballots = append(ballots, <-votes)
	}

	first.Consensus = e.tally(agents, ballots)
	return first
}

// tally counts mentions of every candidate's display name in every ballot.
func (e *Executor) tally(agents []roster.Role, ballots []agentResult) *Consensus {
	c := &Consensus{Tally: make(map[string]int, len(agents))}
	for _, role := range agents {
		c.Tally[role.String()] = 0
	}

	total := 0
	for _, ballot := range ballots {
		if ballot.result.Status != StatusSuccess {
			continue
		}
		resp := strings.ToLower(ballot.result.Response)
		for _, candidate := range agents {
			n := strings.Count(resp, strings.ToLower(e.displayName(candidate)))
			c.Tally[candidate.String()] += n
			total += n
		}
	}

	// Winner: highest tally; ties keep agent list order.
	winner := agents[0]
	best := -1
	mentioned := 0
	for _, candidate := range agents {
		n := c.Tally[candidate.String()]
		if n > 0 {
			mentioned++
		}
		if n > best {
			best = n
			winner = candidate
		}
	}

	c.Winner = winner
	if total > 0 {
		c.Confidence = float64(best) / float64(total)
	}
	if len(agents) > 0 {
		c.Agreement = float64(mentioned) / float64(len(agents))
	}

	if total == 0 {
		c.Summary = "no votes cast; defaulting to first agent"
	} else {
		c.Summary = fmt.Sprintf("%s selected with %d of %d votes", e.displayName(winner), best, total)
	}
	return c
}

// callAgent wraps one completion call with the per-call timeout and panic
// recovery, so every failure mode collapses into an error result.
func (e *Executor) callAgent(ctx context.Context, role roster.Role, prompt string, meta map[string]string) (res ExecutionResult) {
	res = ExecutionResult{Role: role}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent call panicked", "role", role, "panic", r)
			res.Status = StatusError
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	result, err := e.client.Invoke(callCtx, role.String(), prompt, meta)
	res.ElapsedMs = time.Since(start).Milliseconds()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = StatusError
		res.Error = "timeout"
	case errors.Is(err, context.Canceled):
		res.Status = StatusError
		res.Error = "cancelled"
	case err != nil:
		res.Status = StatusError
		res.Error = err.Error()
	case result.Status == StatusError || (result.Status != StatusSuccess && result.Error != ""):
		res.Status = StatusError
		res.Error = result.Error
		res.Metadata = result.Metadata
	default:
		res.Status = StatusSuccess
		res.Response = result.Response
		res.Metadata = result.Metadata
		if result.ElapsedMs > 0 {
			res.ElapsedMs = result.ElapsedMs
		}
	}
	return res
}

func (e *Executor) rolePrompt(role roster.Role, task string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Task\n\n%s\n\n", task)
	fmt.Fprintf(&sb, "You are the %s. Address the task from your specialty.\n", e.displayName(role))
	return sb.String()
}

func (e *Executor) votingPrompt(voter roster.Role, task string, agents []roster.Role, results map[string]ExecutionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Task\n\n%s\n\n", task)
	sb.WriteString("## Solutions from other agents\n\n")
	for _, role := range agents {
		if role == voter {
			continue
		}
		res, ok := results[role.String()]
		if !ok || res.Status != StatusSuccess {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", e.displayName(role), truncate(res.Response, 800))
	}
	sb.WriteString("Name the agent whose solution is strongest and explain briefly.")
	return sb.String()
}

// contextDigest summarizes prior successful outputs for the next agent in a
// sequential chain.
func contextDigest(prior []agentResult) string {
	if len(prior) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Context from previous agents\n\n")
	for _, p := range prior {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", p.role, truncate(p.result.Response, 500))
	}
	return sb.String()
}

func (e *Executor) displayName(role roster.Role) string {
	if e.registry != nil {
		if cap, ok := e.registry.Get(role); ok && cap.Name != "" {
			return cap.Name
		}
	}
	return role.String()
}

func outcome(results map[string]ExecutionResult) *Outcome {
	status := OutcomeCompleted
	for _, r := range results {
		if r.Status != StatusSuccess {
			status = OutcomePartial
			break
		}
	}
	return &Outcome{Status: status, Results: results}
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
