// Package planner expands a task and its selected agents into an ordered
// workflow plan with phases, execution groups and collaboration points.
package planner

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sumithkumar07/aetherflow/internal/analyzer"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

// PhaseStatus tracks one phase through execution. It is the only mutable
// field of a plan after creation.
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseRunning   PhaseStatus = "running"
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
)

// PhaseTask is one named stage of the plan assigned to a single role.
type PhaseTask struct {
	Name             string      `json:"name"`
	Role             roster.Role `json:"role"`
	Description      string      `json:"description"`
	EstimatedMinutes int         `json:"estimated_minutes"`
	DependsOn        []string    `json:"depends_on,omitempty"`
	Deliverables     []string    `json:"deliverables"`
	Status           PhaseStatus `json:"status"`
}

// ExecutionPhase groups phase tasks that may run together. Within a
// parallel-eligible group the roles run concurrently; groups themselves are
// strictly ordered.
type ExecutionPhase struct {
	Index    int           `json:"index"`
	Roles    []roster.Role `json:"roles"`
	Parallel bool          `json:"parallel"`
}

// CollaborationPoint is a structural checkpoint between two or more roles.
type CollaborationPoint struct {
	Type             string        `json:"type"`
	Participants     []roster.Role `json:"participants"`
	Trigger          string        `json:"trigger"`
	EstimatedMinutes int           `json:"estimated_minutes"`
}

// SuccessMetrics are the plan's target outcomes.
type SuccessMetrics struct {
	CompletionTarget           float64 `json:"completion_target"`
	QualityTarget              float64 `json:"quality_target"`
	TimeEfficiencyMinutes      int     `json:"time_efficiency_minutes"`
	CollaborationEffectiveness float64 `json:"collaboration_effectiveness"`
	ArchitectureTarget         float64 `json:"architecture_target,omitempty"`
	ScalabilityTarget          float64 `json:"scalability_target,omitempty"`
}

// Plan is the full workflow plan. Immutable after creation except for
// per-phase status.
type Plan struct {
	WorkflowID          string                     `json:"workflow_id"`
	Task                string                     `json:"task"`
	Phases              []PhaseTask                `json:"phases"`
	Responsibilities    map[string][]string        `json:"responsibilities"`
	ExecutionPhases     []ExecutionPhase           `json:"execution_phases"`
	CollaborationPoints []CollaborationPoint       `json:"collaboration_points,omitempty"`
	Metrics             SuccessMetrics             `json:"metrics"`
}

// Phase returns the phase task with the given name, or nil.
func (p *Plan) Phase(name string) *PhaseTask {
	for i := range p.Phases {
		if p.Phases[i].Name == name {
			return &p.Phases[i]
		}
	}
	return nil
}

// Participants returns the distinct roles assigned to plan phases, in phase
// order.
func (p *Plan) Participants() []roster.Role {
	seen := make(map[roster.Role]bool)
	var roles []roster.Role
	for _, ph := range p.Phases {
		if !seen[ph.Role] {
			seen[ph.Role] = true
			roles = append(roles, ph.Role)
		}
	}
	return roles
}

// phaseSpec is the fixed pipeline definition. TimeShare fractions are each
// computed independently against the total estimate; they intentionally do
// not sum to 1.
type phaseSpec struct {
	name         string
	role         roster.Role
	timeShare    float64
	always       bool
	deliverables []string
}

var pipeline = []phaseSpec{
	{"analysis", roster.RoleAnalyst, 0.20, false, []string{"requirements summary", "risk notes"}},
	{"design", roster.RoleDesigner, 0.30, false, []string{"interface sketches", "interaction flows"}},
	{"development", roster.RoleDeveloper, 0.40, true, []string{"working implementation", "change summary"}},
	{"integration", roster.RoleIntegrator, 0.20, false, []string{"integrated build", "deployment notes"}},
	{"testing", roster.RoleTester, 0.30, false, []string{"test report", "defect list"}},
}

var roleResponsibilities = map[roster.Role][]string{
	roster.RoleAnalyst:    {"clarify requirements", "surface risks and unknowns"},
	roster.RoleDesigner:   {"shape the user-facing solution", "hand off specs to development"},
	roster.RoleDeveloper:  {"implement the core solution", "keep the build releasable"},
	roster.RoleIntegrator: {"wire components together", "own the deployment path"},
	roster.RoleTester:     {"verify behavior against requirements", "report defects"},
}

// Build expands a task, its requirement and the selected roles into a plan.
// The role list is the selection outcome: a single agent or primary plus
// collaborators. A development phase is always present.
func Build(task string, req analyzer.Requirement, agents []roster.Role) *Plan {
	present := make(map[roster.Role]bool, len(agents))
	for _, a := range agents {
		present[a] = true
	}
	present[roster.RoleDeveloper] = true

	plan := &Plan{
		WorkflowID:       uuid.New().String(),
		Task:             task,
		Responsibilities: make(map[string][]string),
	}

	var included []phaseSpec
	for _, spec := range pipeline {
		if !spec.always && !present[spec.role] {
			continue
		}
		included = append(included, spec)

		minutes := int(float64(req.EstimatedMinutes) * spec.timeShare)
		if minutes < 1 {
			minutes = 1
		}
		plan.Phases = append(plan.Phases, PhaseTask{
			Name:             spec.name,
			Role:             spec.role,
			Description:      fmt.Sprintf("%s phase for: %s", spec.name, task),
			EstimatedMinutes: minutes,
			DependsOn:        dependencies(spec.name, included),
			Deliverables:     spec.deliverables,
			Status:           PhasePending,
		})
		plan.Responsibilities[spec.role.String()] = roleResponsibilities[spec.role]
	}

	plan.ExecutionPhases = buildExecutionPhases(present, req.Complexity)
	plan.CollaborationPoints = buildCollaborationPoints(present)
	plan.Metrics = buildMetrics(req)

	return plan
}

// dependencies wires each phase to its closest included predecessor; testing
// additionally depends on integration when present.
func dependencies(name string, included []phaseSpec) []string {
	var deps []string
	switch name {
	case "analysis":
		// entry phase
	case "design", "development", "integration":
		if prev := lastBefore(name, included); prev != "" {
			deps = append(deps, prev)
		}
	case "testing":
		for _, spec := range included {
			if spec.name == "development" || spec.name == "integration" {
				deps = append(deps, spec.name)
			}
		}
	}
	return deps
}

func lastBefore(name string, included []phaseSpec) string {
	prev := ""
	for _, spec := range included {
		if spec.name == name {
			return prev
		}
		prev = spec.name
	}
	return prev
}

// buildExecutionPhases orders the included phases into sequential groups.
// Development admits the integrator in parallel on complex tasks; otherwise
// integration runs as its own sequential step.
func buildExecutionPhases(present map[roster.Role]bool, complexity float64) []ExecutionPhase {
	var phases []ExecutionPhase
	add := func(roles []roster.Role, parallel bool) {
		phases = append(phases, ExecutionPhase{Index: len(phases) + 1, Roles: roles, Parallel: parallel})
	}

	if present[roster.RoleAnalyst] {
		add([]roster.Role{roster.RoleAnalyst}, false)
	}
	if present[roster.RoleDesigner] {
		add([]roster.Role{roster.RoleDesigner}, false)
	}

	if present[roster.RoleIntegrator] && complexity > 0.6 {
		add([]roster.Role{roster.RoleDeveloper, roster.RoleIntegrator}, true)
	} else {
		add([]roster.Role{roster.RoleDeveloper}, false)
		if present[roster.RoleIntegrator] {
			add([]roster.Role{roster.RoleIntegrator}, false)
		}
	}

	if present[roster.RoleTester] {
		add([]roster.Role{roster.RoleTester}, false)
	}

	return phases
}

func buildCollaborationPoints(present map[roster.Role]bool) []CollaborationPoint {
	var points []CollaborationPoint

	if present[roster.RoleDesigner] {
		points = append(points, CollaborationPoint{
			Type:             "handoff",
			Participants:     []roster.Role{roster.RoleDesigner, roster.RoleDeveloper},
			Trigger:          "design phase completed",
			EstimatedMinutes: 15,
		})
	}
	if present[roster.RoleIntegrator] {
		points = append(points, CollaborationPoint{
			Type:             "collaboration",
			Participants:     []roster.Role{roster.RoleDeveloper, roster.RoleIntegrator},
			Trigger:          "development underway",
			EstimatedMinutes: 20,
		})
	}
	if present[roster.RoleTester] {
		points = append(points, CollaborationPoint{
			Type:             "handoff",
			Participants:     []roster.Role{roster.RoleDeveloper, roster.RoleTester},
			Trigger:          "development phase completed",
			EstimatedMinutes: 25,
		})
	}

	count := 0
	var all []roster.Role
	for _, spec := range pipeline {
		if present[spec.role] {
			count++
			all = append(all, spec.role)
		}
	}
	if count >= 3 {
		points = append(points, CollaborationPoint{
			Type:             "review",
			Participants:     all,
			Trigger:          "all phases completed",
			EstimatedMinutes: 30,
		})
	}

	return points
}

func buildMetrics(req analyzer.Requirement) SuccessMetrics {
	m := SuccessMetrics{
		CompletionTarget:           100,
		QualityTarget:              85,
		TimeEfficiencyMinutes:      req.EstimatedMinutes,
		CollaborationEffectiveness: 80,
	}
	if req.Complexity > 0.7 {
		m.ArchitectureTarget = 90
		m.ScalabilityTarget = 85
	}
	if req.Priority == analyzer.PriorityUrgent {
		// Urgent work gets a tightened time budget.
		m.TimeEfficiencyMinutes = req.EstimatedMinutes * 8 / 10
		if m.TimeEfficiencyMinutes < 1 {
			m.TimeEfficiencyMinutes = 1
		}
	}
	return m
}
