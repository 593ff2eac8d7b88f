package roster

import (
	"fmt"

	"github.com/sumithkumar07/aetherflow/internal/config"
	"github.com/sumithkumar07/aetherflow/internal/store"
)

// Capability is the static profile of one specialist agent. Profiles are
// loaded once at startup and never mutated.
type Capability struct {
	Role            Role
	Name            string
	Confidence      float64
	Specializations []string
	Collaborators   []Role
}

// Registry holds the fixed roster of agent capabilities in declaration order.
// Declaration order matters: the selector's stable sort falls back to it when
// scores tie.
type Registry struct {
	store  *store.Store
	agents []Capability
	byRole map[Role]int
}

// New builds a registry from config roster entries, preserving their order.
func New(s *store.Store, entries []config.AgentConfig) (*Registry, error) {
	if len(entries) == 0 {
		entries = defaultRoster()
	}

	r := &Registry{
		store:  s,
		byRole: make(map[Role]int, len(entries)),
	}

	for _, e := range entries {
		role, err := ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("roster entry: %w", err)
		}
		if _, dup := r.byRole[role]; dup {
			return nil, fmt.Errorf("duplicate roster entry for role %s", role)
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return nil, fmt.Errorf("roster entry %s: confidence %.2f outside [0,1]", role, e.Confidence)
		}

		cap := Capability{
			Role:            role,
			Name:            e.Name,
			Confidence:      e.Confidence,
			Specializations: append([]string{}, e.Specializations...),
		}
		if cap.Name == "" {
			cap.Name = role.String()
		}
		for _, c := range e.Collaborators {
			collab, err := ParseRole(c)
			if err != nil {
				return nil, fmt.Errorf("roster entry %s: %w", role, err)
			}
			cap.Collaborators = append(cap.Collaborators, collab)
		}

		r.byRole[role] = len(r.agents)
		r.agents = append(r.agents, cap)
	}

	return r, nil
}

// Sync persists the roster into the store's agents table so the web surface
// and completion providers can discover it.
func (r *Registry) Sync() error {
	if r.store == nil {
		return nil
	}

	ids := make([]string, 0, len(r.agents))
	for _, cap := range r.agents {
		ids = append(ids, cap.Role.String())

		a := &store.Agent{
			ID:              cap.Role.String(),
			Name:            cap.Name,
			Confidence:      cap.Confidence,
			Specializations: cap.Specializations,
		}
		for _, c := range cap.Collaborators {
			a.Collaborators = append(a.Collaborators, c.String())
		}
		if err := r.store.SaveAgent(a); err != nil {
			return fmt.Errorf("save agent %s: %w", cap.Role, err)
		}
	}

	if err := r.store.DeleteAgentsNotIn(ids); err != nil {
		return fmt.Errorf("delete stale agents: %w", err)
	}
	return nil
}

// All returns the roster in declaration order.
func (r *Registry) All() []Capability {
	return r.agents
}

// Get looks up the capability for a role.
func (r *Registry) Get(role Role) (Capability, bool) {
	idx, ok := r.byRole[role]
	if !ok {
		return Capability{}, false
	}
	return r.agents[idx], true
}

func (r *Registry) Len() int {
	return len(r.agents)
}

// defaultRoster is the built-in capability table used when the config file
// declares no roster.
func defaultRoster() []config.AgentConfig {
	return []config.AgentConfig{
		{
			Role:            "developer",
			Name:            "Developer",
			Confidence:      0.92,
			Specializations: []string{"coding", "development", "apis", "debugging"},
			Collaborators:   []string{"tester", "integrator"},
		},
		{
			Role:            "designer",
			Name:            "Designer",
			Confidence:      0.88,
			Specializations: []string{"design", "ui", "ux", "prototyping"},
			Collaborators:   []string{"developer", "analyst"},
		},
		{
			Role:            "tester",
			Name:            "Tester",
			Confidence:      0.85,
			Specializations: []string{"testing", "qa", "validation"},
			Collaborators:   []string{"developer"},
		},
		{
			Role:            "integrator",
			Name:            "Integrator",
			Confidence:      0.87,
			Specializations: []string{"integration", "deployment", "pipelines"},
			Collaborators:   []string{"developer", "tester"},
		},
		{
			Role:            "analyst",
			Name:            "Analyst",
			Confidence:      0.84,
			Specializations: []string{"analysis", "research", "metrics"},
			Collaborators:   []string{"designer", "developer"},
		},
	}
}
