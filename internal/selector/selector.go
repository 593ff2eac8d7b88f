// Package selector scores the agent roster against a task requirement and
// recommends a single agent or a collaborating group.
package selector

import (
	"errors"
	"sort"
	"strings"

	"github.com/sumithkumar07/aetherflow/internal/analyzer"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

// ErrNoAgentsAvailable is returned when selection runs against an empty
// registry.
var ErrNoAgentsAvailable = errors.New("no agents available in registry")

const (
	weightConfidence     = 0.30
	weightSpecialization = 0.50

	bonusHighComplexity = 0.20 // complexity > 0.8, developer or integrator
	bonusLowComplexity  = 0.15 // complexity < 0.4, designer or analyst
	bonusUrgent         = 0.10 // urgent priority, developer
)

// Breakdown itemizes a score so callers can see what drove the ranking.
type Breakdown struct {
	Health              float64 `json:"health"`
	SpecializationMatch float64 `json:"specialization_match"`
	ComplexityFit       float64 `json:"complexity_fit"`
	PriorityFit         float64 `json:"priority_fit"`
}

// Score is one agent's fit for a requirement.
type Score struct {
	Role           roster.Role `json:"role"`
	Total          float64     `json:"total"`
	Breakdown      Breakdown   `json:"breakdown"`
	DominantFactor string      `json:"dominant_factor"`
}

// Recommendation is the selection outcome: either a single agent with
// alternatives, or a primary plus collaborators.
type Recommendation struct {
	Collaboration bool          `json:"collaboration"`
	Primary       roster.Role   `json:"primary"`
	Collaborators []roster.Role `json:"collaborators,omitempty"`
	Alternatives  []roster.Role `json:"alternatives,omitempty"`
	Confidence    float64       `json:"confidence"`
	Scores        []Score       `json:"scores"`
}

// Agents returns the full participant list: primary first, collaborators in
// declared order.
func (r *Recommendation) Agents() []roster.Role {
	agents := []roster.Role{r.Primary}
	return append(agents, r.Collaborators...)
}

type Selector struct {
	registry *roster.Registry
}

func New(reg *roster.Registry) *Selector {
	return &Selector{registry: reg}
}

// Select ranks all agents against the requirement and applies the decision
// rule: collaborative tasks (or complexity above 0.7) get a primary plus up
// to two of its preferred collaborators; everything else gets a single agent
// with up to two alternatives.
func (s *Selector) Select(req analyzer.Requirement) (*Recommendation, error) {
	caps := s.registry.All()
	if len(caps) == 0 {
		return nil, ErrNoAgentsAvailable
	}

	scores := make([]Score, len(caps))
	for i, cap := range caps {
		scores[i] = scoreAgent(cap, req)
	}

	// Stable sort: equal totals keep registry declaration order, so identical
	// inputs always produce identical rankings.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total > scores[j].Total
	})

	rec := &Recommendation{
		Primary:    scores[0].Role,
		Confidence: clamp01(scores[0].Total),
		Scores:     scores,
	}

	if req.Collaborative || req.Complexity > 0.7 {
		rec.Collaboration = true
		rec.Collaborators = s.pickCollaborators(scores[0].Role)
		return rec, nil
	}

	for _, sc := range scores[1:] {
		rec.Alternatives = append(rec.Alternatives, sc.Role)
		if len(rec.Alternatives) == 2 {
			break
		}
	}
	return rec, nil
}

// pickCollaborators takes up to two roles from the primary's declared
// preferred-collaborator list, in declared order, excluding the primary.
func (s *Selector) pickCollaborators(primary roster.Role) []roster.Role {
	cap, ok := s.registry.Get(primary)
	if !ok {
		return nil
	}

	var collabs []roster.Role
	for _, c := range cap.Collaborators {
		if c == primary {
			continue
		}
		if _, present := s.registry.Get(c); !present {
			continue
		}
		collabs = append(collabs, c)
		if len(collabs) == 2 {
			break
		}
	}
	return collabs
}

func scoreAgent(cap roster.Capability, req analyzer.Requirement) Score {
	b := Breakdown{
		Health:              weightConfidence * cap.Confidence,
		SpecializationMatch: weightSpecialization * specializationRatio(cap.Specializations, req.Skills),
	}

	switch {
	case req.Complexity > 0.8 && (cap.Role == roster.RoleDeveloper || cap.Role == roster.RoleIntegrator):
		b.ComplexityFit = bonusHighComplexity
	case req.Complexity < 0.4 && (cap.Role == roster.RoleDesigner || cap.Role == roster.RoleAnalyst):
		b.ComplexityFit = bonusLowComplexity
	}

	if req.Priority == analyzer.PriorityUrgent && cap.Role == roster.RoleDeveloper {
		b.PriorityFit = bonusUrgent
	}

	return Score{
		Role:           cap.Role,
		Total:          b.Health + b.SpecializationMatch + b.ComplexityFit + b.PriorityFit,
		Breakdown:      b,
		DominantFactor: dominantFactor(b),
	}
}

// specializationRatio counts specializations that contain any required skill
// token as a substring, over the agent's total specializations.
func specializationRatio(specializations []string, skills []analyzer.Skill) float64 {
	if len(specializations) == 0 || len(skills) == 0 {
		return 0
	}

	matched := 0
	for _, spec := range specializations {
		lower := strings.ToLower(spec)
		for _, skill := range skills {
			if strings.Contains(lower, string(skill)) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(specializations))
}

func dominantFactor(b Breakdown) string {
	factor := "health"
	best := b.Health
	if b.SpecializationMatch > best {
		factor, best = "specialization_match", b.SpecializationMatch
	}
	if b.ComplexityFit > best {
		factor, best = "complexity_fit", b.ComplexityFit
	}
	if b.PriorityFit > best {
		factor = "priority_fit"
	}
	return factor
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
