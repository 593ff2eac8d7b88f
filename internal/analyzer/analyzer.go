// Package analyzer turns free-text task descriptions into structured
// requirements for agent selection and planning.
package analyzer

import "strings"

// Priority is the urgency tier of a task.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "medium"
	}
}

// Skill is a capability tag a task requires.
type Skill string

const (
	SkillDevelopment Skill = "development"
	SkillDesign      Skill = "design"
	SkillTesting     Skill = "testing"
	SkillIntegration Skill = "integration"
	SkillAnalysis    Skill = "analysis"
)

// Requirement is the structured profile of one incoming task. Created once
// per task, read-only afterwards.
type Requirement struct {
	Complexity       float64  `json:"complexity"`
	Skills           []Skill  `json:"skills"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Priority         Priority `json:"priority"`
	Collaborative    bool     `json:"collaborative"`
}

// Classifier maps task text to a requirement. The keyword heuristic is the
// default; it can be swapped for a model-backed strategy without touching
// the planner or executor.
type Classifier interface {
	Analyze(text string) Requirement
}

// complexityTiers are checked in order; the first tier with a matching
// keyword wins. Higher tiers come first so "build an enterprise architecture"
// lands on complex rather than medium via "build".
var complexityTiers = []struct {
	score    float64
	keywords []string
}{
	{0.9, []string{"architecture", "enterprise", "microservice", "distributed", "scalable", "complex", "advanced", "migration"}},
	{0.6, []string{"implement", "build", "create", "develop", "feature", "dashboard"}},
	{0.2, []string{"simple", "basic", "quick", "minor", "typo", "small"}},
}

const defaultComplexity = 0.3

// skillKeywords maps each skill to the substrings that imply it.
var skillKeywords = map[Skill][]string{
	SkillDevelopment: {"code", "coding", "implement", "build", "develop", "api", "backend"},
	SkillDesign:      {"design", "ui", "ux", "interface", "mockup", "visual"},
	SkillTesting:     {"test", "qa", "verify", "validate", "quality"},
	SkillIntegration: {"integration", "connect", "deploy", "pipeline"},
	SkillAnalysis:    {"analyze", "analysis", "research", "investigate", "metrics"},
}

// skillOrder fixes the output ordering so identical input yields an
// identical requirement.
var skillOrder = []Skill{SkillDevelopment, SkillDesign, SkillTesting, SkillIntegration, SkillAnalysis}

// collaborativeMarkers force a collaborative recommendation regardless of
// complexity.
var collaborativeMarkers = []string{"comprehensive", "full", "end-to-end", "complex"}

var priorityTiers = []struct {
	priority Priority
	keywords []string
}{
	{PriorityUrgent, []string{"urgent", "asap", "critical", "emergency", "immediately"}},
	{PriorityHigh, []string{"important", "high priority", "soon"}},
	{PriorityLow, []string{"whenever", "eventually", "low priority", "no rush"}},
}

// KeywordClassifier is the built-in heuristic classifier. It is a pure
// function of the input text: no I/O, deterministic.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (c *KeywordClassifier) Analyze(text string) Requirement {
	lower := strings.ToLower(text)

	complexity := classifyComplexity(lower)
	req := Requirement{
		Complexity:       complexity,
		Skills:           classifySkills(lower),
		EstimatedMinutes: estimateMinutes(lower, complexity),
		Priority:         classifyPriority(lower),
		Collaborative:    classifyCollaborative(lower, complexity),
	}
	return req
}

func classifyComplexity(lower string) float64 {
	for _, tier := range complexityTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.score
			}
		}
	}
	return defaultComplexity
}

func classifySkills(lower string) []Skill {
	var skills []Skill
	for _, skill := range skillOrder {
		for _, kw := range skillKeywords[skill] {
			if strings.Contains(lower, kw) {
				skills = append(skills, skill)
				break
			}
		}
	}
	return skills
}

func classifyCollaborative(lower string, complexity float64) bool {
	if complexity > 0.7 {
		return true
	}
	for _, m := range collaborativeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// estimateMinutes maps word count to an estimate, with base and per-word
// weight chosen by complexity tier, clamped to [1,120].
func estimateMinutes(lower string, complexity float64) int {
	words := len(strings.Fields(lower))

	var minutes int
	switch {
	case complexity > 0.7:
		minutes = 60 + 2*words
	case complexity >= 0.4:
		minutes = 30 + words
	default:
		minutes = 15 + words/2
	}

	if minutes < 1 {
		minutes = 1
	}
	if minutes > 120 {
		minutes = 120
	}
	return minutes
}

func classifyPriority(lower string) Priority {
	for _, tier := range priorityTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.priority
			}
		}
	}
	return PriorityMedium
}
