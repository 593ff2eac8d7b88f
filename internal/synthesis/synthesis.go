// Package synthesis merges per-agent execution results into a single
// human-readable report with quality scores.
package synthesis

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

const (
	// coherenceTarget is the response length treated as fully coherent.
	coherenceTarget = 500
	// prefixLen is the window compared when scoring response diversity.
	prefixLen = 100
	// insightLen bounds the per-agent excerpt carried into the report.
	insightLen = 160
)

// Quality scores one run's combined output. All components are in [0,1];
// a run where every agent failed scores zero across the board.
type Quality struct {
	SuccessRate float64 `json:"success_rate"`
	Coherence   float64 `json:"coherence"`
	Diversity   float64 `json:"diversity"`
	Overall     float64 `json:"overall"`
}

// Synthesis is the merged report for one workflow run.
type Synthesis struct {
	Mode       string              `json:"mode"`
	Summary    string              `json:"summary"`
	Successful []string            `json:"successful_agents"`
	Failed     []string            `json:"failed_agents"`
	Insights   map[string]string   `json:"insights,omitempty"`
	Strengths  []string            `json:"strengths,omitempty"`
	Consensus  *executor.Consensus `json:"consensus,omitempty"`
	Quality    Quality             `json:"quality"`
}

// lookupStrength returns the combined strength an unordered role pair brings
// when both succeed on the same task.
func lookupStrength(a, b roster.Role) (string, bool) {
	if b < a {
		a, b = b, a
	}
	switch [2]roster.Role{a, b} {
	case [2]roster.Role{roster.RoleDeveloper, roster.RoleDesigner}:
		return "technical implementation + UX design", true
	case [2]roster.Role{roster.RoleDeveloper, roster.RoleTester}:
		return "implementation + quality assurance", true
	case [2]roster.Role{roster.RoleDeveloper, roster.RoleIntegrator}:
		return "implementation + deployment readiness", true
	case [2]roster.Role{roster.RoleDeveloper, roster.RoleAnalyst}:
		return "implementation + data-driven insight", true
	case [2]roster.Role{roster.RoleDesigner, roster.RoleAnalyst}:
		return "design + data-driven insight", true
	case [2]roster.Role{roster.RoleTester, roster.RoleIntegrator}:
		return "quality assurance + delivery pipeline", true
	}
	return "", false
}

// Synthesizer merges outcomes. It is stateless and safe for concurrent use.
type Synthesizer struct{}

func New() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize merges an execution outcome into a report. The agents slice
// fixes the iteration order so identical outcomes synthesize identically.
func (s *Synthesizer) Synthesize(mode executor.Mode, agents []roster.Role, out *executor.Outcome) *Synthesis {
	syn := &Synthesis{
		Mode:     mode.String(),
		Insights: make(map[string]string),
	}

	var succeeded []roster.Role
	var responses []string
	for _, role := range agents {
		res, ok := out.Results[role.String()]
		if !ok {
			continue
		}
		if res.Status == executor.StatusSuccess {
			succeeded = append(succeeded, role)
			syn.Successful = append(syn.Successful, role.String())
			responses = append(responses, res.Response)
			syn.Insights[role.String()] = excerpt(res.Response)
		} else {
			syn.Failed = append(syn.Failed, role.String())
		}
	}

	syn.Strengths = strengths(succeeded)
	syn.Quality = scoreQuality(len(agents), responses)
	syn.Consensus = out.Consensus
	syn.Summary = s.summary(mode, agents, syn)
	return syn
}

func (s *Synthesizer) summary(mode executor.Mode, agents []roster.Role, syn *Synthesis) string {
	var sb strings.Builder

	switch mode {
	case executor.ModeParallel:
		fmt.Fprintf(&sb, "%d of %d agents completed independently", len(syn.Successful), len(agents))
	case executor.ModeSequential:
		fmt.Fprintf(&sb, "%d of %d agents completed in sequence", len(syn.Successful), len(agents))
	case executor.ModeVoting:
		fmt.Fprintf(&sb, "%d of %d agents completed the voting round", len(syn.Successful), len(agents))
		if syn.Consensus != nil {
			sb.WriteString("; ")
			sb.WriteString(syn.Consensus.Summary)
		}
	}

	if len(syn.Failed) > 0 {
		fmt.Fprintf(&sb, "; failed: %s", strings.Join(syn.Failed, ", "))
	}
	if len(syn.Strengths) > 0 {
		fmt.Fprintf(&sb, "; combined strengths: %s", strings.Join(syn.Strengths, "; "))
	}
	return sb.String()
}

// strengths returns the complementary-strength descriptions for every
// successful pair present in the lookup table, in a stable order.
func strengths(succeeded []roster.Role) []string {
	var out []string
	for i := 0; i < len(succeeded); i++ {
		for j := i + 1; j < len(succeeded); j++ {
			if s, ok := lookupStrength(succeeded[i], succeeded[j]); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// scoreQuality computes the shared quality metrics over the successful
// responses. Diversity compares 100-character prefixes: all-distinct scores
// 1.0 and converging prefixes push the score toward 1/n.
func scoreQuality(total int, responses []string) Quality {
	if total == 0 || len(responses) == 0 {
		return Quality{}
	}

	var q Quality
	q.SuccessRate = float64(len(responses)) / float64(total)

	chars := 0
	prefixes := make(map[string]struct{}, len(responses))
	for _, r := range responses {
		chars += len(r)
		p := r
		if len(p) > prefixLen {
			p = p[:prefixLen]
		}
		prefixes[p] = struct{}{}
	}

	avg := float64(chars) / float64(len(responses))
	q.Coherence = avg / coherenceTarget
	if q.Coherence > 1 {
		q.Coherence = 1
	}
	q.Diversity = float64(len(prefixes)) / float64(len(responses))
	q.Overall = (q.SuccessRate + q.Coherence + q.Diversity) / 3
	return q
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > insightLen {
		cut := insightLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
