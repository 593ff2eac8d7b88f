package synthesis

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

var agents = []roster.Role{roster.RoleDeveloper, roster.RoleDesigner, roster.RoleTester}

func outcomeWith(results map[string]executor.ExecutionResult) *executor.Outcome {
	status := executor.OutcomeCompleted
	for _, r := range results {
		if r.Status != executor.StatusSuccess {
			status = executor.OutcomePartial
			break
		}
	}
	return &executor.Outcome{Status: status, Results: results}
}

func success(role roster.Role, response string) executor.ExecutionResult {
	return executor.ExecutionResult{Role: role, Status: executor.StatusSuccess, Response: response}
}

func failure(role roster.Role) executor.ExecutionResult {
	return executor.ExecutionResult{Role: role, Status: executor.StatusError, Error: "provider unavailable"}
}

func TestPartialFailureAnnotated(t *testing.T) {
	s := New()

	out := outcomeWith(map[string]executor.ExecutionResult{
		"developer": success(roster.RoleDeveloper, "implemented the endpoint"),
		"designer":  failure(roster.RoleDesigner),
		"tester":    success(roster.RoleTester, "all checks green"),
	})

	syn := s.Synthesize(executor.ModeParallel, agents, out)
	if len(syn.Successful) != 2 || len(syn.Failed) != 1 {
		t.Fatalf("expected 2 successful / 1 failed, got %d / %d", len(syn.Successful), len(syn.Failed))
	}
	if syn.Failed[0] != "designer" {
		t.Errorf("expected designer in failed list, got %v", syn.Failed)
	}
	if !strings.Contains(syn.Summary, "designer") {
		t.Errorf("summary must name the failed agent: %q", syn.Summary)
	}
	if !strings.Contains(syn.Summary, "2 of 3") {
		t.Errorf("summary must carry the success count: %q", syn.Summary)
	}
}

func TestTotalFailureNeutralQuality(t *testing.T) {
	s := New()

	out := outcomeWith(map[string]executor.ExecutionResult{
		"developer": failure(roster.RoleDeveloper),
		"designer":  failure(roster.RoleDesigner),
		"tester":    failure(roster.RoleTester),
	})

	syn := s.Synthesize(executor.ModeParallel, agents, out)
	if len(syn.Successful) != 0 {
		t.Errorf("expected no successful agents, got %v", syn.Successful)
	}
	if q := syn.Quality; q.SuccessRate != 0 || q.Coherence != 0 || q.Diversity != 0 || q.Overall != 0 {
		t.Errorf("expected zero quality on total failure, got %+v", q)
	}
}

func TestInsightExcerpts(t *testing.T) {
	s := New()

	long := strings.Repeat("x", 400)
	out := outcomeWith(map[string]executor.ExecutionResult{
		"developer": success(roster.RoleDeveloper, "first line here\nsecond line dropped"),
		"designer":  success(roster.RoleDesigner, long),
	})

	syn := s.Synthesize(executor.ModeParallel, []roster.Role{roster.RoleDeveloper, roster.RoleDesigner}, out)
	if got := syn.Insights["developer"]; got != "first line here" {
		t.Errorf("excerpt should stop at the first line, got %q", got)
	}
	if got := syn.Insights["designer"]; len(got) > insightLen+3 {
		t.Errorf("excerpt not truncated: %d chars", len(got))
	}
}

func TestExcerptKeepsRuneBoundaries(t *testing.T) {
	s := New()

	out := outcomeWith(map[string]executor.ExecutionResult{
		// "a" shifts the two-byte runes so the truncation point lands inside one.
		"developer": success(roster.RoleDeveloper, "a"+strings.Repeat("ü", insightLen)),
	})

	syn := s.Synthesize(executor.ModeParallel, []roster.Role{roster.RoleDeveloper}, out)
	got := syn.Insights["developer"]
	if !utf8.ValidString(got) {
		t.Errorf("excerpt produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long excerpt should be truncated, got %q", got)
	}
}

func TestComplementaryStrengths(t *testing.T) {
	s := New()

	out := outcomeWith(map[string]executor.ExecutionResult{
		"developer": success(roster.RoleDeveloper, "code"),
		"designer":  success(roster.RoleDesigner, "mockups"),
	})

	syn := s.Synthesize(executor.ModeParallel, []roster.Role{roster.RoleDeveloper, roster.RoleDesigner}, out)
	if len(syn.Strengths) != 1 || syn.Strengths[0] != "technical implementation + UX design" {
		t.Errorf("expected developer+designer strength, got %v", syn.Strengths)
	}
}

func TestStrengthPairOrderIrrelevant(t *testing.T) {
	s1, ok := lookupStrength(roster.RoleDeveloper, roster.RoleTester)
	if !ok {
		t.Fatal("missing developer+tester strength")
	}
	s2, _ := lookupStrength(roster.RoleTester, roster.RoleDeveloper)
	if s1 != s2 {
		t.Errorf("pair lookup must be symmetric: %q vs %q", s1, s2)
	}
}

func TestVotingSummaryIncludesConsensus(t *testing.T) {
	s := New()

	out := outcomeWith(map[string]executor.ExecutionResult{
		"developer": success(roster.RoleDeveloper, "solution"),
		"designer":  success(roster.RoleDesigner, "solution"),
		"tester":    success(roster.RoleTester, "solution"),
	})
	out.Consensus = &executor.Consensus{
		Winner:     roster.RoleDeveloper,
		Tally:      map[string]int{"developer": 2},
		Confidence: 1,
		Agreement:  1.0 / 3.0,
		Summary:    "Developer selected with 2 of 2 votes",
	}

	syn := s.Synthesize(executor.ModeVoting, agents, out)
	if syn.Consensus == nil {
		t.Fatal("consensus must pass through to the synthesis")
	}
	if !strings.Contains(syn.Summary, "Developer selected") {
		t.Errorf("voting summary must include the consensus line: %q", syn.Summary)
	}
}

func TestDiversityDistinctPrefixes(t *testing.T) {
	q := scoreQuality(3, []string{
		strings.Repeat("a", 120),
		strings.Repeat("b", 120),
		strings.Repeat("c", 120),
	})
	if q.Diversity != 1.0 {
		t.Errorf("distinct prefixes must score 1.0, got %v", q.Diversity)
	}
}

func TestDiversityConvergesOnIdenticalPrefixes(t *testing.T) {
	// Identical first 100 chars, different tails.
	shared := strings.Repeat("z", 100)
	q := scoreQuality(3, []string{shared + "one", shared + "two", shared + "three"})
	if want := 1.0 / 3.0; q.Diversity != want {
		t.Errorf("identical prefixes must score 1/n, got %v", q.Diversity)
	}
}

func TestQualityComputation(t *testing.T) {
	// Two successes out of four agents, avg length 250.
	q := scoreQuality(4, []string{strings.Repeat("a", 200), strings.Repeat("b", 300)})

	if q.SuccessRate != 0.5 {
		t.Errorf("success rate: got %v", q.SuccessRate)
	}
	if q.Coherence != 0.5 {
		t.Errorf("coherence: avg 250 of 500 target should be 0.5, got %v", q.Coherence)
	}
	if q.Diversity != 1.0 {
		t.Errorf("diversity: got %v", q.Diversity)
	}
	if want := (0.5 + 0.5 + 1.0) / 3; q.Overall != want {
		t.Errorf("overall: got %v want %v", q.Overall, want)
	}
}

func TestCoherenceClamped(t *testing.T) {
	q := scoreQuality(1, []string{strings.Repeat("a", 5000)})
	if q.Coherence != 1.0 {
		t.Errorf("coherence must clamp at 1.0, got %v", q.Coherence)
	}
}
