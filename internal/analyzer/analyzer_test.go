package analyzer

import (
	"reflect"
	"testing"
)

func TestAnalyzeDeterministic(t *testing.T) {
	c := NewKeywordClassifier()
	text := "build a comprehensive dashboard with testing"

	first := c.Analyze(text)
	for i := 0; i < 10; i++ {
		if got := c.Analyze(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: non-deterministic result: %+v vs %+v", i, got, first)
		}
	}
}

func TestComplexityTiers(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"design an enterprise architecture", 0.9},
		{"build a small dashboard", 0.6}, // medium "build" beats simple "small"
		{"fix a simple typo", 0.2},
		{"implement a new feature", 0.6},
		{"refactor this function", 0.3},
		{"", 0.3},
	}

	c := NewKeywordClassifier()
	for _, tt := range tests {
		got := c.Analyze(tt.text)
		if got.Complexity != tt.want {
			t.Errorf("Analyze(%q).Complexity = %v, want %v", tt.text, got.Complexity, tt.want)
		}
	}
}

func TestHigherTierWinsOverMedium(t *testing.T) {
	c := NewKeywordClassifier()
	// "build" is a medium marker, "architecture" and "enterprise" are complex
	// markers; the complex tier is checked first.
	got := c.Analyze("build a complete enterprise architecture with full testing and integration")
	if got.Complexity != 0.9 {
		t.Errorf("expected complexity 0.9, got %v", got.Complexity)
	}
	if !got.Collaborative {
		t.Error("expected collaborative (contains 'full' and complexity > 0.7)")
	}
}

func TestSkills(t *testing.T) {
	c := NewKeywordClassifier()

	got := c.Analyze("build an api with testing and integration")
	want := []Skill{SkillDevelopment, SkillTesting, SkillIntegration}
	if !reflect.DeepEqual(got.Skills, want) {
		t.Errorf("skills = %v, want %v", got.Skills, want)
	}

	got = c.Analyze("refactor this function")
	if len(got.Skills) != 0 {
		t.Errorf("expected no skills, got %v", got.Skills)
	}
}

func TestRefactorScenario(t *testing.T) {
	c := NewKeywordClassifier()
	got := c.Analyze("refactor this function")

	if got.Complexity != 0.3 {
		t.Errorf("expected default complexity 0.3, got %v", got.Complexity)
	}
	if len(got.Skills) != 0 {
		t.Errorf("expected no skills, got %v", got.Skills)
	}
	if got.Priority != PriorityMedium {
		t.Errorf("expected medium priority, got %v", got.Priority)
	}
	if got.Collaborative {
		t.Error("expected non-collaborative")
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		text string
		want Priority
	}{
		{"urgent: fix the login bug asap", PriorityUrgent},
		{"important improvement for checkout", PriorityHigh},
		{"clean this up whenever you can", PriorityLow},
		{"update the docs", PriorityMedium},
	}

	c := NewKeywordClassifier()
	for _, tt := range tests {
		if got := c.Analyze(tt.text); got.Priority != tt.want {
			t.Errorf("Analyze(%q).Priority = %v, want %v", tt.text, got.Priority, tt.want)
		}
	}
}

func TestEstimatedMinutesBounds(t *testing.T) {
	c := NewKeywordClassifier()

	short := c.Analyze("typo")
	if short.EstimatedMinutes < 1 || short.EstimatedMinutes > 120 {
		t.Errorf("minutes out of range: %d", short.EstimatedMinutes)
	}

	// A very long complex task must clamp to 120.
	long := "enterprise architecture "
	for i := 0; i < 8; i++ {
		long += long
	}
	got := c.Analyze(long)
	if got.EstimatedMinutes != 120 {
		t.Errorf("expected clamp to 120, got %d", got.EstimatedMinutes)
	}
}

func TestCollaborativeMarkers(t *testing.T) {
	c := NewKeywordClassifier()

	if !c.Analyze("end-to-end checkout flow").Collaborative {
		t.Error("expected 'end-to-end' to mark collaborative")
	}
	if c.Analyze("update the readme").Collaborative {
		t.Error("expected plain task to stay non-collaborative")
	}
}
