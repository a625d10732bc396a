package classify

import (
	"errors"
	"math"
	"testing"

	"github.com/engramhq/engram-mcp/internal/memory"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestClassifyProceduralSteps(t *testing.T) {
	c := newTestClassifier(t)

	result, err := c.Classify("1. Run the migration 2. Update the config 3. Restart the service")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeProcedural {
		t.Errorf("expected procedural, got %s", result.Type)
	}
	// Imperative verbs (0.30) + sequential markers (0.30) out of 1.0.
	if math.Abs(result.Confidence-0.6) > 1e-9 {
		t.Errorf("expected confidence 0.6, got %v", result.Confidence)
	}
}

func TestClassifyEpisodicIncident(t *testing.T) {
	c := newTestClassifier(t)

	result, err := c.Classify("Fixed the outage yesterday after the database alert fired")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeEpisodic {
		t.Errorf("expected episodic, got %s", result.Type)
	}
	// Temporal markers (0.40) + past actions (0.30).
	if math.Abs(result.Confidence-0.7) > 1e-9 {
		t.Errorf("expected confidence 0.7, got %v", result.Confidence)
	}
	if result.Ambiguous {
		t.Error("expected unambiguous result")
	}
}

func TestClassifySemanticFact(t *testing.T) {
	c := newTestClassifier(t)

	result, err := c.Classify("PostgreSQL supports vector similarity search")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeSemantic {
		t.Errorf("expected semantic, got %s", result.Type)
	}
	// Factual verbs (0.40) + technical nouns (0.25).
	if math.Abs(result.Confidence-0.65) > 1e-9 {
		t.Errorf("expected confidence 0.65, got %v", result.Confidence)
	}
}

func TestClassifyEmptyContent(t *testing.T) {
	c := newTestClassifier(t)

	result, err := c.Classify("")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeSemantic {
		t.Errorf("expected semantic fallback, got %s", result.Type)
	}
	if result.Confidence != 0 {
		t.Errorf("expected zero confidence, got %v", result.Confidence)
	}
	if result.Ambiguous {
		t.Error("below-threshold fallback must not be flagged ambiguous")
	}
}

func TestClassifyNoSignals(t *testing.T) {
	c := newTestClassifier(t)

	result, err := c.Classify("lorem ipsum dolor sit amet")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeSemantic || result.Confidence != 0 {
		t.Errorf("expected semantic/0 fallback, got %s/%v", result.Type, result.Confidence)
	}
}

func TestClassifyInvalidUTF8(t *testing.T) {
	c := newTestClassifier(t)

	_, err := c.Classify(string([]byte{0xff, 0xfe, 0xfd}))
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestClassifyScoresInRange(t *testing.T) {
	c := newTestClassifier(t)

	contents := []string{
		"yesterday i fixed the database after we discovered the bug during the deploy",
		"step 1. run 2. execute 3. configure 4. install first then finally",
		"the algorithm is a concept that provides and enables and supports everything",
	}

	for _, content := range contents {
		result, err := c.Classify(content)
		if err != nil {
			t.Fatalf("Classify(%q): %v", content, err)
		}
		for mt, s := range result.Scores {
			if s < 0 || s > 1 {
				t.Errorf("score for %s outside [0,1]: %v (content %q)", mt, s, content)
			}
		}
		if result.Confidence < 0 || result.Confidence > 1 {
			t.Errorf("confidence outside [0,1]: %v", result.Confidence)
		}
	}
}

func TestClassifyTieBreakSemanticWins(t *testing.T) {
	c := newTestClassifier(t)

	// "is a" (semantic 0.40) ties with "step" (procedural 0.40).
	result, err := c.Classify("it is a step")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeSemantic {
		t.Errorf("tie should break to semantic, got %s", result.Type)
	}
	if !result.Ambiguous {
		t.Error("a dead tie should be flagged ambiguous")
	}
}

func TestClassifyTieBreakProceduralOverEpisodic(t *testing.T) {
	c := newTestClassifier(t)

	// "steps" (procedural 0.40) ties with "yesterday" (temporal 0.40).
	result, err := c.Classify("the steps from yesterday")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Type != memory.TypeProcedural {
		t.Errorf("tie should break procedural over episodic, got %s", result.Type)
	}
	if !result.Ambiguous {
		t.Error("expected ambiguous flag on a tie")
	}
}

func TestClassifyAmbiguityMargin(t *testing.T) {
	c := newTestClassifier(t)

	// Episodic 0.7 vs semantic 0.25: clear margin.
	clear, err := c.Classify("Fixed the outage yesterday after the database alert fired")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if clear.Ambiguous {
		t.Error("clear margin must not be ambiguous")
	}
}

func TestClassifierRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Families[memory.TypeEpisodic] = nil

	if _, err := NewClassifier(cfg); err == nil {
		t.Error("expected error for config without episodic families")
	}
}
