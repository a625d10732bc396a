package classify

import (
	"testing"
	"time"

	"github.com/engramhq/engram-mcp/internal/memory"
)

func newTestGenerator(t *testing.T) (*Classifier, *Generator) {
	t.Helper()
	cfg := DefaultConfig()
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	g, err := NewGenerator(cfg, c.Extractor())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return c, g
}

func classifyAndGenerate(t *testing.T, content string) (Result, memory.Metadata) {
	t.Helper()
	c, g := newTestGenerator(t)
	result, err := c.Classify(content)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return result, g.Generate(content, result, time.Now())
}

func TestSemanticMetadata(t *testing.T) {
	content := "PostgreSQL supports vector similarity search, verified in the official docs"
	result, meta := classifyAndGenerate(t, content)

	if result.Type != memory.TypeSemantic {
		t.Fatalf("expected semantic, got %s", result.Type)
	}
	if !meta.Matches(memory.TypeSemantic) {
		t.Fatal("metadata union must carry exactly the semantic branch")
	}

	sm := meta.Semantic
	if sm.Domain != "databases" || sm.Category != "storage" {
		t.Errorf("expected databases/storage, got %s/%s", sm.Domain, sm.Category)
	}
	if !sm.Verified {
		t.Error("expected verified flag from 'verified' marker")
	}
	if sm.Confidence != result.Confidence {
		t.Errorf("metadata confidence %v should mirror result confidence %v",
			sm.Confidence, result.Confidence)
	}
}

func TestSemanticMetadataDefaults(t *testing.T) {
	// Semantic signal without any domain keyword.
	_, meta := classifyAndGenerate(t, "patience is a virtue")

	sm := meta.Semantic
	if sm == nil {
		t.Fatal("expected semantic metadata")
	}
	if sm.Domain != "general" || sm.Category != "general" {
		t.Errorf("expected general/general fallback, got %s/%s", sm.Domain, sm.Category)
	}
	if sm.Verified {
		t.Error("expected unverified without markers")
	}
}

func TestSemanticDomainRuleOrder(t *testing.T) {
	// Both database and api keywords present; the first rule wins.
	_, meta := classifyAndGenerate(t, "the database is a layer behind the api")

	if meta.Semantic == nil {
		t.Fatal("expected semantic metadata")
	}
	if meta.Semantic.Domain != "databases" {
		t.Errorf("expected first matching rule 'databases', got %s", meta.Semantic.Domain)
	}
}

func TestEpisodicMetadata(t *testing.T) {
	content := "Fixed the outage yesterday, frustrating night for the whole team"
	result, meta := classifyAndGenerate(t, content)

	if result.Type != memory.TypeEpisodic {
		t.Fatalf("expected episodic, got %s", result.Type)
	}
	if !meta.Matches(memory.TypeEpisodic) {
		t.Fatal("metadata union must carry exactly the episodic branch")
	}

	em := meta.Episodic
	if em.Context != "incident" {
		t.Errorf("expected incident context, got %s", em.Context)
	}
	if em.Outcome != "resolved" {
		t.Errorf("'fixed' should mark the outcome resolved, got %s", em.Outcome)
	}
	if em.EmotionalValence != -0.5 {
		t.Errorf("expected negative valence from 'frustrating', got %v", em.EmotionalValence)
	}
	if em.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestEpisodicMetadataBackdated(t *testing.T) {
	_, g := newTestGenerator(t)
	past := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	meta := g.Generate("we shipped it last week", Result{Type: memory.TypeEpisodic}, past)
	if !meta.Episodic.Timestamp.Equal(past) {
		t.Errorf("expected backdated timestamp %v, got %v", past, meta.Episodic.Timestamp)
	}
}

func TestEpisodicNeutralDefaults(t *testing.T) {
	_, meta := classifyAndGenerate(t, "i tried a new editor theme yesterday")

	em := meta.Episodic
	if em == nil {
		t.Fatal("expected episodic metadata")
	}
	if em.Context != "general" {
		t.Errorf("expected general context, got %s", em.Context)
	}
	if em.Outcome != "unresolved" {
		t.Errorf("expected unresolved outcome, got %s", em.Outcome)
	}
	if em.EmotionalValence != 0 {
		t.Errorf("expected neutral valence, got %v", em.EmotionalValence)
	}
}

func TestProceduralMetadata(t *testing.T) {
	content := "1. Run the migration 2. Update the config 3. Restart the service"
	result, meta := classifyAndGenerate(t, content)

	if result.Type != memory.TypeProcedural {
		t.Fatalf("expected procedural, got %s", result.Type)
	}
	if !meta.Matches(memory.TypeProcedural) {
		t.Fatal("metadata union must carry exactly the procedural branch")
	}

	pm := meta.Procedural
	if pm.Steps != 3 {
		t.Errorf("expected 3 steps, got %d", pm.Steps)
	}
	// Three imperative verbs push past the low ladder rung.
	if pm.Complexity != "medium" {
		t.Errorf("expected medium complexity, got %s", pm.Complexity)
	}
	if pm.SkillLevel != "intermediate" {
		t.Errorf("expected intermediate default, got %s", pm.SkillLevel)
	}
	if pm.SuccessRate != nil {
		t.Error("success rate must stay unset at generation time")
	}
}

func TestProceduralComplexityLadder(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "low",
			content: "how to reboot: 1. hold the button 2. wait",
			want:    "low",
		},
		{
			name:    "medium",
			content: "1. run a 2. run b 3. run c 4. run d 5. run e",
			want:    "medium",
		},
		{
			name:    "high",
			content: "1. x 2. x 3. x 4. x 5. x 6. x 7. x 8. x procedure",
			want:    "high",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, meta := classifyAndGenerate(t, tc.content)
			if meta.Procedural == nil {
				t.Fatal("expected procedural metadata")
			}
			if meta.Procedural.Complexity != tc.want {
				t.Errorf("expected %s complexity, got %s (steps=%d)",
					tc.want, meta.Procedural.Complexity, meta.Procedural.Steps)
			}
		})
	}
}

func TestProceduralSkillLevelMarkers(t *testing.T) {
	_, meta := classifyAndGenerate(t, "advanced guide: run the profiler, then check the flame graph")
	if meta.Procedural == nil {
		t.Fatal("expected procedural metadata")
	}
	if meta.Procedural.SkillLevel != "advanced" {
		t.Errorf("expected advanced skill level, got %s", meta.Procedural.SkillLevel)
	}
}
