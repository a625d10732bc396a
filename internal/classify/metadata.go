package classify

import (
	"fmt"
	"regexp"
	"time"

	"github.com/engramhq/engram-mcp/internal/memory"
)

type compiledDomainRule struct {
	rule DomainRule
	re   *regexp.Regexp
}

type compiledContextRule struct {
	rule ContextRule
	re   *regexp.Regexp
}

// Generator derives type-specific metadata from content and a
// classification result. Deterministic; all tables are compiled at
// construction and never mutated.
type Generator struct {
	cfg       *Config
	extractor *Extractor

	domains      []compiledDomainRule
	contexts     []compiledContextRule
	verification *regexp.Regexp
	completion   *regexp.Regexp
	positive     *regexp.Regexp
	negative     *regexp.Regexp
	beginner     *regexp.Regexp
	advanced     *regexp.Regexp
}

func NewGenerator(cfg *Config, extractor *Extractor) (*Generator, error) {
	g := &Generator{cfg: cfg, extractor: extractor}

	for _, rule := range cfg.Domains {
		re, err := compileWords(rule.Keywords)
		if err != nil {
			return nil, fmt.Errorf("domain rule %s: %w", rule.Domain, err)
		}
		g.domains = append(g.domains, compiledDomainRule{rule: rule, re: re})
	}

	for _, rule := range cfg.Contexts {
		re, err := compileWords(rule.Keywords)
		if err != nil {
			return nil, fmt.Errorf("context rule %s: %w", rule.Bucket, err)
		}
		g.contexts = append(g.contexts, compiledContextRule{rule: rule, re: re})
	}

	var err error
	markers := []struct {
		dst   **regexp.Regexp
		words []string
	}{
		{&g.verification, cfg.VerificationMarkers},
		{&g.completion, cfg.CompletionVerbs},
		{&g.positive, cfg.PositiveMarkers},
		{&g.negative, cfg.NegativeMarkers},
		{&g.beginner, cfg.BeginnerMarkers},
		{&g.advanced, cfg.AdvancedMarkers},
	}
	for _, m := range markers {
		if len(m.words) == 0 {
			continue
		}
		if *m.dst, err = compileWords(m.words); err != nil {
			return nil, fmt.Errorf("marker table: %w", err)
		}
	}

	return g, nil
}

// Generate builds the metadata branch matching result.Type. The now
// argument is the ingestion time; callers may pass an earlier moment to
// backdate an episodic memory.
func (g *Generator) Generate(content string, result Result, now time.Time) memory.Metadata {
	folded := g.extractor.Fold(content)
	signals := g.extractor.Extract(content)

	switch result.Type {
	case memory.TypeEpisodic:
		return memory.Metadata{Episodic: g.episodic(folded, now)}
	case memory.TypeProcedural:
		return memory.Metadata{Procedural: g.procedural(folded, signals)}
	default:
		return memory.Metadata{Semantic: g.semantic(folded, result)}
	}
}

func (g *Generator) semantic(folded string, result Result) *memory.SemanticMetadata {
	meta := &memory.SemanticMetadata{
		Domain:     "general",
		Category:   "general",
		Confidence: result.Confidence,
	}

	for _, rule := range g.domains {
		if rule.re.MatchString(folded) {
			meta.Domain = rule.rule.Domain
			meta.Category = rule.rule.Category
			break
		}
	}

	meta.Verified = g.verification != nil && g.verification.MatchString(folded)

	return meta
}

func (g *Generator) episodic(folded string, now time.Time) *memory.EpisodicMetadata {
	meta := &memory.EpisodicMetadata{
		Timestamp: now,
		Context:   "general",
		Outcome:   "unresolved",
	}

	for _, rule := range g.contexts {
		if rule.re.MatchString(folded) {
			meta.Context = rule.rule.Bucket
			break
		}
	}

	if g.completion != nil && g.completion.MatchString(folded) {
		meta.Outcome = "resolved"
	}

	// Neutral valence unless explicit sentiment markers are present.
	// This is keyword presence, not a sentiment model.
	switch {
	case g.positive != nil && g.positive.MatchString(folded):
		meta.EmotionalValence = 0.5
	case g.negative != nil && g.negative.MatchString(folded):
		meta.EmotionalValence = -0.5
	}

	return meta
}

func (g *Generator) procedural(folded string, signals Signals) *memory.ProceduralMetadata {
	steps := signals.Count(memory.TypeProcedural, FamilySequentialMarkers)
	imperatives := signals.Count(memory.TypeProcedural, FamilyImperativeVerbs)

	meta := &memory.ProceduralMetadata{
		Steps:      steps,
		SkillLevel: "intermediate",
		Complexity: g.complexity(steps, imperatives),
	}

	switch {
	case g.beginner != nil && g.beginner.MatchString(folded):
		meta.SkillLevel = "beginner"
	case g.advanced != nil && g.advanced.MatchString(folded):
		meta.SkillLevel = "advanced"
	}

	// SuccessRate is caller-supplied only; it stays unset here.
	return meta
}

func (g *Generator) complexity(steps, imperatives int) string {
	switch {
	case steps <= g.cfg.LowMaxSteps && imperatives <= g.cfg.LowMaxImperatives:
		return "low"
	case steps <= g.cfg.MediumMaxSteps:
		return "medium"
	default:
		return "high"
	}
}
