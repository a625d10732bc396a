package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/engramhq/engram-mcp/internal/memory"
)

// Family is one named group of lexical signals contributing a fixed
// weight toward a memory type. The weight counts once per text no
// matter how often the family matches.
type Family struct {
	Name    string   `yaml:"name"`
	Weight  float64  `yaml:"weight"`
	Words   []string `yaml:"words,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
}

// DomainRule maps keywords to a semantic domain/category. Rules are
// checked in order; the first matching keyword wins.
type DomainRule struct {
	Keywords []string `yaml:"keywords"`
	Domain   string   `yaml:"domain"`
	Category string   `yaml:"category"`
}

// ContextRule maps keywords to an episodic context bucket.
type ContextRule struct {
	Keywords []string `yaml:"keywords"`
	Bucket   string   `yaml:"bucket"`
}

// Config holds every tunable table of the classification engine. It is
// built once at startup and shared read-only afterwards.
type Config struct {
	Families map[memory.Type][]Family `yaml:"families"`

	// ActivationThreshold is the minimum winning score below which
	// content is treated as carrying no strong signal at all.
	ActivationThreshold float64 `yaml:"activation_threshold"`
	// AmbiguityMargin flags results whose top two scores are closer
	// than this.
	AmbiguityMargin float64 `yaml:"ambiguity_margin"`

	Domains  []DomainRule  `yaml:"domains"`
	Contexts []ContextRule `yaml:"contexts"`

	VerificationMarkers []string `yaml:"verification_markers"`
	CompletionVerbs     []string `yaml:"completion_verbs"`
	PositiveMarkers     []string `yaml:"positive_markers"`
	NegativeMarkers     []string `yaml:"negative_markers"`
	BeginnerMarkers     []string `yaml:"beginner_markers"`
	AdvancedMarkers     []string `yaml:"advanced_markers"`

	// Complexity ladder for procedural metadata.
	LowMaxSteps       int `yaml:"low_max_steps"`
	LowMaxImperatives int `yaml:"low_max_imperatives"`
	MediumMaxSteps    int `yaml:"medium_max_steps"`
}

const (
	FamilyTemporalMarkers   = "temporal_markers"
	FamilyFirstPerson       = "first_person"
	FamilyPastActions       = "past_actions"
	FamilyProcessVocab      = "process_vocab"
	FamilyImperativeVerbs   = "imperative_verbs"
	FamilySequentialMarkers = "sequential_markers"
	FamilyFactualVerbs      = "factual_verbs"
	FamilyTechnicalNouns    = "technical_nouns"
	FamilyDefinitionMarkers = "definition_markers"
)

// DefaultConfig returns the built-in signal tables. Weights are design
// parameters, not user input: process vocabulary and temporal markers
// are stronger indicators than a lone technical noun.
func DefaultConfig() *Config {
	return &Config{
		Families: map[memory.Type][]Family{
			memory.TypeEpisodic: {
				{
					Name:   FamilyTemporalMarkers,
					Weight: 0.40,
					Words: []string{
						"yesterday", "today", "last week", "last month", "last night",
						"this morning", "during", "earlier", "recently", "ago",
					},
				},
				{
					Name:   FamilyFirstPerson,
					Weight: 0.30,
					Words: []string{
						"i fixed", "i found", "i tried", "i noticed", "i learned",
						"we discovered", "we found", "we tried", "i was", "we were",
					},
				},
				{
					Name:   FamilyPastActions,
					Weight: 0.30,
					Words: []string{
						"resolved", "deployed", "finished", "fixed", "solved",
						"completed", "debugged", "shipped", "merged", "restarted",
					},
				},
			},
			memory.TypeProcedural: {
				{
					Name:   FamilyProcessVocab,
					Weight: 0.40,
					Words: []string{
						"step", "steps", "procedure", "process", "how to",
						"workflow", "instructions", "guide", "recipe", "checklist",
					},
				},
				{
					Name:   FamilyImperativeVerbs,
					Weight: 0.30,
					Words: []string{
						"run", "execute", "configure", "install", "deploy",
						"check", "update", "restart", "create", "remove",
					},
				},
				{
					Name:    FamilySequentialMarkers,
					Weight:  0.30,
					Pattern: `\b\d+[.)]`,
					Words: []string{
						"first", "second", "third", "then", "next",
						"finally", "lastly", "afterwards",
					},
				},
			},
			memory.TypeSemantic: {
				{
					Name:   FamilyFactualVerbs,
					Weight: 0.40,
					Words: []string{
						"enables", "provides", "supports", "is a", "is an",
						"means", "allows", "requires", "consists", "represents",
					},
				},
				{
					Name:   FamilyTechnicalNouns,
					Weight: 0.25,
					Words: []string{
						"database", "algorithm", "framework", "library", "server",
						"protocol", "api", "compiler", "vector", "extension",
						"cache", "schema",
					},
				},
				{
					Name:   FamilyDefinitionMarkers,
					Weight: 0.35,
					Words: []string{
						"definition", "concept", "specification", "terminology",
						"refers to", "defined as", "known as", "principle",
					},
				},
			},
		},

		ActivationThreshold: 0.05,
		AmbiguityMargin:     0.10,

		Domains: []DomainRule{
			{
				Keywords: []string{"database", "sql", "postgres", "postgresql", "sqlite", "mysql", "redis", "schema", "query"},
				Domain:   "databases",
				Category: "storage",
			},
			{
				Keywords: []string{"kubernetes", "docker", "container", "terraform", "deployment", "pipeline", "ci"},
				Domain:   "infrastructure",
				Category: "operations",
			},
			{
				Keywords: []string{"algorithm", "complexity", "recursion", "sorting", "graph"},
				Domain:   "computer_science",
				Category: "theory",
			},
			{
				Keywords: []string{"api", "http", "rest", "grpc", "endpoint", "protocol"},
				Domain:   "networking",
				Category: "integration",
			},
			{
				Keywords: []string{"golang", "python", "rust", "javascript", "typescript", "java"},
				Domain:   "languages",
				Category: "development",
			},
		},

		Contexts: []ContextRule{
			{
				Keywords: []string{"outage", "incident", "alert", "downtime", "on-call", "oncall"},
				Bucket:   "incident",
			},
			{
				Keywords: []string{"debug", "debugging", "debugged", "bug", "error", "crash", "stack trace"},
				Bucket:   "debugging_session",
			},
			{
				Keywords: []string{"meeting", "standup", "sync", "retro", "review"},
				Bucket:   "meeting",
			},
			{
				Keywords: []string{"deploy", "deployed", "deployment", "release", "rollout", "shipped"},
				Bucket:   "deployment",
			},
		},

		VerificationMarkers: []string{"verified", "confirmed", "official docs", "official documentation"},
		CompletionVerbs: []string{
			"resolved", "fixed", "solved", "completed", "finished", "deployed", "shipped",
		},
		PositiveMarkers: []string{"great", "success", "successfully", "glad", "happy", "smooth"},
		NegativeMarkers: []string{"frustrating", "failed", "painful", "angry", "annoying", "broken"},
		BeginnerMarkers: []string{"beginner", "basic", "simple", "introductory"},
		AdvancedMarkers: []string{"advanced", "expert", "complex", "intricate"},

		LowMaxSteps:       3,
		LowMaxImperatives: 2,
		MediumMaxSteps:    7,
	}
}

// LoadConfig returns the defaults overlaid with an optional YAML file.
// An empty path means defaults only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scoring config: %w", err)
	}

	return cfg, nil
}

// Validate rejects tables a classifier cannot be built from.
func (c *Config) Validate() error {
	for _, t := range memory.AllTypes {
		families := c.Families[t]
		if len(families) == 0 {
			return fmt.Errorf("no signal families for type %s", t)
		}

		total := 0.0
		for _, f := range families {
			if f.Weight <= 0 {
				return fmt.Errorf("family %s/%s has non-positive weight", t, f.Name)
			}
			if len(f.Words) == 0 && f.Pattern == "" {
				return fmt.Errorf("family %s/%s has no words or pattern", t, f.Name)
			}
			total += f.Weight
		}
		if total <= 0 {
			return fmt.Errorf("type %s has zero total weight", t)
		}
	}

	if c.ActivationThreshold < 0 || c.ActivationThreshold > 1 {
		return fmt.Errorf("activation threshold %v outside [0,1]", c.ActivationThreshold)
	}
	if c.AmbiguityMargin < 0 || c.AmbiguityMargin > 1 {
		return fmt.Errorf("ambiguity margin %v outside [0,1]", c.AmbiguityMargin)
	}

	return nil
}

// MaxWeight is the maximum attainable raw score for a type: the sum of
// its family weights. Used as the normalization divisor.
func (c *Config) MaxWeight(t memory.Type) float64 {
	total := 0.0
	for _, f := range c.Families[t] {
		total += f.Weight
	}
	return total
}
