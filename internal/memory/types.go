package memory

import (
	"fmt"
	"time"
)

// Type is the cognitive memory type assigned at ingestion.
type Type string

const (
	TypeSemantic   Type = "semantic"
	TypeEpisodic   Type = "episodic"
	TypeProcedural Type = "procedural"
)

// AllTypes lists the valid types in tie-break order (strongest default first).
var AllTypes = []Type{TypeSemantic, TypeProcedural, TypeEpisodic}

func (t Type) Valid() bool {
	switch t {
	case TypeSemantic, TypeEpisodic, TypeProcedural:
		return true
	}
	return false
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown memory type: %q", s)
	}
	return t, nil
}

type SemanticMetadata struct {
	Domain     string  `json:"domain" yaml:"domain"`
	Category   string  `json:"category" yaml:"category"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Verified   bool    `json:"verified" yaml:"verified"`
}

type EpisodicMetadata struct {
	Timestamp        time.Time `json:"timestamp" yaml:"timestamp"`
	Context          string    `json:"context" yaml:"context"`
	Outcome          string    `json:"outcome" yaml:"outcome"`
	EmotionalValence float64   `json:"emotional_valence" yaml:"emotional_valence"`
}

type ProceduralMetadata struct {
	SkillLevel  string   `json:"skill_level" yaml:"skill_level"`
	Complexity  string   `json:"complexity" yaml:"complexity"`
	Steps       int      `json:"steps" yaml:"steps"`
	SuccessRate *float64 `json:"success_rate,omitempty" yaml:"success_rate,omitempty"`
}

// Metadata is a tagged union: exactly one branch is set and it must match
// the memory's Type. Unknown shapes are rejected rather than stored.
type Metadata struct {
	Semantic   *SemanticMetadata   `json:"semantic,omitempty"`
	Episodic   *EpisodicMetadata   `json:"episodic,omitempty"`
	Procedural *ProceduralMetadata `json:"procedural,omitempty"`
}

// Matches reports whether exactly one branch is set and it corresponds to t.
func (m Metadata) Matches(t Type) bool {
	set := 0
	if m.Semantic != nil {
		set++
	}
	if m.Episodic != nil {
		set++
	}
	if m.Procedural != nil {
		set++
	}
	if set != 1 {
		return false
	}

	switch t {
	case TypeSemantic:
		return m.Semantic != nil
	case TypeEpisodic:
		return m.Episodic != nil
	case TypeProcedural:
		return m.Procedural != nil
	}
	return false
}

// Memory is a stored record. Type and Metadata are fixed at creation;
// the access bookkeeping fields mutate on every reinforced read.
type Memory struct {
	ID                 string    `json:"id"`
	Content            string    `json:"content"`
	Type               Type      `json:"type"`
	Confidence         float64   `json:"confidence"`
	ImportanceScore    float64   `json:"importance_score"`
	ConsolidationScore float64   `json:"consolidation_score"`
	AccessCount        int       `json:"access_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastAccessed       time.Time `json:"last_accessed"`
	Metadata           Metadata  `json:"metadata"`
}

// QueryContext carries the retrieval-time constraints for ranking.
// A zero Timeframe means no temporal preference; an empty TypeFilter
// means no type restriction.
type QueryContext struct {
	TypeFilter          []Type        `json:"type_filter,omitempty"`
	Timeframe           time.Duration `json:"timeframe,omitempty"`
	ImportanceThreshold float64       `json:"importance_threshold,omitempty"`
	Limit               int           `json:"limit"`
}

// AllowsType reports whether the filter admits t. An empty filter admits all.
func (q QueryContext) AllowsType(t Type) bool {
	if len(q.TypeFilter) == 0 {
		return true
	}
	for _, ft := range q.TypeFilter {
		if ft == t {
			return true
		}
	}
	return false
}
