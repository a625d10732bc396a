// Package rank orders retrieval candidates by blending vector similarity
// with type, recency and importance signals.
package rank

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/engramhq/engram-mcp/internal/logger"
	"github.com/engramhq/engram-mcp/internal/memory"
)

var log = logger.ForComponent("rank")

const weightSumEpsilon = 1e-9

// Weights blend the four ranking components. They must each lie in
// [0,1] and sum to exactly 1; violations are a startup fault, never a
// request-time one.
type Weights struct {
	Similarity    float64 `yaml:"similarity"`
	TypeRelevance float64 `yaml:"type_relevance"`
	Temporal      float64 `yaml:"temporal"`
	Importance    float64 `yaml:"importance"`
}

func DefaultWeights() Weights {
	return Weights{
		Similarity:    0.40,
		TypeRelevance: 0.25,
		Temporal:      0.20,
		Importance:    0.15,
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"similarity":     w.Similarity,
		"type_relevance": w.TypeRelevance,
		"temporal":       w.Temporal,
		"importance":     w.Importance,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("ranking weight %s outside [0,1]: %v", name, v)
		}
	}

	sum := w.Similarity + w.TypeRelevance + w.Temporal + w.Importance
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("ranking weights sum to %v, want 1.0", sum)
	}

	return nil
}

// Candidate pairs a stored memory with the raw similarity score supplied
// by the external similarity search.
type Candidate struct {
	Memory     *memory.Memory
	Similarity float64
}

type Ranker struct {
	weights Weights
	now     func() time.Time
}

func NewRanker(w Weights) (*Ranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{weights: w, now: time.Now}, nil
}

type scored struct {
	mem      *memory.Memory
	combined float64
}

// Rank filters and orders candidates per the query context. Candidates
// whose type is excluded or whose importance falls below the threshold
// are dropped before scoring; malformed candidates are skipped with a
// warning and never fail the batch. An empty input yields an empty
// result.
func (r *Ranker) Rank(qc memory.QueryContext, candidates []Candidate) []*memory.Memory {
	if len(candidates) == 0 {
		return nil
	}

	now := r.now()
	results := make([]scored, 0, len(candidates))

	for _, c := range candidates {
		if c.Memory == nil || c.Memory.ID == "" {
			log.Warn("dropping candidate without memory record")
			continue
		}
		if math.IsNaN(c.Similarity) || c.Similarity < 0 || c.Similarity > 1 {
			log.Warn("dropping candidate with invalid similarity",
				"id", c.Memory.ID,
				"similarity", c.Similarity)
			continue
		}

		// Hard filters: excluded type and sub-threshold importance never
		// reach scoring.
		if !qc.AllowsType(c.Memory.Type) {
			continue
		}
		if c.Memory.ImportanceScore < qc.ImportanceThreshold {
			continue
		}

		combined := r.weights.Similarity*c.Similarity +
			r.weights.TypeRelevance*1.0 + // survivors always have full type relevance
			r.weights.Temporal*r.temporal(c.Memory, qc, now) +
			r.weights.Importance*c.Memory.ImportanceScore

		results = append(results, scored{mem: c.Memory, combined: combined})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].combined != results[j].combined {
			return results[i].combined > results[j].combined
		}
		if !results[i].mem.LastAccessed.Equal(results[j].mem.LastAccessed) {
			return results[i].mem.LastAccessed.After(results[j].mem.LastAccessed)
		}
		return results[i].mem.ID < results[j].mem.ID
	})

	if qc.Limit > 0 && len(results) > qc.Limit {
		results = results[:qc.Limit]
	}

	ordered := make([]*memory.Memory, len(results))
	for i, s := range results {
		ordered[i] = s.mem
	}

	return ordered
}

// temporal decays the candidate's age against the requested window:
// close to 1 inside the window, approaching 0 beyond it. Without a
// window every candidate scores 1.
func (r *Ranker) temporal(m *memory.Memory, qc memory.QueryContext, now time.Time) float64 {
	if qc.Timeframe <= 0 {
		return 1.0
	}

	age := now.Sub(m.CreatedAt)
	if age < 0 {
		age = 0
	}

	return math.Exp(-age.Seconds() / qc.Timeframe.Seconds())
}
