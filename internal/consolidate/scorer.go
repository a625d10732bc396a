// Package consolidate computes the reinforcement score that models how
// well-embedded a memory is. The score rises with access frequency and
// decays with elapsed time on a per-type forgetting curve; it is a pure
// computation — the persistence layer owns the read-modify-write.
package consolidate

import (
	"fmt"
	"math"
	"time"

	"github.com/engramhq/engram-mcp/internal/memory"
)

// Params are the per-type curve constants.
type Params struct {
	// Base is the score of a fresh, never-reinforced memory.
	Base float64 `yaml:"base"`
	// DecayPerDay is subtracted per elapsed day since the last access.
	DecayPerDay float64 `yaml:"decay_per_day"`
	// AccessWeight scales log(1 + access_count).
	AccessWeight float64 `yaml:"access_weight"`
}

type Config struct {
	PerType map[memory.Type]Params `yaml:"per_type"`
}

// DefaultConfig encodes the forgetting curves: episodic decays fastest,
// semantic slowest, procedural sits between but gains the most from
// repeated access.
func DefaultConfig() Config {
	return Config{
		PerType: map[memory.Type]Params{
			memory.TypeSemantic:   {Base: 0.50, DecayPerDay: 0.01, AccessWeight: 0.08},
			memory.TypeEpisodic:   {Base: 0.40, DecayPerDay: 0.05, AccessWeight: 0.08},
			memory.TypeProcedural: {Base: 0.45, DecayPerDay: 0.02, AccessWeight: 0.12},
		},
	}
}

func (c Config) Validate() error {
	for _, t := range memory.AllTypes {
		p, ok := c.PerType[t]
		if !ok {
			return fmt.Errorf("no consolidation params for type %s", t)
		}
		if p.Base < 0 || p.Base > 1 {
			return fmt.Errorf("base for %s outside [0,1]: %v", t, p.Base)
		}
		if p.DecayPerDay < 0 || p.AccessWeight < 0 {
			return fmt.Errorf("negative curve constant for %s", t)
		}
	}
	return nil
}

// Score computes the consolidation score for a memory of type t that has
// been accessed accessCount times, elapsed after its previous access.
// Clamped to [0,1]. Computed in Go rather than SQL: the sqlite driver
// has no log/pow.
func (c Config) Score(t memory.Type, accessCount int, elapsed time.Duration) float64 {
	p, ok := c.PerType[t]
	if !ok {
		p = c.PerType[memory.TypeSemantic]
	}

	days := elapsed.Hours() / 24
	score := p.Base + p.AccessWeight*math.Log1p(float64(accessCount)) - p.DecayPerDay*days

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Initial is the score a memory carries at creation, before any
// reinforced access.
func (c Config) Initial(t memory.Type) float64 {
	return c.Score(t, 0, 0)
}
