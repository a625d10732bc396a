package classify

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/engramhq/engram-mcp/internal/logger"
	"github.com/engramhq/engram-mcp/internal/memory"
)

var log = logger.ForComponent("classify")

// ErrInvalidContent marks input that is not valid text. Empty content is
// not invalid; it classifies as semantic with zero confidence.
var ErrInvalidContent = errors.New("content is not valid UTF-8 text")

// Result is the transient outcome of classifying one text.
type Result struct {
	Type       memory.Type             `json:"type"`
	Confidence float64                 `json:"confidence"`
	Scores     map[memory.Type]float64 `json:"scores"`
	// Ambiguous is set when the top two scores are within the margin;
	// the result still carries the tie-break winner.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// Classifier assigns a cognitive memory type to text using the weighted
// signal families of its Config. Stateless after construction.
type Classifier struct {
	cfg       *Config
	extractor *Extractor
	maxWeight map[memory.Type]float64
}

func NewClassifier(cfg *Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}

	extractor, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}

	maxWeight := make(map[memory.Type]float64, len(memory.AllTypes))
	for _, t := range memory.AllTypes {
		maxWeight[t] = cfg.MaxWeight(t)
	}

	return &Classifier{
		cfg:       cfg,
		extractor: extractor,
		maxWeight: maxWeight,
	}, nil
}

func (c *Classifier) Extractor() *Extractor {
	return c.extractor
}

// Classify scores content against all three types and picks the winner.
// Ties break semantic > procedural > episodic; a winning score below the
// activation threshold forces semantic with zero confidence.
func (c *Classifier) Classify(content string) (Result, error) {
	if !utf8.ValidString(content) {
		return Result{}, ErrInvalidContent
	}

	signals := c.extractor.Extract(content)

	scores := make(map[memory.Type]float64, len(memory.AllTypes))
	for _, t := range memory.AllTypes {
		score := signals.TotalWeight(t) / c.maxWeight[t]
		if score > 1 {
			score = 1
		}
		scores[t] = score
	}

	// AllTypes is in tie-break order, so a strictly-greater comparison
	// lets earlier types win ties.
	winner := memory.AllTypes[0]
	for _, t := range memory.AllTypes[1:] {
		if scores[t] > scores[winner] {
			winner = t
		}
	}

	top, second := topTwo(scores)
	ambiguous := top > 0 && top-second < c.cfg.AmbiguityMargin

	result := Result{
		Type:       winner,
		Confidence: scores[winner],
		Scores:     scores,
		Ambiguous:  ambiguous,
	}

	if scores[winner] < c.cfg.ActivationThreshold {
		// No strong signal detected.
		result.Type = memory.TypeSemantic
		result.Confidence = 0
		result.Ambiguous = false
		return result, nil
	}

	if ambiguous {
		log.Debug("ambiguous classification",
			"winner", winner,
			"top", top,
			"second", second,
			"margin", c.cfg.AmbiguityMargin)
	}

	return result, nil
}

func topTwo(scores map[memory.Type]float64) (top, second float64) {
	for _, s := range scores {
		if s > top {
			second = top
			top = s
		} else if s > second {
			second = s
		}
	}
	return top, second
}
