package classify

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/engramhq/engram-mcp/internal/memory"
)

// FamilyHit records how a single signal family matched a text. Weight is
// the family's fixed weight (contributed at most once); Count is the raw
// number of occurrences, kept for metadata such as step counting.
type FamilyHit struct {
	Family string
	Weight float64
	Count  int
}

// Signals is the extractor output: per-type family hits. Families that
// did not match are absent.
type Signals struct {
	Hits map[memory.Type][]FamilyHit
}

// TotalWeight sums the matched family weights for a type.
func (s Signals) TotalWeight(t memory.Type) float64 {
	total := 0.0
	for _, h := range s.Hits[t] {
		total += h.Weight
	}
	return total
}

// Count returns the raw occurrence count of one family, 0 if it did not match.
func (s Signals) Count(t memory.Type, family string) int {
	for _, h := range s.Hits[t] {
		if h.Family == family {
			return h.Count
		}
	}
	return 0
}

// FamilyCount returns how many distinct families matched for a type.
func (s Signals) FamilyCount(t memory.Type) int {
	return len(s.Hits[t])
}

type compiledFamily struct {
	family Family
	words  *regexp.Regexp
	extra  *regexp.Regexp
}

// Extractor scans text against the configured pattern families. It is
// immutable after construction and safe for concurrent use.
type Extractor struct {
	cfg      *Config
	families map[memory.Type][]compiledFamily
	folder   cases.Caser
}

func NewExtractor(cfg *Config) (*Extractor, error) {
	e := &Extractor{
		cfg:      cfg,
		families: make(map[memory.Type][]compiledFamily, len(cfg.Families)),
		folder:   cases.Fold(),
	}

	for t, families := range cfg.Families {
		compiled := make([]compiledFamily, 0, len(families))
		for _, f := range families {
			cf := compiledFamily{family: f}

			if len(f.Words) > 0 {
				re, err := compileWords(f.Words)
				if err != nil {
					return nil, fmt.Errorf("family %s/%s: %w", t, f.Name, err)
				}
				cf.words = re
			}

			if f.Pattern != "" {
				re, err := regexp.Compile(f.Pattern)
				if err != nil {
					return nil, fmt.Errorf("family %s/%s pattern: %w", t, f.Name, err)
				}
				cf.extra = re
			}

			compiled = append(compiled, cf)
		}
		e.families[t] = compiled
	}

	return e, nil
}

// compileWords builds one alternation with word boundaries so that e.g.
// "deploy" does not match inside "deployed".
func compileWords(words []string) (*regexp.Regexp, error) {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`\b(?:` + strings.Join(parts, "|") + `)\b`)
}

// Fold normalizes text for matching: NFKC then Unicode case folding.
func (e *Extractor) Fold(content string) string {
	return e.folder.String(norm.NFKC.String(content))
}

// Extract scans content and returns the per-type family hits. Empty
// content yields zero hits for every family.
func (e *Extractor) Extract(content string) Signals {
	sig := Signals{Hits: make(map[memory.Type][]FamilyHit, len(e.families))}
	if content == "" {
		return sig
	}

	folded := e.Fold(content)

	for t, families := range e.families {
		for _, cf := range families {
			count := 0
			if cf.words != nil {
				count += len(cf.words.FindAllStringIndex(folded, -1))
			}
			if cf.extra != nil {
				count += len(cf.extra.FindAllStringIndex(folded, -1))
			}
			if count == 0 {
				continue
			}

			sig.Hits[t] = append(sig.Hits[t], FamilyHit{
				Family: cf.family.Name,
				Weight: cf.family.Weight,
				Count:  count,
			})
		}
	}

	return sig
}
