package classify

import (
	"testing"

	"github.com/engramhq/engram-mcp/internal/memory"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func TestExtractEmptyContent(t *testing.T) {
	e := newTestExtractor(t)

	sig := e.Extract("")
	for _, mt := range memory.AllTypes {
		if sig.FamilyCount(mt) != 0 {
			t.Errorf("expected zero hits for %s, got %d", mt, sig.FamilyCount(mt))
		}
		if sig.TotalWeight(mt) != 0 {
			t.Errorf("expected zero weight for %s, got %v", mt, sig.TotalWeight(mt))
		}
	}
}

func TestFamilyWeightCountedOnce(t *testing.T) {
	e := newTestExtractor(t)

	sig := e.Extract("yesterday, today and earlier")
	if got := sig.TotalWeight(memory.TypeEpisodic); got != 0.40 {
		t.Errorf("expected repeated temporal markers to contribute 0.40 once, got %v", got)
	}
	if got := sig.Count(memory.TypeEpisodic, FamilyTemporalMarkers); got != 3 {
		t.Errorf("expected raw count 3, got %d", got)
	}
}

func TestWordBoundaryMatching(t *testing.T) {
	e := newTestExtractor(t)

	// "deployed" is a past action, not the imperative "deploy".
	sig := e.Extract("deployed the release")
	if got := sig.Count(memory.TypeProcedural, FamilyImperativeVerbs); got != 0 {
		t.Errorf("imperative verbs should not match inside 'deployed', got count %d", got)
	}
	if got := sig.Count(memory.TypeEpisodic, FamilyPastActions); got != 1 {
		t.Errorf("expected past action 'deployed' to match once, got %d", got)
	}

	// "installer" must not trigger "install".
	sig = e.Extract("download the installer")
	if got := sig.Count(memory.TypeProcedural, FamilyImperativeVerbs); got != 0 {
		t.Errorf("imperative verbs should not match inside 'installer', got %d", got)
	}
}

func TestCaseFoldedMatching(t *testing.T) {
	e := newTestExtractor(t)

	sig := e.Extract("YESTERDAY we SHIPPED it")
	if got := sig.Count(memory.TypeEpisodic, FamilyTemporalMarkers); got != 1 {
		t.Errorf("expected upper-case temporal marker to match, got %d", got)
	}
	if got := sig.Count(memory.TypeEpisodic, FamilyPastActions); got != 1 {
		t.Errorf("expected upper-case past action to match, got %d", got)
	}
}

func TestSequentialMarkerPattern(t *testing.T) {
	e := newTestExtractor(t)

	sig := e.Extract("1. do this 2) do that 3. done")
	if got := sig.Count(memory.TypeProcedural, FamilySequentialMarkers); got != 3 {
		t.Errorf("expected 3 numbered markers, got %d", got)
	}
}

func TestMultiWordPhrases(t *testing.T) {
	e := newTestExtractor(t)

	sig := e.Extract("here is how to set it up")
	if got := sig.Count(memory.TypeProcedural, FamilyProcessVocab); got != 1 {
		t.Errorf("expected phrase 'how to' to match, got %d", got)
	}
}
