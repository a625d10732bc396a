package rank

import (
	"math"
	"testing"
	"time"

	"github.com/engramhq/engram-mcp/internal/memory"
)

var rankNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	r, err := NewRanker(DefaultWeights())
	if err != nil {
		t.Fatalf("NewRanker: %v", err)
	}
	r.now = func() time.Time { return rankNow }
	return r
}

func mem(id string, mt memory.Type, importance float64, age time.Duration) *memory.Memory {
	return &memory.Memory{
		ID:              id,
		Type:            mt,
		ImportanceScore: importance,
		CreatedAt:       rankNow.Add(-age),
		LastAccessed:    rankNow.Add(-age),
	}
}

func ids(ms []*memory.Memory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights should validate: %v", err)
	}

	bad := []Weights{
		{Similarity: 0.5, TypeRelevance: 0.5, Temporal: 0.5, Importance: 0.5},
		{Similarity: -0.1, TypeRelevance: 0.5, Temporal: 0.3, Importance: 0.3},
		{Similarity: 1.2, TypeRelevance: -0.2, Temporal: 0, Importance: 0},
		{Similarity: math.NaN(), TypeRelevance: 0.25, Temporal: 0.2, Importance: 0.15},
		{},
	}
	for i, w := range bad {
		if err := w.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, w)
		}
	}

	if _, err := NewRanker(Weights{}); err == nil {
		t.Error("NewRanker must reject invalid weights at construction")
	}
}

func TestRankEmptyInput(t *testing.T) {
	r := newTestRanker(t)

	if got := r.Rank(memory.QueryContext{}, nil); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestRankOrdersBySimilarity(t *testing.T) {
	r := newTestRanker(t)

	candidates := []Candidate{
		{Memory: mem("low", memory.TypeSemantic, 0.5, time.Hour), Similarity: 0.2},
		{Memory: mem("high", memory.TypeSemantic, 0.5, time.Hour), Similarity: 0.9},
		{Memory: mem("mid", memory.TypeSemantic, 0.5, time.Hour), Similarity: 0.5},
	}

	got := ids(r.Rank(memory.QueryContext{}, candidates))
	want := []string{"high", "mid", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRankImportanceBreaksEqualSimilarity(t *testing.T) {
	r := newTestRanker(t)

	// Identical similarity and age; only importance differs.
	candidates := []Candidate{
		{Memory: mem("minor", memory.TypeSemantic, 0.2, time.Hour), Similarity: 0.8},
		{Memory: mem("major", memory.TypeSemantic, 0.9, time.Hour), Similarity: 0.8},
	}

	got := ids(r.Rank(memory.QueryContext{}, candidates))
	if got[0] != "major" {
		t.Errorf("expected higher importance first, got %v", got)
	}
}

func TestRankTypeFilterExcludes(t *testing.T) {
	r := newTestRanker(t)

	candidates := []Candidate{
		{Memory: mem("ep", memory.TypeEpisodic, 0.5, time.Hour), Similarity: 0.9},
		{Memory: mem("sem", memory.TypeSemantic, 0.5, time.Hour), Similarity: 0.1},
	}

	qc := memory.QueryContext{TypeFilter: []memory.Type{memory.TypeSemantic}}
	got := ids(r.Rank(qc, candidates))
	if len(got) != 1 || got[0] != "sem" {
		t.Errorf("type filter should keep only the semantic candidate, got %v", got)
	}
}

func TestRankImportanceThresholdExcludes(t *testing.T) {
	r := newTestRanker(t)

	candidates := []Candidate{
		{Memory: mem("weak", memory.TypeSemantic, 0.3, time.Hour), Similarity: 0.99},
		{Memory: mem("strong", memory.TypeSemantic, 0.8, time.Hour), Similarity: 0.1},
	}

	qc := memory.QueryContext{ImportanceThreshold: 0.5}
	got := ids(r.Rank(qc, candidates))
	if len(got) != 1 || got[0] != "strong" {
		t.Errorf("threshold must drop sub-threshold candidates regardless of similarity, got %v", got)
	}
}

func TestRankTemporalPrefersRecent(t *testing.T) {
	r := newTestRanker(t)

	candidates := []Candidate{
		{Memory: mem("old", memory.TypeSemantic, 0.5, 30*24*time.Hour), Similarity: 0.5},
		{Memory: mem("new", memory.TypeSemantic, 0.5, time.Hour), Similarity: 0.5},
	}

	qc := memory.QueryContext{Timeframe: 7 * 24 * time.Hour}
	got := ids(r.Rank(qc, candidates))
	if got[0] != "new" {
		t.Errorf("expected recent memory first within a timeframe, got %v", got)
	}

	// Without a timeframe age is irrelevant; the tie falls to last_accessed.
	got = ids(r.Rank(memory.QueryContext{}, candidates))
	if got[0] != "new" {
		t.Errorf("expected last_accessed tie-break, got %v", got)
	}
}

func TestRankDropsMalformedCandidates(t *testing.T) {
	r := newTestRanker(t)

	candidates := []Candidate{
		{Memory: nil, Similarity: 0.9},
		{Memory: &memory.Memory{}, Similarity: 0.9},
		{Memory: mem("nan", memory.TypeSemantic, 0.5, time.Hour), Similarity: math.NaN()},
		{Memory: mem("oob", memory.TypeSemantic, 0.5, time.Hour), Similarity: 1.5},
		{Memory: mem("neg", memory.TypeSemantic, 0.5, time.Hour), Similarity: -0.1},
		{Memory: mem("ok", memory.TypeSemantic, 0.5, time.Hour), Similarity: 0.4},
	}

	got := ids(r.Rank(memory.QueryContext{}, candidates))
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("malformed candidates must be skipped without failing the batch, got %v", got)
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	r := newTestRanker(t)

	a := mem("aaa", memory.TypeSemantic, 0.5, time.Hour)
	b := mem("bbb", memory.TypeSemantic, 0.5, time.Hour)

	candidates := []Candidate{
		{Memory: b, Similarity: 0.5},
		{Memory: a, Similarity: 0.5},
	}

	// Fully tied: same combined score and last_accessed; id ascending wins.
	got := ids(r.Rank(memory.QueryContext{}, candidates))
	if got[0] != "aaa" || got[1] != "bbb" {
		t.Errorf("expected id-ascending tie-break, got %v", got)
	}
}

func TestRankLimitTruncates(t *testing.T) {
	r := newTestRanker(t)

	candidates := make([]Candidate, 10)
	for i := range candidates {
		candidates[i] = Candidate{
			Memory:     mem(string(rune('a'+i)), memory.TypeSemantic, 0.5, time.Hour),
			Similarity: float64(i) / 10,
		}
	}

	got := r.Rank(memory.QueryContext{Limit: 3}, candidates)
	if len(got) != 3 {
		t.Errorf("expected 3 results, got %d", len(got))
	}
}

func TestTemporalDecay(t *testing.T) {
	r := newTestRanker(t)
	qc := memory.QueryContext{Timeframe: 24 * time.Hour}

	fresh := r.temporal(mem("f", memory.TypeSemantic, 0.5, 0), qc, rankNow)
	if fresh != 1.0 {
		t.Errorf("zero-age candidate should score 1.0, got %v", fresh)
	}

	day := r.temporal(mem("d", memory.TypeSemantic, 0.5, 24*time.Hour), qc, rankNow)
	if math.Abs(day-math.Exp(-1)) > 1e-9 {
		t.Errorf("one-window-old candidate should score e^-1, got %v", day)
	}

	future := r.temporal(mem("x", memory.TypeSemantic, 0.5, -time.Hour), qc, rankNow)
	if future != 1.0 {
		t.Errorf("future created_at clamps to age 0, got %v", future)
	}
}
