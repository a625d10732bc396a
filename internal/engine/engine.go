// Package engine wires the classification core to its collaborators:
// ingestion classifies and indexes new memories, retrieval joins
// similarity hits with stored records and ranks them.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/engramhq/engram-mcp/internal/classify"
	"github.com/engramhq/engram-mcp/internal/consolidate"
	"github.com/engramhq/engram-mcp/internal/logger"
	"github.com/engramhq/engram-mcp/internal/memory"
	"github.com/engramhq/engram-mcp/internal/rank"
	"github.com/engramhq/engram-mcp/internal/vector"
)

var log = logger.ForComponent("engine")

const (
	DefaultImportance = 0.5

	defaultSearchLimit = 10
	// Over-fetch factor: the similarity search returns more candidates
	// than the limit so hard filters don't starve the result.
	candidateMultiplier = 4
	minCandidates       = 32
)

type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

func DefaultOptions() Options {
	return Options{
		CacheSize: 128,
		CacheTTL:  time.Minute,
	}
}

type Engine struct {
	store         *memory.Store
	index         *vector.Index
	classifier    *classify.Classifier
	generator     *classify.Generator
	consolidation consolidate.Config
	ranker        *rank.Ranker
	cache         *lru.LRU[string, []*memory.Memory]
	now           func() time.Time
}

func New(
	store *memory.Store,
	index *vector.Index,
	classifier *classify.Classifier,
	generator *classify.Generator,
	consolidation consolidate.Config,
	ranker *rank.Ranker,
	opts Options,
) (*Engine, error) {
	if err := consolidation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consolidation config: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}

	return &Engine{
		store:         store,
		index:         index,
		classifier:    classifier,
		generator:     generator,
		consolidation: consolidation,
		ranker:        ranker,
		cache:         lru.NewLRU[string, []*memory.Memory](opts.CacheSize, nil, opts.CacheTTL),
		now:           time.Now,
	}, nil
}

// StoreMemory classifies content, derives metadata, persists the record
// and indexes it for similarity search. importance defaults to 0.5;
// occurredAt backdates the episodic timestamp when supplied.
func (e *Engine) StoreMemory(ctx context.Context, content string, importance *float64, occurredAt *time.Time) (*memory.Memory, classify.Result, error) {
	result, err := e.classifier.Classify(content)
	if err != nil {
		return nil, classify.Result{}, err
	}

	imp := DefaultImportance
	if importance != nil {
		if *importance < 0 || *importance > 1 {
			return nil, classify.Result{}, fmt.Errorf("importance %v outside [0,1]", *importance)
		}
		imp = *importance
	}

	now := e.now().UTC()
	when := now
	if occurredAt != nil {
		when = occurredAt.UTC()
	}

	m := &memory.Memory{
		ID:                 uuid.NewString(),
		Content:            content,
		Type:               result.Type,
		Confidence:         result.Confidence,
		ImportanceScore:    imp,
		ConsolidationScore: e.consolidation.Initial(result.Type),
		CreatedAt:          now,
		LastAccessed:       now,
		Metadata:           e.generator.Generate(content, result, when),
	}

	if err := e.store.Create(m); err != nil {
		return nil, classify.Result{}, fmt.Errorf("persist memory: %w", err)
	}

	if err := e.index.Add(ctx, m.ID, content); err != nil {
		// Keep the record but surface the indexing fault: the memory is
		// recallable by id, just invisible to similarity search.
		log.Error("failed to index memory", "id", m.ID, "error", err)
	}

	e.cache.Purge()

	log.Info("memory stored",
		"id", m.ID,
		"type", m.Type,
		"confidence", m.Confidence,
		"ambiguous", result.Ambiguous)

	return m, result, nil
}

// Classify runs the classification pipeline without persisting anything.
func (e *Engine) Classify(content string) (classify.Result, memory.Metadata, error) {
	result, err := e.classifier.Classify(content)
	if err != nil {
		return classify.Result{}, memory.Metadata{}, err
	}
	return result, e.generator.Generate(content, result, e.now().UTC()), nil
}

// Search embeds the query, fetches similar candidates, joins them with
// stored records and ranks. Results are cached briefly; every write
// purges the cache.
func (e *Engine) Search(ctx context.Context, query string, qc memory.QueryContext) ([]*memory.Memory, error) {
	if qc.Limit <= 0 {
		qc.Limit = defaultSearchLimit
	}

	key := cacheKey(query, qc)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	fetch := qc.Limit * candidateMultiplier
	if fetch < minCandidates {
		fetch = minCandidates
	}

	hits, err := e.index.Query(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	records, err := e.store.GetMany(ids)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	candidates := make([]rank.Candidate, len(hits))
	for i, h := range hits {
		// A hit without a stored record (index/store drift) passes
		// through as a nil memory; the ranker drops it with a warning.
		candidates[i] = rank.Candidate{Memory: records[h.ID], Similarity: h.Similarity}
	}

	ranked := e.ranker.Rank(qc, candidates)
	e.cache.Add(key, ranked)

	return ranked, nil
}

// Recall fetches a memory by id. With reinforce set it also performs the
// consolidation update: access_count increments, last_accessed moves to
// now and the consolidation score is recomputed. Plain reads leave the
// record untouched.
func (e *Engine) Recall(ctx context.Context, id string, reinforce bool) (*memory.Memory, error) {
	if !reinforce {
		return e.store.Get(id)
	}

	m, err := e.store.Touch(id, e.now().UTC(), e.consolidation.Score)
	if err != nil {
		return nil, err
	}

	e.cache.Purge()
	return m, nil
}

func (e *Engine) Forget(ctx context.Context, id string) error {
	if err := e.store.Delete(id); err != nil {
		return err
	}

	if err := e.index.Delete(ctx, id); err != nil {
		log.Warn("failed to remove memory from vector index", "id", id, "error", err)
	}

	e.cache.Purge()
	return nil
}

func (e *Engine) List(types []memory.Type, limit int) ([]*memory.Memory, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return e.store.List(types, limit)
}

func (e *Engine) Close() error {
	return e.store.Close()
}

func cacheKey(query string, qc memory.QueryContext) string {
	return fmt.Sprintf("%s|%v|%s|%g|%d",
		query, qc.TypeFilter, qc.Timeframe, qc.ImportanceThreshold, qc.Limit)
}
