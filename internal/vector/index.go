// Package vector is the similarity-search collaborator: an embedded
// chromem-go collection that maps memory ids to embedding vectors and
// answers nearest-neighbour queries with similarity scores in [0,1].
package vector

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Hit is one similarity-search result.
type Hit struct {
	ID         string
	Similarity float64
}

type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewIndex opens a persistent index under persistDir, or an in-memory
// one when persistDir is empty.
func NewIndex(persistDir string, embed EmbedFunc) (*Index, error) {
	var db *chromem.DB
	var err error

	if persistDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistDir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector index: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection("memories", nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	return &Index{db: db, collection: col}, nil
}

func (i *Index) Add(ctx context.Context, id, content string) error {
	doc := chromem.Document{
		ID:      id,
		Content: content,
	}

	if err := i.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query returns up to n hits for the query text, most similar first.
// Raw cosine similarity can dip below zero; scores are clamped into
// [0,1] per the ranking contract.
func (i *Index) Query(ctx context.Context, text string, n int) ([]Hit, error) {
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := i.collection.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		hits = append(hits, Hit{ID: r.ID, Similarity: sim})
	}

	return hits, nil
}

func (i *Index) Delete(ctx context.Context, id string) error {
	if err := i.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (i *Index) Count() int {
	return i.collection.Count()
}
