package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// EmbedFunc produces a float32 embedding vector from text. The daemon
// treats embedding generation as an external collaborator; any provider
// satisfying this signature can be plugged in.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

const DefaultDimensions = 256

// LocalEmbedder returns a deterministic bag-of-words hashing embedder.
// It is not a semantic model: it exists so the daemon works offline and
// so tests are reproducible. Vectors are L2-normalized for cosine
// similarity.
func LocalEmbedder(dimensions int) EmbedFunc {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dimensions)

		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New64a()
			if _, err := h.Write([]byte(word)); err != nil {
				return nil, fmt.Errorf("hash word: %w", err)
			}
			sum := h.Sum64()

			idx := int(sum % uint64(dimensions))
			sign := float32(1)
			if sum&(1<<63) != 0 {
				sign = -1
			}
			vec[idx] += sign
		}

		var mag float64
		for _, v := range vec {
			mag += float64(v) * float64(v)
		}
		if mag == 0 {
			// Empty or whitespace-only text still needs a valid unit vector.
			vec[0] = 1
			return vec, nil
		}

		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}

		return vec, nil
	}
}
