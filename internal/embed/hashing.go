package embed

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/spigell/assessment-recommender/internal/query"
)

// DefaultHashingDimensions is used when NewHashing gets a non-positive size.
const DefaultHashingDimensions = 512

// Hashing is an offline embedder based on signed feature hashing of terms
// and their character trigrams. It needs no model files and is deterministic.
type Hashing struct {
	dims       int
	normalizer query.Normalizer
}

func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) ModelID() string { return fmt.Sprintf("hashing-%d", h.dims) }

func (h *Hashing) Embed(ctx context.Context, texts []string, _ Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	v := make([]float32, h.dims)

	q, err := h.normalizer.Normalize(text)
	if err != nil {
		return v
	}

	for _, term := range q.Terms {
		h.add(v, term, 1)
		padded := []rune("^" + term + "$")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(v, string(padded[i:i+3]), 0.5)
		}
	}

	return Normalize(v)
}

func (h *Hashing) add(v []float32, feature string, weight float32) {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum32()

	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[int(sum%uint32(h.dims))] += weight
}
