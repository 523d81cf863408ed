package scoring

import (
	"context"
	"fmt"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embed"
	"github.com/spigell/assessment-recommender/internal/query"
)

// Dense scores cosine similarity between the query vector and record vectors
// embedded once at build time. Negative similarities are clamped, so the
// range is [0, 1].
type Dense struct {
	vectors map[string][]float32
}

func NewDense(ctx context.Context, snap *catalog.Snapshot, embedder embed.Embedder) (*Dense, error) {
	if embedder == nil {
		return nil, errNoEmbedder
	}

	records := snap.All()
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.SearchText()
	}

	vectors, err := embedder.Embed(ctx, texts, embed.KindDocument)
	if err != nil {
		return nil, fmt.Errorf("embedding catalog: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embedding catalog: got %d vectors for %d records", len(vectors), len(records))
	}

	d := &Dense{vectors: make(map[string][]float32, len(records))}
	for i, rec := range records {
		d.vectors[rec.ID] = vectors[i]
	}
	return d, nil
}

func (d *Dense) Name() string { return string(StrategyDense) }

func (d *Dense) Bounds() (float64, float64) { return 0, 1 }

func (d *Dense) NeedsQueryVector() bool { return true }

func (d *Dense) Score(q *query.Query, r *catalog.Record) float64 {
	if q == nil || r == nil || len(q.Vector) == 0 {
		return 0
	}
	v, ok := d.vectors[r.ID]
	if !ok {
		return 0
	}
	return clamp(embed.Cosine(q.Vector, v), 0, 1)
}
