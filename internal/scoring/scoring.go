// Package scoring implements the pluggable relevance strategies. Every
// strategy is a pure function of (query, record) once built: corpus
// statistics and record vectors are computed when the strategy is built for
// a catalog snapshot and never change afterwards.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embed"
	"github.com/spigell/assessment-recommender/internal/query"
)

// Scorer rates how relevant a record is to a query. Higher is better and the
// result always lies within Bounds. Scoring never fails: records the scorer
// cannot handle get the lower bound.
type Scorer interface {
	Name() string
	Bounds() (lo, hi float64)
	Score(q *query.Query, r *catalog.Record) float64
	// NeedsQueryVector reports whether Score reads q.Vector.
	NeedsQueryVector() bool
}

// Strategy names a scorer configuration.
type Strategy string

const (
	StrategyLexical Strategy = "lexical"
	StrategyDense   Strategy = "dense"
	StrategyHybrid  Strategy = "hybrid"
)

// Config selects and tunes the strategy.
type Config struct {
	Strategy      Strategy
	NameWeight    float64
	LexicalWeight float64
	DenseWeight   float64
}

// Build creates the configured scorer for snap. embedder is required by the
// dense and hybrid strategies.
func Build(ctx context.Context, cfg Config, snap *catalog.Snapshot, embedder embed.Embedder) (Scorer, error) {
	switch cfg.Strategy {
	case StrategyLexical, "":
		return NewLexical(snap, cfg.NameWeight), nil
	case StrategyDense:
		return NewDense(ctx, snap, embedder)
	case StrategyHybrid:
		dense, err := NewDense(ctx, snap, embedder)
		if err != nil {
			return nil, err
		}
		lw, dw := cfg.LexicalWeight, cfg.DenseWeight
		if lw <= 0 && dw <= 0 {
			lw, dw = 0.5, 0.5
		}
		return NewHybrid(
			Weighted{Scorer: NewLexical(snap, cfg.NameWeight), Weight: lw},
			Weighted{Scorer: dense, Weight: dw},
		)
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", cfg.Strategy)
	}
}

var errNoEmbedder = errors.New("dense scoring requires an embedder")

func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
