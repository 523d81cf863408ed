// Package rank orders catalog records for a query.
package rank

import (
	"cmp"
	"errors"
	"runtime"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/scoring"
)

// MaxLimit is the system-wide cap on result size.
const MaxLimit = 10

// minChunk keeps tiny catalogs on a single goroutine.
const minChunk = 64

// ErrInvalidLimit is returned for limits outside 1..MaxLimit.
var ErrInvalidLimit = errors.New("limit must be between 1 and 10")

// Candidate is a scored record at a 1-based rank.
type Candidate struct {
	Record *catalog.Record
	Score  float64
	Rank   int
}

// ID returns the record identifier.
func (c Candidate) ID() string { return c.Record.ID }

// Result is an ordered, duplicate-free list of at most MaxLimit candidates.
type Result struct {
	Items []Candidate
}

func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// IDs returns the identifiers in rank order.
func (r *Result) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Items))
	for i, c := range r.Items {
		ids[i] = c.ID()
	}
	return ids
}

// Renumber assigns ranks 1..n in the current order.
func (r *Result) Renumber() {
	for i := range r.Items {
		r.Items[i].Rank = i + 1
	}
}

// Ranker scores every record once and keeps the best ones. Workers bounds
// the scoring goroutines; zero means GOMAXPROCS.
type Ranker struct {
	Workers int
	Logger  *zap.Logger
}

// Rank scores all records of snap against q and returns the top limit
// ordered by score descending with ties broken by ascending identifier.
// The result is empty when no record scores above the scorer's minimum.
func (rk *Ranker) Rank(q *query.Query, snap *catalog.Snapshot, scorer scoring.Scorer, limit int) (*Result, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}

	records := snap.All()
	if len(records) == 0 {
		return &Result{}, nil
	}

	scores := make([]float64, len(records))
	workers := rk.workers(len(records))
	chunk := (len(records) + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))
		g.Go(func() error {
			for i := start; i < end; i++ {
				scores[i] = scorer.Score(q, records[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	lo, _ := scorer.Bounds()
	matched := false
	candidates := make([]Candidate, len(records))
	for i, rec := range records {
		candidates[i] = Candidate{Record: rec, Score: scores[i]}
		matched = matched || scores[i] > lo
	}
	if !matched {
		return &Result{}, nil
	}

	slices.SortFunc(candidates, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	res := &Result{Items: candidates}
	res.Renumber()

	if rk.Logger != nil {
		rk.Logger.Debug("ranked catalog",
			zap.String("scorer", scorer.Name()),
			zap.Int("records", len(records)),
			zap.Int("workers", workers),
			zap.Int("returned", len(res.Items)),
		)
	}

	return res, nil
}

func (rk *Ranker) workers(n int) int {
	w := rk.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if most := (n + minChunk - 1) / minChunk; w > most {
		w = most
	}
	return max(w, 1)
}
