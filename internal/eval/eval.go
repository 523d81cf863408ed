// Package eval measures ranking quality over a labeled set of queries.
package eval

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/assessment-recommender/internal/metrics"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
	"github.com/spigell/assessment-recommender/internal/utils"
)

var (
	// ErrEmptyCaseSet is returned when there is nothing to evaluate.
	ErrEmptyCaseSet = errors.New("evaluation case set is empty")
	// ErrNoRelevantCases is returned when every case lacks relevant
	// identifiers; the means are undefined then.
	ErrNoRelevantCases = errors.New("no evaluation case has relevant assessments")
)

// Case is a query with the identifiers a good ranking should return.
type Case struct {
	Query    string   `yaml:"query" json:"query"`
	Relevant []string `yaml:"relevant" json:"relevant"`
}

// Ranker returns ranked identifiers for a query.
type Ranker interface {
	Rank(ctx context.Context, text string, k int) ([]string, error)
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, text string, k int) ([]string, error)

func (f RankerFunc) Rank(ctx context.Context, text string, k int) ([]string, error) {
	return f(ctx, text, k)
}

// CaseResult holds the per-case scores. Excluded cases have no relevant
// identifiers and do not count towards the means.
type CaseResult struct {
	Query     string   `json:"query"`
	Relevant  []string `json:"relevant"`
	Retrieved []string `json:"retrieved"`
	Recall    float64  `json:"recall"`
	AP        float64  `json:"average_precision"`
	Excluded  bool     `json:"excluded,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Report aggregates an evaluation run.
type Report struct {
	K          int           `json:"k"`
	MeanRecall float64       `json:"mean_recall_at_k"`
	MAP        float64       `json:"map_at_k"`
	Included   int           `json:"included"`
	Excluded   int           `json:"excluded"`
	Failed     int           `json:"failed"`
	Took       time.Duration `json:"took"`
	Cases      []CaseResult  `json:"cases"`
}

// Harness runs every case through the same Ranker. Workers bounds the number
// of cases ranked at once; zero means GOMAXPROCS.
type Harness struct {
	Ranker  Ranker
	Workers int
	Logger  *zap.Logger
}

// Evaluate ranks each case with limit k and averages Recall@k and AP@k over
// the cases that have relevant identifiers. A case whose query normalizes to
// nothing scores zero; any other ranking error aborts the run. Without a
// single case to average over it returns ErrNoRelevantCases.
func (h *Harness) Evaluate(ctx context.Context, cases []Case, k int) (*Report, error) {
	if len(cases) == 0 {
		return nil, ErrEmptyCaseSet
	}
	if k < 1 || k > rank.MaxLimit {
		return nil, rank.ErrInvalidLimit
	}
	if h.Ranker == nil {
		return nil, errors.New("evaluation requires a ranker")
	}

	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now()

	results := make([]CaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers())

	for i, c := range cases {
		g.Go(func() error {
			res := CaseResult{Query: c.Query, Relevant: c.Relevant}
			if len(toSet(c.Relevant)) == 0 {
				res.Excluded = true
				results[i] = res
				return nil
			}

			ranked, err := h.Ranker.Rank(gctx, c.Query, k)
			switch {
			case errors.Is(err, query.ErrEmptyQuery):
				res.Error = err.Error()
			case err != nil:
				return fmt.Errorf("case %d %q: %w", i+1, utils.TruncateForLog(c.Query, 60), err)
			default:
				res.Retrieved = ranked
				res.Recall = RecallAtK(ranked, c.Relevant, k)
				res.AP = AveragePrecisionAtK(ranked, c.Relevant, k)
			}

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{K: k, Cases: results}
	for _, res := range results {
		if res.Excluded {
			report.Excluded++
			continue
		}
		if res.Error != "" {
			report.Failed++
		}
		report.Included++
		report.MeanRecall += res.Recall
		report.MAP += res.AP
	}
	if report.Included == 0 {
		logger.Warn("every evaluation case was excluded", zap.Int("excluded", report.Excluded))
		return nil, ErrNoRelevantCases
	}
	report.MeanRecall /= float64(report.Included)
	report.MAP /= float64(report.Included)
	report.Took = time.Since(started)

	label := strconv.Itoa(k)
	metrics.EvaluationScore.WithLabelValues("mean_recall", label).Set(report.MeanRecall)
	metrics.EvaluationScore.WithLabelValues("map", label).Set(report.MAP)

	logger.Info("evaluation finished",
		zap.Int("k", k),
		zap.Int("included", report.Included),
		zap.Int("excluded", report.Excluded),
		zap.Int("failed", report.Failed),
		zap.Float64("mean_recall", report.MeanRecall),
		zap.Float64("map", report.MAP),
		zap.Duration("took", report.Took),
	)

	return report, nil
}

func (h *Harness) workers() int {
	if h.Workers > 0 {
		return h.Workers
	}
	return runtime.GOMAXPROCS(0)
}
