// Package engine wires the catalog, normalizer, scorer, ranker and filters
// into the request path.
//
// The active catalog snapshot and the scorer built for it are swapped
// together through an atomic pointer. A request loads the pointer once and
// works on that state until it returns, so a concurrent reload never leaks
// into it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embed"
	"github.com/spigell/assessment-recommender/internal/filtering"
	"github.com/spigell/assessment-recommender/internal/logger"
	"github.com/spigell/assessment-recommender/internal/metrics"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
	"github.com/spigell/assessment-recommender/internal/scoring"
	"github.com/spigell/assessment-recommender/internal/utils"
)

// ErrNoCatalog is returned when a request arrives before any catalog was loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

// Fetcher downloads the text of a linked job posting.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Config holds the engine settings.
type Config struct {
	Scoring         scoring.Config
	Normalizer      query.Normalizer
	Filters         filtering.Config
	DisabledFilters []string
	Workers         int
	// ExpandLinks appends the text of the first linked page to the query.
	ExpandLinks bool
}

type state struct {
	snap   *catalog.Snapshot
	scorer scoring.Scorer
}

type Engine struct {
	cfg      Config
	embedder embed.Embedder
	fetcher  Fetcher
	ranker   *rank.Ranker
	logger   *zap.Logger

	current atomic.Pointer[state]
}

// Option customises an Engine.
type Option func(*Engine)

// WithFetcher enables link expansion through f.
func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// New creates an engine without a catalog. embedder may be nil for the lexical strategy.
func New(cfg Config, embedder embed.Embedder, log *zap.Logger, opts ...Option) *Engine {
	model := ""
	if embedder != nil {
		model = embedder.ModelID()
	}
	log = logger.WithCommonFields(log, string(cfg.Scoring.Strategy), model)

	e := &Engine{
		cfg:      cfg,
		embedder: embedder,
		logger:   log,
		ranker:   &rank.Ranker{Workers: cfg.Workers, Logger: log},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load builds a scorer for snap and makes the pair active.
func (e *Engine) Load(ctx context.Context, snap *catalog.Snapshot) error {
	started := time.Now()

	scorer, err := scoring.Build(ctx, e.cfg.Scoring, snap, e.embedder)
	if err != nil {
		return fmt.Errorf("building %q scorer: %w", e.cfg.Scoring.Strategy, err)
	}

	e.current.Store(&state{snap: snap, scorer: scorer})
	metrics.CatalogRecords.Set(float64(snap.Len()))

	e.logger.Info("catalog activated",
		zap.Int("records", snap.Len()),
		zap.String("scorer", scorer.Name()),
		zap.Time("loaded_at", snap.LoadedAt()),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// Reload loads a new snapshot from src and activates it. On failure the
// previous snapshot stays active.
func (e *Engine) Reload(ctx context.Context, src catalog.Source, opts catalog.LoadOptions) (*catalog.Snapshot, error) {
	snap, err := catalog.Load(ctx, src, opts, e.logger)
	if err == nil {
		err = e.Load(ctx, snap)
	}
	if err != nil {
		metrics.CatalogReloadsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.CatalogReloadsTotal.WithLabelValues("success").Inc()
	return snap, nil
}

// Snapshot returns the active snapshot or nil.
func (e *Engine) Snapshot() *catalog.Snapshot {
	if st := e.current.Load(); st != nil {
		return st.snap
	}
	return nil
}

// Strategy returns the name of the active scorer.
func (e *Engine) Strategy() string {
	if st := e.current.Load(); st != nil {
		return st.scorer.Name()
	}
	return string(e.cfg.Scoring.Strategy)
}

// Rank normalizes text and ranks the active catalog without constraint filters.
func (e *Engine) Rank(ctx context.Context, text string, limit int) (*rank.Result, error) {
	st := e.current.Load()
	if st == nil {
		return nil, ErrNoCatalog
	}

	q, err := e.prepare(ctx, st, text)
	if err != nil {
		return nil, err
	}
	return e.rank(st, q, limit)
}

// Recommend ranks text and applies the constraint filters.
func (e *Engine) Recommend(ctx context.Context, text string, limit int) (*rank.Result, error) {
	res, err := e.recommend(ctx, text, limit)
	metrics.RequestsTotal.WithLabelValues(outcome(res, err)).Inc()
	return res, err
}

func (e *Engine) recommend(ctx context.Context, text string, limit int) (*rank.Result, error) {
	st := e.current.Load()
	if st == nil {
		return nil, ErrNoCatalog
	}

	q, err := e.prepare(ctx, st, text)
	if err != nil {
		return nil, err
	}

	res, err := e.rank(st, q, limit)
	if err != nil {
		return nil, err
	}

	cfg := e.cfg.Filters
	return filtering.Run(ctx, &cfg, filtering.Deps{Logger: e.logger}, e.filters(), q, res)
}

// Filters reports the constraint filters Recommend applies.
func (e *Engine) Filters() ([]filtering.Status, error) {
	steps := e.filters()
	cfg := e.cfg.Filters
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return filtering.Describe(steps), nil
}

// filters returns a fresh filter set; filters keep per-run state.
func (e *Engine) filters() []filtering.Filter {
	steps := filtering.Default()
	for _, name := range e.cfg.DisabledFilters {
		filtering.DisableByName(steps, name, "disabled in config")
	}
	return steps
}

// RankIDs returns the identifiers of Rank.
func (e *Engine) RankIDs(ctx context.Context, text string, limit int) ([]string, error) {
	res, err := e.Rank(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	return res.IDs(), nil
}

// RecommendIDs returns the identifiers of Recommend.
func (e *Engine) RecommendIDs(ctx context.Context, text string, limit int) ([]string, error) {
	res, err := e.Recommend(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	return res.IDs(), nil
}

func (e *Engine) prepare(ctx context.Context, st *state, text string) (*query.Query, error) {
	if e.cfg.ExpandLinks && e.fetcher != nil {
		if link := query.FirstURL(text); link != "" {
			page, err := e.fetcher.Fetch(ctx, link)
			if err != nil {
				e.logger.Warn("job page is not available, ranking the query as is",
					zap.String("url", link),
					zap.Error(err),
				)
			} else {
				text += " " + page
			}
		}
	}

	q, err := e.cfg.Normalizer.Normalize(text)
	if err != nil {
		return nil, err
	}

	if st.scorer.NeedsQueryVector() {
		if e.embedder == nil {
			return nil, errors.New("scorer needs query vectors but no embedder is configured")
		}
		vectors, err := e.embedder.Embed(ctx, []string{q.Text}, embed.KindQuery)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("embedding query: expected 1 vector, got %d", len(vectors))
		}
		q.Vector = vectors[0]
	}

	e.logger.Debug("query normalized",
		zap.String("query", utils.TruncateForLog(q.Text, 120)),
		zap.String("kind", string(q.Kind)),
		zap.Int("terms", len(q.Terms)),
		zap.Any("hints", q.Hints),
	)
	return q, nil
}

func (e *Engine) rank(st *state, q *query.Query, limit int) (*rank.Result, error) {
	started := time.Now()
	res, err := e.ranker.Rank(q, st.snap, st.scorer, limit)
	metrics.RankDuration.WithLabelValues(st.scorer.Name()).Observe(time.Since(started).Seconds())
	return res, err
}

func outcome(res *rank.Result, err error) string {
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		return "invalid_query"
	case err != nil:
		return "error"
	case res.Len() == 0:
		return "empty"
	default:
		return "ok"
	}
}
