package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embed"
	"github.com/spigell/assessment-recommender/internal/filtering"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/scoring"
)

func testSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot("", []catalog.Record{
		{
			ID: "java", Name: "Java 8 (New)", Duration: 18, RemoteSupport: true,
			Description: "Multi-choice test that measures the knowledge of Java programming",
			TestTypes:   []string{"Knowledge & Skills"},
		},
		{
			ID: "python", Name: "Python (New)", Duration: 11, RemoteSupport: true,
			Description: "Multi-choice test that measures the knowledge of Python programming",
			TestTypes:   []string{"Knowledge & Skills"},
		},
		{
			ID: "opq", Name: "Occupational Personality Questionnaire", Duration: 25, AdaptiveSupport: true,
			Description: "Personality questionnaire describing workplace behaviour",
			TestTypes:   []string{"Personality & Behavior"},
		},
	})
}

type stubFetcher struct {
	page string
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.page, f.err
}

func TestRankWithoutCatalog(t *testing.T) {
	t.Parallel()

	e := New(Config{}, nil, zap.NewNop())

	if _, err := e.Rank(context.Background(), "java", 5); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
	if _, err := e.Recommend(context.Background(), "java", 5); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
	if e.Snapshot() != nil {
		t.Fatalf("expected no snapshot")
	}
}

func TestRecommendLexical(t *testing.T) {
	t.Parallel()

	e := New(Config{Scoring: scoring.Config{Strategy: scoring.StrategyLexical}}, nil, zap.NewNop())
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Recommend(context.Background(), "Java developer", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Len() == 0 || res.Items[0].ID() != "java" || res.Items[0].Rank != 1 {
		t.Fatalf("expected java first, got %v", res.IDs())
	}

	if _, err := e.Recommend(context.Background(), "  <p> </p> ", 5); !errors.Is(err, query.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := e.Recommend(context.Background(), "java", 11); err == nil {
		t.Fatalf("expected error for limit above maximum")
	}
}

func TestRecommendAppliesQueryHints(t *testing.T) {
	t.Parallel()

	cfg := Config{Filters: filtering.Config{UseQueryHints: true}}
	e := New(cfg, nil, zap.NewNop())
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := e.RecommendIDs(context.Background(), "python or java programming, under 15 minutes", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"python"}, ids); diff != "" {
		t.Fatalf("unexpected ids (-want +got):\n%s", diff)
	}

	// Rank does not filter.
	ids, err = e.RankIDs(context.Background(), "python or java programming, under 15 minutes", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) < 2 {
		t.Fatalf("expected unfiltered ranking, got %v", ids)
	}
}

func TestRecommendDisabledFilters(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Filters:         filtering.Config{RequireAdaptive: true},
		DisabledFilters: []string{"adaptive"},
	}
	e := New(cfg, nil, zap.NewNop())
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := e.RecommendIDs(context.Background(), "java programming", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) == 0 || ids[0] != "java" {
		t.Fatalf("expected java first with the adaptive filter disabled, got %v", ids)
	}
}

func TestFilters(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Filters:         filtering.Config{MaxDuration: 30, RequireRemote: true},
		DisabledFilters: []string{"adaptive"},
	}
	statuses, err := New(cfg, nil, zap.NewNop()).Filters()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(statuses) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(statuses))
	}
	if statuses[0].Name != "max_duration" || statuses[0].Details["max_duration"] != "30" {
		t.Fatalf("unexpected max_duration status: %+v", statuses[0])
	}
	if !statuses[1].Enabled || statuses[1].Details["required"] != "true" {
		t.Fatalf("unexpected remote status: %+v", statuses[1])
	}
	if statuses[2].Enabled || statuses[2].Reason != "disabled in config" {
		t.Fatalf("unexpected adaptive status: %+v", statuses[2])
	}
}

func TestLoadLogsSnapshotTime(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	e := New(Config{}, nil, zap.New(core))
	snap := testSnapshot()
	if err := e.Load(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := observed.FilterMessage("catalog activated").All()
	if len(entries) != 1 {
		t.Fatalf("expected one activation entry, got %d", len(entries))
	}
	loadedAt, ok := entries[0].ContextMap()["loaded_at"].(time.Time)
	if !ok || !loadedAt.Equal(snap.LoadedAt()) {
		t.Fatalf("expected loaded_at %v, got %v", snap.LoadedAt(), entries[0].ContextMap()["loaded_at"])
	}
}

func TestExpandLinks(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{page: "We need a Python engineer"}
	e := New(Config{ExpandLinks: true}, nil, zap.NewNop(), WithFetcher(fetcher))
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := e.RankIDs(context.Background(), "see https://jobs.example.com/42 for details", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) == 0 || ids[0] != "python" {
		t.Fatalf("expected python first, got %v", ids)
	}
	if diff := cmp.Diff([]string{"https://jobs.example.com/42"}, fetcher.urls); diff != "" {
		t.Fatalf("unexpected fetched urls (-want +got):\n%s", diff)
	}
}

func TestExpandLinksFailure(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	fetcher := &stubFetcher{err: errors.New("boom")}
	e := New(Config{ExpandLinks: true}, nil, zap.New(core), WithFetcher(fetcher))
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := e.RankIDs(context.Background(), "java https://jobs.example.com/42", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) == 0 || ids[0] != "java" {
		t.Fatalf("expected java first, got %v", ids)
	}
	if observed.FilterMessage("job page is not available, ranking the query as is").Len() != 1 {
		t.Fatalf("expected a warning about the job page")
	}
}

func TestDenseStrategy(t *testing.T) {
	t.Parallel()

	cfg := Config{Scoring: scoring.Config{Strategy: scoring.StrategyHybrid}}
	e := New(cfg, embed.NewHashing(256), zap.NewNop())
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Strategy() != "hybrid" {
		t.Fatalf("unexpected strategy %q", e.Strategy())
	}

	ids, err := e.RankIDs(context.Background(), "python programming", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) == 0 || ids[0] != "python" {
		t.Fatalf("expected python first, got %v", ids)
	}
}

// queryDropper embeds documents normally and returns no vectors for queries.
type queryDropper struct {
	inner embed.Embedder
}

func (d queryDropper) ModelID() string { return "dropper" }

func (d queryDropper) Embed(ctx context.Context, texts []string, kind embed.Kind) ([][]float32, error) {
	if kind == embed.KindQuery {
		return nil, nil
	}
	return d.inner.Embed(ctx, texts, kind)
}

func TestDenseQueryWithoutVector(t *testing.T) {
	t.Parallel()

	cfg := Config{Scoring: scoring.Config{Strategy: scoring.StrategyDense}}
	e := New(cfg, queryDropper{inner: embed.NewHashing(64)}, zap.NewNop())
	if err := e.Load(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.RankIDs(context.Background(), "python programming", 3); err == nil {
		t.Fatalf("expected an error when the embedder returns no query vector")
	}
}

func TestDenseWithoutEmbedder(t *testing.T) {
	t.Parallel()

	e := New(Config{Scoring: scoring.Config{Strategy: scoring.StrategyDense}}, nil, zap.NewNop())
	if err := e.Load(context.Background(), testSnapshot()); err == nil {
		t.Fatalf("expected error without an embedder")
	}
	if e.Snapshot() != nil {
		t.Fatalf("failed load must not activate a snapshot")
	}
}

func TestReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	t.Parallel()

	e := New(Config{}, nil, zap.NewNop())
	src := catalog.RowsSource{Label: "memory", Data: []catalog.Row{
		{"name": "Java 8", "url": "https://www.shl.com/view/java-8/", "description": "Java test",
			"test_type": "K", "duration": "30"},
	}}

	first, err := e.Reload(context.Background(), src, catalog.LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = e.Reload(context.Background(), catalog.RowsSource{Label: "empty"}, catalog.LoadOptions{})
	if !errors.Is(err, catalog.ErrCatalogLoad) {
		t.Fatalf("expected ErrCatalogLoad, got %v", err)
	}
	if e.Snapshot() != first {
		t.Fatalf("expected the previous snapshot to stay active")
	}

	ids, err := e.RankIDs(context.Background(), "java", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"https://www.shl.com/view/java-8"}, ids); diff != "" {
		t.Fatalf("unexpected ids (-want +got):\n%s", diff)
	}
}
