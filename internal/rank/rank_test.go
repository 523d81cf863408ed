package rank

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/scoring"
)

// tableScorer returns a fixed score per record id.
type tableScorer map[string]float64

func (s tableScorer) Name() string               { return "table" }
func (s tableScorer) Bounds() (float64, float64) { return 0, 1 }
func (s tableScorer) NeedsQueryVector() bool     { return false }
func (s tableScorer) Score(_ *query.Query, r *catalog.Record) float64 {
	return s[r.ID]
}

func snapshot(ids ...string) *catalog.Snapshot {
	records := make([]catalog.Record, len(ids))
	for i, id := range ids {
		records[i] = catalog.Record{ID: id, Name: id, Description: id, TestTypes: []string{"K"}}
	}
	return catalog.NewSnapshot("", records)
}

var q = &query.Query{Text: "anything", Terms: []string{"anything"}}

func TestRankOrdersByScoreThenID(t *testing.T) {
	t.Parallel()

	snap := snapshot("d", "c", "b", "a", "e")
	scorer := tableScorer{"a": 0.5, "b": 0.9, "c": 0.5, "d": 0.1, "e": 0}

	res, err := (&Ranker{Logger: zap.NewNop()}).Rank(q, snap, scorer, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"b", "a", "c", "d", "e"}, res.IDs()); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	for i, c := range res.Items {
		if c.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, c.Rank)
		}
	}
}

func TestRankLimits(t *testing.T) {
	t.Parallel()

	snap := snapshot("a", "b", "c")
	scorer := tableScorer{"a": 0.3, "b": 0.2, "c": 0.1}
	rk := &Ranker{}

	for _, limit := range []int{0, -1, 11} {
		if _, err := rk.Rank(q, snap, scorer, limit); !errors.Is(err, ErrInvalidLimit) {
			t.Fatalf("limit %d: expected ErrInvalidLimit, got %v", limit, err)
		}
	}

	res, err := rk.Rank(q, snap, scorer, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Len() != 3 {
		t.Fatalf("expected 3 results, got %d", res.Len())
	}

	res, err = rk.Rank(q, snap, scorer, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, res.IDs()); diff != "" {
		t.Fatalf("unexpected truncation (-want +got):\n%s", diff)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()

	rk := &Ranker{}
	res, err := rk.Rank(q, catalog.NewSnapshot("", nil), tableScorer{}, 5)
	if err != nil || res.Len() != 0 {
		t.Fatalf("expected empty result for empty catalog, got %v, %v", res, err)
	}

	res, err = rk.Rank(q, snapshot("a", "b"), tableScorer{}, 5)
	if err != nil || res.Len() != 0 {
		t.Fatalf("expected empty result when every score is minimal, got %v, %v", res, err)
	}
}

func TestRankDeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	ids := make([]string, 500)
	scorer := tableScorer{}
	for i := range ids {
		ids[i] = fmt.Sprintf("rec-%03d", i)
		scorer[ids[i]] = float64(i%7) / 10
	}
	snap := snapshot(ids...)

	want, err := (&Ranker{Workers: 1}).Rank(q, snap, scorer, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, workers := range []int{2, 3, 8, 0} {
		got, err := (&Ranker{Workers: workers}).Rank(q, snap, scorer, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(want.IDs(), got.IDs()); diff != "" {
			t.Fatalf("workers=%d changed the order (-want +got):\n%s", workers, diff)
		}
	}

	seen := map[string]bool{}
	for i, c := range want.Items {
		if seen[c.ID()] {
			t.Fatalf("duplicate id %q", c.ID())
		}
		seen[c.ID()] = true
		if _, err := snap.Get(c.ID()); err != nil {
			t.Fatalf("id %q not in catalog", c.ID())
		}
		if i > 0 && want.Items[i-1].Score < c.Score {
			t.Fatalf("score increased at position %d", i+1)
		}
	}
	if want.Items[0].ID() != "rec-006" || want.Items[1].ID() != "rec-013" {
		t.Fatalf("unexpected head %v", want.IDs()[:2])
	}
}

func TestRankScenarioWithLexicalScorer(t *testing.T) {
	t.Parallel()

	snap := catalog.NewSnapshot("", []catalog.Record{
		{ID: "a", Name: "numerical reasoning test", Description: "numerical reasoning test", TestTypes: []string{"Ability"}},
		{ID: "b", Name: "coding assessment for Python developers", Description: "coding assessment for Python developers", TestTypes: []string{"Knowledge"}},
	})
	nq, err := query.Normalizer{}.Normalize("Python coding skills test")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	res, err := (&Ranker{}).Rank(nq, snap, scoring.NewLexical(snap, 0), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, res.IDs()); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestRankKeepsNonMatchingRecordsBelowLimit(t *testing.T) {
	t.Parallel()

	snap := catalog.NewSnapshot("", []catalog.Record{
		{ID: "a", Name: "numerical reasoning test", Description: "numerical reasoning test", TestTypes: []string{"Ability"}},
		{ID: "b", Name: "python coding assessment", Description: "python coding assessment", TestTypes: []string{"Knowledge"}},
		{ID: "c", Name: "personality questionnaire", Description: "personality questionnaire", TestTypes: []string{"Personality"}},
	})
	nq, err := query.Normalizer{}.Normalize("python")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	res, err := (&Ranker{}).Rank(nq, snap, scoring.NewLexical(snap, 0), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Len() != 3 {
		t.Fatalf("expected every record for limit 10 over 3 records, got %v", res.IDs())
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, res.IDs()); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}
