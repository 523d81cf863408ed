package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spigell/assessment-recommender/internal/eval"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	report := &eval.Report{
		K:          3,
		MeanRecall: 0.5,
		MAP:        0.25,
		Included:   2,
		Excluded:   1,
		Cases: []eval.CaseResult{
			{Query: "java", Recall: 1, AP: 0.5},
			{Query: "sales", Error: "query is empty after normalization"},
			{Query: "unlabeled", Excluded: true},
		},
	}

	first, err := store.Record(ctx, Meta{Strategy: "lexical", CaseFile: "cases.yaml", CatalogSize: 10}, report)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := store.Record(ctx, Meta{Strategy: "hybrid", Model: "hashing-512", CatalogSize: 10}, report)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct run ids")
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs[1].Strategy != "lexical" || runs[1].K != 3 || runs[1].MeanRecall != 0.5 || runs[1].MAP != 0.25 {
		t.Fatalf("unexpected stored run %+v", runs[1])
	}
	if !runs[1].CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected created time %v, got %v", first.CreatedAt, runs[1].CreatedAt)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 run, got %d", len(limited))
	}

	run, cases, err := store.Run(ctx, first.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.CaseFile != "cases.yaml" {
		t.Fatalf("unexpected case file %q", run.CaseFile)
	}
	want := []CaseScore{
		{Position: 1, Query: "java", Recall: 1, AP: 0.5},
		{Position: 2, Query: "sales", Error: "query is empty after normalization"},
		{Position: 3, Query: "unlabeled", Excluded: true},
	}
	if diff := cmp.Diff(want, cases); diff != "" {
		t.Fatalf("unexpected cases (-want +got):\n%s", diff)
	}
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	if _, _, err := store.Run(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestOpenTwice(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}
