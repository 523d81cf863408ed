package filtering

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
)

func ranked() *rank.Result {
	records := []*catalog.Record{
		{ID: "long-remote", Duration: 60, RemoteSupport: true},
		{ID: "short-adaptive", Duration: 15, AdaptiveSupport: true},
		{ID: "unknown-remote-adaptive", RemoteSupport: true, AdaptiveSupport: true},
		{ID: "short-remote", Duration: 20, RemoteSupport: true},
	}
	res := &rank.Result{}
	for i, r := range records {
		res.Items = append(res.Items, rank.Candidate{Record: r, Score: 1 - float64(i)/10})
	}
	res.Renumber()
	return res
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    *Config
		query  string
		expect []string
	}{
		{
			name:   "no constraints",
			cfg:    &Config{UseQueryHints: true},
			query:  "java developer",
			expect: []string{"long-remote", "short-adaptive", "unknown-remote-adaptive", "short-remote"},
		},
		{
			name:   "duration from query keeps unknown durations",
			cfg:    &Config{UseQueryHints: true},
			query:  "test under 30 minutes",
			expect: []string{"short-adaptive", "unknown-remote-adaptive", "short-remote"},
		},
		{
			name:   "remote and adaptive from query",
			cfg:    &Config{UseQueryHints: true},
			query:  "remote adaptive test",
			expect: []string{"unknown-remote-adaptive"},
		},
		{
			name:   "hints ignored without UseQueryHints",
			cfg:    &Config{},
			query:  "remote test under 10 minutes",
			expect: []string{"long-remote", "short-adaptive", "unknown-remote-adaptive", "short-remote"},
		},
		{
			name:   "fixed requirements",
			cfg:    &Config{MaxDuration: 30, RequireRemote: true},
			query:  "anything",
			expect: []string{"unknown-remote-adaptive", "short-remote"},
		},
		{
			name:   "stricter of fixed and query duration",
			cfg:    &Config{MaxDuration: 30, UseQueryHints: true},
			query:  "within 18 mins",
			expect: []string{"short-adaptive", "unknown-remote-adaptive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q, err := query.Normalizer{}.Normalize(tt.query)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}

			input := ranked()
			out, err := Run(context.Background(), tt.cfg, Deps{Logger: zap.NewNop()}, Default(), q, input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expect, out.IDs()); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
			for i, c := range out.Items {
				if c.Rank != i+1 {
					t.Fatalf("expected renumbered rank %d, got %d", i+1, c.Rank)
				}
			}
			if input.Len() != 4 {
				t.Fatalf("input result must not be modified")
			}
		})
	}
}

func TestRunFallsBackToBestMatch(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	q, _ := query.Normalizer{}.Normalize("remote adaptive test")

	input := ranked()
	input.Items = append(input.Items[:2], input.Items[3])

	out, err := Run(context.Background(), &Config{UseQueryHints: true}, Deps{Logger: zap.New(core)}, Default(), q, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"long-remote"}, out.IDs()); diff != "" {
		t.Fatalf("expected fallback to top item (-want +got):\n%s", diff)
	}
	if observed.Len() != 1 {
		t.Fatalf("expected fallback to be logged, got %d entries", observed.Len())
	}

	empty, err := Run(context.Background(), &Config{}, Deps{}, Default(), q, &rank.Result{})
	if err != nil || empty.Len() != 0 {
		t.Fatalf("expected empty result to stay empty, got %v, %v", empty, err)
	}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Config{MaxDuration: -1}, Deps{}, Default(), nil, ranked())
	if err == nil {
		t.Fatalf("expected validation error")
	}

	steps := Default()
	DisableByName(steps, "max_duration", "disabled in config")
	if _, err := Run(context.Background(), &Config{MaxDuration: -1}, Deps{}, steps, nil, ranked()); err != nil {
		t.Fatalf("disabled filters must not be validated: %v", err)
	}
}

type failingFilter struct{ maxDurationFilter }

func (f *failingFilter) Name() string { return "failing" }

func (f *failingFilter) Apply(context.Context, Deps, *query.Query, *rank.Result) (*rank.Result, Step, error) {
	return nil, Step{}, errors.New("boom")
}

func TestRunStepError(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Config{}, Deps{}, []Filter{&failingFilter{}}, nil, ranked())
	if err == nil || err.Error() != "failing: boom" {
		t.Fatalf("expected step error, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	steps := Default()
	DisableByName(steps, "adaptive", "not offered")
	if err := steps[0].Validate(&Config{MaxDuration: 45, UseQueryHints: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := Describe(steps)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Details["max_duration"] != "45" || statuses[0].Details["from_query"] != "true" {
		t.Fatalf("unexpected max_duration status: %+v", statuses[0])
	}
	if statuses[2].Enabled || statuses[2].Reason != "not offered" {
		t.Fatalf("unexpected adaptive status: %+v", statuses[2])
	}
}
