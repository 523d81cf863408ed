package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
)

// Filter represents a single constraint applied to a ranked result.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, q *query.Query, res *rank.Result) (*rank.Result, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters. Fixed
// requirements always apply; with UseQueryHints the constraints found in the
// query text apply as well.
type Config struct {
	MaxDuration     int
	RequireRemote   bool
	RequireAdaptive bool
	UseQueryHints   bool
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns every constraint filter in the order they run.
func Default() []Filter {
	return []Filter{NewMaxDuration(), NewRemote(), NewAdaptive()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially. When the filters drop every
// item, the top-ranked item of the input is kept so the caller still gets the
// best available match.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, q *query.Query, res *rank.Result) (*rank.Result, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	if res == nil {
		res = &rank.Result{}
	}

	current := res
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, q, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil && info.Dropped > 0 {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		current = next
	}

	if current.Len() == 0 && res.Len() > 0 {
		if deps.Logger != nil {
			deps.Logger.Info("no recommendation satisfies the constraints; keeping the best match",
				zap.String("id", res.Items[0].ID()),
			)
		}
		current = &rank.Result{Items: []rank.Candidate{res.Items[0]}}
	}

	out := &rank.Result{Items: append([]rank.Candidate(nil), current.Items...)}
	out.Renumber()
	return out, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns a new result with the candidates accepted by fn.
func keep(res *rank.Result, fn func(rank.Candidate) bool) (*rank.Result, Step) {
	initial := res.Len()
	out := &rank.Result{Items: make([]rank.Candidate, 0, initial)}
	if res != nil {
		for _, c := range res.Items {
			if fn(c) {
				out.Items = append(out.Items, c)
			}
		}
	}
	return out, Step{Initial: initial, Dropped: initial - out.Len(), Left: out.Len()}
}
