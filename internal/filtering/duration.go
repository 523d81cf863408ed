package filtering

import (
	"context"
	"errors"
	"strconv"

	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
)

type maxDurationFilter struct {
	disabled  bool
	reason    string
	fixed     int
	fromQuery bool
}

// NewMaxDuration creates a filter that drops assessments longer than allowed.
// Assessments without a specified duration always pass.
func NewMaxDuration() Filter {
	return &maxDurationFilter{}
}

func (f *maxDurationFilter) Name() string { return "max_duration" }

func (f *maxDurationFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *maxDurationFilter) IsEnabled() bool { return !f.disabled }

func (f *maxDurationFilter) Validate(cfg *Config) error {
	f.fixed, f.fromQuery = 0, false
	if cfg == nil {
		return nil
	}
	if cfg.MaxDuration < 0 {
		return errors.New("max duration must not be negative")
	}
	f.fixed = cfg.MaxDuration
	f.fromQuery = cfg.UseQueryHints
	return nil
}

func (f *maxDurationFilter) Apply(_ context.Context, _ Deps, q *query.Query, res *rank.Result) (*rank.Result, Step, error) {
	limit := f.fixed
	if f.fromQuery && q != nil && q.Hints.MaxDuration > 0 && (limit == 0 || q.Hints.MaxDuration < limit) {
		limit = q.Hints.MaxDuration
	}
	if limit == 0 {
		return res, Step{Initial: res.Len(), Left: res.Len()}, nil
	}

	out, step := keep(res, func(c rank.Candidate) bool {
		return !c.Record.HasDuration() || c.Record.Duration <= limit
	})
	return out, step, nil
}

func (f *maxDurationFilter) Status() Status {
	details := map[string]string{"from_query": strconv.FormatBool(f.fromQuery)}
	if f.fixed > 0 {
		details["max_duration"] = strconv.Itoa(f.fixed)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
