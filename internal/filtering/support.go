package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
)

// supportFilter drops assessments lacking a support flag when the flag is
// required by configuration or requested in the query.
type supportFilter struct {
	name      string
	disabled  bool
	reason    string
	required  bool
	fromQuery bool

	requiredBy func(cfg *Config) bool
	requested  func(h query.Hints) bool
	supports   func(r *catalog.Record) bool
}

// NewRemote creates a filter that keeps only remotely deliverable assessments.
func NewRemote() Filter {
	return &supportFilter{
		name:       "remote",
		requiredBy: func(cfg *Config) bool { return cfg.RequireRemote },
		requested:  func(h query.Hints) bool { return h.Remote },
		supports:   func(r *catalog.Record) bool { return r.RemoteSupport },
	}
}

// NewAdaptive creates a filter that keeps only adaptive (IRT) assessments.
func NewAdaptive() Filter {
	return &supportFilter{
		name:       "adaptive",
		requiredBy: func(cfg *Config) bool { return cfg.RequireAdaptive },
		requested:  func(h query.Hints) bool { return h.Adaptive },
		supports:   func(r *catalog.Record) bool { return r.AdaptiveSupport },
	}
}

func (f *supportFilter) Name() string { return f.name }

func (f *supportFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *supportFilter) IsEnabled() bool { return !f.disabled }

func (f *supportFilter) Validate(cfg *Config) error {
	f.required, f.fromQuery = false, false
	if cfg != nil {
		f.required = f.requiredBy(cfg)
		f.fromQuery = cfg.UseQueryHints
	}
	return nil
}

func (f *supportFilter) Apply(_ context.Context, _ Deps, q *query.Query, res *rank.Result) (*rank.Result, Step, error) {
	active := f.required || (f.fromQuery && q != nil && f.requested(q.Hints))
	if !active {
		return res, Step{Initial: res.Len(), Left: res.Len()}, nil
	}

	out, step := keep(res, func(c rank.Candidate) bool {
		return f.supports(c.Record)
	})
	return out, step, nil
}

func (f *supportFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"required":   strconv.FormatBool(f.required),
			"from_query": strconv.FormatBool(f.fromQuery),
		},
	}
}
