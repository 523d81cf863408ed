package scoring

import (
	"errors"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/query"
)

// Weighted pairs a member scorer with its share in a Hybrid.
type Weighted struct {
	Scorer Scorer
	Weight float64
}

// Hybrid is the weighted mean of its members' scores, each rescaled to
// [0, 1] by the member's bounds.
type Hybrid struct {
	members []Weighted
	total   float64
}

func NewHybrid(members ...Weighted) (*Hybrid, error) {
	h := &Hybrid{}
	for _, m := range members {
		if m.Scorer == nil || m.Weight <= 0 {
			continue
		}
		lo, hi := m.Scorer.Bounds()
		if hi <= lo {
			return nil, errors.New("hybrid member has an empty score range")
		}
		h.members = append(h.members, m)
		h.total += m.Weight
	}
	if len(h.members) == 0 {
		return nil, errors.New("hybrid scoring needs at least one member with positive weight")
	}
	return h, nil
}

func (h *Hybrid) Name() string { return string(StrategyHybrid) }

func (h *Hybrid) Bounds() (float64, float64) { return 0, 1 }

func (h *Hybrid) NeedsQueryVector() bool {
	for _, m := range h.members {
		if m.Scorer.NeedsQueryVector() {
			return true
		}
	}
	return false
}

func (h *Hybrid) Score(q *query.Query, r *catalog.Record) float64 {
	var sum float64
	for _, m := range h.members {
		lo, hi := m.Scorer.Bounds()
		s := clamp(m.Scorer.Score(q, r), lo, hi)
		sum += m.Weight * (s - lo) / (hi - lo)
	}
	return clamp(sum/h.total, 0, 1)
}
