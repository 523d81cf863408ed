package eval

// RecallAtK is the share of distinct relevant identifiers found in the first
// k ranked identifiers. It returns 0 for an empty relevant set.
func RecallAtK(ranked, relevant []string, k int) float64 {
	want := toSet(relevant)
	if len(want) == 0 {
		return 0
	}

	found := make(map[string]struct{}, len(want))
	for _, id := range top(ranked, k) {
		if _, ok := want[id]; ok {
			found[id] = struct{}{}
		}
	}
	return float64(len(found)) / float64(len(want))
}

// AveragePrecisionAtK averages precision@i over the positions i <= k that hold
// a relevant identifier. It returns 0 when no relevant identifier is ranked.
func AveragePrecisionAtK(ranked, relevant []string, k int) float64 {
	want := toSet(relevant)
	if len(want) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(want))
	hits := 0
	sum := 0.0
	for i, id := range top(ranked, k) {
		if _, ok := want[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		hits++
		sum += float64(hits) / float64(i+1)
	}
	if hits == 0 {
		return 0
	}
	return sum / float64(hits)
}

func top(ranked []string, k int) []string {
	if k < 0 {
		k = 0
	}
	if len(ranked) > k {
		return ranked[:k]
	}
	return ranked
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
