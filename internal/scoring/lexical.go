package scoring

import (
	"math"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/query"
)

// DefaultNameWeight multiplies term frequencies of words in the record name.
const DefaultNameWeight = 2.0

type termVector struct {
	weights map[string]float64
	norm    float64
}

// Lexical scores TF-IDF cosine similarity between query terms and record
// text. Range [0, 1].
type Lexical struct {
	idf     map[string]float64
	unseen  float64
	records map[string]termVector
}

// NewLexical precomputes inverse document frequencies and record vectors for snap.
// Smoothed idf: ln((N+1)/(df+1)) + 1.
func NewLexical(snap *catalog.Snapshot, nameWeight float64) *Lexical {
	if nameWeight < 1 {
		nameWeight = DefaultNameWeight
	}

	records := snap.All()
	tfs := make(map[string]map[string]float64, len(records))
	df := make(map[string]int)

	for _, rec := range records {
		tf := termFrequencies(rec.SearchText(), 1)
		for term, n := range termFrequencies(rec.Name, nameWeight-1) {
			tf[term] += n
		}
		for term := range tf {
			df[term]++
		}
		tfs[rec.ID] = tf
	}

	n := float64(len(records))
	l := &Lexical{
		idf:     make(map[string]float64, len(df)),
		unseen:  math.Log(n+1) + 1,
		records: make(map[string]termVector, len(records)),
	}
	for term, d := range df {
		l.idf[term] = math.Log((n+1)/(float64(d)+1)) + 1
	}
	for id, tf := range tfs {
		l.records[id] = l.vectorize(tf)
	}

	return l
}

func (l *Lexical) Name() string { return string(StrategyLexical) }

func (l *Lexical) Bounds() (float64, float64) { return 0, 1 }

func (l *Lexical) NeedsQueryVector() bool { return false }

func (l *Lexical) Score(q *query.Query, r *catalog.Record) float64 {
	if q == nil || r == nil || len(q.Terms) == 0 {
		return 0
	}
	rv, ok := l.records[r.ID]
	if !ok || rv.norm == 0 {
		return 0
	}

	tf := make(map[string]float64, len(q.Terms))
	for _, term := range q.Terms {
		tf[term]++
	}
	qv := l.vectorize(tf)
	if qv.norm == 0 {
		return 0
	}

	var dot float64
	for term, w := range qv.weights {
		dot += w * rv.weights[term]
	}
	return clamp(dot/(qv.norm*rv.norm), 0, 1)
}

func (l *Lexical) vectorize(tf map[string]float64) termVector {
	v := termVector{weights: make(map[string]float64, len(tf))}
	var sum float64
	for term, n := range tf {
		if n <= 0 {
			continue
		}
		idf, ok := l.idf[term]
		if !ok {
			idf = l.unseen
		}
		w := (1 + math.Log(n)) * idf
		v.weights[term] = w
		sum += w * w
	}
	v.norm = math.Sqrt(sum)
	return v
}

func termFrequencies(text string, weight float64) map[string]float64 {
	tf := make(map[string]float64)
	if weight <= 0 {
		return tf
	}
	q, err := query.Normalizer{}.Normalize(text)
	if err != nil {
		return tf
	}
	for _, term := range q.Terms {
		tf[term] += weight
	}
	return tf
}
