package catalog

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Snapshot.Get for unknown identifiers.
var ErrNotFound = errors.New("assessment not found")

// Snapshot is an immutable, point-in-time view of the catalog. It is safe for
// concurrent use; a reload builds a new Snapshot instead of mutating this one.
type Snapshot struct {
	records  []*Record
	index    map[string]int
	names    map[string]string
	baseURL  string
	rejected int
	loadedAt time.Time
}

// NewSnapshot builds a snapshot from already normalised records. Duplicate
// identifiers collapse to the later record, which takes the slot where the
// identifier first appeared.
func NewSnapshot(baseURL string, records []Record) *Snapshot {
	s := &Snapshot{
		records:  make([]*Record, 0, len(records)),
		index:    make(map[string]int, len(records)),
		names:    make(map[string]string, len(records)),
		baseURL:  baseURL,
		loadedAt: time.Now(),
	}

	for i := range records {
		rec := records[i]
		if pos, ok := s.index[rec.ID]; ok {
			s.records[pos] = &rec
			continue
		}
		s.index[rec.ID] = len(s.records)
		s.records = append(s.records, &rec)
	}

	for _, rec := range s.records {
		s.names[nameKey(rec.Name)] = rec.ID
	}

	return s
}

// All returns records in load order. The returned slice is a copy; the records are shared.
func (s *Snapshot) All() []*Record {
	if s == nil {
		return nil
	}
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given identifier or ErrNotFound.
func (s *Snapshot) Get(id string) (*Record, error) {
	if s == nil {
		return nil, ErrNotFound
	}
	pos, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.records[pos], nil
}

// Len returns the number of unique records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Rejected returns how many source rows were dropped during load.
func (s *Snapshot) Rejected() int {
	if s == nil {
		return 0
	}
	return s.rejected
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// BaseURL returns the base used to canonicalise relative links.
func (s *Snapshot) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

// Resolve maps a ground-truth reference to a catalog identifier. Links are
// canonicalised; anything else is matched against product names ignoring
// case. Unknown references are returned canonicalised (or trimmed) so they
// can never match a catalog record by accident.
func (s *Snapshot) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if looksLikeLink(ref) {
		if id, err := CanonicalID(ref, s.BaseURL()); err == nil {
			return id
		}
		return ref
	}
	if s != nil {
		if id, ok := s.names[nameKey(ref)]; ok {
			return id
		}
	}
	return ref
}

func nameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
