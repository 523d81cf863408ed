// Package query turns raw user input (a short query or a pasted job
// description) into the canonical form every scorer consumes.
//
// Normalization runs NFKC, strips markup when the input is classified as a
// job description, case-folds, and collapses whitespace. Input is a job
// description when it contains HTML tags or entities, or when it is at least
// DescriptionThreshold runes long. The output never contains markup, so
// normalizing it again is a no-op.
package query

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultDescriptionThreshold is the rune count from which plain input is treated as a job description.
const DefaultDescriptionThreshold = 300

// ErrEmptyQuery is returned when nothing is left after normalization.
var ErrEmptyQuery = errors.New("query is empty after normalization")

// Kind classifies the raw input.
type Kind string

const (
	KindShort       Kind = "short"
	KindDescription Kind = "description"
)

// Hints are optional constraints found in the query text. Zero values mean
// no constraint.
type Hints struct {
	MaxDuration int
	Remote      bool
	Adaptive    bool
}

// Query is a normalized query. Vector is filled by the engine when the
// configured scorer needs a dense representation.
type Query struct {
	Text   string
	Terms  []string
	Kind   Kind
	Hints  Hints
	Vector []float32
}

// Normalizer canonicalises raw query text. The zero value uses DefaultDescriptionThreshold.
type Normalizer struct {
	DescriptionThreshold int
}

var (
	blockRe  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)\s*>`)
	tagRe    = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	entityRe = regexp.MustCompile(`(?i)&(?:#[0-9]+|#x[0-9a-f]+|[a-z][a-z0-9]*);`)
)

// Normalize returns the canonical form of raw. It is a pure function of raw.
func (n Normalizer) Normalize(raw string) (*Query, error) {
	text := norm.NFKC.String(raw)

	kind := KindShort
	if n.isDescription(text) {
		kind = KindDescription
		text = StripMarkup(text)
	}

	// Casers are stateful, so each call gets its own.
	text = norm.NFKC.String(cases.Fold().String(text))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil, ErrEmptyQuery
	}

	return &Query{
		Text:  text,
		Terms: Tokenize(text),
		Kind:  kind,
		Hints: ExtractHints(text),
	}, nil
}

func (n Normalizer) isDescription(text string) bool {
	if tagRe.MatchString(text) || entityRe.MatchString(text) {
		return true
	}
	threshold := n.DescriptionThreshold
	if threshold <= 0 {
		threshold = DefaultDescriptionThreshold
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= threshold
}

// StripMarkup removes script and style blocks, tags and entities, leaving a
// space where each was.
func StripMarkup(text string) string {
	text = blockRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	return entityRe.ReplaceAllString(text, " ")
}
