package query

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be been being but by can could do does for from
		has have having he her his i if in into is it its itself me my need needs of on or our ours
		she should so than that the their them then there these they this those to too us was we were
		what when where which while who whom why will with would you your yours also any all about
		looking seeking want wants must able etc per via`) {
		stopwords[w] = struct{}{}
	}
}

// Tokenize splits normalized text into scoring terms. Letters, digits and the
// symbols + # . are kept inside a term so c++, c# and .net survive; stopwords
// and single characters other than c and r are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.')
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimRight(f, ".")
		if strings.HasPrefix(f, "..") {
			f = strings.TrimLeft(f, ".")
		}
		if f == "" || f == "." {
			continue
		}
		if utf8.RuneCountInString(f) == 1 && f != "c" && f != "r" {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

var (
	maxDurationRe = regexp.MustCompile(`(?:under|less than|within|max|maximum|at most|no more than|up to)\s*(\d+)\s*(min|mins|minutes|minute|hour|hours|hr|hrs)\b`)
	urlRe         = regexp.MustCompile(`https?://[^\s,]+`)
)

// ExtractHints finds duration, remote and adaptive constraints in normalized text.
func ExtractHints(text string) Hints {
	var h Hints

	if m := maxDurationRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if strings.HasPrefix(m[2], "h") {
				n *= 60
			}
			h.MaxDuration = n
		}
	}

	h.Remote = strings.Contains(text, "remote")
	h.Adaptive = strings.Contains(text, "adaptive")

	return h
}

// FirstURL returns the first http(s) link in raw, or an empty string.
func FirstURL(raw string) string {
	return strings.TrimRight(urlRe.FindString(raw), ".);")
}
