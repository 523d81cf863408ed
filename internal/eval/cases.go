package eval

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Resolver maps a ground-truth reference (link or product name) to a catalog identifier.
type Resolver interface {
	Resolve(ref string) string
}

type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads labeled cases from a YAML or CSV file.
//
// YAML files hold a top-level "cases" list of {query, relevant}. CSV files
// need a query column and either a list column (relevant_assessments) or a
// single reference column (assessment_url); rows sharing a query are merged.
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening case file: %w", err)
	}
	defer f.Close()

	var cases []Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cases, err = decodeYAML(f)
	case ".csv":
		cases, err = decodeCSV(f)
	default:
		return nil, fmt.Errorf("unsupported case file %q", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return cases, nil
}

// ResolveCases returns a copy of cases with references resolved to catalog identifiers.
func ResolveCases(cases []Case, r Resolver) []Case {
	out := make([]Case, len(cases))
	for i, c := range cases {
		out[i] = Case{Query: c.Query}
		seen := make(map[string]struct{}, len(c.Relevant))
		for _, ref := range c.Relevant {
			id := r.Resolve(ref)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out[i].Relevant = append(out[i].Relevant, id)
		}
	}
	return out
}

func decodeYAML(r io.Reader) ([]Case, error) {
	var file caseFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return file.Cases, nil
}

var (
	queryColumns = map[string]bool{"query": true, "queries": true}
	listColumns  = map[string]bool{"relevant_assessments": true, "relevant": true}
	refColumns   = map[string]bool{"assessment_url": true, "assessment url": true, "url": true, "assessment": true}
)

func decodeCSV(r io.Reader) ([]Case, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	queryCol, listCol, refCol := -1, -1, -1
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case queryColumns[key]:
			queryCol = i
		case listColumns[key]:
			listCol = i
		case refColumns[key]:
			refCol = i
		}
	}
	if queryCol < 0 || (listCol < 0 && refCol < 0) {
		return nil, fmt.Errorf("header %v needs a query column and a relevant column", header)
	}

	var cases []Case
	index := make(map[string]int)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if queryCol >= len(row) {
			continue
		}

		q := strings.TrimSpace(row[queryCol])
		var refs []string
		if listCol >= 0 && listCol < len(row) {
			refs = append(refs, ParseList(row[listCol])...)
		}
		if refCol >= 0 && refCol < len(row) {
			if ref := strings.TrimSpace(row[refCol]); ref != "" {
				refs = append(refs, ref)
			}
		}

		if pos, ok := index[q]; ok {
			cases[pos].Relevant = append(cases[pos].Relevant, refs...)
			continue
		}
		index[q] = len(cases)
		cases = append(cases, Case{Query: q, Relevant: refs})
	}
	return cases, nil
}

var quotedRe = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"`)

// ParseList reads a list cell written as a JSON array, a bracketed list of
// quoted strings, or plain text separated by semicolons.
func ParseList(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	if strings.HasPrefix(cell, "[") && strings.HasSuffix(cell, "]") {
		var list []string
		if err := json.Unmarshal([]byte(cell), &list); err == nil {
			return compact(list)
		}

		if matches := quotedRe.FindAllStringSubmatch(cell, -1); matches != nil {
			for _, m := range matches {
				list = append(list, m[1]+m[2])
			}
			return compact(list)
		}
		cell = strings.TrimSuffix(strings.TrimPrefix(cell, "["), "]")
		return compact(strings.Split(cell, ","))
	}

	return compact(strings.Split(cell, ";"))
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
