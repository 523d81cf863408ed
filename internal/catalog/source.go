package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// Row is one raw record as produced by the scraper, keyed by field name.
type Row map[string]any

// Source yields the raw rows a catalog is built from.
type Source interface {
	Name() string
	Rows(ctx context.Context) ([]Row, error)
}

// CSVSource reads scraper output in CSV form. The first line is the header.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return s.Path }

func (s CSVSource) Rows(ctx context.Context) ([]Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog csv: %w", err)
	}
	defer f.Close()

	return readCSV(ctx, f)
}

func readCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog csv header: %w", err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = fieldKey(h)
	}

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog csv: %w", err)
		}

		row := make(Row, len(values))
		for i, v := range values {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			row[keys[i]] = v
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// JSONSource reads scraper output as a JSON array of objects.
type JSONSource struct {
	Path string
}

func (s JSONSource) Name() string { return s.Path }

func (s JSONSource) Rows(_ context.Context) ([]Row, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog json: %w", err)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) ([]Row, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("decoding catalog json: %w", err)
	}

	rows := make([]Row, 0, len(objects))
	for _, obj := range objects {
		row := make(Row, len(obj))
		for k, v := range obj {
			if key := fieldKey(k); key != "" {
				row[key] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RowsSource serves rows that are already in memory, e.g. straight from a scraper run.
type RowsSource struct {
	Label string
	Data  []Row
}

func (s RowsSource) Name() string { return s.Label }

func (s RowsSource) Rows(_ context.Context) ([]Row, error) {
	out := make([]Row, 0, len(s.Data))
	for _, row := range s.Data {
		normalized := make(Row, len(row))
		for k, v := range row {
			if key := fieldKey(k); key != "" {
				normalized[key] = v
			}
		}
		out = append(out, normalized)
	}
	return out, nil
}

// NewFileSource picks a source for path. format is "csv", "json" or empty to
// decide by file extension.
func NewFileSource(path, format string) (Source, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	switch format {
	case "csv":
		return CSVSource{Path: path}, nil
	case "json":
		return JSONSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
}

var fieldAliases = map[string]string{
	"assessment name":   "name",
	"name":              "name",
	"relative url":      "url",
	"url":               "url",
	"link":              "url",
	"description":       "description",
	"duration in mins":  "duration",
	"duration":          "duration",
	"assessment length": "length",
	"remote testing":    "remote_support",
	"remote_support":    "remote_support",
	"remote":            "remote_support",
	"adaptive/irt":      "adaptive_support",
	"adaptive_support":  "adaptive_support",
	"adaptive":          "adaptive_support",
	"test type":         "test_types",
	"test_type":         "test_types",
	"test_types":        "test_types",
	"skills":            "skills",
}

func fieldKey(header string) string {
	key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	return fieldAliases[key]
}
