// Package output renders recommendations, evaluation reports and run history
// for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/eval"
	"github.com/spigell/assessment-recommender/internal/history"
	"github.com/spigell/assessment-recommender/internal/rank"
)

// Format selects how results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" and "json"; empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Assessment is the public view of a recommended record.
type Assessment struct {
	URL             string   `json:"url"`
	AdaptiveSupport string   `json:"adaptive_support"`
	Description     string   `json:"description"`
	Duration        int      `json:"duration"`
	RemoteSupport   string   `json:"remote_support"`
	TestType        []string `json:"test_type"`
}

// Assessments converts a ranked result into its public view.
func Assessments(res *rank.Result) []Assessment {
	out := make([]Assessment, 0, res.Len())
	if res == nil {
		return out
	}
	for _, c := range res.Items {
		r := c.Record
		types := append([]string{}, r.TestTypes...)
		out = append(out, Assessment{
			URL:             r.ID,
			AdaptiveSupport: catalog.YesNo(r.AdaptiveSupport),
			Description:     r.Description,
			Duration:        r.Duration,
			RemoteSupport:   catalog.YesNo(r.RemoteSupport),
			TestType:        types,
		})
	}
	return out
}

// Write prints data to w in the given format.
func Write(w io.Writer, format Format, data any) error {
	if format == FormatJSON {
		return JSON(w, data)
	}
	return Table(w, data)
}

// JSON writes data as indented JSON. Ranked results use the public view.
func JSON(w io.Writer, data any) error {
	if res, ok := data.(*rank.Result); ok {
		data = map[string]any{"recommended_assessments": Assessments(res)}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Table writes data as a formatted table.
func Table(w io.Writer, data any) error {
	switch v := data.(type) {
	case *rank.Result:
		return resultTable(w, v)
	case *eval.Report:
		return reportTable(w, v)
	case []history.Run:
		return runsTable(w, v)
	default:
		return fmt.Errorf("unsupported data type for table output: %T", data)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
