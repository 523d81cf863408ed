package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/validation"
)

// ErrCatalogLoad marks a catalog that cannot be served: the source is empty
// or none of its rows produced a valid record.
var ErrCatalogLoad = errors.New("catalog load failed")

// LoadError describes a fatal catalog load. It matches ErrCatalogLoad with errors.Is.
type LoadError struct {
	Source   string
	Rows     int
	Rejected int
	Err      error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: source %q: %d rows, %d rejected", ErrCatalogLoad, e.Source, e.Rows, e.Rejected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCatalogLoad}
	}
	return []error{ErrCatalogLoad, e.Err}
}

// LoadOptions tunes how raw rows become records.
type LoadOptions struct {
	BaseURL string
}

type rawRecord struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	Description string `mapstructure:"description"`
	Duration    any    `mapstructure:"duration"`
	Length      any    `mapstructure:"length"`
	Remote      any    `mapstructure:"remote_support"`
	Adaptive    any    `mapstructure:"adaptive_support"`
	TestTypes   any    `mapstructure:"test_types"`
	Skills      any    `mapstructure:"skills"`
}

// Load reads every row from src and builds a snapshot. Rows that do not
// produce a valid record are logged and skipped.
func Load(ctx context.Context, src Source, opts LoadOptions, logger *zap.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now()

	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	if len(rows) == 0 {
		return nil, &LoadError{Source: src.Name(), Err: errors.New("source is empty")}
	}

	records := make([]Record, 0, len(rows))
	rejected := 0
	for i, row := range rows {
		rec, err := parseRow(row, opts.BaseURL)
		if err != nil {
			rejected++
			logger.Warn("rejecting catalog record",
				zap.Int("row", i+1),
				zap.Any("name", row["name"]),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &LoadError{Source: src.Name(), Rows: len(rows), Rejected: rejected, Err: errors.New("no record parsed")}
	}

	snap := NewSnapshot(opts.BaseURL, records)
	snap.rejected = rejected

	logger.Info("catalog loaded",
		zap.String("source", src.Name()),
		zap.Int("rows", len(rows)),
		zap.Int("records", snap.Len()),
		zap.Int("rejected", rejected),
		zap.Int("duplicates", len(records)-snap.Len()),
		zap.Duration("took", time.Since(started)),
	)

	return snap, nil
}

func parseRow(row Row, baseURL string) (Record, error) {
	var raw rawRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return Record{}, err
	}
	if err := decoder.Decode(map[string]any(row)); err != nil {
		return Record{}, fmt.Errorf("decoding row: %w", err)
	}

	rec := Record{
		Name:        cleanText(raw.Name),
		Description: cleanText(raw.Description),
		TestTypes:   parseList(raw.TestTypes),
		Skills:      parseList(raw.Skills),
	}

	duration := raw.Duration
	if isBlank(duration) {
		duration = raw.Length
	}
	if rec.Duration, err = parseDuration(duration); err != nil {
		return Record{}, err
	}
	if rec.RemoteSupport, err = parseFlag(raw.Remote); err != nil {
		return Record{}, fmt.Errorf("remote support: %w", err)
	}
	if rec.AdaptiveSupport, err = parseFlag(raw.Adaptive); err != nil {
		return Record{}, fmt.Errorf("adaptive support: %w", err)
	}

	link := cleanText(raw.URL)
	if link == "" && rec.Name != "" {
		link = productPath + slug(rec.Name)
	}
	if link != "" {
		if rec.ID, err = CanonicalID(link, baseURL); err != nil {
			return Record{}, err
		}
	}

	if len(rec.Skills) == 0 {
		rec.Skills = skillsFor(rec.TestTypes)
	}
	if rec.Description == "" && rec.Name != "" && len(rec.TestTypes) > 0 {
		rec.Description = describe(&rec)
	}

	if err := validation.Struct(rec); err != nil {
		return Record{}, err
	}

	return rec, nil
}

var digitsRe = regexp.MustCompile(`\d+`)

func parseDuration(v any) (int, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if math.IsNaN(d) {
			return 0, nil
		}
		if d < 0 {
			return 0, fmt.Errorf("negative duration %v", d)
		}
		return int(d), nil
	case int:
		if d < 0 {
			return 0, fmt.Errorf("negative duration %d", d)
		}
		return d, nil
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	match := digitsRe.FindString(s)
	if match == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	return n, nil
}

func parseFlag(v any) (bool, error) {
	switch f := v.(type) {
	case nil:
		return false, nil
	case bool:
		return f, nil
	case float64:
		return f != 0, nil
	}

	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
	case "yes", "y", "true", "1":
		return true, nil
	case "no", "n", "false", "0", "", "nan", "-":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognised flag value %q", fmt.Sprint(v))
	}
}

func parseList(v any) []string {
	var items []string
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range l {
			if item != nil {
				items = append(items, fmt.Sprint(item))
			}
		}
	case []string:
		items = l
	default:
		items = strings.FieldsFunc(fmt.Sprint(v), func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		})
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = cleanText(item)
		if item == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(item)]; ok {
			continue
		}
		seen[strings.ToLower(item)] = struct{}{}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return cleanText(s) == ""
	}
	return false
}
