// Package history keeps evaluation runs in a local SQLite database so
// scoring changes can be compared over time.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/assessment-recommender/internal/eval"
)

//go:embed migrations/001_initial.sql
var initialMigration string

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned by Run for unknown identifiers.
var ErrRunNotFound = errors.New("evaluation run not found")

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Meta describes the configuration an evaluation ran with.
type Meta struct {
	Strategy    string
	Model       string
	CaseFile    string
	CatalogSize int
}

// Run is a recorded evaluation.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Strategy    string
	Model       string
	CaseFile    string
	K           int
	Included    int
	Excluded    int
	Failed      int
	MeanRecall  float64
	MAP         float64
	CatalogSize int
}

// CaseScore is a stored per-case result.
type CaseScore struct {
	Position int
	Query    string
	Recall   float64
	AP       float64
	Excluded bool
	Error    string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(initialMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores report together with its per-case scores and returns the new run.
func (s *Store) Record(ctx context.Context, meta Meta, report *eval.Report) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Strategy:    meta.Strategy,
		Model:       meta.Model,
		CaseFile:    meta.CaseFile,
		K:           report.K,
		Included:    report.Included,
		Excluded:    report.Excluded,
		Failed:      report.Failed,
		MeanRecall:  report.MeanRecall,
		MAP:         report.MAP,
		CatalogSize: meta.CatalogSize,
	}

	err := s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evaluation_runs
				(id, created_at, strategy, model, case_file, k, included, excluded, failed, mean_recall, map, catalog_size)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CreatedAt.Format(timeLayout), run.Strategy, run.Model, run.CaseFile,
			run.K, run.Included, run.Excluded, run.Failed, run.MeanRecall, run.MAP, run.CatalogSize,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO evaluation_cases (run_id, position, query, recall, average_precision, excluded, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range report.Cases {
			if _, err := stmt.ExecContext(ctx, run.ID, i+1, c.Query, c.Recall, c.AP, c.Excluded, c.Error); err != nil {
				return fmt.Errorf("failed to insert case %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns returns the latest runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, created_at, strategy, model, case_file, k, included, excluded, failed, mean_recall, map, catalog_size
		FROM evaluation_runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Run returns one run with its case scores.
func (s *Store) Run(ctx context.Context, id string) (*Run, []CaseScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, strategy, model, case_file, k, included, excluded, failed, mean_recall, map, catalog_size
		FROM evaluation_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrRunNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, query, recall, average_precision, excluded, error
		FROM evaluation_cases WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cases: %w", err)
	}
	defer rows.Close()

	var cases []CaseScore
	for rows.Next() {
		var c CaseScore
		if err := rows.Scan(&c.Position, &c.Query, &c.Recall, &c.AP, &c.Excluded, &c.Error); err != nil {
			return nil, nil, err
		}
		cases = append(cases, c)
	}
	return run, cases, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		created string
	)
	err := row.Scan(&run.ID, &created, &run.Strategy, &run.Model, &run.CaseFile,
		&run.K, &run.Included, &run.Excluded, &run.Failed, &run.MeanRecall, &run.MAP, &run.CatalogSize)
	if err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parsing run time %q: %w", created, err)
	}
	return &run, nil
}

func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
