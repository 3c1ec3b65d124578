package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cdconv/internal/convert"
	"cdconv/internal/rf2"
)

// startedLayout is fixed width so started_at sorts chronologically as text.
const startedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one ledger row.
type Run struct {
	ID                    string        `json:"id" yaml:"id"`
	StartedAt             time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration              time.Duration `json:"duration" yaml:"duration"`
	ReleaseDate           string        `json:"releaseDate" yaml:"releaseDate"`
	Dependency            string        `json:"dependency" yaml:"dependency"`
	Extension             string        `json:"extension,omitempty" yaml:"extension,omitempty"`
	Delta                 string        `json:"delta,omitempty" yaml:"delta,omitempty"`
	OutputDir             string        `json:"outputDir" yaml:"outputDir"`
	NumberConcepts        int           `json:"numberConcepts" yaml:"numberConcepts"`
	NumericValues         int           `json:"numericValues" yaml:"numericValues"`
	RowsWritten           int           `json:"rowsWritten" yaml:"rowsWritten"`
	PendingDrained        int           `json:"pendingDrained" yaml:"pendingDrained"`
	UnresolvedExpressions int           `json:"unresolvedExpressions" yaml:"unresolvedExpressions"`
	Remodelled            int           `json:"remodelled" yaml:"remodelled"`
}

// RecordRun stores a finished conversion and its unresolved number concepts.
func (db *DB) RecordRun(ctx context.Context, sum *convert.Summary) error {
	run := Run{
		ID:                    sum.RunID,
		StartedAt:             sum.StartedAt,
		Duration:              sum.Duration,
		ReleaseDate:           sum.ReleaseDate,
		OutputDir:             sum.OutputDir,
		NumberConcepts:        sum.NumberConcepts,
		NumericValues:         sum.NumericValues,
		RowsWritten:           sum.RowsWritten,
		PendingDrained:        sum.PendingDrained,
		UnresolvedExpressions: sum.UnresolvedExpressions,
		Remodelled:            sum.Remodelled,
	}
	for _, l := range sum.Layers {
		switch l.Kind {
		case rf2.LayerSnapshot.String():
			run.Dependency = l.Path
		case rf2.LayerExtension.String():
			run.Extension = l.Path
		case rf2.LayerDelta.String():
			run.Delta = l.Path
		}
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, started_at, duration_ms, release_date, dependency, extension, delta,
				output_dir, number_concepts, numeric_values, rows_written, pending_drained,
				unresolved_expressions, remodelled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.StartedAt.UTC().Format(startedLayout), run.Duration.Milliseconds(),
			run.ReleaseDate, run.Dependency, run.Extension, run.Delta, run.OutputDir,
			run.NumberConcepts, run.NumericValues, run.RowsWritten, run.PendingDrained,
			run.UnresolvedExpressions, run.Remodelled)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO unresolved_numbers (run_id, concept_id) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, concept := range sum.Report.Unresolved {
			if _, err := stmt.ExecContext(ctx, run.ID, concept); err != nil {
				return fmt.Errorf("insert unresolved number: %w", err)
			}
		}
		return nil
	})
}

// ListRuns returns up to limit runs, newest first. A limit of 0 or less returns all.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, duration_ms, release_date, dependency, extension, delta, output_dir,
			number_concepts, numeric_values, rows_written, pending_drained,
			unresolved_expressions, remodelled
		FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var durationMs int64
		if err := rows.Scan(&r.ID, &started, &durationMs, &r.ReleaseDate, &r.Dependency, &r.Extension,
			&r.Delta, &r.OutputDir, &r.NumberConcepts, &r.NumericValues, &r.RowsWritten,
			&r.PendingDrained, &r.UnresolvedExpressions, &r.Remodelled); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(startedLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: bad start time %q: %w", r.ID, started, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Unresolved returns the number concepts that had no numeric value in a run.
func (db *DB) Unresolved(ctx context.Context, runID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT concept_id FROM unresolved_numbers WHERE run_id = ? ORDER BY concept_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query unresolved numbers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
