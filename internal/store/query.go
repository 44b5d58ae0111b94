package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is a stored extraction run.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Files       int       `json:"files"`
	FailedFiles int       `json:"failed_files"`
	Records     int       `json:"records"`
	Winners     int       `json:"winners"`
	Unresolved  int       `json:"unresolved"`
	Warnings    int       `json:"warnings"`
	Errors      int       `json:"errors"`
}

// Record is a stored resolved record.
type Record struct {
	RunID        string `json:"run_id"`
	Type         string `json:"type"`
	LocalFormID  uint32 `json:"local_form_id"`
	GlobalFormID uint32 `json:"global_form_id"`
	Resolved     bool   `json:"resolved"`
	Plugin       string `json:"plugin"`
	LoadOrder    int    `json:"load_order"`
	StackOrder   int    `json:"stack_order"`
	IsWinner     bool   `json:"is_winner"`
	Offset       int64  `json:"offset"`
	EditorID     string `json:"editor_id,omitempty"`
	FieldsJSON   string `json:"fields,omitempty"`
}

const runColumns = "id, started_at, finished_at, files, failed_files, records, winners, unresolved, warnings, errors"

const recordColumns = "run_id, type, local_form_id, global_form_id, resolved, plugin, load_order, stack_order, is_winner, file_offset, editor_id, fields_json"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishedRaw,
		&run.Files,
		&run.FailedFiles,
		&run.Records,
		&run.Winners,
		&run.Unresolved,
		&run.Warnings,
		&run.Errors,
	); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	return &run, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec      Record
		local    int64
		global   int64
		resolved int
		winner   int
		editorID sql.NullString
		fields   sql.NullString
	)
	if err := scanner.Scan(
		&rec.RunID,
		&rec.Type,
		&local,
		&global,
		&resolved,
		&rec.Plugin,
		&rec.LoadOrder,
		&rec.StackOrder,
		&winner,
		&rec.Offset,
		&editorID,
		&fields,
	); err != nil {
		return Record{}, err
	}
	rec.LocalFormID = uint32(local)
	rec.GlobalFormID = uint32(global)
	rec.Resolved = resolved != 0
	rec.IsWinner = winner != 0
	rec.EditorID = editorID.String
	rec.FieldsJSON = fields.String
	return rec, nil
}

// LatestRun returns the most recent finished run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// Runs lists finished runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Winners returns the winning records of recordType from the latest run,
// ordered by global FormID.
func (s *Store) Winners(ctx context.Context, recordType string) ([]Record, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE run_id = ? AND type = ? AND is_winner = 1 ORDER BY global_form_id`,
		run.ID, recordType)
}

// Overrides returns every record sharing globalFormID in the latest run, most
// authoritative first.
func (s *Store) Overrides(ctx context.Context, globalFormID uint32) ([]Record, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE run_id = ? AND resolved = 1 AND global_form_id = ?
		ORDER BY type, is_winner DESC, stack_order, load_order DESC, plugin, file_offset`,
		run.ID, int64(globalFormID))
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
