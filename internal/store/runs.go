package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"esparse/internal/conflict"
	"esparse/internal/diag"
	"esparse/internal/extract"
)

// BeginRun takes the run lock and registers a new extraction run. Every write
// until FinishRun belongs to runID.
func (s *Store) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire store lock %s: %w", s.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, s.lockPath)
	}

	if err := s.execWithRetry(ctx, `INSERT INTO runs (id, started_at) VALUES (?, ?)`, runID, formatTime(startedAt)); err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("insert run: %w", err)
	}
	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()
	return nil
}

// RecordPlugin stores the read outcome of one plugin.
func (s *Store) RecordPlugin(ctx context.Context, file extract.FileReport) error {
	runID, err := s.activeRun()
	if err != nil {
		return err
	}
	err = s.execWithRetry(ctx, `INSERT INTO plugins
		(run_id, name, path, digest, load_order, is_esl, records, groups_count, salvaged, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, file.Plugin, file.Path, nullString(file.Digest), file.LoadOrder, boolToInt(file.IsESL),
		file.Records, file.Groups, file.Salvaged, nullString(file.Error),
	)
	if err != nil {
		return fmt.Errorf("insert plugin %s: %w", file.Plugin, err)
	}
	return nil
}

// Write stores every record of one type in a single transaction.
func (s *Store) Write(ctx context.Context, recordType string, records []conflict.ResolvedRecord) error {
	runID, err := s.activeRun()
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
			(run_id, type, local_form_id, global_form_id, resolved, plugin, load_order, stack_order, is_winner, file_offset, editor_id, fields_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare record insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if r.Type != recordType {
				continue
			}
			var editorID string
			if r.Record != nil {
				editorID = r.Record.EditorID()
			}
			fields, err := encodeFields(r.Fields)
			if err != nil {
				return fmt.Errorf("encode %s fields: %w", recordType, err)
			}
			if _, err := stmt.ExecContext(ctx,
				runID, r.Type, int64(r.LocalFormID), int64(r.GlobalFormID), boolToInt(r.Resolved),
				r.Plugin, r.LoadOrder, r.StackOrder, boolToInt(r.IsWinner), r.Offset(),
				nullString(editorID), fields,
			); err != nil {
				return fmt.Errorf("insert %s record: %w", recordType, err)
			}
		}
		return nil
	})
}

// RecordDiagnostics stores the run's diagnostics.
func (s *Store) RecordDiagnostics(ctx context.Context, ds []diag.Diagnostic) error {
	runID, err := s.activeRun()
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO diagnostics
			(run_id, severity, code, plugin, file_offset, record_type, form_id, target, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare diagnostic insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range ds {
			if _, err := stmt.ExecContext(ctx,
				runID, string(d.Severity), string(d.Code), nullString(d.Plugin), d.Offset,
				nullString(d.RecordType), int64(d.FormID), nullString(d.Target), d.Message,
			); err != nil {
				return fmt.Errorf("insert diagnostic: %w", err)
			}
		}
		return nil
	})
}

// FinishRun stores the run totals and releases the run lock.
func (s *Store) FinishRun(ctx context.Context, report *extract.Report) error {
	runID, err := s.activeRun()
	if err != nil {
		return err
	}
	defer func() {
		s.mu.Lock()
		s.runID = ""
		s.mu.Unlock()
		_ = s.lock.Unlock()
	}()

	records, winners, unresolved := report.Totals()
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	err = s.execWithRetry(ctx, `UPDATE runs SET finished_at = ?, files = ?, failed_files = ?, records = ?,
		winners = ?, unresolved = ?, warnings = ?, errors = ? WHERE id = ?`,
		formatTime(finished), len(report.Files), len(report.FailedFiles()), records,
		winners, unresolved, report.Warnings(), report.Errors(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

func encodeFields(fields any) (sql.NullString, error) {
	if fields == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
