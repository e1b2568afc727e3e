// Package storage persists batch reports to the history database so past
// runs can be listed, inspected, and rolled back later.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/patch-warden/internal/core"
)

// BatchSummary is one row of the batch history listing.
type BatchSummary struct {
	BatchID    string      `db:"id"`
	FixSetID   string      `db:"fix_set_id"`
	Policy     string      `db:"policy"`
	DryRun     bool        `db:"dry_run"`
	RolledBack bool        `db:"rolled_back"`
	StartedAt  time.Time   `db:"started_at"`
	Applied    int         `db:"applied"`
	Rejected   int         `db:"rejected"`
	Pending    int         `db:"pending"`
}

// Store defines the interface for all history database operations.
type Store interface {
	SaveReport(ctx context.Context, report *core.BatchReport) error
	GetReport(ctx context.Context, batchID string) (*core.BatchReport, error)
	ListBatches(ctx context.Context, limit int) ([]BatchSummary, error)
	MarkBatchRolledBack(ctx context.Context, batchID string) error
	DeleteBatch(ctx context.Context, batchID string) error
}

type sqliteStore struct {
	db *sqlx.DB
}

// NewStore creates a new Store.
func NewStore(db *sqlx.DB) Store {
	return &sqliteStore{db: db}
}

// SaveReport inserts a batch with all of its outcomes and records in one
// transaction.
func (s *sqliteStore) SaveReport(ctx context.Context, report *core.BatchReport) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, fix_set_id, policy, dry_run, rolled_back, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.BatchID, report.FixSetID, string(report.Policy), report.DryRun,
		report.RolledBack, report.StartedAt, report.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", report.BatchID, err)
	}

	for _, o := range report.Outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO fix_outcomes (batch_id, fix_id, issue_id, path, status, rejection, detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.BatchID, o.FixID, o.IssueID, o.Path, string(o.Status), string(o.Rejection), o.Detail)
		if err != nil {
			return fmt.Errorf("failed to insert outcome for fix %s: %w", o.FixID, err)
		}
	}

	for _, r := range report.Records {
		ids, err := json.Marshal(r.AppliedFixIDs)
		if err != nil {
			return fmt.Errorf("failed to encode fix ids for %s: %w", r.Path, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO application_records (batch_id, path, content_hash, backup_path, applied_fix_ids, applied_at, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.BatchID, r.Path, r.ContentHash, r.BackupPath, string(ids), r.AppliedAt, string(r.Status))
		if err != nil {
			return fmt.Errorf("failed to insert record for %s: %w", r.Path, err)
		}
	}

	return tx.Commit()
}

// GetReport loads one batch by id. Per-validator detail is not persisted;
// the returned outcomes carry status, rejection kind, and detail only.
func (s *sqliteStore) GetReport(ctx context.Context, batchID string) (*core.BatchReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fix_set_id, policy, dry_run, rolled_back, started_at, duration_ms
		 FROM batches WHERE id = ?`, batchID)

	var (
		report     core.BatchReport
		policy     string
		durationMs int64
	)
	err := row.Scan(&report.BatchID, &report.FixSetID, &policy, &report.DryRun,
		&report.RolledBack, &report.StartedAt, &durationMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no batch found with id %s", batchID)
		}
		return nil, err
	}
	report.Policy = core.BatchPolicy(policy)
	report.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := s.db.QueryContext(ctx,
		`SELECT fix_id, issue_id, path, status, rejection, detail
		 FROM fix_outcomes WHERE batch_id = ? ORDER BY path, fix_id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o         core.FixOutcome
			status    string
			rejection string
		)
		if err := rows.Scan(&o.FixID, &o.IssueID, &o.Path, &status, &rejection, &o.Detail); err != nil {
			return nil, err
		}
		o.Status = core.FixStatus(status)
		o.Rejection = core.RejectionKind(rejection)
		report.Outcomes = append(report.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recRows, err := s.db.QueryContext(ctx,
		`SELECT path, content_hash, backup_path, applied_fix_ids, applied_at, status
		 FROM application_records WHERE batch_id = ? ORDER BY path`, batchID)
	if err != nil {
		return nil, err
	}
	defer recRows.Close()
	for recRows.Next() {
		var (
			r      core.ApplicationRecord
			ids    string
			status string
		)
		if err := recRows.Scan(&r.Path, &r.ContentHash, &r.BackupPath, &ids, &r.AppliedAt, &status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &r.AppliedFixIDs); err != nil {
			return nil, fmt.Errorf("failed to decode fix ids for %s: %w", r.Path, err)
		}
		r.Status = core.RecordStatus(status)
		report.Records = append(report.Records, r)
	}
	if err := recRows.Err(); err != nil {
		return nil, err
	}

	return &report, nil
}

// ListBatches returns the most recent batches, newest first, with per-status
// fix counts.
func (s *sqliteStore) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.fix_set_id, b.policy, b.dry_run, b.rolled_back, b.started_at,
		        COALESCE(SUM(CASE WHEN o.status = 'applied' THEN 1 ELSE 0 END), 0)        AS applied,
		        COALESCE(SUM(CASE WHEN o.status IN ('rejected','conflicted') THEN 1 ELSE 0 END), 0) AS rejected,
		        COALESCE(SUM(CASE WHEN o.status = 'needs_approval' THEN 1 ELSE 0 END), 0) AS pending
		 FROM batches b
		 LEFT JOIN fix_outcomes o ON o.batch_id = b.id
		 GROUP BY b.id
		 ORDER BY b.started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []BatchSummary
	for rows.Next() {
		var sum BatchSummary
		err := rows.Scan(&sum.BatchID, &sum.FixSetID, &sum.Policy, &sum.DryRun, &sum.RolledBack,
			&sum.StartedAt, &sum.Applied, &sum.Rejected, &sum.Pending)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// MarkBatchRolledBack records that a batch's files were restored after the
// fact, flipping the batch flag and its committed records.
func (s *sqliteStore) MarkBatchRolledBack(ctx context.Context, batchID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE batches SET rolled_back = 1 WHERE id = ?`, batchID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no batch found with id %s", batchID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE application_records SET status = ? WHERE batch_id = ? AND status = ?`,
		string(core.RecordRolledBack), batchID, string(core.RecordCommitted))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteBatch removes a batch and, through cascading deletes, its outcomes
// and records. Used by purge after backups are discarded.
func (s *sqliteStore) DeleteBatch(ctx context.Context, batchID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, batchID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no batch found with id %s", batchID)
	}
	return nil
}
