// Package postgres implements audit.Store on PostgreSQL via the pgx driver.
//
// Schema:
//
//	CREATE TABLE audit_records (
//	    audit_id       TEXT PRIMARY KEY,
//	    subject_id     TEXT NOT NULL,
//	    subject_email  TEXT NOT NULL DEFAULT '',
//	    action         TEXT NOT NULL,
//	    resource_type  TEXT NOT NULL DEFAULT '',
//	    resource_id    TEXT NOT NULL DEFAULT '',
//	    ts             TIMESTAMPTZ NOT NULL,
//	    result         TEXT NOT NULL,
//	    details        TEXT NOT NULL DEFAULT '',
//	    source_address TEXT NOT NULL DEFAULT '',
//	    expires_at     TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_records_subject_ts ON audit_records (subject_id, ts);
//	CREATE INDEX audit_records_action_ts ON audit_records (action, ts);
//	CREATE INDEX audit_records_resource_ts ON audit_records (resource_id, ts);
//	CREATE INDEX audit_records_expires_at ON audit_records (expires_at);
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetgate/internal/audit"
)

type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with pool settings suited for short,
// request-scoped writes.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// Append inserts a record. ON CONFLICT DO NOTHING makes the write
// conditional on AuditID: a replayed ID, even with a different payload,
// leaves the stored record untouched.
func (s *Store) Append(ctx context.Context, record audit.Record) error {
	const query = `
		INSERT INTO audit_records (
			audit_id, subject_id, subject_email, action,
			resource_type, resource_id, ts, result,
			details, source_address, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (audit_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		record.AuditID,
		record.SubjectID,
		record.SubjectEmail,
		record.Action,
		record.ResourceType,
		record.ResourceID,
		record.Timestamp,
		string(record.Result),
		record.Details,
		record.SourceAddress,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List filters by any combination of subject, action, and resource.
// Results come back in timestamp order; that order is only meaningful
// within one subject's partition.
func (s *Store) List(ctx context.Context, query audit.Query) ([]audit.Record, error) {
	var (
		conditions []string
		args       []any
	)

	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, clause+"$"+strconv.Itoa(len(args)))
	}

	if query.SubjectID != "" {
		add("subject_id = ", query.SubjectID)
	}
	if query.Action != "" {
		add("action = ", query.Action)
	}
	if query.ResourceID != "" {
		add("resource_id = ", query.ResourceID)
	}
	if !query.StartTime.IsZero() {
		add("ts >= ", query.StartTime)
	}

	q := `
		SELECT audit_id, subject_id, subject_email, action,
		       resource_type, resource_id, ts, result,
		       details, source_address, expires_at
		FROM audit_records
	`
	if len(conditions) > 0 {
		q += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, query.Limit)
	q += " ORDER BY ts ASC LIMIT $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var r audit.Record
		var result string
		if err := rows.Scan(
			&r.AuditID,
			&r.SubjectID,
			&r.SubjectEmail,
			&r.Action,
			&r.ResourceType,
			&r.ResourceID,
			&r.Timestamp,
			&result,
			&r.Details,
			&r.SourceAddress,
			&r.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Result = audit.Result(result)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// PurgeExpired removes records past their retention boundary. This is the
// only deletion path; there is no per-record delete.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired audit records: %w", err)
	}
	return res.RowsAffected()
}
