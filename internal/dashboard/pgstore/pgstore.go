// Package pgstore provides a PostgreSQL implementation of dashboard.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/alertdash/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/alertdash/internal/dashboard/pgstore")

//go:embed schema.sql
var schema string

// Store persists alert records in PostgreSQL. Records come back in the order
// they were first inserted.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool and closes it.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, ts, severity, severity_numeric, category, source_ip, destination_ip, action`

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*alert.Record, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	r, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM alert_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		fail(span, err)
		return nil, false, err
	}
	return r, true, nil
}

// Put inserts a record, or replaces the stored record with the same ID while
// keeping its position.
func (s *Store) Put(ctx context.Context, r *alert.Record) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	if err := upsertRecord(ctx, s.pool, r); err != nil {
		fail(span, err)
		return err
	}
	return nil
}

// PutBatch upserts records in one transaction. Either every record is stored
// or none is.
func (s *Store) PutBatch(ctx context.Context, records []alert.Record) error {
	ctx, span := startSpan(ctx, "pgstore.PutBatch", "UPSERT")
	defer span.End()
	span.SetAttributes(attribute.Int("db.batch.size", len(records)))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	for i := range records {
		if err := upsertRecord(ctx, tx, &records[i]); err != nil {
			err = fmt.Errorf("record %d: %w", i, err)
			fail(span, err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		fail(span, err)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertRecord(ctx context.Context, db execer, r *alert.Record) error {
	var (
		severity *string
		numeric  bool
	)
	if r.Severity != nil {
		severity = &r.Severity.Label
		numeric = r.Severity.Numeric
	}

	query := `INSERT INTO alert_records (` + recordColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		ts               = EXCLUDED.ts,
		severity         = EXCLUDED.severity,
		severity_numeric = EXCLUDED.severity_numeric,
		category         = EXCLUDED.category,
		source_ip        = EXCLUDED.source_ip,
		destination_ip   = EXCLUDED.destination_ip,
		action           = EXCLUDED.action`

	_, err := db.Exec(ctx, query,
		r.ID, r.Timestamp, severity, numeric, r.Category, r.SourceIP, r.DestinationIP, r.Action,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Records returns every stored record in insertion order.
func (s *Store) Records(ctx context.Context) ([]alert.Record, error) {
	ctx, span := startSpan(ctx, "pgstore.Records", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM alert_records ORDER BY seq`)
	if err != nil {
		err = fmt.Errorf("query records: %w", err)
		fail(span, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]alert.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		err = fmt.Errorf("iterate records: %w", err)
		fail(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.response.returned_rows", len(out)))
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx, span := startSpan(ctx, "pgstore.Count", "SELECT")
	defer span.End()

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM alert_records`).Scan(&n); err != nil {
		err = fmt.Errorf("count records: %w", err)
		fail(span, err)
		return 0, err
	}
	return n, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// scanRecord scans a single row into an alert.Record. pgx.ErrNoRows is
// returned unwrapped.
func scanRecord(row pgx.Row) (*alert.Record, error) {
	var (
		r        alert.Record
		severity *string
		numeric  bool
	)

	err := row.Scan(
		&r.ID, &r.Timestamp, &severity, &numeric, &r.Category, &r.SourceIP, &r.DestinationIP, &r.Action,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	if severity != nil {
		r.Severity = &alert.Severity{Label: *severity, Numeric: numeric}
	}
	return &r, nil
}
