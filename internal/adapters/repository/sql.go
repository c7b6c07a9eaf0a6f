package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/metrics"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver names a SQL backend for the cache tier.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const defaultSQLiteDSN = "file:gradeboard.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

// The same DDL runs on SQLite and Postgres.
const schema = `
CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  graded_on TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS assessments_graded_on ON assessments (graded_on);
`

const upsertAssessment = `
INSERT INTO assessments (id, name, graded_on, payload, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  name = excluded.name,
  graded_on = excluded.graded_on,
  payload = excluded.payload,
  updated_at = excluded.updated_at`

// SQLStore is a Store over database/sql. Assessments are kept as JSON
// documents keyed by id.
type SQLStore struct {
	db     *sql.DB
	driver Driver
}

// OpenSQLStore opens the database and ensures the schema exists.
func OpenSQLStore(ctx context.Context, driver Driver, dsn string) (*SQLStore, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			return nil, fmt.Errorf("%w: postgres needs a dsn", ErrDriver)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrDriver, driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func gradedOn(a model.Assessment) string {
	if a.Date.IsZero() {
		return ""
	}
	return a.Date.UTC().Format(time.RFC3339Nano)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func put(ctx context.Context, ex execer, a model.Assessment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assessment %s: %w", a.ID, err)
	}
	_, err = ex.ExecContext(ctx, upsertAssessment,
		string(a.ID), a.Name, gradedOn(a), string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store assessment %s: %w", a.ID, err)
	}
	return nil
}

// Put inserts or replaces an assessment.
func (s *SQLStore) Put(ctx context.Context, a model.Assessment) error {
	return s.PutMany(ctx, []model.Assessment{a})
}

// PutMany stores assessments in one transaction.
func (s *SQLStore) PutMany(ctx context.Context, as []model.Assessment) (err error) {
	if len(as) == 0 {
		return nil
	}
	for _, a := range as {
		if !validID(a.ID) {
			return ErrInvalidID
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, a := range as {
		if err = put(ctx, tx, a); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordCacheWrite()
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) get(ctx context.Context, q queryRower, id model.ID, lock bool) (model.Assessment, error) {
	query := `SELECT payload FROM assessments WHERE id = $1`
	if lock && s.driver == DriverPostgres {
		query += ` FOR UPDATE`
	}
	var payload string
	if err := q.QueryRowContext(ctx, query, string(id)).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assessment{}, ErrNotFound
		}
		return model.Assessment{}, fmt.Errorf("load assessment %s: %w", id, err)
	}
	var a model.Assessment
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return model.Assessment{}, fmt.Errorf("decode assessment %s: %w", id, err)
	}
	return a, nil
}

// Get returns ErrNotFound if the assessment is unknown.
func (s *SQLStore) Get(ctx context.Context, id model.ID) (model.Assessment, error) {
	if !validID(id) {
		return model.Assessment{}, ErrInvalidID
	}
	return s.get(ctx, s.db, id, false)
}

// List returns all assessments, newest first.
func (s *SQLStore) List(ctx context.Context) ([]model.Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM assessments ORDER BY graded_on DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []model.Assessment{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		var a model.Assessment
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("decode assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return out, nil
}

// UpsertResult reads, updates and writes the assessment in one transaction.
func (s *SQLStore) UpsertResult(ctx context.Context, id model.ID, name string, r model.StudentResult) (_ model.Assessment, err error) {
	if !validID(id) {
		return model.Assessment{}, ErrInvalidID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	a, err := s.get(ctx, tx, id, true)
	switch {
	case errors.Is(err, ErrNotFound):
		a = model.Assessment{ID: id, Name: name, Date: r.GradedAt}
	case err != nil:
		return model.Assessment{}, err
	}
	if a.Name == "" {
		a.Name = name
	}
	a.Results = upsertResult(a.Results, r)

	if err = put(ctx, tx, a); err != nil {
		return model.Assessment{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Assessment{}, fmt.Errorf("commit: %w", err)
	}
	metrics.RecordCacheWrite()
	return a, nil
}

// Count returns the number of cached assessments, or 0 on error.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&n); err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return 0
	}
	return n
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
