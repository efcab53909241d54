package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/pcos-assessment-server/internal/domain"
)

var postgresStatements = statements{
	insert: `
		INSERT INTO assessments (
			id, patient_name, age, diagnosis, phenotype,
			rotterdam_score, risk_score, risk_level,
			input_json, result_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	exists: "SELECT 1 FROM assessments WHERE id = $1",
}

// PostgresStore implements Store on PostgreSQL. The schema comes from migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection. Any database/sql driver for PostgreSQL
// works; the server passes a pgx pool opened through pgx's stdlib adapter.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a lib/pq connection to databaseURL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save inserts a record.
func (s *PostgresStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	if err := insertRecord(ctx, s.db, postgresStatements, record); err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// Get returns the record with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM assessments WHERE id = $1", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return rec, nil
}

// List returns records newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	limit, offset = normalizeLimit(limit, offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM assessments ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return scanRecords(rows)
}

// Count returns the number of stored records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessments").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assessments: %w", err)
	}
	return count, nil
}

// Delete removes the record with id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM assessments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// Summary aggregates the stored records.
func (s *PostgresStore) Summary(ctx context.Context) (*domain.TrackerSummary, error) {
	return querySummary(ctx, s.db)
}

// ExportJSON writes all records to writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports records from reader, skipping known ids.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s.db, postgresStatements, reader)
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
