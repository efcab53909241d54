// Package tracker persists patient assessments for the tracker view: saved records,
// newest first listings, an aggregate summary and JSON export/import.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pcos-assessment-server/internal/domain"
)

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 50

// ExportVersion is written into every export document.
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of records exported at once.
const maxExportLimit = 1000000

// Store defines patient tracker storage.
type Store interface {
	// Save inserts a record, assigning an id and creation time when they are unset.
	Save(ctx context.Context, record *domain.AssessmentRecord) error

	// Get returns the record with id or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.AssessmentRecord, error)

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error)

	Count(ctx context.Context) (int64, error)

	// Delete removes a record or returns an error wrapping domain.ErrNotFound.
	Delete(ctx context.Context, id string) error

	Summary(ctx context.Context) (*domain.TrackerSummary, error)

	// ExportJSON writes every record as an Export document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads an Export document. Records whose id already exists are
	// skipped. Either every remaining record is saved or none is.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version     string                     `json:"version"`
	ExportedAt  time.Time                  `json:"exported_at"`
	Count       int                        `json:"count"`
	Assessments []*domain.AssessmentRecord `json:"assessments"`
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// row holds the column values of one assessments row.
type row struct {
	id             string
	patientName    string
	age            int
	diagnosis      string
	phenotype      string
	rotterdamScore int
	riskScore      int
	riskLevel      string
	inputJSON      []byte
	resultJSON     []byte
	createdAt      time.Time
}

const selectColumns = `id, patient_name, age, input_json, result_json, created_at`

// prepareRecord fills defaults and flattens a record into column values.
func prepareRecord(record *domain.AssessmentRecord) (*row, error) {
	if record == nil {
		return nil, errors.New("record is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	input, err := json.Marshal(record.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	phenotype := ""
	if record.Result.Phenotype != nil {
		phenotype = record.Result.Phenotype.String()
	}

	return &row{
		id:             record.ID,
		patientName:    record.PatientName,
		age:            record.Age,
		diagnosis:      string(record.Result.Diagnosis),
		phenotype:      phenotype,
		rotterdamScore: record.Result.RotterdamScore,
		riskScore:      record.Result.RiskScore,
		riskLevel:      string(record.Result.RiskLevel),
		inputJSON:      input,
		resultJSON:     result,
		createdAt:      record.CreatedAt,
	}, nil
}

// scanRecord scans selectColumns into a record.
func scanRecord(s scanner) (*domain.AssessmentRecord, error) {
	rec := &domain.AssessmentRecord{}
	var input, result []byte

	if err := s.Scan(&rec.ID, &rec.PatientName, &rec.Age, &input, &result, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result of %s: %w", rec.ID, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]*domain.AssessmentRecord, error) {
	defer rows.Close()

	var result []*domain.AssessmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func notFound(id string) error {
	return fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Aggregation queries shared by both dialects; none take parameters.
const (
	summaryTotalsQuery = `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN diagnosis = 'PCOS' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_level = 'High' THEN 1 ELSE 0 END), 0)
		FROM assessments`
	summaryPhenotypeQuery = `
		SELECT phenotype, COUNT(*) FROM assessments
		WHERE phenotype <> ''
		GROUP BY phenotype`
	summaryRiskLevelQuery = `
		SELECT risk_level, COUNT(*) FROM assessments
		GROUP BY risk_level`
)

func querySummary(ctx context.Context, db *sql.DB) (*domain.TrackerSummary, error) {
	summary := domain.NewTrackerSummary()

	err := db.QueryRowContext(ctx, summaryTotalsQuery).Scan(&summary.Total, &summary.PCOSDiagnosed, &summary.HighRisk)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary totals: %w", err)
	}

	if err := queryGroupCounts(ctx, db, summaryPhenotypeQuery, func(key string, n int64) {
		summary.ByPhenotype[key] = n
	}); err != nil {
		return nil, err
	}
	if err := queryGroupCounts(ctx, db, summaryRiskLevelQuery, func(key string, n int64) {
		summary.ByRiskLevel[domain.RiskLevel(key)] = n
	}); err != nil {
		return nil, err
	}
	return summary, nil
}

func queryGroupCounts(ctx context.Context, db *sql.DB, query string, add func(string, int64)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query summary groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan summary group: %w", err)
		}
		add(key, n)
	}
	return rows.Err()
}

// exportJSON writes every record in s to writer.
func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list assessments: %w", err)
	}
	if all == nil {
		all = []*domain.AssessmentRecord{}
	}

	export := &Export{
		Version:     ExportVersion,
		ExportedAt:  time.Now().UTC(),
		Count:       len(all),
		Assessments: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// statements holds the dialect-specific SQL used by the shared helpers.
type statements struct {
	insert string
	exists string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertRecord(ctx context.Context, db execer, stmts statements, record *domain.AssessmentRecord) error {
	r, err := prepareRecord(record)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, stmts.insert,
		r.id, r.patientName, r.age, r.diagnosis, r.phenotype,
		r.rotterdamScore, r.riskScore, r.riskLevel,
		string(r.inputJSON), string(r.resultJSON), r.createdAt,
	)
	return err
}

// validateImported checks a record read from an export document.
func validateImported(rec *domain.AssessmentRecord) error {
	req := domain.AssessmentRequest{PatientName: rec.PatientName, Age: rec.Age, Input: rec.Input}
	if err := req.Validate(); err != nil {
		return err
	}
	return rec.Result.Validate()
}

// importJSON saves every record of an export that db does not hold yet. Records
// are validated before anything is written and saved in one transaction, so a
// failed import leaves the store unchanged.
func importJSON(ctx context.Context, db *sql.DB, stmts statements, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	records := make([]*domain.AssessmentRecord, 0, len(export.Assessments))
	for _, rec := range export.Assessments {
		if rec == nil {
			continue
		}
		if err := validateImported(rec); err != nil {
			return 0, 0, fmt.Errorf("invalid assessment %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			if seen[rec.ID] {
				skipped++
				continue
			}
			seen[rec.ID] = true

			var one int
			err := tx.QueryRowContext(ctx, stmts.exists, rec.ID).Scan(&one)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return 0, 0, fmt.Errorf("failed to check existing: %w", err)
			}
		}

		if err := insertRecord(ctx, tx, stmts, rec); err != nil {
			return 0, 0, fmt.Errorf("failed to save %s: %w", rec.ID, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, skipped, nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
