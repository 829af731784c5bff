package postgres

import (
	"context"
	"database/sql"
	"errors"

	reports "powerplant-cloud/internal/reports/domain"
)

// ReportRepository is a Postgres implementation of the field report store.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `
	id, user_id, title, description, media_url, report_date, created_at`

// Create stores a field report.
func (r *ReportRepository) Create(ctx context.Context, report *reports.FieldReport) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO field_reports (id, user_id, title, description, media_url, report_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.ID,
		report.UserID,
		report.Title,
		report.Description,
		report.MediaURL,
		report.ReportDate.UTC(),
		report.CreatedAt.UTC(),
	)
	return err
}

// Get loads a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*reports.FieldReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT`+reportColumns+`
FROM field_reports
WHERE id = $1
LIMIT 1`, id)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reports.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListByUser returns reports newest first, all users when userID is empty.
func (r *ReportRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*reports.FieldReport, error) {
	query := `
SELECT` + reportColumns + `
FROM field_reports`
	args := []any{}
	if userID != "" {
		query += `
WHERE user_id = $1`
		args = append(args, userID)
	}
	query += `
ORDER BY created_at DESC`
	if userID != "" {
		query += ` LIMIT $2`
	} else {
		query += ` LIMIT $1`
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*reports.FieldReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*reports.FieldReport, error) {
	var report reports.FieldReport
	if err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.Title,
		&report.Description,
		&report.MediaURL,
		&report.ReportDate,
		&report.CreatedAt,
	); err != nil {
		return nil, err
	}
	report.ReportDate = report.ReportDate.UTC()
	report.CreatedAt = report.CreatedAt.UTC()
	return &report, nil
}
