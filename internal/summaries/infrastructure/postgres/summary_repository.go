package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	summaries "powerplant-cloud/internal/summaries/domain"
)

const (
	defaultSummaryTable = "daily_summaries"

	pgUniqueViolation = "23505"
)

// SummaryRepository is a Postgres implementation of the daily summary store.
// Writes are guarded by an optimistic version column so that interleaved
// recomputes surface as ErrVersionConflict instead of silently losing
// updates.
type SummaryRepository struct {
	db    *sql.DB
	table string
}

// NewSummaryRepository constructs a repository with the default table name.
func NewSummaryRepository(db *sql.DB, opts ...RepositoryOption) *SummaryRepository {
	repo := &SummaryRepository{db: db, table: defaultSummaryTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*SummaryRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *SummaryRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const summaryColumns = `
	id,
	machine_id,
	date,
	max_load,
	min_load,
	dm_siang,
	dm_malam,
	version,
	created_at,
	updated_at`

// Get loads the summary for a machine/day.
func (r *SummaryRepository) Get(ctx context.Context, machineID string, date time.Time) (*summaries.DailySummary, error) {
	query := fmt.Sprintf(`
SELECT`+summaryColumns+`
FROM %s
WHERE machine_id = $1 AND date = $2
LIMIT 1`, r.table)

	summary, err := scanSummary(r.db.QueryRowContext(ctx, query, machineID, date.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, summaries.ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Upsert creates or updates the (machine, date) row. Version 0 expects to
// insert; any other value is a compare-and-swap against the stored version.
func (r *SummaryRepository) Upsert(ctx context.Context, summary *summaries.DailySummary) error {
	if r == nil || r.db == nil {
		return errors.New("summary repo: nil db")
	}

	if summary.Version == 0 {
		query := fmt.Sprintf(`
INSERT INTO %s (
	machine_id, date, max_load, min_load, dm_siang, dm_malam, version, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, 1, $7, $7
)`, r.table)
		_, err := r.db.ExecContext(ctx, query,
			summary.MachineID,
			summary.Date.UTC(),
			summary.MaxLoad,
			summary.MinLoad,
			nullFloat(summary.DMSiang),
			nullFloat(summary.DMMalam),
			summary.UpdatedAt.UTC(),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return summaries.ErrVersionConflict
			}
			return err
		}
		return nil
	}

	query := fmt.Sprintf(`
UPDATE %s
SET max_load = $1, min_load = $2, dm_siang = $3, dm_malam = $4,
	version = version + 1, updated_at = $5
WHERE machine_id = $6 AND date = $7 AND version = $8`, r.table)
	result, err := r.db.ExecContext(ctx, query,
		summary.MaxLoad,
		summary.MinLoad,
		nullFloat(summary.DMSiang),
		nullFloat(summary.DMMalam),
		summary.UpdatedAt.UTC(),
		summary.MachineID,
		summary.Date.UTC(),
		summary.Version,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return summaries.ErrVersionConflict
	}
	return nil
}

// ListByMachine returns summaries date-descending over an optional range.
func (r *SummaryRepository) ListByMachine(ctx context.Context, machineID string, q summaries.RangeQuery) ([]*summaries.DailySummary, error) {
	args := []any{machineID}
	where := "machine_id = $1"
	if q.From != nil {
		args = append(args, q.From.UTC())
		where += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if q.To != nil {
		args = append(args, q.To.UTC())
		where += fmt.Sprintf(" AND date <= $%d", len(args))
	}

	query := fmt.Sprintf(`
SELECT`+summaryColumns+`
FROM %s
WHERE %s
ORDER BY date DESC`, r.table, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*summaries.DailySummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*summaries.DailySummary, error) {
	var summary summaries.DailySummary
	var dmSiang, dmMalam sql.NullFloat64
	if err := row.Scan(
		&summary.ID,
		&summary.MachineID,
		&summary.Date,
		&summary.MaxLoad,
		&summary.MinLoad,
		&dmSiang,
		&dmMalam,
		&summary.Version,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	); err != nil {
		return nil, err
	}
	summary.Date = summary.Date.UTC()
	summary.CreatedAt = summary.CreatedAt.UTC()
	summary.UpdatedAt = summary.UpdatedAt.UTC()
	if dmSiang.Valid {
		v := dmSiang.Float64
		summary.DMSiang = &v
	}
	if dmMalam.Valid {
		v := dmMalam.Float64
		summary.DMMalam = &v
	}
	return &summary, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
