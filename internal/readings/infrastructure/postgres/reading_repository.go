package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	readings "powerplant-cloud/internal/readings/domain"
	summaries "powerplant-cloud/internal/summaries/domain"
)

const (
	defaultReadingTable = "load_readings"

	pgUniqueViolation = "23505"
)

// ReadingRepository is a Postgres implementation of the reading store.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with the default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const readingColumns = `
	id,
	machine_id,
	ts,
	load,
	avg_load,
	max_load,
	min_load,
	dm_siang,
	dm_malam,
	dm_mesin,
	surplus,
	status,
	created_at,
	updated_at`

// Insert stores a new reading, translating the unique-key violation into
// ErrDuplicateReading.
func (r *ReadingRepository) Insert(ctx context.Context, reading *readings.Reading) (*readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	machine_id, ts, load, avg_load, max_load, min_load,
	dm_siang, dm_malam, dm_mesin, surplus, status, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
)
RETURNING`+readingColumns, r.table)

	row := r.db.QueryRowContext(ctx, query,
		reading.MachineID,
		reading.Timestamp.UTC(),
		reading.Load,
		nullFloat(reading.AvgLoad),
		nullFloat(reading.MaxLoad),
		nullFloat(reading.MinLoad),
		nullFloat(reading.DMSiang),
		nullFloat(reading.DMMalam),
		reading.DMMesin,
		reading.Surplus,
		reading.Status,
		reading.CreatedAt.UTC(),
	)
	stored, err := scanReading(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, readings.ErrDuplicateReading
		}
		return nil, err
	}
	return stored, nil
}

// Get returns the reading for the exact (machine, timestamp) key.
func (r *ReadingRepository) Get(ctx context.Context, machineID string, ts time.Time) (*readings.Reading, error) {
	query := fmt.Sprintf(`
SELECT`+readingColumns+`
FROM %s
WHERE machine_id = $1 AND ts = $2
LIMIT 1`, r.table)

	stored, err := scanReading(r.db.QueryRowContext(ctx, query, machineID, ts.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, readings.ErrReadingNotFound
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// UpsertWithDayStats writes the reading and broadcasts the day extrema to
// every other reading of the machine/day in one transaction. created_at is
// preserved on replace.
func (r *ReadingRepository) UpsertWithDayStats(ctx context.Context, reading *readings.Reading, dayMax, dayMin float64) (*readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	upsert := fmt.Sprintf(`
INSERT INTO %s (
	machine_id, ts, load, avg_load, max_load, min_load,
	dm_siang, dm_malam, dm_mesin, surplus, status, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
)
ON CONFLICT (machine_id, ts)
DO UPDATE SET
	load = EXCLUDED.load,
	avg_load = EXCLUDED.avg_load,
	max_load = EXCLUDED.max_load,
	min_load = EXCLUDED.min_load,
	dm_siang = EXCLUDED.dm_siang,
	dm_malam = EXCLUDED.dm_malam,
	dm_mesin = EXCLUDED.dm_mesin,
	surplus = EXCLUDED.surplus,
	status = EXCLUDED.status,
	updated_at = NOW()
RETURNING`+readingColumns, r.table)

	ts := reading.Timestamp.UTC()
	stored, err := scanReading(tx.QueryRowContext(ctx, upsert,
		reading.MachineID,
		ts,
		reading.Load,
		nullFloat(reading.AvgLoad),
		sql.NullFloat64{Float64: dayMax, Valid: true},
		sql.NullFloat64{Float64: dayMin, Valid: true},
		nullFloat(reading.DMSiang),
		nullFloat(reading.DMMalam),
		reading.DMMesin,
		reading.Surplus,
		reading.Status,
		reading.CreatedAt.UTC(),
	))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	start, end := readings.DayBounds(ts)
	fixup := fmt.Sprintf(`
UPDATE %s
SET max_load = $1, min_load = $2, updated_at = NOW()
WHERE machine_id = $3
	AND ts >= $4 AND ts < $5
	AND ts <> $6`, r.table)
	if _, err := tx.ExecContext(ctx, fixup, dayMax, dayMin, reading.MachineID, start, end, ts); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

// ListByMachine scans readings for a machine, bounded by the query.
func (r *ReadingRepository) ListByMachine(ctx context.Context, machineID string, q readings.RangeQuery) ([]*readings.Reading, error) {
	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	args := []any{machineID}
	where := "machine_id = $1"
	if q.From != nil {
		args = append(args, q.From.UTC())
		where += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if q.To != nil {
		args = append(args, q.To.UTC())
		where += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT`+readingColumns+`
FROM %s
WHERE %s
ORDER BY ts %s
LIMIT $%d`, r.table, where, order, len(args))

	return r.queryReadings(ctx, query, args...)
}

// ListDay returns the machine's readings with ts in [start, end), ascending.
func (r *ReadingRepository) ListDay(ctx context.Context, machineID string, start, end time.Time) ([]*readings.Reading, error) {
	query := fmt.Sprintf(`
SELECT`+readingColumns+`
FROM %s
WHERE machine_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC`, r.table)
	return r.queryReadings(ctx, query, machineID, start.UTC(), end.UTC())
}

// ListDaySamples adapts ListDay for the daily aggregator.
func (r *ReadingRepository) ListDaySamples(ctx context.Context, machineID string, start, end time.Time) ([]summaries.Sample, error) {
	rows, err := r.ListDay(ctx, machineID, start, end)
	if err != nil {
		return nil, err
	}
	samples := make([]summaries.Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, summaries.Sample{TS: row.Timestamp, Load: row.Load})
	}
	return samples, nil
}

// AggregateByMachine computes avg/max/min/count of load over an optional
// time range.
func (r *ReadingRepository) AggregateByMachine(ctx context.Context, machineID string, from, to *time.Time) (readings.LoadAggregate, error) {
	args := []any{machineID}
	where := "machine_id = $1"
	if from != nil {
		args = append(args, from.UTC())
		where += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.UTC())
		where += fmt.Sprintf(" AND ts <= $%d", len(args))
	}

	query := fmt.Sprintf(`
SELECT AVG(load), MAX(load), MIN(load), COUNT(*)
FROM %s
WHERE %s`, r.table, where)

	var avg, max, min sql.NullFloat64
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&avg, &max, &min, &count); err != nil {
		return readings.LoadAggregate{}, err
	}

	agg := readings.LoadAggregate{Count: count}
	if avg.Valid {
		v := avg.Float64
		agg.Avg = &v
	}
	if max.Valid {
		v := max.Float64
		agg.Max = &v
	}
	if min.Valid {
		v := min.Float64
		agg.Min = &v
	}
	return agg, nil
}

// CountByMachine counts readings referencing a machine.
func (r *ReadingRepository) CountByMachine(ctx context.Context, machineID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE machine_id = $1`, r.table)
	var count int
	if err := r.db.QueryRowContext(ctx, query, machineID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FleetAverage computes the mean load over all historical readings of the
// plant type, joining through the machine registry.
func (r *ReadingRepository) FleetAverage(ctx context.Context, plantType string) (float64, int, error) {
	query := fmt.Sprintf(`
SELECT COALESCE(AVG(r.load), 0), COUNT(*)
FROM %s r
JOIN machines m ON m.id = r.machine_id
JOIN plants p ON p.id = m.plant_id
WHERE p.type = $1`, r.table)

	var avg float64
	var count int
	if err := r.db.QueryRowContext(ctx, query, plantType).Scan(&avg, &count); err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// ListByPlantType returns the plant type's most recent readings.
func (r *ReadingRepository) ListByPlantType(ctx context.Context, plantType string, limit int) ([]*readings.Reading, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT
	r.id, r.machine_id, r.ts, r.load, r.avg_load, r.max_load, r.min_load,
	r.dm_siang, r.dm_malam, r.dm_mesin, r.surplus, r.status, r.created_at, r.updated_at
FROM %s r
JOIN machines m ON m.id = r.machine_id
JOIN plants p ON p.id = m.plant_id
WHERE p.type = $1
ORDER BY r.ts DESC
LIMIT $2`, r.table)
	return r.queryReadings(ctx, query, plantType, limit)
}

func (r *ReadingRepository) queryReadings(ctx context.Context, query string, args ...any) ([]*readings.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*readings.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*readings.Reading, error) {
	var reading readings.Reading
	var avgLoad, maxLoad, minLoad, dmSiang, dmMalam sql.NullFloat64
	if err := row.Scan(
		&reading.ID,
		&reading.MachineID,
		&reading.Timestamp,
		&reading.Load,
		&avgLoad,
		&maxLoad,
		&minLoad,
		&dmSiang,
		&dmMalam,
		&reading.DMMesin,
		&reading.Surplus,
		&reading.Status,
		&reading.CreatedAt,
		&reading.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reading.Timestamp = reading.Timestamp.UTC()
	reading.CreatedAt = reading.CreatedAt.UTC()
	reading.UpdatedAt = reading.UpdatedAt.UTC()
	reading.AvgLoad = floatPtr(avgLoad)
	reading.MaxLoad = floatPtr(maxLoad)
	reading.MinLoad = floatPtr(minLoad)
	reading.DMSiang = floatPtr(dmSiang)
	reading.DMMalam = floatPtr(dmMalam)
	return &reading, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
