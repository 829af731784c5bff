package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"powerplant-cloud/internal/analytics/application"
)

// Reader answers the analytics read queries directly against Postgres.
// Views join summaries and readings with machine/plant context, so they
// bypass the per-feature repositories and keep the joins in one place.
type Reader struct {
	db *sql.DB
}

// NewReader constructs a Reader.
func NewReader(db *sql.DB) (*Reader, error) {
	if db == nil {
		return nil, errors.New("analytics reader: nil db")
	}
	return &Reader{db: db}, nil
}

// ListByDate returns all daily summaries for a calendar day joined with
// machine and plant context.
func (r *Reader) ListByDate(ctx context.Context, date time.Time) ([]application.SummaryContext, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT
	s.machine_id, m.identifier, p.id, p.name, p.type,
	s.max_load, s.min_load, s.dm_siang, s.dm_malam
FROM daily_summaries s
JOIN machines m ON m.id = s.machine_id
JOIN plants p ON p.id = m.plant_id
WHERE s.date = $1
ORDER BY p.name ASC, m.identifier ASC`, date.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []application.SummaryContext
	for rows.Next() {
		var row application.SummaryContext
		var dmSiang, dmMalam sql.NullFloat64
		if err := rows.Scan(
			&row.MachineID,
			&row.Identifier,
			&row.PlantID,
			&row.PlantName,
			&row.PlantType,
			&row.MaxLoad,
			&row.MinLoad,
			&dmSiang,
			&dmMalam,
		); err != nil {
			return nil, err
		}
		if dmSiang.Valid {
			v := dmSiang.Float64
			row.DMSiang = &v
		}
		if dmMalam.Valid {
			v := dmMalam.Float64
			row.DMMalam = &v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GroupByMachine returns per-machine load statistics over an optional time
// range, machines without readings excluded.
func (r *Reader) GroupByMachine(ctx context.Context, from, to *time.Time) ([]application.MachineStats, error) {
	args := []any{}
	where := ""
	if from != nil {
		args = append(args, from.UTC())
		where += fmt.Sprintf(" AND lr.ts >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.UTC())
		where += fmt.Sprintf(" AND lr.ts <= $%d", len(args))
	}

	query := `
SELECT
	m.id, m.identifier, p.id, p.name, p.type,
	AVG(lr.load), MAX(lr.load), MIN(lr.load), COUNT(*)
FROM load_readings lr
JOIN machines m ON m.id = lr.machine_id
JOIN plants p ON p.id = m.plant_id
WHERE 1=1` + where + `
GROUP BY m.id, m.identifier, p.id, p.name, p.type
ORDER BY p.name ASC, m.identifier ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []application.MachineStats
	for rows.Next() {
		var row application.MachineStats
		if err := rows.Scan(
			&row.MachineID,
			&row.Identifier,
			&row.PlantID,
			&row.PlantName,
			&row.PlantType,
			&row.AvgLoad,
			&row.MaxLoad,
			&row.MinLoad,
			&row.Count,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountMachines returns the total number of registered machines.
func (r *Reader) CountMachines(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM machines`).Scan(&count)
	return count, err
}
