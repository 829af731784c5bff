package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
	summaries "powerplant-cloud/internal/summaries/domain"
)

// PlantTypeResolver maps a machine to its owning plant type.
type PlantTypeResolver interface {
	PlantTypeOf(machineID string) (string, bool)
}

// ReadingRepository is an in-memory reading store for demo/testing. It
// implements the reading repository, the fleet reader, and the daily
// aggregation sample source.
type ReadingRepository struct {
	mu       sync.Mutex
	rows     map[string]*readings.Reading
	nextID   int64
	resolver PlantTypeResolver
}

// NewReadingRepository constructs a repository. The resolver may be nil when
// fleet queries are not exercised.
func NewReadingRepository(resolver PlantTypeResolver) *ReadingRepository {
	return &ReadingRepository{
		rows:     make(map[string]*readings.Reading),
		nextID:   1,
		resolver: resolver,
	}
}

func key(machineID string, ts time.Time) string {
	return machineID + "/" + ts.UTC().Format(time.RFC3339Nano)
}

// Insert stores a new reading, failing on a duplicate key.
func (r *ReadingRepository) Insert(ctx context.Context, reading *readings.Reading) (*readings.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(reading.MachineID, reading.Timestamp)
	if r.rows[k] != nil {
		return nil, readings.ErrDuplicateReading
	}
	copied := *reading
	copied.ID = r.nextID
	copied.UpdatedAt = copied.CreatedAt
	r.nextID++
	r.rows[k] = &copied
	out := copied
	return &out, nil
}

// Get returns the reading for the exact key.
func (r *ReadingRepository) Get(ctx context.Context, machineID string, ts time.Time) (*readings.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[key(machineID, ts)]
	if row == nil {
		return nil, readings.ErrReadingNotFound
	}
	copied := *row
	return &copied, nil
}

// UpsertWithDayStats writes the row and rewrites the day extrema on every
// other reading of the machine/day under one lock, mirroring the
// single-transaction behavior of the Postgres implementation.
func (r *ReadingRepository) UpsertWithDayStats(ctx context.Context, reading *readings.Reading, dayMax, dayMin float64) (*readings.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(reading.MachineID, reading.Timestamp)
	copied := *reading
	copied.MaxLoad = &dayMax
	copied.MinLoad = &dayMin
	if existing := r.rows[k]; existing != nil {
		copied.ID = existing.ID
		copied.CreatedAt = existing.CreatedAt
	} else {
		copied.ID = r.nextID
		r.nextID++
	}
	copied.UpdatedAt = reading.CreatedAt
	r.rows[k] = &copied

	start, end := readings.DayBounds(reading.Timestamp)
	for _, row := range r.rows {
		if row.MachineID != reading.MachineID || row.Timestamp.Equal(copied.Timestamp) {
			continue
		}
		if row.Timestamp.Before(start) || !row.Timestamp.Before(end) {
			continue
		}
		maxCopy, minCopy := dayMax, dayMin
		row.MaxLoad = &maxCopy
		row.MinLoad = &minCopy
	}

	out := copied
	return &out, nil
}

// ListByMachine scans readings for a machine.
func (r *ReadingRepository) ListByMachine(ctx context.Context, machineID string, q readings.RangeQuery) ([]*readings.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*readings.Reading
	for _, row := range r.rows {
		if row.MachineID != machineID {
			continue
		}
		if q.From != nil && row.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && row.Timestamp.After(*q.To) {
			continue
		}
		copied := *row
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if q.Ascending {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[j].Timestamp.Before(result[i].Timestamp)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// ListDay returns the machine's readings with ts in [start, end), ascending.
func (r *ReadingRepository) ListDay(ctx context.Context, machineID string, start, end time.Time) ([]*readings.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*readings.Reading
	for _, row := range r.rows {
		if row.MachineID != machineID {
			continue
		}
		if row.Timestamp.Before(start) || !row.Timestamp.Before(end) {
			continue
		}
		copied := *row
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
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

// AggregateByMachine computes avg/max/min/count of load.
func (r *ReadingRepository) AggregateByMachine(ctx context.Context, machineID string, from, to *time.Time) (readings.LoadAggregate, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var agg readings.LoadAggregate
	var sum float64
	for _, row := range r.rows {
		if row.MachineID != machineID {
			continue
		}
		if from != nil && row.Timestamp.Before(*from) {
			continue
		}
		if to != nil && row.Timestamp.After(*to) {
			continue
		}
		if agg.Count == 0 {
			maxLoad, minLoad := row.Load, row.Load
			agg.Max = &maxLoad
			agg.Min = &minLoad
		} else {
			if row.Load > *agg.Max {
				*agg.Max = row.Load
			}
			if row.Load < *agg.Min {
				*agg.Min = row.Load
			}
		}
		sum += row.Load
		agg.Count++
	}
	if agg.Count > 0 {
		avg := sum / float64(agg.Count)
		agg.Avg = &avg
	}
	return agg, nil
}

// CountByMachine counts readings referencing a machine.
func (r *ReadingRepository) CountByMachine(ctx context.Context, machineID string) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, row := range r.rows {
		if row.MachineID == machineID {
			count++
		}
	}
	return count, nil
}

// FleetAverage computes the mean load over all readings of the plant type.
func (r *ReadingRepository) FleetAverage(ctx context.Context, plantType string) (float64, int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolver == nil {
		return 0, 0, nil
	}
	var sum float64
	count := 0
	for _, row := range r.rows {
		rowType, ok := r.resolver.PlantTypeOf(row.MachineID)
		if !ok || rowType != plantType {
			continue
		}
		sum += row.Load
		count++
	}
	if count == 0 {
		return 0, 0, nil
	}
	return sum / float64(count), count, nil
}

// ListByPlantType returns the plant type's readings, newest first.
func (r *ReadingRepository) ListByPlantType(ctx context.Context, plantType string, limit int) ([]*readings.Reading, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolver == nil {
		return nil, nil
	}
	var result []*readings.Reading
	for _, row := range r.rows {
		rowType, ok := r.resolver.PlantTypeOf(row.MachineID)
		if !ok || rowType != plantType {
			continue
		}
		copied := *row
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[j].Timestamp.Before(result[i].Timestamp) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
