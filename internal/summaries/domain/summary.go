package summaries

import (
	"context"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
)

// DailySummary is the one-row-per-machine-per-day aggregate. DMSiang/DMMalam
// are arithmetic means of load over the day and night periods; a nil value
// means the period had no readings, which is distinct from an average of 0.
type DailySummary struct {
	ID        int64     `json:"id"`
	MachineID string    `json:"machineId"`
	Date      time.Time `json:"date"`
	MaxLoad   float64   `json:"maxLoad"`
	MinLoad   float64   `json:"minLoad"`
	DMSiang   *float64  `json:"dmSiang"`
	DMMalam   *float64  `json:"dmMalam"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sample is the slice of a reading the day aggregation needs.
type Sample struct {
	TS   time.Time
	Load float64
}

// DayStats is the computed aggregate for one machine/day.
type DayStats struct {
	MaxLoad float64
	MinLoad float64
	DMSiang *float64
	DMMalam *float64
}

// ComputeDayStats derives extrema and period averages from a day's samples.
// MaxLoad/MinLoad span both periods; each period average covers only its own
// bucket and is nil when the bucket is empty. Returns false for an empty
// input, in which case no summary should be written.
func ComputeDayStats(samples []Sample) (DayStats, bool) {
	if len(samples) == 0 {
		return DayStats{}, false
	}

	stats := DayStats{MaxLoad: samples[0].Load, MinLoad: samples[0].Load}
	var siangSum, malamSum float64
	var siangCount, malamCount int

	for _, s := range samples {
		if s.Load > stats.MaxLoad {
			stats.MaxLoad = s.Load
		}
		if s.Load < stats.MinLoad {
			stats.MinLoad = s.Load
		}
		if readings.IsNight(s.TS) {
			malamSum += s.Load
			malamCount++
		} else {
			siangSum += s.Load
			siangCount++
		}
	}

	if siangCount > 0 {
		avg := siangSum / float64(siangCount)
		stats.DMSiang = &avg
	}
	if malamCount > 0 {
		avg := malamSum / float64(malamCount)
		stats.DMMalam = &avg
	}
	return stats, true
}

// RangeQuery bounds a summary scan by date.
type RangeQuery struct {
	From *time.Time
	To   *time.Time
}

// Repository persists daily summaries.
type Repository interface {
	Get(ctx context.Context, machineID string, date time.Time) (*DailySummary, error)
	// Upsert creates or updates the (machine, date) row guarded by the
	// optimistic version carried on the summary: Version 0 means the
	// caller read no existing row and expects to insert, any other value
	// is a compare-and-swap against the stored version. Returns
	// ErrVersionConflict when a concurrent writer won; callers recompute
	// and retry. created_at is set only on first creation.
	Upsert(ctx context.Context, summary *DailySummary) error
	// ListByMachine returns summaries date-descending.
	ListByMachine(ctx context.Context, machineID string, q RangeQuery) ([]*DailySummary, error)
}
