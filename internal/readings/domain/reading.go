package readings

import (
	"context"
	"time"
)

// Reading is one load sample for a machine at a point in time.
// MaxLoad/MinLoad are day-scoped aggregates denormalized onto the row: they
// cover every reading of the machine for the same UTC calendar day, not this
// row alone, and are rewritten whenever any reading of that day changes.
type Reading struct {
	ID        int64     `json:"id"`
	MachineID string    `json:"machineId"`
	Timestamp time.Time `json:"timestamp"`
	Load      float64   `json:"load"`

	AvgLoad *float64 `json:"avgLoad"`
	MaxLoad *float64 `json:"maxLoad"`
	MinLoad *float64 `json:"minLoad"`

	DMSiang *float64 `json:"dmSiang"`
	DMMalam *float64 `json:"dmMalam"`
	DMMesin float64  `json:"dmMesin"`
	Surplus float64  `json:"surplus"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RangeQuery bounds a machine range scan.
type RangeQuery struct {
	From      *time.Time
	To        *time.Time
	Limit     int
	Ascending bool
}

// LoadAggregate holds scalar aggregate results over load values.
// Avg/Max/Min are nil when no rows matched.
type LoadAggregate struct {
	Avg   *float64 `json:"avg"`
	Max   *float64 `json:"max"`
	Min   *float64 `json:"min"`
	Count int      `json:"count"`
}

// Repository persists load readings.
type Repository interface {
	// Insert stores a new reading. ErrDuplicateReading when a row already
	// exists for (machine, timestamp).
	Insert(ctx context.Context, reading *Reading) (*Reading, error)
	// Get returns the reading for the exact (machine, timestamp) key.
	Get(ctx context.Context, machineID string, ts time.Time) (*Reading, error)
	// UpsertWithDayStats writes the reading (insert or update-in-place
	// preserving created_at) and broadcasts dayMax/dayMin to every other
	// reading of the same machine/day, in one atomic unit of work.
	UpsertWithDayStats(ctx context.Context, reading *Reading, dayMax, dayMin float64) (*Reading, error)
	// ListByMachine scans readings for a machine, bounded by the query.
	ListByMachine(ctx context.Context, machineID string, q RangeQuery) ([]*Reading, error)
	// ListDay returns the machine's readings with ts in [start, end),
	// timestamp ascending.
	ListDay(ctx context.Context, machineID string, start, end time.Time) ([]*Reading, error)
	// AggregateByMachine computes avg/max/min/count of load over an
	// optional time range.
	AggregateByMachine(ctx context.Context, machineID string, from, to *time.Time) (LoadAggregate, error)
	// CountByMachine counts readings referencing a machine.
	CountByMachine(ctx context.Context, machineID string) (int, error)
}

// FleetReader answers plant-type-wide queries across all machines of a type.
type FleetReader interface {
	// FleetAverage returns the mean load over all historical readings of
	// the plant type and the number of readings. Average is 0 when count
	// is 0.
	FleetAverage(ctx context.Context, plantType string) (avg float64, count int, err error)
	// ListByPlantType returns the most recent readings across the plant
	// type's machines, newest first.
	ListByPlantType(ctx context.Context, plantType string, limit int) ([]*Reading, error)
}
