package application

import (
	"context"
	"errors"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
	registry "powerplant-cloud/internal/registry/domain"
)

// MachineLookup resolves a machine and its owning plant context.
type MachineLookup interface {
	GetMachine(ctx context.Context, id string) (*registry.MachineWithPlant, error)
}

// DailyAggregator recomputes the daily summary for a machine/day.
type DailyAggregator interface {
	Recompute(ctx context.Context, machineID string, day time.Time) error
}

// Clock provides time for the ingestion service.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IngestService orchestrates reading writes with surplus derivation and the
// synchronous daily summary recompute. All work for one request completes
// before the call returns; nothing is deferred to background workers.
type IngestService struct {
	repo       readings.Repository
	machines   MachineLookup
	surplus    *readings.SurplusCalculator
	aggregator DailyAggregator
	clock      Clock
}

// NewIngestService constructs an IngestService.
func NewIngestService(repo readings.Repository, machines MachineLookup, surplus *readings.SurplusCalculator, aggregator DailyAggregator, clock Clock) (*IngestService, error) {
	if repo == nil {
		return nil, errors.New("ingest: nil repository")
	}
	if machines == nil {
		return nil, errors.New("ingest: nil machine lookup")
	}
	if surplus == nil {
		return nil, errors.New("ingest: nil surplus calculator")
	}
	if aggregator == nil {
		return nil, errors.New("ingest: nil aggregator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &IngestService{
		repo:       repo,
		machines:   machines,
		surplus:    surplus,
		aggregator: aggregator,
		clock:      clock,
	}, nil
}

// CreateInput is the create-only ingestion payload.
type CreateInput struct {
	MachineID string
	Timestamp time.Time
	Load      float64
	Status    string
}

// Create stores a new reading. A second write for an existing
// (machine, timestamp) key fails with ErrDuplicateReading. dmMesin and
// surplus are computed once at write time from the current plant-type
// average; earlier rows are not updated retroactively.
func (s *IngestService) Create(ctx context.Context, in CreateInput) (*readings.Reading, error) {
	machine, err := s.validate(ctx, in.MachineID, in.Timestamp)
	if err != nil {
		return nil, err
	}

	derived, err := s.surplus.Surplus(ctx, string(machine.PlantType), nil, nil, in.Timestamp)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Insert(ctx, &readings.Reading{
		MachineID: in.MachineID,
		Timestamp: in.Timestamp.UTC(),
		Load:      in.Load,
		DMMesin:   derived.DMMesin,
		Surplus:   derived.Surplus,
		Status:    in.Status,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.aggregator.Recompute(ctx, in.MachineID, in.Timestamp); err != nil {
		return nil, err
	}
	return stored, nil
}

// UpsertInput is the demand-carrying ingestion payload.
type UpsertInput struct {
	MachineID string
	Timestamp time.Time
	Load      float64
	DMSiang   *float64
	DMMalam   *float64
	Status    string
}

// UpsertWithDemand creates or replaces the reading for the key, preserving
// the original created_at on replace. The day-scoped max/min written with the
// row already include the incoming sample, and the same values are broadcast
// to every other reading of the machine/day within the repository's atomic
// unit of work.
func (s *IngestService) UpsertWithDemand(ctx context.Context, in UpsertInput) (*readings.Reading, error) {
	machine, err := s.validate(ctx, in.MachineID, in.Timestamp)
	if err != nil {
		return nil, err
	}

	ts := in.Timestamp.UTC()
	start, end := readings.DayBounds(ts)
	dayRows, err := s.repo.ListDay(ctx, in.MachineID, start, end)
	if err != nil {
		return nil, err
	}

	dayMax, dayMin := in.Load, in.Load
	for _, row := range dayRows {
		if row.Timestamp.Equal(ts) {
			// The row being replaced does not count toward the extrema.
			continue
		}
		if row.Load > dayMax {
			dayMax = row.Load
		}
		if row.Load < dayMin {
			dayMin = row.Load
		}
	}

	derived, err := s.surplus.Surplus(ctx, string(machine.PlantType), in.DMSiang, in.DMMalam, ts)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.UpsertWithDayStats(ctx, &readings.Reading{
		MachineID: in.MachineID,
		Timestamp: ts,
		Load:      in.Load,
		AvgLoad:   &derived.AvgPerPlantType,
		DMSiang:   in.DMSiang,
		DMMalam:   in.DMMalam,
		DMMesin:   derived.DMMesin,
		Surplus:   derived.Surplus,
		Status:    in.Status,
		CreatedAt: s.clock.Now(),
	}, dayMax, dayMin)
	if err != nil {
		return nil, err
	}

	if err := s.aggregator.Recompute(ctx, in.MachineID, ts); err != nil {
		return nil, err
	}
	return stored, nil
}

// BulkItem is one entry of a bulk ingestion batch.
type BulkItem struct {
	Timestamp time.Time
	Load      float64
	Status    string
}

// BulkResult reports the outcome of a bulk ingestion.
type BulkResult struct {
	Created  int                 `json:"created"`
	Total    int                 `json:"total"`
	Readings []*readings.Reading `json:"readings"`
}

// BulkCreate attempts each item as an independent create. Duplicate-key
// failures are skipped silently; any other failure aborts the remaining
// batch while keeping prior successes committed. The daily summary is
// recomputed once per distinct UTC day touched, not once per reading.
func (s *IngestService) BulkCreate(ctx context.Context, machineID string, items []BulkItem) (BulkResult, error) {
	result := BulkResult{Total: len(items)}
	if len(items) == 0 {
		return result, readings.ErrEmptyBatch
	}

	machine, err := s.machines.GetMachine(ctx, machineID)
	if err != nil {
		return result, err
	}

	days := make(map[time.Time]struct{})
	for _, item := range items {
		if item.Timestamp.IsZero() {
			return result, readings.ErrInvalidTimestamp
		}
		derived, err := s.surplus.Surplus(ctx, string(machine.PlantType), nil, nil, item.Timestamp)
		if err != nil {
			return result, err
		}
		stored, err := s.repo.Insert(ctx, &readings.Reading{
			MachineID: machineID,
			Timestamp: item.Timestamp.UTC(),
			Load:      item.Load,
			DMMesin:   derived.DMMesin,
			Surplus:   derived.Surplus,
			Status:    item.Status,
			CreatedAt: s.clock.Now(),
		})
		if errors.Is(err, readings.ErrDuplicateReading) {
			continue
		}
		if err != nil {
			return result, err
		}
		result.Created++
		result.Readings = append(result.Readings, stored)
		days[readings.DayStart(stored.Timestamp)] = struct{}{}
	}

	for day := range days {
		if err := s.aggregator.Recompute(ctx, machineID, day); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *IngestService) validate(ctx context.Context, machineID string, ts time.Time) (*registry.MachineWithPlant, error) {
	if machineID == "" {
		return nil, readings.ErrMissingMachineID
	}
	if ts.IsZero() {
		return nil, readings.ErrInvalidTimestamp
	}
	return s.machines.GetMachine(ctx, machineID)
}
