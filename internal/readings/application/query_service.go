package application

import (
	"context"
	"errors"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
	registry "powerplant-cloud/internal/registry/domain"
)

// QueryService serves read-only reading queries with machine/plant context.
type QueryService struct {
	repo     readings.Repository
	fleet    readings.FleetReader
	machines MachineLookup
	clock    Clock
}

// NewQueryService constructs a QueryService.
func NewQueryService(repo readings.Repository, fleet readings.FleetReader, machines MachineLookup, clock Clock) (*QueryService, error) {
	if repo == nil {
		return nil, errors.New("readings query: nil repository")
	}
	if fleet == nil {
		return nil, errors.New("readings query: nil fleet reader")
	}
	if machines == nil {
		return nil, errors.New("readings query: nil machine lookup")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &QueryService{repo: repo, fleet: fleet, machines: machines, clock: clock}, nil
}

// MachineReadings is a machine's readings with plant context, newest first.
type MachineReadings struct {
	Machine  *registry.MachineWithPlant `json:"machine"`
	Readings []*readings.Reading        `json:"readings"`
}

// ListByMachine returns a machine's readings newest first.
func (s *QueryService) ListByMachine(ctx context.Context, machineID string, from, to *time.Time, limit int) (*MachineReadings, error) {
	machine, err := s.machines.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByMachine(ctx, machineID, readings.RangeQuery{
		From:  from,
		To:    to,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	return &MachineReadings{Machine: machine, Readings: rows}, nil
}

// MachineAverage is the aggregate view for one machine.
type MachineAverage struct {
	Machine *registry.MachineWithPlant `json:"machine"`
	Stats   readings.LoadAggregate     `json:"stats"`
	From    *time.Time                 `json:"from,omitempty"`
	To      *time.Time                 `json:"to,omitempty"`
}

// Average computes avg/max/min/count of load for a machine over an optional
// range.
func (s *QueryService) Average(ctx context.Context, machineID string, from, to *time.Time) (*MachineAverage, error) {
	machine, err := s.machines.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.AggregateByMachine(ctx, machineID, from, to)
	if err != nil {
		return nil, err
	}
	return &MachineAverage{Machine: machine, Stats: stats, From: from, To: to}, nil
}

// PlantTypeView is the plant-type-wide aggregated view.
type PlantTypeView struct {
	PlantType       string              `json:"plantType"`
	Readings        []*readings.Reading `json:"readings"`
	AvgPerPlantType float64             `json:"avgPerPlantType"`
	DMMesinSum      float64             `json:"dmMesinSum"`
	Surplus         float64             `json:"surplus"`
	IsNightTime     bool                `json:"isNightTime"`
	TotalReadings   int                 `json:"totalReadings"`
}

// ByPlantType aggregates readings fleet-wide for a plant type: the all-time
// average load, the sum of per-reading demand figures, the surplus between
// the two, and the recent readings themselves.
func (s *QueryService) ByPlantType(ctx context.Context, plantType string, limit int) (*PlantTypeView, error) {
	normalized, ok := registry.NormalizePlantType(plantType)
	if !ok {
		return nil, registry.ErrInvalidPlantType
	}

	avg, count, err := s.fleet.FleetAverage(ctx, string(normalized))
	if err != nil {
		return nil, err
	}
	rows, err := s.fleet.ListByPlantType(ctx, string(normalized), limit)
	if err != nil {
		return nil, err
	}

	var dmMesinSum float64
	for _, row := range rows {
		dmMesinSum += row.DMMesin
	}

	return &PlantTypeView{
		PlantType:       string(normalized),
		Readings:        rows,
		AvgPerPlantType: avg,
		DMMesinSum:      dmMesinSum,
		Surplus:         avg - dmMesinSum,
		IsNightTime:     readings.IsNight(s.clock.Now()),
		TotalReadings:   count,
	}, nil
}
