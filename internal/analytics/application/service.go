package application

import (
	"context"
	"errors"
	"math"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
)

// SummaryContext is a daily summary row joined with its machine and plant.
type SummaryContext struct {
	MachineID  string   `json:"machineId"`
	Identifier string   `json:"identifier"`
	PlantID    string   `json:"plantId"`
	PlantName  string   `json:"plantName"`
	PlantType  string   `json:"plantType"`
	MaxLoad    float64  `json:"maxLoad"`
	MinLoad    float64  `json:"minLoad"`
	DMSiang    *float64 `json:"dmSiang"`
	DMMalam    *float64 `json:"dmMalam"`
}

// SummaryReader lists daily summaries for a calendar day with context.
type SummaryReader interface {
	ListByDate(ctx context.Context, date time.Time) ([]SummaryContext, error)
}

// MachineStats is per-machine load statistics with context.
type MachineStats struct {
	MachineID  string  `json:"machineId"`
	Identifier string  `json:"identifier"`
	PlantID    string  `json:"plantId"`
	PlantName  string  `json:"plantName"`
	PlantType  string  `json:"plantType"`
	AvgLoad    float64 `json:"avgLoad"`
	MaxLoad    float64 `json:"maxLoad"`
	MinLoad    float64 `json:"minLoad"`
	Count      int     `json:"count"`
}

// StatsReader answers grouped reading statistics.
type StatsReader interface {
	GroupByMachine(ctx context.Context, from, to *time.Time) ([]MachineStats, error)
	CountMachines(ctx context.Context) (int, error)
}

// Clock provides time for period decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// MidRangeLoad approximates a machine's average load for a day as
// (maxLoad+minLoad)/2. This is a mid-range statistic, not an arithmetic
// mean; the status and total-load views have always reported it and it is
// kept under this name rather than silently replaced. A zero extremum
// yields 0, matching the original reporting behavior.
func MidRangeLoad(maxLoad, minLoad float64) float64 {
	if maxLoad == 0 || minLoad == 0 {
		return 0
	}
	return (maxLoad + minLoad) / 2
}

// Health labels for the system-status view.
const (
	StatusSurplus  = "SURPLUS"
	StatusDeficit  = "DEFICIT"
	StatusBalanced = "BALANCED"
)

// Service serves the reporting/analytics views over summaries and readings.
type Service struct {
	summaries SummaryReader
	stats     StatsReader
	clock     Clock
}

// NewService constructs an analytics service.
func NewService(summaries SummaryReader, stats StatsReader, clock Clock) (*Service, error) {
	if summaries == nil {
		return nil, errors.New("analytics: nil summary reader")
	}
	if stats == nil {
		return nil, errors.New("analytics: nil stats reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{summaries: summaries, stats: stats, clock: clock}, nil
}

// PlantStatus is the per-plant slice of the system status.
type PlantStatus struct {
	PlantID      string  `json:"plantId"`
	PlantName    string  `json:"plantName"`
	PlantType    string  `json:"plantType"`
	TotalDemand  float64 `json:"totalDemand"`
	TotalLoad    float64 `json:"totalLoad"`
	Surplus      float64 `json:"surplus"`
	MachineCount int     `json:"machineCount"`
}

// SystemStatus is the current system-wide demand/load picture.
type SystemStatus struct {
	Timestamp       time.Time       `json:"timestamp"`
	Period          readings.Period `json:"period"`
	TotalDemand     float64         `json:"totalDemand"`
	TotalLoad       float64         `json:"totalLoad"`
	Surplus         float64         `json:"surplus"`
	UtilizationRate float64         `json:"utilizationRate"`
	ActiveMachines  int             `json:"activeMachines"`
	Status          string          `json:"status"`
	Plants          []PlantStatus   `json:"plants"`
}

// CurrentSystemStatus reports today's demand/load balance. Each machine's
// current demand is dmSiang during the day window and dmMalam at night; its
// load contribution is the MidRangeLoad approximation over today's summary.
func (s *Service) CurrentSystemStatus(ctx context.Context) (*SystemStatus, error) {
	now := s.clock.Now()
	today := readings.DayStart(now)
	rows, err := s.summaries.ListByDate(ctx, today)
	if err != nil {
		return nil, err
	}

	status := &SystemStatus{Timestamp: now, Period: readings.PeriodOf(now)}
	byPlant := make(map[string]*PlantStatus)
	var order []string

	for _, row := range rows {
		plant := byPlant[row.PlantID]
		if plant == nil {
			plant = &PlantStatus{PlantID: row.PlantID, PlantName: row.PlantName, PlantType: row.PlantType}
			byPlant[row.PlantID] = plant
			order = append(order, row.PlantID)
		}
		plant.MachineCount++

		demand := readings.DemandFor(row.DMSiang, row.DMMalam, now)
		if demand > 0 {
			status.TotalDemand += demand
			plant.TotalDemand += demand
		}

		load := MidRangeLoad(row.MaxLoad, row.MinLoad)
		if load > 0 {
			status.TotalLoad += load
			plant.TotalLoad += load
			status.ActiveMachines++
		}
	}

	status.Surplus = status.TotalDemand - status.TotalLoad
	if status.TotalDemand > 0 {
		status.UtilizationRate = round2(status.TotalLoad / status.TotalDemand * 100)
	}
	switch {
	case status.Surplus > 0:
		status.Status = StatusSurplus
	case status.Surplus < 0:
		status.Status = StatusDeficit
	default:
		status.Status = StatusBalanced
	}

	for _, plantID := range order {
		plant := byPlant[plantID]
		plant.Surplus = plant.TotalDemand - plant.TotalLoad
		status.Plants = append(status.Plants, *plant)
	}
	return status, nil
}

// MachineDayLoad is the per-machine slice of the total-load view.
type MachineDayLoad struct {
	MachineID     string   `json:"machineId"`
	Identifier    string   `json:"identifier"`
	PlantName     string   `json:"plantName"`
	PlantType     string   `json:"plantType"`
	MaxLoad       float64  `json:"maxLoad"`
	MinLoad       float64  `json:"minLoad"`
	MidRangeLoad  float64  `json:"midRangeLoad"`
	DMSiang       *float64 `json:"dmSiang"`
	DMMalam       *float64 `json:"dmMalam"`
	CurrentDemand float64  `json:"currentDemand"`
}

// TotalLoadByDate is the day-wide demand/load view.
type TotalLoadByDate struct {
	Date                  time.Time        `json:"date"`
	Period                readings.Period  `json:"period"`
	TotalLoad             float64          `json:"totalLoad"`
	TotalDemand           float64          `json:"totalDemand"`
	Surplus               float64          `json:"surplus"`
	MachineCount          int              `json:"machineCount"`
	AverageLoadPerMachine float64          `json:"averageLoadPerMachine"`
	Machines              []MachineDayLoad `json:"machines"`
}

// TotalLoad reports the demand/load balance for one calendar day, using the
// period of the current wall-clock time to pick each machine's demand
// figure.
func (s *Service) TotalLoad(ctx context.Context, date time.Time) (*TotalLoadByDate, error) {
	if date.IsZero() {
		return nil, errors.New("analytics: invalid date")
	}
	day := readings.DayStart(date)
	rows, err := s.summaries.ListByDate(ctx, day)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	view := &TotalLoadByDate{Date: day, Period: readings.PeriodOf(now)}
	for _, row := range rows {
		demand := readings.DemandFor(row.DMSiang, row.DMMalam, now)
		load := MidRangeLoad(row.MaxLoad, row.MinLoad)
		if load > 0 {
			view.TotalLoad += load
			view.MachineCount++
		}
		if demand > 0 {
			view.TotalDemand += demand
		}
		view.Machines = append(view.Machines, MachineDayLoad{
			MachineID:     row.MachineID,
			Identifier:    row.Identifier,
			PlantName:     row.PlantName,
			PlantType:     row.PlantType,
			MaxLoad:       row.MaxLoad,
			MinLoad:       row.MinLoad,
			MidRangeLoad:  load,
			DMSiang:       row.DMSiang,
			DMMalam:       row.DMMalam,
			CurrentDemand: demand,
		})
	}
	view.Surplus = view.TotalDemand - view.TotalLoad
	if view.MachineCount > 0 {
		view.AverageLoadPerMachine = view.TotalLoad / float64(view.MachineCount)
	}
	return view, nil
}

// FleetAverages is the all-machines average view.
type FleetAverages struct {
	From                  *time.Time     `json:"from,omitempty"`
	To                    *time.Time     `json:"to,omitempty"`
	TotalMachines         int            `json:"totalMachines"`
	ActiveMachines        int            `json:"activeMachines"`
	SystemWideAverageLoad float64        `json:"systemWideAverageLoad"`
	SystemWideMaxLoad     float64        `json:"systemWideMaxLoad"`
	Machines              []MachineStats `json:"machines"`
}

// AllMachinesAverage reports per-machine statistics plus a system-wide
// summary. The system-wide average is the true reading-weighted mean, not
// the mid-range approximation.
func (s *Service) AllMachinesAverage(ctx context.Context, from, to *time.Time) (*FleetAverages, error) {
	stats, err := s.stats.GroupByMachine(ctx, from, to)
	if err != nil {
		return nil, err
	}
	total, err := s.stats.CountMachines(ctx)
	if err != nil {
		return nil, err
	}

	view := &FleetAverages{From: from, To: to, TotalMachines: total, Machines: stats}
	var loadSum float64
	var readingCount int
	for _, row := range stats {
		loadSum += row.AvgLoad * float64(row.Count)
		readingCount += row.Count
		if row.MaxLoad > view.SystemWideMaxLoad {
			view.SystemWideMaxLoad = row.MaxLoad
		}
	}
	view.ActiveMachines = len(stats)
	if readingCount > 0 {
		view.SystemWideAverageLoad = loadSum / float64(readingCount)
	}
	return view, nil
}

// PlantGroup is one plant's slice of the plant summary view.
type PlantGroup struct {
	PlantID      string           `json:"plantId"`
	PlantName    string           `json:"plantName"`
	PlantType    string           `json:"plantType"`
	Machines     []SummaryContext `json:"machines"`
	MaxLoad      float64          `json:"maxLoad"`
	MinLoad      float64          `json:"minLoad"`
	DMSiang      float64          `json:"dmSiang"`
	DMMalam      float64          `json:"dmMalam"`
	MachineCount int              `json:"machineCount"`
}

// PlantSummary groups one day's summaries by plant, optionally restricted to
// a single plant.
func (s *Service) PlantSummary(ctx context.Context, plantID string, date time.Time) ([]PlantGroup, error) {
	if date.IsZero() {
		date = s.clock.Now()
	}
	rows, err := s.summaries.ListByDate(ctx, readings.DayStart(date))
	if err != nil {
		return nil, err
	}

	byPlant := make(map[string]*PlantGroup)
	var order []string
	for _, row := range rows {
		if plantID != "" && row.PlantID != plantID {
			continue
		}
		group := byPlant[row.PlantID]
		if group == nil {
			group = &PlantGroup{PlantID: row.PlantID, PlantName: row.PlantName, PlantType: row.PlantType}
			byPlant[row.PlantID] = group
			order = append(order, row.PlantID)
		}
		group.Machines = append(group.Machines, row)
		group.MaxLoad += row.MaxLoad
		group.MinLoad += row.MinLoad
		if row.DMSiang != nil {
			group.DMSiang += *row.DMSiang
		}
		if row.DMMalam != nil {
			group.DMMalam += *row.DMMalam
		}
		group.MachineCount++
	}

	result := make([]PlantGroup, 0, len(order))
	for _, id := range order {
		result = append(result, *byPlant[id])
	}
	return result, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
