package application

import (
	"context"
	"testing"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubSummaries struct{ rows []SummaryContext }

func (s stubSummaries) ListByDate(ctx context.Context, date time.Time) ([]SummaryContext, error) {
	return s.rows, nil
}

type stubStats struct {
	rows  []MachineStats
	total int
}

func (s stubStats) GroupByMachine(ctx context.Context, from, to *time.Time) ([]MachineStats, error) {
	return s.rows, nil
}

func (s stubStats) CountMachines(ctx context.Context) (int, error) {
	return s.total, nil
}

func fl(v float64) *float64 { return &v }

func TestMidRangeLoad(t *testing.T) {
	if got := MidRangeLoad(120, 80); got != 100 {
		t.Errorf("MidRangeLoad(120, 80) = %v, want 100", got)
	}
	if got := MidRangeLoad(120, 0); got != 0 {
		t.Errorf("a zero extremum must yield 0, got %v", got)
	}
	if got := MidRangeLoad(0, 80); got != 0 {
		t.Errorf("a zero extremum must yield 0, got %v", got)
	}
}

func TestCurrentSystemStatusDaytime(t *testing.T) {
	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := []SummaryContext{
		{MachineID: "m-1", PlantID: "p-1", PlantName: "Suralaya", PlantType: "PLTU", MaxLoad: 120, MinLoad: 80, DMSiang: fl(150), DMMalam: fl(60)},
		{MachineID: "m-2", PlantID: "p-1", PlantName: "Suralaya", PlantType: "PLTU", MaxLoad: 100, MinLoad: 0, DMSiang: fl(40)},
	}
	service, err := NewService(stubSummaries{rows: rows}, stubStats{}, fixedClock{now: noon})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	status, err := service.CurrentSystemStatus(context.Background())
	if err != nil {
		t.Fatalf("CurrentSystemStatus: %v", err)
	}
	if status.Period != readings.PeriodSiang {
		t.Errorf("period = %s, want SIANG at noon", status.Period)
	}
	if status.TotalDemand != 190 {
		t.Errorf("totalDemand = %v, want 190 from the dmSiang figures", status.TotalDemand)
	}
	if status.TotalLoad != 100 {
		t.Errorf("totalLoad = %v, want 100 (mid-range of 120/80; zero-extremum machine contributes nothing)", status.TotalLoad)
	}
	if status.ActiveMachines != 1 {
		t.Errorf("activeMachines = %d, want 1", status.ActiveMachines)
	}
	if status.Surplus != 90 {
		t.Errorf("surplus = %v, want 90", status.Surplus)
	}
	if status.Status != StatusSurplus {
		t.Errorf("status = %s, want SURPLUS", status.Status)
	}
	if status.UtilizationRate != 52.63 {
		t.Errorf("utilizationRate = %v, want 52.63", status.UtilizationRate)
	}
	if len(status.Plants) != 1 || status.Plants[0].MachineCount != 2 {
		t.Errorf("plants = %+v, want one plant with two machines", status.Plants)
	}
}

func TestCurrentSystemStatusNightUsesDMMalam(t *testing.T) {
	night := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	rows := []SummaryContext{
		{MachineID: "m-1", PlantID: "p-1", PlantName: "Suralaya", PlantType: "PLTU", MaxLoad: 120, MinLoad: 80, DMSiang: fl(150), DMMalam: fl(60)},
	}
	service, _ := NewService(stubSummaries{rows: rows}, stubStats{}, fixedClock{now: night})

	status, err := service.CurrentSystemStatus(context.Background())
	if err != nil {
		t.Fatalf("CurrentSystemStatus: %v", err)
	}
	if status.Period != readings.PeriodMalam {
		t.Errorf("period = %s, want MALAM", status.Period)
	}
	if status.TotalDemand != 60 {
		t.Errorf("totalDemand = %v, want 60 from dmMalam", status.TotalDemand)
	}
	if status.Status != StatusDeficit {
		t.Errorf("status = %s, want DEFICIT (demand 60 < load 100)", status.Status)
	}
}

func TestTotalLoad(t *testing.T) {
	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := []SummaryContext{
		{MachineID: "m-1", Identifier: "ST-01", PlantName: "Suralaya", PlantType: "PLTU", MaxLoad: 120, MinLoad: 80, DMSiang: fl(150)},
		{MachineID: "m-2", Identifier: "ST-02", PlantName: "Suralaya", PlantType: "PLTU", MaxLoad: 90, MinLoad: 70, DMSiang: fl(50)},
	}
	service, _ := NewService(stubSummaries{rows: rows}, stubStats{}, fixedClock{now: noon})

	view, err := service.TotalLoad(context.Background(), noon)
	if err != nil {
		t.Fatalf("TotalLoad: %v", err)
	}
	if view.TotalLoad != 180 {
		t.Errorf("totalLoad = %v, want 180", view.TotalLoad)
	}
	if view.MachineCount != 2 {
		t.Errorf("machineCount = %d, want 2", view.MachineCount)
	}
	if view.AverageLoadPerMachine != 90 {
		t.Errorf("averageLoadPerMachine = %v, want 90", view.AverageLoadPerMachine)
	}
	if len(view.Machines) != 2 || view.Machines[0].MidRangeLoad != 100 {
		t.Errorf("machines = %+v", view.Machines)
	}
}

func TestAllMachinesAverageIsReadingWeighted(t *testing.T) {
	stats := []MachineStats{
		{MachineID: "m-1", AvgLoad: 100, MaxLoad: 140, Count: 3},
		{MachineID: "m-2", AvgLoad: 50, MaxLoad: 60, Count: 1},
	}
	service, _ := NewService(stubSummaries{}, stubStats{rows: stats, total: 5}, fixedClock{now: time.Now().UTC()})

	view, err := service.AllMachinesAverage(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("AllMachinesAverage: %v", err)
	}
	if view.SystemWideAverageLoad != 87.5 {
		t.Errorf("systemWideAverageLoad = %v, want 87.5", view.SystemWideAverageLoad)
	}
	if view.SystemWideMaxLoad != 140 {
		t.Errorf("systemWideMaxLoad = %v, want 140", view.SystemWideMaxLoad)
	}
	if view.TotalMachines != 5 || view.ActiveMachines != 2 {
		t.Errorf("machines = %d/%d, want 5 total and 2 active", view.TotalMachines, view.ActiveMachines)
	}
}

func TestPlantSummaryGroupsAndFilters(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := []SummaryContext{
		{MachineID: "m-1", PlantID: "p-1", PlantName: "Suralaya", MaxLoad: 120, MinLoad: 80, DMSiang: fl(110)},
		{MachineID: "m-2", PlantID: "p-1", PlantName: "Suralaya", MaxLoad: 90, MinLoad: 70, DMMalam: fl(60)},
		{MachineID: "m-3", PlantID: "p-2", PlantName: "Paiton", MaxLoad: 50, MinLoad: 40},
	}
	service, _ := NewService(stubSummaries{rows: rows}, stubStats{}, fixedClock{now: day})

	groups, err := service.PlantSummary(context.Background(), "", day)
	if err != nil {
		t.Fatalf("PlantSummary: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	first := groups[0]
	if first.MachineCount != 2 || first.MaxLoad != 210 || first.MinLoad != 150 {
		t.Errorf("group = %+v", first)
	}
	if first.DMSiang != 110 || first.DMMalam != 60 {
		t.Errorf("period sums = %v/%v, want 110/60", first.DMSiang, first.DMMalam)
	}

	filtered, err := service.PlantSummary(context.Background(), "p-2", day)
	if err != nil {
		t.Fatalf("filtered PlantSummary: %v", err)
	}
	if len(filtered) != 1 || filtered[0].PlantName != "Paiton" {
		t.Errorf("filtered = %+v", filtered)
	}
}
