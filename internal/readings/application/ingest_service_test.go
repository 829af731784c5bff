package application

import (
	"context"
	"errors"
	"testing"
	"time"

	readings "powerplant-cloud/internal/readings/domain"
	readingsmem "powerplant-cloud/internal/readings/infrastructure/memory"
	registry "powerplant-cloud/internal/registry/domain"
	registrymem "powerplant-cloud/internal/registry/infrastructure/memory"
	summariesapp "powerplant-cloud/internal/summaries/application"
	summariesmem "powerplant-cloud/internal/summaries/infrastructure/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type ingestFixture struct {
	service   *IngestService
	readings  *readingsmem.ReadingRepository
	summaries *summariesmem.SummaryRepository
	clock     *fakeClock
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	ctx := context.Background()

	reg := registrymem.NewRegistry()
	if err := reg.Create(ctx, &registry.Plant{ID: "plant-1", Name: "Suralaya", Type: registry.PlantTypePLTU}); err != nil {
		t.Fatalf("create plant: %v", err)
	}
	if err := reg.CreateMachine(ctx, &registry.Machine{ID: "machine-1", Identifier: "ST-01", PlantID: "plant-1"}); err != nil {
		t.Fatalf("create machine: %v", err)
	}

	readingStore := readingsmem.NewReadingRepository(reg)
	summaryStore := summariesmem.NewSummaryRepository()
	clock := &fakeClock{now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}

	aggregator, err := summariesapp.NewAggregator(readingStore, summaryStore, clock)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	surplus, err := readings.NewSurplusCalculator(readingStore)
	if err != nil {
		t.Fatalf("surplus calculator: %v", err)
	}
	service, err := NewIngestService(readingStore, reg, surplus, aggregator, clock)
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}
	return &ingestFixture{service: service, readings: readingStore, summaries: summaryStore, clock: clock}
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := f.service.Create(ctx, CreateInput{MachineID: "machine-1", Timestamp: ts, Load: 100}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.service.Create(ctx, CreateInput{MachineID: "machine-1", Timestamp: ts, Load: 110})
	if !errors.Is(err, readings.ErrDuplicateReading) {
		t.Fatalf("err = %v, want ErrDuplicateReading", err)
	}
}

func TestCreateUnknownMachine(t *testing.T) {
	f := newIngestFixture(t)
	_, err := f.service.Create(context.Background(), CreateInput{
		MachineID: "machine-missing",
		Timestamp: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		Load:      100,
	})
	if !errors.Is(err, registry.ErrMachineNotFound) {
		t.Fatalf("err = %v, want ErrMachineNotFound", err)
	}
}

func TestCreateRecomputesDailySummary(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	for hour, load := range map[int]float64{8: 100, 14: 120, 20: 80} {
		_, err := f.service.Create(ctx, CreateInput{MachineID: "machine-1", Timestamp: day.Add(time.Duration(hour) * time.Hour), Load: load})
		if err != nil {
			t.Fatalf("create at %02d:00: %v", hour, err)
		}
	}

	summary, err := f.summaries.Get(ctx, "machine-1", day)
	if err != nil {
		t.Fatalf("summary get: %v", err)
	}
	if summary.MaxLoad != 120 || summary.MinLoad != 80 {
		t.Errorf("extrema = %v/%v, want 120/80", summary.MaxLoad, summary.MinLoad)
	}
	if summary.DMSiang == nil || *summary.DMSiang != 110 {
		t.Errorf("dmSiang = %v, want 110", summary.DMSiang)
	}
	if summary.DMMalam == nil || *summary.DMMalam != 80 {
		t.Errorf("dmMalam = %v, want 80", summary.DMMalam)
	}
}

func TestUpsertEmptyFleetSurplusIsNegativeDemand(t *testing.T) {
	f := newIngestFixture(t)
	dmSiang := 50.0

	stored, err := f.service.UpsertWithDemand(context.Background(), UpsertInput{
		MachineID: "machine-1",
		Timestamp: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		Load:      100,
		DMSiang:   &dmSiang,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.DMMesin != dmSiang {
		t.Errorf("dmMesin = %v, want %v", stored.DMMesin, dmSiang)
	}
	if stored.Surplus != -dmSiang {
		t.Errorf("surplus = %v, want %v against an empty fleet", stored.Surplus, -dmSiang)
	}
}

func TestUpsertReplacePreservesCreatedAt(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	dmSiang := 50.0

	first, err := f.service.UpsertWithDemand(ctx, UpsertInput{MachineID: "machine-1", Timestamp: ts, Load: 100, DMSiang: &dmSiang})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	f.clock.now = f.clock.now.Add(2 * time.Hour)
	second, err := f.service.UpsertWithDemand(ctx, UpsertInput{MachineID: "machine-1", Timestamp: ts, Load: 130, DMSiang: &dmSiang})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("createdAt changed on replace: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.Load != 130 {
		t.Errorf("load = %v, want 130", second.Load)
	}
}

func TestUpsertBroadcastsDayExtrema(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	dm := 50.0

	if _, err := f.service.UpsertWithDemand(ctx, UpsertInput{MachineID: "machine-1", Timestamp: day.Add(9 * time.Hour), Load: 100, DMSiang: &dm}); err != nil {
		t.Fatalf("upsert 09:00: %v", err)
	}
	if _, err := f.service.UpsertWithDemand(ctx, UpsertInput{MachineID: "machine-1", Timestamp: day.Add(15 * time.Hour), Load: 140, DMSiang: &dm}); err != nil {
		t.Fatalf("upsert 15:00: %v", err)
	}

	earlier, err := f.readings.Get(ctx, "machine-1", day.Add(9*time.Hour))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if earlier.MaxLoad == nil || *earlier.MaxLoad != 140 {
		t.Errorf("broadcast maxLoad = %v, want 140", earlier.MaxLoad)
	}
	if earlier.MinLoad == nil || *earlier.MinLoad != 100 {
		t.Errorf("broadcast minLoad = %v, want 100", earlier.MinLoad)
	}
}

func TestBulkCreateSkipsDuplicates(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	existing := day.Add(9 * time.Hour)

	if _, err := f.service.Create(ctx, CreateInput{MachineID: "machine-1", Timestamp: existing, Load: 100}); err != nil {
		t.Fatalf("seed create: %v", err)
	}

	result, err := f.service.BulkCreate(ctx, "machine-1", []BulkItem{
		{Timestamp: existing, Load: 105},
		{Timestamp: day.Add(10 * time.Hour), Load: 110},
		{Timestamp: day.Add(11 * time.Hour), Load: 115},
	})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("total = %d, want 3", result.Total)
	}
	if result.Created != 2 {
		t.Errorf("created = %d, want 2", result.Created)
	}
	if len(result.Readings) != 2 {
		t.Errorf("readings = %d, want 2", len(result.Readings))
	}
}

func TestBulkCreateEmptyBatch(t *testing.T) {
	f := newIngestFixture(t)
	_, err := f.service.BulkCreate(context.Background(), "machine-1", nil)
	if !errors.Is(err, readings.ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
}
