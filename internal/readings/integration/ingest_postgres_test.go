package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	readingsapp "powerplant-cloud/internal/readings/application"
	readings "powerplant-cloud/internal/readings/domain"
	readingsrepo "powerplant-cloud/internal/readings/infrastructure/postgres"
	registryapp "powerplant-cloud/internal/registry/application"
	registry "powerplant-cloud/internal/registry/domain"
	registryrepo "powerplant-cloud/internal/registry/infrastructure/postgres"
	summariesapp "powerplant-cloud/internal/summaries/application"
	summariesrepo "powerplant-cloud/internal/summaries/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestIngest_CreateUpsertAndDailySummary(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM daily_summaries")
	_, _ = db.ExecContext(ctx, "DELETE FROM load_readings")
	_, _ = db.ExecContext(ctx, "DELETE FROM machines")
	_, _ = db.ExecContext(ctx, "DELETE FROM plants")

	registryStore := registryrepo.NewRegistryRepository(db)
	readingStore := readingsrepo.NewReadingRepository(db)
	summaryStore := summariesrepo.NewSummaryRepository(db)

	registryService, err := registryapp.NewService(registryStore, readingStore, nil)
	if err != nil {
		t.Fatalf("registry service: %v", err)
	}
	aggregator, err := summariesapp.NewAggregator(readingStore, summaryStore, nil)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	surplus, err := readings.NewSurplusCalculator(readingStore)
	if err != nil {
		t.Fatalf("surplus calculator: %v", err)
	}
	ingest, err := readingsapp.NewIngestService(readingStore, registryService, surplus, aggregator, nil)
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}

	plant, err := registryService.CreatePlant(ctx, registryapp.CreatePlantInput{Name: "Suralaya IT", Type: "PLTU"})
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	machine, err := registryService.CreateMachine(ctx, registryapp.CreateMachineInput{Identifier: "ST-01", PlantID: plant.ID})
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	day := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)

	if _, err := ingest.Create(ctx, readingsapp.CreateInput{MachineID: machine.ID, Timestamp: day.Add(8 * time.Hour), Load: 100}); err != nil {
		t.Fatalf("create reading: %v", err)
	}
	_, err = ingest.Create(ctx, readingsapp.CreateInput{MachineID: machine.ID, Timestamp: day.Add(8 * time.Hour), Load: 105})
	if !errors.Is(err, readings.ErrDuplicateReading) {
		t.Fatalf("duplicate create: err = %v, want ErrDuplicateReading", err)
	}

	dmSiang := 90.0
	first, err := ingest.UpsertWithDemand(ctx, readingsapp.UpsertInput{MachineID: machine.ID, Timestamp: day.Add(14 * time.Hour), Load: 120, DMSiang: &dmSiang})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	replaced, err := ingest.UpsertWithDemand(ctx, readingsapp.UpsertInput{MachineID: machine.ID, Timestamp: day.Add(14 * time.Hour), Load: 130, DMSiang: &dmSiang})
	if err != nil {
		t.Fatalf("replace upsert: %v", err)
	}
	if !replaced.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("createdAt changed on replace: %v -> %v", first.CreatedAt, replaced.CreatedAt)
	}

	earlier, err := readingStore.Get(ctx, machine.ID, day.Add(8*time.Hour))
	if err != nil {
		t.Fatalf("get earlier reading: %v", err)
	}
	if earlier.MaxLoad == nil || *earlier.MaxLoad != 130 {
		t.Errorf("broadcast maxLoad = %v, want 130", earlier.MaxLoad)
	}

	summary, err := summaryStore.Get(ctx, machine.ID, day)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.MaxLoad != 130 || summary.MinLoad != 100 {
		t.Errorf("summary extrema = %v/%v, want 130/100", summary.MaxLoad, summary.MinLoad)
	}
	if summary.DMSiang == nil || *summary.DMSiang != 115 {
		t.Errorf("summary dmSiang = %v, want 115", summary.DMSiang)
	}

	if err := registryService.DeleteMachine(ctx, machine.ID); !errors.Is(err, registry.ErrMachineHasReadings) {
		t.Errorf("delete with readings: err = %v, want ErrMachineHasReadings", err)
	}
}

func applySchema(db *sql.DB) error {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "schema.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(data))
	return err
}
