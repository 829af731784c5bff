package application

import (
	"context"
	"errors"
	"testing"
	"time"

	registry "powerplant-cloud/internal/registry/domain"
	registrymem "powerplant-cloud/internal/registry/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubCounter struct{ count int }

func (s stubCounter) CountByMachine(ctx context.Context, machineID string) (int, error) {
	return s.count, nil
}

func newService(t *testing.T, counter ReadingCounter) (*Service, *registrymem.Registry) {
	t.Helper()
	repo := registrymem.NewRegistry()
	service, err := NewService(repo, counter, fixedClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, repo
}

func TestCreatePlantValidation(t *testing.T) {
	service, _ := newService(t, stubCounter{})
	ctx := context.Background()

	if _, err := service.CreatePlant(ctx, CreatePlantInput{Name: "  ", Type: "PLTU"}); !errors.Is(err, registry.ErrMissingField) {
		t.Errorf("blank name: err = %v, want ErrMissingField", err)
	}
	if _, err := service.CreatePlant(ctx, CreatePlantInput{Name: "Suralaya", Type: "NUCLEAR"}); !errors.Is(err, registry.ErrInvalidPlantType) {
		t.Errorf("unknown type: err = %v, want ErrInvalidPlantType", err)
	}

	plant, err := service.CreatePlant(ctx, CreatePlantInput{Name: "Suralaya", Type: "pltu"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plant.Type != registry.PlantTypePLTU {
		t.Errorf("type = %s, want PLTU after normalization", plant.Type)
	}
}

func TestCreatePlantDuplicateName(t *testing.T) {
	service, _ := newService(t, stubCounter{})
	ctx := context.Background()

	if _, err := service.CreatePlant(ctx, CreatePlantInput{Name: "Paiton", Type: "PLTU"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := service.CreatePlant(ctx, CreatePlantInput{Name: "Paiton", Type: "PLTG"})
	if !errors.Is(err, registry.ErrPlantNameTaken) {
		t.Fatalf("err = %v, want ErrPlantNameTaken", err)
	}
}

func TestCreateMachineRequiresPlant(t *testing.T) {
	service, _ := newService(t, stubCounter{})
	_, err := service.CreateMachine(context.Background(), CreateMachineInput{Identifier: "ST-01", PlantID: "plant-missing"})
	if !errors.Is(err, registry.ErrPlantNotFound) {
		t.Fatalf("err = %v, want ErrPlantNotFound", err)
	}
}

func TestDeleteMachineBlockedByReadings(t *testing.T) {
	service, _ := newService(t, stubCounter{count: 4})
	ctx := context.Background()

	plant, err := service.CreatePlant(ctx, CreatePlantInput{Name: "Gresik", Type: "PLTG"})
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	machine, err := service.CreateMachine(ctx, CreateMachineInput{Identifier: "GT-01", PlantID: plant.ID})
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	err = service.DeleteMachine(ctx, machine.ID)
	if !errors.Is(err, registry.ErrMachineHasReadings) {
		t.Fatalf("err = %v, want ErrMachineHasReadings", err)
	}
	if _, err := service.GetMachine(ctx, machine.ID); err != nil {
		t.Fatalf("machine must survive a blocked delete: %v", err)
	}
}

func TestDeleteMachineWithoutReadings(t *testing.T) {
	service, _ := newService(t, stubCounter{count: 0})
	ctx := context.Background()

	plant, _ := service.CreatePlant(ctx, CreatePlantInput{Name: "Gresik", Type: "PLTG"})
	machine, _ := service.CreateMachine(ctx, CreateMachineInput{Identifier: "GT-01", PlantID: plant.ID})

	if err := service.DeleteMachine(ctx, machine.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.GetMachine(ctx, machine.ID); !errors.Is(err, registry.ErrMachineNotFound) {
		t.Fatalf("err = %v, want ErrMachineNotFound after delete", err)
	}
}

func TestUpdatePlantPartial(t *testing.T) {
	service, _ := newService(t, stubCounter{})
	ctx := context.Background()

	plant, _ := service.CreatePlant(ctx, CreatePlantInput{Name: "Kamojang", Type: "PLTA"})
	name := "Kamojang Unit 2"
	updated, err := service.UpdatePlant(ctx, plant.ID, UpdatePlantInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name {
		t.Errorf("name = %q, want %q", updated.Name, name)
	}
	if updated.Type != registry.PlantTypePLTA {
		t.Errorf("type changed without being set: %s", updated.Type)
	}
}
