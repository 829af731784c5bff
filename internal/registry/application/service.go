package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	registry "powerplant-cloud/internal/registry/domain"
)

// ReadingCounter counts readings referencing a machine. Used as the
// referential guard for machine deletion.
type ReadingCounter interface {
	CountByMachine(ctx context.Context, machineID string) (int, error)
}

// Clock provides time for the registry service.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service implements the plant/machine registry operations.
type Service struct {
	repo     registry.Repository
	readings ReadingCounter
	clock    Clock
}

// NewService constructs a registry service.
func NewService(repo registry.Repository, readings ReadingCounter, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("registry service: nil repository")
	}
	if readings == nil {
		return nil, errors.New("registry service: nil reading counter")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{repo: repo, readings: readings, clock: clock}, nil
}

// CreatePlantInput is the plant creation payload.
type CreatePlantInput struct {
	Name string
	Type string
}

// CreatePlant registers a plant. The name is unique; the type is fixed after
// creation in practice (no transition logic exists).
func (s *Service) CreatePlant(ctx context.Context, in CreatePlantInput) (*registry.Plant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, registry.ErrMissingField
	}
	plantType, ok := registry.NormalizePlantType(in.Type)
	if !ok {
		return nil, registry.ErrInvalidPlantType
	}

	plant := &registry.Plant{
		ID:        newID("plant"),
		Name:      name,
		Type:      plantType,
		CreatedAt: s.clock.Now(),
		UpdatedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, plant); err != nil {
		return nil, err
	}
	return plant, nil
}

// GetPlant loads a plant.
func (s *Service) GetPlant(ctx context.Context, id string) (*registry.Plant, error) {
	if id == "" {
		return nil, registry.ErrMissingField
	}
	return s.repo.Get(ctx, id)
}

// ListPlants returns all plants.
func (s *Service) ListPlants(ctx context.Context) ([]*registry.Plant, error) {
	return s.repo.List(ctx)
}

// UpdatePlantInput is the explicit optional-field update payload.
type UpdatePlantInput struct {
	Name *string
	Type *string
}

// UpdatePlant applies a partial update to a plant.
func (s *Service) UpdatePlant(ctx context.Context, id string, in UpdatePlantInput) (*registry.Plant, error) {
	if id == "" {
		return nil, registry.ErrMissingField
	}
	update := registry.PlantUpdate{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, registry.ErrMissingField
		}
		update.Name = &name
	}
	if in.Type != nil {
		plantType, ok := registry.NormalizePlantType(*in.Type)
		if !ok {
			return nil, registry.ErrInvalidPlantType
		}
		update.Type = &plantType
	}
	return s.repo.Update(ctx, id, update)
}

// CreateMachineInput is the machine creation payload.
type CreateMachineInput struct {
	Identifier string
	PlantID    string
}

// CreateMachine registers a machine under an existing plant.
func (s *Service) CreateMachine(ctx context.Context, in CreateMachineInput) (*registry.MachineWithPlant, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.PlantID == "" {
		return nil, registry.ErrMissingField
	}
	plant, err := s.repo.Get(ctx, in.PlantID)
	if err != nil {
		return nil, err
	}

	machine := &registry.Machine{
		ID:         newID("machine"),
		Identifier: identifier,
		PlantID:    plant.ID,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateMachine(ctx, machine); err != nil {
		return nil, err
	}
	return &registry.MachineWithPlant{
		Machine:   *machine,
		PlantName: plant.Name,
		PlantType: plant.Type,
	}, nil
}

// GetMachine loads a machine with plant context.
func (s *Service) GetMachine(ctx context.Context, id string) (*registry.MachineWithPlant, error) {
	if id == "" {
		return nil, registry.ErrMissingField
	}
	return s.repo.GetMachine(ctx, id)
}

// ListMachines returns machines, optionally filtered by plant.
func (s *Service) ListMachines(ctx context.Context, plantID string) ([]*registry.MachineWithPlant, error) {
	return s.repo.ListMachines(ctx, plantID)
}

// DeleteMachine removes a machine. Deletion is blocked with
// ErrMachineHasReadings while any reading references it; readings are never
// cascaded.
func (s *Service) DeleteMachine(ctx context.Context, id string) error {
	if id == "" {
		return registry.ErrMissingField
	}
	if _, err := s.repo.GetMachine(ctx, id); err != nil {
		return err
	}
	count, err := s.readings.CountByMachine(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return registry.ErrMachineHasReadings
	}
	return s.repo.DeleteMachine(ctx, id)
}

func newID(prefix string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return prefix + "-" + hex.EncodeToString(buf)
}
