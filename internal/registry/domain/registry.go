package registry

import (
	"context"
	"strings"
	"time"
)

// PlantType identifies a known plant installation class.
type PlantType string

const (
	PlantTypePLTD PlantType = "PLTD"
	PlantTypePLTU PlantType = "PLTU"
	PlantTypePLTG PlantType = "PLTG"
	PlantTypePLTA PlantType = "PLTA"
	PlantTypePLTS PlantType = "PLTS"
)

// NormalizePlantType validates and normalizes a plant type string.
func NormalizePlantType(value string) (PlantType, bool) {
	switch PlantType(strings.ToUpper(value)) {
	case PlantTypePLTD, PlantTypePLTU, PlantTypePLTG, PlantTypePLTA, PlantTypePLTS:
		return PlantType(strings.ToUpper(value)), true
	default:
		return "", false
	}
}

// Plant is a power plant owning zero or more machines.
type Plant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      PlantType `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Machine is a generating unit owned by exactly one plant.
type Machine struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	PlantID    string    `json:"plantId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MachineWithPlant carries the owning plant context needed by ingestion
// and reporting paths.
type MachineWithPlant struct {
	Machine
	PlantName string    `json:"plantName"`
	PlantType PlantType `json:"plantType"`
}

// PlantUpdate is an explicit optional-field update payload.
type PlantUpdate struct {
	Name *string
	Type *PlantType
}

// Repository persists the plant/machine registry.
type Repository interface {
	// Create stores a plant. ErrPlantNameTaken on a duplicate name.
	Create(ctx context.Context, plant *Plant) error
	Get(ctx context.Context, id string) (*Plant, error)
	List(ctx context.Context) ([]*Plant, error)
	// Update applies an optional-field update. ErrPlantNotFound when the
	// plant is missing, ErrPlantNameTaken on a duplicate name.
	Update(ctx context.Context, id string, update PlantUpdate) (*Plant, error)

	// CreateMachine stores a machine. ErrPlantNotFound when the owning
	// plant is missing.
	CreateMachine(ctx context.Context, machine *Machine) error
	GetMachine(ctx context.Context, id string) (*MachineWithPlant, error)
	ListMachines(ctx context.Context, plantID string) ([]*MachineWithPlant, error)
	DeleteMachine(ctx context.Context, id string) error
}
