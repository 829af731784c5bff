package memory

import (
	"context"
	"sort"
	"sync"

	registry "powerplant-cloud/internal/registry/domain"
)

// Registry is an in-memory plant/machine store for demo/testing. It backs
// both repository interfaces plus the machine lookup used by ingestion.
type Registry struct {
	mu       sync.RWMutex
	plants   map[string]*registry.Plant
	machines map[string]*registry.Machine
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plants:   make(map[string]*registry.Plant),
		machines: make(map[string]*registry.Machine),
	}
}

// Create stores a plant.
func (r *Registry) Create(ctx context.Context, plant *registry.Plant) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.plants {
		if existing.Name == plant.Name {
			return registry.ErrPlantNameTaken
		}
	}
	copied := *plant
	r.plants[plant.ID] = &copied
	return nil
}

// Get loads a plant by id.
func (r *Registry) Get(ctx context.Context, id string) (*registry.Plant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	plant := r.plants[id]
	if plant == nil {
		return nil, registry.ErrPlantNotFound
	}
	copied := *plant
	return &copied, nil
}

// List returns all plants sorted by name.
func (r *Registry) List(ctx context.Context) ([]*registry.Plant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*registry.Plant, 0, len(r.plants))
	for _, plant := range r.plants {
		copied := *plant
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Update applies an optional-field update.
func (r *Registry) Update(ctx context.Context, id string, update registry.PlantUpdate) (*registry.Plant, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	plant := r.plants[id]
	if plant == nil {
		return nil, registry.ErrPlantNotFound
	}
	if update.Name != nil {
		for otherID, other := range r.plants {
			if otherID != id && other.Name == *update.Name {
				return nil, registry.ErrPlantNameTaken
			}
		}
		plant.Name = *update.Name
	}
	if update.Type != nil {
		plant.Type = *update.Type
	}
	copied := *plant
	return &copied, nil
}

// CreateMachine stores a machine.
func (r *Registry) CreateMachine(ctx context.Context, machine *registry.Machine) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.plants[machine.PlantID] == nil {
		return registry.ErrPlantNotFound
	}
	copied := *machine
	r.machines[machine.ID] = &copied
	return nil
}

// GetMachine loads a machine with its plant context.
func (r *Registry) GetMachine(ctx context.Context, id string) (*registry.MachineWithPlant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.machineWithPlantLocked(id)
}

// ListMachines returns machines, optionally filtered by plant.
func (r *Registry) ListMachines(ctx context.Context, plantID string) ([]*registry.MachineWithPlant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*registry.MachineWithPlant, 0, len(r.machines))
	for id, machine := range r.machines {
		if plantID != "" && machine.PlantID != plantID {
			continue
		}
		withPlant, err := r.machineWithPlantLocked(id)
		if err != nil {
			return nil, err
		}
		result = append(result, withPlant)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identifier < result[j].Identifier })
	return result, nil
}

// DeleteMachine removes a machine.
func (r *Registry) DeleteMachine(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machines[id] == nil {
		return registry.ErrMachineNotFound
	}
	delete(r.machines, id)
	return nil
}

// PlantTypeOf resolves the plant type owning a machine.
func (r *Registry) PlantTypeOf(machineID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	machine := r.machines[machineID]
	if machine == nil {
		return "", false
	}
	plant := r.plants[machine.PlantID]
	if plant == nil {
		return "", false
	}
	return string(plant.Type), true
}

func (r *Registry) machineWithPlantLocked(id string) (*registry.MachineWithPlant, error) {
	machine := r.machines[id]
	if machine == nil {
		return nil, registry.ErrMachineNotFound
	}
	plant := r.plants[machine.PlantID]
	if plant == nil {
		return nil, registry.ErrPlantNotFound
	}
	return &registry.MachineWithPlant{
		Machine:   *machine,
		PlantName: plant.Name,
		PlantType: plant.Type,
	}, nil
}
