package registry

import "errors"

var (
	// ErrPlantNotFound is returned when a referenced plant does not exist.
	ErrPlantNotFound = errors.New("registry: plant not found")
	// ErrMachineNotFound is returned when a referenced machine does not exist.
	ErrMachineNotFound = errors.New("registry: machine not found")
	// ErrPlantNameTaken is returned when a plant name is already in use.
	ErrPlantNameTaken = errors.New("registry: plant name already exists")
	// ErrMachineHasReadings blocks machine deletion while readings reference it.
	ErrMachineHasReadings = errors.New("registry: machine has readings")
	// ErrInvalidPlantType is returned for an unknown plant type.
	ErrInvalidPlantType = errors.New("registry: invalid plant type")
	// ErrMissingField is returned when a required input field is empty.
	ErrMissingField = errors.New("registry: missing required field")
)
