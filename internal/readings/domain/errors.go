package readings

import "errors"

var (
	// ErrDuplicateReading is returned when a reading already exists for
	// the (machine, timestamp) key on the create-only path.
	ErrDuplicateReading = errors.New("readings: reading already exists for machine and timestamp")
	// ErrReadingNotFound is returned when no reading matches the key.
	ErrReadingNotFound = errors.New("readings: reading not found")
	// ErrInvalidTimestamp is returned for a zero timestamp.
	ErrInvalidTimestamp = errors.New("readings: invalid timestamp")
	// ErrMissingMachineID is returned for an empty machine id.
	ErrMissingMachineID = errors.New("readings: missing machine id")
	// ErrEmptyBatch is returned when a bulk request carries no readings.
	ErrEmptyBatch = errors.New("readings: empty batch")
)
