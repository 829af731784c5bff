package summaries

import "errors"

var (
	// ErrSummaryNotFound is returned when no summary exists for the key.
	ErrSummaryNotFound = errors.New("summaries: summary not found")
	// ErrInvalidDay is returned for a zero day argument.
	ErrInvalidDay = errors.New("summaries: invalid day")
	// ErrMissingMachineID is returned for an empty machine id.
	ErrMissingMachineID = errors.New("summaries: missing machine id")
	// ErrVersionConflict is returned when an optimistic upsert lost to a
	// concurrent writer.
	ErrVersionConflict = errors.New("summaries: version conflict")
)
