package application

import (
	"context"
	"errors"
	"time"

	"powerplant-cloud/internal/observability/metrics"
	readings "powerplant-cloud/internal/readings/domain"
	summaries "powerplant-cloud/internal/summaries/domain"
)

// Retry bound for optimistic upsert conflicts against concurrent recomputes.
const maxUpsertRetries = 3

// ReadingSource supplies a machine's samples for one calendar day.
type ReadingSource interface {
	ListDaySamples(ctx context.Context, machineID string, start, end time.Time) ([]summaries.Sample, error)
}

// Clock provides time for the aggregator.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Aggregator maintains the one-row-per-machine-per-day summary. It is invoked
// synchronously after every successful reading write, never from a timer or
// a backlog queue.
type Aggregator struct {
	source ReadingSource
	store  summaries.Repository
	clock  Clock
}

// NewAggregator constructs an Aggregator.
func NewAggregator(source ReadingSource, store summaries.Repository, clock Clock) (*Aggregator, error) {
	if source == nil {
		return nil, errors.New("summaries: nil reading source")
	}
	if store == nil {
		return nil, errors.New("summaries: nil summary store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Aggregator{source: source, store: store, clock: clock}, nil
}

// Recompute rebuilds the daily summary for the machine's UTC calendar day
// containing `day` from all stored readings of that day. An empty day is a
// no-op: an existing summary is never deleted by this path. The upsert is
// guarded by the summary's version column and retried on conflict so that
// interleaved recomputes cannot silently overwrite each other with stale
// aggregates.
func (a *Aggregator) Recompute(ctx context.Context, machineID string, day time.Time) error {
	if machineID == "" {
		return summaries.ErrMissingMachineID
	}
	if day.IsZero() {
		return summaries.ErrInvalidDay
	}

	start, end := readings.DayBounds(day)
	began := a.clock.Now()

	var lastErr error
	for attempt := 0; attempt < maxUpsertRetries; attempt++ {
		if attempt > 0 {
			metrics.IncAggregationRetry()
		}
		samples, err := a.source.ListDaySamples(ctx, machineID, start, end)
		if err != nil {
			metrics.ObserveAggregation(metrics.ResultError, a.clock.Now().Sub(began))
			return err
		}
		stats, ok := summaries.ComputeDayStats(samples)
		if !ok {
			metrics.ObserveAggregation(metrics.ResultSuccess, a.clock.Now().Sub(began))
			return nil
		}

		version := 0
		current, err := a.store.Get(ctx, machineID, start)
		if err != nil && !errors.Is(err, summaries.ErrSummaryNotFound) {
			metrics.ObserveAggregation(metrics.ResultError, a.clock.Now().Sub(began))
			return err
		}
		if current != nil {
			version = current.Version
		}

		err = a.store.Upsert(ctx, &summaries.DailySummary{
			MachineID: machineID,
			Date:      start,
			MaxLoad:   stats.MaxLoad,
			MinLoad:   stats.MinLoad,
			DMSiang:   stats.DMSiang,
			DMMalam:   stats.DMMalam,
			Version:   version,
			UpdatedAt: a.clock.Now(),
		})
		if err == nil {
			metrics.ObserveAggregation(metrics.ResultSuccess, a.clock.Now().Sub(began))
			return nil
		}
		if !errors.Is(err, summaries.ErrVersionConflict) {
			metrics.ObserveAggregation(metrics.ResultError, a.clock.Now().Sub(began))
			return err
		}
		lastErr = err
	}
	metrics.IncAggregationConflict()
	metrics.ObserveAggregation(metrics.ResultError, a.clock.Now().Sub(began))
	return lastErr
}
