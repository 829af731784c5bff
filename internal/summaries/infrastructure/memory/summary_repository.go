package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	summaries "powerplant-cloud/internal/summaries/domain"
)

// SummaryRepository is an in-memory daily summary store for demo/testing.
// It honors the same optimistic version semantics as the Postgres
// implementation.
type SummaryRepository struct {
	mu     sync.Mutex
	rows   map[string]*summaries.DailySummary
	nextID int64
}

// NewSummaryRepository constructs a repository.
func NewSummaryRepository() *SummaryRepository {
	return &SummaryRepository{rows: make(map[string]*summaries.DailySummary), nextID: 1}
}

func key(machineID string, date time.Time) string {
	return machineID + "/" + date.UTC().Format("2006-01-02")
}

// Get loads the summary for a machine/day.
func (r *SummaryRepository) Get(ctx context.Context, machineID string, date time.Time) (*summaries.DailySummary, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[key(machineID, date)]
	if row == nil {
		return nil, summaries.ErrSummaryNotFound
	}
	copied := *row
	return &copied, nil
}

// Upsert creates or updates the row with a version compare-and-swap.
func (r *SummaryRepository) Upsert(ctx context.Context, summary *summaries.DailySummary) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(summary.MachineID, summary.Date)
	existing := r.rows[k]
	if summary.Version == 0 {
		if existing != nil {
			return summaries.ErrVersionConflict
		}
		copied := *summary
		copied.ID = r.nextID
		copied.Version = 1
		copied.CreatedAt = summary.UpdatedAt
		r.nextID++
		r.rows[k] = &copied
		return nil
	}

	if existing == nil || existing.Version != summary.Version {
		return summaries.ErrVersionConflict
	}
	copied := *summary
	copied.ID = existing.ID
	copied.Version = existing.Version + 1
	copied.CreatedAt = existing.CreatedAt
	r.rows[k] = &copied
	return nil
}

// ListByMachine returns summaries date-descending.
func (r *SummaryRepository) ListByMachine(ctx context.Context, machineID string, q summaries.RangeQuery) ([]*summaries.DailySummary, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*summaries.DailySummary
	for _, row := range r.rows {
		if row.MachineID != machineID {
			continue
		}
		if q.From != nil && row.Date.Before(*q.From) {
			continue
		}
		if q.To != nil && row.Date.After(*q.To) {
			continue
		}
		copied := *row
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[j].Date.Before(result[i].Date) })
	return result, nil
}
