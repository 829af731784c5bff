package summaries

import (
	"testing"
	"time"
)

func sample(hour int, load float64) Sample {
	return Sample{TS: time.Date(2024, 3, 10, hour, 0, 0, 0, time.UTC), Load: load}
}

func TestComputeDayStatsSplitsPeriods(t *testing.T) {
	stats, ok := ComputeDayStats([]Sample{
		sample(8, 100),
		sample(14, 120),
		sample(20, 80),
	})
	if !ok {
		t.Fatal("expected stats for a non-empty day")
	}
	if stats.MaxLoad != 120 {
		t.Errorf("maxLoad = %v, want 120", stats.MaxLoad)
	}
	if stats.MinLoad != 80 {
		t.Errorf("minLoad = %v, want 80", stats.MinLoad)
	}
	if stats.DMSiang == nil || *stats.DMSiang != 110 {
		t.Errorf("dmSiang = %v, want 110", stats.DMSiang)
	}
	if stats.DMMalam == nil || *stats.DMMalam != 80 {
		t.Errorf("dmMalam = %v, want 80", stats.DMMalam)
	}
}

func TestComputeDayStatsEmptyPeriodIsNil(t *testing.T) {
	stats, ok := ComputeDayStats([]Sample{
		sample(9, 50),
		sample(11, 60),
	})
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.DMSiang == nil || *stats.DMSiang != 55 {
		t.Errorf("dmSiang = %v, want 55", stats.DMSiang)
	}
	if stats.DMMalam != nil {
		t.Errorf("dmMalam = %v, want nil for an empty night bucket", *stats.DMMalam)
	}
}

func TestComputeDayStatsEmptyInput(t *testing.T) {
	if _, ok := ComputeDayStats(nil); ok {
		t.Fatal("empty input must not produce stats")
	}
}
