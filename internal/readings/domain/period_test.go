package readings

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2024, 3, 10, hour, 0, 0, 0, time.UTC)
}

func TestIsNightWindowEdges(t *testing.T) {
	cases := []struct {
		hour  int
		night bool
	}{
		{0, true},
		{5, true},
		{6, false},
		{12, false},
		{17, false},
		{18, true},
		{23, true},
	}
	for _, tc := range cases {
		if got := IsNight(at(tc.hour)); got != tc.night {
			t.Errorf("IsNight(hour=%d) = %v, want %v", tc.hour, got, tc.night)
		}
	}
}

func TestPeriodOf(t *testing.T) {
	if got := PeriodOf(at(10)); got != PeriodSiang {
		t.Fatalf("PeriodOf(10:00) = %s, want SIANG", got)
	}
	if got := PeriodOf(at(20)); got != PeriodMalam {
		t.Fatalf("PeriodOf(20:00) = %s, want MALAM", got)
	}
}

func TestDemandForSelectsPeriodFigure(t *testing.T) {
	siang, malam := 150.0, 90.0

	if got := DemandFor(&siang, &malam, at(10)); got != siang {
		t.Errorf("day demand = %v, want %v", got, siang)
	}
	if got := DemandFor(&siang, &malam, at(20)); got != malam {
		t.Errorf("night demand = %v, want %v", got, malam)
	}
}

func TestDemandForDefaultsToZero(t *testing.T) {
	if got := DemandFor(nil, nil, at(10)); got != 0 {
		t.Errorf("missing dmSiang should yield 0, got %v", got)
	}
	if got := DemandFor(nil, nil, at(20)); got != 0 {
		t.Errorf("missing dmMalam should yield 0, got %v", got)
	}
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	start, end := DayBounds(ts)
	if !start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}
