package readings

import (
	"context"
	"testing"
	"time"
)

type stubFleet struct {
	avg   float64
	count int
}

func (s stubFleet) FleetAverage(ctx context.Context, plantType string) (float64, int, error) {
	return s.avg, s.count, nil
}

func TestSurplusAgainstFleetAverage(t *testing.T) {
	calc, err := NewSurplusCalculator(stubFleet{avg: 110, count: 4})
	if err != nil {
		t.Fatalf("NewSurplusCalculator: %v", err)
	}

	dmSiang := 95.0
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	result, err := calc.Surplus(context.Background(), "PLTD", &dmSiang, nil, ts)
	if err != nil {
		t.Fatalf("Surplus: %v", err)
	}
	if result.DMMesin != dmSiang {
		t.Errorf("dmMesin = %v, want %v", result.DMMesin, dmSiang)
	}
	if result.Surplus != 110-dmSiang {
		t.Errorf("surplus = %v, want %v", result.Surplus, 110-dmSiang)
	}
}

func TestSurplusWithEmptyFleetIsNegativeDemand(t *testing.T) {
	calc, _ := NewSurplusCalculator(stubFleet{avg: 42, count: 0})

	dmMalam := 70.0
	ts := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	result, err := calc.Surplus(context.Background(), "PLTU", nil, &dmMalam, ts)
	if err != nil {
		t.Fatalf("Surplus: %v", err)
	}
	if result.AvgPerPlantType != 0 {
		t.Errorf("empty fleet average = %v, want 0", result.AvgPerPlantType)
	}
	if result.Surplus != -dmMalam {
		t.Errorf("surplus = %v, want %v", result.Surplus, -dmMalam)
	}
}

func TestSurplusRejectsZeroTimestamp(t *testing.T) {
	calc, _ := NewSurplusCalculator(stubFleet{})
	if _, err := calc.Surplus(context.Background(), "PLTD", nil, nil, time.Time{}); err != ErrInvalidTimestamp {
		t.Fatalf("err = %v, want ErrInvalidTimestamp", err)
	}
}
