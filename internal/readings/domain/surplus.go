package readings

import (
	"context"
	"errors"
	"time"
)

// FleetAverager is the narrow port the surplus calculation needs.
type FleetAverager interface {
	FleetAverage(ctx context.Context, plantType string) (avg float64, count int, err error)
}

// SurplusCalculator derives the capacity margin between the plant-type-wide
// average load and the demand declared for a reading's period.
//
// Sign convention: surplus = avgPerPlantType - dmMesin, applied uniformly on
// every write path. Positive means the plant-type fleet is running above the
// demand baseline declared for the reading's period. The original behavior
// inverted the sign on one ingestion path; that path now follows this
// convention too.
type SurplusCalculator struct {
	fleet FleetAverager
}

// NewSurplusCalculator constructs a calculator.
func NewSurplusCalculator(fleet FleetAverager) (*SurplusCalculator, error) {
	if fleet == nil {
		return nil, errors.New("readings: nil fleet averager")
	}
	return &SurplusCalculator{fleet: fleet}, nil
}

// SurplusResult is the derived figures for one reading.
type SurplusResult struct {
	AvgPerPlantType float64
	DMMesin         float64
	Surplus         float64
}

// Surplus computes the derived demand and margin figures for a reading.
// A plant type with no historical readings yields an average baseline of 0,
// so surplus equals the negative of dmMesin.
func (c *SurplusCalculator) Surplus(ctx context.Context, plantType string, dmSiang, dmMalam *float64, ts time.Time) (SurplusResult, error) {
	if ts.IsZero() {
		return SurplusResult{}, ErrInvalidTimestamp
	}

	avg, count, err := c.fleet.FleetAverage(ctx, plantType)
	if err != nil {
		return SurplusResult{}, err
	}
	if count == 0 {
		avg = 0
	}

	dmMesin := DemandFor(dmSiang, dmMalam, ts)
	return SurplusResult{
		AvgPerPlantType: avg,
		DMMesin:         dmMesin,
		Surplus:         avg - dmMesin,
	}, nil
}
