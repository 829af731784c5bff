package readings

import "time"

// Day/night demand window boundaries. All period decisions use UTC hours;
// local-time variants of the original behavior were dropped in favor of one
// uniform convention.
const (
	DayStartHour   = 6
	NightStartHour = 18
)

// Period names a half of the demand day.
type Period string

const (
	PeriodSiang Period = "SIANG"
	PeriodMalam Period = "MALAM"
)

// IsNight reports whether the timestamp falls in the night window
// [18:00, 06:00) UTC.
func IsNight(ts time.Time) bool {
	hour := ts.UTC().Hour()
	return hour >= NightStartHour || hour < DayStartHour
}

// PeriodOf returns the demand period for a timestamp.
func PeriodOf(ts time.Time) Period {
	if IsNight(ts) {
		return PeriodMalam
	}
	return PeriodSiang
}

// DemandFor selects the demand figure applicable to a reading: dmMalam in
// the night window, dmSiang otherwise. Absent values default to 0.
func DemandFor(dmSiang, dmMalam *float64, ts time.Time) float64 {
	if IsNight(ts) {
		if dmMalam == nil {
			return 0
		}
		return *dmMalam
	}
	if dmSiang == nil {
		return 0
	}
	return *dmSiang
}

// DayStart truncates a timestamp to UTC midnight of its calendar day.
func DayStart(ts time.Time) time.Time {
	t := ts.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the [start, end) UTC bounds of the timestamp's day.
func DayBounds(ts time.Time) (time.Time, time.Time) {
	start := DayStart(ts)
	return start, start.Add(24 * time.Hour)
}
