package stats

import (
	"fmt"
	"sort"
	"time"

	"stridestats/internal/strava"
)

// Period selects the bucketing granularity of a trend series.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ErrInvalidPeriod is returned for a period outside daily/weekly/monthly.
var ErrInvalidPeriod = fmt.Errorf("period must be one of daily, weekly, monthly")

// ParsePeriod maps a query string to a Period. The empty string defaults to
// daily; anything else unknown is a usage error.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	default:
		return "", ErrInvalidPeriod
	}
}

// TrendPoint is one bucket of a trend series. Labels are ISO formatted
// (date, week-based year+week, or year-month) so lexicographic order is
// chronological order.
type TrendPoint struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formattedValue"`
}

// periodKey returns the bucket label for a local date under a period.
func periodKey(date time.Time, period Period) string {
	switch period {
	case PeriodWeekly:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonthly:
		return date.Format("2006-01")
	default:
		return date.Format("2006-01-02")
	}
}

// MileageTrend sums run miles per period bucket, sorted by label.
func MileageTrend(activities []strava.Activity, period Period) []TrendPoint {
	miles := make(map[string]float64)
	for _, run := range filterRuns(activities) {
		miles[periodKey(run.LocalDate(), period)] += run.Distance * metersToMiles
	}

	out := make([]TrendPoint, 0, len(miles))
	for label, m := range miles {
		out = append(out, TrendPoint{
			Label:     label,
			Value:     m,
			Formatted: fmt.Sprintf("%.2f mi", m),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// PaceTrend computes the aggregate pace of each period bucket from the
// bucket's total miles and total moving seconds, not from an average of
// per-activity paces. The value is whole seconds per mile.
func PaceTrend(activities []strava.Activity, period Period) []TrendPoint {
	type bucket struct {
		miles   float64
		seconds float64
	}
	buckets := make(map[string]bucket)
	for _, run := range filterRuns(activities) {
		key := periodKey(run.LocalDate(), period)
		b := buckets[key]
		b.miles += run.Distance * metersToMiles
		b.seconds += float64(run.MovingTime)
		buckets[key] = b
	}

	out := make([]TrendPoint, 0, len(buckets))
	for label, b := range buckets {
		var paceSeconds float64
		if b.miles > 0 {
			paceSeconds = b.seconds / b.miles
		}
		formatted := formatPace(paceSeconds)
		out = append(out, TrendPoint{
			Label:     label,
			Value:     float64(int(paceSeconds)),
			Formatted: formatted + " /mi",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
