// Package stats computes derived analytics over an in-memory activity set.
// Every function here is a pure, total function of its input: empty input
// yields empty or zeroed output, never an error, and no function depends on
// the order activities were fetched in.
package stats

import (
	"fmt"
	"strings"
	"time"

	"stridestats/internal/strava"
)

// Unit conversion constants
const (
	metersToMiles = 0.000621371
	metersPerMile = 1609.34
	metersToFeet  = 3.28084
)

// runSportTypes enumerates the Strava sport types that count as running.
// Matching is an explicit table rather than a substring test so that sport
// names merely containing "run" can never qualify by accident.
var runSportTypes = map[string]bool{
	"run":        true,
	"trailrun":   true,
	"virtualrun": true,
}

// classificationKey returns the grouping key for an activity: the specific
// sport type when present, otherwise the general type.
func classificationKey(a strava.Activity) string {
	if a.SportType != "" {
		return a.SportType
	}
	return a.Type
}

// isRun reports whether an activity counts as a run. The sport type is
// consulted first, then the general type.
func isRun(a strava.Activity) bool {
	if a.SportType != "" {
		return runSportTypes[strings.ToLower(a.SportType)]
	}
	return strings.EqualFold(a.Type, "Run")
}

func filterRuns(activities []strava.Activity) []strava.Activity {
	runs := make([]strava.Activity, 0, len(activities))
	for _, a := range activities {
		if isRun(a) {
			runs = append(runs, a)
		}
	}
	return runs
}

// Summary holds the top-level totals for an activity set.
type Summary struct {
	TotalActivities        int `json:"totalActivities"`
	TotalMovingTimeSeconds int `json:"totalMovingTimeSeconds"`
}

// Summarize returns the total count and moving time of an activity set.
func Summarize(activities []strava.Activity) Summary {
	var totalSeconds int
	for _, a := range activities {
		totalSeconds += a.MovingTime
	}
	return Summary{
		TotalActivities:        len(activities),
		TotalMovingTimeSeconds: totalSeconds,
	}
}

// dayOf normalizes any instant to its civil date at midnight UTC, so dates
// compare with time.Equal and day arithmetic is DST-free.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole number of days from a to b. Both arguments
// must be midnight-UTC normalized dates.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// formatClock renders a duration in seconds as zero-padded "HH:MM".
func formatClock(seconds int) string {
	if seconds <= 0 {
		return "00:00"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// formatPace renders a pace in seconds-per-mile as zero-padded "MM:SS".
func formatPace(paceSeconds float64) string {
	if paceSeconds <= 0 {
		return "00:00"
	}
	whole := int(paceSeconds)
	return fmt.Sprintf("%02d:%02d", whole/60, whole%60)
}

// intensity maps a value onto a class 0..len(thresholds): the index of the
// first threshold the value does not exceed, or the top class above all.
func intensity(value float64, thresholds ...float64) int {
	for i, threshold := range thresholds {
		if value <= threshold {
			return i
		}
	}
	return len(thresholds)
}
